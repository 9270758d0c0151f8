package analysis

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

func analyzeSrc(t *testing.T, src string) (*Consumer, *parse.TranslationUnit) {
	t.Helper()
	lexer := cpp.Lex("test.c", bytes.NewBufferString(src))
	pp := cpp.New(lexer, nil)
	c := NewConsumer(pp)
	tu, err := parse.Parse(pp)
	require.NoError(t, err)
	require.NoError(t, c.Forest.Err)
	return c, tu
}

func topRecord(t *testing.T, c *Consumer, tu *parse.TranslationUnit, name string) *InvocationRecord {
	t.Helper()
	idx := BuildAuxiliaryIndex(tu)
	ev := NewEvaluator(tu, idx, c.Defs)
	for _, exp := range c.Forest.Expansions {
		if exp.Name == name && exp.Depth == 0 && !exp.InMacroArg {
			return ev.Evaluate(exp)
		}
	}
	t.Fatalf("no top level expansion of %s", name)
	return nil
}

func evaluateTop(t *testing.T, src, name string) *InvocationRecord {
	t.Helper()
	c, tu := analyzeSrc(t, src)
	return topRecord(t, c, tu, name)
}

func TestSimpleFunctionLikeMacro(t *testing.T) {
	rec := evaluateTop(t, `
#define ADD(a,b) ((a)+(b))
int x = ADD(1, 2);
`, "ADD")
	require.Equal(t, "Expr", rec.ASTKind)
	require.Equal(t, 1, rec.NumASTRoots)
	require.Equal(t, 2, rec.NumArguments)
	require.Equal(t, 0, rec.InvocationDepth)
	require.False(t, rec.IsObjectLike)
	require.False(t, rec.IsInvokedInMacroArgument)
	require.True(t, rec.HasAlignedArguments)
	require.True(t, rec.IsHygienic)
	require.False(t, rec.DoesAnyArgumentHaveSideEffects)
	require.Equal(t, "int(int, int)", rec.TypeSignature)
	require.True(t, rec.IsExpansionICE)
	require.True(t, rec.IsDefinitionLocationValid)
	require.Equal(t, "test.c:2:9", rec.DefinitionLocation)
	require.True(t, rec.IsInvocationLocationValid)
	require.Equal(t, "test.c:3:9", rec.InvocationLocation)
}

func TestArgumentInModifiableContext(t *testing.T) {
	rec := evaluateTop(t, `
#define INC(x) (x)++
int y;
void f(void) {
    INC(y);
}
`, "INC")
	require.Equal(t, "Expr", rec.ASTKind)
	require.True(t, rec.HasAlignedArguments)
	require.True(t, rec.IsAnyArgumentExpandedWhereModifiableValueRequired)
	//the ++ is on the callee side
	require.False(t, rec.DoesAnyArgumentHaveSideEffects)
	require.False(t, rec.DoesBodyContainDeclRefExpr)
	require.True(t, rec.DoesAnyArgumentContainDeclRefExpr)
}

func TestArgumentInAddressableContext(t *testing.T) {
	rec := evaluateTop(t, `
#define PTR(p) &(p)
int v;
void g(void) {
    PTR(v);
}
`, "PTR")
	require.True(t, rec.IsAnyArgumentExpandedWhereAddressableValueRequired)
	require.False(t, rec.IsAnyArgumentExpandedWhereModifiableValueRequired)
}

func TestArgumentConditionallyEvaluated(t *testing.T) {
	rec := evaluateTop(t, `
#define AND(a,b) ((a) && (b))
int f(void);
int g(void);
int h(void) {
    return AND(f(), g());
}
`, "AND")
	require.Equal(t, "Expr", rec.ASTKind)
	require.True(t, rec.HasAlignedArguments)
	require.True(t, rec.IsAnyArgumentConditionallyEvaluated)
	require.True(t, rec.DoesAnyArgumentContainDeclRefExpr)
}

func TestExpansionInICEContext(t *testing.T) {
	rec := evaluateTop(t, `
#define ZERO 0
int a[ZERO];
`, "ZERO")
	require.Equal(t, "Expr", rec.ASTKind)
	require.True(t, rec.IsObjectLike)
	require.Equal(t, 0, rec.NumArguments)
	require.True(t, rec.IsExpansionICE)
	require.True(t, rec.IsInvokedWhereICERequired)
}

func TestUnhygienicMacro(t *testing.T) {
	rec := evaluateTop(t, `
#define USE_LOCAL (lv + 1)
void m(void) {
    int lv;
    int x = USE_LOCAL;
}
`, "USE_LOCAL")
	require.Equal(t, "Expr", rec.ASTKind)
	require.False(t, rec.IsHygienic)
	require.True(t, rec.DoesBodyContainDeclRefExpr)
}

func TestControlFlowInExpansion(t *testing.T) {
	rec := evaluateTop(t, `
#define JUMP goto done
void n(void) {
    JUMP;
done:
    ;
}
`, "JUMP")
	require.Equal(t, "Stmt", rec.ASTKind)
	require.True(t, rec.DoesExpansionHaveControlFlowStmt)
}

func TestParenthesizedParameterBody(t *testing.T) {
	//A body that is just parens around a parameter must align cleanly.
	rec := evaluateTop(t, `
#define M(x) (x)
int q;
void k(void) {
    M(q);
}
`, "M")
	require.Equal(t, "Expr", rec.ASTKind)
	require.Equal(t, 1, rec.NumASTRoots)
	require.True(t, rec.HasAlignedArguments)
}

func TestDeclAlignedMacro(t *testing.T) {
	rec := evaluateTop(t, `
#define DECL int x
DECL;
`, "DECL")
	require.Equal(t, "Decl", rec.ASTKind)
	require.Equal(t, 1, rec.NumASTRoots)
	//body properties require a statement root
	require.False(t, rec.IsHygienic)
	require.Equal(t, "", rec.TypeSignature)
}

func TestTypeLocAlignedMacro(t *testing.T) {
	rec := evaluateTop(t, `
#define UINT unsigned int
UINT u;
`, "UINT")
	require.Equal(t, "TypeLoc", rec.ASTKind)
	require.False(t, rec.IsExpansionTypeNull)
	require.False(t, rec.IsExpansionTypeDefinedAfterMacro)
}

func TestUnalignedMacro(t *testing.T) {
	//The expansion covers only part of the expression it lands in.
	rec := evaluateTop(t, `
#define PLUS + 1
int x = 2 PLUS;
`, "PLUS")
	require.Equal(t, 0, rec.NumASTRoots)
	require.Equal(t, "", rec.ASTKind)
	require.False(t, rec.IsHygienic)
	require.False(t, rec.DoesBodyContainDeclRefExpr)
	require.Equal(t, "", rec.TypeSignature)
}

func TestBodyReferencesMacroDefinedAfter(t *testing.T) {
	rec := evaluateTop(t, `
#define LATER REAL
#define REAL 1
int x = LATER;
`, "LATER")
	require.True(t, rec.DoesBodyReferenceMacroDefinedAfterMacro)

	rec = evaluateTop(t, `
#define REAL 1
#define EARLIER REAL
int x = EARLIER;
`, "EARLIER")
	require.False(t, rec.DoesBodyReferenceMacroDefinedAfterMacro)
}

func TestBodyReferencesDeclDeclaredAfter(t *testing.T) {
	rec := evaluateTop(t, `
#define GET_G (g_counter)
int g_counter;
int x = GET_G;
`, "GET_G")
	require.True(t, rec.DoesBodyReferenceDeclDeclaredAfterMacro)

	rec = evaluateTop(t, `
int g_counter;
#define GET_G2 (g_counter)
int x = GET_G2;
`, "GET_G2")
	require.False(t, rec.DoesBodyReferenceDeclDeclaredAfterMacro)
}

func TestNamePresentInConditional(t *testing.T) {
	rec := evaluateTop(t, `
#define GUARD 1
#if defined(GUARD)
int x;
#endif
int y = GUARD;
`, "GUARD")
	require.True(t, rec.IsNamePresentInCPPConditional)
}

func TestSameNameAsOtherDeclaration(t *testing.T) {
	rec := evaluateTop(t, `
#define value 1
int x = value;
int value_of;
`, "value")
	//No declaration is named exactly value.
	require.False(t, rec.HasSameNameAsOtherDeclaration)

	//A declaration from before the #define shares the spelling.
	rec = evaluateTop(t, `
int status;
#define status 1
int x = status;
`, "status")
	require.True(t, rec.HasSameNameAsOtherDeclaration)
}

func TestExpansionTypeLocal(t *testing.T) {
	rec := evaluateTop(t, `
#define SELF(s) (s)
void w(void) {
    struct local { int a; } v;
    SELF(v);
}
`, "SELF")
	require.Equal(t, "Expr", rec.ASTKind)
	require.True(t, rec.IsExpansionTypeLocalType)
	require.True(t, rec.IsAnyArgumentTypeLocalType)
	require.True(t, rec.DoesSubexpressionExpandedFromBodyHaveLocalType)
}

func TestExpansionTypeDefinedAfterMacro(t *testing.T) {
	rec := evaluateTop(t, `
#define WRAP(s) (s)
struct late { int a; };
struct late gv;
void w(void) {
    WRAP(gv);
}
`, "WRAP")
	require.Equal(t, "Expr", rec.ASTKind)
	require.True(t, rec.IsExpansionTypeDefinedAfterMacro)
	require.True(t, rec.IsAnyArgumentTypeDefinedAfterMacro)
}

func TestModifiableAndAddressableExpansion(t *testing.T) {
	rec := evaluateTop(t, `
#define CELL cell_v
int cell_v;
void u(void) {
    CELL = 4;
}
`, "CELL")
	require.True(t, rec.IsInvokedWhereModifiableValueRequired)

	rec = evaluateTop(t, `
#define CELL2 cell_w
int cell_w;
void u2(void) {
    &CELL2;
}
`, "CELL2")
	require.True(t, rec.IsInvokedWhereAddressableValueRequired)
}

func TestDoubleSubstitutionAlignsPerInstance(t *testing.T) {
	c, tu := analyzeSrc(t, `
#define DOUBLE(x) ((x)+(x))
int y;
int z = DOUBLE(y);
`)
	idx := BuildAuxiliaryIndex(tu)
	ev := NewEvaluator(tu, idx, c.Defs)
	exp := c.Forest.Expansions[0]
	rec := ev.Evaluate(exp)
	require.True(t, rec.HasAlignedArguments)
	require.Len(t, exp.Arguments, 1)
	require.Equal(t, 2, exp.Arguments[0].NumExpansions())
	require.Len(t, exp.Arguments[0].AlignedRoots, 2)
}

func TestNeverExpandedArgument(t *testing.T) {
	rec := evaluateTop(t, `
#define FST(a,b) (a)
int x = FST(1, 2);
`, "FST")
	require.True(t, rec.HasAlignedArguments)
	require.True(t, rec.IsAnyArgumentNeverExpanded)
	require.Equal(t, "int(int, <Null>)", rec.TypeSignature)
}

func TestArgumentWithSideEffects(t *testing.T) {
	rec := evaluateTop(t, `
#define PASS(x) (x)
int y;
void s(void) {
    PASS(y++);
}
`, "PASS")
	require.True(t, rec.HasAlignedArguments)
	require.True(t, rec.DoesAnyArgumentHaveSideEffects)
}

func TestVoidExpansionType(t *testing.T) {
	rec := evaluateTop(t, `
#define CALL_NOTHING (do_nothing())
void do_nothing(void);
void t0(void) {
    CALL_NOTHING;
}
`, "CALL_NOTHING")
	require.Equal(t, "Expr", rec.ASTKind)
	require.True(t, rec.IsExpansionTypeVoid)
	require.Equal(t, "void", rec.TypeSignature)
}

func TestUniversalInvariants(t *testing.T) {
	sources := []struct {
		src, name string
	}{
		{"#define A 1\nint x = A;\n", "A"},
		{"#define B(a) (a)\nint q;\nvoid f(void) { B(q); }\n", "B"},
		{"#define C + 2\nint y = 1 C;\n", "C"},
		{"#define D int\nD z;\n", "D"},
	}
	for _, tc := range sources {
		rec := evaluateTop(t, tc.src, tc.name)
		require.Equal(t, 0, rec.InvocationDepth, tc.name)
		require.False(t, rec.IsInvokedInMacroArgument, tc.name)
		if rec.NumASTRoots != 1 {
			require.Equal(t, "", rec.ASTKind, tc.name)
			require.False(t, rec.IsHygienic, tc.name)
			require.False(t, rec.DoesBodyContainDeclRefExpr, tc.name)
			require.False(t, rec.DoesExpansionHaveControlFlowStmt, tc.name)
		}
		if rec.IsObjectLike {
			require.Equal(t, 0, rec.NumArguments, tc.name)
		}
	}
}
