package analysis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func reportFor(t *testing.T, src string) string {
	t.Helper()
	c, tu := analyzeSrc(t, src)
	var buf bytes.Buffer
	require.NoError(t, c.HandleTranslationUnit(tu, &buf))
	return buf.String()
}

func TestReportGolden(t *testing.T) {
	got := reportFor(t, "#define FOO 1\nint x = FOO;\n")

	want := strings.Join([]string{
		"Definition FOO true test.c:1:9",
		"Top level invocation\t{",
		`    "Name" : "FOO",`,
		`    "DefinitionLocation" : "test.c:1:9",`,
		`    "InvocationLocation" : "test.c:2:9",`,
		`    "ASTKind" : "Expr",`,
		`    "TypeSignature" : "int",`,
		`    "InvocationDepth" : 0,`,
		`    "NumASTRoots" : 1,`,
		`    "NumArguments" : 0,`,
		`    "HasStringification" : false,`,
		`    "HasTokenPasting" : false,`,
		`    "HasAlignedArguments" : true,`,
		`    "HasSameNameAsOtherDeclaration" : false,`,
		`    "DoesExpansionHaveControlFlowStmt" : false,`,
		`    "DoesBodyReferenceMacroDefinedAfterMacro" : false,`,
		`    "DoesBodyReferenceDeclDeclaredAfterMacro" : false,`,
		`    "DoesBodyContainDeclRefExpr" : false,`,
		`    "DoesSubexpressionExpandedFromBodyHaveLocalType" : false,`,
		`    "DoesSubexpressionExpandedFromBodyHaveTypeDefinedAfterMacro" : false,`,
		`    "DoesAnyArgumentHaveSideEffects" : false,`,
		`    "DoesAnyArgumentContainDeclRefExpr" : false,`,
		`    "IsHygienic" : true,`,
		`    "IsDefinitionLocationValid" : true,`,
		`    "IsInvocationLocationValid" : true,`,
		`    "IsObjectLike" : true,`,
		`    "IsInvokedInMacroArgument" : false,`,
		`    "IsNamePresentInCPPConditional" : false,`,
		`    "IsExpansionICE" : true,`,
		`    "IsExpansionTypeNull" : false,`,
		`    "IsExpansionTypeAnonymous" : false,`,
		`    "IsExpansionTypeLocalType" : false,`,
		`    "IsExpansionTypeDefinedAfterMacro" : false,`,
		`    "IsExpansionTypeVoid" : false,`,
		`    "IsAnyArgumentTypeNull" : false,`,
		`    "IsAnyArgumentTypeAnonymous" : false,`,
		`    "IsAnyArgumentTypeLocalType" : false,`,
		`    "IsAnyArgumentTypeDefinedAfterMacro" : false,`,
		`    "IsAnyArgumentTypeVoid" : false,`,
		`    "IsInvokedWhereModifiableValueRequired" : false,`,
		`    "IsInvokedWhereAddressableValueRequired" : false,`,
		`    "IsInvokedWhereICERequired" : false,`,
		`    "IsAnyArgumentExpandedWhereModifiableValueRequired" : false,`,
		`    "IsAnyArgumentExpandedWhereAddressableValueRequired" : false,`,
		`    "IsAnyArgumentConditionallyEvaluated" : false,`,
		`    "IsAnyArgumentNeverExpanded" : false,`,
		`    "IsAnyArgumentNotAnExpression" : false`,
		" }",
		"",
	}, "\n")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestReportNestedAndArgEmbedded(t *testing.T) {
	src := `#define BAR 2
#define ID(x) x
#define FOO BAR
int a = FOO;
int b = ID(BAR);
`
	got := reportFor(t, src)

	require.Contains(t, got, "Nested Invocation BAR\n")
	require.Contains(t, got, "Invoked In Macro Argument BAR\n")
	//Definitions are reported sorted by name.
	iBar := strings.Index(got, "Definition BAR")
	iFoo := strings.Index(got, "Definition FOO")
	iID := strings.Index(got, "Definition ID")
	require.True(t, iBar >= 0 && iFoo > iBar && iID > iFoo, "definitions out of order: %s", got)
}

func TestReportDeterministic(t *testing.T) {
	src := `#define A 1
#define B(x) (x)
#ifdef A
int p = A;
#endif
int q;
void f(void) { B(q); }
`
	first := reportFor(t, src)
	second := reportFor(t, src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reports differ between runs:\n%s", diff)
	}
	require.Contains(t, first, "InspectedByCPP A\n")
}
