package parse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dipongkor/maki/cpp"
)

func parseSource(t *testing.T, src string) *TranslationUnit {
	t.Helper()
	lexer := cpp.Lex("test.c", bytes.NewBufferString(src))
	pp := cpp.New(lexer, nil)
	tu, err := Parse(pp)
	require.NoError(t, err)
	return tu
}

func findNodes[T Node](tu *TranslationUnit) []T {
	var ret []T
	for _, n := range tu.AllNodes() {
		if v, ok := n.(T); ok {
			ret = append(ret, v)
		}
	}
	return ret
}

func TestParseSimpleDecl(t *testing.T) {
	tu := parseSource(t, "int x = 1 + 2;")
	require.Len(t, tu.TopDecls, 1)
	vd, ok := tu.TopDecls[0].(*VarDecl)
	require.True(t, ok)
	require.Equal(t, "x", vd.Name)
	require.Equal(t, "int", vd.Ty.String())
	require.False(t, vd.IsLocal)

	b, ok := vd.Init.(*Binop)
	require.True(t, ok)
	require.Equal(t, cpp.TokenKind('+'), b.Op)
	require.Equal(t, "int", b.Type().String())
	v, isICE := Fold(vd.Init)
	require.True(t, isICE)
	require.Equal(t, int64(3), v)
}

func TestTypedefResolution(t *testing.T) {
	tu := parseSource(t, "typedef unsigned int uint;\nuint x;")
	require.Len(t, tu.TopDecls, 2)
	td, ok := tu.TopDecls[0].(*TypedefDecl)
	require.True(t, ok)
	require.Equal(t, "uint", td.Name)

	vd, ok := tu.TopDecls[1].(*VarDecl)
	require.True(t, ok)
	//The canonical rendering desugars the typedef.
	require.Equal(t, "unsigned int", vd.Ty.String())
	require.True(t, typesEqual(vd.Ty, CUInt))
}

func TestStructDecl(t *testing.T) {
	tu := parseSource(t, "struct point { int x; int y; };\nstruct point p;")
	rds := findNodes[*RecordDecl](tu)
	require.Len(t, rds, 1)
	require.Equal(t, "point", rds[0].Name)
	require.Len(t, rds[0].Fields, 2)

	vds := findNodes[*VarDecl](tu)
	require.Len(t, vds, 1)
	st, ok := Canonical(vds[0].Ty).(*Struct)
	require.True(t, ok)
	require.Equal(t, "struct point", st.String())
	require.False(t, st.Local)
}

func TestBitfieldWidth(t *testing.T) {
	tu := parseSource(t, "struct flags { unsigned int a : 1; int b; };")
	fds := findNodes[*FieldDecl](tu)
	require.Len(t, fds, 2)
	require.NotNil(t, fds[0].BitWidth)
	require.Nil(t, fds[1].BitWidth)
}

func TestEnumValues(t *testing.T) {
	tu := parseSource(t, "enum color { RED, GREEN = 5, BLUE };")
	eds := findNodes[*EnumDecl](tu)
	require.Len(t, eds, 1)
	consts := eds[0].Consts
	require.Len(t, consts, 3)
	require.Equal(t, int64(0), consts[0].Val)
	require.Equal(t, int64(5), consts[1].Val)
	require.Equal(t, int64(6), consts[2].Val)
}

func TestLocalStructIsLocal(t *testing.T) {
	tu := parseSource(t, "void f(void) { struct s { int x; } v; v.x = 1; }")
	rds := findNodes[*RecordDecl](tu)
	require.Len(t, rds, 1)
	require.True(t, rds[0].Rec.Local)
}

func TestFunctionAndReferences(t *testing.T) {
	src := `
int add(int a, int b) {
    int r = a + b;
    return r;
}
`
	tu := parseSource(t, src)
	fds := findNodes[*FuncDecl](tu)
	require.Len(t, fds, 1)
	fd := fds[0]
	require.Equal(t, "add", fd.Name)
	require.NotNil(t, fd.Body)
	require.Len(t, fd.Params, 2)

	var refs []*Ident
	for _, id := range findNodes[*Ident](tu) {
		if id.Ref != nil {
			refs = append(refs, id)
		}
	}
	//a, b in the initializer and r in the return.
	require.Len(t, refs, 3)
	for _, id := range refs {
		vd, ok := id.Ref.(*VarDecl)
		require.True(t, ok)
		require.True(t, vd.HasLocalStorage())
	}
}

func TestGotoSpanExcludesSemicolon(t *testing.T) {
	src := `
void f(void) {
loop:
    goto loop;
}
`
	tu := parseSource(t, src)
	gotos := findNodes[*Goto](tu)
	require.Len(t, gotos, 1)
	_, hi := gotos[0].Span()
	require.Equal(t, "loop", hi.Val)
}

func TestStatementForms(t *testing.T) {
	src := `
int main(void) {
    int i;
    for (i = 0; i < 10; i++) {
        if (i == 5)
            break;
        else
            continue;
    }
    while (i > 0)
        i--;
    do { i++; } while (i < 3);
    switch (i) {
    case 1:
        i = 2;
        break;
    default:
        break;
    }
    return 0;
}
`
	tu := parseSource(t, src)
	require.Len(t, findNodes[*For](tu), 1)
	require.Len(t, findNodes[*If](tu), 1)
	require.Len(t, findNodes[*While](tu), 1)
	require.Len(t, findNodes[*DoWhile](tu), 1)
	require.Len(t, findNodes[*Switch](tu), 1)
	cases := findNodes[*Case](tu)
	require.Len(t, cases, 1)
	//The case value's parent is the case statement.
	require.Equal(t, Node(cases[0]), tu.Parent(cases[0].Val))
}

func TestArraySizeIsChildOfDecl(t *testing.T) {
	tu := parseSource(t, "int a[3 + 4];")
	vds := findNodes[*VarDecl](tu)
	require.Len(t, vds, 1)
	vd := vds[0]
	require.Len(t, vd.SizeExprs, 1)
	require.Equal(t, Node(vd), tu.Parent(vd.SizeExprs[0]))
	arr, ok := Canonical(vd.Ty).(*Array)
	require.True(t, ok)
	require.Equal(t, 7, arr.Dim)
}

func TestImplicitCastInsertion(t *testing.T) {
	tu := parseSource(t, "long y;\nint x;\nlong z = y + x;")
	casts := findNodes[*ImplicitCast](tu)
	//x is converted to long for the addition.
	require.NotEmpty(t, casts)
	found := false
	for _, c := range casts {
		if id, ok := c.X.(*Ident); ok && id.Name == "x" {
			require.Equal(t, "long", c.Type().String())
			found = true
		}
	}
	require.True(t, found)
}

func TestStaticLocalHasNoLocalStorage(t *testing.T) {
	tu := parseSource(t, "void f(void) { static int counter; counter = 1; }")
	for _, vd := range findNodes[*VarDecl](tu) {
		if vd.Name == "counter" {
			require.True(t, vd.IsLocal)
			require.True(t, vd.IsStatic)
			require.False(t, vd.HasLocalStorage())
			return
		}
	}
	t.Fatal("counter not found")
}

func TestSizeofIsICE(t *testing.T) {
	tu := parseSource(t, "int x = sizeof(int);")
	vds := findNodes[*VarDecl](tu)
	require.Len(t, vds, 1)
	v, ok := Fold(vds[0].Init)
	require.True(t, ok)
	require.Equal(t, int64(4), v)
}

func TestNextToken(t *testing.T) {
	tu := parseSource(t, "int x;")
	require.Len(t, tu.Tokens, 3)
	next := tu.NextToken(tu.Tokens[1])
	require.NotNil(t, next)
	require.Equal(t, ";", next.Val)
	require.Nil(t, tu.NextToken(tu.Tokens[2]))
}
