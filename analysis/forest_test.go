package analysis

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dipongkor/maki/cpp"
)

// runPP drives the preprocessor to EOF with a forest attached, without
// parsing. Useful for macros whose expansions are not parseable C.
func runPP(t *testing.T, src string) *MacroForest {
	t.Helper()
	lexer := cpp.Lex("test.c", bytes.NewBufferString(src))
	pp := cpp.New(lexer, nil)
	mf := NewMacroForest()
	pp.AddCallbacks(mf)
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "preprocessor did not terminate")
		tok, err := pp.Next()
		require.NoError(t, err)
		if tok.Kind == cpp.EOF {
			break
		}
	}
	require.NoError(t, mf.Err)
	return mf
}

func TestForestNesting(t *testing.T) {
	src := "#define BAR 2\n#define FOO BAR + 1\nFOO\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 2)

	foo, bar := mf.Expansions[0], mf.Expansions[1]
	require.Equal(t, "FOO", foo.Name)
	require.Equal(t, 0, foo.Depth)
	require.Nil(t, foo.Parent)
	require.Equal(t, "BAR", bar.Name)
	require.Equal(t, 1, bar.Depth)
	require.Equal(t, foo, bar.Parent)
	require.Equal(t, []*MacroExpansionNode{bar}, foo.Children)
	require.Equal(t, []*MacroExpansionNode{bar}, foo.Descendants())
	require.Len(t, mf.Roots(), 1)
}

func TestForestSpellingRanges(t *testing.T) {
	src := "#define BAR 2\n#define FOO BAR\nFOO\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 2)
	foo, bar := mf.Expansions[0], mf.Expansions[1]

	//The root is spelled where the developer invoked it.
	require.Equal(t, 3, foo.SpellingRange.Begin.Line)
	//The nested invocation is spelled inside FOO's definition.
	require.True(t, foo.DefinitionRange.Contains(bar.SpellingRange.Begin),
		"nested spelling %s should be inside parent definition %s",
		bar.SpellingRange, foo.DefinitionRange)
}

func TestForestArguments(t *testing.T) {
	src := "#define DOUBLE(x) ((x)+(x))\nDOUBLE(y)\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 1)
	exp := mf.Expansions[0]
	require.Len(t, exp.Arguments, 1)
	arg := exp.Arguments[0]
	require.Equal(t, "x", arg.Name)
	require.Equal(t, 2, arg.NumExpansions())
	require.Len(t, arg.Tokens, 1)
	require.Equal(t, "y", arg.Tokens[0].Val)
}

func TestForestInMacroArg(t *testing.T) {
	src := "#define ID(x) x\n#define ONE 1\nID(ONE)\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 2)
	id, one := mf.Expansions[0], mf.Expansions[1]
	require.False(t, id.InMacroArg)
	require.True(t, one.InMacroArg)
}

func TestHashOperatorFlags(t *testing.T) {
	src := "#define S(x) #x\n#define P(a,b) a ## b\n#define PLAIN(x) (x)\nS(q)\nP(u,v)\nPLAIN(1)\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 3)

	byName := make(map[string]*MacroExpansionNode)
	for _, e := range mf.Expansions {
		byName[e.Name] = e
	}
	require.True(t, byName["S"].HasStringification)
	require.False(t, byName["S"].HasTokenPasting)
	require.False(t, byName["P"].HasStringification)
	require.True(t, byName["P"].HasTokenPasting)
	require.False(t, byName["PLAIN"].HasStringification)
	require.False(t, byName["PLAIN"].HasTokenPasting)
}

func TestMacroHashStability(t *testing.T) {
	src := "#define FOO 1\n#define BAR 1\nFOO FOO BAR\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 3)
	require.NotEmpty(t, mf.Expansions[0].MacroHash)
	require.Equal(t, mf.Expansions[0].MacroHash, mf.Expansions[1].MacroHash)
	require.NotEqual(t, mf.Expansions[0].MacroHash, mf.Expansions[2].MacroHash)
}

func TestObjectLikeHasNoArguments(t *testing.T) {
	src := "#define ZERO 0\nZERO\n"
	mf := runPP(t, src)
	require.Len(t, mf.Expansions, 1)
	exp := mf.Expansions[0]
	require.True(t, exp.Macro.IsObjectLike())
	require.Empty(t, exp.Arguments)
}
