package analysis

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

func TestTryGetFullSourceLoc(t *testing.T) {
	fs := cpp.NewFileSet()
	fs.Register("a.c", "/abs/a.c")
	fs.Register("nameless.c", "")

	cases := []struct {
		pos   cpp.FilePos
		valid bool
		out   string
	}{
		{cpp.FilePos{}, false, "Invalid SLoc"},
		{cpp.FilePos{File: "", Line: 3, Col: 1}, false, "Invalid file ID"},
		{cpp.FilePos{File: "unknown.c", Line: 1, Col: 1}, false, "File without FileEntry"},
		{cpp.FilePos{File: "nameless.c", Line: 1, Col: 1}, false, "Nameless file"},
		{cpp.FilePos{File: "a.c", Line: 0, Col: 1}, false, "Invalid File SLoc"},
		{cpp.FilePos{File: "a.c", Line: 12, Col: 9}, true, "/abs/a.c:12:9"},
	}
	for _, tc := range cases {
		valid, out := TryGetFullSourceLoc(fs, tc.pos)
		require.Equal(t, tc.valid, valid, "%v", tc.pos)
		require.Equal(t, tc.out, out, "%v", tc.pos)
	}
}

type mapIncludes map[string]string

func (m mapIncludes) IncludeQuote(requestingFile, headerPath string) (string, io.Reader, error) {
	src, ok := m[headerPath]
	if !ok {
		return "", nil, fmt.Errorf("header %s not found", headerPath)
	}
	return headerPath, strings.NewReader(src), nil
}

func (m mapIncludes) IncludeAngled(requestingFile, headerPath string) (string, io.Reader, error) {
	return m.IncludeQuote(requestingFile, headerPath)
}

func TestIncludeGlobality(t *testing.T) {
	is := mapIncludes{
		"top.h":    "int global_from_header;\n",
		"fields.h": "int f;\n",
	}
	src := `#include "top.h"
struct s {
#include "fields.h"
};
`
	lexer := cpp.Lex("test.c", bytes.NewBufferString(src))
	pp := cpp.New(lexer, is)
	c := NewConsumer(pp)
	tu, err := parse.Parse(pp)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.HandleTranslationUnit(tu, &buf))
	out := buf.String()

	require.Contains(t, out, "Include true top.h\n")
	require.Contains(t, out, "Include false fields.h\n")
}

func TestIncludeLocalPropagation(t *testing.T) {
	//A file included at a non-global location taints includes made
	//from within it.
	is := mapIncludes{
		"inner.h": "int inner_v;\n",
		"outer.h": "int outer_v;\n#include \"inner.h\"\n",
	}
	src := `struct s {
int pad;
#include "outer.h"
};
`
	lexer := cpp.Lex("test.c", bytes.NewBufferString(src))
	pp := cpp.New(lexer, is)
	c := NewConsumer(pp)
	tu, err := parse.Parse(pp)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.HandleTranslationUnit(tu, &buf))
	out := buf.String()

	require.Contains(t, out, "Include false outer.h\n")
	require.Contains(t, out, "Include false inner.h\n")
}
