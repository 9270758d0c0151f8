package parse

import "github.com/dipongkor/maki/cpp"

// TranslationUnit is the parsed form of one preprocessed source file.
// It plays the role of a source manager for consumers: it owns the
// post-preprocessing token stream in order, knows every declaration and
// written type occurrence, and answers structural queries over the
// tree.
type TranslationUnit struct {
	//The token stream the parser consumed, in order. Directive and
	//internal tokens never appear here.
	Tokens []*cpp.Token
	//File scope declarations in source order.
	TopDecls []Decl
	//Every declaration in the translation unit, including locals,
	//parameters, fields and enum constants.
	Decls []Decl
	//Every written occurrence of a type specifier.
	TypeLocs []*TypeLoc
	//The files the preprocessor opened.
	Files *cpp.FileSet

	tokIdx  map[*cpp.Token]int
	parents map[Node]Node
	nodes   []Node
}

// TokenIndex locates a token in the stream.
func (tu *TranslationUnit) TokenIndex(t *cpp.Token) (int, bool) {
	i, ok := tu.tokIdx[t]
	return i, ok
}

// NextToken returns the token following t in the stream, or nil.
func (tu *TranslationUnit) NextToken(t *cpp.Token) *cpp.Token {
	i, ok := tu.tokIdx[t]
	if !ok || i+1 >= len(tu.Tokens) {
		return nil
	}
	return tu.Tokens[i+1]
}

// IsBeforeInTU orders two tokens in translation unit order. Never
// compare raw positions across files, token order is the total order.
func (tu *TranslationUnit) IsBeforeInTU(a, b *cpp.Token) bool {
	return a.TUOff < b.TUOff
}

// Parent returns the parent node of n, or nil for roots.
func (tu *TranslationUnit) Parent(n Node) Node {
	return tu.parents[n]
}

// AllNodes returns every node of the tree in preorder.
func (tu *TranslationUnit) AllNodes() []Node {
	return tu.nodes
}

// finalize indexes the token stream and builds the parent map.
func (tu *TranslationUnit) finalize() {
	tu.tokIdx = make(map[*cpp.Token]int, len(tu.Tokens))
	for i, t := range tu.Tokens {
		tu.tokIdx[t] = i
	}
	tu.parents = make(map[Node]Node)
	var walk func(n Node)
	walk = func(n Node) {
		tu.nodes = append(tu.nodes, n)
		for _, c := range Children(n) {
			tu.parents[c] = n
			walk(c)
		}
	}
	for _, d := range tu.TopDecls {
		walk(d)
	}
	//Type specifier occurrences are leaves that the decl walk does not
	//always reach (declaration specifiers are not children of their
	//declarators).
	seen := make(map[Node]bool, len(tu.nodes))
	for _, n := range tu.nodes {
		seen[n] = true
	}
	for _, tl := range tu.TypeLocs {
		if !seen[tl] {
			tu.nodes = append(tu.nodes, tl)
		}
	}
}
