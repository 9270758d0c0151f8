package analysis

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

// Errors the forest builder can record. Neither aborts preprocessing,
// the consumer surfaces them after the translation unit is done.
var (
	ErrExpansionCorrupt = errors.New("macro expansion corrupt")
	ErrTokenGap         = errors.New("token gap detected in macro definition")
)

// DeclStmtTypeLoc holds one aligned AST node. Exactly one field is set.
type DeclStmtTypeLoc struct {
	//A statement or expression.
	ST parse.Node
	D  parse.Decl
	TL *parse.TypeLoc
}

// Node returns whichever slot is set.
func (d DeclStmtTypeLoc) Node() parse.Node {
	if d.ST != nil {
		return d.ST
	}
	if d.D != nil {
		return d.D
	}
	if d.TL != nil {
		return d.TL
	}
	return nil
}

// MacroExpansionArgument records one actual argument of an expansion.
type MacroExpansionArgument struct {
	Name string
	//The caller's tokens spelling the argument.
	Tokens []*cpp.Token
	//AST nodes aligned with this argument, one per substitution
	//instance when the argument is aligned.
	AlignedRoots []DeclStmtTypeLoc

	raw *cpp.InvocationArg
}

// NumExpansions is the number of times the argument was substituted
// into the macro body.
func (a *MacroExpansionArgument) NumExpansions() int {
	return a.raw.NumExpansions()
}

// Aligned reports whether every substitution instance found its node.
func (a *MacroExpansionArgument) Aligned() bool {
	return len(a.AlignedRoots) == a.NumExpansions()
}

// MacroExpansionNode is one node of the macro forest.
type MacroExpansionNode struct {
	//The name of the expanded macro
	Name string
	//The hash of the macro this expansion is an expansion of,
	//content addressed from the definition location and body.
	MacroHash string
	Macro     *cpp.Macro
	//The invocation event this node was built from
	Invocation *cpp.Invocation
	//The source range that the definition of this expanded macro spans
	DefinitionRange cpp.SourceRange
	//The tokens in the definition of this expanded macro
	DefinitionTokens []*cpp.Token
	//The source range of the invocation as the developer wrote it.
	//The spelling range of nested expansions is inside the definition
	//of the macro whose expansion they are nested under.
	SpellingRange cpp.SourceRange
	//Presence of # and ## in the macro body
	HasStringification bool
	HasTokenPasting    bool
	//How deeply nested this expansion is, 0 for top level
	Depth int
	//True when the expansion was triggered from tokens the developer
	//wrote as a macro argument
	InMacroArg bool
	Parent     *MacroExpansionNode
	//Invocations directly expanded under this one, in expansion order
	Children []*MacroExpansionNode
	//The AST roots of this expansion, if any
	ASTRoots []DeclStmtTypeLoc
	//The AST root this expansion is aligned with, set iff there is
	//exactly one candidate
	AlignedRoot *DeclStmtTypeLoc
	//The arguments to this macro invocation, if any
	Arguments []*MacroExpansionArgument
}

// Descendants collects every expansion nested below e using BFS.
func (e *MacroExpansionNode) Descendants() []*MacroExpansionNode {
	var ret []*MacroExpansionNode
	queue := append([]*MacroExpansionNode(nil), e.Children...)
	for len(queue) != 0 {
		cur := queue[0]
		queue = queue[1:]
		ret = append(ret, cur)
		queue = append(queue, cur.Children...)
	}
	return ret
}

// MacroForest reconstructs the tree of macro invocations by observing
// preprocessor expansion events.
type MacroForest struct {
	cpp.BasePPCallbacks
	//Every expansion in begin order. Roots are the Depth 0 entries.
	Expansions []*MacroExpansionNode
	//First corruption detected while building, nil when clean.
	Err error

	open []*MacroExpansionNode
}

func NewMacroForest() *MacroForest {
	return &MacroForest{}
}

// Roots returns the top level expansions.
func (mf *MacroForest) Roots() []*MacroExpansionNode {
	var roots []*MacroExpansionNode
	for _, e := range mf.Expansions {
		if e.Depth == 0 {
			roots = append(roots, e)
		}
	}
	return roots
}

func (mf *MacroForest) fail(err error) {
	if mf.Err == nil {
		mf.Err = err
	}
}

func (mf *MacroForest) MacroExpands(inv *cpp.Invocation) {
	node := &MacroExpansionNode{
		Name:             inv.Name,
		MacroHash:        macroHash(inv.Macro),
		Macro:            inv.Macro,
		Invocation:       inv,
		DefinitionRange:  inv.Macro.DefinitionRange(),
		DefinitionTokens: inv.Macro.Tokens,
		SpellingRange:    inv.SpellingRange(),
		InMacroArg:       inv.InMacroArg,
	}
	node.HasStringification, node.HasTokenPasting = scanHashOperators(inv.Macro.Tokens)

	//The definition must be recoverable as one contiguous run of the
	//defining file.
	for _, t := range inv.Macro.Tokens {
		if t.Pos.File != inv.Macro.DefPos.File {
			mf.fail(fmt.Errorf("%w: %s", ErrTokenGap, inv.Name))
			break
		}
	}

	if len(mf.open) != 0 {
		parent := mf.open[len(mf.open)-1]
		node.Parent = parent
		node.Depth = parent.Depth + 1
		parent.Children = append(parent.Children, node)
	}
	mf.open = append(mf.open, node)
	mf.Expansions = append(mf.Expansions, node)
}

func (mf *MacroForest) MacroExpanded(inv *cpp.Invocation) {
	if len(mf.open) == 0 {
		mf.fail(fmt.Errorf("%w: end of %s without begin", ErrExpansionCorrupt, inv.Name))
		return
	}
	node := mf.open[len(mf.open)-1]
	if node.Invocation != inv {
		mf.fail(fmt.Errorf("%w: mismatched end of %s", ErrExpansionCorrupt, inv.Name))
		return
	}
	mf.open = mf.open[:len(mf.open)-1]
	for _, a := range inv.Args {
		node.Arguments = append(node.Arguments, &MacroExpansionArgument{
			Name:   a.Name,
			Tokens: a.Tokens,
			raw:    a,
		})
	}
}

// scanHashOperators reports the presence of stringification (# not part
// of ##) and token pasting (##) in a macro body. The lexer spells ## as
// two adjacent # tokens.
func scanHashOperators(body []*cpp.Token) (stringify, paste bool) {
	for i := 0; i < len(body); i++ {
		if body[i].Kind != cpp.HASH {
			continue
		}
		if i+1 < len(body) && body[i+1].Kind == cpp.HASH {
			paste = true
			i++
			continue
		}
		stringify = true
	}
	return stringify, paste
}

func macroHash(m *cpp.Macro) string {
	h := xxh3.New()
	h.WriteString(m.DefPos.String())
	h.WriteString("\x00")
	for _, t := range m.Tokens {
		h.WriteString(t.Val)
		h.WriteString(" ")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
