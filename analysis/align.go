package analysis

import (
	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

// The alignment matcher. A node aligns with an expansion when its
// tokens are exactly the tokens the expansion produced: the node's
// first and last token sit on the boundaries of the expansion's
// replacement footprint in the translation unit token stream, and
// nothing the expansion produced lies outside the node. This is the
// token-level rendition of comparing spelling ranges through the
// expansion maps: an implicit node never aligns, since it was never
// spelled.

// FindAlignedASTNodes fills ASTRoots and AlignedRoot of exp, and
// AlignedRoots of each argument.
func FindAlignedASTNodes(exp *MacroExpansionNode, tu *parse.TranslationUnit) {
	if len(exp.DefinitionTokens) != 0 {
		lo, hi, ok := footprint(tu, func(t *cpp.Token) bool {
			return t.FromInvocation(exp.Invocation)
		})
		if ok {
			for _, n := range tu.AllNodes() {
				if matchesFootprint(tu, n, lo, hi) {
					exp.ASTRoots = append(exp.ASTRoots, toDeclStmtTypeLoc(n))
				}
			}
		}
	}
	if len(exp.ASTRoots) == 1 {
		exp.AlignedRoot = &exp.ASTRoots[0]
	}

	for _, arg := range exp.Arguments {
		for _, inst := range arg.Substitutions() {
			inst := inst
			lo, hi, ok := footprint(tu, func(t *cpp.Token) bool {
				return t.FromArgInstance(inst)
			})
			if !ok {
				continue
			}
			for _, n := range tu.AllNodes() {
				if matchesFootprint(tu, n, lo, hi) {
					arg.AlignedRoots = append(arg.AlignedRoots, toDeclStmtTypeLoc(n))
				}
			}
		}
	}
}

// Substitutions exposes the substitution instances of the argument.
func (a *MacroExpansionArgument) Substitutions() []*cpp.ArgSubst {
	return a.raw.Substs
}

// footprint finds the contiguous run of stream tokens satisfying from.
// ok is false when no token matches or the matching tokens are not
// contiguous.
func footprint(tu *parse.TranslationUnit, from func(*cpp.Token) bool) (lo, hi int, ok bool) {
	lo, hi = -1, -1
	for i, t := range tu.Tokens {
		if !from(t) {
			continue
		}
		if lo == -1 {
			lo = i
		}
		hi = i
	}
	if lo == -1 {
		return 0, 0, false
	}
	for i := lo; i <= hi; i++ {
		if !from(tu.Tokens[i]) {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

func matchesFootprint(tu *parse.TranslationUnit, n parse.Node, lo, hi int) bool {
	if _, implicit := n.(*parse.ImplicitCast); implicit {
		return false
	}
	nlo, nhi := n.Span()
	li, lok := tu.TokenIndex(nlo)
	ri, rok := tu.TokenIndex(nhi)
	return lok && rok && li == lo && ri == hi
}

func toDeclStmtTypeLoc(n parse.Node) DeclStmtTypeLoc {
	switch n := n.(type) {
	case *parse.TypeLoc:
		return DeclStmtTypeLoc{TL: n}
	case parse.Decl:
		return DeclStmtTypeLoc{D: n}
	default:
		return DeclStmtTypeLoc{ST: n}
	}
}
