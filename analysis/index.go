package analysis

import (
	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

// DeclRange is the extent of one declaration, extended past the next
// token so a trailing semicolon is swallowed.
type DeclRange struct {
	D     parse.Decl
	Range cpp.SourceRange
}

// AuxiliaryIndex precomputes the node sets several property checks
// consult. It is built by a single traversal once the translation unit
// is complete.
type AuxiliaryIndex struct {
	//Every expression referencing a declaration.
	AllDeclRefs []*parse.Ident
	//Subset referencing declarations with function local storage.
	LocalDeclRefs map[parse.Node]bool
	//Assignments and pre/post increment/decrement.
	SideEffectExprs []parse.Expr
	//The modified subexpression of each side effect expression.
	SideEffectLHSs []parse.Expr
	//Unary & expressions.
	AddrOfExprs []*parse.Unop
	//Branches of ?: and operands of && and ||.
	ShortCircuitOperands []parse.Expr
	//Expressions whose type resolves to a locally defined tag.
	LocalTypeExprs []parse.Expr
	//Extents of every declaration.
	DeclRanges []DeclRange
}

func isAssignOp(k cpp.TokenKind) bool {
	switch k {
	case '=', cpp.ADD_ASSIGN, cpp.SUB_ASSIGN, cpp.MUL_ASSIGN, cpp.QUO_ASSIGN,
		cpp.REM_ASSIGN, cpp.AND_ASSIGN, cpp.OR_ASSIGN, cpp.XOR_ASSIGN,
		cpp.SHL_ASSIGN, cpp.SHR_ASSIGN:
		return true
	}
	return false
}

// BuildAuxiliaryIndex walks the translation unit once and fills every
// set.
func BuildAuxiliaryIndex(tu *parse.TranslationUnit) *AuxiliaryIndex {
	idx := &AuxiliaryIndex{
		LocalDeclRefs: make(map[parse.Node]bool),
	}

	for _, n := range tu.AllNodes() {
		switch n := n.(type) {
		case *parse.Ident:
			if n.Ref == nil {
				break
			}
			idx.AllDeclRefs = append(idx.AllDeclRefs, n)
			if vd, ok := n.Ref.(*parse.VarDecl); ok && vd.HasLocalStorage() {
				idx.LocalDeclRefs[n] = true
			}
		case *parse.Binop:
			if isAssignOp(n.Op) {
				idx.SideEffectExprs = append(idx.SideEffectExprs, n)
				idx.SideEffectLHSs = append(idx.SideEffectLHSs, n.L)
			}
			if n.Op == cpp.LAND || n.Op == cpp.LOR {
				idx.ShortCircuitOperands = append(idx.ShortCircuitOperands, n.L, n.R)
			}
		case *parse.Unop:
			if n.Op == cpp.INC || n.Op == cpp.DEC {
				idx.SideEffectExprs = append(idx.SideEffectExprs, n)
				idx.SideEffectLHSs = append(idx.SideEffectLHSs, n.X)
			}
			if n.Op == '&' && !n.Postfix {
				idx.AddrOfExprs = append(idx.AddrOfExprs, n)
			}
		case *parse.Cond:
			idx.ShortCircuitOperands = append(idx.ShortCircuitOperands, n.T, n.F)
		}

		if e, ok := n.(parse.Expr); ok {
			if _, implicit := n.(*parse.ImplicitCast); !implicit {
				if hasLocalType(e.Type()) {
					idx.LocalTypeExprs = append(idx.LocalTypeExprs, e)
				}
			}
		}
	}

	for _, d := range tu.Decls {
		lo, hi := d.Span()
		b := fileLoc(lo)
		e := hi.FileRange().End
		//Extend past the next token to absorb a trailing semicolon.
		if next := tu.NextToken(hi); next != nil {
			e = next.FileRange().End
		}
		if !b.IsValid() || !e.IsValid() {
			continue
		}
		idx.DeclRanges = append(idx.DeclRanges, DeclRange{d, cpp.SourceRange{Begin: b, End: e}})
	}

	return idx
}
