package parse

import (
	"github.com/dipongkor/maki/cpp"
)

// Folding of integral constant expressions.
//
// The language requires certain expression positions (case labels,
// enumerator initializers, bit-field widths, array sizes) to be
// evaluable at compile time. Fold implements that evaluation and
// doubles as the is-this-an-ICE predicate.

// Fold evaluates e as an integral constant expression. The second
// result is false when e is not an ICE.
func Fold(e Expr) (int64, bool) {
	switch e := e.(type) {
	case *Constant:
		return e.Val, true
	case *Paren:
		return Fold(e.X)
	case *ImplicitCast:
		return Fold(e.X)
	case *Ident:
		if ec, ok := e.Ref.(*EnumConstDecl); ok {
			return ec.Val, true
		}
		return 0, false
	case *Sizeof:
		var t CType
		if e.TL != nil {
			t = e.TL.Ty
		} else if e.X != nil {
			t = e.X.Type()
		}
		if t == nil {
			return 0, false
		}
		if _, isFn := Canonical(t).(*FunctionType); isFn {
			return 0, false
		}
		return int64(t.GetSize()), true
	case *Cast:
		if e.TL == nil || !IsIntType(e.TL.Ty) {
			return 0, false
		}
		return Fold(e.X)
	case *Unop:
		if e.Postfix {
			return 0, false
		}
		v, ok := Fold(e.X)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case cpp.ADD:
			return v, true
		case cpp.SUB:
			return -v, true
		case cpp.BNOT:
			return ^v, true
		case cpp.NOT:
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
		return 0, false
	case *Binop:
		l, lok := Fold(e.L)
		if !lok {
			return 0, false
		}
		r, rok := Fold(e.R)
		if !rok {
			return 0, false
		}
		return foldBinop(e.Op, l, r)
	case *Cond:
		c, ok := Fold(e.Cnd)
		if !ok {
			return 0, false
		}
		t, tok := Fold(e.T)
		f, fok := Fold(e.F)
		if !tok || !fok {
			return 0, false
		}
		if c != 0 {
			return t, true
		}
		return f, true
	}
	return 0, false
}

func foldBinop(op cpp.TokenKind, l, r int64) (int64, bool) {
	b2i := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case cpp.ADD:
		return l + r, true
	case cpp.SUB:
		return l - r, true
	case cpp.MUL:
		return l * r, true
	case cpp.QUO:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case cpp.REM:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case cpp.AND:
		return l & r, true
	case cpp.OR:
		return l | r, true
	case cpp.XOR:
		return l ^ r, true
	case cpp.SHL:
		return l << uint64(r), true
	case cpp.SHR:
		return l >> uint64(r), true
	case cpp.EQL:
		return b2i(l == r), true
	case cpp.NEQ:
		return b2i(l != r), true
	case cpp.LSS:
		return b2i(l < r), true
	case cpp.GTR:
		return b2i(l > r), true
	case cpp.LEQ:
		return b2i(l <= r), true
	case cpp.GEQ:
		return b2i(l >= r), true
	case cpp.LAND:
		return b2i(l != 0 && r != 0), true
	case cpp.LOR:
		return b2i(l != 0 || r != 0), true
	case cpp.COMMA:
		return r, true
	}
	return 0, false
}

// IsICE reports whether e is an integral constant expression.
func IsICE(e Expr) bool {
	_, ok := Fold(e)
	return ok
}
