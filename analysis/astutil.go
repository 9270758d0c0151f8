package analysis

import (
	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

// Collect all subtree nodes of the given node using BFS.
func subtrees(n parse.Node) map[parse.Node]bool {
	set := make(map[parse.Node]bool)
	if n == nil {
		return set
	}
	queue := []parse.Node{n}
	for len(queue) != 0 {
		cur := queue[0]
		queue = queue[1:]
		set[cur] = true
		queue = append(queue, parse.Children(cur)...)
	}
	return set
}

// Returns true if needle is a subtree of root via BFS.
func inTree(needle, root parse.Node) bool {
	queue := []parse.Node{root}
	for len(queue) != 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == needle {
			return true
		}
		queue = append(queue, parse.Children(cur)...)
	}
	return false
}

// skipImplicitAndParens unwraps paren expressions and implicit casts,
// yielding the logical expression.
func skipImplicitAndParens(e parse.Expr) parse.Expr {
	for {
		switch v := e.(type) {
		case *parse.Paren:
			e = v.X
		case *parse.ImplicitCast:
			e = v.X
		default:
			return e
		}
	}
}

// typeTagInfo descends through pointer and array layers of t and
// reports the controlling declaration of what remains: a typedef or a
// struct/union/enum tag. ok is false when no such declaration exists.
func typeTagInfo(t parse.CType) (name string, tok *cpp.Token, local bool, ok bool) {
	if t == nil {
		return "", nil, false, false
	}
	cur := t
	for {
		c := parse.Canonical(cur)
		if c == nil {
			return "", nil, false, false
		}
		if p, isPtr := c.(*parse.Ptr); isPtr {
			cur = p.PointsTo
			continue
		}
		if a, isArr := c.(*parse.Array); isArr {
			cur = a.MemberType
			continue
		}
		break
	}
	if f, isTypedef := cur.(*parse.ForwardedType); isTypedef {
		return f.Name, f.NameTok, f.Local, true
	}
	switch ct := parse.Canonical(cur).(type) {
	case *parse.Struct:
		return ct.TagName, ct.NameTok, ct.Local, true
	case *parse.EnumType:
		return ct.TagName, ct.NameTok, ct.Local, true
	}
	return "", nil, false, false
}

// Returns true if the controlling declaration of t, found after
// descending through its pointer and array layers, is at a local scope.
func hasLocalType(t parse.CType) bool {
	_, _, local, ok := typeTagInfo(t)
	return ok && local
}

// Returns true if the controlling declaration of t is anonymous.
func hasAnonymousType(t parse.CType) bool {
	name, _, _, ok := typeTagInfo(t)
	return ok && name == ""
}

// Returns true if the controlling declaration of t was written after
// the given translation unit offset.
func hasTypeDefinedAfter(t parse.CType, defTUOff int) bool {
	_, tok, _, ok := typeTagInfo(t)
	return ok && tok != nil && tok.TUOff > defTUOff
}

// fileLoc maps a token to the file position ultimately responsible for
// it.
func fileLoc(t *cpp.Token) cpp.FilePos {
	return t.FileRange().Begin
}

// isDescendantOfNodeRequiringICE reports whether an ancestor of n is a
// position the language requires to be an integral constant
// expression: a case label, an enumerator initializer, a bit-field
// width, or an array size in a variable declaration.
func isDescendantOfNodeRequiringICE(tu *parse.TranslationUnit, n parse.Node) bool {
	if n == nil {
		return false
	}
	prev := n
	for cur := tu.Parent(n); cur != nil; prev, cur = cur, tu.Parent(cur) {
		switch cur := cur.(type) {
		case *parse.Case:
			if parse.Node(cur.Val) == prev {
				return true
			}
		case *parse.EnumDecl:
			return true
		case *parse.FieldDecl:
			if cur.BitWidth != nil {
				return true
			}
		case *parse.VarDecl:
			for _, sz := range cur.SizeExprs {
				if parse.Node(sz) == prev {
					return true
				}
			}
		}
	}
	return false
}
