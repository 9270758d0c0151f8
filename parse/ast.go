package parse

import "github.com/dipongkor/maki/cpp"

// Node is anything the parser built from a run of tokens. Every node
// remembers its first and last token so consumers can map it back onto
// the preprocessed token stream.
type Node interface {
	Pos() cpp.FilePos
	End() cpp.FilePos
	Span() (lo, hi *cpp.Token)
}

type Expr interface {
	Node
	//Type is the static type of the expression, nil when it could not
	//be determined.
	Type() CType
}

type Stmt interface {
	Node
	stmtNode()
}

type Decl interface {
	Node
	declNode()
	DeclName() string
	NameToken() *cpp.Token
}

type span struct {
	lo, hi *cpp.Token
}

func (s span) Pos() cpp.FilePos                 { return s.lo.Pos }
func (s span) End() cpp.FilePos                 { return s.hi.EndPos() }
func (s span) Span() (*cpp.Token, *cpp.Token)   { return s.lo, s.hi }

type exprbase struct {
	span
	Ty CType
}

func (e *exprbase) Type() CType { return e.Ty }

// Expressions are statements, an expression statement is the
// expression itself.
func (e *exprbase) stmtNode() {}

// Expressions.

type Ident struct {
	exprbase
	Name string
	//The declaration this identifier references, nil when unresolved.
	Ref Decl
}

type Constant struct {
	exprbase
	Val int64
}

type FloatConst struct {
	exprbase
	Val float64
}

type String struct {
	exprbase
	Val string
}

type Paren struct {
	exprbase
	X Expr
}

type Unop struct {
	exprbase
	Op      cpp.TokenKind
	Postfix bool
	X       Expr
}

type Binop struct {
	exprbase
	Op   cpp.TokenKind
	L, R Expr
}

type Cond struct {
	exprbase
	Cnd  Expr
	T, F Expr
}

type Call struct {
	exprbase
	Fn   Expr
	Args []Expr
}

type Index struct {
	exprbase
	X, Idx Expr
}

type Selector struct {
	exprbase
	X     Expr
	Sel   string
	Arrow bool
}

type Sizeof struct {
	exprbase
	//Exactly one of X and TL is set.
	X  Expr
	TL *TypeLoc
}

type Cast struct {
	exprbase
	TL *TypeLoc
	X  Expr
}

// ImplicitCast is a conversion the typing pass inserted. It spans the
// same tokens as its operand and never appears in the written source.
type ImplicitCast struct {
	exprbase
	X Expr
}

type InitList struct {
	exprbase
	Elems []Expr
}

// Statements.

type DeclStmt struct {
	span
	Decls []Decl
}

type Block struct {
	span
	Stmts []Stmt
}

type If struct {
	span
	Cond Expr
	Then Stmt
	Else Stmt
}

type While struct {
	span
	Cond Expr
	Body Stmt
}

type DoWhile struct {
	span
	Body Stmt
	Cond Expr
}

type For struct {
	span
	Init, Cond, Post Expr
	Body             Stmt
}

type Switch struct {
	span
	Cond Expr
	Body Stmt
}

type Case struct {
	span
	Val  Expr
	Stmt Stmt
}

type Default struct {
	span
	Stmt Stmt
}

type Label struct {
	span
	Name string
	Stmt Stmt
}

type Goto struct {
	span
	Name string
}

type Break struct{ span }

type Continue struct{ span }

type Return struct {
	span
	X Expr
}

type Empty struct{ span }

func (*DeclStmt) stmtNode() {}
func (*Block) stmtNode()    {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*DoWhile) stmtNode()  {}
func (*For) stmtNode()      {}
func (*Switch) stmtNode()   {}
func (*Case) stmtNode()     {}
func (*Default) stmtNode()  {}
func (*Label) stmtNode()    {}
func (*Goto) stmtNode()     {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*Return) stmtNode()   {}
func (*Empty) stmtNode()    {}

// Declarations.

type declbase struct {
	span
	Name    string
	NameTok *cpp.Token
}

func (d *declbase) declNode()                 {}
func (d *declbase) DeclName() string          { return d.Name }
func (d *declbase) NameToken() *cpp.Token     { return d.NameTok }

type VarDecl struct {
	declbase
	Ty   CType
	Init Expr
	//Size expressions of any array declarators, kept so constant
	//contexts stay reachable from the tree.
	SizeExprs []Expr
	IsLocal   bool
	IsStatic  bool
	IsParam   bool
}

// HasLocalStorage reports whether the variable lives on the stack.
func (d *VarDecl) HasLocalStorage() bool {
	return d.IsLocal && !d.IsStatic
}

type FuncDecl struct {
	declbase
	FType  *FunctionType
	Params []*VarDecl
	//nil for a prototype
	Body *Block
}

type TypedefDecl struct {
	declbase
	Ty CType
}

type RecordDecl struct {
	declbase
	Rec    *Struct
	Fields []*FieldDecl
}

type FieldDecl struct {
	declbase
	Ty CType
	//nil unless the field is a bit-field
	BitWidth Expr
}

type EnumDecl struct {
	declbase
	ET     *EnumType
	Consts []*EnumConstDecl
}

type EnumConstDecl struct {
	declbase
	Init Expr
	Val  int64
}

// TypeLoc is one written occurrence of a type specifier.
type TypeLoc struct {
	span
	Ty CType
}

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var kids []Node
	add := func(c Node) {
		switch v := c.(type) {
		case nil:
		case Expr:
			if v != nil {
				kids = append(kids, v)
			}
		default:
			kids = append(kids, c)
		}
	}
	switch n := n.(type) {
	case *Ident, *Constant, *FloatConst, *String, *Goto, *Break, *Continue, *Empty, *TypeLoc:
	case *Paren:
		add(n.X)
	case *Unop:
		add(n.X)
	case *Binop:
		add(n.L)
		add(n.R)
	case *Cond:
		add(n.Cnd)
		add(n.T)
		add(n.F)
	case *Call:
		add(n.Fn)
		for _, a := range n.Args {
			add(a)
		}
	case *Index:
		add(n.X)
		add(n.Idx)
	case *Selector:
		add(n.X)
	case *Sizeof:
		if n.X != nil {
			add(n.X)
		} else if n.TL != nil {
			kids = append(kids, n.TL)
		}
	case *Cast:
		if n.TL != nil {
			kids = append(kids, n.TL)
		}
		add(n.X)
	case *ImplicitCast:
		add(n.X)
	case *InitList:
		for _, e := range n.Elems {
			add(e)
		}
	case *DeclStmt:
		for _, d := range n.Decls {
			kids = append(kids, d)
		}
	case *Block:
		for _, s := range n.Stmts {
			kids = append(kids, s)
		}
	case *If:
		add(n.Cond)
		if n.Then != nil {
			kids = append(kids, n.Then)
		}
		if n.Else != nil {
			kids = append(kids, n.Else)
		}
	case *While:
		add(n.Cond)
		if n.Body != nil {
			kids = append(kids, n.Body)
		}
	case *DoWhile:
		if n.Body != nil {
			kids = append(kids, n.Body)
		}
		add(n.Cond)
	case *For:
		add(n.Init)
		add(n.Cond)
		add(n.Post)
		if n.Body != nil {
			kids = append(kids, n.Body)
		}
	case *Switch:
		add(n.Cond)
		if n.Body != nil {
			kids = append(kids, n.Body)
		}
	case *Case:
		add(n.Val)
		if n.Stmt != nil {
			kids = append(kids, n.Stmt)
		}
	case *Default:
		if n.Stmt != nil {
			kids = append(kids, n.Stmt)
		}
	case *Label:
		if n.Stmt != nil {
			kids = append(kids, n.Stmt)
		}
	case *Return:
		add(n.X)
	case *VarDecl:
		for _, sz := range n.SizeExprs {
			add(sz)
		}
		add(n.Init)
	case *FuncDecl:
		for _, p := range n.Params {
			kids = append(kids, p)
		}
		if n.Body != nil {
			kids = append(kids, n.Body)
		}
	case *TypedefDecl:
	case *RecordDecl:
		for _, f := range n.Fields {
			kids = append(kids, f)
		}
	case *FieldDecl:
		add(n.BitWidth)
	case *EnumDecl:
		for _, c := range n.Consts {
			kids = append(kids, c)
		}
	case *EnumConstDecl:
		add(n.Init)
	}
	return kids
}
