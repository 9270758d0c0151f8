package parse

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/dipongkor/maki/cpp"
)

// Storage class
type SClass int

const (
	SC_AUTO SClass = iota
	SC_REGISTER
	SC_STATIC
	SC_GLOBAL
	SC_TYPEDEF
)

type parser struct {
	types *scope
	decls *scope
	tags  *scope
	pp    *cpp.Preprocessor

	curt, nextt *cpp.Token
	prevt       *cpp.Token

	tu *TranslationUnit
	//Scope nesting depth, 0 is file scope.
	depth int
	//Tag declaration produced while parsing the current declaration
	//specifiers, emitted with the declaration group.
	pendingTag Decl
}

type parseErrorBreakOut struct {
	err error
}

// Parse consumes pp to the end of the translation unit and returns the
// parsed tree.
func Parse(pp *cpp.Preprocessor) (tu *TranslationUnit, errRet error) {
	p := &parser{}
	p.pp = pp
	p.types = newScope(nil)
	p.decls = newScope(nil)
	p.tags = newScope(nil)
	p.tu = &TranslationUnit{Files: pp.Files()}

	defer func() {
		if e := recover(); e != nil {
			peb := e.(parseErrorBreakOut) // Will re-panic if not a breakout.
			errRet = peb.err
		}
	}()
	p.next()
	p.next()
	p.parseTranslationUnit()
	p.tu.finalize()
	return p.tu, nil
}

func (p *parser) errorPos(m string, pos cpp.FilePos, vals ...interface{}) {
	err := fmt.Errorf("syntax error: "+m, vals...)
	if os.Getenv("MAKIDEBUG") == "true" {
		err = fmt.Errorf("%s\n%s", err, debug.Stack())
	}
	err = cpp.ErrWithLoc(err, pos)
	panic(parseErrorBreakOut{err})
}

func (p *parser) error(m string, vals ...interface{}) {
	err := fmt.Errorf("syntax error: "+m, vals...)
	if os.Getenv("MAKIDEBUG") == "true" {
		err = fmt.Errorf("%s\n%s", err, debug.Stack())
	}
	panic(parseErrorBreakOut{err})
}

func (p *parser) expect(k cpp.TokenKind) {
	if p.curt.Kind != k {
		p.errorPos("expected %s got %s", p.curt.Pos, k, p.curt.Kind)
	}
	p.next()
}

func (p *parser) next() {
	p.prevt = p.curt
	p.curt = p.nextt
	t, err := p.pp.Next()
	if err != nil {
		p.error(err.Error())
	}
	if t.Kind != cpp.EOF {
		p.tu.Tokens = append(p.tu.Tokens, t)
	}
	p.nextt = t
}

func (p *parser) spanFrom(lo *cpp.Token) span {
	return span{lo, p.prevt}
}

func (p *parser) pushScope() {
	p.types = newScope(p.types)
	p.decls = newScope(p.decls)
	p.tags = newScope(p.tags)
	p.depth += 1
}

func (p *parser) popScope() {
	p.types = p.types.parent
	p.decls = p.decls.parent
	p.tags = p.tags.parent
	p.depth -= 1
}

func (p *parser) addDecl(d Decl) {
	p.tu.Decls = append(p.tu.Decls, d)
}

func (p *parser) isTypedefName(name string) (CType, bool) {
	sym, ok := p.types.lookup(name)
	if !ok {
		return nil, false
	}
	ts := sym.(*TSymbol)
	return ts.Type, true
}

func (p *parser) isDeclStart(t *cpp.Token) bool {
	switch t.Kind {
	case cpp.VOID, cpp.CHAR, cpp.SHORT, cpp.INT, cpp.LONG, cpp.FLOAT,
		cpp.DOUBLE, cpp.SIGNED, cpp.UNSIGNED, cpp.STRUCT, cpp.UNION,
		cpp.ENUM, cpp.TYPEDEF, cpp.STATIC, cpp.EXTERN, cpp.REGISTER,
		cpp.CONST, cpp.VOLATILE:
		return true
	case cpp.IDENT:
		_, ok := p.isTypedefName(t.Val)
		return ok
	}
	return false
}

func (p *parser) parseTranslationUnit() {

	for p.curt.Kind != cpp.EOF {
		decls := p.parseDeclaration(true)
		p.tu.TopDecls = append(p.tu.TopDecls, decls...)
	}

}

func (p *parser) parseStatement() Stmt {
	start := p.curt

	if p.curt.Kind == cpp.IDENT && p.nextt.Kind == ':' {
		name := p.curt.Val
		p.next()
		p.next()
		s := p.parseStatement()
		return &Label{p.spanFrom(start), name, s}
	}

	//Goto, return, break, continue, do-while and expression statements
	//end before their terminating semicolon. A declaration statement ends
	//with its semicolon, and label, case, default, if, while, for and
	//switch statements end with the last token of their nested statement.
	switch p.curt.Kind {
	case cpp.GOTO:
		p.next()
		if p.curt.Kind != cpp.IDENT {
			p.errorPos("expected a label after goto", p.curt.Pos)
		}
		name := p.curt.Val
		sp := span{start, p.curt}
		p.next()
		p.expect(';')
		return &Goto{sp, name}
	case ';':
		p.next()
		return &Empty{p.spanFrom(start)}
	case cpp.RETURN:
		p.next()
		var x Expr
		if p.curt.Kind != ';' {
			x = p.parseExpression()
		}
		sp := p.spanFrom(start)
		p.expect(';')
		return &Return{sp, x}
	case cpp.BREAK:
		sp := span{start, start}
		p.next()
		p.expect(';')
		return &Break{sp}
	case cpp.CONTINUE:
		sp := span{start, start}
		p.next()
		p.expect(';')
		return &Continue{sp}
	case cpp.CASE:
		p.next()
		v := p.parseConditionalExpression()
		p.expect(':')
		s := p.parseStatement()
		return &Case{p.spanFrom(start), v, s}
	case cpp.DEFAULT:
		p.next()
		p.expect(':')
		s := p.parseStatement()
		return &Default{p.spanFrom(start), s}
	case cpp.WHILE:
		return p.parseWhile()
	case cpp.DO:
		return p.parseDoWhile()
	case cpp.FOR:
		return p.parseFor()
	case cpp.IF:
		return p.parseIf()
	case cpp.SWITCH:
		return p.parseSwitch()
	case '{':
		return p.parseBlock()
	default:
		if p.isDeclStart(p.curt) {
			decls := p.parseDeclaration(false)
			return &DeclStmt{p.spanFrom(start), decls}
		}
		x := p.parseExpression()
		p.expect(';')
		//Every concrete expression is also a statement.
		return x.(Stmt)
	}
}

func (p *parser) parseIf() Stmt {
	start := p.curt
	p.expect(cpp.IF)
	p.expect('(')
	cond := p.parseExpression()
	p.expect(')')
	then := p.parseStatement()
	var els Stmt
	if p.curt.Kind == cpp.ELSE {
		p.next()
		els = p.parseStatement()
	}
	return &If{p.spanFrom(start), cond, then, els}
}

func (p *parser) parseFor() Stmt {
	start := p.curt
	p.expect(cpp.FOR)
	p.expect('(')
	var init, cond, post Expr
	if p.curt.Kind != ';' {
		init = p.parseExpression()
	}
	p.expect(';')
	if p.curt.Kind != ';' {
		cond = p.parseExpression()
	}
	p.expect(';')
	if p.curt.Kind != ')' {
		post = p.parseExpression()
	}
	p.expect(')')
	body := p.parseStatement()
	return &For{p.spanFrom(start), init, cond, post, body}
}

func (p *parser) parseWhile() Stmt {
	start := p.curt
	p.expect(cpp.WHILE)
	p.expect('(')
	cond := p.parseExpression()
	p.expect(')')
	body := p.parseStatement()
	return &While{p.spanFrom(start), cond, body}
}

func (p *parser) parseDoWhile() Stmt {
	start := p.curt
	p.expect(cpp.DO)
	body := p.parseStatement()
	p.expect(cpp.WHILE)
	p.expect('(')
	cond := p.parseExpression()
	p.expect(')')
	sp := p.spanFrom(start)
	p.expect(';')
	return &DoWhile{sp, body, cond}
}

func (p *parser) parseSwitch() Stmt {
	start := p.curt
	p.expect(cpp.SWITCH)
	p.expect('(')
	cond := p.parseExpression()
	p.expect(')')
	body := p.parseStatement()
	return &Switch{p.spanFrom(start), cond, body}
}

func (p *parser) parseBlock() *Block {
	start := p.curt
	p.expect('{')
	p.pushScope()
	var stmts []Stmt
	for p.curt.Kind != '}' {
		stmts = append(stmts, p.parseStatement())
	}
	p.popScope()
	p.expect('}')
	return &Block{p.spanFrom(start), stmts}
}

// declInfo carries one parsed declarator.
type declInfo struct {
	name    string
	nameTok *cpp.Token
	ty      CType
	sizes   []Expr
	fnType  *FunctionType
	params  []*VarDecl
}

func (p *parser) parseDeclaration(isGlobal bool) []Decl {
	start := p.curt
	sc, ty, _ := p.parseDeclarationSpecifiers(true)

	var decls []Decl
	if p.pendingTag != nil {
		decls = append(decls, p.pendingTag)
		p.pendingTag = nil
	}

	//A bare tag declaration, e.g. struct s { int x; };
	if p.curt.Kind == ';' {
		p.expect(';')
		return decls
	}

	firstDecl := true
	for {
		dstart := p.curt
		if firstDecl {
			dstart = start
		}
		d := p.parseDeclarator(ty)

		if sc == SC_TYPEDEF {
			fwd := &ForwardedType{Name: d.name, NameTok: d.nameTok, Local: p.depth > 0, Type: d.ty}
			td := &TypedefDecl{declbase{p.spanFrom(dstart), d.name, d.nameTok}, fwd}
			p.types.define(d.name, &TSymbol{D: td, Type: fwd})
			p.addDecl(td)
			decls = append(decls, td)
		} else if d.fnType != nil {
			fd := &FuncDecl{declbase{p.spanFrom(dstart), d.name, d.nameTok}, d.fnType, d.params, nil}
			p.decls.define(d.name, &FuncSymbol{fd})
			p.addDecl(fd)
			decls = append(decls, fd)
			if firstDecl && isGlobal && p.curt.Kind == '{' {
				// function definition
				p.pushScope()
				for _, prm := range d.params {
					if prm.Name != "" {
						p.decls.define(prm.Name, &VarSymbol{prm})
					}
				}
				fd.Body = p.parseBlock()
				p.popScope()
				fd.span = p.spanFrom(dstart)
				return decls
			}
		} else {
			vd := &VarDecl{
				declbase:  declbase{p.spanFrom(dstart), d.name, d.nameTok},
				Ty:        d.ty,
				SizeExprs: d.sizes,
				IsLocal:   p.depth > 0,
				IsStatic:  sc == SC_STATIC,
			}
			p.decls.define(d.name, &VarSymbol{vd})
			if p.curt.Kind == '=' {
				p.next()
				vd.Init = p.parseInitializer(vd.Ty)
			}
			vd.span = p.spanFrom(dstart)
			p.addDecl(vd)
			decls = append(decls, vd)
		}

		if p.curt.Kind != ',' {
			break
		}
		p.next()
		firstDecl = false
	}
	if p.curt.Kind != ';' {
		p.errorPos("expected '=', ',' or ';'", p.curt.Pos)
	}
	p.expect(';')
	return decls
}

func (p *parser) parseParameterDeclaration() *VarDecl {
	start := p.curt
	_, ty, _ := p.parseDeclarationSpecifiers(true)
	d := p.parseDeclarator(ty)
	pty := d.ty
	if IsArrayType(pty) {
		pty = &Ptr{Canonical(pty).(*Array).MemberType}
	}
	vd := &VarDecl{
		declbase: declbase{p.spanFrom(start), d.name, d.nameTok},
		Ty:       pty,
		IsLocal:  true,
		IsParam:  true,
	}
	p.addDecl(vd)
	return vd
}

// parseDeclarationSpecifiers reads storage class, qualifier and type
// specifier tokens. When recordLoc is set, the written type specifier
// is recorded as a TypeLoc.
func (p *parser) parseDeclarationSpecifiers(recordLoc bool) (SClass, CType, *TypeLoc) {

	sc := SC_AUTO
	typeStart := (*cpp.Token)(nil)
	var ty CType
	sawType := false
	var base cpp.TokenKind
	longCount := 0
	sawShort := false
	sawUnsigned := false
	sawSigned := false

	markType := func() {
		if typeStart == nil {
			typeStart = p.curt
		}
		sawType = true
	}

loop:
	for {
		switch p.curt.Kind {
		case cpp.REGISTER, cpp.EXTERN, cpp.CONST, cpp.VOLATILE:
			p.next()
		case cpp.STATIC:
			sc = SC_STATIC
			p.next()
		case cpp.TYPEDEF:
			sc = SC_TYPEDEF
			p.next()
		case cpp.VOID, cpp.CHAR, cpp.INT, cpp.FLOAT, cpp.DOUBLE:
			markType()
			base = p.curt.Kind
			p.next()
		case cpp.SHORT:
			markType()
			sawShort = true
			p.next()
		case cpp.LONG:
			markType()
			longCount += 1
			p.next()
		case cpp.SIGNED:
			markType()
			sawSigned = true
			p.next()
		case cpp.UNSIGNED:
			markType()
			sawUnsigned = true
			p.next()
		case cpp.STRUCT, cpp.UNION:
			markType()
			ty = p.parseStruct()
		case cpp.ENUM:
			markType()
			ty = p.parseEnum()
		case cpp.IDENT:
			if sawType || ty != nil {
				break loop
			}
			tdty, ok := p.isTypedefName(p.curt.Val)
			if !ok {
				break loop
			}
			markType()
			ty = tdty
			p.next()
		default:
			break loop
		}
	}
	_ = sawSigned

	if ty == nil {
		ty = primitiveFromSpecifiers(base, longCount, sawShort, sawUnsigned)
	}
	var tl *TypeLoc
	if recordLoc && sawType {
		tl = &TypeLoc{span{typeStart, p.prevt}, ty}
		p.tu.TypeLocs = append(p.tu.TypeLocs, tl)
	}
	return sc, ty, tl
}

func primitiveFromSpecifiers(base cpp.TokenKind, longCount int, sawShort, sawUnsigned bool) CType {
	switch base {
	case cpp.VOID:
		return CVoid
	case cpp.CHAR:
		if sawUnsigned {
			return CUChar
		}
		return CChar
	case cpp.FLOAT:
		return CFloat
	case cpp.DOUBLE:
		if longCount > 0 {
			return CLDouble
		}
		return CDouble
	}
	// int family
	switch {
	case sawShort:
		if sawUnsigned {
			return CUShort
		}
		return CShort
	case longCount >= 2:
		if sawUnsigned {
			return CULLong
		}
		return CLLong
	case longCount == 1:
		if sawUnsigned {
			return CULong
		}
		return CLong
	}
	if sawUnsigned {
		return CUInt
	}
	return CInt
}

func (p *parser) parseStruct() CType {
	start := p.curt
	isUnion := p.curt.Kind == cpp.UNION
	if !isUnion {
		p.expect(cpp.STRUCT)
	} else {
		p.expect(cpp.UNION)
	}
	var tagTok *cpp.Token
	tag := ""
	if p.curt.Kind == cpp.IDENT {
		tagTok = p.curt
		tag = p.curt.Val
		p.next()
	}

	if p.curt.Kind != '{' {
		//A reference to a previously declared (or incomplete) tag.
		if tag != "" {
			if sym, ok := p.tags.lookup(tag); ok {
				return sym.(*TagSymbol).Type
			}
		}
		st := &Struct{IsUnion: isUnion, TagName: tag, NameTok: tagTok, Local: p.depth > 0, Incomplete: true}
		if tag != "" {
			p.tags.define(tag, &TagSymbol{st})
		}
		return st
	}

	st := &Struct{IsUnion: isUnion, TagName: tag, NameTok: tagTok, Local: p.depth > 0}
	if tag != "" {
		p.tags.define(tag, &TagSymbol{st})
	}
	rd := &RecordDecl{declbase{span{start, p.curt}, tag, tagTok}, st, nil}

	p.expect('{')
	for p.curt.Kind != '}' {
		fstart := p.curt
		_, fty, _ := p.parseDeclarationSpecifiers(true)
		for {
			var fd *FieldDecl
			if p.curt.Kind == ':' {
				//unnamed bit-field
				fd = &FieldDecl{declbase{span{fstart, p.curt}, "", nil}, fty, nil}
			} else {
				d := p.parseDeclarator(fty)
				fd = &FieldDecl{declbase{p.spanFrom(fstart), d.name, d.nameTok}, d.ty, nil}
			}
			if p.curt.Kind == ':' {
				p.next()
				fd.BitWidth = p.parseConditionalExpression()
			}
			fd.span = p.spanFrom(fstart)
			rd.Fields = append(rd.Fields, fd)
			st.Fields = append(st.Fields, StructField{fd.Name, fd.Ty})
			p.addDecl(fd)
			if p.curt.Kind == ',' {
				p.next()
				continue
			}
			break
		}
		p.expect(';')
	}
	p.expect('}')
	rd.span = p.spanFrom(start)
	p.addDecl(rd)
	p.pendingTag = rd
	return st
}

func (p *parser) parseEnum() CType {
	start := p.curt
	p.expect(cpp.ENUM)
	var tagTok *cpp.Token
	tag := ""
	if p.curt.Kind == cpp.IDENT {
		tagTok = p.curt
		tag = p.curt.Val
		p.next()
	}

	if p.curt.Kind != '{' {
		if tag != "" {
			if sym, ok := p.tags.lookup(tag); ok {
				return sym.(*TagSymbol).Type
			}
		}
		et := &EnumType{TagName: tag, NameTok: tagTok, Local: p.depth > 0}
		if tag != "" {
			p.tags.define(tag, &TagSymbol{et})
		}
		return et
	}

	et := &EnumType{TagName: tag, NameTok: tagTok, Local: p.depth > 0}
	if tag != "" {
		p.tags.define(tag, &TagSymbol{et})
	}
	ed := &EnumDecl{declbase{span{start, p.curt}, tag, tagTok}, et, nil}

	p.expect('{')
	val := int64(0)
	for p.curt.Kind != '}' {
		if p.curt.Kind != cpp.IDENT {
			p.errorPos("expected an enumerator name", p.curt.Pos)
		}
		nameTok := p.curt
		p.next()
		ecd := &EnumConstDecl{declbase{span{nameTok, nameTok}, nameTok.Val, nameTok}, nil, 0}
		if p.curt.Kind == '=' {
			p.next()
			ecd.Init = p.parseConditionalExpression()
			if v, ok := Fold(ecd.Init); ok {
				val = v
			}
		}
		ecd.Val = val
		val += 1
		ecd.span = p.spanFrom(nameTok)
		p.decls.define(ecd.Name, &EnumConstSymbol{ecd})
		p.addDecl(ecd)
		ed.Consts = append(ed.Consts, ecd)
		if p.curt.Kind == ',' {
			p.next()
			continue
		}
		break
	}
	p.expect('}')
	ed.span = p.spanFrom(start)
	p.addDecl(ed)
	p.pendingTag = ed
	return et
}

// Declarator
// ----------
//
// A declarator is the part of a declaration that specifies
// the name that is to be introduced into the program.
//
// unsigned int a, *b, **c ;
//              ^  ^^  ^^^
//
// An abstract declarator is missing the identifier, as in a
// parameter declaration like f(int *).

func (p *parser) parseDeclarator(basety CType) *declInfo {

	for p.curt.Kind == cpp.CONST || p.curt.Kind == cpp.VOLATILE {
		p.next()
	}
	switch p.curt.Kind {
	case '*':
		p.next()
		d := p.parseDeclarator(basety)
		d.ty = &Ptr{d.ty}
		return d
	case '(':
		p.next()
		d := p.parseDeclarator(basety)
		p.expect(')')
		d.ty = p.parseDeclaratorTail(d.ty, d)
		return d
	case cpp.IDENT:
		d := &declInfo{name: p.curt.Val, nameTok: p.curt}
		p.next()
		d.ty = p.parseDeclaratorTail(basety, d)
		return d
	default:
		//abstract declarator
		d := &declInfo{}
		d.ty = p.parseDeclaratorTail(basety, d)
		return d
	}
}

func (p *parser) parseDeclaratorTail(basety CType, d *declInfo) CType {

	ret := basety
	for {
		switch p.curt.Kind {
		case '[':
			p.next()
			dim := 0
			if p.curt.Kind != ']' {
				sz := p.parseAssignmentExpression()
				d.sizes = append(d.sizes, sz)
				if v, ok := Fold(sz); ok {
					dim = int(v)
				}
			}
			p.expect(']')
			ret = &Array{MemberType: ret, Dim: dim}
		case '(':
			p.next()
			ft := &FunctionType{RetType: ret}
			var params []*VarDecl
			if p.curt.Kind != ')' {
				if p.curt.Kind == cpp.VOID && p.nextt.Kind == ')' {
					p.next()
				} else {
					for {
						if p.curt.Kind == cpp.PERIOD {
							//The lexer spells ... as three periods.
							p.next()
							p.expect(cpp.PERIOD)
							p.expect(cpp.PERIOD)
							ft.IsVarArg = true
							break
						}
						prm := p.parseParameterDeclaration()
						params = append(params, prm)
						ft.ArgTypes = append(ft.ArgTypes, prm.Ty)
						ft.ArgNames = append(ft.ArgNames, prm.Name)
						if p.curt.Kind == ',' {
							p.next()
							continue
						}
						break
					}
				}
			}
			p.expect(')')
			d.fnType = ft
			d.params = params
			ret = ft
		default:
			return ret
		}
	}
}

func (p *parser) parseInitializer(ty CType) Expr {
	if p.curt.Kind == '{' {
		start := p.curt
		p.next()
		var elems []Expr
		for p.curt.Kind != '}' {
			elems = append(elems, p.parseInitializer(nil))
			if p.curt.Kind == ',' {
				p.next()
				continue
			}
			break
		}
		p.expect('}')
		return &InitList{exprbase{p.spanFrom(start), ty}, elems}
	}
	x := p.parseAssignmentExpression()
	if ty != nil {
		x = p.assignConvert(x, ty)
	}
	return x
}

func isAssignmentOperator(k cpp.TokenKind) bool {
	switch k {
	case '=', cpp.ADD_ASSIGN, cpp.SUB_ASSIGN, cpp.MUL_ASSIGN, cpp.QUO_ASSIGN, cpp.REM_ASSIGN,
		cpp.AND_ASSIGN, cpp.OR_ASSIGN, cpp.XOR_ASSIGN, cpp.SHL_ASSIGN, cpp.SHR_ASSIGN:
		return true
	}
	return false
}

// Typing helpers. The analyzer needs static types, not a validator:
// when a type cannot be determined the expression is left untyped.

func exprSpan(e Expr) span {
	lo, hi := e.Span()
	return span{lo, hi}
}

// implicitConvert wraps e in an ImplicitCast to ty when its type
// differs.
func implicitConvert(e Expr, ty CType) Expr {
	if e == nil || ty == nil || e.Type() == nil {
		return e
	}
	if typesEqual(e.Type(), ty) {
		return e
	}
	return &ImplicitCast{exprbase{exprSpan(e), ty}, e}
}

// decay converts array values to pointers to their first element.
func decay(e Expr) Expr {
	if e == nil || e.Type() == nil {
		return e
	}
	if arr, ok := Canonical(e.Type()).(*Array); ok {
		return &ImplicitCast{exprbase{exprSpan(e), &Ptr{arr.MemberType}}, e}
	}
	return e
}

// promote applies the integer promotions.
func promote(e Expr) Expr {
	if e == nil || e.Type() == nil {
		return e
	}
	switch t := Canonical(e.Type()).(type) {
	case *Primitive:
		switch t.Kind {
		case Bool, Char, Short:
			return implicitConvert(e, CInt)
		}
	case *EnumType:
		return implicitConvert(e, CInt)
	}
	return e
}

// usualArith applies the usual arithmetic conversions to a pair of
// operands, returning the converted operands and the common type.
func usualArith(l, r Expr) (Expr, Expr, CType) {
	l = decay(l)
	r = decay(r)
	if l == nil || r == nil || l.Type() == nil || r.Type() == nil {
		return l, r, nil
	}
	lc := Canonical(l.Type())
	rc := Canonical(r.Type())
	//pointer arithmetic
	if lp, ok := lc.(*Ptr); ok {
		if IsIntType(rc) {
			return l, r, lp
		}
		if _, ok := rc.(*Ptr); ok {
			return l, r, CLong
		}
		return l, r, nil
	}
	if rp, ok := rc.(*Ptr); ok {
		if IsIntType(lc) {
			return l, r, rp
		}
		return l, r, nil
	}
	l = promote(l)
	r = promote(r)
	lprim, lok := Canonical(l.Type()).(*Primitive)
	rprim, rok := Canonical(r.Type()).(*Primitive)
	if !lok || !rok {
		return l, r, nil
	}
	if lprim.Kind == Void || rprim.Kind == Void {
		return l, r, nil
	}
	if arithRank(lprim) >= arithRank(rprim) {
		return l, implicitConvert(r, lprim), lprim
	}
	return implicitConvert(l, rprim), r, rprim
}

// assignConvert converts the right hand side of an assignment or
// initialization to the target type.
func (p *parser) assignConvert(r Expr, ty CType) Expr {
	r = decay(r)
	return implicitConvert(r, ty)
}

func pointee(t CType) CType {
	switch t := Canonical(t).(type) {
	case *Ptr:
		return t.PointsTo
	case *Array:
		return t.MemberType
	}
	return nil
}

func (p *parser) parseExpression() Expr {
	start := p.curt
	ret := p.parseAssignmentExpression()
	for p.curt.Kind == ',' {
		p.next()
		r := p.parseAssignmentExpression()
		ret = &Binop{exprbase{p.spanFrom(start), r.Type()}, cpp.COMMA, ret, r}
	}
	return ret
}

func (p *parser) parseAssignmentExpression() Expr {
	start := p.curt
	l := p.parseConditionalExpression()
	if isAssignmentOperator(p.curt.Kind) {
		op := p.curt.Kind
		p.next()
		r := p.parseAssignmentExpression()
		if op == '=' {
			r = p.assignConvert(r, l.Type())
		}
		return &Binop{exprbase{p.spanFrom(start), l.Type()}, op, l, r}
	}
	return l
}

// Aka Ternary operator.
func (p *parser) parseConditionalExpression() Expr {
	start := p.curt
	cond := p.parseLogicalOrExpression()
	if p.curt.Kind != cpp.QUESTION {
		return cond
	}
	p.next()
	t := p.parseExpression()
	p.expect(':')
	f := p.parseConditionalExpression()
	t2, f2, ty := usualArith(t, f)
	if ty == nil {
		t2, f2 = t, f
		if t != nil {
			ty = t.Type()
		}
		if ty == nil && f != nil {
			ty = f.Type()
		}
	}
	return &Cond{exprbase{p.spanFrom(start), ty}, decay(cond), t2, f2}
}

// binaryLevel parses one level of left associative binary operators.
func (p *parser) binaryLevel(ops []cpp.TokenKind, sub func() Expr, logical bool) Expr {
	start := p.curt
	l := sub()
	for {
		matched := false
		for _, op := range ops {
			if p.curt.Kind == op {
				matched = true
				p.next()
				r := sub()
				if logical {
					l = &Binop{exprbase{p.spanFrom(start), CInt}, op, decay(l), decay(r)}
				} else {
					l2, r2, ty := usualArith(l, r)
					if isComparisonOperator(op) {
						ty = CInt
					}
					l = &Binop{exprbase{p.spanFrom(start), ty}, op, l2, r2}
				}
				break
			}
		}
		if !matched {
			return l
		}
	}
}

func isComparisonOperator(k cpp.TokenKind) bool {
	switch k {
	case cpp.EQL, cpp.NEQ, cpp.LSS, cpp.GTR, cpp.LEQ, cpp.GEQ:
		return true
	}
	return false
}

func (p *parser) parseLogicalOrExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.LOR}, p.parseLogicalAndExpression, true)
}

func (p *parser) parseLogicalAndExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.LAND}, p.parseInclusiveOrExpression, true)
}

func (p *parser) parseInclusiveOrExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.OR}, p.parseExclusiveOrExpression, false)
}

func (p *parser) parseExclusiveOrExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.XOR}, p.parseAndExpression, false)
}

func (p *parser) parseAndExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.AND}, p.parseEqualityExpression, false)
}

func (p *parser) parseEqualityExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.EQL, cpp.NEQ}, p.parseRelationalExpression, false)
}

func (p *parser) parseRelationalExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.LSS, cpp.GTR, cpp.LEQ, cpp.GEQ}, p.parseShiftExpression, false)
}

func (p *parser) parseShiftExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.SHL, cpp.SHR}, p.parseAdditiveExpression, false)
}

func (p *parser) parseAdditiveExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.ADD, cpp.SUB}, p.parseMultiplicativeExpression, false)
}

func (p *parser) parseMultiplicativeExpression() Expr {
	return p.binaryLevel([]cpp.TokenKind{cpp.MUL, cpp.QUO, cpp.REM}, p.parseCastExpression, false)
}

func (p *parser) parseCastExpression() Expr {
	if p.curt.Kind == '(' && p.isDeclStart(p.nextt) {
		start := p.curt
		p.next()
		tl := p.parseTypeName()
		p.expect(')')
		x := p.parseCastExpression()
		return &Cast{exprbase{p.spanFrom(start), tl.Ty}, tl, x}
	}
	return p.parseUnaryExpression()
}

// parseTypeName parses a type-name as used by casts and sizeof.
func (p *parser) parseTypeName() *TypeLoc {
	start := p.curt
	_, ty, _ := p.parseDeclarationSpecifiers(false)
	for p.curt.Kind == '*' {
		p.next()
		ty = &Ptr{ty}
	}
	tl := &TypeLoc{span{start, p.prevt}, ty}
	p.tu.TypeLocs = append(p.tu.TypeLocs, tl)
	return tl
}

func (p *parser) parseUnaryExpression() Expr {
	start := p.curt
	switch p.curt.Kind {
	case cpp.INC, cpp.DEC:
		op := p.curt.Kind
		p.next()
		x := p.parseUnaryExpression()
		return &Unop{exprbase{p.spanFrom(start), x.Type()}, op, false, x}
	case '*':
		p.next()
		x := decay(p.parseCastExpression())
		return &Unop{exprbase{p.spanFrom(start), pointee(x.Type())}, '*', false, x}
	case '&':
		p.next()
		x := p.parseCastExpression()
		var ty CType
		if x.Type() != nil {
			ty = &Ptr{x.Type()}
		}
		return &Unop{exprbase{p.spanFrom(start), ty}, '&', false, x}
	case '!':
		p.next()
		x := decay(p.parseCastExpression())
		return &Unop{exprbase{p.spanFrom(start), CInt}, '!', false, x}
	case '+', '-', '~':
		op := p.curt.Kind
		p.next()
		x := promote(decay(p.parseCastExpression()))
		return &Unop{exprbase{p.spanFrom(start), x.Type()}, op, false, x}
	case cpp.SIZEOF:
		p.next()
		if p.curt.Kind == '(' && p.isDeclStart(p.nextt) {
			p.next()
			tl := p.parseTypeName()
			p.expect(')')
			return &Sizeof{exprbase{p.spanFrom(start), CULong}, nil, tl}
		}
		x := p.parseUnaryExpression()
		return &Sizeof{exprbase{p.spanFrom(start), CULong}, x, nil}
	default:
		return p.parsePostfixExpression()
	}
}

func (p *parser) parsePostfixExpression() Expr {
	start := p.curt
	l := p.parsePrimaryExpression()
loop:
	for {
		switch p.curt.Kind {
		case '[':
			p.next()
			idx := p.parseExpression()
			p.expect(']')
			base := decay(l)
			l = &Index{exprbase{p.spanFrom(start), pointee(base.Type())}, base, idx}
		case '.', cpp.ARROW:
			arrow := p.curt.Kind == cpp.ARROW
			p.next()
			if p.curt.Kind != cpp.IDENT {
				p.errorPos("expected a member name", p.curt.Pos)
			}
			sel := p.curt.Val
			p.next()
			var ty CType
			bt := l.Type()
			if arrow {
				bt = pointee(bt)
			}
			if st, ok := Canonical(bt).(*Struct); ok && bt != nil {
				ty = st.fieldType(sel)
			}
			l = &Selector{exprbase{p.spanFrom(start), ty}, l, sel, arrow}
		case '(':
			p.next()
			var args []Expr
			if p.curt.Kind != ')' {
				for {
					args = append(args, decay(p.parseAssignmentExpression()))
					if p.curt.Kind == ',' {
						p.next()
						continue
					}
					break
				}
			}
			p.expect(')')
			l = &Call{exprbase{p.spanFrom(start), callReturnType(l)}, l, args}
		case cpp.INC, cpp.DEC:
			op := p.curt.Kind
			p.next()
			l = &Unop{exprbase{p.spanFrom(start), l.Type()}, op, true, l}
		default:
			break loop
		}
	}
	return l
}

func callReturnType(fn Expr) CType {
	if id, ok := fn.(*Ident); ok {
		if fs, ok := id.Ref.(*FuncDecl); ok && fs.FType != nil {
			return fs.FType.RetType
		}
	}
	switch t := Canonical(fn.Type()).(type) {
	case *FunctionType:
		return t.RetType
	case *Ptr:
		if ft, ok := Canonical(t.PointsTo).(*FunctionType); ok {
			return ft.RetType
		}
	}
	//Calling an undeclared function defaults to int.
	return CInt
}

func intConstantType(val string) CType {
	s := strings.ToLower(val)
	unsigned := false
	long := false
	for strings.HasSuffix(s, "u") || strings.HasSuffix(s, "l") {
		if strings.HasSuffix(s, "u") {
			unsigned = true
		} else {
			long = true
		}
		s = s[:len(s)-1]
	}
	switch {
	case unsigned && long:
		return CULong
	case long:
		return CLong
	case unsigned:
		return CUInt
	}
	return CInt
}

func stripIntSuffix(val string) string {
	for len(val) > 0 {
		switch val[len(val)-1] {
		case 'u', 'U', 'l', 'L':
			val = val[:len(val)-1]
			continue
		}
		break
	}
	return val
}

func (p *parser) parsePrimaryExpression() Expr {
	start := p.curt
	switch p.curt.Kind {
	case cpp.IDENT:
		tok := p.curt
		p.next()
		id := &Ident{exprbase{span{tok, tok}, nil}, tok.Val, nil}
		if sym, ok := p.decls.lookup(tok.Val); ok {
			switch sym := sym.(type) {
			case *VarSymbol:
				id.Ref = sym.D
				id.Ty = sym.D.Ty
			case *FuncSymbol:
				id.Ref = sym.D
				id.Ty = sym.D.FType
			case *EnumConstSymbol:
				id.Ref = sym.D
				id.Ty = CInt
			}
		}
		return id
	case cpp.INT_CONSTANT:
		tok := p.curt
		p.next()
		v, err := strconv.ParseInt(stripIntSuffix(tok.Val), 0, 64)
		if err != nil {
			p.errorPos("invalid integer constant %s", tok.Pos, tok.Val)
		}
		return &Constant{exprbase{span{tok, tok}, intConstantType(tok.Val)}, v}
	case cpp.CHAR_CONSTANT:
		tok := p.curt
		p.next()
		return &Constant{exprbase{span{tok, tok}, CInt}, charConstantValue(tok.Val)}
	case cpp.FLOAT_CONSTANT:
		tok := p.curt
		p.next()
		s := strings.TrimRight(tok.Val, "fFlL")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			p.errorPos("invalid float constant %s", tok.Pos, tok.Val)
		}
		return &FloatConst{exprbase{span{tok, tok}, CDouble}, v}
	case cpp.STRING:
		tok := p.curt
		p.next()
		val := tok.Val
		if len(val) >= 2 {
			val = val[1 : len(val)-1]
		}
		return &String{exprbase{span{tok, tok}, &Array{CChar, len(val) + 1}}, val}
	case '(':
		p.next()
		x := p.parseExpression()
		p.expect(')')
		return &Paren{exprbase{p.spanFrom(start), x.Type()}, x}
	default:
		p.errorPos("expected an identifier, constant, string or expression", p.curt.Pos)
	}
	panic("unreachable")
}

func charConstantValue(val string) int64 {
	//strip quotes
	if len(val) >= 2 {
		val = val[1 : len(val)-1]
	}
	if val == "" {
		return 0
	}
	if val[0] == '\\' && len(val) >= 2 {
		switch val[1] {
		case 'n':
			return '\n'
		case 't':
			return '\t'
		case 'r':
			return '\r'
		case '0':
			return 0
		case '\\':
			return '\\'
		case '\'':
			return '\''
		default:
			return int64(val[1])
		}
	}
	return int64(val[0])
}
