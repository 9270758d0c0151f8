package cpp

import (
	"container/list"
	"fmt"
	"io"
)

type Preprocessor struct {
	lxidx  int
	lexers [1024]*Lexer

	is IncludeSearcher
	//List of all pushed back tokens
	tl *tokenList
	//Map of defined macros
	macros map[string]*Macro

	//Stack of condContext about #ifdefs blocks
	conditionalStack *list.List

	//Registered observers of preprocessing events
	callbacks []PPCallbacks

	//Stack of invocations whose replacement tokens are still being
	//consumed
	open []*Invocation

	files *FileSet

	//Translation unit order counter, stamped onto tokens as the
	//lexers produce them
	tuoff int
}

type condContext struct {
	hasSucceeded bool
}

func (pp *Preprocessor) pushCondContext() {
	pp.conditionalStack.PushBack(&condContext{false})
}

func (pp *Preprocessor) popCondContext() {
	if pp.condDepth() == 0 {
		panic("internal bug")
	}
	pp.conditionalStack.Remove(pp.conditionalStack.Back())
}

func (pp *Preprocessor) markCondContextSucceeded() {
	pp.conditionalStack.Back().Value.(*condContext).hasSucceeded = true
}

func (pp *Preprocessor) condDepth() int {
	return pp.conditionalStack.Len()
}

func New(l *Lexer, is IncludeSearcher) *Preprocessor {
	ret := new(Preprocessor)
	ret.lexers[0] = l
	ret.is = is
	ret.tl = newTokenList()
	ret.macros = make(map[string]*Macro)
	ret.conditionalStack = list.New()
	ret.files = NewFileSet()
	ret.files.Register(l.fname, l.fname)
	return ret
}

// AddCallbacks registers an observer of preprocessing events.
// Observers fire in registration order.
func (pp *Preprocessor) AddCallbacks(cb PPCallbacks) {
	pp.callbacks = append(pp.callbacks, cb)
}

// Files exposes the set of files the preprocessor has opened so the
// driver can register real paths and consumers can render locations.
func (pp *Preprocessor) Files() *FileSet {
	return pp.files
}

type cppbreakout struct {
	t   *Token
	err error
}

func (pp *Preprocessor) nextNoExpand() *Token {
	for {
		if pp.tl.isEmpty() {
			for {
				t, err := pp.lexers[pp.lxidx].Next()
				if err != nil {
					panic(&cppbreakout{t, err})
				}
				if t.Kind == EOF {
					if pp.lxidx == 0 {
						return t
					}
					pp.lxidx -= 1
					continue
				}
				pp.tuoff += 1
				t.TUOff = pp.tuoff
				return t
			}
		}
		t := pp.tl.popFront()
		if t.Kind == END_EXPANSION {
			pp.finishExpansion(t.endOf)
			continue
		}
		return t
	}
}

func (pp *Preprocessor) cppError(e string, pos FilePos) {
	err := fmt.Errorf("%s at %s", e, pos)
	panic(&cppbreakout{
		t:   &Token{},
		err: err,
	})
}

func (pp *Preprocessor) currentInvocation() *Invocation {
	if len(pp.open) == 0 {
		return nil
	}
	return pp.open[len(pp.open)-1]
}

func (pp *Preprocessor) finishExpansion(inv *Invocation) {
	if len(pp.open) != 0 && pp.open[len(pp.open)-1] == inv {
		pp.open = pp.open[:len(pp.open)-1]
	}
	for _, cb := range pp.callbacks {
		cb.MacroExpanded(inv)
	}
}

func (pp *Preprocessor) Next() (t *Token, err error) {

	defer func() {
		if e := recover(); e != nil {
			var b *cppbreakout
			b = e.(*cppbreakout)
			t = b.t
			err = b.err
		}
	}()

	for {
		t = pp.nextNoExpand()

		for t.Kind == DIRECTIVE {
			pp.handleDirective(t)
			t = pp.nextNoExpand()
		}

		if t.Kind != IDENT || t.hs.contains(t.Val) {
			return t, nil
		}
		macro, ok := pp.macros[t.Val]
		if !ok {
			return t, nil
		}
		if macro.IsObjectLike() {
			pp.expandObjMacro(macro, t)
			continue
		}
		opening := pp.nextNoExpand()
		if opening.Kind != LPAREN {
			//A function like macro name without an invocation
			//is just an identifier.
			pp.ungetToken(opening)
			return t, nil
		}
		pp.expandFuncMacro(macro, t)
	}
}

func (pp *Preprocessor) newInvocation(m *Macro, nameTok *Token) *Invocation {
	return &Invocation{
		Name:       m.Name,
		Macro:      m,
		NameTok:    nameTok,
		Parent:     pp.currentInvocation(),
		InMacroArg: nameTok.origin != nil && nameTok.origin.Subst != nil,
	}
}

func (pp *Preprocessor) beginExpansion(inv *Invocation) {
	for _, cb := range pp.callbacks {
		cb.MacroExpands(inv)
	}
	pp.open = append(pp.open, inv)
}

func (pp *Preprocessor) expandObjMacro(m *Macro, nameTok *Token) {
	inv := pp.newInvocation(m, nameTok)
	pp.beginExpansion(inv)
	hs := nameTok.hs.add(m.Name)
	repl := newTokenList()
	for _, bt := range m.Tokens {
		c := bt.copy()
		c.origin = &MacroOrigin{Invocation: inv}
		c.hs = hs
		repl.append(c)
	}
	repl.append(&Token{Kind: END_EXPANSION, Pos: nameTok.Pos, endOf: inv})
	pp.ungetTokens(repl)
}

func (pp *Preprocessor) expandFuncMacro(m *Macro, nameTok *Token) {
	args, rparen, err := pp.readMacroInvokeArguments()
	if err != nil {
		panic(&cppbreakout{t: &Token{}, err: err})
	}
	if len(m.Params) == 0 && len(args) == 1 && args[0].isEmpty() {
		args = nil
	}
	if len(args) != len(m.Params) {
		pp.cppError(fmt.Sprintf("macro %s invoked with %d arguments but %d were expected",
			m.Name, len(args), len(m.Params)), nameTok.Pos)
	}

	iargs := make([]*InvocationArg, len(args))
	for i := range args {
		iargs[i] = &InvocationArg{
			Name:   m.Params[i],
			Tokens: args[i].toSlice(),
		}
	}

	inv := pp.newInvocation(m, nameTok)
	inv.RParen = rparen
	inv.Args = iargs
	pp.beginExpansion(inv)

	hs := nameTok.hs.intersection(rparen.hs).add(m.Name)
	repl := newTokenList()
	for _, bt := range m.Tokens {
		if idx, isParam := m.isParam(bt); isParam {
			sub := &ArgSubst{Arg: iargs[idx]}
			iargs[idx].Substs = append(iargs[idx].Substs, sub)
			for _, at := range iargs[idx].Tokens {
				c := at.copy()
				c.origin = &MacroOrigin{Invocation: inv, Subst: sub, Spelled: at}
				c.hs = hs
				repl.append(c)
			}
		} else {
			c := bt.copy()
			c.origin = &MacroOrigin{Invocation: inv}
			c.hs = hs
			repl.append(c)
		}
	}
	repl.append(&Token{Kind: END_EXPANSION, Pos: nameTok.Pos, endOf: inv})
	pp.ungetTokens(repl)
}

//Read the tokens that are part of a macro invocation, not including the first paren.
//But including the last paren. Handles nested parens.
//returns a slice of token lists and the closing paren.
//Each token list in the returned value represents a read macro param.
//e.g. FOO(BAR,(A,B),C)  -> { <BAR> , <(A,B)> , <C> } , )
//Where FOO( has already been consumed.
func (pp *Preprocessor) readMacroInvokeArguments() ([]*tokenList, *Token, error) {
	parenDepth := 1
	argIdx := 0
	ret := make([]*tokenList, 0, 16)
	ret = append(ret, newTokenList())
	for {
		t := pp.nextNoExpand()
		if t.Kind == EOF {
			return nil, nil, fmt.Errorf("EOF while reading macro arguments")
		}
		switch t.Kind {
		case LPAREN:
			parenDepth += 1
			if parenDepth != 1 {
				ret[argIdx].append(t)
			}
		case RPAREN:
			parenDepth -= 1
			if parenDepth == 0 {
				return ret, t, nil
			} else {
				ret[argIdx].append(t)
			}
		case COMMA:
			if parenDepth == 1 {
				//nextArg
				argIdx += 1
				ret = append(ret, newTokenList())
			} else {
				ret[argIdx].append(t)
			}
		default:
			ret[argIdx].append(t)
		}
	}
}

func (pp *Preprocessor) ungetTokens(tl *tokenList) {
	pp.tl.prependList(tl)
}

func (pp *Preprocessor) ungetToken(t *Token) {
	pp.tl.prepend(t)
}

func (pp *Preprocessor) isDefined(s string) bool {
	_, ok := pp.macros[s]
	return ok
}

// inspectingIsDefined answers definedness for conditional directives and
// reports each inspected name to the observers.
func (pp *Preprocessor) inspectingIsDefined(s string) bool {
	for _, cb := range pp.callbacks {
		cb.MacroNameInspected(s)
	}
	return pp.isDefined(s)
}

func (pp *Preprocessor) handleDirective(dirTok *Token) {
	if dirTok.Kind != DIRECTIVE {
		pp.cppError(fmt.Sprintf("internal error %s", dirTok), dirTok.Pos)
	}
	switch dirTok.Val {
	case "if":
		pp.handleIf(dirTok.Pos)
	case "ifdef":
		pp.handleIfDef(dirTok.Pos, false)
	case "ifndef":
		pp.handleIfDef(dirTok.Pos, true)
	case "elif", "else":
		//Reaching an elif or else during normal processing means the
		//branch we just processed was the taken one.
		if pp.condDepth() == 0 {
			pp.cppError("stray #"+dirTok.Val, dirTok.Pos)
		}
		if dirTok.Val == "elif" {
			pp.readTillEndDirective()
		} else {
			pp.expectEndDirective()
		}
		pp.skipTillEndif(dirTok.Pos)
		pp.popCondContext()
		pp.expectEndDirective()
	case "endif":
		pp.handleEndif(dirTok.Pos)
	case "undef":
		pp.handleUndefine()
	case "define":
		pp.handleDefine()
	case "include":
		pp.handleInclude(dirTok.Pos)
	case "error":
		pp.handleError()
	case "warning":
		pp.handleWarning()
	default:
		pp.cppError(fmt.Sprintf("unknown directive error %s", dirTok), dirTok.Pos)
	}
}

func (pp *Preprocessor) expectEndDirective() {
	t := pp.nextNoExpand()
	if t.Kind != END_DIRECTIVE {
		pp.cppError("expected end of directive", t.Pos)
	}
}

// readTillEndDirective collects the remaining tokens of a directive line.
func (pp *Preprocessor) readTillEndDirective() *tokenList {
	tl := newTokenList()
	for {
		t := pp.nextNoExpand()
		if t.Kind == EOF {
			pp.cppError("EOF in directive", t.Pos)
		}
		if t.Kind == END_DIRECTIVE {
			return tl
		}
		tl.append(t)
	}
}

func (pp *Preprocessor) handleIf(pos FilePos) {
	toks := pp.readTillEndDirective()
	pp.pushCondContext()
	v, err := evalIfExpr(pp.inspectingIsDefined, toks)
	if err != nil {
		pp.cppError(err.Error(), pos)
	}
	if v != 0 {
		pp.markCondContextSucceeded()
		return
	}
	pp.advanceToNextBranch(pos)
}

func (pp *Preprocessor) handleIfDef(pos FilePos, negate bool) {
	ident := pp.nextNoExpand()
	if ident.Kind != IDENT {
		pp.cppError("expected an identifier after #ifdef", ident.Pos)
	}
	pp.expectEndDirective()
	pp.pushCondContext()
	v := pp.inspectingIsDefined(ident.Val)
	if negate {
		v = !v
	}
	if v {
		pp.markCondContextSucceeded()
		return
	}
	pp.advanceToNextBranch(pos)
}

func (pp *Preprocessor) handleEndif(pos FilePos) {
	if pp.condDepth() <= 0 {
		pp.cppError("stray #endif", pos)
	}
	pp.popCondContext()
	pp.expectEndDirective()
}

// advanceToNextBranch skips a failed conditional branch until a branch
// that should be processed, or the matching #endif.
func (pp *Preprocessor) advanceToNextBranch(pos FilePos) {
	depth := 0
	for {
		t := pp.nextNoExpand()
		if t.Kind == EOF {
			pp.cppError("unclosed preprocessor conditional", pos)
		}
		if t.Kind != DIRECTIVE {
			continue
		}
		switch t.Val {
		case "if", "ifdef", "ifndef":
			depth += 1
		case "endif":
			if depth == 0 {
				pp.popCondContext()
				pp.expectEndDirective()
				return
			}
			depth -= 1
		case "elif":
			toks := pp.readTillEndDirective()
			if depth != 0 {
				continue
			}
			v, err := evalIfExpr(pp.inspectingIsDefined, toks)
			if err != nil {
				pp.cppError(err.Error(), t.Pos)
			}
			if v != 0 {
				pp.markCondContextSucceeded()
				return
			}
		case "else":
			if depth == 0 {
				pp.expectEndDirective()
				pp.markCondContextSucceeded()
				return
			}
		}
	}
}

// skipTillEndif discards tokens up to and including the #endif that
// closes the current conditional level.
func (pp *Preprocessor) skipTillEndif(pos FilePos) {
	depth := 1
	for {
		t := pp.nextNoExpand()
		if t.Kind == EOF {
			pp.cppError("unclosed preprocessor conditional", pos)
		}
		if t.Kind != DIRECTIVE {
			continue
		}
		if t.Val == "if" || t.Val == "ifdef" || t.Val == "ifndef" {
			depth += 1
			continue
		}
		if t.Val == "endif" {
			depth -= 1
			if depth == 0 {
				return
			}
		}
	}
}

func (pp *Preprocessor) handleError() {
	tok := pp.nextNoExpand()
	if tok.Kind != STRING {
		pp.cppError("expected an error string", tok.Pos)
	}
	pp.cppError(tok.Val, tok.Pos)
}

func (pp *Preprocessor) handleWarning() {
	//XXX
	pp.handleError()
}

func (pp *Preprocessor) handleInclude(hashPos FilePos) {
	tok := pp.nextNoExpand()
	if tok.Kind != HEADER {
		pp.cppError("expected a header", tok.Pos)
	}
	headerStr := tok.Val
	path := headerStr[1 : len(headerStr)-1]
	var headerName string
	var rdr io.Reader
	var err error
	if pp.is == nil {
		err = fmt.Errorf("no include searcher configured")
	} else {
		switch headerStr[0] {
		case '<':
			headerName, rdr, err = pp.is.IncludeAngled(tok.Pos.File, path)
		case '"':
			headerName, rdr, err = pp.is.IncludeQuote(tok.Pos.File, path)
		default:
			pp.cppError("internal error", tok.Pos)
		}
	}
	endTok := pp.nextNoExpand()
	if endTok.Kind != END_DIRECTIVE {
		pp.cppError("expected newline after include", endTok.Pos)
	}
	for _, cb := range pp.callbacks {
		cb.InclusionDirective(hashPos, headerStr, headerName, err)
	}
	if err != nil {
		pp.cppError(fmt.Sprintf("error during include: %s", err), tok.Pos)
	}
	if pp.lxidx+1 == len(pp.lexers) {
		pp.cppError("include depth limit reached", tok.Pos)
	}
	pp.files.Register(headerName, headerName)
	pp.lxidx += 1
	pp.lexers[pp.lxidx] = Lex(headerName, rdr)
}

func (pp *Preprocessor) handleUndefine() {
	ident := pp.nextNoExpand()
	if ident.Kind != IDENT {
		pp.cppError("#undef expected an ident", ident.Pos)
	}
	pp.expectEndDirective()
	if !pp.isDefined(ident.Val) {
		return
	}
	delete(pp.macros, ident.Val)
	for _, cb := range pp.callbacks {
		cb.MacroUndefined(ident.Val)
	}
}

func (pp *Preprocessor) handleDefine() {
	ident := pp.nextNoExpand()
	//XXX should also support keywords and maybe other things
	if ident.Kind != IDENT {
		pp.cppError("#define expected an ident", ident.Pos)
	}
	t := pp.nextNoExpand()
	if t.Kind == FUNCLIKE_DEFINE {
		pp.handleFuncLikeDefine(ident)
	} else {
		pp.ungetToken(t)
		pp.handleObjDefine(ident)
	}
}

func (pp *Preprocessor) defineMacro(m *Macro) {
	//The most recent definition wins, as the report records
	//definitions rather than rejecting redefinition.
	pp.macros[m.Name] = m
	for _, cb := range pp.callbacks {
		cb.MacroDefined(m.Name, m)
	}
}

func (pp *Preprocessor) handleFuncLikeDefine(ident *Token) {
	//First read the arguments.
	paren := pp.nextNoExpand()
	if paren.Kind != LPAREN {
		panic("Bug, func like define without opening LPAREN")
	}

	var params []string
	defEnd := paren.EndPos()

	for {
		t := pp.nextNoExpand()
		if t.Kind == RPAREN {
			defEnd = t.EndPos()
			break
		}
		if t.Kind != IDENT {
			pp.cppError("expected macro argument", t.Pos)
		}
		params = append(params, t.Val)
		t2 := pp.nextNoExpand()
		if t2.Kind == COMMA {
			continue
		} else if t2.Kind == RPAREN {
			defEnd = t2.EndPos()
			break
		} else {
			pp.cppError("error in macro definition expected , or )", t2.Pos)
		}
	}

	var tokens []*Token
	for {
		t := pp.nextNoExpand()
		if t.Kind == END_DIRECTIVE {
			break
		}
		tokens = append(tokens, t)
	}
	if len(tokens) != 0 {
		defEnd = tokens[len(tokens)-1].EndPos()
	}
	pp.defineMacro(newMacro(ident, params, true, tokens, defEnd))
}

func (pp *Preprocessor) handleObjDefine(ident *Token) {
	var tokens []*Token
	defEnd := ident.EndPos()
	for {
		t := pp.nextNoExpand()
		if t.Kind == END_DIRECTIVE {
			break
		}
		tokens = append(tokens, t)
	}
	if len(tokens) != 0 {
		defEnd = tokens[len(tokens)-1].EndPos()
	}
	pp.defineMacro(newMacro(ident, nil, false, tokens, defEnd))
}
