package cpp

//Data structures representing macros inside the c preprocessor,
//and the record of each replacement the preprocessor performs.
//Macro values should be treated as immutable once defined.

// Macro is one #define, object-like or function-like.
type Macro struct {
	Name string
	//Ordered formal parameter names, nil for object-like macros.
	Params []string
	//Map of param name to 0 based position, derived from Params.
	paramIdx map[string]int
	//The body tokens of the macro.
	Tokens []*Token
	//Position of the macro name in the #define directive.
	DefPos FilePos
	//End of the last body token, or of the name/parameter list
	//when the body is empty.
	DefEnd FilePos
	//Translation unit order of the definition.
	DefTUOff       int
	IsFunctionLike bool
}

func newMacro(ident *Token, params []string, isFunctionLike bool, tokens []*Token, defEnd FilePos) *Macro {
	m := &Macro{
		Name:           ident.Val,
		Params:         params,
		Tokens:         tokens,
		DefPos:         ident.Pos,
		DefEnd:         defEnd,
		DefTUOff:       ident.TUOff,
		IsFunctionLike: isFunctionLike,
	}
	if isFunctionLike {
		m.paramIdx = make(map[string]int)
		for i, p := range params {
			m.paramIdx[p] = i
		}
	}
	return m
}

func (m *Macro) IsObjectLike() bool {
	return !m.IsFunctionLike
}

func (m *Macro) isParam(t *Token) (int, bool) {
	if m.paramIdx == nil || t.Kind != IDENT {
		return 0, false
	}
	idx, ok := m.paramIdx[t.Val]
	return idx, ok
}

// DefinitionRange spans the macro name through the end of its body.
func (m *Macro) DefinitionRange() SourceRange {
	return SourceRange{m.DefPos, m.DefEnd}
}

// InvocationArg is one actual argument of a function-like macro
// invocation, as spelled by the caller.
type InvocationArg struct {
	//Formal parameter name this argument binds.
	Name string
	//The caller's tokens, prior to any expansion.
	Tokens []*Token
	//One record per substitution of the parameter into the body.
	Substs []*ArgSubst
}

// NumExpansions is the number of times the bound parameter was
// substituted into the macro body.
func (a *InvocationArg) NumExpansions() int {
	return len(a.Substs)
}

// ArgSubst identifies a single substitution instance of an argument
// into a macro body. Tokens copied for that instance point back here.
type ArgSubst struct {
	Arg *InvocationArg
}

// Invocation is one macro replacement event.
type Invocation struct {
	Name  string
	Macro *Macro
	//The identifier token that triggered the replacement.
	NameTok *Token
	//The closing paren of a function-like invocation, nil otherwise.
	RParen *Token
	//Arguments in parameter order, nil for object-like invocations.
	Args []*InvocationArg
	//The invocation whose replacement this one was triggered from,
	//nil for invocations spelled directly in a file.
	Parent *Invocation
	//True when the name token was spelled by an argument substitution,
	//i.e. the developer wrote this macro name as (part of) an argument
	//to an enclosing invocation.
	InMacroArg bool
}

// SpellingRange is the raw extent of the invocation text as typed: the
// macro name through the closing paren for function-like invocations.
// For nested invocations this lies inside the parent macro's
// definition.
func (inv *Invocation) SpellingRange() SourceRange {
	r := inv.NameTok.Range()
	if inv.RParen != nil {
		r.End = inv.RParen.EndPos()
	}
	return r
}

// FileRange maps the invocation to the file text ultimately responsible
// for it, resolving through enclosing expansions.
func (inv *Invocation) FileRange() SourceRange {
	r := inv.NameTok.FileRange()
	if inv.RParen != nil {
		r.End = inv.RParen.FileRange().End
	}
	return r
}
