package cpp

// PPCallbacks is the observer interface for preprocessor events.
// All callbacks fire synchronously on the goroutine driving the
// preprocessor, in source order.
type PPCallbacks interface {
	//MacroDefined fires for every #define, after the macro is recorded.
	MacroDefined(name string, m *Macro)
	//MacroUndefined fires for every #undef of a known macro.
	MacroUndefined(name string)
	//MacroExpands fires when a replacement begins, before any of the
	//replacement tokens are handed on.
	MacroExpands(inv *Invocation)
	//MacroExpanded fires when every token of the replacement, including
	//tokens of nested replacements, has been consumed.
	MacroExpanded(inv *Invocation)
	//InclusionDirective fires once per #include. hashPos is the
	//position of the '#'. resolved is empty when the include failed.
	InclusionDirective(hashPos FilePos, spelled string, resolved string, err error)
	//MacroNameInspected fires for each identifier whose definedness the
	//preprocessor queries while evaluating #if, #elif, #ifdef or
	//#ifndef conditions.
	MacroNameInspected(name string)
}

// BasePPCallbacks is a no-op PPCallbacks. Observers embed it and
// override only the events they care about.
type BasePPCallbacks struct{}

func (BasePPCallbacks) MacroDefined(string, *Macro)                          {}
func (BasePPCallbacks) MacroUndefined(string)                                {}
func (BasePPCallbacks) MacroExpands(*Invocation)                             {}
func (BasePPCallbacks) MacroExpanded(*Invocation)                            {}
func (BasePPCallbacks) InclusionDirective(FilePos, string, string, error)    {}
func (BasePPCallbacks) MacroNameInspected(string)                            {}
