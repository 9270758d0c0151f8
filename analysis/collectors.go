package analysis

import (
	"github.com/dipongkor/maki/cpp"
)

// DefinitionInfoCollector records every macro definition the
// preprocessor observed and every macro name a conditional directive
// inspected.
type DefinitionInfoCollector struct {
	cpp.BasePPCallbacks
	//Most recent definition per macro name.
	Definitions map[string]*cpp.Macro
	//Names whose definedness was queried by #if, #elif, #ifdef,
	//#ifndef or defined(...).
	InspectedNames map[string]struct{}
}

func NewDefinitionInfoCollector() *DefinitionInfoCollector {
	return &DefinitionInfoCollector{
		Definitions:    make(map[string]*cpp.Macro),
		InspectedNames: make(map[string]struct{}),
	}
}

func (dc *DefinitionInfoCollector) MacroDefined(name string, m *cpp.Macro) {
	dc.Definitions[name] = m
}

func (dc *DefinitionInfoCollector) MacroNameInspected(name string) {
	dc.InspectedNames[name] = struct{}{}
}

// Inspected reports whether name appeared in a preprocessor condition.
func (dc *DefinitionInfoCollector) Inspected(name string) bool {
	_, ok := dc.InspectedNames[name]
	return ok
}

// IncludeRecord is one observed #include directive.
type IncludeRecord struct {
	//Position of the '#'.
	HashPos cpp.FilePos
	//The header as written, quotes or angle brackets included.
	Spelled string
	//The path the include resolved to, empty on failure.
	Resolved string
	Err      error
}

// IncludeCollector records every #include directive in order.
type IncludeCollector struct {
	cpp.BasePPCallbacks
	Includes []IncludeRecord
}

func NewIncludeCollector() *IncludeCollector {
	return &IncludeCollector{}
}

func (ic *IncludeCollector) InclusionDirective(hashPos cpp.FilePos, spelled, resolved string, err error) {
	ic.Includes = append(ic.Includes, IncludeRecord{
		HashPos:  hashPos,
		Spelled:  spelled,
		Resolved: resolved,
		Err:      err,
	})
}
