package analysis

import (
	"io"
	"log/slog"
	"sort"

	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

// Consumer ties the preprocessor observers to the property evaluation
// over the finished translation unit, and emits the report.
type Consumer struct {
	Forest   *MacroForest
	Defs     *DefinitionInfoCollector
	Includes *IncludeCollector

	files *cpp.FileSet
}

// NewConsumer registers the three preprocessor observers on pp.
func NewConsumer(pp *cpp.Preprocessor) *Consumer {
	c := &Consumer{
		Forest:   NewMacroForest(),
		Defs:     NewDefinitionInfoCollector(),
		Includes: NewIncludeCollector(),
		files:    pp.Files(),
	}
	pp.AddCallbacks(c.Forest)
	pp.AddCallbacks(c.Includes)
	pp.AddCallbacks(c.Defs)
	return c
}

// HandleTranslationUnit runs alignment and property evaluation over
// the parsed translation unit and writes the report to w.
func (c *Consumer) HandleTranslationUnit(tu *parse.TranslationUnit, w io.Writer) error {
	if c.Forest.Err != nil {
		return c.Forest.Err
	}

	rw := NewReportWriter(w)

	// Print definition information
	names := make([]string, 0, len(c.Defs.Definitions))
	for name := range c.Defs.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := c.Defs.Definitions[name]
		valid, locOrError := TryGetFullSourceLoc(c.files, m.DefPos)
		rw.Definition(name, valid, locOrError)
	}

	// Print names of macros inspected by the preprocessor
	inspected := make([]string, 0, len(c.Defs.InspectedNames))
	for name := range c.Defs.InspectedNames {
		inspected = append(inspected, name)
	}
	sort.Strings(inspected)
	for _, name := range inspected {
		rw.InspectedByCPP(name)
	}

	idx := BuildAuxiliaryIndex(tu)

	// Print include directive information
	localIncludes := make(map[string]bool)
	for _, inc := range c.Includes.Includes {
		valid, name := IsGlobalInclude(c.files, inc, localIncludes, idx.DeclRanges)
		if !valid {
			localIncludes[name] = true
		}
		rw.Include(valid, name)
	}

	// Print macro expansion information
	ev := NewEvaluator(tu, idx, c.Defs)
	for _, exp := range c.Forest.Expansions {
		// Stop here for nested macro invocations and macro arguments
		if exp.InMacroArg {
			rw.InvokedInMacroArgument(exp.Name)
			continue
		}
		if exp.Depth != 0 {
			rw.NestedInvocation(exp.Name)
			continue
		}
		rw.TopLevelInvocation(ev.Evaluate(exp))
	}
	slog.Debug("report complete", "expansions", len(c.Forest.Expansions))

	return nil
}
