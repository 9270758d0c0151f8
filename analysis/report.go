package analysis

import (
	"fmt"
	"io"
)

// ReportWriter serializes the analysis report. The format is line
// oriented: single line records for definitions, inspected names,
// includes and nested invocations, and one brace delimited block per
// top level expansion with every property in a fixed order.
type ReportWriter struct {
	w io.Writer
}

func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{w: w}
}

func (rw *ReportWriter) Definition(name string, valid bool, locOrError string) {
	fmt.Fprintf(rw.w, "Definition %s %t %s\n", name, valid, locOrError)
}

func (rw *ReportWriter) InspectedByCPP(name string) {
	fmt.Fprintf(rw.w, "InspectedByCPP %s\n", name)
}

func (rw *ReportWriter) Include(valid bool, name string) {
	fmt.Fprintf(rw.w, "Include %t %s\n", valid, name)
}

func (rw *ReportWriter) NestedInvocation(name string) {
	fmt.Fprintf(rw.w, "Nested Invocation %s\n", name)
}

func (rw *ReportWriter) InvokedInMacroArgument(name string) {
	fmt.Fprintf(rw.w, "Invoked In Macro Argument %s\n", name)
}

func (rw *ReportWriter) TopLevelInvocation(rec *InvocationRecord) {
	stringEntries := []struct {
		k, v string
	}{
		{"Name", rec.Name},
		{"DefinitionLocation", rec.DefinitionLocation},
		{"InvocationLocation", rec.InvocationLocation},
		{"ASTKind", rec.ASTKind},
		{"TypeSignature", rec.TypeSignature},
	}

	intEntries := []struct {
		k string
		v int
	}{
		{"InvocationDepth", rec.InvocationDepth},
		{"NumASTRoots", rec.NumASTRoots},
		{"NumArguments", rec.NumArguments},
	}

	boolEntries := []struct {
		k string
		v bool
	}{
		{"HasStringification", rec.HasStringification},
		{"HasTokenPasting", rec.HasTokenPasting},
		{"HasAlignedArguments", rec.HasAlignedArguments},
		{"HasSameNameAsOtherDeclaration", rec.HasSameNameAsOtherDeclaration},

		{"DoesExpansionHaveControlFlowStmt", rec.DoesExpansionHaveControlFlowStmt},

		{"DoesBodyReferenceMacroDefinedAfterMacro", rec.DoesBodyReferenceMacroDefinedAfterMacro},
		{"DoesBodyReferenceDeclDeclaredAfterMacro", rec.DoesBodyReferenceDeclDeclaredAfterMacro},
		{"DoesBodyContainDeclRefExpr", rec.DoesBodyContainDeclRefExpr},
		{"DoesSubexpressionExpandedFromBodyHaveLocalType", rec.DoesSubexpressionExpandedFromBodyHaveLocalType},
		{"DoesSubexpressionExpandedFromBodyHaveTypeDefinedAfterMacro", rec.DoesSubexpressionExpandedFromBodyHaveTypeDefinedAfterMacro},

		{"DoesAnyArgumentHaveSideEffects", rec.DoesAnyArgumentHaveSideEffects},
		{"DoesAnyArgumentContainDeclRefExpr", rec.DoesAnyArgumentContainDeclRefExpr},

		{"IsHygienic", rec.IsHygienic},
		{"IsDefinitionLocationValid", rec.IsDefinitionLocationValid},
		{"IsInvocationLocationValid", rec.IsInvocationLocationValid},
		{"IsObjectLike", rec.IsObjectLike},
		{"IsInvokedInMacroArgument", rec.IsInvokedInMacroArgument},
		{"IsNamePresentInCPPConditional", rec.IsNamePresentInCPPConditional},
		{"IsExpansionICE", rec.IsExpansionICE},

		{"IsExpansionTypeNull", rec.IsExpansionTypeNull},
		{"IsExpansionTypeAnonymous", rec.IsExpansionTypeAnonymous},
		{"IsExpansionTypeLocalType", rec.IsExpansionTypeLocalType},
		{"IsExpansionTypeDefinedAfterMacro", rec.IsExpansionTypeDefinedAfterMacro},
		{"IsExpansionTypeVoid", rec.IsExpansionTypeVoid},

		{"IsAnyArgumentTypeNull", rec.IsAnyArgumentTypeNull},
		{"IsAnyArgumentTypeAnonymous", rec.IsAnyArgumentTypeAnonymous},
		{"IsAnyArgumentTypeLocalType", rec.IsAnyArgumentTypeLocalType},
		{"IsAnyArgumentTypeDefinedAfterMacro", rec.IsAnyArgumentTypeDefinedAfterMacro},
		{"IsAnyArgumentTypeVoid", rec.IsAnyArgumentTypeVoid},

		{"IsInvokedWhereModifiableValueRequired", rec.IsInvokedWhereModifiableValueRequired},
		{"IsInvokedWhereAddressableValueRequired", rec.IsInvokedWhereAddressableValueRequired},
		{"IsInvokedWhereICERequired", rec.IsInvokedWhereICERequired},

		{"IsAnyArgumentExpandedWhereModifiableValueRequired", rec.IsAnyArgumentExpandedWhereModifiableValueRequired},
		{"IsAnyArgumentExpandedWhereAddressableValueRequired", rec.IsAnyArgumentExpandedWhereAddressableValueRequired},
		{"IsAnyArgumentConditionallyEvaluated", rec.IsAnyArgumentConditionallyEvaluated},
		{"IsAnyArgumentNeverExpanded", rec.IsAnyArgumentNeverExpanded},
		{"IsAnyArgumentNotAnExpression", rec.IsAnyArgumentNotAnExpression},
	}

	fmt.Fprintf(rw.w, "Top level invocation\t{\n")
	for _, e := range stringEntries {
		fmt.Fprintf(rw.w, "    %q : %q,\n", e.k, e.v)
	}
	for _, e := range intEntries {
		fmt.Fprintf(rw.w, "    %q : %d,\n", e.k, e.v)
	}
	for i, e := range boolEntries {
		sep := ","
		if i == len(boolEntries)-1 {
			sep = ""
		}
		fmt.Fprintf(rw.w, "    %q : %t%s\n", e.k, e.v, sep)
	}
	fmt.Fprintf(rw.w, " }\n")
}
