package analysis

import (
	"log/slog"
	"strings"

	"github.com/dipongkor/maki/parse"
)

// InvocationRecord is the full property set derived for one top level
// expansion.
type InvocationRecord struct {
	//String properties
	Name               string
	DefinitionLocation string
	InvocationLocation string
	ASTKind            string
	TypeSignature      string

	//Integer properties
	InvocationDepth int
	NumASTRoots     int
	NumArguments    int

	//Boolean properties
	HasStringification            bool
	HasTokenPasting               bool
	HasAlignedArguments           bool
	HasSameNameAsOtherDeclaration bool

	DoesExpansionHaveControlFlowStmt bool

	DoesBodyReferenceMacroDefinedAfterMacro                    bool
	DoesBodyReferenceDeclDeclaredAfterMacro                    bool
	DoesBodyContainDeclRefExpr                                 bool
	DoesSubexpressionExpandedFromBodyHaveLocalType             bool
	DoesSubexpressionExpandedFromBodyHaveTypeDefinedAfterMacro bool

	DoesAnyArgumentHaveSideEffects    bool
	DoesAnyArgumentContainDeclRefExpr bool

	IsHygienic                    bool
	IsDefinitionLocationValid     bool
	IsInvocationLocationValid     bool
	IsObjectLike                  bool
	IsInvokedInMacroArgument      bool
	IsNamePresentInCPPConditional bool
	IsExpansionICE                bool

	IsExpansionTypeNull              bool
	IsExpansionTypeAnonymous         bool
	IsExpansionTypeLocalType         bool
	IsExpansionTypeDefinedAfterMacro bool
	IsExpansionTypeVoid              bool

	IsAnyArgumentTypeNull              bool
	IsAnyArgumentTypeAnonymous         bool
	IsAnyArgumentTypeLocalType         bool
	IsAnyArgumentTypeDefinedAfterMacro bool
	IsAnyArgumentTypeVoid              bool

	IsInvokedWhereModifiableValueRequired  bool
	IsInvokedWhereAddressableValueRequired bool
	IsInvokedWhereICERequired              bool

	IsAnyArgumentExpandedWhereModifiableValueRequired  bool
	IsAnyArgumentExpandedWhereAddressableValueRequired bool
	IsAnyArgumentConditionallyEvaluated                bool
	IsAnyArgumentNeverExpanded                         bool
	IsAnyArgumentNotAnExpression                       bool
}

// Evaluator derives the property set of top level expansions from the
// aligned AST and the auxiliary index.
type Evaluator struct {
	TU    *parse.TranslationUnit
	Index *AuxiliaryIndex
	Defs  *DefinitionInfoCollector

	declNames map[string]bool
}

func NewEvaluator(tu *parse.TranslationUnit, idx *AuxiliaryIndex, defs *DefinitionInfoCollector) *Evaluator {
	ev := &Evaluator{TU: tu, Index: idx, Defs: defs}
	ev.declNames = make(map[string]bool)
	for _, d := range tu.Decls {
		if name := d.DeclName(); name != "" {
			ev.declNames[name] = true
		}
	}
	return ev
}

// Evaluate computes the full property set for a top level expansion.
// The expansion must have Depth 0 and not be argument embedded.
func (ev *Evaluator) Evaluate(exp *MacroExpansionNode) *InvocationRecord {
	slog.Debug("evaluating expansion", "macro", exp.Name)

	rec := &InvocationRecord{
		Name:                          exp.Name,
		InvocationDepth:               exp.Depth,
		NumArguments:                  len(exp.Arguments),
		HasStringification:            exp.HasStringification,
		HasTokenPasting:               exp.HasTokenPasting,
		IsObjectLike:                  exp.Macro.IsObjectLike(),
		IsInvokedInMacroArgument:      exp.InMacroArg,
		IsNamePresentInCPPConditional: ev.Defs.Inspected(exp.Name),
		HasSameNameAsOtherDeclaration: ev.declNames[exp.Name],
	}

	// Definition location
	valid, loc := TryGetFullSourceLoc(ev.TU.Files, exp.Macro.DefPos)
	rec.IsDefinitionLocationValid = valid
	if valid {
		rec.DefinitionLocation = loc
	}

	// Invocation location
	valid, loc = TryGetFullSourceLoc(ev.TU.Files, exp.SpellingRange.Begin)
	rec.IsInvocationLocationValid = valid
	if valid {
		rec.InvocationLocation = loc
	}

	defOff := exp.Macro.DefTUOff

	// Check if any macro this macro invokes was defined after this
	// macro was
	for _, desc := range exp.Descendants() {
		if desc.Macro.DefTUOff > defOff {
			rec.DoesBodyReferenceMacroDefinedAfterMacro = true
			break
		}
	}

	// Next get AST information for top level invocations
	FindAlignedASTNodes(exp, ev.TU)

	rec.NumASTRoots = len(exp.ASTRoots)

	if exp.AlignedRoot != nil {
		switch {
		case exp.AlignedRoot.ST != nil:
			rec.ASTKind = "Stmt"
		case exp.AlignedRoot.D != nil:
			rec.ASTKind = "Decl"
		case exp.AlignedRoot.TL != nil:
			rec.ASTKind = "TypeLoc"
			//Check that this type specifier does not involve a tag or
			//typedef declared after the macro was defined
			ty := exp.AlignedRoot.TL.Ty
			rec.IsExpansionTypeNull = ty == nil
			rec.IsExpansionTypeDefinedAfterMacro = hasTypeDefinedAfter(ty, defOff)
		}
	}

	// Check that the number of AST nodes aligned with each argument
	// equals the number of times that argument was expanded
	rec.HasAlignedArguments = true
	for _, arg := range exp.Arguments {
		if !arg.Aligned() {
			rec.HasAlignedArguments = false
			break
		}
	}

	stmtsFromArgs := make(map[parse.Node]bool)
	// Semantic properties of the macro's arguments
	if rec.HasAlignedArguments {
		for _, arg := range exp.Arguments {
			for _, root := range arg.AlignedRoots {
				for n := range subtrees(root.ST) {
					stmtsFromArgs[n] = true
				}
			}
		}

		fromArgument := func(n parse.Node) bool { return stmtsFromArgs[n] }

		for _, e := range ev.Index.SideEffectExprs {
			if fromArgument(e) {
				rec.DoesAnyArgumentHaveSideEffects = true
				break
			}
		}

		for _, dre := range ev.Index.AllDeclRefs {
			if fromArgument(dre) {
				rec.DoesAnyArgumentContainDeclRefExpr = true
				break
			}
		}

		// Only consider side effect expressions which were not
		// expanded from an argument of the same macro
		for _, e := range ev.Index.SideEffectExprs {
			if fromArgument(e) {
				continue
			}
			var lhs parse.Expr
			switch se := e.(type) {
			case *parse.Binop:
				lhs = se.L
			case *parse.Unop:
				lhs = se.X
			}
			if lhs != nil && fromArgument(skipImplicitAndParens(lhs)) {
				rec.IsAnyArgumentExpandedWhereModifiableValueRequired = true
				break
			}
		}

		for _, u := range ev.Index.AddrOfExprs {
			if fromArgument(u) {
				continue
			}
			if fromArgument(skipImplicitAndParens(u.X)) {
				rec.IsAnyArgumentExpandedWhereAddressableValueRequired = true
				break
			}
		}

	conditional:
		for argStmt := range stmtsFromArgs {
			for _, operand := range ev.Index.ShortCircuitOperands {
				if operand != nil && inTree(argStmt, operand) {
					rec.IsAnyArgumentConditionallyEvaluated = true
					break conditional
				}
			}
		}
	}

	stmtsFromBody := make(map[parse.Node]bool)
	// Semantic properties of the macro body
	if exp.AlignedRoot != nil && exp.AlignedRoot.ST != nil && rec.HasAlignedArguments {
		st := exp.AlignedRoot.ST

		for n := range subtrees(st) {
			stmtsFromBody[n] = true
		}
		// Remove nodes which were actually expanded from arguments
		for n := range stmtsFromArgs {
			delete(stmtsFromBody, n)
		}

		fromBody := func(n parse.Node) bool { return stmtsFromBody[n] }

		// NOTE: This may not be correct if the definition of the decl
		// is separate from its declaration.
		for _, dre := range ev.Index.AllDeclRefs {
			if !fromBody(dre) {
				continue
			}
			if tok := dre.Ref.NameToken(); tok != nil && tok.TUOff > defOff {
				rec.DoesBodyReferenceDeclDeclaredAfterMacro = true
				break
			}
		}

		for _, dre := range ev.Index.AllDeclRefs {
			if fromBody(dre) {
				rec.DoesBodyContainDeclRefExpr = true
				break
			}
		}

		for _, e := range ev.Index.LocalTypeExprs {
			if fromBody(e) {
				rec.DoesSubexpressionExpandedFromBodyHaveLocalType = true
				break
			}
		}

		for n := range stmtsFromBody {
			if e, ok := n.(parse.Expr); ok {
				if hasTypeDefinedAfter(e.Type(), defOff) {
					rec.DoesSubexpressionExpandedFromBodyHaveTypeDefinedAfterMacro = true
					break
				}
			}
		}

		rec.IsHygienic = true
		for n := range ev.Index.LocalDeclRefs {
			if fromBody(n) {
				rec.IsHygienic = false
				break
			}
		}

		for _, lhs := range ev.Index.SideEffectLHSs {
			if skipImplicitAndParens(lhs) == st {
				rec.IsInvokedWhereModifiableValueRequired = true
				break
			}
		}

		for _, u := range ev.Index.AddrOfExprs {
			if skipImplicitAndParens(u.X) == st {
				rec.IsInvokedWhereAddressableValueRequired = true
				break
			}
		}

		rec.IsInvokedWhereICERequired = isDescendantOfNodeRequiringICE(ev.TU, st)

		//// Generate type signature

		// Body type information
		rec.TypeSignature = "void"
		if e, ok := st.(parse.Expr); ok {
			rec.ASTKind = "Expr"

			// Type information about the entire expansion
			ty := e.Type()
			rec.IsExpansionTypeNull = ty == nil

			if ty != nil {
				rec.IsExpansionTypeVoid = parse.IsVoidType(ty)
				rec.IsExpansionTypeAnonymous = hasAnonymousType(ty)
				rec.IsExpansionTypeLocalType = hasLocalType(ty)
				rec.TypeSignature = ty.String()
			}
			rec.IsExpansionTypeDefinedAfterMacro = hasTypeDefinedAfter(ty, defOff)

			// Whether this expression is an integral constant
			// expression
			rec.IsExpansionICE = parse.IsICE(e)
		}

		// Argument type information
		var argTypes []string
		for _, arg := range exp.Arguments {
			if len(arg.AlignedRoots) == 0 {
				rec.IsAnyArgumentNeverExpanded = true
				argTypes = append(argTypes, "<Null>")
				continue
			}

			first := arg.AlignedRoots[0].ST
			e, isExpr := first.(parse.Expr)
			if !isExpr || e == nil {
				rec.IsAnyArgumentNotAnExpression = true
				argTypes = append(argTypes, "<Null>")
				continue
			}

			ty := e.Type()
			if ty == nil {
				rec.IsAnyArgumentTypeNull = true
				argTypes = append(argTypes, "<Null>")
				continue
			}

			if parse.IsVoidType(ty) {
				rec.IsAnyArgumentTypeVoid = true
			}
			if hasAnonymousType(ty) {
				rec.IsAnyArgumentTypeAnonymous = true
			}
			if hasLocalType(ty) {
				rec.IsAnyArgumentTypeLocalType = true
			}
			if hasTypeDefinedAfter(ty, defOff) {
				rec.IsAnyArgumentTypeDefinedAfterMacro = true
			}
			argTypes = append(argTypes, ty.String())
		}
		if exp.Macro.IsFunctionLike && (rec.ASTKind == "Stmt" || rec.ASTKind == "Expr") {
			rec.TypeSignature += "(" + strings.Join(argTypes, ", ") + ")"
		}
	}

	// Set of all nodes expanded from the macro
	for n := range stmtsFromArgs {
		stmtsFromBody[n] = true
	}
	for n := range stmtsFromBody {
		switch n.(type) {
		case *parse.Return, *parse.Continue, *parse.Break, *parse.Goto:
			rec.DoesExpansionHaveControlFlowStmt = true
		}
	}

	return rec
}
