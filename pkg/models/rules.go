package models

// Stable rule identifiers.
const (
	RuleSyntaxError = "SYNTAX_ERROR"
	RuleCleanCode   = "CLEAN_CODE"

	RuleDeadAfterTerminal  = "CFG_DEAD_AFTER_TERMINAL"
	RuleDeadBranchLiteral  = "CFG_DEAD_BRANCH_LITERAL"
	RuleInfiniteLoop       = "CFG_INFINITE_LOOP_CONFIRMED"
	RuleUseBeforeAssign    = "DFG_USE_BEFORE_ASSIGN"
	RuleUnusedVariable     = "DFG_UNUSED_VARIABLE"
	RuleVariableShadowing  = "DFG_VARIABLE_SHADOWING"
	RuleTaintSource        = "TAINT_SOURCE"
	RuleTaintPropagation   = "TAINT_PROPAGATION"
	RuleTaintSinkReached   = "TAINT_SINK_REACHED"
	RuleCyclomaticHigh     = "COMPLEXITY_CYCLOMATIC_HIGH"
	RuleCyclomaticModerate = "COMPLEXITY_CYCLOMATIC_MODERATE"
	RuleFunctionVeryLarge  = "STRUCT_FUNCTION_VERY_LARGE"
	RuleFunctionLarge      = "STRUCT_FUNCTION_LARGE"
	RuleDeepNesting        = "STRUCT_DEEP_NESTING"
	RuleTooManyParams      = "DESIGN_TOO_MANY_PARAMS"
	RuleManyParams         = "DESIGN_MANY_PARAMS"
	RuleBareExcept         = "LINT_BARE_EXCEPT"
	RuleEmptyExcept        = "LINT_EMPTY_EXCEPT"
	RuleFileNotClosed      = "RESOURCE_FILE_NOT_CLOSED"
	RuleUnusedImport       = "ARCH_UNUSED_IMPORT"
	RuleSelfImport         = "ARCH_SELF_IMPORT"
	RuleDangerousCall      = "SECURITY_DANGEROUS_CALL"
	RuleFileWrite          = "SECURITY_FILE_WRITE"
)
