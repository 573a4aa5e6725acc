package expressions

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CompileFilter compiles a flow_selection expression that Decompose could
// not statically reduce to a Query (e.g. it uses a comparison operator
// other than ==/!=/in/not in, or combines terms with || instead of &&).
// The compiled program is evaluated per row at execute time instead, using
// expr-lang's public Compile/Run entry points — the same package the
// teacher already depends on for step condition evaluation
// (internal/expressions/expr.go), just run against a flow row instead of a
// workflow's variable scope.
func CompileFilter(source string) (*vm.Program, error) {
	program, err := expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile flow_selection %q: %w", source, err)
	}
	return program, nil
}

// EvalFilter runs a compiled filter against row (a column -> value map) and
// reports whether the row satisfies it. AllowUndefinedVariables lets a
// missing column resolve to nil; an evaluation error caused by the row's
// data (such as a missing column compared with >) is reported as "does not
// match" with no error, matching Decompose's treatment of an absent
// attribute. A result that is not a boolean is still an error.
func EvalFilter(program *vm.Program, row map[string]any) (bool, error) {
	out, err := expr.Run(program, row)
	if err != nil {
		return false, nil
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("flow_selection must evaluate to a boolean, got %T", out)
	}
	return b, nil
}
