package services

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var validationProgramCache sync.Map

// EvaluateValidationRule compiles and runs a CEL expression against a
// proposed config value. The expression sees one variable, value, as a
// string and must yield a bool. Compiled programs are cached per
// expression text.
func EvaluateValidationRule(expr string, value string) (bool, error) {
	prg, err := validationProgram(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{"value": value})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("expression did not yield a bool")
	}
	return ok, nil
}

func validationProgram(expr string) (cel.Program, error) {
	if cached, ok := validationProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := cel.NewEnv(cel.Variable("value", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	validationProgramCache.Store(expr, prg)
	return prg, nil
}
