// Package script embeds an expression engine for constructs that need
// computed values, such as `@for x in @expr "..."` loop sources. It
// wraps expr-lang: the current variable environment is exposed to the
// expression, plus a small set of builtins.
package script

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/okubit/humid/internal/emitter"
)

// Evaluator compiles and runs expressions against a variable
// environment. It is stateless between calls and safe to share across
// plugin clones.
type Evaluator struct{}

// NewEvaluator returns a ready Evaluator.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Eval runs code with the given variables in scope and returns the
// result as text values: a slice result yields one text per element,
// a scalar yields a single text. Engine failures come back as
// *emitter.ScriptError carrying the offending source.
func (ev *Evaluator) Eval(code string, vars map[string]string) ([]string, error) {
	env := make(map[string]any, len(vars)+len(builtins))
	for name, fn := range builtins {
		env[name] = fn
	}
	for name, val := range vars {
		env[name] = val
	}

	program, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, emitter.NewScriptError(err, code)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, emitter.NewScriptError(err, code)
	}
	return flatten(out), nil
}

func flatten(out any) []string {
	switch val := out.(type) {
	case nil:
		return nil
	case []any:
		texts := make([]string, len(val))
		for i, item := range val {
			texts[i] = stringify(item)
		}
		return texts
	case []string:
		return val
	case []int:
		texts := make([]string, len(val))
		for i, item := range val {
			texts[i] = stringify(item)
		}
		return texts
	default:
		return []string{stringify(val)}
	}
}

func stringify(val any) string {
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", val)
}
