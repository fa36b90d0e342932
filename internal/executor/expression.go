package executor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/popspot/ragengine"
)

// Planner-authored step purposes may reference earlier results with
// ${step_N} placeholders, or compute over them with ${= expr} where the
// expression sees step_N variables. Unresolvable references are left
// verbatim so the model still sees what the planner intended.
var referencePattern = regexp.MustCompile(`\$\{[^{}]+\}`)

// ExpressionFunctionRegistry allows registration of custom functions for
// ${= expr} evaluation.
type ExpressionFunctionRegistry struct {
	functions map[string]govaluate.ExpressionFunction
}

var globalExprFuncRegistry = &ExpressionFunctionRegistry{functions: make(map[string]govaluate.ExpressionFunction)}

// RegisterExpressionFunction allows users to register a custom function for
// expressions.
func RegisterExpressionFunction(name string, fn govaluate.ExpressionFunction) {
	globalExprFuncRegistry.functions[name] = fn
}

// getWhitelistedFunctions returns only whitelisted functions for security.
func getWhitelistedFunctions() map[string]govaluate.ExpressionFunction {
	whitelist := map[string]govaluate.ExpressionFunction{}
	for k, v := range globalExprFuncRegistry.functions {
		whitelist[k] = v
	}
	return whitelist
}

// ValidateExpression checks if an expression is valid before execution time.
func ValidateExpression(expr string) error {
	_, err := govaluate.NewEvaluableExpressionWithFunctions(expr, getWhitelistedFunctions())
	return err
}

// ResolveReferences substitutes ${step_N} and ${= expr} placeholders in text
// against the accumulated context.
func ResolveReferences(text string, acc *ragengine.AccumulatedContext) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return referencePattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-1])

		if expr, ok := strings.CutPrefix(inner, "="); ok {
			return evaluateExpression(expr, acc, match)
		}

		if numText, ok := strings.CutPrefix(inner, "step_"); ok {
			if n, err := strconv.Atoi(numText); err == nil {
				if result, found := acc.Get(n); found {
					return result
				}
			}
		}
		return match
	})
}

func evaluateExpression(expr string, acc *ragengine.AccumulatedContext, fallback string) string {
	evaluable, err := govaluate.NewEvaluableExpressionWithFunctions(expr, getWhitelistedFunctions())
	if err != nil {
		return fallback
	}

	params := make(map[string]interface{}, acc.Len())
	for _, n := range acc.StepNumbers() {
		result, _ := acc.Get(n)
		params[fmt.Sprintf("step_%d", n)] = result
	}

	value, err := evaluable.Evaluate(params)
	if err != nil {
		return fallback
	}
	return fmt.Sprintf("%v", value)
}
