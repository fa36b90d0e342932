package executor

import (
	"testing"

	"github.com/popspot/ragengine"
)

func accWith(t *testing.T, results map[int]string) *ragengine.AccumulatedContext {
	t.Helper()
	acc := ragengine.NewAccumulatedContext()
	for n, result := range results {
		acc.Append(n, result)
	}
	return acc
}

func TestResolveReferences(t *testing.T) {
	acc := accWith(t, map[int]string{
		1: "Seongsu area facts",
		2: "Warehouse B2 at 2400/week",
	})

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no references", "answer the question", "answer the question"},
		{"single reference", "answer using ${step_1}", "answer using Seongsu area facts"},
		{"two references", "combine ${step_1} and ${step_2}", "combine Seongsu area facts and Warehouse B2 at 2400/week"},
		{"unknown step left verbatim", "use ${step_9}", "use ${step_9}"},
		{"non-step placeholder left verbatim", "use ${budget}", "use ${budget}"},
		{"whitespace tolerated", "use ${ step_1 }", "use Seongsu area facts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveReferences(tc.in, acc); got != tc.want {
				t.Errorf("ResolveReferences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestResolveExpressionForm(t *testing.T) {
	acc := accWith(t, map[int]string{1: "alpha", 2: "beta"})

	got := ResolveReferences("joined: ${= step_1 + \" / \" + step_2}", acc)
	if got != "joined: alpha / beta" {
		t.Errorf("expression result = %q", got)
	}

	// A broken expression stays verbatim instead of erroring the step.
	in := "use ${= step_1 +}"
	if got := ResolveReferences(in, acc); got != in {
		t.Errorf("broken expression = %q, want input unchanged", got)
	}
}

func TestValidateExpression(t *testing.T) {
	if err := ValidateExpression("step_1 + step_2"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateExpression("step_1 +"); err == nil {
		t.Error("invalid expression accepted")
	}
}
