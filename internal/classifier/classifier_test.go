package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/popspot/ragengine"
)

type stubCaller struct {
	response string
	err      error
	requests []ragengine.ModelRequest
}

func (s *stubCaller) Invoke(ctx context.Context, req ragengine.ModelRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func testRegistry(t *testing.T) *ragengine.Registry {
	t.Helper()
	registry, err := ragengine.NewRegistry([]ragengine.StrategyDescriptor{
		{
			ID:       ragengine.StrategyRequirementAnalysis,
			Category: ragengine.CategoryPreRetrieval,
			BuildPrompt: func(in ragengine.PromptInput) (string, string) {
				return "classify", in.Message
			},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}

func TestClassifyParsesFencedJSON(t *testing.T) {
	caller := &stubCaller{response: "Here is the classification:\n```json\n" +
		`{"user_intent": "find an area", "processed_query": "areas for a beauty pop-up", "complexity_level": "COMPLEX", "reasoning": "needs several lookups"}` +
		"\n```"}
	c, err := New(caller, testRegistry(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req, err := c.Classify(context.Background(), "where should I open a pop-up?", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if req.ComplexityLevel != ragengine.ComplexityComplex {
		t.Errorf("ComplexityLevel = %s, want COMPLEX", req.ComplexityLevel)
	}
	if req.ProcessedQuery != "areas for a beauty pop-up" {
		t.Errorf("ProcessedQuery = %q", req.ProcessedQuery)
	}
}

func TestClassifyDefaultsEmptyProcessedQuery(t *testing.T) {
	caller := &stubCaller{response: `{"user_intent": "chat", "complexity_level": "SIMPLE"}`}
	c, _ := New(caller, testRegistry(t))

	req, err := c.Classify(context.Background(), "hello there", "")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if req.ProcessedQuery != "hello there" {
		t.Errorf("ProcessedQuery = %q, want the raw message", req.ProcessedQuery)
	}
}

func TestClassifyRejectsMalformedOutput(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"no json", "I could not classify that."},
		{"broken json", "```json\n{\"user_intent\": \n```"},
		{"bad complexity", `{"user_intent": "x", "complexity_level": "EXTREME"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := New(&stubCaller{response: tc.response}, testRegistry(t))
			_, err := c.Classify(context.Background(), "message", "")
			if err == nil {
				t.Fatal("Classify succeeded, want parse error")
			}
			if !ragengine.HasCode(err, ragengine.ErrCodeClassificationParse) {
				t.Errorf("error code = %v, want %s", err, ragengine.ErrCodeClassificationParse)
			}
		})
	}
}

func TestClassifyPropagatesCallerError(t *testing.T) {
	callerErr := errors.New("model unavailable")
	c, _ := New(&stubCaller{err: callerErr}, testRegistry(t))

	_, err := c.Classify(context.Background(), "message", "")
	if !errors.Is(err, callerErr) {
		t.Errorf("error = %v, want wrapped caller error", err)
	}
	if ragengine.HasCode(err, ragengine.ErrCodeClassificationParse) {
		t.Error("caller error was misreported as a parse error")
	}
}

func TestNewRequiresAnalysisStrategy(t *testing.T) {
	registry, err := ragengine.NewRegistry([]ragengine.StrategyDescriptor{
		{
			ID:       "SOMETHING_ELSE",
			Category: ragengine.CategoryRetrieval,
			BuildPrompt: func(in ragengine.PromptInput) (string, string) {
				return "", ""
			},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, err := New(&stubCaller{}, registry); err == nil {
		t.Error("New succeeded without REQUIREMENT_ANALYSIS, want error")
	}
}
