// Package classifier turns a raw user message into a structured requirement
// through a single low-temperature model call bound to the
// REQUIREMENT_ANALYSIS strategy.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/popspot/ragengine"
)

// Classifier implements ragengine.Classifier on top of the model-call
// capability and the strategy registry.
type Classifier struct {
	caller   ragengine.ModelCaller
	registry *ragengine.Registry
}

// New creates a classifier. The registry must contain the
// REQUIREMENT_ANALYSIS strategy.
func New(caller ragengine.ModelCaller, registry *ragengine.Registry) (*Classifier, error) {
	if caller == nil {
		return nil, ragengine.NewConfigurationError("model caller is required", nil)
	}
	if registry == nil {
		return nil, ragengine.NewConfigurationError("strategy registry is required", nil)
	}
	if _, ok := registry.FindByID(ragengine.StrategyRequirementAnalysis); !ok {
		return nil, ragengine.NewConfigurationError("registry is missing required strategy '"+ragengine.StrategyRequirementAnalysis+"'", nil)
	}
	return &Classifier{caller: caller, registry: registry}, nil
}

// Classify invokes the model once and parses its fenced-JSON body into a
// Requirement. Output is treated as untrusted: anything that is not a valid
// requirement object yields a CLASSIFICATION_PARSE_ERROR, which the caller
// recovers from by defaulting to MODERATE.
func (c *Classifier) Classify(ctx context.Context, message, summary string) (ragengine.Requirement, error) {
	desc, _ := c.registry.FindByID(ragengine.StrategyRequirementAnalysis)

	system, user := desc.BuildPrompt(ragengine.PromptInput{
		Message: message,
		Summary: summary,
	})

	text, err := c.caller.Invoke(ctx, ragengine.ModelRequest{
		System: system,
		Prompt: user,
		Policy: desc.Tools,
	})
	if err != nil {
		return ragengine.Requirement{}, err
	}

	raw := ragengine.ExtractJSONObject(text)
	if raw == "" {
		return ragengine.Requirement{}, ragengine.NewClassificationParseError(fmt.Errorf("no JSON object in response"))
	}

	var req ragengine.Requirement
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return ragengine.Requirement{}, ragengine.NewClassificationParseError(err)
	}
	if !req.ComplexityLevel.IsValid() {
		return ragengine.Requirement{}, ragengine.NewClassificationParseError(fmt.Errorf("invalid complexity_level %q", req.ComplexityLevel))
	}

	if req.ProcessedQuery == "" {
		req.ProcessedQuery = message
	}

	log.Printf("Requirement classified (complexity: %s, intent: %s)", req.ComplexityLevel, req.UserIntent)
	return req, nil
}
