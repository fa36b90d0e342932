package adapters

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/popspot/ragengine"
)

// FuncTool adapts a plain Go function to the ragengine.Tool interface.
type FuncTool struct {
	name        string
	description string
	fn          func(ctx context.Context, input string) (string, error)
	validator   func(input string) error
}

// ToolOption represents an option for configuring a FuncTool.
type ToolOption func(*FuncTool)

// WithDescription sets the tool's description shown to the model.
func WithDescription(description string) ToolOption {
	return func(t *FuncTool) {
		t.description = description
	}
}

// WithValidator sets a custom input validator for the tool.
func WithValidator(validator func(input string) error) ToolOption {
	return func(t *FuncTool) {
		t.validator = validator
	}
}

// NewFuncTool creates a tool from a Go function.
func NewFuncTool(name string, fn func(ctx context.Context, input string) (string, error), options ...ToolOption) *FuncTool {
	t := &FuncTool{
		name: name,
		fn:   fn,
		validator: func(input string) error {
			if input == "" {
				return fmt.Errorf("input cannot be empty")
			}
			return nil
		},
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// Name implements the ragengine.Tool interface.
func (t *FuncTool) Name() string { return t.name }

// Description implements the ragengine.Tool interface.
func (t *FuncTool) Description() string { return t.description }

// Call implements the ragengine.Tool interface.
func (t *FuncTool) Call(ctx context.Context, input string) (string, error) {
	if t.fn == nil {
		return "", fmt.Errorf("tool function is nil")
	}
	if t.validator != nil {
		if err := t.validator(input); err != nil {
			return "", fmt.Errorf("input validation failed for %s: %w", t.name, err)
		}
	}
	return t.fn(ctx, input)
}

// toolQuery is the structured input Genkit presents to the model for a
// text tool.
type toolQuery struct {
	Query string `json:"query" jsonschema_description:"What to search for"`
}

// DefineTextTool registers a ragengine.Tool with Genkit under its own name.
func DefineTextTool(g *genkit.Genkit, tool ragengine.Tool) ai.Tool {
	return genkit.DefineTool(g, tool.Name(), tool.Description(),
		func(ctx *ai.ToolContext, input toolQuery) (string, error) {
			return tool.Call(ctx, input.Query)
		})
}
