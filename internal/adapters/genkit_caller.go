// Package adapters bridges the engine's model-call and tool interfaces onto
// Genkit, keeping every Genkit type out of the engine's own packages.
package adapters

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/popspot/ragengine"
)

// GenkitCaller implements ragengine.ModelCaller on a Genkit instance. Tools
// are registered up front by name; a request's tool policy selects which of
// them a given call may use.
type GenkitCaller struct {
	g        *genkit.Genkit
	tools    map[string]ai.Tool
	model    string
	maxTurns int
}

// CallerOption represents an option for configuring a GenkitCaller.
type CallerOption func(*GenkitCaller)

// WithModelName overrides the Genkit default model for this caller.
func WithModelName(model string) CallerOption {
	return func(c *GenkitCaller) {
		c.model = model
	}
}

// WithMaxTurns bounds the tool-calling loop for tool-enabled requests.
func WithMaxTurns(maxTurns int) CallerOption {
	return func(c *GenkitCaller) {
		if maxTurns > 0 {
			c.maxTurns = maxTurns
		}
	}
}

// NewGenkitCaller creates a caller bound to an initialized Genkit instance.
func NewGenkitCaller(g *genkit.Genkit, options ...CallerOption) (*GenkitCaller, error) {
	if g == nil {
		return nil, ragengine.NewConfigurationError("genkit instance is required", nil)
	}
	c := &GenkitCaller{
		g:        g,
		tools:    make(map[string]ai.Tool),
		maxTurns: 5,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// RegisterTool defines tool with Genkit and makes it selectable by name in
// tool policies.
func (c *GenkitCaller) RegisterTool(tool ragengine.Tool) {
	c.tools[tool.Name()] = DefineTextTool(c.g, tool)
}

// Invoke implements ragengine.ModelCaller.
func (c *GenkitCaller) Invoke(ctx context.Context, req ragengine.ModelRequest) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithSystem(req.System),
		ai.WithPrompt(req.Prompt),
	}
	if c.model != "" {
		opts = append(opts, ai.WithModelName(c.model))
	}

	config := &ai.GenerationCommonConfig{}
	if req.Policy.Temperature > 0 {
		config.Temperature = req.Policy.Temperature
	}
	if req.Policy.MaxOutputTokens > 0 {
		config.MaxOutputTokens = req.Policy.MaxOutputTokens
	}
	opts = append(opts, ai.WithConfig(config))

	if req.Policy.ToolCalling && len(req.Policy.Tools) > 0 {
		refs := make([]ai.ToolRef, 0, len(req.Policy.Tools))
		for _, name := range req.Policy.Tools {
			tool, ok := c.tools[name]
			if !ok {
				return "", ragengine.NewConfigurationError("tool '"+name+"' is not registered", nil)
			}
			refs = append(refs, tool)
		}
		opts = append(opts, ai.WithTools(refs...), ai.WithMaxTurns(c.maxTurns))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", ragengine.NewNullResponseError("model")
	}
	return text, nil
}
