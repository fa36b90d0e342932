package executor

import (
	"context"
	"log"
	"strings"

	"github.com/popspot/ragengine"
)

const defaultTitle = "New conversation"

// ExecuteTitle implements the one-shot conversation title generation. It
// never fails the caller: any model error or malformed output falls back to
// a truncated form of the user message, and the result is never empty.
func (e *PlanExecutor) ExecuteTitle(ctx context.Context, userMessage string) (string, error) {
	desc, _ := e.registry.FindByID(ragengine.StrategyTitleGeneration)
	system, user := desc.BuildPrompt(ragengine.PromptInput{Message: userMessage})

	titleCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	text, err := e.caller.Invoke(titleCtx, ragengine.ModelRequest{
		System: system,
		Prompt: user,
		Policy: desc.Tools,
	})
	if err != nil {
		log.Printf("Title generation failed, using fallback: %v", err)
		return e.fallbackTitle(userMessage), nil
	}

	if title := extractTitleTag(text); title != "" {
		return title, nil
	}
	log.Printf("Title response carried no usable <title> tag, using fallback")
	return e.fallbackTitle(userMessage), nil
}

// extractTitleTag pulls the text between <title> and </title>, empty when
// either tag is absent.
func extractTitleTag(text string) string {
	const openTag, closeTag = "<title>", "</title>"
	start := strings.Index(text, openTag)
	if start < 0 {
		return ""
	}
	rest := text[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// fallbackTitle truncates the user message to the configured length,
// counting runes so multi-byte text is never cut mid-character.
func (e *PlanExecutor) fallbackTitle(userMessage string) string {
	trimmed := strings.TrimSpace(userMessage)
	if trimmed == "" {
		return defaultTitle
	}
	runes := []rune(trimmed)
	if len(runes) > e.titleFallbackLength {
		return string(runes[:e.titleFallbackLength])
	}
	return trimmed
}
