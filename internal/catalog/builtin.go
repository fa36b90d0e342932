// Package catalog ships the built-in strategy set for the pop-up store
// site-selection assistant, plus a YAML overlay loader for adjusting
// descriptions and display texts without recompiling.
package catalog

import (
	"fmt"
	"strings"

	"github.com/popspot/ragengine"
)

// Retrieval tool names the built-in strategies bind to. Implementations are
// registered with the model caller under these names.
const (
	ToolSearchAreas     = "search_areas"
	ToolSearchBuildings = "search_buildings"
	ToolSearchPopups    = "search_popups"
	ToolOnlineSearch    = "online_search"
)

// Builtin returns the full built-in strategy set in catalog order.
func Builtin() []ragengine.StrategyDescriptor {
	return []ragengine.StrategyDescriptor{
		{
			ID:          ragengine.StrategyRequirementAnalysis,
			Description: "Classifies the user's message into a structured requirement with a complexity level.",
			Category:    ragengine.CategoryPreRetrieval,
			Display: ragengine.DisplayInfo{
				Label:      "Understanding your question",
				InProgress: "Reading your question carefully.",
				Completed:  "Got it.",
			},
			BuildPrompt: requirementAnalysisPrompt,
			Tools: ragengine.ToolPolicy{
				Temperature:     0.1,
				MaxOutputTokens: 512,
			},
		},
		{
			ID:          ragengine.StrategyReactPlanner,
			Description: "Designs the step-by-step retrieval and generation plan for the current requirement.",
			Category:    ragengine.CategoryPreRetrieval,
			Display: ragengine.DisplayInfo{
				Label:      "Planning",
				InProgress: "Working out how to answer your question.",
				Completed:  "Plan ready.",
			},
			BuildPrompt: reactPlannerPrompt,
			Tools: ragengine.ToolPolicy{
				Temperature:     0.2,
				MaxOutputTokens: 1024,
			},
		},
		{
			ID:          "AREA_SEARCH",
			Description: "Searches commercial areas and neighborhoods by foot traffic, demographics, and vibe.",
			Category:    ragengine.CategoryRetrieval,
			Display: ragengine.DisplayInfo{
				Label:      "Area search",
				InProgress: "Looking into candidate areas.",
				Completed:  "Area information gathered.",
			},
			BuildPrompt: retrievalPrompt("commercial areas and neighborhoods"),
			Tools: ragengine.ToolPolicy{
				Tools:           []string{ToolSearchAreas},
				ToolCalling:     true,
				Temperature:     0.3,
				MaxOutputTokens: 1024,
			},
		},
		{
			ID:          "BUILDING_SEARCH",
			Description: "Searches rentable buildings and venues by size, rent, and availability.",
			Category:    ragengine.CategoryRetrieval,
			Display: ragengine.DisplayInfo{
				Label:      "Building search",
				InProgress: "Searching for suitable buildings and venues.",
				Completed:  "Building information gathered.",
			},
			BuildPrompt: retrievalPrompt("rentable buildings and venues"),
			Tools: ragengine.ToolPolicy{
				Tools:           []string{ToolSearchBuildings},
				ToolCalling:     true,
				Temperature:     0.3,
				MaxOutputTokens: 1024,
			},
		},
		{
			ID:          "POPUP_SEARCH",
			Description: "Searches past and current pop-up store cases for precedents and outcomes.",
			Category:    ragengine.CategoryRetrieval,
			Display: ragengine.DisplayInfo{
				Label:      "Pop-up case search",
				InProgress: "Reviewing comparable pop-up store cases.",
				Completed:  "Pop-up case information gathered.",
			},
			BuildPrompt: retrievalPrompt("past and current pop-up store cases"),
			Tools: ragengine.ToolPolicy{
				Tools:           []string{ToolSearchPopups},
				ToolCalling:     true,
				Temperature:     0.3,
				MaxOutputTokens: 1024,
			},
		},
		{
			ID:          "ONLINE_SEARCH",
			Description: "Searches the open web for recent news, trends, and facts the internal data lacks.",
			Category:    ragengine.CategoryRetrieval,
			Display: ragengine.DisplayInfo{
				Label:      "Online search",
				InProgress: "Checking recent information online.",
				Completed:  "Online information gathered.",
			},
			BuildPrompt: retrievalPrompt("recent online news, trends, and facts"),
			Tools: ragengine.ToolPolicy{
				Tools:           []string{ToolOnlineSearch},
				ToolCalling:     true,
				Temperature:     0.3,
				MaxOutputTokens: 1024,
			},
		},
		{
			ID:          "CONTEXT_AUGMENTATION",
			Description: "Consolidates and reconciles everything retrieved so far into a coherent briefing.",
			Category:    ragengine.CategoryAugmentation,
			Display: ragengine.DisplayInfo{
				Label:      "Consolidating",
				InProgress: "Combining everything gathered so far.",
				Completed:  "Findings consolidated.",
			},
			BuildPrompt: augmentationPrompt,
			Tools: ragengine.ToolPolicy{
				Temperature:     0.3,
				MaxOutputTokens: 2048,
			},
		},
		{
			ID:          ragengine.StrategyGeneralResponse,
			Description: "Writes a direct conversational answer from the requirement and any gathered context.",
			Category:    ragengine.CategoryGeneration,
			Display: ragengine.DisplayInfo{
				Label:      "Answering",
				InProgress: "Writing your answer.",
				Completed:  "Answer ready.",
			},
			BuildPrompt: generalResponsePrompt,
			Tools: ragengine.ToolPolicy{
				Temperature:     0.7,
				MaxOutputTokens: 2048,
			},
		},
		{
			ID:          "REPORT_GENERATION",
			Description: "Writes a structured site-selection report with recommendations and supporting evidence.",
			Category:    ragengine.CategoryGeneration,
			Display: ragengine.DisplayInfo{
				Label:      "Writing report",
				InProgress: "Putting together your report.",
				Completed:  "Report ready.",
			},
			BuildPrompt: reportGenerationPrompt,
			Tools: ragengine.ToolPolicy{
				Temperature:     0.5,
				MaxOutputTokens: 4096,
			},
		},
		{
			ID:          ragengine.StrategyTitleGeneration,
			Description: "Produces a short conversation title from the first user message.",
			Category:    ragengine.CategoryGeneration,
			Display: ragengine.DisplayInfo{
				Label:      "Titling",
				InProgress: "Naming this conversation.",
				Completed:  "Title ready.",
			},
			BuildPrompt: titleGenerationPrompt,
			Tools: ragengine.ToolPolicy{
				Temperature:     0.3,
				MaxOutputTokens: 64,
			},
		},
	}
}

// NewBuiltinRegistry builds a registry from the built-in strategy set,
// optionally adjusted by overlays.
func NewBuiltinRegistry(overlays ...*Overlay) (*ragengine.Registry, error) {
	descriptors := Builtin()
	for _, overlay := range overlays {
		if overlay == nil {
			continue
		}
		descriptors = overlay.Apply(descriptors)
	}
	return ragengine.NewRegistry(descriptors)
}

func requirementAnalysisPrompt(in ragengine.PromptInput) (string, string) {
	system := `You analyze questions for a pop-up store site-selection assistant.
Classify the user's message and restate it as a self-contained query.

Respond with a fenced JSON object only:
` + "```json" + `
{
  "user_intent": "<what the user wants, one sentence>",
  "processed_query": "<self-contained restatement of the question>",
  "complexity_level": "<SIMPLE | MODERATE | COMPLEX>",
  "context_summary": "<relevant points from the conversation, or empty>",
  "reasoning": "<one sentence on why that complexity>"
}
` + "```" + `

SIMPLE: greetings, thanks, small talk, questions answerable without any lookup.
MODERATE: needs one or two lookups over areas, buildings, pop-up cases, or the web.
COMPLEX: needs multiple lookups combined, comparisons, or a full recommendation.`

	var b strings.Builder
	if in.Summary != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", in.Summary)
	}
	fmt.Fprintf(&b, "User message:\n%s", in.Message)
	return system, b.String()
}

func reactPlannerPrompt(in ragengine.PromptInput) (string, string) {
	system := `You plan the execution steps for a pop-up store site-selection assistant.
Given a classified requirement and the available strategies, design the
smallest ordered sequence of steps that answers it.

Rules:
- Use only strategy ids from the list provided.
- Exactly one GENERATION strategy, and it must be the last step.
- RETRIEVAL steps come first, AUGMENTATION (if needed) after them.
- A step's purpose may reference an earlier result as ${step_N}.

Respond with a fenced JSON object only:
` + "```json" + `
{
  "thought": "<your reasoning about the requirement>",
  "actions": [
    {"step": 1, "strategy": "<STRATEGY_ID>", "purpose": "<what this step must find or produce>", "reasoning": "<why this step>", "expected_output": "<what the result should look like>"}
  ],
  "observation": "<how the steps combine into the final answer>"
}
` + "```"

	var b strings.Builder
	fmt.Fprintf(&b, "Requirement:\n")
	fmt.Fprintf(&b, "- intent: %s\n", in.Requirement.UserIntent)
	fmt.Fprintf(&b, "- query: %s\n", in.Requirement.ProcessedQuery)
	fmt.Fprintf(&b, "- complexity: %s\n", in.Requirement.ComplexityLevel)
	if in.Requirement.ContextSummary != "" {
		fmt.Fprintf(&b, "- context: %s\n", in.Requirement.ContextSummary)
	}
	fmt.Fprintf(&b, "\nAvailable strategies:\n%s", in.Strategies)
	return system, b.String()
}

// retrievalPrompt builds the shared prompt shape for retrieval strategies,
// parameterized by what the strategy searches.
func retrievalPrompt(subject string) ragengine.PromptBuilder {
	return func(in ragengine.PromptInput) (string, string) {
		system := fmt.Sprintf(`You retrieve information about %s for a pop-up store site-selection assistant.
Use the available tools to find what the step asks for, then summarize the
findings factually. Report only what the tools returned; say plainly when
nothing relevant was found.`, subject)

		return system, stepUserPrompt(in)
	}
}

func augmentationPrompt(in ragengine.PromptInput) (string, string) {
	system := `You consolidate research findings for a pop-up store site-selection assistant.
Merge the step results below into one coherent briefing: deduplicate, surface
agreements and conflicts, and keep every concrete figure and name. Do not add
information that is not in the results.`

	return system, stepUserPrompt(in)
}

func generalResponsePrompt(in ragengine.PromptInput) (string, string) {
	system := `You are a friendly, knowledgeable assistant helping plan pop-up stores.
Answer the user conversationally. Ground the answer in the gathered context
when there is any; be honest about gaps instead of inventing specifics.`

	return system, stepUserPrompt(in)
}

func reportGenerationPrompt(in ragengine.PromptInput) (string, string) {
	system := `You write site-selection reports for pop-up store planners.
Produce a structured markdown report from the gathered context: a short
summary, the recommended options with evidence, trade-offs, and next steps.
Every claim must trace back to the gathered context.`

	return system, stepUserPrompt(in)
}

func titleGenerationPrompt(in ragengine.PromptInput) (string, string) {
	system := `You name conversations for a pop-up store site-selection assistant.
Write a title of at most six words capturing the user's topic.
Respond with exactly one line of the form: <title>your title here</title>`

	return system, "First message:\n" + in.Message
}

// stepUserPrompt renders the common step-execution user message: the
// requirement, the step's purpose and expected output, and all accumulated
// context.
func stepUserPrompt(in ragengine.PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User's question: %s\n", in.Requirement.ProcessedQuery)
	if in.Requirement.UserIntent != "" {
		fmt.Fprintf(&b, "Intent: %s\n", in.Requirement.UserIntent)
	}
	if in.Purpose != "" {
		fmt.Fprintf(&b, "\nThis step: %s\n", in.Purpose)
	}
	if in.ExpectedOutput != "" {
		fmt.Fprintf(&b, "Expected output: %s\n", in.ExpectedOutput)
	}
	if in.Context != "" {
		fmt.Fprintf(&b, "\nGathered context:\n%s\n", in.Context)
	}
	return strings.TrimRight(b.String(), "\n")
}
