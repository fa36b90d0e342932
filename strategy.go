package ragengine

// StrategyCategory groups strategies by their role in a plan.
type StrategyCategory string

const (
	// CategoryPreRetrieval strategies run before planning (classification,
	// planning itself).
	CategoryPreRetrieval StrategyCategory = "PRE_RETRIEVAL"
	// CategoryRetrieval strategies fetch domain facts, usually through bound
	// tools.
	CategoryRetrieval StrategyCategory = "RETRIEVAL"
	// CategoryAugmentation strategies aggregate and reconcile collected facts.
	CategoryAugmentation StrategyCategory = "AUGMENTATION"
	// CategoryGeneration strategies produce the user-facing answer.
	CategoryGeneration StrategyCategory = "GENERATION"
)

// DisplayInfo carries the user-facing texts shown while a strategy runs.
type DisplayInfo struct {
	Label      string `yaml:"label"`
	InProgress string `yaml:"in_progress"`
	Completed  string `yaml:"completed"`
}

// ToolPolicy describes how the model call for a strategy is made: which
// named tools are bound, whether tool-calling is enabled, the sampling
// temperature, and an optional output token cap.
type ToolPolicy struct {
	Tools           []string
	ToolCalling     bool
	Temperature     float64
	MaxOutputTokens int
}

// PromptInput is the free context handed to a strategy's prompt builder.
// Fields are filled as available: step executions carry the requirement,
// purpose and accumulated context; classification and title generation carry
// the raw message.
type PromptInput struct {
	Requirement    Requirement
	Purpose        string
	ExpectedOutput string
	Context        string
	Message        string
	Summary        string
	Strategies     string
}

// PromptBuilder produces the system and user prompt pair for one model call.
type PromptBuilder func(in PromptInput) (system string, user string)

// StrategyDescriptor is one registry-resident capability: a category, a
// prompt template, a tool policy, and display texts.
type StrategyDescriptor struct {
	ID          string
	Description string
	Category    StrategyCategory
	Display     DisplayInfo
	BuildPrompt PromptBuilder
	Tools       ToolPolicy
}

// Well-known strategy ids the engine itself depends on. The registry handed
// to the engine must contain at least these.
const (
	StrategyRequirementAnalysis = "REQUIREMENT_ANALYSIS"
	StrategyReactPlanner        = "REACT_PLANNER"
	StrategyGeneralResponse     = "GENERAL_RESPONSE"
	StrategyTitleGeneration     = "TITLE_GENERATION"
)

// Registry is the immutable catalog of strategies, built once at startup and
// safe for concurrent reads from any number of chat executions.
type Registry struct {
	byID    map[string]*StrategyDescriptor
	ordered []*StrategyDescriptor
}

// NewRegistry builds a registry from the given descriptors. Ids must be
// globally unique and every descriptor needs a prompt builder.
func NewRegistry(descriptors []StrategyDescriptor) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]*StrategyDescriptor, len(descriptors)),
		ordered: make([]*StrategyDescriptor, 0, len(descriptors)),
	}
	for i := range descriptors {
		desc := descriptors[i]
		if desc.ID == "" {
			return nil, NewConfigurationError("strategy descriptor with empty id", nil)
		}
		if desc.BuildPrompt == nil {
			return nil, NewConfigurationError("strategy '"+desc.ID+"' has no prompt builder", nil)
		}
		if _, exists := r.byID[desc.ID]; exists {
			return nil, NewConfigurationError("duplicate strategy id '"+desc.ID+"'", nil)
		}
		r.byID[desc.ID] = &desc
		r.ordered = append(r.ordered, &desc)
	}
	return r, nil
}

// FindByID returns the descriptor for an id. Absence is not an error; the
// caller decides whether it is fatal.
func (r *Registry) FindByID(id string) (*StrategyDescriptor, bool) {
	desc, ok := r.byID[id]
	return desc, ok
}

// ByCategory returns all descriptors of a category in registration order.
func (r *Registry) ByCategory(category StrategyCategory) []*StrategyDescriptor {
	var out []*StrategyDescriptor
	for _, desc := range r.ordered {
		if desc.Category == category {
			out = append(out, desc)
		}
	}
	return out
}

// IDs returns every registered strategy id in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.ordered))
	for _, desc := range r.ordered {
		ids = append(ids, desc.ID)
	}
	return ids
}

// RetrievalToolNames returns the union of tool names bound to RETRIEVAL
// strategies, in registration order without duplicates. The planner exposes
// these to the model so it can see what retrieval capabilities exist.
func (r *Registry) RetrievalToolNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, desc := range r.ByCategory(CategoryRetrieval) {
		for _, name := range desc.Tools.Tools {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.ordered)
}
