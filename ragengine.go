// Package ragengine provides the multi-step retrieval-augmented-generation
// execution engine behind the pop-up store site-selection assistant: it
// classifies a user message, plans a sequence of strategy invocations,
// executes the plan with partial-failure tolerance, and streams live progress
// to subscribers.
package ragengine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/popspot/ragengine/internal/statushub"
)

// FailureNotice is the only user-visible text for a turn that could not
// produce an answer even through the fallback path.
const FailureNotice = "I'm sorry - something went wrong while preparing your answer. Please try again in a moment."

// Engine is the main entry point into the RAG execution engine. It
// encapsulates all components required for running chat turns.
type Engine struct {
	// Core components
	classifier Classifier
	planner    Planner
	executor   PlanExecutor
	registry   *Registry
	chatStore  ChatStore
	hub        *statushub.Hub

	// Configuration
	config Config

	// Turn bookkeeping: at most one active execution per chat, full
	// concurrency across chats.
	activeChats map[string]string
	turns       map[string]*TurnContext
	cancels     map[string]context.CancelFunc
	mutex       sync.RWMutex
}

// Config holds the configuration options for the engine.
type Config struct {
	// Per-step model/tool call timeout
	StepTimeout time.Duration

	// Overall turn timeout, bounding a turn whose caller went away
	TurnTimeout time.Duration

	// Number of leading characters of the user message used as the title
	// when title generation yields no usable tag
	TitleFallbackLength int

	// Status hub configuration
	EnableStatusHub  bool
	SubscriberBuffer int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StepTimeout:         time.Second * 60,
		TurnTimeout:         time.Minute * 5,
		TitleFallbackLength: 30,
		EnableStatusHub:     true,
		SubscriberBuffer:    32,
	}
}

// Option is a function that configures an Engine instance.
type Option func(*Engine)

// WithConfig sets the configuration for the engine.
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithClassifier sets the requirement classifier component.
func WithClassifier(classifier Classifier) Option {
	return func(e *Engine) {
		e.classifier = classifier
	}
}

// WithPlanner sets the execution planner component.
func WithPlanner(planner Planner) Option {
	return func(e *Engine) {
		e.planner = planner
	}
}

// WithExecutor sets the plan executor component.
func WithExecutor(executor PlanExecutor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithRegistry sets the strategy registry.
func WithRegistry(registry *Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithChatStore sets the external chat store.
func WithChatStore(store ChatStore) Option {
	return func(e *Engine) {
		e.chatStore = store
	}
}

// WithStatusHub sets the status hub used for the live event stream.
func WithStatusHub(hub *statushub.Hub) Option {
	return func(e *Engine) {
		e.hub = hub
	}
}

// New creates a new Engine instance with the provided options.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		config:      DefaultConfig(),
		activeChats: make(map[string]string),
		turns:       make(map[string]*TurnContext),
		cancels:     make(map[string]context.CancelFunc),
	}

	for _, option := range options {
		option(e)
	}

	// Validate required components
	if e.registry == nil {
		return nil, NewConfigurationError("strategy registry is required", nil)
	}
	if e.classifier == nil {
		return nil, NewConfigurationError("classifier is required", nil)
	}
	if e.planner == nil {
		return nil, NewConfigurationError("planner is required", nil)
	}
	if e.executor == nil {
		return nil, NewConfigurationError("executor is required", nil)
	}

	// The engine itself depends on these registry entries.
	for _, id := range []string{StrategyGeneralResponse, StrategyTitleGeneration} {
		if _, ok := e.registry.FindByID(id); !ok {
			return nil, NewConfigurationError("registry is missing required strategy '"+id+"'", nil)
		}
	}

	// Initialize status hub if enabled but not provided
	if e.config.EnableStatusHub && e.hub == nil {
		e.hub = statushub.NewHub(statushub.WithSubscriberBuffer(e.config.SubscriberBuffer))
		log.Printf("Initialized default status hub")
	}

	return e, nil
}

// Hub returns the status hub for subscribing to execution event streams. It
// is nil when the hub is disabled.
func (e *Engine) Hub() *statushub.Hub {
	return e.hub
}

// Registry returns the engine's strategy registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Process runs one chat turn end to end and returns the final answer with
// its step trace. A second message arriving while the chat already has an
// active execution is rejected with a TURN_ACTIVE error.
//
// The turn is detached from the caller's cancellation: a client that
// disconnects mid-plan does not abort execution, so the assistant message is
// still produced and persisted. The turn is bounded by Config.TurnTimeout
// instead.
func (e *Engine) Process(ctx context.Context, chatID, message string) (*TurnResult, error) {
	tc, runCtx, cancel, err := e.beginTurn(ctx, chatID, message)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer e.endTurn(tc)

	return e.runTurn(runCtx, tc)
}

// ProcessAsync starts a turn without waiting for it. It returns the
// execution id, which callers use to subscribe to the status stream and to
// fetch the result once the stream closes.
func (e *Engine) ProcessAsync(ctx context.Context, chatID, message string) (string, error) {
	tc, runCtx, cancel, err := e.beginTurn(ctx, chatID, message)
	if err != nil {
		return "", err
	}

	go func() {
		defer cancel()
		defer e.endTurn(tc)
		if _, err := e.runTurn(runCtx, tc); err != nil {
			log.Printf("Async turn failed (execution_id: %s, stage: %s, error: %v)", tc.ExecutionID, tc.ErrorStage, err)
		}
	}()

	return tc.ExecutionID, nil
}

// GenerateTitle produces a short chat title from the first user message. It
// never fails the turn: when the model response carries no usable title tag,
// the title falls back to a truncated copy of the message.
func (e *Engine) GenerateTitle(ctx context.Context, message string) (string, error) {
	return e.executor.ExecuteTitle(ctx, message)
}

// beginTurn registers a new execution for the chat, enforcing the
// one-active-execution-per-chat policy.
func (e *Engine) beginTurn(ctx context.Context, chatID, message string) (*TurnContext, context.Context, context.CancelFunc, error) {
	summary := ""
	if e.chatStore != nil {
		s, err := e.chatStore.ConversationSummary(ctx, chatID)
		if err != nil {
			log.Printf("Conversation summary unavailable (chat_id: %s, error: %v)", chatID, err)
		} else {
			summary = s
		}
	}

	executionID := uuid.New().String()
	tc := NewTurnContext(chatID, executionID, message, summary)

	// Detach from the caller's cancellation but keep its values; the turn is
	// bounded by the configured timeout instead.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.TurnTimeout)

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if active, exists := e.activeChats[chatID]; exists {
		cancel()
		log.Printf("Rejecting message on busy chat (chat_id: %s, active_execution: %s)", chatID, active)
		return nil, nil, nil, NewTurnActiveError(chatID)
	}
	e.activeChats[chatID] = executionID
	e.turns[executionID] = tc
	e.cancels[executionID] = cancel

	return tc, runCtx, cancel, nil
}

// endTurn releases the chat for the next message. The turn context is kept
// for result and status queries until CleanupTurns evicts it.
func (e *Engine) endTurn(tc *TurnContext) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.activeChats[tc.ChatID] == tc.ExecutionID {
		delete(e.activeChats, tc.ChatID)
	}
	delete(e.cancels, tc.ExecutionID)
}

// runTurn drives the state machine, finalizes the status stream, and
// persists the assistant message.
func (e *Engine) runTurn(ctx context.Context, tc *TurnContext) (*TurnResult, error) {
	sm := CreateTurnStateMachine(e.components(), e.hub)
	answer, err := sm.Execute(ctx, tc)

	// The stream for an execution ends with CLOSED exactly once, whether the
	// turn completed or failed.
	if e.hub != nil {
		if err != nil {
			e.hub.Publish(context.Background(), tc.ExecutionID, statushub.NewEvent(statushub.PhaseFailed, FailureNotice))
		} else {
			e.hub.Publish(context.Background(), tc.ExecutionID, statushub.NewEvent(statushub.PhaseCompleted, answer))
		}
		e.hub.CloseExecution(context.Background(), tc.ExecutionID)
	}

	if err != nil {
		return nil, err
	}

	result := &TurnResult{
		ExecutionID: tc.ExecutionID,
		Answer:      answer,
		Trace:       tc.Trace,
	}

	if e.chatStore != nil {
		trace := ""
		if tc.Trace != nil {
			if serialized, merr := tc.Trace.Marshal(); merr == nil {
				trace = serialized
			} else {
				log.Printf("Step trace serialization failed (execution_id: %s, error: %v)", tc.ExecutionID, merr)
			}
		}
		msg := ChatMessage{
			ChatID:    tc.ChatID,
			Role:      "assistant",
			Content:   answer,
			StepTrace: trace,
		}
		if serr := e.chatStore.SaveAssistantMessage(context.WithoutCancel(ctx), msg); serr != nil {
			log.Printf("Assistant message persistence failed (execution_id: %s, error: %v)", tc.ExecutionID, serr)
		}
	}

	return result, nil
}

func (e *Engine) components() EngineComponents {
	return EngineComponents{
		Classifier: e.classifier,
		Planner:    e.planner,
		Executor:   e.executor,
		Registry:   e.registry,
		Config:     e.config,
	}
}
