package ragengine

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeClassificationParse = "CLASSIFICATION_PARSE_ERROR"
	ErrCodeUnknownStrategy     = "UNKNOWN_STRATEGY"
	ErrCodePlanShape           = "PLAN_SHAPE_ERROR"
	ErrCodePlanGeneration      = "PLAN_GENERATION_ERROR"
	ErrCodeStepInvocation      = "STEP_INVOCATION_ERROR"
	ErrCodeFallbackExhausted   = "FALLBACK_EXHAUSTED"
	ErrCodeNullResponse        = "NULL_RESPONSE"
	ErrCodeTurnActive          = "TURN_ACTIVE"
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeCancelled           = "EXECUTION_CANCELLED"
	ErrCodeTimeout             = "EXECUTION_TIMEOUT"
	ErrCodeCache               = "CACHE_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// EngineError is the custom error type for engine-specific errors.
type EngineError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeUnknownStrategy)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "planning", "execution")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EngineError.
func NewError(code, stage, message string, cause error) *EngineError {
	return &EngineError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether err is an EngineError carrying the given code
// anywhere in its chain.
func HasCode(err error, code string) bool {
	for err != nil {
		if ee, ok := err.(*EngineError); ok && ee.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// Specific error constructors

func NewClassificationParseError(cause error) *EngineError {
	return NewError(ErrCodeClassificationParse, "classification", "classifier output is not parseable JSON", cause)
}

func NewUnknownStrategyError(strategyID string) *EngineError {
	return NewError(ErrCodeUnknownStrategy, "planning", fmt.Sprintf("plan references unknown strategy '%s'", strategyID), nil)
}

func NewPlanShapeError(message string) *EngineError {
	return NewError(ErrCodePlanShape, "planning", message, nil)
}

func NewPlanGenerationError(cause error) *EngineError {
	return NewError(ErrCodePlanGeneration, "planning", "failed to generate execution plan", cause)
}

func NewStepInvocationError(strategyID string, cause error) *EngineError {
	return NewError(ErrCodeStepInvocation, "execution", fmt.Sprintf("invocation failed for strategy '%s'", strategyID), cause)
}

func NewFallbackExhaustedError(cause error) *EngineError {
	return NewError(ErrCodeFallbackExhausted, "execution", "fallback generation failed; no answer could be produced", cause)
}

func NewNullResponseError(stage string) *EngineError {
	return NewError(ErrCodeNullResponse, stage, "model returned no content", nil)
}

func NewTurnActiveError(chatID string) *EngineError {
	return NewError(ErrCodeTurnActive, "intake", fmt.Sprintf("chat '%s' already has an active execution", chatID), nil)
}

func NewConfigurationError(message string, cause error) *EngineError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewCancelledError(stage string, cause error) *EngineError {
	msg := "execution cancelled"
	if cause != nil && cause.Error() != "" && cause.Error() != "context canceled" {
		msg = fmt.Sprintf("execution cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewTimeoutError(stage string, cause error) *EngineError {
	return NewError(ErrCodeTimeout, stage, "execution timed out", cause)
}

func NewCacheError(stage, operation string, cause error) *EngineError {
	return NewError(ErrCodeCache, stage, fmt.Sprintf("cache operation '%s' failed", operation), cause)
}

func NewInternalError(stage, message string, cause error) *EngineError {
	return NewError(ErrCodeInternal, stage, message, cause)
}
