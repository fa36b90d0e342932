package executor

import "strings"

// Failure notices shown on the status stream in place of raw error text.
const (
	noticeTimeout      = "This step is taking longer than expected."
	noticeConnectivity = "We ran into a connectivity problem while looking this up."
	noticeNotFound     = "We could not find the information needed for this step."
	noticeGeneric      = "A temporary problem interrupted this step."
)

// SanitizeFailure maps an internal step error onto a short user-facing
// notice. Raw error text never reaches the status stream; it stays in logs
// and the persisted trace.
func SanitizeFailure(err error) string {
	if err == nil {
		return noticeGeneric
	}
	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, "timeout", "timed out", "deadline exceeded"):
		return noticeTimeout
	case containsAny(text, "network", "connection", "connect", "unreachable"):
		return noticeConnectivity
	case containsAny(text, "not found", "no such", "missing"):
		return noticeNotFound
	default:
		return noticeGeneric
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
