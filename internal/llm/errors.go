package llm

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// FailureKind classifies a collaborator failure into the small fixed set the
// orchestrator knows how to present.
type FailureKind string

const (
	FailureNetwork   FailureKind = "network"
	FailureTimeout   FailureKind = "timeout"
	FailureRateLimit FailureKind = "rate_limit"
	FailureMalformed FailureKind = "malformed"
)

// User-facing messages per failure kind. The raw error is logged, never
// shown; these fixed strings are all the user sees.
var userMessages = map[FailureKind]string{
	FailureNetwork:   "Verbindung zum KI-Dienst fehlgeschlagen. Bitte versuchen Sie es erneut.",
	FailureTimeout:   "Der KI-Dienst antwortet gerade nicht. Bitte versuchen Sie es später erneut.",
	FailureRateLimit: "Zu viele Anfragen. Bitte warten Sie einen Moment und versuchen Sie es erneut.",
	FailureMalformed: "Die Antwort des KI-Dienstes konnte nicht verarbeitet werden.",
}

// ErrEmptyResponse marks a response with no usable content.
var ErrEmptyResponse = errors.New("empty completion response")

// Classify maps a collaborator error to its failure kind.
func Classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, ErrEmptyResponse) {
		return FailureMalformed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return FailureRateLimit
		case apiErr.HTTPStatusCode >= 500:
			return FailureNetwork
		default:
			return FailureMalformed
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "overloaded"):
		return FailureRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return FailureTimeout
	case strings.Contains(msg, "unmarshal") || strings.Contains(msg, "decode") || strings.Contains(msg, "unexpected"):
		return FailureMalformed
	default:
		return FailureNetwork
	}
}

// UserMessage returns the fixed user-facing message for an error.
func UserMessage(err error) string {
	return userMessages[Classify(err)]
}
