// Package policy implements the stateless conversation rules: message and
// offer caps, the substantive-input gate and the user-facing limit warnings.
// Everything here is a pure function called on every state transition.
package policy

import (
	"fmt"
	"strings"

	"github.com/angebot-ai/sales-assistant/internal/model"
)

const (
	// MaxMessagesPerConversation is the hard message cap per conversation.
	MaxMessagesPerConversation = 50
	// MessageWarningThreshold is the count at which the headroom warning
	// starts appearing.
	MessageWarningThreshold = 45

	// MaxOffersPerConversation caps offer generations per conversation.
	MaxOffersPerConversation = 3

	// MinUserMessagesForOffer is the minimum number of user-authored
	// messages before an offer may be generated.
	MinUserMessagesForOffer = 5
	// MinWordsPerUserMessage: every user message must exceed this many
	// whitespace-delimited words for offer generation to unlock.
	MinWordsPerUserMessage = 50

	// MaxConversationsPerUser caps concurrent conversations per account.
	MaxConversationsPerUser = 3
)

// CanSendMessage reports whether another message fits under the hard cap.
func CanSendMessage(messageCount int) bool {
	return messageCount < MaxMessagesPerConversation
}

// CanCreateOffer decides whether a new offer may be generated. The gate is
// conjunctive over the whole history: the quota must have headroom, at least
// MinUserMessagesForOffer user messages must exist, and every single user
// message must exceed MinWordsPerUserMessage words. One short early message
// blocks offer creation for the rest of the conversation.
func CanCreateOffer(messages []model.Message, offersGenerated int) bool {
	if offersGenerated >= MaxOffersPerConversation {
		return false
	}

	userMessages := 0
	for _, msg := range messages {
		if msg.Role != model.RoleUser {
			continue
		}
		userMessages++
		if WordCount(msg.Content) <= MinWordsPerUserMessage {
			return false
		}
	}

	return userMessages >= MinUserMessagesForOffer
}

// WordCount counts whitespace-delimited non-empty tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// MessageLimitWarning returns a warning carrying the remaining headroom once
// the conversation approaches the message cap, or "" below the threshold.
func MessageLimitWarning(messageCount int) string {
	if messageCount < MessageWarningThreshold {
		return ""
	}
	remaining := MaxMessagesPerConversation - messageCount
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("Noch %d Nachrichten in diesem Gespräch möglich.", remaining)
}

// OfferLimitWarning returns a warning once the offer quota is exhausted,
// or "" while headroom remains.
func OfferLimitWarning(offersGenerated int) string {
	if offersGenerated < MaxOffersPerConversation {
		return ""
	}
	return fmt.Sprintf("Das Limit von %d Angeboten pro Gespräch ist erreicht.", MaxOffersPerConversation)
}
