package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateOfferID validates an offer ID.
func ValidateOfferID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid offer ID format")
	}
	return nil
}

// ValidateKnowledgeID validates a knowledge item ID.
func ValidateKnowledgeID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid knowledge item ID format")
	}
	return nil
}

// ValidateTitle validates a conversation or knowledge title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
