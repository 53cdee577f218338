package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeError           EventType = "error"
	EventTypeRateLimit       EventType = "rate_limit"
	EventTypeParseAnomaly    EventType = "parse_anomaly"
	EventTypeOfferSuppressed EventType = "offer_suppressed"
)

// ConversationEvent represents an out-of-band event in a conversation, such
// as a collaborator failure or a suppressed offer.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Sequence       uint64         `json:"sequence,omitempty"`
}
