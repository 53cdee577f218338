package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents a conversation message. Messages are immutable once
// created; a conversation is the ordered sequence of its messages.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// LLM metadata (nil for user messages)
	Model     *string `json:"model,omitempty"`
	TokensIn  *int    `json:"tokens_in,omitempty"`
	TokensOut *int    `json:"tokens_out,omitempty"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// JetStream metadata (populated on read)
	Sequence uint64 `json:"sequence,omitempty"`
}

// SendMessageRequest is the request to send a new chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// ChatResponse is the orchestrator's answer to a chat turn: the assistant
// reply, optionally a vetted offer, and any policy warnings that apply to
// the conversation after this turn.
type ChatResponse struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message"`
	Offer            *Offer   `json:"offer,omitempty"`
	OfferSuppressed  bool     `json:"offer_suppressed,omitempty"`
	Notice           string   `json:"notice,omitempty"`
	MessageWarning   string   `json:"message_warning,omitempty"`
	OfferWarning     string   `json:"offer_warning,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"has_more"`
	LastSequence uint64    `json:"last_sequence"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// MessageCompleteEvent represents a message completion event.
type MessageCompleteEvent struct {
	Message  Message `json:"message"`
	Sequence uint64  `json:"sequence"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
