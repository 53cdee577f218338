// Package model defines data structures for the sales assistant platform.
package model

import (
	"time"
)

// Conversation represents a conversation thread between one user and the
// assistant. Messages are append-only; the thread itself can be renamed or
// deleted but a message is never edited.
type Conversation struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	MessageCount    int       `json:"message_count,omitempty"`
	OffersGenerated int       `json:"offers_generated,omitempty"`
	LastMessage     *Message  `json:"last_message,omitempty"`
	Deleted         bool      `json:"deleted,omitempty"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversationRequest is the request to rename a conversation.
type UpdateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
