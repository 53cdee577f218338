package model

import (
	"time"
)

// KnowledgeItem is an admin-managed knowledge base entry injected into the
// assistant's system prompt. Content is markdown and treated as untrusted,
// length-unbounded text by the prompt builder.
type KnowledgeItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertKnowledgeRequest is the request to create or update a knowledge item.
type UpsertKnowledgeRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// ListKnowledgeResponse is the response for listing knowledge items.
type ListKnowledgeResponse struct {
	Items []KnowledgeItem `json:"items"`
	Total int             `json:"total"`
}
