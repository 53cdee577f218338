// Package service provides the business logic of the sales assistant: the
// chat orchestration pipeline and the conversation and offer services.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/internal/policy"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
)

var (
	// ErrNotFound is returned for missing or foreign-owned records.
	ErrNotFound = errors.New("not found")
	// ErrConversationLimit is returned when a user already holds the
	// maximum number of concurrent conversations.
	ErrConversationLimit = errors.New("conversation limit reached")
	// ErrMessageLimit is returned when an append would push a conversation
	// past the message cap.
	ErrMessageLimit = errors.New("message limit reached")
)

// ConversationService handles conversation metadata: ownership, caps and
// per-conversation counters. Message bodies live in the JetStream stream;
// this index holds only what listing and policy checks need.
type ConversationService struct {
	logger *logger.Logger

	conversations map[string]*model.Conversation
	mu            sync.RWMutex
}

// NewConversationService creates a new conversation service.
func NewConversationService(log *logger.Logger) *ConversationService {
	return &ConversationService{
		logger:        log,
		conversations: make(map[string]*model.Conversation),
	}
}

// Create creates a new conversation, enforcing the per-user cap on
// concurrent conversations.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for _, conv := range s.conversations {
		if conv.UserID == userID && !conv.Deleted {
			active++
		}
	}
	if active >= policy.MaxConversationsPerUser {
		return nil, ErrConversationLimit
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
	)

	copied := *conv
	return &copied, nil
}

// Get retrieves a conversation by ID, scoped to its owner. It returns a copy
// so readers never race with the counter updates happening under the lock.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[conversationID]
	if !exists || conv.UserID != userID || conv.Deleted {
		return nil, ErrNotFound
	}

	copied := *conv
	return &copied, nil
}

// List retrieves a user's conversations.
func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int) (*model.ListConversationsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID && !conv.Deleted {
			convs = append(convs, *conv)
		}
	}

	total := len(convs)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &model.ListConversationsResponse{
		Conversations: convs[start:end],
		Total:         total,
		HasMore:       end < total,
	}, nil
}

// Update renames a conversation.
func (s *ConversationService) Update(ctx context.Context, userID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists || conv.UserID != userID || conv.Deleted {
		return nil, ErrNotFound
	}

	if req.Title != "" {
		conv.Title = req.Title
	}
	conv.UpdatedAt = time.Now()

	copied := *conv
	return &copied, nil
}

// Delete soft deletes a conversation. This is also how a user frees a slot
// once the message cap is hit and a new conversation is needed.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists || conv.UserID != userID {
		return ErrNotFound
	}

	conv.Deleted = true
	conv.UpdatedAt = time.Now()

	return nil
}

// RecordMessage bumps the message counter after a successful append. The
// persistence path rejects an append that would pass the cap.
func (s *ConversationService) RecordMessage(ctx context.Context, userID, conversationID string, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists || conv.UserID != userID || conv.Deleted {
		return ErrNotFound
	}
	if !policy.CanSendMessage(conv.MessageCount) {
		return ErrMessageLimit
	}

	conv.LastMessage = msg
	conv.MessageCount++
	conv.UpdatedAt = time.Now()

	return nil
}

// RecordOffer bumps the per-conversation offer counter.
func (s *ConversationService) RecordOffer(ctx context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists || conv.UserID != userID || conv.Deleted {
		return ErrNotFound
	}

	conv.OffersGenerated++
	conv.UpdatedAt = time.Now()

	return nil
}
