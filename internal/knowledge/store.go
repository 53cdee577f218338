// Package knowledge manages the admin-curated knowledge base and builds the
// assistant's system instructions from it.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angebot-ai/sales-assistant/internal/model"
	natsclient "github.com/angebot-ai/sales-assistant/internal/nats"
)

// Store persists knowledge items in a JetStream key-value bucket.
type Store struct {
	kv *natsclient.KVStore
}

// NewStore creates a knowledge store over the given bucket.
func NewStore(kv *natsclient.KVStore) *Store {
	return &Store{kv: kv}
}

// Create adds a new knowledge item.
func (s *Store) Create(ctx context.Context, req *model.UpsertKnowledgeRequest) (*model.KnowledgeItem, error) {
	now := time.Now().UTC()
	item := &model.KnowledgeItem{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.put(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update replaces the content of an existing item.
func (s *Store) Update(ctx context.Context, id string, req *model.UpsertKnowledgeRequest) (*model.KnowledgeItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		item.Title = req.Title
	}
	if req.Content != "" {
		item.Content = req.Content
	}
	if req.Category != "" {
		item.Category = req.Category
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.put(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get retrieves one item by id.
func (s *Store) Get(ctx context.Context, id string) (*model.KnowledgeItem, error) {
	data, err := s.kv.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("knowledge item %s: %w", id, err)
	}

	var item model.KnowledgeItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal knowledge item: %w", err)
	}
	return &item, nil
}

// Delete removes one item by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, id)
}

// List returns all items ordered by creation time.
func (s *Store) List(ctx context.Context) ([]model.KnowledgeItem, error) {
	values, err := s.kv.ListValues(ctx, "")
	if err != nil {
		return nil, err
	}

	items := make([]model.KnowledgeItem, 0, len(values))
	for _, data := range values {
		var item model.KnowledgeItem
		if err := json.Unmarshal(data, &item); err != nil {
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

func (s *Store) put(ctx context.Context, item *model.KnowledgeItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge item: %w", err)
	}
	return s.kv.Put(ctx, item.ID, data)
}
