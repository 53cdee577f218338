package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/model"
	natsclient "github.com/angebot-ai/sales-assistant/internal/nats"
	"github.com/angebot-ai/sales-assistant/internal/offer"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
)

// ErrInvalidOffer is returned when the save-time structural validation
// fails. The violations are carried alongside.
var ErrInvalidOffer = errors.New("invalid offer")

// InvalidOfferError wraps ErrInvalidOffer with the individual violations so
// the handler can report all of them at once.
type InvalidOfferError struct {
	Violations []string
}

func (e *InvalidOfferError) Error() string {
	return fmt.Sprintf("invalid offer: %s", strings.Join(e.Violations, "; "))
}

func (e *InvalidOfferError) Unwrap() error { return ErrInvalidOffer }

// OfferStore is the key-value persistence the offer service needs. Missing
// keys are reported as natsclient.ErrKeyNotFound.
type OfferStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	ListValues(ctx context.Context, prefix string) ([][]byte, error)
}

// OfferService persists offers a user explicitly saves. Offers are stored as
// an opaque blob plus denormalized title/total for listing; expired offers
// are cleaned up lazily on read.
type OfferService struct {
	kv     OfferStore
	logger *logger.Logger
}

// NewOfferService creates a new offer service over the offers bucket.
func NewOfferService(kv OfferStore, log *logger.Logger) *OfferService {
	return &OfferService{kv: kv, logger: log}
}

func offerKey(userID, offerID string) string {
	return userID + "." + offerID
}

// Save validates and persists an offer for the given user. The save-time
// validator is the weaker structural check; the validity window is repaired
// with the save-time default before the offer is written.
func (s *OfferService) Save(ctx context.Context, userID string, o model.Offer) (*model.SavedOffer, error) {
	now := time.Now()
	o = offer.EnsureValidUntil(o, now)

	if violations := offer.ValidateOffer(o); len(violations) > 0 {
		return nil, &InvalidOfferError{Violations: violations}
	}

	payload, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer: %w", err)
	}

	saved := &model.SavedOffer{
		ID:         o.ID,
		UserID:     userID,
		Title:      o.Title,
		TotalPrice: o.TotalPrice,
		ValidUntil: o.ValidUntil,
		Payload:    payload,
		SavedAt:    now.UTC(),
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal saved offer: %w", err)
	}

	if err := s.kv.Put(ctx, offerKey(userID, o.ID), data); err != nil {
		return nil, err
	}

	s.logger.Info("offer saved",
		zap.String("offer_id", o.ID),
		zap.String("user_id", userID),
		zap.Float64("total_price", o.TotalPrice),
	)

	return saved, nil
}

// Get retrieves one saved offer. An expired offer is deleted on the spot and
// reported as not found.
func (s *OfferService) Get(ctx context.Context, userID, offerID string) (*model.SavedOffer, error) {
	data, err := s.kv.Get(ctx, offerKey(userID, offerID))
	if err != nil {
		if errors.Is(err, natsclient.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var saved model.SavedOffer
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved offer: %w", err)
	}

	if saved.ValidUntil.Before(time.Now()) {
		_ = s.kv.Delete(ctx, offerKey(userID, offerID))
		return nil, ErrNotFound
	}

	return &saved, nil
}

// List returns the user's saved offers, newest first, dropping and deleting
// any whose validity window has passed.
func (s *OfferService) List(ctx context.Context, userID string) (*model.ListOffersResponse, error) {
	values, err := s.kv.ListValues(ctx, userID+".")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	offers := make([]model.SavedOffer, 0, len(values))
	for _, data := range values {
		var saved model.SavedOffer
		if err := json.Unmarshal(data, &saved); err != nil {
			continue
		}
		if saved.ValidUntil.Before(now) {
			_ = s.kv.Delete(ctx, offerKey(userID, saved.ID))
			continue
		}
		offers = append(offers, saved)
	}

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].SavedAt.After(offers[j].SavedAt)
	})

	return &model.ListOffersResponse{Offers: offers, Total: len(offers)}, nil
}

// Delete removes a saved offer.
func (s *OfferService) Delete(ctx context.Context, userID, offerID string) error {
	if err := s.kv.Delete(ctx, offerKey(userID, offerID)); err != nil {
		if errors.Is(err, natsclient.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
