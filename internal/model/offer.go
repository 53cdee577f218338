package model

import (
	"encoding/json"
	"time"
)

// OfferItem is one itemized service line of an offer. Price is the hourly
// rate in euros, Quantity the number of hours.
type OfferItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// Offer is a priced, time-bounded proposal generated from a conversation.
// TotalPrice is always recomputed from the items; the model-supplied total
// is never trusted.
type Offer struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Items       []OfferItem `json:"items"`
	TotalPrice  float64     `json:"total_price"`
	ValidUntil  time.Time   `json:"valid_until"`
}

// CandidateItem is a loosely-typed item as extracted from the model's reply,
// before normalization. Quantity is a float here because the model may emit
// fractional or out-of-range values.
type CandidateItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
}

// CandidateOffer is the provisional offer extracted by the parser. It has
// crossed the parse boundary but not yet the normalize/validate boundary, so
// nothing about it can be relied on.
type CandidateOffer struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Items       []CandidateItem `json:"items"`
	TotalPrice  float64         `json:"totalPrice"`
}

// SavedOffer is the persisted form of an offer: the full offer as an opaque
// blob plus denormalized fields for listing without unmarshalling.
type SavedOffer struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Title      string          `json:"title"`
	TotalPrice float64         `json:"total_price"`
	ValidUntil time.Time       `json:"valid_until"`
	Payload    json.RawMessage `json:"payload"`
	SavedAt    time.Time       `json:"saved_at"`
}

// SaveOfferRequest is the request to persist an offer.
type SaveOfferRequest struct {
	Offer Offer `json:"offer"`
}

// ListOffersResponse is the response for listing saved offers.
type ListOffersResponse struct {
	Offers []SavedOffer `json:"offers"`
	Total  int          `json:"total"`
}
