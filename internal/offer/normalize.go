package offer

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/angebot-ai/sales-assistant/internal/model"
)

// Generation-time bounds applied when an offer is first built from a model
// reply. They are deliberately tighter than the acceptance-time bounds in
// rules.go; the two tiers are kept separate on purpose.
const (
	GenMinHourlyRate = 50.0
	GenMaxHourlyRate = 200.0
	GenMinQuantity   = 1
	GenMaxQuantity   = 100

	// GenValidity is the validity window assigned at generation time. The
	// save/validate path later uses the shorter DefaultValidity.
	GenValidity = 30 * 24 * time.Hour
)

// Fallback texts for items the model left unlabeled.
const (
	FallbackItemName        = "Unbenannte Leistung"
	FallbackItemDescription = "Beschreibung fehlt"
	FallbackTitle           = "Individuelles Angebot"
)

// Normalize coerces a candidate offer into a structurally valid Offer. It
// clamps every item into the generation-time bounds, replaces the
// model-supplied total with the recomputed sum and fills in identifier,
// fallback texts and validity window. It never fails; all rejection is
// pushed to the business-rule validator.
func Normalize(candidate *model.CandidateOffer, now time.Time) model.Offer {
	items := make([]model.OfferItem, 0, len(candidate.Items))
	for _, ci := range candidate.Items {
		items = append(items, normalizeItem(ci))
	}

	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}

	title := candidate.Title
	if title == "" {
		title = FallbackTitle
	}

	return model.Offer{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Title:       title,
		Description: candidate.Description,
		Items:       items,
		TotalPrice:  Round2(total),
		ValidUntil:  now.Add(GenValidity).UTC(),
	}
}

func normalizeItem(ci model.CandidateItem) model.OfferItem {
	name := ci.Name
	if name == "" {
		name = FallbackItemName
	}
	description := ci.Description
	if description == "" {
		description = FallbackItemDescription
	}

	price := clamp(ci.Price, GenMinHourlyRate, GenMaxHourlyRate)

	quantity := int(math.Round(ci.Quantity))
	if quantity < GenMinQuantity {
		quantity = GenMinQuantity
	}
	if quantity > GenMaxQuantity {
		quantity = GenMaxQuantity
	}

	return model.OfferItem{
		Name:        name,
		Description: description,
		Price:       Round2(price),
		Quantity:    quantity,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round2 rounds to two decimals, the currency precision used everywhere.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
