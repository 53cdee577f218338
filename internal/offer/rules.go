package offer

import (
	"fmt"
	"math"

	"github.com/angebot-ai/sales-assistant/internal/model"
)

// Acceptance-time bounds an offer must satisfy to be considered well-formed
// for display. Wider than the generation-time clamps in normalize.go.
const (
	MinOfferValue    = 100.0
	MaxOfferValue    = 50000.0
	MaxItemsPerOffer = 10

	MinHourlyRate   = 50.0
	MaxHourlyRate   = 500.0
	MaxItemQuantity = 200

	MinDescriptionLen = 10
	MaxDescriptionLen = 500

	// TotalTolerance is the allowed drift between the declared total and
	// the sum recomputed from the items.
	TotalTolerance = 0.01
)

// ValidateBusinessRules checks an offer against the acceptance bounds and
// returns every violation as a human-readable message. It accumulates
// instead of short-circuiting so one report can list all problems. An empty
// slice means the offer passes.
func ValidateBusinessRules(o model.Offer) []string {
	var violations []string

	if o.TotalPrice < MinOfferValue {
		violations = append(violations, fmt.Sprintf(
			"Gesamtpreis %.2f € liegt unter dem Minimum von %.0f €", o.TotalPrice, MinOfferValue))
	}
	if o.TotalPrice > MaxOfferValue {
		violations = append(violations, fmt.Sprintf(
			"Gesamtpreis %.2f € übersteigt das Maximum von %.0f €", o.TotalPrice, MaxOfferValue))
	}
	if len(o.Items) > MaxItemsPerOffer {
		violations = append(violations, fmt.Sprintf(
			"Angebot enthält %d Positionen, erlaubt sind höchstens %d", len(o.Items), MaxItemsPerOffer))
	}

	for i, it := range o.Items {
		pos := i + 1
		if it.Price < MinHourlyRate {
			violations = append(violations, fmt.Sprintf(
				"Position %d: Stundensatz %.2f € liegt unter dem Minimum von %.0f €", pos, it.Price, MinHourlyRate))
		}
		if it.Price > MaxHourlyRate {
			violations = append(violations, fmt.Sprintf(
				"Position %d: Stundensatz %.2f € übersteigt das Maximum von %.0f €", pos, it.Price, MaxHourlyRate))
		}
		if it.Quantity > MaxItemQuantity {
			violations = append(violations, fmt.Sprintf(
				"Position %d: %d Stunden übersteigen das Maximum von %d", pos, it.Quantity, MaxItemQuantity))
		}
		if len(it.Description) < MinDescriptionLen {
			violations = append(violations, fmt.Sprintf(
				"Position %d: Beschreibung ist kürzer als %d Zeichen", pos, MinDescriptionLen))
		}
		if len(it.Description) > MaxDescriptionLen {
			violations = append(violations, fmt.Sprintf(
				"Position %d: Beschreibung ist länger als %d Zeichen", pos, MaxDescriptionLen))
		}
	}

	var sum float64
	for _, it := range o.Items {
		sum += it.Price * float64(it.Quantity)
	}
	if math.Abs(o.TotalPrice-Round2(sum)) > TotalTolerance {
		violations = append(violations, fmt.Sprintf(
			"Gesamtpreis %.2f € stimmt nicht mit der Summe der Positionen (%.2f €) überein", o.TotalPrice, Round2(sum)))
	}

	return violations
}

// ValidateOffer is the simpler structural check run before an offer is
// persisted. Strictly weaker than ValidateBusinessRules; the two run at
// different lifecycle points and stay separate.
func ValidateOffer(o model.Offer) []string {
	var violations []string

	if o.Title == "" {
		violations = append(violations, "Titel darf nicht leer sein")
	}
	if o.Description == "" {
		violations = append(violations, "Beschreibung darf nicht leer sein")
	}
	if len(o.Items) == 0 {
		violations = append(violations, "Angebot enthält keine Positionen")
	}
	if o.TotalPrice <= 0 {
		violations = append(violations, "Gesamtpreis muss größer als 0 sein")
	}

	for i, it := range o.Items {
		pos := i + 1
		if it.Name == "" {
			violations = append(violations, fmt.Sprintf("Position %d: Name darf nicht leer sein", pos))
		}
		if it.Price <= 0 {
			violations = append(violations, fmt.Sprintf("Position %d: Preis muss größer als 0 sein", pos))
		}
		if it.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("Position %d: Stundenzahl muss größer als 0 sein", pos))
		}
	}

	return violations
}

// Summary produces a one-line digest of an offer for display and logging.
// Reporting only; it never rejects anything.
func Summary(o model.Offer) string {
	totalHours := 0
	for _, it := range o.Items {
		totalHours += it.Quantity
	}
	avgRate := 0.0
	if totalHours > 0 {
		avgRate = o.TotalPrice / float64(totalHours)
	}
	return fmt.Sprintf("%d Positionen, %d Stunden, Ø %.2f €/h", len(o.Items), totalHours, avgRate)
}
