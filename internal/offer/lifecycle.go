package offer

import (
	"time"

	"github.com/angebot-ai/sales-assistant/internal/model"
)

// DefaultValidity is the validity window applied at save/validate time when
// an offer carries no usable date. Note this is shorter than GenValidity.
const DefaultValidity = 14 * 24 * time.Hour

// EnsureValidUntil guarantees the offer carries a validity date strictly in
// the future. An absent or already-past date is overwritten with
// now + DefaultValidity; an acceptable date is canonicalized to UTC.
// Idempotent: a second call with the same now leaves a future date alone.
func EnsureValidUntil(o model.Offer, now time.Time) model.Offer {
	if o.ValidUntil.IsZero() || !o.ValidUntil.After(now) {
		o.ValidUntil = now.Add(DefaultValidity).UTC()
		return o
	}
	o.ValidUntil = o.ValidUntil.UTC()
	return o
}

// IsExpired reports whether the offer's validity window has passed. Strict
// comparison: an offer expiring exactly at now is not yet expired.
func IsExpired(o model.Offer, now time.Time) bool {
	return o.ValidUntil.Before(now)
}
