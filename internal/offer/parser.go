// Package offer implements the offer extraction and validation pipeline:
// parsing a marker-delimited block out of a model reply, normalizing it into
// a well-formed offer and checking it against the business-rule bounds.
package offer

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/angebot-ai/sales-assistant/internal/model"
)

// Wire markers. The JSON format wraps a JSON object, the pipe format wraps
// three labeled lines. Both are documented verbatim to the model in its
// system instructions; detection tries JSON first.
const (
	JSONStartMarker = "[ANGEBOT_START]"
	JSONEndMarker   = "[ANGEBOT_END]"

	PipeStartMarker = "---ANGEBOT---"
	PipeEndMarker   = "---ANGEBOT_ENDE---"
)

// PricePlaceholder replaces free-floating price mentions scrubbed from the
// prose around a pipe-format block.
const PricePlaceholder = "[Preis siehe Angebot]"

// Format identifies which wire format a block was parsed from.
type Format string

const (
	FormatNone Format = ""
	FormatJSON Format = "json"
	FormatPipe Format = "pipe"
)

// Result is the outcome of extracting an offer from a model reply. Offer is
// nil when no well-formed block was found; CleanMessage is always safe to
// show to the user. Parsing never fails: every anomaly degrades to a plain
// reply or a dropped item.
type Result struct {
	Offer        *model.CandidateOffer
	CleanMessage string
	Format       Format
	// DroppedItems counts pipe-format item quadruples discarded because
	// their numeric fields did not parse.
	DroppedItems int
}

var (
	// Matches amounts next to a currency token in either order, for
	// scrubbing prose around a pipe-format block.
	priceBeforeCurrency = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:€|EUR\b|Euro\b)`)
	currencyBeforePrice = regexp.MustCompile(`(?:€|EUR|Euro)\s*\d+(?:[.,]\d+)?`)

	multiBlank = regexp.MustCompile(`\n{3,}`)
)

// Parse extracts a candidate offer from a model reply. The matched block is
// removed from CleanMessage so the raw payload is never shown verbatim.
// A start marker without a matching end marker counts as "no offer found"
// and leaves the text untouched.
func Parse(text string) Result {
	if res, ok := parseJSONBlock(text); ok {
		return res
	}
	if res, ok := parsePipeBlock(text); ok {
		return res
	}
	return Result{Offer: nil, CleanMessage: text, Format: FormatNone}
}

func parseJSONBlock(text string) (Result, bool) {
	start := strings.Index(text, JSONStartMarker)
	if start < 0 {
		return Result{}, false
	}
	rest := text[start+len(JSONStartMarker):]
	end := strings.Index(rest, JSONEndMarker)
	if end < 0 {
		// Truncated block: do not attempt partial extraction.
		return Result{Offer: nil, CleanMessage: text, Format: FormatNone}, true
	}

	payload := rest[:end]

	var candidate model.CandidateOffer
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &candidate); err != nil {
		return Result{Offer: nil, CleanMessage: text, Format: FormatNone}, true
	}
	if candidate.Items == nil {
		return Result{Offer: nil, CleanMessage: text, Format: FormatNone}, true
	}

	clean := text[:start] + rest[end+len(JSONEndMarker):]
	return Result{
		Offer:        &candidate,
		CleanMessage: tidy(clean),
		Format:       FormatJSON,
	}, true
}

func parsePipeBlock(text string) (Result, bool) {
	start := strings.Index(text, PipeStartMarker)
	if start < 0 {
		return Result{}, false
	}
	rest := text[start+len(PipeStartMarker):]
	end := strings.Index(rest, PipeEndMarker)
	if end < 0 {
		return Result{Offer: nil, CleanMessage: text, Format: FormatNone}, true
	}

	block := rest[:end]
	candidate, dropped, ok := parsePipePayload(block)
	if !ok {
		return Result{Offer: nil, CleanMessage: text, Format: FormatNone}, true
	}

	clean := text[:start] + rest[end+len(PipeEndMarker):]
	// The model may mention prices outside the structured block; scrub any
	// residual currency-adjacent numbers from the remaining prose. This side
	// effect belongs to the pipe format only.
	clean = priceBeforeCurrency.ReplaceAllString(clean, PricePlaceholder)
	clean = currencyBeforePrice.ReplaceAllString(clean, PricePlaceholder)

	return Result{
		Offer:        candidate,
		CleanMessage: tidy(clean),
		Format:       FormatPipe,
		DroppedItems: dropped,
	}, true
}

// parsePipePayload reads the three labeled lines of a pipe-format block. The
// Items line holds comma-separated name|description|price|quantity
// quadruples; a quadruple whose numbers do not parse is dropped, not fatal.
func parsePipePayload(block string) (*model.CandidateOffer, int, bool) {
	var candidate model.CandidateOffer
	itemsSeen := false
	dropped := 0

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Titel:"):
			candidate.Title = strings.TrimSpace(strings.TrimPrefix(line, "Titel:"))
		case strings.HasPrefix(line, "Beschreibung:"):
			candidate.Description = strings.TrimSpace(strings.TrimPrefix(line, "Beschreibung:"))
		case strings.HasPrefix(line, "Items:"):
			itemsSeen = true
			raw := strings.TrimSpace(strings.TrimPrefix(line, "Items:"))
			items, d := parsePipeItems(raw)
			candidate.Items = items
			dropped = d
		}
	}

	if !itemsSeen {
		return nil, 0, false
	}
	if candidate.Items == nil {
		candidate.Items = []model.CandidateItem{}
	}
	return &candidate, dropped, true
}

func parsePipeItems(raw string) ([]model.CandidateItem, int) {
	items := []model.CandidateItem{}
	dropped := 0

	for _, quad := range strings.Split(raw, ",") {
		quad = strings.TrimSpace(quad)
		if quad == "" {
			continue
		}
		parts := strings.Split(quad, "|")
		if len(parts) != 4 {
			dropped++
			continue
		}

		price, err := parseDecimal(parts[2])
		if err != nil {
			dropped++
			continue
		}
		quantity, err := parseDecimal(parts[3])
		if err != nil {
			dropped++
			continue
		}

		items = append(items, model.CandidateItem{
			Name:        strings.TrimSpace(parts[0]),
			Description: strings.TrimSpace(parts[1]),
			Price:       price,
			Quantity:    quantity,
		})
	}

	return items, dropped
}

// parseDecimal accepts both "." and "," as decimal separator.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

// tidy collapses the hole left by a removed block.
func tidy(s string) string {
	s = multiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
