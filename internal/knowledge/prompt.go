package knowledge

import (
	"fmt"
	"strings"

	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/internal/offer"
)

// Default budgets for prompt construction. Knowledge content is untrusted
// and length-unbounded, so each item and the overall prompt are truncated.
const (
	DefaultItemChars   = 1000
	DefaultBudgetChars = 8000
)

// basePrompt is the assistant persona plus the literal wire syntax the model
// must use when it decides to propose an offer. The parser accepts exactly
// this format.
const basePrompt = `Du bist ein freundlicher Vertriebsassistent für IT-Dienstleistungen.
Du berätst Interessenten auf Deutsch, stellst Rückfragen zu ihrem Vorhaben und
erstellst bei ausreichender Informationslage ein strukturiertes Angebot.

Wenn du ein Angebot erstellst, bette es exakt so in deine Antwort ein:

` + offer.JSONStartMarker + `
{"title": "...", "description": "...", "items": [{"name": "...", "description": "...", "price": 120, "quantity": 10}], "totalPrice": 1200}
` + offer.JSONEndMarker + `

price ist der Stundensatz in Euro, quantity die Stundenzahl. Nenne außerhalb
dieses Blocks keine konkreten Preise.`

// BuildSystemPrompt assembles the system instructions from the knowledge
// base. Each item's content is truncated to itemChars and the appended
// knowledge section never exceeds budgetChars in total.
func BuildSystemPrompt(items []model.KnowledgeItem, itemChars, budgetChars int) string {
	if itemChars <= 0 {
		itemChars = DefaultItemChars
	}
	if budgetChars <= 0 {
		budgetChars = DefaultBudgetChars
	}

	if len(items) == 0 {
		return basePrompt
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\nWissensbasis:\n")

	used := 0
	for _, item := range items {
		content := truncate(item.Content, itemChars)
		entry := fmt.Sprintf("\n## %s (%s)\n%s\n", item.Title, item.Category, content)
		if used+len(entry) > budgetChars {
			break
		}
		sb.WriteString(entry)
		used += len(entry)
	}

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Cut on a rune boundary.
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}
