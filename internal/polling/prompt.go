package polling

import (
	"fmt"
	"strings"

	"github.com/vietddude/pollster/internal/core/domain"
)

const systemPrompt = "You are a market research simulator. You model how real consumer " +
	"panels respond to product comparisons and you answer with strictly valid JSON only, " +
	"no prose before or after the object."

// buildPrompt renders the respondent framing, the anonymized product
// list and the response schema. Products are only ever referred to by
// their presentation labels; which attributes accompany a label depends
// on what the poll is comparing.
func buildPrompt(req domain.PollRequest, entries []entry, respondents int) string {
	var b strings.Builder

	demographic := req.Demographic
	if demographic == "" {
		demographic = "general online shoppers"
	}
	fmt.Fprintf(&b, "Simulate a poll of %d %s.\n", respondents, demographic)
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)

	switch req.Kind {
	case domain.PollKindMainImage:
		b.WriteString("Each product is shown to respondents only as its attached main image, labeled below.\n")
	case domain.PollKindListing:
		b.WriteString("Each product is shown to respondents as its attached listing screenshot, labeled below.\n")
	case domain.PollKindTitle:
		b.WriteString("Each product is shown to respondents only as its listing title.\n")
	case domain.PollKindPrice:
		b.WriteString("Each product is shown to respondents as its title and price.\n")
	}
	b.WriteString("\nProducts:\n")
	for _, e := range entries {
		b.WriteString(describeEntry(req.Kind, e))
	}

	fmt.Fprintf(&b, "\nDistribute the %d respondents' preferences across the products.\n", respondents)
	b.WriteString("Respond with exactly this JSON shape:\n")
	b.WriteString(`{"rankings": [{"product": "Product 1", "percentage": 0.0}], "sample_responses": ["..."]}` + "\n")
	fmt.Fprintf(&b, "Rules: include every product exactly once using its label, percentages must sum to 100, "+
		"no product may receive exactly 0, and provide %d sample_responses quoting individual respondents.\n", req.SampleSize)
	return b.String()
}

func describeEntry(kind domain.PollKind, e entry) string {
	switch kind {
	case domain.PollKindTitle:
		return fmt.Sprintf("- %s: %q\n", e.label, e.product.Title)
	case domain.PollKindPrice:
		return fmt.Sprintf("- %s: %q at %s\n", e.label, e.product.Title, formatPrice(e.product))
	default:
		// Image-bearing kinds carry the identity in the attachment.
		return fmt.Sprintf("- %s: see attached image\n", e.label)
	}
}

func formatPrice(p domain.Product) string {
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%.2f %s", p.Price, currency)
}
