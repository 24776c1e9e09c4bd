// Package intent maps free-form conversation text onto the closed set of
// labels the router branches on.
package intent

import "strings"

// Label is one of the closed set of conversation intents.
type Label string

const (
	Scheduling Label = "scheduling"
	Pricing    Label = "pricing"
	GeneralFAQ Label = "general-faq"
)

// keyword groups checked by Parse, in priority order. The Spanish variants
// cover the demo clinic's traffic and the original prompt wording.
var (
	schedulingKeywords = []string{"schedul", "agendar", "cita"}
	pricingKeywords    = []string{"pricing", "price", "precio"}
)

// Parse maps a raw model reply onto a Label by case-insensitive substring
// search, scheduling first, then pricing. Anything unrecognized is
// GeneralFAQ; Parse never fails.
func Parse(raw string) Label {
	lowered := strings.ToLower(raw)
	for _, kw := range schedulingKeywords {
		if strings.Contains(lowered, kw) {
			return Scheduling
		}
	}
	for _, kw := range pricingKeywords {
		if strings.Contains(lowered, kw) {
			return Pricing
		}
	}
	return GeneralFAQ
}
