// Package events holds the persisted event envelope and the schema-on-read
// helpers used to interpret client payloads.
package events

import "time"

// Event type discriminators emitted by the storefront script.
const (
	TypePageView        = "pageview"
	TypeTimeOnPage      = "timeonpage"
	TypeViewProduct     = "view_product"
	TypeAddToCart       = "add_to_cart"
	TypePurchase        = "purchase"
	TypeCartState       = "cart_state"
	TypeCheckoutStep    = "checkout_step"
	TypeFormInteraction = "form_interaction"
	TypeMediaAction     = "media_interaction"
	TypeJSError         = "js_error"
	TypePerfMetric      = "perf_metric"
)

var knownTypes = map[string]bool{
	TypePageView:        true,
	TypeTimeOnPage:      true,
	TypeViewProduct:     true,
	TypeAddToCart:       true,
	TypePurchase:        true,
	TypeCartState:       true,
	TypeCheckoutStep:    true,
	TypeFormInteraction: true,
	TypeMediaAction:     true,
	TypeJSError:         true,
	TypePerfMetric:      true,
}

// KnownType reports whether t is one of the discriminators the tracker emits.
// Unknown types are still stored; callers use this to bound label cardinality.
func KnownType(t string) bool {
	return knownTypes[t]
}

// Envelope is one stored event. It is never mutated after insert.
type Envelope struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	ClientIP   string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Payload    Payload   `json:"payload"`
}

// Type returns the payload discriminator, or "" when absent.
func (e Envelope) Type() string {
	return e.Payload.Type()
}
