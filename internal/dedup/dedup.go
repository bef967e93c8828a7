// Package dedup holds the duplicate filters applied to cart submissions at
// write time and to product views at read time.
package dedup

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/benedict2310/storepulse/internal/events"
)

// DefaultWindow is how long an accepted add_to_cart key suppresses repeats.
const DefaultWindow = 2000 * time.Millisecond

// Filter remembers recently accepted keys. Seen reports whether key was
// accepted less than the window ago; when it returns false the key is
// recorded as accepted at now. Two concurrent callers may both see false for
// the same key; the filter is best effort.
type Filter interface {
	Seen(ctx context.Context, key string, now time.Time) (bool, error)
}

// AddToCartKey identifies a cart submission for write-time dedup.
func AddToCartKey(p events.Payload) string {
	return joinKey(p.Text("sessionId"), p.Text("visitorId"), p.Text("variantId"), p.Text("quantity"))
}

// ProductViewKey identifies a product view for aggregate counting. It has no
// time component: repeats anywhere in the window collapse to one view.
func ProductViewKey(p events.Payload) string {
	return joinKey(p.Text("sessionId"), p.Text("visitorId"), p.Text("productId"), p.Text("path"))
}

// listViewKey extends ProductViewKey with the whole-second bucket of the
// envelope so the event list keeps re-views from different seconds.
func listViewKey(env events.Envelope) string {
	return joinKey(ProductViewKey(env.Payload), strconv.FormatInt(env.OccurredAt.Unix(), 10))
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// CollapseListViews drops view_product envelopes whose list key was already
// seen earlier in envs. Other event types pass through untouched. The input
// order is preserved, so on a newest-first read the newest duplicate wins.
func CollapseListViews(envs []events.Envelope) []events.Envelope {
	out := make([]events.Envelope, 0, len(envs))
	seen := make(map[string]struct{})
	for _, env := range envs {
		if env.Type() != events.TypeViewProduct {
			out = append(out, env)
			continue
		}
		key := listViewKey(env)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, env)
	}
	return out
}
