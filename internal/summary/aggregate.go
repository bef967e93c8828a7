package summary

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/benedict2310/storepulse/internal/dedup"
	"github.com/benedict2310/storepulse/internal/events"
	"github.com/benedict2310/storepulse/internal/metrics"
)

const (
	directReferrer = "direct"
	noneUTM        = "(none)"
)

// Build aggregates envs in a single pass. envs must be newest-first, as
// returned by a store range read; the active cart rule keeps the first
// cart_state seen per visitor. Product views are deduplicated here, so envs
// should not be read-deduplicated beforehand.
func Build(window events.Window, now time.Time, envs []events.Envelope) Summary {
	start := time.Now()
	defer func() {
		metrics.SummaryDuration.Observe(time.Since(start).Seconds())
		metrics.SummaryEnvelopes.Observe(float64(len(envs)))
	}()

	acc := newAccumulator()
	for _, env := range envs {
		acc.add(env.Payload)
	}
	out := acc.result()
	out.Range = window.Label
	out.GeneratedAt = now.UTC()
	return out
}

type cartSnapshot struct {
	active bool
	value  float64
}

type accumulator struct {
	total  int
	byType map[string]int
	funnel Funnel

	sessions map[string]struct{}
	visitors map[string]struct{}
	newRet   NewVsReturn
	devices  DeviceMix

	pages     *ranking
	referrers *ranking
	utm       *ranking
	utmParts  map[string][3]string
	products  *ranking
	titles    map[string]string
	viewKeys  map[string]struct{}

	steps CheckoutStepCounts
	carts map[string]cartSnapshot

	perfSamples    int
	lcp, fcp, ttfb mean
	timeOnPage     mean
	errors         ErrorCounts
	forms          FormCounts
	media          map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		byType:    make(map[string]int),
		sessions:  make(map[string]struct{}),
		visitors:  make(map[string]struct{}),
		pages:     newRanking(),
		referrers: newRanking(),
		utm:       newRanking(),
		utmParts:  make(map[string][3]string),
		products:  newRanking(),
		titles:    make(map[string]string),
		viewKeys:  make(map[string]struct{}),
		carts:     make(map[string]cartSnapshot),
		media:     make(map[string]int),
	}
}

func (a *accumulator) add(p events.Payload) {
	a.total++
	typ := p.Type()
	if typ != "" {
		a.byType[typ]++
	}
	if s, ok := p.String("sessionId"); ok {
		a.sessions[s] = struct{}{}
	}
	if v, ok := p.String("visitorId"); ok {
		a.visitors[v] = struct{}{}
	}
	if path, ok := p.String("path"); ok {
		a.pages.inc(path)
	}

	switch typ {
	case events.TypePageView:
		a.addPageView(p)
	case events.TypeTimeOnPage:
		a.funnel.TimeOnPage++
		if ms, ok := p.Number("millis"); ok {
			a.timeOnPage.add(ms)
		}
	case events.TypeViewProduct:
		a.addProductView(p)
	case events.TypeAddToCart:
		a.funnel.AddToCart++
	case events.TypePurchase:
		a.funnel.Purchases++
	case events.TypeCartState:
		a.addCartState(p)
	case events.TypeCheckoutStep:
		step, _ := p.String("step")
		a.steps.inc(step)
	case events.TypeFormInteraction:
		switch action, _ := p.String("action"); action {
		case "submit":
			a.forms.Submit++
		case "focus":
			a.forms.Focus++
		}
	case events.TypeMediaAction:
		mediaType, action := p.Text("mediaType"), p.Text("action")
		if mediaType != "" || action != "" {
			a.media[mediaType+":"+action]++
		}
	case events.TypeJSError:
		a.errors.Total++
		if msg, ok := p.String("message"); ok && isPaymentError(msg) {
			a.errors.Payment++
		}
	case events.TypePerfMetric:
		a.addPerf(p)
	}
}

func (a *accumulator) addPageView(p events.Payload) {
	a.funnel.Pageviews++

	if isNew, ok := p.Bool("isNewVisitor"); ok {
		if isNew {
			a.newRet.New++
		} else {
			a.newRet.Returning++
		}
	}

	device, _ := p.String("deviceType")
	switch strings.ToLower(device) {
	case "desktop":
		a.devices.Desktop++
	case "mobile":
		a.devices.Mobile++
	case "tablet":
		a.devices.Tablet++
	default:
		a.devices.Other++
	}

	raw, _ := p.String("referrer")
	a.referrers.inc(referrerHost(raw))

	parts := [3]string{utmPart(p, "utm_source"), utmPart(p, "utm_medium"), utmPart(p, "utm_campaign")}
	key := strings.Join(parts[:], "\x1f")
	if _, ok := a.utmParts[key]; !ok {
		a.utmParts[key] = parts
	}
	a.utm.inc(key)
}

func (a *accumulator) addProductView(p events.Payload) {
	key := dedup.ProductViewKey(p)
	if _, seen := a.viewKeys[key]; seen {
		return
	}
	a.viewKeys[key] = struct{}{}
	a.funnel.ProductViews++

	id := p.Text("productId")
	if id == "" {
		return
	}
	a.products.inc(id)
	if _, ok := a.titles[id]; !ok {
		if title, ok := p.String("productTitle"); ok {
			a.titles[id] = title
		}
	}
}

func (a *accumulator) addCartState(p events.Payload) {
	visitor, ok := p.String("visitorId")
	if !ok {
		return
	}
	if _, seen := a.carts[visitor]; seen {
		return
	}
	items, _ := p.Items("items")
	snap := cartSnapshot{active: len(items) > 0}
	if snap.active {
		snap.value, _ = p.Number("totalPrice")
	}
	a.carts[visitor] = snap
}

func (a *accumulator) addPerf(p events.Payload) {
	sampled := false
	if v, ok := p.Number("lcp"); ok {
		a.lcp.add(v)
		sampled = true
	}
	if v, ok := p.Number("fcp"); ok {
		a.fcp.add(v)
		sampled = true
	}
	if v, ok := p.Number("ttfb"); ok {
		a.ttfb.add(v)
		sampled = true
	}
	if sampled {
		a.perfSamples++
	}
}

func (a *accumulator) result() Summary {
	out := Summary{
		TotalEvents: a.total,
		ByType:      a.byType,
		Funnel:      a.funnel,
		Sessions:    max(len(a.sessions), 1),
		Visitors:    len(a.visitors),
		NewVsReturn: a.newRet,
		Devices:     a.devices,

		TopPages:     a.pages.top(TopN),
		TopReferrers: a.referrers.top(TopN),

		CheckoutSteps: a.steps,
		Performance: Performance{
			Samples: a.perfSamples,
			AvgLCP:  a.lcp.value(),
			AvgFCP:  a.fcp.value(),
			AvgTTFB: a.ttfb.value(),
		},
		Errors:          a.errors,
		AvgTimeOnPageMs: a.timeOnPage.value(),
		Forms:           a.forms,
		Media:           a.media,
	}

	out.Conversion = Conversion{
		ViewToCart:         rate(a.funnel.AddToCart, a.funnel.ProductViews),
		CartToPurchase:     rate(a.funnel.Purchases, a.funnel.AddToCart),
		PageviewToPurchase: rate(a.funnel.Purchases, a.funnel.Pageviews),
	}

	out.TopUTM = make([]UTMCount, 0, TopN)
	for _, c := range a.utm.top(TopN) {
		parts := a.utmParts[c.Key]
		out.TopUTM = append(out.TopUTM, UTMCount{Source: parts[0], Medium: parts[1], Campaign: parts[2], Count: c.Count})
	}

	out.TopProducts = make([]ProductCount, 0, TopN)
	for _, c := range a.products.top(TopN) {
		out.TopProducts = append(out.TopProducts, ProductCount{ProductID: c.Key, Title: a.titles[c.Key], Views: c.Count})
	}

	for _, snap := range a.carts {
		if snap.active {
			out.ActiveCarts.Count++
			out.ActiveCarts.Value += snap.value
		}
	}
	out.ActiveCarts.Value = round2(out.ActiveCarts.Value)
	return out
}

func (s *CheckoutStepCounts) inc(step string) {
	switch step {
	case "cart":
		s.Cart++
	case "checkout":
		s.Checkout++
	case "shipping":
		s.Shipping++
	case "payment":
		s.Payment++
	case "thankyou":
		s.Thankyou++
	}
}

// referrerHost groups a referrer by hostname. Unparseable or host-less values
// group under the raw string; an empty referrer is direct traffic.
func referrerHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return directReferrer
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

func utmPart(p events.Payload, key string) string {
	if v, ok := p.String(key); ok {
		return v
	}
	return noneUTM
}

func isPaymentError(msg string) bool {
	msg = strings.ToLower(msg)
	for _, kw := range PaymentErrorKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// ranking counts keys and remembers the order they were first seen so equal
// counts rank by first encounter.
type ranking struct {
	counts map[string]int
	order  []string
}

func newRanking() *ranking {
	return &ranking{counts: make(map[string]int)}
}

func (r *ranking) inc(key string) {
	if _, ok := r.counts[key]; !ok {
		r.order = append(r.order, key)
	}
	r.counts[key]++
}

func (r *ranking) top(n int) []Count {
	out := make([]Count, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, Count{Key: key, Count: r.counts[key]})
	}
	slices.SortStableFunc(out, func(a, b Count) int {
		return b.Count - a.Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
