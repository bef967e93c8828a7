// Package summary turns a window of raw envelopes into the dashboard record.
package summary

import (
	"math"
	"time"
)

// TopN bounds every ranked breakdown in a Summary.
const TopN = 5

// CheckoutSteps lists the steps tallied by the checkout funnel, in order.
var CheckoutSteps = []string{"cart", "checkout", "shipping", "payment", "thankyou"}

// PaymentErrorKeywords marks a js_error message as payment related when any
// of them appears in it, ignoring case.
var PaymentErrorKeywords = []string{"payment", "stripe", "paypal", "klarna", "braintree"}

type Summary struct {
	Range       string         `json:"range"`
	GeneratedAt time.Time      `json:"generatedAt"`
	TotalEvents int            `json:"totalEvents"`
	ByType      map[string]int `json:"byType"`

	Funnel      Funnel      `json:"funnel"`
	Conversion  Conversion  `json:"conversion"`
	Sessions    int         `json:"sessions"`
	Visitors    int         `json:"visitors"`
	NewVsReturn NewVsReturn `json:"newVsReturning"`
	Devices     DeviceMix   `json:"devices"`

	TopPages     []Count        `json:"topPages"`
	TopReferrers []Count        `json:"topReferrers"`
	TopUTM       []UTMCount     `json:"topUtm"`
	TopProducts  []ProductCount `json:"topProducts"`

	CheckoutSteps CheckoutStepCounts `json:"checkoutSteps"`
	ActiveCarts   ActiveCarts        `json:"activeCarts"`
	Performance   Performance        `json:"performance"`
	Errors        ErrorCounts        `json:"errors"`

	AvgTimeOnPageMs *float64       `json:"avgTimeOnPageMs"`
	Forms           FormCounts     `json:"forms"`
	Media           map[string]int `json:"media"`
}

type Funnel struct {
	Pageviews    int `json:"pageviews"`
	TimeOnPage   int `json:"timeOnPage"`
	ProductViews int `json:"productViews"`
	AddToCart    int `json:"addToCart"`
	Purchases    int `json:"purchases"`
}

// Conversion rates are percentages rounded to two decimals. A zero
// denominator yields 0.
type Conversion struct {
	ViewToCart         float64 `json:"viewToCart"`
	CartToPurchase     float64 `json:"cartToPurchase"`
	PageviewToPurchase float64 `json:"pageviewToPurchase"`
}

type NewVsReturn struct {
	New       int `json:"new"`
	Returning int `json:"returning"`
}

type DeviceMix struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
	Tablet  int `json:"tablet"`
	Other   int `json:"other"`
}

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type UTMCount struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Count    int    `json:"count"`
}

type ProductCount struct {
	ProductID string `json:"productId"`
	Title     string `json:"title,omitempty"`
	Views     int    `json:"views"`
}

type CheckoutStepCounts struct {
	Cart     int `json:"cart"`
	Checkout int `json:"checkout"`
	Shipping int `json:"shipping"`
	Payment  int `json:"payment"`
	Thankyou int `json:"thankyou"`
}

type ActiveCarts struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// Performance means are nil when no perf_metric event carried the field.
type Performance struct {
	Samples int      `json:"samples"`
	AvgLCP  *float64 `json:"avgLcp"`
	AvgFCP  *float64 `json:"avgFcp"`
	AvgTTFB *float64 `json:"avgTtfb"`
}

type ErrorCounts struct {
	Total   int `json:"total"`
	Payment int `json:"payment"`
}

type FormCounts struct {
	Submit int `json:"submit"`
	Focus  int `json:"focus"`
}

// rate returns num/den as a percentage rounded to two decimals.
func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round2(float64(num) / float64(den) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// mean accumulates an arithmetic mean over the values actually observed.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := round2(m.sum / float64(m.n))
	return &v
}
