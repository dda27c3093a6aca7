// Package quotes keeps the tradable instruments and simulates their prices.
package quotes

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/atharvakonge/trading-ledger/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// MaxChangePercent bounds a single simulated move in either direction
	MaxChangePercent = 5.0
)

// MinPrice is the floor applied by UpdatePrices
var MinPrice = decimal.NewFromInt(1)

var hundred = decimal.NewFromInt(100)

// Perturbation returns the percent change to apply to symbol's price.
// Values outside ±MaxChangePercent are clamped.
type Perturbation func(symbol string) float64

// RandomPerturbation draws a uniform change between -5% and +5%
func RandomPerturbation(rng *rand.Rand) Perturbation {
	return func(string) float64 {
		return rng.Float64()*2*MaxChangePercent - MaxChangePercent
	}
}

// Registry holds instruments keyed by upper-cased symbol
type Registry struct {
	mu     sync.RWMutex
	order  []string
	quotes map[string]models.Instrument
}

// NewRegistry creates a registry holding instruments in the given order
func NewRegistry(instruments ...models.Instrument) *Registry {
	r := &Registry{quotes: make(map[string]models.Instrument)}
	r.Replace(instruments)
	return r
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Add inserts or replaces an instrument
func (r *Registry) Add(in models.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(in)
}

func (r *Registry) addLocked(in models.Instrument) {
	k := key(in.Symbol)
	if _, ok := r.quotes[k]; !ok {
		r.order = append(r.order, k)
	}
	r.quotes[k] = in
}

// Replace drops every instrument and loads the given ones
func (r *Registry) Replace(instruments []models.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	clear(r.quotes)
	for _, in := range instruments {
		r.addLocked(in)
	}
}

// FindBySymbol looks a symbol up case-insensitively.
func (r *Registry) FindBySymbol(symbol string) (models.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.quotes[key(symbol)]
	return in, ok
}

// List returns the instruments in insertion order
func (r *Registry) List() []models.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Instrument, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.quotes[k])
	}
	return out
}

// Len reports the number of instruments
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// UpdatePrices moves every price by perturb, rounds it to cents and floors
// it at MinPrice. The old price becomes the previous price. A NaN move
// counts as no change.
func (r *Registry) UpdatePrices(perturb Perturbation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.order {
		in := r.quotes[k]
		pct := perturb(in.Symbol)
		if math.IsNaN(pct) {
			pct = 0
		}
		pct = max(-MaxChangePercent, min(MaxChangePercent, pct))

		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct).Div(hundred))
		price := in.Price.Mul(factor).Round(2)
		if price.LessThan(MinPrice) {
			price = MinPrice
		}
		in.PreviousPrice = in.Price
		in.Price = price
		r.quotes[k] = in
	}
}

// PercentChange is (current - previous) / previous × 100, or 0 without a
// previous price.
func PercentChange(in models.Instrument) decimal.Decimal {
	if in.PreviousPrice.IsZero() {
		return decimal.Zero
	}
	return in.Price.Sub(in.PreviousPrice).Div(in.PreviousPrice).Mul(hundred)
}

// SampleInstruments is the starting market used when nothing was saved yet
func SampleInstruments() []models.Instrument {
	samples := []struct {
		symbol, name, price string
	}{
		{"AAPL", "Apple Inc.", "175.50"},
		{"GOOGL", "Alphabet Inc.", "142.30"},
		{"MSFT", "Microsoft Corp.", "380.75"},
		{"AMZN", "Amazon.com Inc.", "145.20"},
		{"TSLA", "Tesla Inc.", "245.80"},
		{"META", "Meta Platforms Inc.", "325.60"},
		{"NVDA", "NVIDIA Corp.", "495.30"},
		{"JPM", "JPMorgan Chase", "155.90"},
		{"V", "Visa Inc.", "245.40"},
		{"WMT", "Walmart Inc.", "165.75"},
	}
	out := make([]models.Instrument, 0, len(samples))
	for _, s := range samples {
		p := decimal.RequireFromString(s.price)
		out = append(out, models.Instrument{Symbol: s.symbol, Name: s.name, Price: p, PreviousPrice: p})
	}
	return out
}
