package billing

import (
	"fmt"
	"strings"

	"github.com/quicktoolshq/quicktools/internal/pkg/env"
)

// Pack describes a one-time credit purchase. Purchases are cumulative:
// lifetime totals drive the support tier, and pro/business purchases unlock
// API access permanently.
type Pack struct {
	Key           string
	Name          string
	PriceCents    int
	Credits       int
	UnlocksAPI    bool
	StripePriceID string
}

// PackCatalog is the immutable credit pack table, loaded once at process
// start and passed explicitly to the components that need it.
type PackCatalog struct {
	packs []Pack
	byKey map[string]int
}

// LoadCatalog builds the catalog with Stripe price references resolved from
// the environment.
func LoadCatalog() *PackCatalog {
	packs := []Pack{
		{Key: "starter", Name: "Starter Pack", PriceCents: 900, Credits: 100, UnlocksAPI: false,
			StripePriceID: env.GetEnv("STRIPE_PRICE_STARTER", "price_starter")},
		{Key: "standard", Name: "Standard Pack", PriceCents: 2900, Credits: 500, UnlocksAPI: false,
			StripePriceID: env.GetEnv("STRIPE_PRICE_STANDARD", "price_standard")},
		{Key: "pro", Name: "Pro Pack", PriceCents: 5900, Credits: 1200, UnlocksAPI: true,
			StripePriceID: env.GetEnv("STRIPE_PRICE_PRO", "price_pro")},
		{Key: "business", Name: "Business Pack", PriceCents: 19900, Credits: 5000, UnlocksAPI: true,
			StripePriceID: env.GetEnv("STRIPE_PRICE_BUSINESS", "price_business")},
	}
	return newCatalog(packs)
}

func newCatalog(packs []Pack) *PackCatalog {
	byKey := make(map[string]int, len(packs))
	for i, p := range packs {
		byKey[p.Key] = i
	}
	return &PackCatalog{packs: packs, byKey: byKey}
}

// Packs returns a copy of the catalog entries in display order.
func (c *PackCatalog) Packs() []Pack {
	out := make([]Pack, len(c.packs))
	copy(out, c.packs)
	return out
}

// PackByKey resolves a pack by its key (starter, standard, pro, business).
func (c *PackCatalog) PackByKey(key string) (Pack, error) {
	i, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Pack{}, fmt.Errorf("unknown credit pack %q", key)
	}
	return c.packs[i], nil
}

// PackByStripePriceID resolves a pack from the Stripe price reference carried
// by a checkout event.
func (c *PackCatalog) PackByStripePriceID(priceID string) (Pack, error) {
	for _, p := range c.packs {
		if p.StripePriceID == priceID {
			return p, nil
		}
	}
	return Pack{}, fmt.Errorf("no credit pack mapped to price %q", priceID)
}

// PerCredit returns the effective price per credit in cents.
func (p Pack) PerCredit() float64 {
	if p.Credits == 0 {
		return 0
	}
	return float64(p.PriceCents) / float64(p.Credits)
}
