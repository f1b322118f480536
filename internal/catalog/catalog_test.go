package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ThirteenVendors(t *testing.T) {
	c := Default()
	assert.Equal(t, 13, c.Len())

	seen := map[string]bool{}
	for _, v := range c.Vendors() {
		assert.NotEmpty(t, v.ID)
		assert.NotEmpty(t, v.Name)
		assert.False(t, seen[v.ID], "duplicate id %s", v.ID)
		seen[v.ID] = true
		assert.GreaterOrEqual(t, v.Pricing.BasePricePerMonth, 0.0)
		assert.GreaterOrEqual(t, v.Pricing.InstallationFee, 0.0)
	}
}

func TestDefault_LookupAndOrder(t *testing.T) {
	c := Default()

	v, ok := c.Get("nordlayer")
	require.True(t, ok)
	assert.Equal(t, "NordLayer", v.Name)

	_, ok = c.Get("unknown-vendor")
	assert.False(t, ok)

	// Vendors returns a copy in catalog order.
	vendors := c.Vendors()
	assert.Equal(t, "nordlayer", vendors[0].ID)
	vendors[0].ID = "mutated"
	again := c.Vendors()
	assert.Equal(t, "nordlayer", again[0].ID)
}

func TestParse_RejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(`vendors: []`))
	require.Error(t, err)

	_, err = Parse([]byte("vendors:\n  - id: a\n    name: A\n  - id: a\n    name: Dup\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = Parse([]byte("vendors:\n  - id: a\n    name: A\n    pricing:\n      base_price_per_month: -1\n"))
	require.Error(t, err)
}

func TestFallbackPricing_Conservative(t *testing.T) {
	p := FallbackPricing()
	assert.Equal(t, 25.0, p.BasePricePerMonth)
	assert.True(t, p.IsQuoteOnly)
	assert.Equal(t, 4000.0, p.InstallationFee)
}
