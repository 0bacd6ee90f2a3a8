package cachekeys

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductKey(t *testing.T) {
	assert.Equal(t, "product:p-123", Product("p-123"))
	// Deterministic
	assert.Equal(t, Product("p-123"), Product("p-123"))
}

func TestSanitizeRejectsSeparatorInjection(t *testing.T) {
	// A hostile ID must not escape its namespace or act as a glob.
	key := Product("a:b*c?d")
	assert.Equal(t, "product:a_b_c_d", key)

	match, err := path.Match(ProductPattern(), key)
	assert.NoError(t, err)
	assert.True(t, match)
}

func TestSanitizeStripsSlash(t *testing.T) {
	assert.Equal(t, "product:catalog_123", Product("catalog/123"))
}

func TestSanitizeEmptySegment(t *testing.T) {
	assert.Equal(t, "product:-", Product(""))
}

func TestListingFingerprintIsOrderIndependent(t *testing.T) {
	a := Listing("electronics", 2, map[string]string{"brand": "acme", "color": "red"})
	b := Listing("electronics", 2, map[string]string{"color": "red", "brand": "acme"})
	assert.Equal(t, a, b)

	c := Listing("electronics", 2, map[string]string{"brand": "acme", "color": "blue"})
	assert.NotEqual(t, a, c)
}

func TestListingNoFilters(t *testing.T) {
	assert.Equal(t, "listing:electronics:p1:all", Listing("electronics", 1, nil))
}

func TestListingPatternMatchesAllPages(t *testing.T) {
	pattern := ListingPattern("electronics")

	for _, key := range []string{
		Listing("electronics", 1, nil),
		Listing("electronics", 7, map[string]string{"brand": "acme"}),
	} {
		match, err := path.Match(pattern, key)
		assert.NoError(t, err)
		assert.True(t, match, "pattern %q should match %q", pattern, key)
	}

	match, err := path.Match(pattern, Listing("toys", 1, nil))
	assert.NoError(t, err)
	assert.False(t, match)
}

func TestPricingNormalizesCurrency(t *testing.T) {
	assert.Equal(t, Pricing("p-1", "usd"), Pricing("p-1", "USD"))
	assert.Equal(t, "pricing:p-1:USD", Pricing("p-1", "usd"))
}

func TestPricingPatternScopedToProduct(t *testing.T) {
	pattern := PricingPattern("p-1")

	match, err := path.Match(pattern, Pricing("p-1", "EUR"))
	assert.NoError(t, err)
	assert.True(t, match)

	match, err = path.Match(pattern, Pricing("p-2", "EUR"))
	assert.NoError(t, err)
	assert.False(t, match)
}

func TestSellerNamespaceKeys(t *testing.T) {
	assert.Equal(t, "seller:s-9:profile", SellerProfile("s-9"))
	assert.Equal(t, "wholesale:s-9:p3", WholesaleCatalog("s-9", 3))

	match, err := path.Match(WholesalePattern("s-9"), WholesaleCatalog("s-9", 3))
	assert.NoError(t, err)
	assert.True(t, match)
}

func TestSellerPatternCoversProfile(t *testing.T) {
	pattern := SellerPattern("s-9")

	match, err := path.Match(pattern, SellerProfile("s-9"))
	assert.NoError(t, err)
	assert.True(t, match, "pattern %q should match the profile key", pattern)

	// A seller ID that happens to be a prefix of another must not leak.
	match, err = path.Match(pattern, SellerProfile("s-99"))
	assert.NoError(t, err)
	assert.False(t, match)

	// Wholesale pages are a separate namespace with their own pattern.
	match, err = path.Match(pattern, WholesaleCatalog("s-9", 1))
	assert.NoError(t, err)
	assert.False(t, match)
}

func TestCurrencyRatesKey(t *testing.T) {
	assert.Equal(t, "currency:USD", CurrencyRates("usd"))
}

func TestTTLOrdering(t *testing.T) {
	// Money-adjacent data must go stale faster than reference data.
	assert.Less(t, TTLPricing, TTLProduct)
	assert.Less(t, TTLProductListing, TTLCurrencyRates)
}
