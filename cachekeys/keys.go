// Package cachekeys centralizes cache key construction and freshness policy
// for the Merx platform. Every cached entity gets a deterministic,
// namespaced key built here and a TTL constant declared next to it, so
// invalidation patterns and staleness bounds live in one place instead of
// being scattered across call sites.
//
// Keys use ':' as the namespace separator ("product:p-123",
// "pricing:p-123:USD"). Caller-supplied segments are sanitized so they can
// never inject separators or glob metacharacters into a key.
package cachekeys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Freshness bounds per entity class. Short TTLs for money-adjacent data,
// long TTLs for slow-moving reference data.
const (
	// TTLProduct bounds staleness of a single product record.
	TTLProduct = 10 * time.Minute

	// TTLProductListing bounds staleness of filtered listing pages, which
	// change whenever any constituent product does.
	TTLProductListing = 5 * time.Minute

	// TTLPricing bounds staleness of computed prices.
	TTLPricing = time.Minute

	// TTLCurrencyRates bounds staleness of exchange rates, refreshed twice
	// daily upstream.
	TTLCurrencyRates = 12 * time.Hour

	// TTLWholesaleCatalog bounds staleness of a seller's wholesale catalog.
	TTLWholesaleCatalog = 30 * time.Minute

	// TTLSellerProfile bounds staleness of seller profile records.
	TTLSellerProfile = 15 * time.Minute
)

const sep = ":"

// sanitize strips separator and glob metacharacters from a caller-supplied
// key segment so the assembled key stays deterministic and pattern-safe.
// An empty segment becomes "-" rather than silently collapsing namespaces.
func sanitize(segment string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '[', ']', '\\', '.', '/', ' ':
			return '_'
		}
		return r
	}, segment)
	if cleaned == "" {
		return "-"
	}
	return cleaned
}

func join(segments ...string) string {
	return strings.Join(segments, sep)
}

// Product returns the key for a single product record.
func Product(productID string) string {
	return join("product", sanitize(productID))
}

// ProductPattern matches every cached product record.
func ProductPattern() string {
	return "product" + sep + "*"
}

// Listing returns the key for one page of a filtered product listing.
// Filters are fingerprinted so the key stays short and deterministic
// regardless of filter count or map iteration order.
func Listing(category string, page int, filters map[string]string) string {
	return join("listing", sanitize(category), fmt.Sprintf("p%d", page), filterFingerprint(filters))
}

// ListingPattern matches every cached listing page for a category, across
// pages and filter combinations.
func ListingPattern(category string) string {
	return join("listing", sanitize(category)) + sep + "*"
}

// Pricing returns the key for a computed product price in one currency.
func Pricing(productID, currency string) string {
	return join("pricing", sanitize(productID), sanitize(strings.ToUpper(currency)))
}

// PricingPattern matches every cached price for a product across
// currencies.
func PricingPattern(productID string) string {
	return join("pricing", sanitize(productID)) + sep + "*"
}

// CurrencyRates returns the key for the exchange-rate table of one base
// currency.
func CurrencyRates(base string) string {
	return join("currency", sanitize(strings.ToUpper(base)))
}

// WholesaleCatalog returns the key for one page of a seller's wholesale
// catalog.
func WholesaleCatalog(sellerID string, page int) string {
	return join("wholesale", sanitize(sellerID), fmt.Sprintf("p%d", page))
}

// SellerProfile returns the key for a seller profile record. The record
// lives under the seller's namespace so SellerPattern covers it.
func SellerProfile(sellerID string) string {
	return join("seller", sanitize(sellerID), "profile")
}

// SellerPattern matches every cache entry keyed under a seller's namespace,
// the profile record included. Wholesale catalog pages have their own
// namespace; invalidating a seller entirely takes this pattern plus
// WholesalePattern.
func SellerPattern(sellerID string) string {
	return join("seller", sanitize(sellerID)) + sep + "*"
}

// WholesalePattern matches every wholesale catalog page for a seller.
func WholesalePattern(sellerID string) string {
	return join("wholesale", sanitize(sellerID)) + sep + "*"
}

// filterFingerprint reduces an arbitrary filter set to a stable short hash.
// Pairs are sorted before hashing so logically equal filter maps always
// produce the same fingerprint.
func filterFingerprint(filters map[string]string) string {
	if len(filters) == 0 {
		return "all"
	}

	pairs := make([]string, 0, len(filters))
	for k, v := range filters {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:8])
}
