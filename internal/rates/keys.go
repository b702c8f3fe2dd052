package rates

import (
	"strconv"
	"strings"
)

const keyPrefix = "vat:rates"

// Key is the composite cache key for a single override. Building keys from a
// typed pair instead of ad-hoc concatenation keeps delimiter collisions out
// of the cache namespace.
type Key struct {
	ProductID int64
	Country   string
}

// String renders the canonical Redis key for the pair.
func (k Key) String() string {
	return keyPrefix + ":rate:" + strconv.FormatInt(k.ProductID, 10) + ":" + strings.ToUpper(k.Country)
}

// ProductKey is the cache key for a product's full country→rate mapping.
func ProductKey(productID int64) string {
	return keyPrefix + ":product:" + strconv.FormatInt(productID, 10)
}

// SettingsKey stores the fingerprint of the settings the cached entries were
// written under. It shares the namespace so a full flush clears it too.
func SettingsKey() string {
	return keyPrefix + ":settings"
}

// ProductPattern matches every per-country key of one product.
func ProductPattern(productID int64) string {
	return keyPrefix + ":rate:" + strconv.FormatInt(productID, 10) + ":*"
}

// Pattern matches every key owned by this package.
func Pattern() string {
	return keyPrefix + ":*"
}
