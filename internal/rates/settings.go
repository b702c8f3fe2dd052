package rates

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/backend-vat/internal/tax"
)

// SettingsFingerprint renders the cache-relevant override settings as a
// canonical string. Entries cached under a different fingerprint can no
// longer be trusted and must be flushed.
func SettingsFingerprint(cfg tax.Config, ttl time.Duration) string {
	countries := make([]string, 0, len(cfg.EnabledCountries))
	for cc := range cfg.EnabledCountries {
		countries = append(countries, cc)
	}
	sort.Strings(countries)
	return fmt.Sprintf("enabled=%t;countries=%s;display=%s;ttl=%s",
		cfg.Enabled, strings.Join(countries, ","), cfg.BundleDisplay, ttl)
}
