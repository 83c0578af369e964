// Package featureflags gates optional behavior behind environment toggles,
// so features like the Redis group cache can be switched per deployment
// without a config change.
package featureflags

import (
	"os"
	"strings"
)

const envPrefix = "FLAG_"

// Enabled reports whether the named flag is switched on. A flag "group_cache"
// reads FLAG_GROUP_CACHE; the values 1, true, yes and on (any case) enable
// it, anything else leaves it off.
func Enabled(name string) bool {
	raw := os.Getenv(envPrefix + strings.ToUpper(name))
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
