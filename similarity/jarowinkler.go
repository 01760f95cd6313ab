package similarity

import (
	"github.com/xrash/smetrics"
)

const (
	jaroWinklerBoostThreshold = 0.7
	jaroWinklerPrefixSize     = 4
)

// JaroWinkler measures string similarity in [0, 1], favoring strings that
// share a common prefix. Useful for short text such as subject lines.
func JaroWinkler(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, jaroWinklerBoostThreshold, jaroWinklerPrefixSize)
}
