package processor

import (
	"strconv"
	"strings"
	"time"
)

// DefaultResolution is assumed whenever a series carries no usable resolution.
const DefaultResolution = "PT60M"

// ResolutionStep maps an ISO-8601 duration (PT15M, PT60M, PT1H, P1D) to a
// time step. Anything unrecognised yields one hour.
func ResolutionStep(res string) time.Duration {
	r := strings.ToUpper(strings.TrimSpace(res))
	switch {
	case r == "":
		return time.Hour
	case r == "P1D":
		return 24 * time.Hour
	case strings.HasPrefix(r, "PT") && strings.HasSuffix(r, "M"):
		if n, err := strconv.Atoi(r[2 : len(r)-1]); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	case strings.HasPrefix(r, "PT") && strings.HasSuffix(r, "H"):
		if n, err := strconv.Atoi(r[2 : len(r)-1]); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return time.Hour
}
