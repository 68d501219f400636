// Package ratelimit parses the "count/period" rate-limit strings used by
// provider and model rate-limit configuration.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is one (count, period-in-seconds) rate-limit bucket.
type Window struct {
	Count   int
	Seconds int
}

// unitSeconds maps every accepted period-unit spelling to its length in
// seconds.
var unitSeconds = map[string]int{
	"s":       1,
	"sec":     1,
	"second":  1,
	"seconds": 1,
	"m":       60,
	"min":     60,
	"minute":  60,
	"minutes": 60,
	"h":       3600,
	"hr":      3600,
	"hour":    3600,
	"hours":   3600,
	"d":       86400,
	"day":     86400,
	"days":    86400,
	"w":       604800,
	"week":    604800,
	"weeks":   604800,
	"mo":      2592000,
	"month":   2592000,
	"months":  2592000,
	"y":       31536000,
	"year":    31536000,
	"years":   31536000,
}

// Default is the fallback window used when no rate limit is configured for
// a model: effectively unlimited within a 60 second window.
var Default = []Window{{Count: 999999, Seconds: 60}}

// Parse parses a comma-separated "count/unit" rate-limit string, e.g.
// "2/min,20/day" into a list of windows. An empty string yields no windows.
func Parse(limitString string) ([]Window, error) {
	limitString = strings.TrimSpace(limitString)
	if limitString == "" {
		return nil, nil
	}

	var windows []Window
	for _, part := range strings.Split(limitString, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		slash := strings.Index(part, "/")
		if slash < 0 {
			return nil, fmt.Errorf("ratelimit: invalid rate limit format: %s", part)
		}

		countStr := strings.TrimSpace(part[:slash])
		unit := strings.ToLower(strings.TrimSpace(part[slash+1:]))

		count, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: invalid rate limit format: %s", part)
		}

		seconds, ok := unitSeconds[unit]
		if !ok {
			return nil, fmt.Errorf("ratelimit: invalid time unit: %s", unit)
		}

		windows = append(windows, Window{Count: count, Seconds: seconds})
	}

	return windows, nil
}

// MustParse is like Parse but panics on error; intended for package-level
// hardcoded rate-limit tables.
func MustParse(limitString string) []Window {
	w, err := Parse(limitString)
	if err != nil {
		panic(err)
	}
	return w
}
