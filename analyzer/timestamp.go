package analyzer

import (
	"strconv"
	"strings"
	"time"
)

// Layouts that carry their own zone information.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.UnixDate,
	time.RubyDate,
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// Layouts without zone information; they are read in the normalizer's location.
// Slash dates are month-first.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05.999999999",
	"2006/1/2 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006.01.02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2 2006 15:04:05",
	"2 Jan 2006 15:04:05",
	"02-Jan-2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	time.ANSIC,
	time.Stamp,
}

// UnixNano can only represent instants inside this window.
var (
	minInstant = time.Unix(0, -1<<63).UTC().Add(time.Second)
	maxInstant = time.Unix(0, 1<<63-1).UTC().Add(-time.Second)
)

// TimestampNormalizer maps free-form timestamps to UTC instants.
type TimestampNormalizer struct {
	loc     *time.Location
	layouts []string
	now     func() time.Time
}

// NewTimestampNormalizer returns a normalizer reading zone-less inputs in loc
// (UTC when nil). Extra layouts are tried after the built-in ones.
func NewTimestampNormalizer(loc *time.Location, extraLayouts ...string) *TimestampNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	layouts := make([]string, 0, len(localLayouts)+len(extraLayouts))
	layouts = append(layouts, localLayouts...)
	for _, l := range extraLayouts {
		if strings.TrimSpace(l) != "" {
			layouts = append(layouts, l)
		}
	}
	return &TimestampNormalizer{loc: loc, layouts: layouts, now: time.Now}
}

// Normalize returns the canonical UTC instant for s. When s is empty or
// unparseable it returns the current time and ok=false.
func (n *TimestampNormalizer) Normalize(s string) (ts time.Time, ok bool) {
	if ts, ok := n.Parse(s); ok {
		return ts, true
	}
	return n.now().UTC(), false
}

// Parse is Normalize without the fallback.
func (n *TimestampNormalizer) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// "Thu Feb 12 2026 18:33:35 GMT+0800 (China Standard Time)"
	if i := strings.LastIndex(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[:i])
	}
	if ts, ok := parseEpoch(s); ok {
		return inRange(ts)
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return inRange(ts)
		}
	}
	for _, layout := range n.layouts {
		if ts, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			if ts.Year() == 0 {
				// time.Stamp carries no year.
				continue
			}
			return inRange(ts)
		}
	}
	return time.Time{}, false
}

// parseEpoch accepts Unix seconds (up to 11 digits) or milliseconds (12-14 digits).
func parseEpoch(s string) (time.Time, bool) {
	digits := strings.TrimPrefix(s, "-")
	if len(digits) < 9 || len(digits) > 14 {
		return time.Time{}, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if len(digits) <= 11 {
		return time.Unix(v, 0), true
	}
	return time.UnixMilli(v), true
}

func inRange(ts time.Time) (time.Time, bool) {
	ts = ts.UTC()
	if ts.Before(minInstant) || ts.After(maxInstant) {
		return time.Time{}, false
	}
	return ts, true
}
