package ingest

import (
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	dps "github.com/markusmobius/go-dateparser"
)

// TimestampCacheSize bounds the parse cache. Log streams repeat a
// handful of formats, so even a small cache absorbs most lookups.
const TimestampCacheSize = 2048

// fast-path layouts tried before the full parser.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"02/Jan/2006:15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
}

type cachedInstant struct {
	t  time.Time
	ok bool
}

// TimestampParser converts free-form timestamp strings to instants,
// caching outcomes per input string. Safe for concurrent use.
type TimestampParser struct {
	cache *lru.Cache[string, cachedInstant]
}

// NewTimestampParser builds a parser with the given cache size;
// non-positive sizes use TimestampCacheSize.
func NewTimestampParser(size int) *TimestampParser {
	if size <= 0 {
		size = TimestampCacheSize
	}
	cache, _ := lru.New[string, cachedInstant](size)
	return &TimestampParser{cache: cache}
}

// Parse returns the parsed instant in UTC, or ok=false when the string
// cannot be read as a time. Failures are cached too.
func (p *TimestampParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if hit, ok := p.cache.Get(s); ok {
		return hit.t, hit.ok
	}

	t, ok := parseInstant(s)
	p.cache.Add(s, cachedInstant{t: t, ok: ok})
	return t, ok
}

// Len returns the number of cached strings.
func (p *TimestampParser) Len() int { return p.cache.Len() }

func parseInstant(s string) (time.Time, bool) {
	// Numeric strings are epoch seconds, milliseconds, or nanoseconds
	// depending on magnitude.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{PreferredDateSource: dps.CurrentPeriod}
	parsed, err := parser.Parse(cfg, s)
	if err != nil || parsed.IsZero() {
		return time.Time{}, false
	}
	return parsed.Time.UTC(), true
}

// fromEpoch guesses the unit of a bare integer timestamp.
func fromEpoch(n int64) time.Time {
	switch {
	case n >= 1e17: // nanoseconds
		return time.Unix(0, n).UTC()
	case n >= 1e14: // microseconds
		return time.Unix(0, n*int64(time.Microsecond)).UTC()
	case n >= 1e11: // milliseconds
		return time.Unix(0, n*int64(time.Millisecond)).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}
