package ingest

import (
	"fmt"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// Record is the raw key/value shape every adapter produces.
type Record map[string]interface{}

// Normalizer converts raw records into events, sharing one timestamp
// parse cache across all adapters.
type Normalizer struct {
	timestamps *TimestampParser
}

// NewNormalizer builds a normalizer with the default cache size.
func NewNormalizer() *Normalizer {
	return &Normalizer{timestamps: NewTimestampParser(0)}
}

// Timestamps exposes the shared parse cache.
func (n *Normalizer) Timestamps() *TimestampParser { return n.timestamps }

// Normalize maps a raw record to an event. First non-empty field wins:
// service from service/component, level from level/severity, message
// from message. A timestamp that fails to parse is dropped, not fatal.
// Records carrying neither service nor message are rejected.
func (n *Normalizer) Normalize(raw Record) (*models.Event, error) {
	if raw == nil {
		return nil, &ParseError{Reason: "input is not a record"}
	}

	event := &models.Event{
		Service: firstString(raw, "service", "component"),
		Message: stringValue(raw["message"]),
		Raw:     raw,
	}
	if lvl := firstString(raw, "level", "severity"); lvl != "" {
		event.Level = models.NormalizeLevel(lvl)
	}

	if event.Service == "" && event.Message == "" {
		return nil, &ValidationError{Reason: "record has neither service nor message"}
	}

	if ts, ok := n.parseTimestampValue(raw["timestamp"]); ok {
		event.Timestamp = &ts
	}

	return event, nil
}

func (n *Normalizer) parseTimestampValue(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val.UTC(), true
	case string:
		return n.timestamps.Parse(val)
	case float64:
		if val <= 0 {
			return time.Time{}, false
		}
		sec := int64(val)
		if float64(sec) >= 1e11 {
			// Large magnitudes are sub-second epochs.
			return fromEpoch(sec), true
		}
		nsec := int64((val - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	case int64:
		if val <= 0 {
			return time.Time{}, false
		}
		return fromEpoch(val), true
	case int:
		return n.parseTimestampValue(int64(val))
	default:
		return n.timestamps.Parse(stringValue(v))
	}
}

// firstString returns the first non-empty string value among the keys.
func firstString(raw Record, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
