package rca

import (
	"sort"

	"github.com/platformbuilds/hindsight/internal/models"
)

// DefaultTopErrors is how many repeated messages the pattern stats keep.
const DefaultTopErrors = 5

// RepeatedErrorThreshold is the share of the incident's events one
// message must reach before it becomes a pattern hypothesis.
const RepeatedErrorThreshold = 0.5

// MessageCount is one repeated error message and its frequency.
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// PatternStats summarizes error repetition inside an incident group.
type PatternStats struct {
	// MostCommonErrors holds the top-K error messages by count,
	// descending, ties broken lexicographically.
	MostCommonErrors []MessageCount `json:"most_common_errors"`

	// ErrorTypes is the frequency of each level present in the group.
	ErrorTypes map[models.LogLevel]int `json:"error_types"`

	// TotalEvents is the group size the shares are computed against.
	TotalEvents int `json:"total_events"`
}

// ComputePatternStats counts error-level messages and level
// frequencies over a group. topK <= 0 uses DefaultTopErrors.
func ComputePatternStats(group *IncidentGroup, topK int) *PatternStats {
	if topK <= 0 {
		topK = DefaultTopErrors
	}
	stats := &PatternStats{
		ErrorTypes: make(map[models.LogLevel]int),
	}
	if group == nil {
		return stats
	}
	stats.TotalEvents = len(group.Events)

	counts := make(map[string]int)
	for _, e := range group.Events {
		if e.Level != "" {
			stats.ErrorTypes[e.Level]++
		}
		if e.Level.IsError() && e.Message != "" {
			counts[e.Message]++
		}
	}

	ranked := make([]MessageCount, 0, len(counts))
	for msg, n := range counts {
		ranked = append(ranked, MessageCount{Message: msg, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Message < ranked[j].Message
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	stats.MostCommonErrors = ranked

	return stats
}

// TopErrorShare returns the share of the group's events taken by the
// most common error message, zero for empty groups.
func (s *PatternStats) TopErrorShare() float64 {
	if s.TotalEvents == 0 || len(s.MostCommonErrors) == 0 {
		return 0
	}
	return float64(s.MostCommonErrors[0].Count) / float64(s.TotalEvents)
}
