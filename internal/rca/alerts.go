package rca

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
)

// AlertCorrelator groups related alerts by rule-driven keys and time
// proximity, and derives summaries and suppression sets from the
// groups.
type AlertCorrelator struct {
	log logging.Logger
}

// NewAlertCorrelator builds an alert correlator.
func NewAlertCorrelator(log logging.Logger) *AlertCorrelator {
	if log == nil {
		log = logging.NewNop()
	}
	return &AlertCorrelator{log: log}
}

// Correlate groups alerts under every rule and keeps groups at least
// as large as the smallest min_alerts across the rules. Within one
// key, an alert joins the active group while it lands inside the
// rule's window of the group's latest alert; otherwise a new group
// opens with the alert's timestamp appended to the key.
func (c *AlertCorrelator) Correlate(alerts []*models.Alert, rules []models.CorrelationRule) []*models.AlertGroup {
	if len(alerts) == 0 || len(rules) == 0 {
		return nil
	}

	sorted := make([]*models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a != nil {
			sorted = append(sorted, a)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	minRequired := minAlertsAcross(rules)

	var groups []*models.AlertGroup
	for _, rule := range rules {
		groups = append(groups, c.groupByRule(sorted, rule)...)
	}

	kept := groups[:0]
	for _, g := range groups {
		if len(g.Alerts) >= minRequired {
			kept = append(kept, g)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].StartTime.Equal(kept[j].StartTime) {
			return kept[i].StartTime.Before(kept[j].StartTime)
		}
		return kept[i].Key < kept[j].Key
	})

	c.log.Debug("alerts correlated", "alerts", len(sorted), "rules", len(rules), "groups", len(kept))
	return kept
}

// minAlertsAcross returns the smallest min_alerts over the rules,
// treating unset values as 1.
func minAlertsAcross(rules []models.CorrelationRule) int {
	min := 0
	for _, r := range rules {
		m := r.MinAlerts
		if m < 1 {
			m = 1
		}
		if min == 0 || m < min {
			min = m
		}
	}
	if min == 0 {
		min = 1
	}
	return min
}

func (c *AlertCorrelator) groupByRule(sorted []*models.Alert, rule models.CorrelationRule) []*models.AlertGroup {
	window := rule.TimeWindow.Std()
	if window <= 0 {
		window = time.Minute
	}

	var out []*models.AlertGroup
	active := make(map[string]*models.AlertGroup)

	for _, alert := range sorted {
		base := groupKey(alert, rule)
		group, ok := active[base]
		if ok && alert.CreatedAt.Sub(group.EndTime) <= window {
			group.Alerts = append(group.Alerts, alert)
			if alert.CreatedAt.After(group.EndTime) {
				group.EndTime = alert.CreatedAt
			}
			continue
		}

		key := base
		if ok {
			// The previous run under this key went stale, so the new
			// group is distinguished by its opening timestamp.
			key = base + "|" + alert.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		group = &models.AlertGroup{
			ID:        uuid.NewString(),
			Key:       key,
			Alerts:    []*models.Alert{alert},
			StartTime: alert.CreatedAt,
			EndTime:   alert.CreatedAt,
		}
		active[base] = group
		out = append(out, group)
	}

	return out
}

// groupKey joins the source (when grouped by source), the rule's tags
// in order (missing values become "unknown"), and the severity.
func groupKey(alert *models.Alert, rule models.CorrelationRule) string {
	var parts []string
	if rule.GroupBySource {
		parts = append(parts, "source:"+alert.Source)
	}
	for _, tag := range rule.GroupByTags {
		value := alert.Tags[tag]
		if value == "" {
			value = "unknown"
		}
		parts = append(parts, tag+":"+value)
	}
	parts = append(parts, "severity:"+alert.Severity)
	return strings.Join(parts, "|")
}

// Summarize condenses each group into counts, dominant source and
// severity, time bounds, and histograms.
func (c *AlertCorrelator) Summarize(groups []*models.AlertGroup) []models.AlertGroupSummary {
	summaries := make([]models.AlertGroupSummary, 0, len(groups))
	for _, g := range groups {
		if len(g.Alerts) == 0 {
			continue
		}
		sources := make(map[string]int)
		severities := make(map[string]int)
		earliest, latest := g.Alerts[0].CreatedAt, g.Alerts[0].CreatedAt
		for _, a := range g.Alerts {
			sources[a.Source]++
			severities[a.Severity]++
			if a.CreatedAt.Before(earliest) {
				earliest = a.CreatedAt
			}
			if a.CreatedAt.After(latest) {
				latest = a.CreatedAt
			}
		}
		summaries = append(summaries, models.AlertGroupSummary{
			GroupID:          g.ID,
			Key:              g.Key,
			Count:            len(g.Alerts),
			DominantSource:   dominant(sources),
			DominantSeverity: dominant(severities),
			Earliest:         earliest,
			Latest:           latest,
			DurationSeconds:  latest.Sub(earliest).Seconds(),
			SourceCounts:     sources,
			SeverityCounts:   severities,
		})
	}
	return summaries
}

// dominant picks the highest count, lexicographically smallest on
// ties.
func dominant(counts map[string]int) string {
	best, bestCount := "", -1
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return best
}

// SuppressIDs returns the alert IDs to silence. With keepFirst the
// earliest alert of each group survives; otherwise every grouped
// alert is suppressed.
func (c *AlertCorrelator) SuppressIDs(groups []*models.AlertGroup, keepFirst bool) []string {
	seen := make(map[string]struct{})
	for _, g := range groups {
		if len(g.Alerts) == 0 {
			continue
		}
		alerts := g.Alerts
		if keepFirst {
			first := 0
			for i, a := range alerts {
				if a.CreatedAt.Before(alerts[first].CreatedAt) {
					first = i
				}
			}
			for i, a := range alerts {
				if i != first {
					seen[a.ID] = struct{}{}
				}
			}
			continue
		}
		for _, a := range alerts {
			seen[a.ID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidateRule rejects rules that can never group anything.
func ValidateRule(rule models.CorrelationRule) error {
	if rule.TimeWindow.Std() <= 0 {
		return fmt.Errorf("rule %q: time_window must be positive", rule.Name)
	}
	if rule.MinAlerts < 0 {
		return fmt.Errorf("rule %q: min_alerts cannot be negative", rule.Name)
	}
	return nil
}
