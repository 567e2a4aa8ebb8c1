package rca

import (
	"sort"
	"time"

	"github.com/platformbuilds/hindsight/internal/models"
)

// GroupingConfig configures how an event stream is partitioned into
// incident groups.
type GroupingConfig struct {
	// Window is the maximum gap between an event and the last event
	// appended to the current group. Default: 5 minutes.
	Window time.Duration

	// MinEvents filters out groups with fewer members. Default: 1.
	MinEvents int
}

// DefaultGroupingConfig returns the grouping defaults.
func DefaultGroupingConfig() GroupingConfig {
	return GroupingConfig{
		Window:    5 * time.Minute,
		MinEvents: 1,
	}
}

func (c GroupingConfig) withDefaults() GroupingConfig {
	if c.Window <= 0 {
		c.Window = 5 * time.Minute
	}
	if c.MinEvents <= 0 {
		c.MinEvents = 1
	}
	return c
}

// IncidentGroup is a time/service-coherent bundle of events. Derived
// fields are computed once at construction; the group is immutable
// afterwards.
type IncidentGroup struct {
	Events    []*models.Event `json:"events"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Services  []string        `json:"services"`
	Severity  models.LogLevel `json:"severity,omitempty"`
}

// NewIncidentGroup bundles events and computes the derived attributes:
// time bounds over present timestamps, the distinct service set, and
// the highest-ranked severity.
func NewIncidentGroup(events []*models.Event) *IncidentGroup {
	g := &IncidentGroup{Events: events}

	seen := make(map[string]struct{})
	for _, e := range events {
		if e.Service != "" {
			seen[e.Service] = struct{}{}
		}
		if e.HasTimestamp() {
			ts := e.When()
			if g.StartTime == nil || ts.Before(*g.StartTime) {
				t := ts
				g.StartTime = &t
			}
			if g.EndTime == nil || ts.After(*g.EndTime) {
				t := ts
				g.EndTime = &t
			}
		}
		if e.Level != "" && e.Level.Rank() > g.Severity.Rank() {
			g.Severity = e.Level
		}
	}

	g.Services = make([]string, 0, len(seen))
	for svc := range seen {
		g.Services = append(g.Services, svc)
	}
	sort.Strings(g.Services)

	return g
}

// Size returns the number of events in the group.
func (g *IncidentGroup) Size() int { return len(g.Events) }

// sortEventsByTime orders events with a timestamp ascending, keeping
// the input order as secondary key. Events without a timestamp are
// returned separately in input order.
func sortEventsByTime(events []*models.Event) (timed, untimed []*models.Event) {
	type indexed struct {
		ev  *models.Event
		pos int
	}
	var withTS []indexed
	for i, e := range events {
		if e.HasTimestamp() {
			withTS = append(withTS, indexed{ev: e, pos: i})
		} else {
			untimed = append(untimed, e)
		}
	}
	sort.SliceStable(withTS, func(i, j int) bool {
		ti, tj := withTS[i].ev.When(), withTS[j].ev.When()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return withTS[i].pos < withTS[j].pos
	})
	timed = make([]*models.Event, len(withTS))
	for i, x := range withTS {
		timed[i] = x.ev
	}
	return timed, untimed
}

// GroupByTimeWindow partitions events into incident groups. Sorted by
// timestamp, an event joins the current group while it falls within
// cfg.Window of the last appended event; otherwise the current group
// closes and a new one opens. Groups smaller than cfg.MinEvents are
// discarded. Events without timestamps are held aside and emitted as
// one terminal group when they meet the minimum.
func GroupByTimeWindow(events []*models.Event, cfg GroupingConfig) []*IncidentGroup {
	cfg = cfg.withDefaults()

	timed, untimed := sortEventsByTime(events)

	var groups []*IncidentGroup
	var current []*models.Event

	flush := func() {
		if len(current) >= cfg.MinEvents {
			groups = append(groups, NewIncidentGroup(current))
		}
		current = nil
	}

	for _, e := range timed {
		if len(current) == 0 {
			current = append(current, e)
			continue
		}
		last := current[len(current)-1].When()
		if e.When().Sub(last) <= cfg.Window {
			current = append(current, e)
		} else {
			flush()
			current = append(current, e)
		}
	}
	flush()

	if len(untimed) >= cfg.MinEvents {
		groups = append(groups, NewIncidentGroup(untimed))
	}

	return groups
}

// GroupByServiceThenTime partitions events by service first, then
// applies time-window grouping within each partition. Partitions are
// emitted in lexicographic service order so identical inputs always
// yield identical output order. Events without a service share one
// partition keyed by the empty string.
func GroupByServiceThenTime(events []*models.Event, cfg GroupingConfig) []*IncidentGroup {
	cfg = cfg.withDefaults()

	partitions := make(map[string][]*models.Event)
	for _, e := range events {
		partitions[e.Service] = append(partitions[e.Service], e)
	}

	services := make([]string, 0, len(partitions))
	for svc := range partitions {
		services = append(services, svc)
	}
	sort.Strings(services)

	var groups []*IncidentGroup
	for _, svc := range services {
		groups = append(groups, GroupByTimeWindow(partitions[svc], cfg)...)
	}
	return groups
}
