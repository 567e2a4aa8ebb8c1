package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platformbuilds/hindsight/internal/config"
	"github.com/platformbuilds/hindsight/internal/logging"
	"github.com/platformbuilds/hindsight/internal/models"
	"github.com/platformbuilds/hindsight/internal/monitoring"
)

const (
	defaultMaxIndexedEvents = 100000
	defaultSearchLimit      = 50
)

// EventSearchService keeps recently ingested events in an in-memory
// full-text index. The index is bounded: once MaxIndexedEvents is reached
// the oldest entries are evicted, so this is a live-incident search window,
// not an archive.
type EventSearchService struct {
	index   bleve.Index
	recent  *lru.Cache[string, *models.Event]
	maxHits int
	logger  logging.Logger
	mu      sync.RWMutex
}

func NewEventSearchService(cfg config.SearchConfig, log logging.Logger) (*EventSearchService, error) {
	if log == nil {
		log = logging.NewNop()
	}

	index, err := bleve.NewMemOnly(buildEventIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create event index: %w", err)
	}

	maxIndexed := cfg.MaxIndexedEvents
	if maxIndexed <= 0 {
		maxIndexed = defaultMaxIndexedEvents
	}
	maxHits := cfg.MaxResults
	if maxHits <= 0 {
		maxHits = defaultSearchLimit
	}

	s := &EventSearchService{
		index:   index,
		maxHits: maxHits,
		logger:  log,
	}

	// Eviction removes the document from the index so the two structures
	// stay in lockstep.
	s.recent, err = lru.NewWithEvict[string, *models.Event](maxIndexed, func(id string, _ *models.Event) {
		if delErr := index.Delete(id); delErr != nil {
			log.Warn("failed to evict event from search index", "id", id, "error", delErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event window: %w", err)
	}

	log.Info("event search index initialized", "max_indexed_events", maxIndexed, "max_results", maxHits)
	return s, nil
}

// buildEventIndexMapping keeps service and level as exact keywords so
// filters match whole values; message gets the standard text analysis.
func buildEventIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	eventMapping := bleve.NewDocumentMapping()

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	eventMapping.AddFieldMappingsAt("service", keywordField)
	eventMapping.AddFieldMappingsAt("level", keywordField)

	eventMapping.AddFieldMappingsAt("message", bleve.NewTextFieldMapping())
	eventMapping.AddFieldMappingsAt("timestamp", bleve.NewDateTimeFieldMapping())

	indexMapping.DefaultMapping = eventMapping
	return indexMapping
}

// IndexEvent adds one event to the search window.
func (s *EventSearchService) IndexEvent(event *models.Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	doc := map[string]interface{}{
		"service": event.Service,
		"level":   strings.ToUpper(string(event.Level)),
		"message": event.Message,
	}
	if event.HasTimestamp() {
		doc["timestamp"] = event.When()
	}

	if err := s.index.Index(id, doc); err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	s.recent.Add(id, event)
	monitoring.SearchIndexedEvents.Set(float64(s.recent.Len()))
	return nil
}

// IndexEvents indexes a batch, stopping at the first indexing error.
func (s *EventSearchService) IndexEvents(events []*models.Event) error {
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := s.IndexEvent(event); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a query-string search constrained by the optional service and
// level filters. Hits come back in relevance order.
func (s *EventSearchService) Search(ctx context.Context, req *models.EventSearchRequest) (*models.EventSearchResponse, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var conjuncts []query.Query
	if strings.TrimSpace(req.Query) != "" {
		conjuncts = append(conjuncts, bleve.NewQueryStringQuery(req.Query))
	}
	if req.Service != "" {
		tq := bleve.NewTermQuery(req.Service)
		tq.SetField("service")
		conjuncts = append(conjuncts, tq)
	}
	if req.Level != "" {
		tq := bleve.NewTermQuery(strings.ToUpper(req.Level))
		tq.SetField("level")
		conjuncts = append(conjuncts, tq)
	}

	var q query.Query
	switch len(conjuncts) {
	case 0:
		q = bleve.NewMatchAllQuery()
	case 1:
		q = conjuncts[0]
	default:
		q = bleve.NewConjunctionQuery(conjuncts...)
	}

	limit := req.Limit
	if limit <= 0 || limit > s.maxHits {
		limit = s.maxHits
	}

	searchRequest := bleve.NewSearchRequestOptions(q, limit, 0, false)
	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		monitoring.RecordSearchQuery(false)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]models.EventSearchHit, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		event, ok := s.recent.Peek(hit.ID)
		if !ok {
			continue
		}
		hits = append(hits, models.EventSearchHit{Event: event, Score: hit.Score})
	}

	monitoring.RecordSearchQuery(true)
	return &models.EventSearchResponse{
		Hits:   hits,
		Total:  searchResult.Total,
		TookMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

// Size returns the number of events currently indexed.
func (s *EventSearchService) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recent.Len()
}

// Close releases the in-memory index.
func (s *EventSearchService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
