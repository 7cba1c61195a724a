package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxCases         = "casedesk_cases"
	idxIndividuals   = "casedesk_individuals"
	idxLegalEntities = "casedesk_legal_entities"
)

type indexSpec struct {
	uid        string
	kind       ResultType
	filterable []string
	searchable []string
}

var indexSpecs = []indexSpec{
	{uid: idxCases, kind: ResultCase, filterable: []string{"caseTypeId", "status"}, searchable: []string{"code", "title", "description"}},
	{uid: idxIndividuals, kind: ResultIndividual, searchable: []string{"name", "email", "notes"}},
	{uid: idxLegalEntities, kind: ResultLegalEntity, searchable: []string{"name", "registrationNumber", "description"}},
}

// Meili implements Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}

	hookMu    sync.Mutex
	onRecover func()
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error: the health loop keeps probing and
// searches fall back until it recovers.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.Named("meili"),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop(10 * time.Second)
	return m
}

func (m *Meili) Name() string { return "meilisearch" }

func (m *Meili) configureIndexes() {
	for _, idx := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug("create index (may already exist)", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		if len(idx.filterable) > 0 {
			filterable := make([]interface{}, len(idx.filterable))
			for i, v := range idx.filterable {
				filterable[i] = v
			}
			if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
				m.logger.Warn("update filterable attributes", zap.String("index", idx.uid), zap.Error(err))
			}
		}
		searchable := idx.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			m.logger.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Swap(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
				m.hookMu.Lock()
				hook := m.onRecover
				m.hookMu.Unlock()
				if hook != nil {
					hook()
				}
			}
		}
	}
}

// OnRecover registers fn to run each time the server becomes reachable again.
func (m *Meili) OnRecover(fn func()) {
	m.hookMu.Lock()
	m.onRecover = fn
	m.hookMu.Unlock()
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries every index (or the filtered one) in a single multi-search
// and concatenates the hits.
func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	for _, idx := range indexSpecs {
		if q.FilterType != "" && q.FilterType != idx.kind {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              idx.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	results := make([]Result, 0)
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		kind := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, kind))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	for _, idx := range indexSpecs {
		if idx.uid == uid {
			return idx.kind
		}
	}
	return ""
}

func resultTypeToIndex(kind ResultType) string {
	for _, idx := range indexSpecs {
		if idx.kind == kind {
			return idx.uid
		}
	}
	return ""
}

func hitToResult(hit meili.Hit, kind ResultType) Result {
	r := Result{Type: kind, ID: decodeString(hit, "id")}
	field := func(key string) string {
		return firstNonBlank(decodeFormattedString(hit, key), decodeString(hit, key))
	}

	switch kind {
	case ResultCase:
		r.Title = strings.TrimSpace(decodeString(hit, "code") + " " + field("title"))
		r.Snippet = field("description")
	case ResultIndividual:
		r.Title = field("name")
		r.Snippet = firstNonBlank(field("notes"), field("email"))
	case ResultLegalEntity:
		r.Title = field("name")
		r.Snippet = firstNonBlank(field("description"), field("registrationNumber"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	s, _ := formatted[key].(string)
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexCases(records []CaseRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCases).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexIndividuals(records []IndividualRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxIndividuals).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexLegalEntities(records []LegalEntityRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLegalEntities).AddDocuments(records, nil)
	return err
}

// Clear deletes every document from every index.
func (m *Meili) Clear() error {
	for _, idx := range indexSpecs {
		if _, err := m.client.Index(idx.uid).DeleteAllDocuments(nil); err != nil {
			return fmt.Errorf("clear %s: %w", idx.uid, err)
		}
	}
	return nil
}

// Delete removes one entity from its index.
func (m *Meili) Delete(kind ResultType, id string) error {
	uid := resultTypeToIndex(kind)
	if uid == "" {
		return fmt.Errorf("unknown search type %q", kind)
	}
	_, err := m.client.Index(uid).DeleteDocument(id, nil)
	return err
}
