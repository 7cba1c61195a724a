package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	mu          sync.Mutex
	healthy     bool
	searchErr   error
	results     []Result
	cases       []CaseRecord
	individuals []IndividualRecord
	entities    []LegalEntityRecord
	deleted     []string
	cleared     int
	recover     func()
}

func (f *fakeIndex) Search(context.Context, Query) ([]Result, int, error) {
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}
func (f *fakeIndex) Healthy() bool { return f.healthy }
func (f *fakeIndex) Name() string  { return "fake-index" }
func (f *fakeIndex) IndexCases(r []CaseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases = append(f.cases, r...)
	return nil
}
func (f *fakeIndex) IndexIndividuals(r []IndividualRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.individuals = append(f.individuals, r...)
	return nil
}
func (f *fakeIndex) IndexLegalEntities(r []LegalEntityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities = append(f.entities, r...)
	return nil
}
func (f *fakeIndex) Delete(kind ResultType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, string(kind)+":"+id)
	return nil
}

func (f *fakeIndex) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.cases, f.individuals, f.entities = nil, nil, nil
	return nil
}
func (f *fakeIndex) OnRecover(fn func()) { f.recover = fn }

type fakeFallback struct {
	results []Result
	err     error
	calls   int
}

func (f *fakeFallback) Search(context.Context, Query) ([]Result, int, error) {
	f.calls++
	return f.results, len(f.results), f.err
}
func (f *fakeFallback) Healthy() bool { return true }
func (f *fakeFallback) Name() string  { return "postgres" }

type fakeLoader struct{}

func (fakeLoader) LoadAllRecords(context.Context) ([]CaseRecord, []IndividualRecord, []LegalEntityRecord, error) {
	return []CaseRecord{{ID: "case_1"}}, []IndividualRecord{{ID: "ind_1"}, {ID: "ind_2"}}, nil, nil
}

func TestSearchUsesHealthyIndex(t *testing.T) {
	index := &fakeIndex{healthy: true, results: []Result{{Type: ResultCase, ID: "case_1"}}}
	fallback := &fakeFallback{}
	svc := NewService(index, fallback, nil, nil)

	resp := svc.Search(context.Background(), Query{Text: "silva"})
	assert.Equal(t, "fake-index", resp.Engine)
	assert.Len(t, resp.Results, 1)
	assert.Zero(t, fallback.calls)
}

func TestSearchFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		index Indexer
	}{
		{name: "no index", index: nil},
		{name: "unhealthy index", index: &fakeIndex{healthy: false}},
		{name: "index error", index: &fakeIndex{healthy: true, searchErr: errors.New("boom")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fallback := &fakeFallback{results: []Result{{Type: ResultIndividual, ID: "ind_1"}}}
			svc := NewService(tc.index, fallback, nil, nil)

			resp := svc.Search(context.Background(), Query{Text: "maria"})
			assert.Equal(t, "postgres", resp.Engine)
			assert.Equal(t, 1, fallback.calls)
			assert.Equal(t, 1, resp.Total)
		})
	}
}

func TestSearchFallbackErrorYieldsEmptyList(t *testing.T) {
	svc := NewService(nil, &fakeFallback{err: errors.New("db down")}, nil, nil)

	resp := svc.Search(context.Background(), Query{Text: "x"})
	require.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"results":[]`)
}

func TestIndexWritesRunInBackground(t *testing.T) {
	index := &fakeIndex{healthy: true}
	svc := NewService(index, &fakeFallback{}, nil, nil)

	svc.IndexCase(CaseRecord{ID: "case_1"})
	svc.IndexIndividual(IndividualRecord{ID: "ind_1"})
	svc.IndexLegalEntity(LegalEntityRecord{ID: "ent_1"})
	svc.Delete(ResultCase, "case_0")
	svc.Wait()

	assert.Len(t, index.cases, 1)
	assert.Len(t, index.individuals, 1)
	assert.Len(t, index.entities, 1)
	assert.Equal(t, []string{"case:case_0"}, index.deleted)
}

func TestIndexWritesSkippedWhenUnhealthy(t *testing.T) {
	index := &fakeIndex{healthy: false}
	svc := NewService(index, &fakeFallback{}, nil, nil)

	svc.IndexCase(CaseRecord{ID: "case_1"})
	svc.Wait()
	assert.Empty(t, index.cases)
}

func TestReindexAllFromPG(t *testing.T) {
	index := &fakeIndex{healthy: true}
	svc := NewService(index, &fakeFallback{}, fakeLoader{}, nil)

	index.cases = []CaseRecord{{ID: "case_deleted"}}
	require.NoError(t, svc.ReindexAllFromPG(context.Background()))
	assert.Equal(t, 1, index.cleared)
	assert.Equal(t, []CaseRecord{{ID: "case_1"}}, index.cases)
	assert.Len(t, index.individuals, 2)

	svc = NewService(nil, &fakeFallback{}, fakeLoader{}, nil)
	assert.ErrorIs(t, svc.ReindexAllFromPG(context.Background()), ErrNoBackend)
}

func TestRecoveryTriggersFullReindex(t *testing.T) {
	index := &fakeIndex{healthy: false}
	svc := NewService(index, &fakeFallback{}, fakeLoader{}, nil)
	require.NotNil(t, index.recover)

	svc.IndexCase(CaseRecord{ID: "case_missed"})
	svc.Wait()
	assert.Empty(t, index.cases)

	index.mu.Lock()
	index.healthy = true
	index.mu.Unlock()
	index.recover()
	svc.Wait()

	assert.Equal(t, 1, index.cleared)
	assert.Equal(t, []CaseRecord{{ID: "case_1"}}, index.cases)
	assert.Len(t, index.individuals, 2)
}

func TestParseResultType(t *testing.T) {
	for _, raw := range []string{"", "case", "individual", "legal_entity"} {
		_, ok := ParseResultType(raw)
		assert.True(t, ok, raw)
	}
	_, ok := ParseResultType("document")
	assert.False(t, ok)
}

func TestHitToResultPrefersHighlightedFields(t *testing.T) {
	hit := meili.Hit{
		"id":          json.RawMessage(`"case_1"`),
		"code":        json.RawMessage(`"CIV-001"`),
		"title":       json.RawMessage(`"Silva v Acme"`),
		"description": json.RawMessage(`"Contract dispute"`),
		"_formatted":  json.RawMessage(`{"title":"<mark>Silva</mark> v Acme","description":"Contract dispute","caseTypeId":"ctype_1"}`),
	}

	got := hitToResult(hit, indexToResultType(idxCases))
	assert.Equal(t, Result{
		Type:    ResultCase,
		ID:      "case_1",
		Title:   "CIV-001 <mark>Silva</mark> v Acme",
		Snippet: "Contract dispute",
	}, got)
}

func TestHitToResultIndividualFallsBackToEmail(t *testing.T) {
	hit := meili.Hit{
		"id":    json.RawMessage(`"ind_1"`),
		"name":  json.RawMessage(`"Maria Silva"`),
		"email": json.RawMessage(`"maria@example.com"`),
		"notes": json.RawMessage(`""`),
	}
	got := hitToResult(hit, ResultIndividual)
	assert.Equal(t, "Maria Silva", got.Title)
	assert.Equal(t, "maria@example.com", got.Snippet)
}
