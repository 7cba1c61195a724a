package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoBackend is returned by reindexing when no index is available.
var ErrNoBackend = errors.New("search index unavailable")

const resyncTimeout = 5 * time.Minute

// recordLoader supplies every searchable record for a full reindex.
type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]CaseRecord, []IndividualRecord, []LegalEntityRecord, error)
}

// Service is the facade that tries the index first and falls back to PG FTS.
type Service struct {
	index    Indexer
	fallback Backend
	loader   recordLoader
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewService creates a search service. index may be nil if Meilisearch is not
// configured; loader is used by ReindexAllFromPG.
func NewService(index Indexer, fallback Backend, loader recordLoader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{index: index, fallback: fallback, loader: loader, logger: logger.Named("search")}
	if notifier, ok := index.(recoveryNotifier); ok && loader != nil {
		notifier.OnRecover(s.resync)
	}
	return s
}

// resync rebuilds the index in the background. Writes made while the index
// was down were skipped, so a full rebuild is the only way to catch up.
func (s *Service) resync() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
		defer cancel()
		if err := s.ReindexAllFromPG(ctx); err != nil {
			s.logger.Error("resync after recovery failed", zap.Error(err))
		}
	}()
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries the index if healthy, otherwise falls back to PG FTS. Backend
// failures degrade to an empty result rather than an error.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.indexReady() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: s.index.Name()}
		}
		s.logger.Warn("index search failed, falling back", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("fallback search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text, Engine: s.fallback.Name()}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: s.fallback.Name()}
}

// async runs an index write in the background; Wait blocks until all have
// finished.
func (s *Service) async(what, id string, fn func() error) {
	if !s.indexReady() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.logger.Warn("index write failed", zap.String("op", what), zap.String("id", id), zap.Error(err))
		}
	}()
}

// Wait blocks until background index writes started so far have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) IndexCase(r CaseRecord) {
	s.async("index case", r.ID, func() error { return s.index.IndexCases([]CaseRecord{r}) })
}

func (s *Service) IndexIndividual(r IndividualRecord) {
	s.async("index individual", r.ID, func() error { return s.index.IndexIndividuals([]IndividualRecord{r}) })
}

func (s *Service) IndexLegalEntity(r LegalEntityRecord) {
	s.async("index legal entity", r.ID, func() error { return s.index.IndexLegalEntities([]LegalEntityRecord{r}) })
}

func (s *Service) Delete(kind ResultType, id string) {
	s.async("delete "+string(kind), id, func() error { return s.index.Delete(kind, id) })
}

// ReindexAllFromPG clears the index and pushes every searchable row into it
// synchronously.
func (s *Service) ReindexAllFromPG(ctx context.Context) error {
	if !s.indexReady() || s.loader == nil {
		return ErrNoBackend
	}
	cases, individuals, entities, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		return err
	}
	if err := s.index.Clear(); err != nil {
		return err
	}
	if err := s.index.IndexCases(cases); err != nil {
		return err
	}
	if err := s.index.IndexIndividuals(individuals); err != nil {
		return err
	}
	if err := s.index.IndexLegalEntities(entities); err != nil {
		return err
	}
	s.logger.Info("reindexed",
		zap.Int("cases", len(cases)),
		zap.Int("individuals", len(individuals)),
		zap.Int("legal_entities", len(entities)),
	)
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
