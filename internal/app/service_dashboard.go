package app

import (
	"context"
	"strings"

	"casedesk/api/internal/dashcache"
	"casedesk/api/internal/search"
)

const maxSearchLimit = 50

func (s *Service) DashboardSummary(ctx context.Context) (dashcache.Summary, error) {
	return s.dashboard.Summary(ctx, func(ctx context.Context) (dashcache.Summary, error) {
		return dashcache.Compute(ctx, s.store, s.now())
	})
}

func (s *Service) Search(ctx context.Context, text, kind string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, search.ErrNoBackend
	}
	filterType, ok := search.ParseResultType(kind)
	if !ok {
		return search.Response{}, fieldError("type", "must be one of: case, individual, legal_entity")
	}
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, maxSearchLimit)
	if offset < 0 {
		offset = 0
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{Text: text, FilterType: filterType, Limit: limit, Offset: offset}), nil
}
