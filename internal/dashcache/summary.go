// Package dashcache computes the dashboard summary and caches it in Redis.
package dashcache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"casedesk/api/internal/store"
)

// UpcomingWindow is how far ahead a deadline counts as upcoming.
const UpcomingWindow = 30 * 24 * time.Hour

type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Counts struct {
	Cases             int `json:"cases"`
	OpenCases         int `json:"openCases"`
	Individuals       int `json:"individuals"`
	LegalEntities     int `json:"legalEntities"`
	UpcomingDeadlines int `json:"upcomingDeadlines"`
	OverdueDeadlines  int `json:"overdueDeadlines"`
}

type Summary struct {
	Counts        Counts    `json:"counts"`
	CasesByType   []Bucket  `json:"casesByType"`
	CasesByStatus []Bucket  `json:"casesByStatus"`
	CasesPerMonth []Bucket  `json:"casesPerMonth"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Source is the store side of the dashboard.
type Source interface {
	CountCases(ctx context.Context) (int, error)
	CountOpenCases(ctx context.Context) (int, error)
	CountIndividuals(ctx context.Context) (int, error)
	CountLegalEntities(ctx context.Context) (int, error)
	CountUpcomingDeadlines(ctx context.Context, from, to time.Time) (int, error)
	CountOverdueDeadlines(ctx context.Context, now time.Time) (int, error)
	CasesByType(ctx context.Context) ([]store.Bucket, error)
	CasesByStatus(ctx context.Context) ([]store.Bucket, error)
	CasesPerMonth(ctx context.Context, now time.Time) ([]store.Bucket, error)
}

// Compute runs every dashboard query concurrently. The first failure cancels
// the rest.
func Compute(ctx context.Context, src Source, now time.Time) (Summary, error) {
	summary := Summary{GeneratedAt: now.UTC()}
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			*dst = n
			return err
		})
	}
	buckets := func(dst *[]Bucket, fn func(context.Context) ([]store.Bucket, error)) {
		g.Go(func() error {
			items, err := fn(ctx)
			if err != nil {
				return err
			}
			*dst = toBuckets(items)
			return nil
		})
	}

	c := &summary.Counts
	count(&c.Cases, src.CountCases)
	count(&c.OpenCases, src.CountOpenCases)
	count(&c.Individuals, src.CountIndividuals)
	count(&c.LegalEntities, src.CountLegalEntities)
	count(&c.UpcomingDeadlines, func(ctx context.Context) (int, error) {
		return src.CountUpcomingDeadlines(ctx, now, now.Add(UpcomingWindow))
	})
	count(&c.OverdueDeadlines, func(ctx context.Context) (int, error) {
		return src.CountOverdueDeadlines(ctx, now)
	})
	buckets(&summary.CasesByType, src.CasesByType)
	buckets(&summary.CasesByStatus, src.CasesByStatus)
	buckets(&summary.CasesPerMonth, func(ctx context.Context) ([]store.Bucket, error) {
		return src.CasesPerMonth(ctx, now)
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func toBuckets(items []store.Bucket) []Bucket {
	out := make([]Bucket, 0, len(items))
	for _, item := range items {
		out = append(out, Bucket{Label: item.Label, Count: item.Count})
	}
	return out
}
