package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) countQuery(ctx context.Context, label, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", label, err)
	}
	return n, nil
}

func (s *PostgresStore) CountCases(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "cases", `SELECT COUNT(*) FROM legal_cases`)
}

// CountOpenCases counts cases without a status or with a status that is not closed.
func (s *PostgresStore) CountOpenCases(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "open cases", `
		SELECT COUNT(*) FROM legal_cases c
		LEFT JOIN statuses st ON st.id = c.status_id
		WHERE COALESCE(st.is_closed, FALSE) = FALSE
	`)
}

func (s *PostgresStore) CountIndividuals(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "individuals", `SELECT COUNT(*) FROM individuals`)
}

func (s *PostgresStore) CountLegalEntities(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "legal entities", `SELECT COUNT(*) FROM legal_entities`)
}

func (s *PostgresStore) CountUpcomingDeadlines(ctx context.Context, from, to time.Time) (int, error) {
	return s.countQuery(ctx, "upcoming deadlines", `
		SELECT COUNT(*) FROM deadlines WHERE completed_at IS NULL AND due_at >= $1 AND due_at < $2
	`, from, to)
}

func (s *PostgresStore) CountOverdueDeadlines(ctx context.Context, now time.Time) (int, error) {
	return s.countQuery(ctx, "overdue deadlines", `
		SELECT COUNT(*) FROM deadlines WHERE completed_at IS NULL AND due_at < $1
	`, now)
}

func (s *PostgresStore) queryBuckets(ctx context.Context, label, query string, args ...any) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	buckets := make([]Bucket, 0)
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", label, err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", label, err)
	}
	return buckets, nil
}

func (s *PostgresStore) CasesByType(ctx context.Context) ([]Bucket, error) {
	return s.queryBuckets(ctx, "cases by type", `
		SELECT ct.name, COUNT(c.id)
		FROM case_types ct
		LEFT JOIN legal_cases c ON c.case_type_id = ct.id
		GROUP BY ct.id, ct.name
		ORDER BY COUNT(c.id) DESC, ct.name
	`)
}

// CasesByStatus groups cases without a status under "No status".
func (s *PostgresStore) CasesByStatus(ctx context.Context) ([]Bucket, error) {
	return s.queryBuckets(ctx, "cases by status", `
		SELECT COALESCE(st.name, 'No status'), COUNT(*)
		FROM legal_cases c
		LEFT JOIN statuses st ON st.id = c.status_id
		GROUP BY st.name, st.sort_order
		ORDER BY COALESCE(st.sort_order, 2147483647), 1
	`)
}

// CasesPerMonth counts cases by entry month for the twelve months ending with
// the month of now, oldest first. Months without cases are present with 0.
func (s *PostgresStore) CasesPerMonth(ctx context.Context, now time.Time) ([]Bucket, error) {
	return s.queryBuckets(ctx, "cases per month", `
		SELECT to_char(m.month, 'YYYY-MM'), COUNT(c.id)
		FROM generate_series(
			date_trunc('month', $1::timestamptz) - INTERVAL '11 months',
			date_trunc('month', $1::timestamptz),
			INTERVAL '1 month'
		) AS m(month)
		LEFT JOIN legal_cases c ON date_trunc('month', c.entry_date) = m.month
		GROUP BY m.month
		ORDER BY m.month
	`, now)
}
