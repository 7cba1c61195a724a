package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Backend using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Name() string { return "postgres" }

const headlineOpts = `'StartSel=<mark>,StopSel=</mark>,MaxFragments=1,MaxWords=30'`

// Search runs one UNION ALL query across the generated tsvector columns,
// ranked with ts_rank.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('simple', $1)"
	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultCase {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'case'::text AS type, c.id, c.code || ' ' || c.title AS title,
				ts_headline('simple', c.description, %[1]s, %[2]s) AS snippet,
				ts_rank(c.fts, %[1]s) AS rank
			FROM legal_cases c
			WHERE c.fts @@ %[1]s`, tsQuery, headlineOpts))
	}
	if q.FilterType == "" || q.FilterType == ResultIndividual {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'individual'::text AS type, i.id, i.first_name || ' ' || i.last_name AS title,
				ts_headline('simple', i.email || ' ' || i.notes, %[1]s, %[2]s) AS snippet,
				ts_rank(i.fts, %[1]s) AS rank
			FROM individuals i
			WHERE i.fts @@ %[1]s`, tsQuery, headlineOpts))
	}
	if q.FilterType == "" || q.FilterType == ResultLegalEntity {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'legal_entity'::text AS type, le.id, le.name AS title,
				ts_headline('simple', le.registration_number || ' ' || le.description, %[1]s, %[2]s) AS snippet,
				ts_rank(le.fts, %[1]s) AS rank
			FROM legal_entities le
			WHERE le.fts @@ %[1]s`, tsQuery, headlineOpts))
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM ("+union+") sub", q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `SELECT type, id, title, snippet FROM (`+union+`) sub
		ORDER BY rank DESC, title
		LIMIT $2 OFFSET $3`, q.Text, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CaseRecord, []IndividualRecord, []LegalEntityRecord, error) {
	caseRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.code, c.title, c.description, c.case_type_id, ct.name, COALESCE(st.name, '')
		FROM legal_cases c
		JOIN case_types ct ON ct.id = c.case_type_id
		LEFT JOIN statuses st ON st.id = c.status_id
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load cases: %w", err)
	}
	defer caseRows.Close()

	cases := make([]CaseRecord, 0)
	for caseRows.Next() {
		var r CaseRecord
		if err := caseRows.Scan(&r.ID, &r.Code, &r.Title, &r.Description, &r.CaseTypeID, &r.CaseType, &r.Status); err != nil {
			return nil, nil, nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, r)
	}
	if err := caseRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate cases: %w", err)
	}

	individualRows, err := p.db.QueryContext(ctx, `
		SELECT id, first_name || ' ' || last_name, email, notes FROM individuals
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load individuals: %w", err)
	}
	defer individualRows.Close()

	individuals := make([]IndividualRecord, 0)
	for individualRows.Next() {
		var r IndividualRecord
		if err := individualRows.Scan(&r.ID, &r.Name, &r.Email, &r.Notes); err != nil {
			return nil, nil, nil, fmt.Errorf("scan individual: %w", err)
		}
		individuals = append(individuals, r)
	}
	if err := individualRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate individuals: %w", err)
	}

	entityRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, registration_number, description FROM legal_entities
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load legal entities: %w", err)
	}
	defer entityRows.Close()

	entities := make([]LegalEntityRecord, 0)
	for entityRows.Next() {
		var r LegalEntityRecord
		if err := entityRows.Scan(&r.ID, &r.Name, &r.RegistrationNumber, &r.Description); err != nil {
			return nil, nil, nil, fmt.Errorf("scan legal entity: %w", err)
		}
		entities = append(entities, r)
	}
	if err := entityRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate legal entities: %w", err)
	}

	return cases, individuals, entities, nil
}
