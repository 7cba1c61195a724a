package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const caseSelect = `
	SELECT c.id, c.code, c.title, c.description, c.entry_date, c.case_type_id, ct.name,
		c.status_id, COALESCE(st.name, ''), c.closed_at, COALESCE(c.owner_id, ''), COALESCE(u.display_name, ''),
		c.created_at, c.updated_at
	FROM legal_cases c
	JOIN case_types ct ON ct.id = c.case_type_id
	LEFT JOIN statuses st ON st.id = c.status_id
	LEFT JOIN users u ON u.id = c.owner_id`

func scanCase(row interface{ Scan(...any) error }) (LegalCase, error) {
	var item LegalCase
	var statusID sql.NullString
	var closedAt sql.NullTime
	err := row.Scan(&item.ID, &item.Code, &item.Title, &item.Description, &item.EntryDate, &item.CaseTypeID, &item.CaseType,
		&statusID, &item.Status, &closedAt, &item.OwnerID, &item.OwnerName, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return LegalCase{}, err
	}
	if statusID.Valid {
		item.StatusID = &statusID.String
	}
	if closedAt.Valid {
		item.ClosedAt = &closedAt.Time
	}
	return item, nil
}

// SearchCases returns one page of cases matching filter, newest entry first,
// and the total number of matches.
func (s *PostgresStore) SearchCases(ctx context.Context, filter CaseFilter) ([]LegalCase, int, error) {
	clauses := []string{"1=1"}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(args))))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add(`(c.code ILIKE ? OR c.title ILIKE ? OR c.description ILIKE ?)`, likePattern(search))
	}
	if filter.CaseTypeID != "" {
		add(`c.case_type_id = ?`, filter.CaseTypeID)
	}
	if filter.StatusID != "" {
		add(`c.status_id = ?`, filter.StatusID)
	}
	if filter.TagID != "" {
		add(`EXISTS (SELECT 1 FROM case_tags t WHERE t.case_id = c.id AND t.tag_id = ?)`, filter.TagID)
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM legal_cases c`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := caseSelect + where + fmt.Sprintf(`
		ORDER BY c.entry_date DESC, c.code
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search cases: %w", err)
	}
	defer rows.Close()

	items := make([]LegalCase, 0)
	for rows.Next() {
		item, err := scanCase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan case: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cases: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) GetCase(ctx context.Context, id string) (LegalCase, error) {
	return scanCase(s.db.QueryRowContext(ctx, caseSelect+` WHERE c.id=$1`, id))
}

func (s *PostgresStore) GetCaseDetail(ctx context.Context, id string) (CaseDetail, error) {
	item, err := s.GetCase(ctx, id)
	if err != nil {
		return CaseDetail{}, err
	}
	detail := CaseDetail{LegalCase: item}

	rows, err := s.db.QueryContext(ctx, `
		SELECT 'individual', i.id, i.first_name || ' ' || i.last_name, ci.role
		FROM case_individuals ci
		JOIN individuals i ON i.id = ci.individual_id
		WHERE ci.case_id = $1
		UNION ALL
		SELECT 'legal_entity', le.id, le.name, cle.role
		FROM case_legal_entities cle
		JOIN legal_entities le ON le.id = cle.legal_entity_id
		WHERE cle.case_id = $1
		ORDER BY 1, 3
	`, id)
	if err != nil {
		return CaseDetail{}, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	detail.Participants = make([]CaseParticipant, 0)
	for rows.Next() {
		var p CaseParticipant
		if err := rows.Scan(&p.Kind, &p.ID, &p.Name, &p.Role); err != nil {
			return CaseDetail{}, fmt.Errorf("scan participant: %w", err)
		}
		detail.Participants = append(detail.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return CaseDetail{}, fmt.Errorf("iterate participants: %w", err)
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.color, t.created_at, t.updated_at
		FROM case_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE ct.case_id = $1
		ORDER BY t.name
	`, id)
	if err != nil {
		return CaseDetail{}, fmt.Errorf("list case tags: %w", err)
	}
	defer tagRows.Close()
	detail.Tags, err = scanTags(tagRows)
	if err != nil {
		return CaseDetail{}, err
	}
	return detail, nil
}

// ExistsCode reports whether another case already uses code. excludeID lets an
// update keep its own code.
func (s *PostgresStore) ExistsCode(ctx context.Context, code, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM legal_cases WHERE LOWER(code)=LOWER($1) AND id <> $2)
	`, strings.TrimSpace(code), excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check case code: %w", err)
	}
	return exists, nil
}

// InsertCase writes the case row and its links in one transaction.
func (s *PostgresStore) InsertCase(ctx context.Context, item LegalCase, links CaseLinks) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO legal_cases (id, code, title, description, entry_date, case_type_id, status_id, owner_id, closed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''),
				CASE WHEN (SELECT is_closed FROM statuses WHERE id=$7) THEN NOW() END)
		`, item.ID, item.Code, item.Title, item.Description, item.EntryDate, item.CaseTypeID, nullString(item.StatusID), item.OwnerID); err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		return replaceLinks(ctx, tx, item.ID, links)
	})
}

// UpdateCase stamps closed_at the first time the case moves into a closed
// status and clears it when the case is reopened. Links are replaced in the
// same transaction, so a failed link leaves the row untouched.
func (s *PostgresStore) UpdateCase(ctx context.Context, item LegalCase, links CaseLinks) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE legal_cases
			SET code=$2, title=$3, description=$4, entry_date=$5, case_type_id=$6, status_id=$7,
				closed_at = CASE WHEN (SELECT is_closed FROM statuses WHERE id=$7) THEN COALESCE(closed_at, NOW()) END,
				updated_at=NOW()
			WHERE id=$1
		`, item.ID, item.Code, item.Title, item.Description, item.EntryDate, item.CaseTypeID, nullString(item.StatusID))
		if err != nil {
			return fmt.Errorf("update case: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}
		return replaceLinks(ctx, tx, item.ID, links)
	})
}

func (s *PostgresStore) DeleteCase(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM legal_cases WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return requireAffected(result)
}

func replaceLinks(ctx context.Context, tx *sql.Tx, caseID string, links CaseLinks) error {
	for _, stmt := range []string{
		`DELETE FROM case_individuals WHERE case_id=$1`,
		`DELETE FROM case_legal_entities WHERE case_id=$1`,
		`DELETE FROM case_tags WHERE case_id=$1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, caseID); err != nil {
			return fmt.Errorf("clear case links: %w", err)
		}
	}
	for _, p := range links.Participants {
		var query string
		switch p.Kind {
		case ParticipantIndividual:
			query = `INSERT INTO case_individuals (case_id, individual_id, role) VALUES ($1, $2, $3)
				ON CONFLICT (case_id, individual_id) DO UPDATE SET role=EXCLUDED.role`
		case ParticipantLegalEntity:
			query = `INSERT INTO case_legal_entities (case_id, legal_entity_id, role) VALUES ($1, $2, $3)
				ON CONFLICT (case_id, legal_entity_id) DO UPDATE SET role=EXCLUDED.role`
		default:
			return fmt.Errorf("unknown participant kind %q", p.Kind)
		}
		if _, err := tx.ExecContext(ctx, query, caseID, p.ID, p.Role); err != nil {
			return fmt.Errorf("link participant %s: %w", p.ID, err)
		}
	}
	for _, tagID := range links.TagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO case_tags (case_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, caseID, tagID); err != nil {
			return fmt.Errorf("tag case: %w", err)
		}
	}
	return nil
}
