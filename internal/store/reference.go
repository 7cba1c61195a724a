package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListCaseTypes(ctx context.Context) ([]CaseType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM case_types
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list case types: %w", err)
	}
	defer rows.Close()

	items := make([]CaseType, 0)
	for rows.Next() {
		var item CaseType
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan case type: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case types: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCaseType(ctx context.Context, id string) (CaseType, error) {
	var item CaseType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM case_types WHERE id=$1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return CaseType{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertCaseType(ctx context.Context, item CaseType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_types (id, name, description) VALUES ($1, $2, $3)
	`, item.ID, item.Name, item.Description)
	if err != nil {
		return fmt.Errorf("insert case type: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCaseType(ctx context.Context, item CaseType) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE case_types SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, item.ID, item.Name, item.Description)
	if err != nil {
		return fmt.Errorf("update case type: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteCaseType(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM case_types WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete case type: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ListStatuses(ctx context.Context) ([]Status, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, color, is_closed, sort_order, created_at, updated_at
		FROM statuses
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	items := make([]Status, 0)
	for rows.Next() {
		var item Status
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.IsClosed, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetStatus(ctx context.Context, id string) (Status, error) {
	var item Status
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, is_closed, sort_order, created_at, updated_at
		FROM statuses WHERE id=$1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.IsClosed, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Status{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertStatus(ctx context.Context, item Status) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statuses (id, name, description, color, is_closed, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.Name, item.Description, item.Color, item.IsClosed, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, item Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE statuses
		SET name=$2, description=$3, color=$4, is_closed=$5, sort_order=$6, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Name, item.Description, item.Color, item.IsClosed, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteStatus(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM statuses WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, color, created_at, updated_at
		FROM tags
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *PostgresStore) GetTag(ctx context.Context, id string) (Tag, error) {
	var item Tag
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, created_at, updated_at FROM tags WHERE id=$1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Tag{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertTag(ctx context.Context, item Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, description, color) VALUES ($1, $2, $3, $4)
	`, item.ID, item.Name, item.Description, item.Color)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTag(ctx context.Context, item Tag) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tags SET name=$2, description=$3, color=$4, updated_at=NOW() WHERE id=$1
	`, item.ID, item.Name, item.Description, item.Color)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return requireAffected(result)
}

type rowScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func scanTags(rows rowScanner) ([]Tag, error) {
	items := make([]Tag, 0)
	for rows.Next() {
		var item Tag
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}
