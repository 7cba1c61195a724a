package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const deadlineSelect = `
	SELECT d.id, d.case_id, c.code, d.title, d.description, d.due_at, d.completed_at, d.reminded_at,
		d.created_by, d.created_at, d.updated_at
	FROM deadlines d
	JOIN legal_cases c ON c.id = d.case_id`

func scanDeadline(row interface{ Scan(...any) error }, extra ...any) (Deadline, error) {
	var item Deadline
	var completedAt, remindedAt sql.NullTime
	dest := []any{&item.ID, &item.CaseID, &item.CaseCode, &item.Title, &item.Description, &item.DueAt,
		&completedAt, &remindedAt, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Deadline{}, err
	}
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}
	if remindedAt.Valid {
		item.RemindedAt = &remindedAt.Time
	}
	return item, nil
}

func (s *PostgresStore) queryDeadlines(ctx context.Context, query string, args ...any) ([]Deadline, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	defer rows.Close()

	items := make([]Deadline, 0)
	for rows.Next() {
		item, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deadline: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deadlines: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDeadlinesByCase(ctx context.Context, caseID string) ([]Deadline, error) {
	return s.queryDeadlines(ctx, deadlineSelect+`
		WHERE d.case_id = $1
		ORDER BY d.completed_at IS NOT NULL, d.due_at
	`, caseID)
}

// ListUpcomingDeadlines returns open deadlines due in [from, to).
func (s *PostgresStore) ListUpcomingDeadlines(ctx context.Context, from, to time.Time) ([]Deadline, error) {
	return s.queryDeadlines(ctx, deadlineSelect+`
		WHERE d.completed_at IS NULL AND d.due_at >= $1 AND d.due_at < $2
		ORDER BY d.due_at
	`, from, to)
}

func (s *PostgresStore) ListOverdueDeadlines(ctx context.Context, now time.Time) ([]Deadline, error) {
	return s.queryDeadlines(ctx, deadlineSelect+`
		WHERE d.completed_at IS NULL AND d.due_at < $1
		ORDER BY d.due_at
	`, now)
}

func (s *PostgresStore) GetDeadline(ctx context.Context, id string) (Deadline, error) {
	return scanDeadline(s.db.QueryRowContext(ctx, deadlineSelect+` WHERE d.id=$1`, id))
}

func (s *PostgresStore) InsertDeadline(ctx context.Context, item Deadline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deadlines (id, case_id, title, description, due_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.CaseID, item.Title, item.Description, item.DueAt, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert deadline: %w", err)
	}
	return nil
}

// UpdateDeadline resets reminded_at when the due time moves so the new date
// gets its own reminder.
func (s *PostgresStore) UpdateDeadline(ctx context.Context, item Deadline) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deadlines
		SET title=$2, description=$3,
			reminded_at = CASE WHEN due_at = $4 THEN reminded_at END,
			due_at=$4, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Description, item.DueAt)
	if err != nil {
		return fmt.Errorf("update deadline: %w", err)
	}
	return requireAffected(result)
}

// CompleteDeadline marks a deadline done, or reopens it when done is false.
func (s *PostgresStore) CompleteDeadline(ctx context.Context, id string, done bool) error {
	query := `UPDATE deadlines SET completed_at=COALESCE(completed_at, NOW()), updated_at=NOW() WHERE id=$1`
	if !done {
		query = `UPDATE deadlines SET completed_at=NULL, updated_at=NOW() WHERE id=$1`
	}
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("complete deadline: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) DeleteDeadline(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deadlines WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete deadline: %w", err)
	}
	return requireAffected(result)
}

// DeadlinesDueForReminder returns open, not yet reminded deadlines due before
// now+window whose case has an owner with an email address.
func (s *PostgresStore) DeadlinesDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]DeadlineReminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.case_id, c.code, d.title, d.description, d.due_at, d.completed_at, d.reminded_at,
			d.created_by, d.created_at, d.updated_at, u.display_name, u.email
		FROM deadlines d
		JOIN legal_cases c ON c.id = d.case_id
		JOIN users u ON u.id = c.owner_id
		WHERE d.completed_at IS NULL
			AND d.reminded_at IS NULL
			AND d.due_at >= $1
			AND d.due_at < $2
			AND u.email <> ''
		ORDER BY d.due_at
	`, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	items := make([]DeadlineReminder, 0)
	for rows.Next() {
		var item DeadlineReminder
		deadline, err := scanDeadline(rows, &item.OwnerName, &item.OwnerEmail)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		item.Deadline = deadline
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkDeadlineReminded(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE deadlines SET reminded_at=$2 WHERE id=$1`, id, at)
	if err != nil {
		return fmt.Errorf("mark deadline reminded: %w", err)
	}
	return nil
}
