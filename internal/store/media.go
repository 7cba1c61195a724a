package store

import (
	"context"
	"database/sql"
	"fmt"
)

const mediaColumns = `id, case_id, file_name, content_type, size_bytes, bucket, object_key, uploaded_by, created_at`

func scanMedia(row interface{ Scan(...any) error }) (Media, error) {
	var item Media
	err := row.Scan(&item.ID, &item.CaseID, &item.FileName, &item.ContentType, &item.SizeBytes,
		&item.Bucket, &item.ObjectKey, &item.UploadedBy, &item.CreatedAt)
	if err != nil {
		return Media{}, err
	}
	item.Tags = make([]Tag, 0)
	return item, nil
}

func (s *PostgresStore) ListMediaByCase(ctx context.Context, caseID string) ([]Media, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media WHERE case_id=$1 ORDER BY created_at DESC, id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := make([]Media, 0)
	index := make(map[string]int)
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT mt.media_id, t.id, t.name, t.description, t.color, t.created_at, t.updated_at
		FROM media_tags mt
		JOIN media m ON m.id = mt.media_id
		JOIN tags t ON t.id = mt.tag_id
		WHERE m.case_id = $1
		ORDER BY t.name
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list media tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var mediaID string
		var tag Tag
		if err := tagRows.Scan(&mediaID, &tag.ID, &tag.Name, &tag.Description, &tag.Color, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan media tag: %w", err)
		}
		if i, ok := index[mediaID]; ok {
			items[i].Tags = append(items[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media tags: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetMedia(ctx context.Context, id string) (Media, error) {
	item, err := scanMedia(s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id=$1`, id))
	if err != nil {
		return Media{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.color, t.created_at, t.updated_at
		FROM media_tags mt
		JOIN tags t ON t.id = mt.tag_id
		WHERE mt.media_id = $1
		ORDER BY t.name
	`, id)
	if err != nil {
		return Media{}, fmt.Errorf("list media tags: %w", err)
	}
	defer rows.Close()
	item.Tags, err = scanTags(rows)
	if err != nil {
		return Media{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertMedia(ctx context.Context, item Media) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media (id, case_id, file_name, content_type, size_bytes, bucket, object_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.CaseID, item.FileName, item.ContentType, item.SizeBytes, item.Bucket, item.ObjectKey, item.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMedia(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return requireAffected(result)
}

// SetMediaTags replaces the tag set of an attachment.
func (s *PostgresStore) SetMediaTags(ctx context.Context, mediaID string, tagIDs []string) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM media WHERE id=$1)`, mediaID).Scan(&exists); err != nil {
			return fmt.Errorf("check media: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM media_tags WHERE media_id=$1`, mediaID); err != nil {
			return fmt.Errorf("clear media tags: %w", err)
		}
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO media_tags (media_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
			`, mediaID, tagID); err != nil {
				return fmt.Errorf("tag media: %w", err)
			}
		}
		return nil
	})
}
