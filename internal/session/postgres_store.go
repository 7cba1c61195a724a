package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"casedesk/api/internal/store"
)

// PostgresStore keeps sessions in the main database when Redis is not configured.
type PostgresStore struct {
	db *store.PostgresStore
}

func NewPostgresStore(db *store.PostgresStore) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return s.db.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (s *PostgresStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.db.ConsumeRefreshSession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.db.RevokeRefreshSession(ctx, tokenHash)
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	return s.db.RevokeAccessToken(ctx, jti, expiresAt)
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.db.IsAccessTokenRevoked(ctx, jti)
}
