package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/cwllll/auth-service/internal/database"
)

// BunSessionRepository persists sessions in Postgres
type BunSessionRepository struct {
	db *bun.DB
}

func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

// Create stores a new session keyed by token hash
func (r *BunSessionRepository) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, meta ClientMeta) (*Session, error) {
	dbSession := &database.Session{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	_, err := r.db.NewInsert().
		Model(dbSession).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return mapDBSessionToModel(dbSession), nil
}

// GetByTokenHash retrieves an unexpired session. Expired rows are filtered
// in the query itself so an expired session is rejected at read time.
func (r *BunSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	dbSession := new(database.Session)
	err := r.db.NewSelect().
		Model(dbSession).
		Where("token_hash = ?", tokenHash).
		Where("expires_at > NOW()").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return mapDBSessionToModel(dbSession), nil
}

// Touch extends a session's expiry in place (sliding refresh)
func (r *BunSessionRepository) Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Session)(nil)).
		Set("expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("expires_at > NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteByTokenHash removes a session. Deleting an unknown or already
// expired session is a no-op, so sign-out stays idempotent.
func (r *BunSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.NewDelete().
		Model((*database.Session)(nil)).
		Where("token_hash = ?", tokenHash).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteAllForUser revokes every session belonging to a user
func (r *BunSessionRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*database.Session)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	return nil
}

// DeleteExpired removes expired sessions from the database
// Should be run periodically (e.g., via background sweep)
func (r *BunSessionRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*database.Session)(nil)).
		Where("expires_at < NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}

	return nil
}

// mapDBSessionToModel converts database model to domain model
func mapDBSessionToModel(dbs *database.Session) *Session {
	return &Session{
		ID:        dbs.ID,
		UserID:    dbs.UserID,
		TokenHash: dbs.TokenHash,
		ExpiresAt: dbs.ExpiresAt,
		IPAddress: dbs.IPAddress,
		UserAgent: dbs.UserAgent,
		CreatedAt: dbs.CreatedAt,
		UpdatedAt: dbs.UpdatedAt,
	}
}
