package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/cwllll/auth-service/internal/database"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrDuplicateEmail   = errors.New("email already exists")
	ErrAccountNotFound  = errors.New("linked account not found")
	ErrDuplicateAccount = errors.New("account already linked")
)

// Repository handles user and linked-account persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeEmail lower-cases and trims an email so lookups are
// case-insensitive. All repository methods expect normalized input.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new user. passwordHash may be nil for social-only users.
func (r *Repository) Create(ctx context.Context, email, name string, passwordHash *string) (*User, error) {
	dbUser := &database.User{
		Email:         NormalizeEmail(email),
		Name:          name,
		PasswordHash:  passwordHash,
		EmailVerified: false,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", NormalizeEmail(email)).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// MarkEmailVerified flips email_verified to true. The flip is one-way;
// calling it for an already-verified user is a no-op, not an error.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verified = ?", true).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark email as verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// LinkAccount binds a federated identity to a user. The
// (provider, provider_account_id) pair is unique across all users.
func (r *Repository) LinkAccount(ctx context.Context, userID uuid.UUID, provider, providerAccountID string, tokens AccountTokens) (*Account, error) {
	dbAccount := &database.Account{
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		TokenExpiresAt:    tokens.ExpiresAt,
	}

	_, err := r.db.NewInsert().
		Model(dbAccount).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("failed to link account: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// GetAccount retrieves a linked account by its provider identity
func (r *Repository) GetAccount(ctx context.Context, provider, providerAccountID string) (*Account, error) {
	dbAccount := new(database.Account)
	err := r.db.NewSelect().
		Model(dbAccount).
		Where("provider = ?", provider).
		Where("provider_account_id = ?", providerAccountID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return mapDBAccountToModel(dbAccount), nil
}

// UpdateAccountTokens refreshes the stored provider tokens after a sign-in
func (r *Repository) UpdateAccountTokens(ctx context.Context, accountID uuid.UUID, tokens AccountTokens) error {
	_, err := r.db.NewUpdate().
		Model((*database.Account)(nil)).
		Set("access_token = ?", tokens.AccessToken).
		Set("refresh_token = ?", tokens.RefreshToken).
		Set("token_expires_at = ?", tokens.ExpiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", accountID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:            dbu.ID,
		Email:         dbu.Email,
		Name:          dbu.Name,
		PasswordHash:  dbu.PasswordHash,
		EmailVerified: dbu.EmailVerified,
		CreatedAt:     dbu.CreatedAt,
		UpdatedAt:     dbu.UpdatedAt,
	}
}

// mapDBAccountToModel converts database model to domain model
func mapDBAccountToModel(dba *database.Account) *Account {
	return &Account{
		ID:                dba.ID,
		UserID:            dba.UserID,
		Provider:          dba.Provider,
		ProviderAccountID: dba.ProviderAccountID,
		AccessToken:       dba.AccessToken,
		RefreshToken:      dba.RefreshToken,
		TokenExpiresAt:    dba.TokenExpiresAt,
		CreatedAt:         dba.CreatedAt,
		UpdatedAt:         dba.UpdatedAt,
	}
}
