package postgres

import (
	"context"
	"fmt"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/user"
)

// Compile-time interface check.
var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository over the "user" mirror table.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// Upsert inserts a user or overwrites name, password_hash and role on email conflict.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) (int64, error) {
	query := `
		INSERT INTO "user" (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			updated_at = NOW()
		RETURNING id
	`

	var id int64
	err := r.conn.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash, u.Role).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}

	return id, nil
}

// UpsertProfile is Upsert without touching password_hash.
func (r *UserRepository) UpsertProfile(ctx context.Context, p user.Profile) (int64, error) {
	query := `
		INSERT INTO "user" (name, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			updated_at = NOW()
		RETURNING id
	`

	var id int64
	err := r.conn.QueryRow(ctx, query, p.Name, p.Email, p.Role).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return 0, shared.ErrUserNotSynced
		}
		return 0, fmt.Errorf("failed to upsert user profile: %w", err)
	}

	return id, nil
}

// UpdateProfile updates name and role where email matches.
func (r *UserRepository) UpdateProfile(ctx context.Context, email, name, role string) (int64, error) {
	query := `
		UPDATE "user" SET
			name = $2,
			role = $3,
			updated_at = NOW()
		WHERE email = $1
	`

	result, err := r.conn.Exec(ctx, query, email, name, role)
	if err != nil {
		return 0, fmt.Errorf("failed to update user: %w", err)
	}

	return result.RowsAffected(), nil
}

// FindIDByEmail returns the mirror id of the user with the given email.
func (r *UserRepository) FindIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := r.conn.QueryRow(ctx, `SELECT id FROM "user" WHERE email = $1`, email).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return 0, shared.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to find user by email: %w", err)
	}

	return id, nil
}
