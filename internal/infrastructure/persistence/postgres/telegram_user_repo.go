package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
)

// Compile-time interface check.
var _ telegramuser.Repository = (*TelegramUserRepository)(nil)

const telegramUserColumns = `
	id, telegram_id, username, first_name, last_name,
	user_id, link_code, link_code_staged_at, created_at, updated_at
`

// TelegramUserRepository implements telegramuser.Repository.
type TelegramUserRepository struct {
	conn *Connection
}

// NewTelegramUserRepository creates a new TelegramUserRepository.
func NewTelegramUserRepository(conn *Connection) *TelegramUserRepository {
	return &TelegramUserRepository{conn: conn}
}

// FindByTelegramID returns the row for a Telegram identity.
func (r *TelegramUserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*telegramuser.TelegramUser, error) {
	query := `SELECT ` + telegramUserColumns + ` FROM telegram_user WHERE telegram_id = $1`

	tu, err := scanTelegramUser(r.conn.QueryRow(ctx, query, telegramID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrTelegramUserNotFound
		}
		return nil, fmt.Errorf("failed to get telegram user: %w", err)
	}

	return tu, nil
}

// GetOrCreate selects the row by telegram_id and inserts it with a NULL user_id when absent.
func (r *TelegramUserRepository) GetOrCreate(ctx context.Context, id telegramuser.Identity) (*telegramuser.TelegramUser, error) {
	existing, err := r.FindByTelegramID(ctx, id.TelegramID)
	if err == nil {
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	// DO NOTHING + RETURNING yields no row when a concurrent insert won the race.
	query := `
		INSERT INTO telegram_user (telegram_id, username, first_name, last_name, user_id)
		VALUES ($1, $2, $3, $4, NULL)
		ON CONFLICT (telegram_id) DO NOTHING
		RETURNING ` + telegramUserColumns

	tu, err := scanTelegramUser(r.conn.QueryRow(ctx, query,
		id.TelegramID,
		nullableString(id.Username),
		nullableString(id.FirstName),
		nullableString(id.LastName),
	))
	if err != nil {
		if IsNoRows(err) {
			return r.FindByTelegramID(ctx, id.TelegramID)
		}
		return nil, fmt.Errorf("failed to create telegram user: %w", err)
	}

	return tu, nil
}

// StageLinkCode overwrites link_code for the identity, creating the row if needed.
// Last write wins: there is no compare-and-swap on the staged value.
func (r *TelegramUserRepository) StageLinkCode(ctx context.Context, id telegramuser.Identity, code string, at time.Time) error {
	query := `
		INSERT INTO telegram_user (telegram_id, username, first_name, last_name, link_code, link_code_staged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO UPDATE SET
			link_code = EXCLUDED.link_code,
			link_code_staged_at = EXCLUDED.link_code_staged_at,
			updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query,
		id.TelegramID,
		nullableString(id.Username),
		nullableString(id.FirstName),
		nullableString(id.LastName),
		code,
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to stage link code: %w", err)
	}

	return nil
}

// ClearLinkCode nulls link_code only while it still equals expected.
func (r *TelegramUserRepository) ClearLinkCode(ctx context.Context, telegramID int64, expected string) (bool, error) {
	query := `
		UPDATE telegram_user SET
			link_code = NULL,
			link_code_staged_at = NULL,
			updated_at = NOW()
		WHERE telegram_id = $1 AND link_code = $2
	`

	result, err := r.conn.Exec(ctx, query, telegramID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to clear link code: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ExpireLinkCodes nulls every link_code staged before the cutoff.
func (r *TelegramUserRepository) ExpireLinkCodes(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE telegram_user SET
			link_code = NULL,
			link_code_staged_at = NULL,
			updated_at = NOW()
		WHERE link_code IS NOT NULL AND link_code_staged_at < $1
	`

	result, err := r.conn.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to expire link codes: %w", err)
	}

	return result.RowsAffected(), nil
}

// UpsertLinked writes the Telegram profile and the mirror user_id on telegram_id conflict.
func (r *TelegramUserRepository) UpsertLinked(ctx context.Context, id telegramuser.Identity, userID int64) error {
	query := `
		INSERT INTO telegram_user (telegram_id, username, first_name, last_name, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			user_id = EXCLUDED.user_id,
			updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query,
		id.TelegramID,
		nullableString(id.Username),
		nullableString(id.FirstName),
		nullableString(id.LastName),
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert linked telegram user: %w", err)
	}

	return nil
}

func scanTelegramUser(row pgx.Row) (*telegramuser.TelegramUser, error) {
	var tu telegramuser.TelegramUser
	err := row.Scan(
		&tu.ID,
		&tu.TelegramID,
		&tu.Username,
		&tu.FirstName,
		&tu.LastName,
		&tu.UserID,
		&tu.LinkCode,
		&tu.LinkCodeStagedAt,
		&tu.CreatedAt,
		&tu.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tu, nil
}
