package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xela07ax/reqflow/internal/domain"
)

var ErrIdentityNotFound = errors.New("identity not found")

// IdentityRepo: профили пользователей бота (bot_users). Наполняется транспортом
// по мере того, как люди пишут боту; читается движком для Resolution.Source.
type IdentityRepo struct {
	db *sql.DB
}

func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

func (r *IdentityRepo) GetIdentity(ctx context.Context, userID int64) (*domain.Identity, error) {
	query := `SELECT id, first_name, last_name, username FROM bot_users WHERE id = $1`

	var (
		ident              domain.Identity
		lastName, username sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&ident.ID, &ident.FirstName, &lastName, &username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrIdentityNotFound)
		}
		return nil, fmt.Errorf("postgres: get identity %d: %w", userID, err)
	}
	ident.LastName = lastName.String
	ident.Username = username.String
	return &ident, nil
}

// Upsert сохраняет свежий профиль; имя в мессенджере может меняться.
func (r *IdentityRepo) Upsert(ctx context.Context, ident domain.Identity) error {
	query := `
		INSERT INTO bot_users (id, first_name, last_name, username, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW())
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			username   = EXCLUDED.username,
			updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, ident.ID, ident.FirstName, ident.LastName, ident.Username); err != nil {
		return fmt.Errorf("postgres: upsert identity %d: %w", ident.ID, err)
	}
	return nil
}
