package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// FriendRepo: симметричные пары друзей, результат принятых заявок "friend".
type FriendRepo struct {
	db *sql.DB
}

func NewFriendRepo(db *sql.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

// AddFriends идемпотентна: повторное принятие не ломает уникальность пары.
func (r *FriendRepo) AddFriends(ctx context.Context, a, b int64) error {
	query := `
		INSERT INTO friendships (user_id, friend_id, created_at)
		VALUES ($1, $2, NOW()), ($2, $1, NOW())
		ON CONFLICT (user_id, friend_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, a, b); err != nil {
		return fmt.Errorf("postgres: add friends %d<->%d: %w", a, b, err)
	}
	return nil
}

func (r *FriendRepo) ListFriends(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT friend_id FROM friendships WHERE user_id = $1 ORDER BY friend_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list friends of %d: %w", userID, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan friend: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
