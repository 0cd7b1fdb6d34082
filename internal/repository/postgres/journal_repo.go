package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xela07ax/reqflow/internal/audit"
	"github.com/xela07ax/reqflow/internal/domain"
)

// journalColumns: порядок колонок request_journal, общий для вставки и чтения.
const journalColumns = "id, code, tag, outcome, requester_id, source_id, resolver_id, peer_id, created_time, resolved_at, error"

// JournalRepo: хранилище журнала решений (audit.StorageInterface).
type JournalRepo struct {
	db *sql.DB
}

func NewJournalRepo(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	const numFields = 11
	var placeholders strings.Builder
	vals := make([]any, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		if i > 0 {
			placeholders.WriteString(", ")
		}
		p := i * numFields
		placeholders.WriteString("(")
		for j := 1; j <= numFields; j++ {
			if j > 1 {
				placeholders.WriteString(", ")
			}
			fmt.Fprintf(&placeholders, "$%d", p+j)
		}
		placeholders.WriteString(")")

		var errText sql.NullString
		if e.Error != "" {
			errText = sql.NullString{String: e.Error, Valid: true}
		}
		vals = append(vals,
			e.ID, e.Code, e.Tag, string(e.Outcome),
			e.RequesterID, e.SourceID, e.ResolverID, e.PeerID,
			e.CreatedTime, e.ResolvedAt, errText,
		)
	}

	query := "INSERT INTO request_journal (" + journalColumns + ") VALUES " + placeholders.String()
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: insert journal batch of %d: %w", len(events), err)
	}
	return nil
}

// ListRecent: последние решения, новые первыми.
func (r *JournalRepo) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := "SELECT " + journalColumns + " FROM request_journal ORDER BY resolved_at DESC LIMIT $1"
	return r.query(ctx, query, limit)
}

// ListByCode: история кода. Коды переиспользуются, поэтому записей может быть несколько.
func (r *JournalRepo) ListByCode(ctx context.Context, code string, limit int) ([]audit.Event, error) {
	query := "SELECT " + journalColumns + " FROM request_journal WHERE code = $1 ORDER BY resolved_at DESC LIMIT $2"
	return r.query(ctx, query, code, limit)
}

func (r *JournalRepo) query(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query journal: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e       audit.Event
			outcome string
			errText sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.Code, &e.Tag, &outcome,
			&e.RequesterID, &e.SourceID, &e.ResolverID, &e.PeerID,
			&e.CreatedTime, &e.ResolvedAt, &errText,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan journal: %w", err)
		}
		e.Outcome = domain.Outcome(outcome)
		e.Error = errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}
