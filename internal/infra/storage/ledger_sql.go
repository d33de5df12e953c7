package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	pq "github.com/lib/pq"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// SQLLedger implementa Ledger sobre database/sql; el mismo repo sirve para
// postgres (pgx) y sqlite (fallback local), el dialecto solo cambia
// placeholders y el prune masivo.
type SQLLedger struct {
	db      *sql.DB
	dialect dialect
	limit   int
}

func NewSQLLedger(db *sql.DB, d dialect, actionLogLimit int) *SQLLedger {
	return &SQLLedger{db: db, dialect: d, limit: actionLogLimit}
}

func (l *SQLLedger) Close() error { return l.db.Close() }

// q reescribe los ? a $N para postgres; sqlite se queda con ?.
func (l *SQLLedger) q(query string) string {
	if l.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (l *SQLLedger) GetBalance(ctx context.Context, guildID, userID int64) (int64, error) {
	var bal int64
	err := l.db.QueryRowContext(ctx, l.q(`
SELECT balance FROM bank_balances WHERE guild_id = ? AND user_id = ?
`), guildID, userID).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

func (l *SQLLedger) SetBalance(ctx context.Context, guildID, userID, balance int64) error {
	_, err := l.db.ExecContext(ctx, l.q(`
INSERT INTO bank_balances (guild_id, user_id, balance, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (guild_id, user_id) DO UPDATE SET
  balance    = EXCLUDED.balance,
  updated_at = EXCLUDED.updated_at
`), guildID, userID, balance, nowUnix())
	return err
}

func (l *SQLLedger) AppendAction(ctx context.Context, a *domain.BankAction) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, l.q(`
INSERT INTO bank_actions (action_id, guild_id, actor_id, created_at, action_type, note, undone, undone_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
`), a.ActionID, a.GuildID, a.ActorID, a.CreatedAt, string(a.ActionType), a.Note, a.Undone); err != nil {
		return err
	}
	for uid, delta := range a.Deltas {
		if _, err := tx.ExecContext(ctx, l.q(`
INSERT INTO bank_action_deltas (action_id, user_id, delta) VALUES (?, ?, ?)
`), a.ActionID, uid, delta); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return l.pruneActions(ctx, a.GuildID)
}

func (l *SQLLedger) LastActionForActor(ctx context.Context, guildID, actorID int64) (*domain.BankAction, error) {
	row := l.db.QueryRowContext(ctx, l.q(`
SELECT action_id, guild_id, actor_id, created_at, action_type, note, undone, undone_at
  FROM bank_actions
 WHERE guild_id = ? AND actor_id = ? AND undone = FALSE
 ORDER BY created_at DESC
 LIMIT 1
`), guildID, actorID)

	var a domain.BankAction
	var actionType string
	var undoneAt sql.NullInt64
	err := row.Scan(&a.ActionID, &a.GuildID, &a.ActorID, &a.CreatedAt, &actionType, &a.Note, &a.Undone, &undoneAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ActionType = domain.BankActionType(actionType)
	if undoneAt.Valid {
		a.UndoneAt = undoneAt.Int64
	}

	a.Deltas = map[int64]int64{}
	rows, err := l.db.QueryContext(ctx, l.q(`
SELECT user_id, delta FROM bank_action_deltas WHERE action_id = ?
`), a.ActionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid, delta int64
		if err := rows.Scan(&uid, &delta); err != nil {
			return nil, err
		}
		a.Deltas[uid] = delta
	}
	return &a, rows.Err()
}

func (l *SQLLedger) MarkActionUndone(ctx context.Context, actionID string, undoneAt int64) error {
	_, err := l.db.ExecContext(ctx, l.q(`
UPDATE bank_actions SET undone = TRUE, undone_at = ? WHERE action_id = ?
`), undoneAt, actionID)
	return err
}

// pruneActions descarta las acciones más viejas por encima del límite por
// guild (las deltas caen por cascade, borramos explícito igual).
func (l *SQLLedger) pruneActions(ctx context.Context, guildID int64) error {
	if l.limit <= 0 {
		return nil
	}

	var rows *sql.Rows
	var err error
	if l.dialect == dialectPostgres {
		rows, err = l.db.QueryContext(ctx, `
SELECT action_id FROM bank_actions
 WHERE guild_id = $1
 ORDER BY created_at DESC
 OFFSET $2
`, guildID, l.limit)
	} else {
		rows, err = l.db.QueryContext(ctx, `
SELECT action_id FROM bank_actions
 WHERE guild_id = ?
 ORDER BY created_at DESC
 LIMIT -1 OFFSET ?
`, guildID, l.limit)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	if l.dialect == dialectPostgres {
		if _, err := l.db.ExecContext(ctx, `DELETE FROM bank_action_deltas WHERE action_id = ANY($1)`, pq.Array(stale)); err != nil {
			return err
		}
		_, err := l.db.ExecContext(ctx, `DELETE FROM bank_actions WHERE action_id = ANY($1)`, pq.Array(stale))
		return err
	}

	for _, id := range stale {
		if _, err := l.db.ExecContext(ctx, `DELETE FROM bank_action_deltas WHERE action_id = ?`, id); err != nil {
			return err
		}
		if _, err := l.db.ExecContext(ctx, `DELETE FROM bank_actions WHERE action_id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}
