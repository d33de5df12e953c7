package storage

import (
	"context"
	"strings"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// Ledger es el contrato del banco: balances por (guild, user) y un log de
// acciones firmado con retención acotada. Las implementaciones asumen que
// el caller sostiene el lock del Store durante toda la secuencia
// leer-mutar-persistir.
type Ledger interface {
	GetBalance(ctx context.Context, guildID, userID int64) (int64, error)
	SetBalance(ctx context.Context, guildID, userID, balance int64) error
	AppendAction(ctx context.Context, a *domain.BankAction) error
	LastActionForActor(ctx context.Context, guildID, actorID int64) (*domain.BankAction, error)
	MarkActionUndone(ctx context.Context, actionID string, undoneAt int64) error
	Close() error
}

// OpenLedger elige la implementación por configuración: postgres si hay
// DATABASE_URL, sqlite si hay path local, y si no el banco vive dentro del
// snapshot (patrón strategy, nada de branching en los call sites).
func OpenLedger(ctx context.Context, store *Store, databaseURL, sqlitePath string, actionLogLimit int) (Ledger, error) {
	if strings.TrimSpace(databaseURL) != "" {
		db, err := OpenPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return NewSQLLedger(db, dialectPostgres, actionLogLimit), nil
	}
	if strings.TrimSpace(sqlitePath) != "" {
		db, err := OpenSQLite(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLLedger(db, dialectSQLite, actionLogLimit), nil
	}
	return NewSnapshotLedger(store), nil
}
