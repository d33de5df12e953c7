package storage

import (
	"context"
	"time"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

func nowUnix() int64 { return time.Now().Unix() }

// SnapshotLedger guarda balances y acciones dentro del snapshot del Store
// (modo sin base de datos). El caller ya sostiene el lock del Store y
// persiste con SaveLocked al final de la operación, igual que el resto de
// las mutaciones.
type SnapshotLedger struct {
	store *Store
}

func NewSnapshotLedger(s *Store) *SnapshotLedger { return &SnapshotLedger{store: s} }

func (l *SnapshotLedger) Close() error { return nil }

func (l *SnapshotLedger) GetBalance(_ context.Context, guildID, userID int64) (int64, error) {
	return l.store.StateLocked().BankBalances[guildID][userID], nil
}

func (l *SnapshotLedger) SetBalance(_ context.Context, guildID, userID, balance int64) error {
	st := l.store.StateLocked()
	if st.BankBalances[guildID] == nil {
		st.BankBalances[guildID] = map[int64]int64{}
	}
	st.BankBalances[guildID][userID] = balance
	return nil
}

func (l *SnapshotLedger) AppendAction(_ context.Context, a *domain.BankAction) error {
	st := l.store.StateLocked()
	actions := append(st.BankActions[a.GuildID], a)
	if limit := l.store.actionLogLimit; limit > 0 && len(actions) > limit {
		actions = actions[len(actions)-limit:]
	}
	st.BankActions[a.GuildID] = actions
	return nil
}

func (l *SnapshotLedger) LastActionForActor(_ context.Context, guildID, actorID int64) (*domain.BankAction, error) {
	actions := l.store.StateLocked().BankActions[guildID]
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].ActorID == actorID && !actions[i].Undone {
			return actions[i], nil
		}
	}
	return nil, ErrNotFound
}

func (l *SnapshotLedger) MarkActionUndone(_ context.Context, actionID string, undoneAt int64) error {
	for _, actions := range l.store.StateLocked().BankActions {
		for _, a := range actions {
			if a.ActionID == actionID {
				a.Undone = true
				a.UndoneAt = undoneAt
				return nil
			}
		}
	}
	return ErrNotFound
}
