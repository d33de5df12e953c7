package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

// Ventana de undo: solo el actor original, solo dentro de este plazo.
const UndoWindowSeconds = 15 * 60

// BankService aplica deltas masivos sobre el ledger con guard de fondos y un
// log de acciones deshacible. Sostiene el lock del Store durante toda la
// secuencia leer-mutar-persistir; el I/O del ledger (SQL o snapshot) corre
// adentro del lock, igual que cualquier otra mutación durable.
type BankService struct {
	store  *storage.Store
	ledger storage.Ledger
	now    Clock
	log    *zap.Logger

	allowNegative bool
	// true cuando el banco vive en el snapshot y hay que SaveLocked nosotros
	persistSnapshot bool
}

func NewBankService(store *storage.Store, ledger storage.Ledger, now Clock, log *zap.Logger, allowNegative bool) *BankService {
	_, snapshot := ledger.(*storage.SnapshotLedger)
	return &BankService{
		store:           store,
		ledger:          ledger,
		now:             now,
		log:             log,
		allowNegative:   allowNegative,
		persistSnapshot: snapshot,
	}
}

func newActionID() string { return timeID("A") }

// ComputeFlatDeltas: sign×amount para cada id.
func ComputeFlatDeltas(amount int64, ids []int64, sign int64) map[int64]int64 {
	out := make(map[int64]int64, len(ids))
	for _, id := range ids {
		out[id] = sign * amount
	}
	return out
}

// ComputeSplitDeltas divide total entre los ids; el resto (total mod n) va
// de a +1 a los primeros ids ordenados ascendente — desempate determinístico.
func ComputeSplitDeltas(total int64, ids []int64, sign int64) map[int64]int64 {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := int64(len(sorted))
	base := total / n
	rem := total % n
	out := make(map[int64]int64, len(sorted))
	for i, id := range sorted {
		share := base
		if int64(i) < rem {
			share++
		}
		out[id] = sign * share
	}
	return out
}

// Balance devuelve el balance actual del usuario.
func (s *BankService) Balance(ctx context.Context, guildID, userID int64) (int64, error) {
	s.store.Lock()
	defer s.store.Unlock()
	return s.ledger.GetBalance(ctx, guildID, userID)
}

// canApply verifica que ningún target quede en negativo (salvo que la config
// lo permita). Recorre en orden ascendente para que el primer ofensor sea
// siempre el mismo. Caller con lock.
func (s *BankService) canApply(ctx context.Context, guildID int64, deltas map[int64]int64) error {
	if s.allowNegative {
		return nil
	}
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		bal, err := s.ledger.GetBalance(ctx, guildID, id)
		if err != nil {
			return err
		}
		if bal+deltas[id] < 0 {
			return fmt.Errorf("%w: <@%d> quedaría en %s", domain.ErrInsufficientFunds, id, FormatSilver(bal+deltas[id]))
		}
	}
	return nil
}

// applyDeltas lee y escribe cada balance. Caller con lock.
func (s *BankService) applyDeltas(ctx context.Context, guildID int64, deltas map[int64]int64) error {
	for id, d := range deltas {
		bal, err := s.ledger.GetBalance(ctx, guildID, id)
		if err != nil {
			return err
		}
		if err := s.ledger.SetBalance(ctx, guildID, id, bal+d); err != nil {
			return err
		}
	}
	return nil
}

// MassChange aplica un add/remove (plano o split) sobre un set de targets y
// registra la acción para el undo.
func (s *BankService) MassChange(ctx context.Context, guildID, actorID int64, actionType domain.BankActionType, amount int64, targets []int64, note string) (*domain.BankAction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	targets = dedupeIDs(targets)
	if len(targets) == 0 {
		return nil, domain.ErrNoTargets
	}

	var deltas map[int64]int64
	switch actionType {
	case domain.BankAdd:
		deltas = ComputeFlatDeltas(amount, targets, +1)
	case domain.BankRemove:
		deltas = ComputeFlatDeltas(amount, targets, -1)
	case domain.BankAddSplit:
		deltas = ComputeSplitDeltas(amount, targets, +1)
	case domain.BankRemoveSplit:
		deltas = ComputeSplitDeltas(amount, targets, -1)
	default:
		return nil, domain.ErrInvalidAmount
	}

	s.store.Lock()
	defer s.store.Unlock()

	if err := s.canApply(ctx, guildID, deltas); err != nil {
		return nil, err
	}
	if err := s.applyDeltas(ctx, guildID, deltas); err != nil {
		return nil, err
	}
	action := &domain.BankAction{
		ActionID:   newActionID(),
		GuildID:    guildID,
		ActorID:    actorID,
		CreatedAt:  s.now(),
		ActionType: actionType,
		Deltas:     deltas,
		Note:       note,
	}
	if err := s.ledger.AppendAction(ctx, action); err != nil {
		return nil, err
	}
	if s.persistSnapshot {
		if err := s.store.SaveLocked(); err != nil {
			return nil, err
		}
	}
	s.log.Info("acción de banco aplicada",
		zap.String("action_id", action.ActionID),
		zap.Int64("guild_id", guildID),
		zap.Int64("actor_id", actorID),
		zap.String("type", string(actionType)),
		zap.Int("targets", len(deltas)))
	return action, nil
}

// ApplyPayouts acredita los pagos del loot split como una sola acción
// deshacible (todo positivo, tipo add_split).
func (s *BankService) ApplyPayouts(ctx context.Context, guildID, actorID int64, payouts map[int64]int64, note string) (*domain.BankAction, error) {
	deltas := make(map[int64]int64, len(payouts))
	for id, amt := range payouts {
		if amt > 0 {
			deltas[id] = amt
		}
	}
	if len(deltas) == 0 {
		return nil, domain.ErrNoTargets
	}

	s.store.Lock()
	defer s.store.Unlock()

	if err := s.applyDeltas(ctx, guildID, deltas); err != nil {
		return nil, err
	}
	action := &domain.BankAction{
		ActionID:   newActionID(),
		GuildID:    guildID,
		ActorID:    actorID,
		CreatedAt:  s.now(),
		ActionType: domain.BankAddSplit,
		Deltas:     deltas,
		Note:       note,
	}
	if err := s.ledger.AppendAction(ctx, action); err != nil {
		return nil, err
	}
	if s.persistSnapshot {
		if err := s.store.SaveLocked(); err != nil {
			return nil, err
		}
	}
	return action, nil
}

// Undo revierte la última acción no deshecha del actor, dentro de la ventana,
// negando cada delta. La acción queda marcada undone (estado terminal), nunca
// se borra.
func (s *BankService) Undo(ctx context.Context, guildID, actorID int64) (*domain.BankAction, error) {
	s.store.Lock()
	defer s.store.Unlock()

	action, err := s.ledger.LastActionForActor(ctx, guildID, actorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNoUndoableAction
		}
		return nil, err
	}
	if action.Undone {
		return nil, domain.ErrAlreadyUndone
	}
	now := s.now()
	if now-action.CreatedAt > UndoWindowSeconds {
		return nil, domain.ErrUndoWindowExpired
	}

	reversed := make(map[int64]int64, len(action.Deltas))
	for id, d := range action.Deltas {
		reversed[id] = -d
	}
	if err := s.canApply(ctx, guildID, reversed); err != nil {
		return nil, err
	}
	if err := s.applyDeltas(ctx, guildID, reversed); err != nil {
		return nil, err
	}
	if err := s.ledger.MarkActionUndone(ctx, action.ActionID, now); err != nil {
		return nil, err
	}
	if s.persistSnapshot {
		if err := s.store.SaveLocked(); err != nil {
			return nil, err
		}
	}
	s.log.Info("acción de banco deshecha",
		zap.String("action_id", action.ActionID),
		zap.Int64("actor_id", actorID))
	return action, nil
}

// Pay: transferencia entre pares. Siempre chequea fondos del emisor, aunque
// la config permita balances negativos; no queda en el log de undo.
func (s *BankService) Pay(ctx context.Context, guildID, fromID, toID, amount int64, toIsBot bool) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if fromID == toID {
		return domain.ErrSelfPayment
	}
	if toIsBot {
		return domain.ErrBotTarget
	}

	s.store.Lock()
	defer s.store.Unlock()

	fromBal, err := s.ledger.GetBalance(ctx, guildID, fromID)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: tenés %s", domain.ErrInsufficientFunds, FormatSilver(fromBal))
	}
	toBal, err := s.ledger.GetBalance(ctx, guildID, toID)
	if err != nil {
		return err
	}
	if err := s.ledger.SetBalance(ctx, guildID, fromID, fromBal-amount); err != nil {
		return err
	}
	if err := s.ledger.SetBalance(ctx, guildID, toID, toBal+amount); err != nil {
		return err
	}
	if s.persistSnapshot {
		if err := s.store.SaveLocked(); err != nil {
			return err
		}
	}
	s.log.Info("pago entre pares",
		zap.Int64("guild_id", guildID),
		zap.Int64("from", fromID),
		zap.Int64("to", toID),
		zap.Int64("amount", amount))
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FormatSilver: separador de miles para montos en mensajes ("1.250.000").
func FormatSilver(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ".")
	if neg {
		out = "-" + out
	}
	return out
}
