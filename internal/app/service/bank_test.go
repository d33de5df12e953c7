package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

const testGuild int64 = 42

func newBankFixture(t *testing.T, now *int64, allowNegative bool) *BankService {
	t.Helper()
	store, err := storage.OpenStore(filepath.Join(t.TempDir(), "state.json"), 10, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ledger := storage.NewSnapshotLedger(store)
	clock := func() int64 { return *now }
	return NewBankService(store, ledger, clock, zap.NewNop(), allowNegative)
}

func TestComputeSplitDeltasRemainderToLowestIDs(t *testing.T) {
	got := ComputeSplitDeltas(10, []int64{3, 1, 2}, +1)
	want := map[int64]int64{1: 4, 2: 3, 3: 3}
	for id, w := range want {
		if got[id] != w {
			t.Fatalf("deltas[%d] = %d, want %d (got %v)", id, got[id], w, got)
		}
	}
}

func TestComputeFlatDeltasSign(t *testing.T) {
	got := ComputeFlatDeltas(500, []int64{1, 2}, -1)
	if got[1] != -500 || got[2] != -500 {
		t.Fatalf("deltas = %v, want -500 para ambos", got)
	}
}

func TestMassChangeAddAndBalances(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, true)
	ctx := context.Background()

	action, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 1000, []int64{1, 2, 2}, "farm")
	if err != nil {
		t.Fatalf("mass change: %v", err)
	}
	if len(action.Deltas) != 2 {
		t.Fatalf("targets duplicados no se dedupearon: %v", action.Deltas)
	}
	for _, uid := range []int64{1, 2} {
		bal, err := bank.Balance(ctx, testGuild, uid)
		if err != nil || bal != 1000 {
			t.Fatalf("balance de %d = %d (%v), want 1000", uid, bal, err)
		}
	}
}

func TestMassChangeValidation(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, true)
	ctx := context.Background()

	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 0, []int64{1}, ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("monto cero: err = %v", err)
	}
	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 10, nil, ""); !errors.Is(err, domain.ErrNoTargets) {
		t.Fatalf("sin targets: err = %v", err)
	}
}

func TestMassChangeInsufficientFundsGuard(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, false)
	ctx := context.Background()

	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 100, []int64{1}, ""); err != nil {
		t.Fatal(err)
	}
	_, err := bank.MassChange(ctx, testGuild, 99, domain.BankRemove, 500, []int64{1}, "")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	// el guard corre antes de mutar nada
	bal, _ := bank.Balance(ctx, testGuild, 1)
	if bal != 100 {
		t.Fatalf("balance cambió a %d pese al guard", bal)
	}
}

func TestUndoReversesAndIsTerminal(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, true)
	ctx := context.Background()

	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAddSplit, 10, []int64{1, 2, 3}, ""); err != nil {
		t.Fatal(err)
	}
	now = 1500 // dentro de la ventana
	action, err := bank.Undo(ctx, testGuild, 99)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !actionUndone(t, bank, action.ActionID) {
		t.Fatal("la acción no quedó marcada undone")
	}
	for _, uid := range []int64{1, 2, 3} {
		bal, _ := bank.Balance(ctx, testGuild, uid)
		if bal != 0 {
			t.Fatalf("balance de %d = %d tras undo, want 0", uid, bal)
		}
	}
	// segundo undo: ya no hay acción deshacible, nunca doble reversa
	if _, err := bank.Undo(ctx, testGuild, 99); !errors.Is(err, domain.ErrNoUndoableAction) {
		t.Fatalf("segundo undo: err = %v, want ErrNoUndoableAction", err)
	}
	bal, _ := bank.Balance(ctx, testGuild, 1)
	if bal != 0 {
		t.Fatalf("doble reversa detectada: balance = %d", bal)
	}
}

func actionUndone(t *testing.T, bank *BankService, actionID string) bool {
	t.Helper()
	bank.store.Lock()
	defer bank.store.Unlock()
	for _, actions := range bank.store.StateLocked().BankActions {
		for _, a := range actions {
			if a.ActionID == actionID {
				return a.Undone
			}
		}
	}
	t.Fatalf("acción %s no encontrada", actionID)
	return false
}

func TestUndoWindowExpired(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, true)
	ctx := context.Background()

	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 100, []int64{1}, ""); err != nil {
		t.Fatal(err)
	}
	now = 1000 + UndoWindowSeconds + 1
	if _, err := bank.Undo(ctx, testGuild, 99); !errors.Is(err, domain.ErrUndoWindowExpired) {
		t.Fatalf("err = %v, want ErrUndoWindowExpired", err)
	}
}

func TestUndoOnlyOriginalActor(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, true)
	ctx := context.Background()

	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 100, []int64{1}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := bank.Undo(ctx, testGuild, 77); !errors.Is(err, domain.ErrNoUndoableAction) {
		t.Fatalf("otro actor: err = %v, want ErrNoUndoableAction", err)
	}
}

func TestPay(t *testing.T) {
	now := int64(1000)
	bank := newBankFixture(t, &now, true)
	ctx := context.Background()

	if _, err := bank.MassChange(ctx, testGuild, 99, domain.BankAdd, 1000, []int64{1}, ""); err != nil {
		t.Fatal(err)
	}

	if err := bank.Pay(ctx, testGuild, 1, 1, 100, false); !errors.Is(err, domain.ErrSelfPayment) {
		t.Fatalf("self pay: err = %v", err)
	}
	if err := bank.Pay(ctx, testGuild, 1, 2, 100, true); !errors.Is(err, domain.ErrBotTarget) {
		t.Fatalf("pay a bot: err = %v", err)
	}
	if err := bank.Pay(ctx, testGuild, 1, 2, 5000, false); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("sin fondos: err = %v", err)
	}
	if err := bank.Pay(ctx, testGuild, 1, 2, 400, false); err != nil {
		t.Fatalf("pay: %v", err)
	}
	from, _ := bank.Balance(ctx, testGuild, 1)
	to, _ := bank.Balance(ctx, testGuild, 2)
	if from != 600 || to != 400 {
		t.Fatalf("balances tras pay = %d/%d, want 600/400", from, to)
	}
}

func TestFormatSilver(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.000"},
		{1250000, "1.250.000"},
		{-45000, "-45.000"},
	}
	for _, tc := range cases {
		if got := FormatSilver(tc.in); got != tc.want {
			t.Fatalf("FormatSilver(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
