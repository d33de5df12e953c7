package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := OpenStore(path, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := newTestStore(t, path)

	ip := 1450
	err := s.Update(func(st *State) error {
		st.Templates["ava-core"] = &domain.CompTemplate{
			Name:        "ava-core",
			ContentType: domain.ContentAvaRaid,
			CreatedBy:   7,
			CreatedAt:   100,
			Roles: []domain.CompRole{
				{Key: domain.RoleKeyRaidLeader, Label: "Raid Leader", Slots: 1},
				{Key: "tank", Label: "Tank", Slots: 2, IPRequired: true, RequiredRoleIDs: []int64{555}},
				{Key: domain.RoleKeyScout, Label: "Scout", Slots: 1},
			},
		}
		st.Raids["R1"] = &domain.RaidEvent{
			RaidID:       "R1",
			TemplateName: "ava-core",
			Title:        "Ava 21h",
			StartAt:      10_000,
			CreatedBy:    7,
			PrepMinutes:  10,
			Signups: map[int64]*domain.Signup{
				10: {UserID: 10, RoleKey: "tank", Status: domain.SignupMain, IP: &ip, JoinedAt: 3},
				11: {UserID: 11, RoleKey: "tank", Status: domain.SignupWait, JoinedAt: 5},
			},
			Absent:        map[int64]struct{}{12: {}},
			DMNotifyUsers: map[int64]struct{}{10: {}},
			PingDone:      true,
		}
		st.SetPermissionRoleIDs(42, domain.PermRaidManager, []int64{900})
		st.BankBalances[42] = map[int64]int64{10: 1500}
		st.Tickets["T1"] = &domain.TicketRecord{
			TicketID: "T1", GuildID: 42, ChannelID: 77, OwnerID: 10,
			Status: domain.TicketOpen, CreatedAt: 50,
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded := newTestStore(t, path)
	var got, want *State
	_ = s.View(func(st *State) error { want = st; return nil })
	_ = reloaded.View(func(st *State) error { got = st; return nil })

	if !reflect.DeepEqual(got.Templates, want.Templates) {
		t.Fatal("templates no sobreviven el round-trip")
	}
	if !reflect.DeepEqual(got.Raids, want.Raids) {
		t.Fatal("raids (con signups y joined_at) no sobreviven el round-trip")
	}
	if !reflect.DeepEqual(got.GuildPermissions, want.GuildPermissions) {
		t.Fatal("permisos no sobreviven el round-trip")
	}
	if !reflect.DeepEqual(got.BankBalances, want.BankBalances) {
		t.Fatal("balances no sobreviven el round-trip")
	}
	if !reflect.DeepEqual(got.Tickets, want.Tickets) {
		t.Fatal("tickets no sobreviven el round-trip")
	}
}

func TestStoreMissingFileStartsEmpty(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "no-existe.json"))
	_ = s.View(func(st *State) error {
		if len(st.Raids) != 0 || st.Raids == nil {
			t.Fatal("estado inicial tendría que ser vacío y con maps listos")
		}
		return nil
	})
}

func TestStoreCorruptSnapshotRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{no es json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenStore(path, 10, zap.NewNop()); err == nil {
		t.Fatal("snapshot corrupto tiene que fallar el arranque, no pisarse")
	}
}

func TestStoreUpdateErrorDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := newTestStore(t, path)

	if err := s.Update(func(st *State) error { return nil }); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Update(func(st *State) error {
		st.Raids["R-fantasma"] = &domain.RaidEvent{RaidID: "R-fantasma"}
		return ErrNotFound // el error aborta el save
	})
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("un Update fallido no tiene que tocar el snapshot")
	}
}

func TestStoreNormalizeNilMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	raw := `{"raids":{"R1":{"raid_id":"R1","template_name":"x","start_at":1}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, path)
	_ = s.View(func(st *State) error {
		r := st.Raids["R1"]
		if r.Signups == nil || r.Absent == nil || r.DMNotifyUsers == nil {
			t.Fatal("maps anidados en nil tras el load")
		}
		if st.Templates == nil || st.BankBalances == nil {
			t.Fatal("maps raíz en nil tras el load")
		}
		return nil
	})
}

func TestSnapshotLedger(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "state.json"))
	ledger := NewSnapshotLedger(s)
	ctx := context.Background()

	s.Lock()
	defer s.Unlock()

	if bal, err := ledger.GetBalance(ctx, 42, 10); err != nil || bal != 0 {
		t.Fatalf("balance inicial = %d (%v), want 0", bal, err)
	}
	if err := ledger.SetBalance(ctx, 42, 10, 700); err != nil {
		t.Fatal(err)
	}
	bal, _ := ledger.GetBalance(ctx, 42, 10)
	if bal != 700 {
		t.Fatalf("balance = %d, want 700", bal)
	}

	for i := 0; i < 15; i++ {
		a := &domain.BankAction{
			ActionID: string(rune('a' + i)),
			GuildID:  42, ActorID: 99, CreatedAt: int64(i),
			ActionType: domain.BankAdd, Deltas: map[int64]int64{10: 1},
		}
		if err := ledger.AppendAction(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	// retención acotada: el fixture abre el store con límite 10
	if n := len(s.StateLocked().BankActions[42]); n != 10 {
		t.Fatalf("acciones retenidas = %d, want 10 (prune de las más viejas)", n)
	}

	last, err := ledger.LastActionForActor(ctx, 42, 99)
	if err != nil {
		t.Fatal(err)
	}
	if last.CreatedAt != 14 {
		t.Fatalf("última acción = %d, want la más nueva (14)", last.CreatedAt)
	}
	if err := ledger.MarkActionUndone(ctx, last.ActionID, 500); err != nil {
		t.Fatal(err)
	}
	next, err := ledger.LastActionForActor(ctx, 42, 99)
	if err != nil {
		t.Fatal(err)
	}
	if next.ActionID == last.ActionID {
		t.Fatal("las acciones undone se saltean en la búsqueda")
	}
}

func TestOpenLedgerSelectsSnapshotWhenUnconfigured(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "state.json"))

	// sin DATABASE_URL ni path de sqlite el banco vive en el snapshot; los
	// espacios cuentan como vacío
	led, err := OpenLedger(context.Background(), s, "", "  ", 10)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer led.Close()
	if _, ok := led.(*SnapshotLedger); !ok {
		t.Fatalf("ledger = %T, want *SnapshotLedger", led)
	}
}

func TestOpenLedgerSelectsSQLiteWhenPathSet(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "state.json"))

	led, err := OpenLedger(context.Background(), s, "", filepath.Join(t.TempDir(), "bank.sqlite3"), 10)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer led.Close()
	if _, ok := led.(*SQLLedger); !ok {
		t.Fatalf("ledger = %T, want *SQLLedger", led)
	}
}
