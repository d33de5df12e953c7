package service

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

type fakeNotifier struct {
	prepCalls    int
	pingCalls    int
	reportCalls  int
	releaseCalls int
	refreshCalls int

	occupants  []int64
	lastReport AttendanceReport
}

func (f *fakeNotifier) AssignPrepAccess(context.Context, *domain.RaidEvent) (int64, error) {
	f.prepCalls++
	return 777, nil
}

func (f *fakeNotifier) SendMassPing(context.Context, *domain.RaidEvent) error {
	f.pingCalls++
	return nil
}

func (f *fakeNotifier) VoiceOccupants(context.Context, *domain.RaidEvent) ([]int64, error) {
	return f.occupants, nil
}

func (f *fakeNotifier) SendAttendanceReport(_ context.Context, _ *domain.RaidEvent, r AttendanceReport) error {
	f.reportCalls++
	f.lastReport = r
	return nil
}

func (f *fakeNotifier) ReleaseTempAccess(context.Context, *domain.RaidEvent) error {
	f.releaseCalls++
	return nil
}

func (f *fakeNotifier) RefreshRoster(context.Context, *domain.RaidEvent) error {
	f.refreshCalls++
	return nil
}

func newSchedulerFixture(t *testing.T, now *int64) (*Scheduler, *storage.Store, *fakeNotifier) {
	t.Helper()
	store, err := storage.OpenStore(filepath.Join(t.TempDir(), "state.json"), 10, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	notifier := &fakeNotifier{}
	clock := func() int64 { return *now }
	sched := NewScheduler(store, notifier, clock, zap.NewNop(), 5)
	return sched, store, notifier
}

func seedRaid(t *testing.T, store *storage.Store, raid *domain.RaidEvent) {
	t.Helper()
	if err := store.Update(func(st *storage.State) error {
		st.Raids[raid.RaidID] = raid
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func fetchRaid(t *testing.T, store *storage.Store, id string) *domain.RaidEvent {
	t.Helper()
	var out *domain.RaidEvent
	if err := store.View(func(st *storage.State) error {
		out = cloneRaid(st.Raids[id])
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

// start=10000, prep=10min, cleanup=30min, voice_check_after=5min:
// umbrales en 9400 / 10000 / 10300 / 11800.
func schedulerRaid() *domain.RaidEvent {
	return &domain.RaidEvent{
		RaidID:         "R1",
		TemplateName:   "ava-core",
		StartAt:        10_000,
		PrepMinutes:    10,
		CleanupMinutes: 30,
		Signups: map[int64]*domain.Signup{
			10: {UserID: 10, RoleKey: "tank", Status: domain.SignupMain, JoinedAt: 1},
			11: {UserID: 11, RoleKey: "tank", Status: domain.SignupMain, JoinedAt: 2},
		},
		Absent:        map[int64]struct{}{},
		DMNotifyUsers: map[int64]struct{}{},
	}
}

func TestSchedulerPrepFiresOnce(t *testing.T) {
	now := int64(9_400)
	sched, store, notifier := newSchedulerFixture(t, &now)
	seedRaid(t, store, schedulerRaid())
	ctx := context.Background()

	sched.Tick(ctx)
	sched.Tick(ctx)
	sched.Tick(ctx)

	if notifier.prepCalls != 1 {
		t.Fatalf("prep disparó %d veces, want 1 (idempotencia)", notifier.prepCalls)
	}
	raid := fetchRaid(t, store, "R1")
	if !raid.PrepDone || raid.PingDone {
		t.Fatalf("flags = prep:%v ping:%v, want prep solo", raid.PrepDone, raid.PingDone)
	}
	if raid.TempRoleID != 777 {
		t.Fatalf("temp_role_id = %d, want 777 persistido", raid.TempRoleID)
	}
}

func TestSchedulerPhaseNotDueDoesNothing(t *testing.T) {
	now := int64(9_000)
	sched, store, notifier := newSchedulerFixture(t, &now)
	seedRaid(t, store, schedulerRaid())

	sched.Tick(context.Background())

	if notifier.prepCalls != 0 || notifier.refreshCalls != 0 {
		t.Fatalf("nada tendría que disparar antes del umbral")
	}
	raid := fetchRaid(t, store, "R1")
	if raid.PrepDone {
		t.Fatal("prep_done marcado antes de tiempo")
	}
}

func TestSchedulerCatchesUpAllPhasesInOneTick(t *testing.T) {
	now := int64(20_000) // pasado el umbral de cleanup
	sched, store, notifier := newSchedulerFixture(t, &now)
	seedRaid(t, store, schedulerRaid())

	sched.Tick(context.Background())

	raid := fetchRaid(t, store, "R1")
	if !raid.PrepDone || !raid.PingDone || !raid.VoiceCheckDone || !raid.CleanupDone {
		t.Fatalf("un raid atrasado cruza todas las fases en un tick: %+v", raid)
	}
	if notifier.prepCalls != 1 || notifier.pingCalls != 1 || notifier.reportCalls != 1 {
		t.Fatalf("llamadas = prep:%d ping:%d report:%d, want 1 de cada",
			notifier.prepCalls, notifier.pingCalls, notifier.reportCalls)
	}
	if raid.Status() != domain.RaidClosed {
		t.Fatalf("status = %s, want CLOSED", raid.Status())
	}
	// tick siguiente: terminal, no se vuelve a procesar
	sched.Tick(context.Background())
	if notifier.pingCalls != 1 {
		t.Fatal("raid terminal re-procesado")
	}
}

func TestSchedulerRegistrationFrozenAfterPing(t *testing.T) {
	now := int64(10_000)
	sched, store, _ := newSchedulerFixture(t, &now)
	seedRaid(t, store, schedulerRaid())
	sched.Tick(context.Background())

	raid := fetchRaid(t, store, "R1")
	if !raid.PingDone {
		t.Fatal("ping tendría que haber disparado en start_at")
	}
	tpl := testTemplate()
	if _, err := JoinRoster(raid, tpl, 50, "tank", nil, now, nil); err != domain.ErrRegistrationClosed {
		t.Fatalf("join tras el ping: err = %v, want ErrRegistrationClosed", err)
	}
}

func TestSchedulerAttendanceWithVoiceChannel(t *testing.T) {
	now := int64(10_300)
	sched, store, notifier := newSchedulerFixture(t, &now)
	raid := schedulerRaid()
	raid.VoiceChannelID = 123
	raid.Signups[12] = &domain.Signup{UserID: 12, RoleKey: "tank", Status: domain.SignupWait, JoinedAt: 3}
	raid.Absent[12] = struct{}{}
	delete(raid.Signups, 12) // ausente antes del start: fuera del expected
	seedRaid(t, store, raid)
	notifier.occupants = []int64{10, 99} // 10 esperado, 99 colado, 11 falta

	sched.Tick(context.Background())

	r := notifier.lastReport
	if !r.VoiceChecked {
		t.Fatal("con vocal configurado el reporte viene chequeado")
	}
	if len(r.PresentExpected) != 1 || r.PresentExpected[0] != 10 {
		t.Fatalf("present_expected = %v, want [10]", r.PresentExpected)
	}
	if len(r.MissingExpected) != 1 || r.MissingExpected[0] != 11 {
		t.Fatalf("missing_expected = %v, want [11]", r.MissingExpected)
	}
	if len(r.PresentUnexpected) != 1 || r.PresentUnexpected[0] != 99 {
		t.Fatalf("present_unexpected = %v, want [99]", r.PresentUnexpected)
	}
	got := fetchRaid(t, store, "R1")
	if len(got.LastVoicePresentIDs) != 1 || got.LastVoicePresentIDs[0] != 10 {
		t.Fatalf("last_voice_present_ids = %v, want [10]", got.LastVoicePresentIDs)
	}
}

func TestSchedulerAttendanceWithoutVoiceChannel(t *testing.T) {
	now := int64(10_300)
	sched, store, notifier := newSchedulerFixture(t, &now)
	seedRaid(t, store, schedulerRaid())

	sched.Tick(context.Background())

	r := notifier.lastReport
	if r.VoiceChecked {
		t.Fatal("sin vocal el reporte no se chequea")
	}
	if len(r.PresentExpected) != 2 {
		t.Fatalf("sin vocal todos los esperados cuentan presentes: %v", r.PresentExpected)
	}
}
