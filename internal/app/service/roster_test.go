package service

import (
	"errors"
	"testing"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

func testTemplate() *domain.CompTemplate {
	return &domain.CompTemplate{
		Name:        "ava-core",
		ContentType: domain.ContentAvaRaid,
		Roles: []domain.CompRole{
			{Key: domain.RoleKeyRaidLeader, Label: "Raid Leader", Slots: 1},
			{Key: "tank", Label: "Tank", Slots: 2},
			{Key: "healer", Label: "Healer", Slots: 1, IPRequired: true},
			{Key: domain.RoleKeyScout, Label: "Scout", Slots: 1},
		},
	}
}

func testRaid(startAt int64) *domain.RaidEvent {
	return &domain.RaidEvent{
		RaidID:        "R1",
		TemplateName:  "ava-core",
		StartAt:       startAt,
		Signups:       map[int64]*domain.Signup{},
		Absent:        map[int64]struct{}{},
		DMNotifyUsers: map[int64]struct{}{},
		PrepMinutes:   10,
	}
}

func TestJoinRosterMainThenWait(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)

	st, err := JoinRoster(raid, tpl, 10, "tank", nil, 1, nil)
	if err != nil {
		t.Fatalf("join 10: %v", err)
	}
	if st != domain.SignupMain {
		t.Fatalf("join 10: status = %s, want main", st)
	}
	if _, err := JoinRoster(raid, tpl, 11, "tank", nil, 2, nil); err != nil {
		t.Fatalf("join 11: %v", err)
	}
	st, err = JoinRoster(raid, tpl, 12, "tank", nil, 3, nil)
	if err != nil {
		t.Fatalf("join 12: %v", err)
	}
	if st != domain.SignupWait {
		t.Fatalf("join 12: status = %s, want wait (slots llenos)", st)
	}
}

func TestJoinRosterValidation(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(r *domain.RaidEvent)
		roleKey string
		ip      *int
		now     int64
		hasRole HasRoleFunc
		wantErr error
	}{
		{name: "rol inexistente", roleKey: "mage", now: 1, wantErr: domain.ErrRoleNotFound},
		{name: "raid leader reservado", roleKey: domain.RoleKeyRaidLeader, now: 1, wantErr: domain.ErrReservedRole},
		{name: "inscripciones cerradas por start", roleKey: "tank", now: 1000, wantErr: domain.ErrRegistrationClosed},
		{
			name:    "inscripciones cerradas por ping",
			setup:   func(r *domain.RaidEvent) { r.PingDone = true },
			roleKey: "tank", now: 1, wantErr: domain.ErrRegistrationClosed,
		},
		{
			name:    "leader no puede cambiar de rol",
			setup: func(r *domain.RaidEvent) {
				r.Signups[10] = &domain.Signup{UserID: 10, RoleKey: domain.RoleKeyRaidLeader, Status: domain.SignupMain}
			},
			roleKey: "tank", now: 1, wantErr: domain.ErrLeaderLocked,
		},
		{name: "ip requerido", roleKey: "healer", now: 1, wantErr: domain.ErrIPRequired},
		{name: "ip fuera de rango", roleKey: "healer", ip: intPtr(9999), now: 1, wantErr: domain.ErrIPOutOfRange},
		{
			name:    "rol de discord faltante",
			roleKey: "tank", now: 1,
			hasRole: func([]int64) bool { return false },
			wantErr: domain.ErrMissingRequired,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raid := testRaid(1000)
			tplCase := testTemplate()
			if tc.hasRole != nil {
				tplCase.RaidRequiredRoleIDs = []int64{555}
			}
			if tc.setup != nil {
				tc.setup(raid)
			}
			_, err := JoinRoster(raid, tplCase, 10, tc.roleKey, tc.ip, tc.now, tc.hasRole)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestJoinRosterClearsAbsent(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)
	raid.Absent[10] = struct{}{}

	if _, err := JoinRoster(raid, tpl, 10, "tank", nil, 1, nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	if raid.IsAbsent(10) {
		t.Fatal("el join tiene que sacar al usuario de absent")
	}
}

func TestLeavePromotesEarliestWaiter(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)

	// dos mains y dos waiters; 12 se anotó antes que 13
	for i, uid := range []int64{10, 11, 12, 13} {
		if _, err := JoinRoster(raid, tpl, uid, "tank", nil, int64(i+1), nil); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	changed, err := LeaveRoster(raid, tpl, 10, 5)
	if err != nil || !changed {
		t.Fatalf("leave: changed=%v err=%v", changed, err)
	}
	if got := raid.Signups[12].Status; got != domain.SignupMain {
		t.Fatalf("waiter 12 (más antiguo) tendría que ser main, es %s", got)
	}
	if got := raid.Signups[13].Status; got != domain.SignupWait {
		t.Fatalf("waiter 13 tendría que seguir wait, es %s", got)
	}
}

func TestPromotionSkipsAbsentWaiter(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)

	for i, uid := range []int64{10, 11, 12, 13} {
		if _, err := JoinRoster(raid, tpl, uid, "tank", nil, int64(i+1), nil); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	// 12 se marca ausente: pierde el signup y no puede ser promovido
	nowAbsent, err := ToggleAbsent(raid, tpl, 12, 5)
	if err != nil || !nowAbsent {
		t.Fatalf("absent: %v", err)
	}
	if _, ok := raid.Signups[12]; ok {
		t.Fatal("absent tiene que remover el signup")
	}
	changed, err := LeaveRoster(raid, tpl, 10, 6)
	if err != nil || !changed {
		t.Fatalf("leave: %v", err)
	}
	if got := raid.Signups[13].Status; got != domain.SignupMain {
		t.Fatalf("con 12 ausente la promoción va a 13, status = %s", got)
	}
}

func TestToggleAbsentTwiceUnmarks(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)

	nowAbsent, err := ToggleAbsent(raid, tpl, 10, 1)
	if err != nil || !nowAbsent {
		t.Fatalf("primer toggle: %v", err)
	}
	nowAbsent, err = ToggleAbsent(raid, tpl, 10, 2)
	if err != nil || nowAbsent {
		t.Fatalf("segundo toggle tendría que desmarcar: nowAbsent=%v err=%v", nowAbsent, err)
	}
	if raid.IsAbsent(10) {
		t.Fatal("usuario sigue ausente tras desmarcar")
	}
}

func TestLeaveRaidLeaderRejected(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)
	raid.Signups[10] = &domain.Signup{UserID: 10, RoleKey: domain.RoleKeyRaidLeader, Status: domain.SignupMain}

	if _, err := LeaveRoster(raid, tpl, 10, 1); !errors.Is(err, domain.ErrReservedRole) {
		t.Fatalf("leave del leader: err = %v, want ErrReservedRole", err)
	}
	if _, err := ToggleAbsent(raid, tpl, 10, 1); !errors.Is(err, domain.ErrReservedRole) {
		t.Fatalf("absent del leader: err = %v, want ErrReservedRole", err)
	}
}

func TestSwitchRoleResetsQueueOrder(t *testing.T) {
	tpl := testTemplate()
	raid := testRaid(1000)

	for i, uid := range []int64{10, 11, 12} {
		if _, err := JoinRoster(raid, tpl, uid, "tank", nil, int64(i+1), nil); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	// 12 está wait; 13 se anota después y queda detrás
	if _, err := JoinRoster(raid, tpl, 13, "tank", nil, 4, nil); err != nil {
		t.Fatal(err)
	}
	// 12 cambia de rol y vuelve: joined_at se resetea, pasa detrás de 13
	if _, err := JoinRoster(raid, tpl, 12, "healer", intPtr(1400), 5, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := JoinRoster(raid, tpl, 12, "tank", nil, 6, nil); err != nil {
		t.Fatal(err)
	}
	changed, err := LeaveRoster(raid, tpl, 10, 7)
	if err != nil || !changed {
		t.Fatalf("leave: %v", err)
	}
	if got := raid.Signups[13].Status; got != domain.SignupMain {
		t.Fatalf("13 conservó el orden y tendría que ser main, es %s", got)
	}
	if got := raid.Signups[12].Status; got != domain.SignupWait {
		t.Fatalf("12 reseteó su orden y tendría que seguir wait, es %s", got)
	}
}

func intPtr(v int) *int { return &v }
