package service

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

func newTemplateFixture(t *testing.T) *TemplateService {
	t.Helper()
	store, err := storage.OpenStore(filepath.Join(t.TempDir(), "state.json"), 10, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	now := int64(1000)
	return NewTemplateService(store, func() int64 { return now }, zap.NewNop())
}

func TestParseCompSpec(t *testing.T) {
	roles, warnings, err := ParseCompSpec("Tank Principal;2;ip\nSanador;1;req=100,200\nDPS;3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings inesperados: %v", warnings)
	}
	if len(roles) != 3 {
		t.Fatalf("roles = %d, want 3", len(roles))
	}
	if roles[0].Key != "tank_principal" || !roles[0].IPRequired || roles[0].Slots != 2 {
		t.Fatalf("rol 0 mal parseado: %+v", roles[0])
	}
	if len(roles[1].RequiredRoleIDs) != 2 || roles[1].RequiredRoleIDs[0] != 100 {
		t.Fatalf("required_role_ids mal parseados: %+v", roles[1])
	}
}

func TestParseCompSpecDuplicateKeysSuffixed(t *testing.T) {
	roles, _, err := ParseCompSpec("DPS;1\nDPS;1\nDPS;1")
	if err != nil {
		t.Fatal(err)
	}
	keys := []string{roles[0].Key, roles[1].Key, roles[2].Key}
	if keys[0] != "dps" || keys[1] != "dps_2" || keys[2] != "dps_3" {
		t.Fatalf("claves duplicadas sin sufijo: %v", keys)
	}
}

func TestParseCompSpecWarningsAndEmpty(t *testing.T) {
	_, warnings, err := ParseCompSpec("sin_slots\nOtro;abc")
	if !errors.Is(err, domain.ErrInvalidSpec) {
		t.Fatalf("spec sin líneas válidas: err = %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", warnings)
	}
}

func TestCreateAvaRaidForcesBookends(t *testing.T) {
	svc := newTemplateFixture(t)
	tpl, _, err := svc.Create(SaveTemplateInput{
		Name:        "ava-core",
		ContentType: domain.ContentAvaRaid,
		CreatedBy:   99,
		Spec:        "Tank;2\nScout;5\nHealer;1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	roles := tpl.Roles
	if roles[0].Key != domain.RoleKeyRaidLeader || roles[0].Slots != 1 {
		t.Fatalf("primer rol tiene que ser raid_leader con 1 slot: %+v", roles[0])
	}
	last := roles[len(roles)-1]
	if last.Key != domain.RoleKeyScout || last.Slots != 1 {
		t.Fatalf("último rol tiene que ser scout con 1 slot: %+v", last)
	}
	// el "Scout;5" del usuario se descarta, no se duplica ni hereda slots
	count := 0
	for _, r := range roles {
		if r.Key == domain.RoleKeyScout {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("scout aparece %d veces", count)
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	svc := newTemplateFixture(t)
	in := SaveTemplateInput{Name: "pvp-roam", ContentType: domain.ContentPvP, Spec: "DPS;5"}
	if _, _, err := svc.Create(in); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Create(in); !errors.Is(err, domain.ErrTemplateExists) {
		t.Fatalf("duplicado: err = %v, want ErrTemplateExists", err)
	}
}

func TestUpdateKeepsCreationMetadata(t *testing.T) {
	svc := newTemplateFixture(t)
	if _, _, err := svc.Create(SaveTemplateInput{Name: "pvp-roam", ContentType: domain.ContentPvP, CreatedBy: 7, Spec: "DPS;5"}); err != nil {
		t.Fatal(err)
	}
	tpl, _, err := svc.Update(SaveTemplateInput{Name: "pvp-roam", ContentType: domain.ContentPvP, CreatedBy: 8, Spec: "DPS;10"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if tpl.CreatedBy != 7 {
		t.Fatalf("created_by = %d, want 7 (se preserva el creador original)", tpl.CreatedBy)
	}
	if tpl.Roles[0].Slots != 10 {
		t.Fatalf("slots = %d, want 10", tpl.Roles[0].Slots)
	}
}

func TestDeleteMissingTemplate(t *testing.T) {
	svc := newTemplateFixture(t)
	if err := svc.Delete("nada"); !errors.Is(err, domain.ErrTemplateMissing) {
		t.Fatalf("err = %v, want ErrTemplateMissing", err)
	}
}

func TestSlugKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Tank Principal", "tank_principal"},
		{"  DPS  ", "dps"},
		{"Curador (main)", "curador_main"},
		{"X-Bow", "x_bow"},
	}
	for _, tc := range cases {
		if got := slugKey(tc.in); got != tc.want {
			t.Fatalf("slugKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
