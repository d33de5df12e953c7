package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

// TemplateService: CRUD de composiciones reutilizables. El parser del spec de
// roles vive acá porque las claves resultantes son parte del contrato del
// roster (los botones de signup referencian role.Key).
type TemplateService struct {
	store *storage.Store
	now   Clock
	log   *zap.Logger
}

func NewTemplateService(store *storage.Store, now Clock, log *zap.Logger) *TemplateService {
	return &TemplateService{store: store, now: now, log: log}
}

// ParseCompSpec interpreta la definición de roles, una línea por rol:
//
//	Etiqueta;slots[;ip][;req=ID,ID][;key=clave]
//
// Las líneas malformadas vuelven como warnings; el error solo aparece cuando
// ninguna línea es válida.
func ParseCompSpec(spec string) ([]domain.CompRole, []string, error) {
	var roles []domain.CompRole
	var warnings []string
	seen := map[string]int{}

	for i, line := range strings.Split(spec, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 2 {
			warnings = append(warnings, fmt.Sprintf("línea %d: faltan campos (%q)", i+1, line))
			continue
		}
		label := strings.TrimSpace(parts[0])
		if label == "" {
			warnings = append(warnings, fmt.Sprintf("línea %d: etiqueta vacía", i+1))
			continue
		}
		slots, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || slots < 0 {
			warnings = append(warnings, fmt.Sprintf("línea %d: slots inválidos (%q)", i+1, parts[1]))
			continue
		}
		role := domain.CompRole{Label: label, Slots: slots}
		for _, opt := range parts[2:] {
			opt = strings.TrimSpace(opt)
			switch {
			case opt == "":
			case strings.EqualFold(opt, "ip"):
				role.IPRequired = true
			case strings.HasPrefix(strings.ToLower(opt), "req="):
				for _, raw := range strings.Split(opt[4:], ",") {
					id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
					if err != nil {
						warnings = append(warnings, fmt.Sprintf("línea %d: id de rol inválido (%q)", i+1, raw))
						continue
					}
					role.RequiredRoleIDs = append(role.RequiredRoleIDs, id)
				}
			case strings.HasPrefix(strings.ToLower(opt), "key="):
				role.Key = slugKey(opt[4:])
			default:
				warnings = append(warnings, fmt.Sprintf("línea %d: opción desconocida (%q)", i+1, opt))
			}
		}
		if role.Key == "" {
			role.Key = slugKey(label)
		}
		// claves únicas dentro del template: repetidas llevan sufijo
		if n := seen[role.Key]; n > 0 {
			seen[role.Key] = n + 1
			role.Key = fmt.Sprintf("%s_%d", role.Key, n+1)
		}
		seen[role.Key]++
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, warnings, domain.ErrInvalidSpec
	}
	return roles, warnings, nil
}

// slugKey normaliza una etiqueta a clave estable: minúsculas, alfanumérico y
// guiones bajos.
func slugKey(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// forceAvaBookends impone los roles reservados de ava_raid: raid_leader
// (1 slot) siempre primero, scout (1 slot) siempre último. Los que el spec
// del usuario traiga con esas claves se descartan.
func forceAvaBookends(roles []domain.CompRole) []domain.CompRole {
	out := make([]domain.CompRole, 0, len(roles)+2)
	out = append(out, domain.CompRole{Key: domain.RoleKeyRaidLeader, Label: "Raid Leader", Slots: 1})
	for _, r := range roles {
		if r.Key == domain.RoleKeyRaidLeader || r.Key == domain.RoleKeyScout {
			continue
		}
		out = append(out, r)
	}
	out = append(out, domain.CompRole{Key: domain.RoleKeyScout, Label: "Scout", Slots: 1})
	return out
}

type SaveTemplateInput struct {
	Name                string
	Description         string
	ContentType         domain.ContentType
	CreatedBy           int64
	Spec                string
	RaidRequiredRoleIDs []int64
}

// Create compila el spec y persiste el template. Falla si el nombre ya
// existe (Update es el camino para pisar uno).
func (s *TemplateService) Create(in SaveTemplateInput) (*domain.CompTemplate, []string, error) {
	tpl, warnings, err := s.build(in)
	if err != nil {
		return nil, warnings, err
	}
	err = s.store.Update(func(st *storage.State) error {
		if _, ok := st.Templates[in.Name]; ok {
			return domain.ErrTemplateExists
		}
		st.Templates[in.Name] = tpl
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}
	s.log.Info("template creado",
		zap.String("template", in.Name),
		zap.String("content_type", string(in.ContentType)),
		zap.Int("roles", len(tpl.Roles)))
	return tpl, warnings, nil
}

// Update reemplaza un template existente. Los raids abiertos que lo
// referencian leen la versión nueva en el próximo recompute/render.
func (s *TemplateService) Update(in SaveTemplateInput) (*domain.CompTemplate, []string, error) {
	tpl, warnings, err := s.build(in)
	if err != nil {
		return nil, warnings, err
	}
	err = s.store.Update(func(st *storage.State) error {
		prev, ok := st.Templates[in.Name]
		if !ok {
			return domain.ErrTemplateMissing
		}
		tpl.CreatedBy = prev.CreatedBy
		tpl.CreatedAt = prev.CreatedAt
		st.Templates[in.Name] = tpl
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}
	return tpl, warnings, nil
}

func (s *TemplateService) build(in SaveTemplateInput) (*domain.CompTemplate, []string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, nil, domain.ErrInvalidSpec
	}
	roles, warnings, err := ParseCompSpec(in.Spec)
	if err != nil {
		return nil, warnings, err
	}
	if in.ContentType == domain.ContentAvaRaid {
		roles = forceAvaBookends(roles)
	}
	return &domain.CompTemplate{
		Name:                in.Name,
		Description:         in.Description,
		CreatedBy:           in.CreatedBy,
		ContentType:         in.ContentType,
		CreatedAt:           s.now(),
		RaidRequiredRoleIDs: in.RaidRequiredRoleIDs,
		Roles:               roles,
	}, warnings, nil
}

// Delete borra el template. Referencia blanda: los raids que lo usaban
// quedan huérfanos y su render degrada, el scheduler no se entera.
func (s *TemplateService) Delete(name string) error {
	return s.store.Update(func(st *storage.State) error {
		if _, ok := st.Templates[name]; !ok {
			return domain.ErrTemplateMissing
		}
		delete(st.Templates, name)
		return nil
	})
}

func (s *TemplateService) Get(name string) (*domain.CompTemplate, error) {
	var tpl *domain.CompTemplate
	err := s.store.View(func(st *storage.State) error {
		t, ok := st.Templates[name]
		if !ok {
			return domain.ErrTemplateMissing
		}
		cp := *t
		tpl = &cp
		return nil
	})
	return tpl, err
}

func (s *TemplateService) List() []*domain.CompTemplate {
	var out []*domain.CompTemplate
	_ = s.store.View(func(st *storage.State) error {
		for _, t := range st.Templates {
			cp := *t
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
