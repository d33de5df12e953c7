package service

import (
	"sort"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

// RaidService: operaciones de ciclo de vida y roster sobre raids. Cada
// mutación es lock → mutar → persistir vía store.Update.
type RaidService struct {
	store *storage.Store
	now   Clock
	log   *zap.Logger

	defaultPrepMinutes    int
	defaultCleanupMinutes int
}

func NewRaidService(store *storage.Store, now Clock, log *zap.Logger, defaultPrep, defaultCleanup int) *RaidService {
	return &RaidService{
		store:                 store,
		now:                   now,
		log:                   log,
		defaultPrepMinutes:    defaultPrep,
		defaultCleanupMinutes: defaultCleanup,
	}
}

func newRaidID() string { return timeID("R") }

type OpenRaidInput struct {
	TemplateName   string
	Title          string
	Description    string
	ExtraMessage   string
	StartAt        int64
	CreatedBy      int64
	VoiceChannelID int64
	PrepMinutes    int // 0 → default
	CleanupMinutes int // 0 → default
}

// Open crea el raid y auto-inscribe al creador como raid leader si la compo
// tiene ese rol (es el único camino para ocuparlo: join lo rechaza).
func (s *RaidService) Open(in OpenRaidInput) (*domain.RaidEvent, error) {
	prep := in.PrepMinutes
	if prep <= 0 {
		prep = s.defaultPrepMinutes
	}
	cleanup := in.CleanupMinutes
	if cleanup <= 0 {
		cleanup = s.defaultCleanupMinutes
	}
	now := s.now()
	raid := &domain.RaidEvent{
		RaidID:         newRaidID(),
		TemplateName:   in.TemplateName,
		Title:          in.Title,
		Description:    in.Description,
		ExtraMessage:   in.ExtraMessage,
		StartAt:        in.StartAt,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		VoiceChannelID: in.VoiceChannelID,
		Signups:        map[int64]*domain.Signup{},
		Absent:         map[int64]struct{}{},
		DMNotifyUsers:  map[int64]struct{}{},
		PrepMinutes:    prep,
		CleanupMinutes: cleanup,
	}
	err := s.store.Update(func(st *storage.State) error {
		tpl, ok := st.Templates[in.TemplateName]
		if !ok {
			return domain.ErrTemplateMissing
		}
		if _, ok := tpl.RoleByKey(domain.RoleKeyRaidLeader); ok {
			raid.Signups[in.CreatedBy] = &domain.Signup{
				UserID:   in.CreatedBy,
				RoleKey:  domain.RoleKeyRaidLeader,
				Status:   domain.SignupMain,
				JoinedAt: now,
			}
		}
		st.Raids[raid.RaidID] = raid
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("raid abierto",
		zap.String("raid_id", raid.RaidID),
		zap.String("template", raid.TemplateName),
		zap.Int64("start_at", raid.StartAt))
	return cloneRaid(raid), nil
}

// AttachMessage guarda las referencias externas del anuncio una vez que el
// adapter lo publicó (mensaje, thread de discusión).
func (s *RaidService) AttachMessage(raidID string, channelID, messageID, threadID int64) error {
	return s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		raid.ChannelID = channelID
		raid.MessageID = messageID
		raid.ThreadID = threadID
		return nil
	})
}

// Join inscribe al usuario. hasRole es el predicado de membresía que aporta
// el adapter (el core no habla con la API de Discord).
func (s *RaidService) Join(raidID string, userID int64, roleKey string, ip *int, hasRole HasRoleFunc) (domain.SignupStatus, error) {
	var status domain.SignupStatus
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		tpl, ok := st.Templates[raid.TemplateName]
		if !ok {
			return domain.ErrTemplateMissing
		}
		var err error
		status, err = JoinRoster(raid, tpl, userID, roleKey, ip, s.now(), hasRole)
		return err
	})
	return status, err
}

func (s *RaidService) Leave(raidID string, userID int64) (bool, error) {
	var changed bool
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		tpl := st.Templates[raid.TemplateName] // nil tolerado: sin promociones
		var err error
		changed, err = LeaveRoster(raid, tpl, userID, s.now())
		return err
	})
	return changed, err
}

// MarkAbsent togglea la ausencia del usuario; devuelve el estado resultante.
func (s *RaidService) MarkAbsent(raidID string, userID int64) (bool, error) {
	var nowAbsent bool
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		tpl := st.Templates[raid.TemplateName]
		var err error
		nowAbsent, err = ToggleAbsent(raid, tpl, userID, s.now())
		return err
	})
	return nowAbsent, err
}

// ToggleDMNotify: opt-in/opt-out del DM del mass-up.
func (s *RaidService) ToggleDMNotify(raidID string, userID int64) (bool, error) {
	var enabled bool
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		if raid.DMNotifyUsers == nil {
			raid.DMNotifyUsers = map[int64]struct{}{}
		}
		if _, ok := raid.DMNotifyUsers[userID]; ok {
			delete(raid.DMNotifyUsers, userID)
			enabled = false
		} else {
			raid.DMNotifyUsers[userID] = struct{}{}
			enabled = true
		}
		return nil
	})
	return enabled, err
}

type EditRaidInput struct {
	Title        *string
	Description  *string
	ExtraMessage *string
	StartAt      *int64
}

// Edit ajusta los campos editables de un raid no terminal. Los flags de fase
// son monótonos: adelantar o atrasar start_at nunca los resetea.
func (s *RaidService) Edit(raidID string, in EditRaidInput) (*domain.RaidEvent, error) {
	var out *domain.RaidEvent
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		if raid.CleanupDone {
			return domain.ErrRaidTerminal
		}
		if in.Title != nil {
			raid.Title = *in.Title
		}
		if in.Description != nil {
			raid.Description = *in.Description
		}
		if in.ExtraMessage != nil {
			raid.ExtraMessage = *in.ExtraMessage
		}
		if in.StartAt != nil {
			raid.StartAt = *in.StartAt
		}
		out = cloneRaid(raid)
		return nil
	})
	return out, err
}

// Close cierra el raid manualmente (terminal). Se mantiene el invariante
// cleanup ⟹ ping marcando ambos flags.
func (s *RaidService) Close(raidID string) error {
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		if raid.CleanupDone {
			return domain.ErrRaidTerminal
		}
		raid.PingDone = true
		raid.CleanupDone = true
		return nil
	})
	if err == nil {
		s.log.Info("raid cerrado manualmente", zap.String("raid_id", raidID))
	}
	return err
}

// Get devuelve copias del raid y de su template (nil si el template fue
// borrado: el render degrada, el scheduler sigue).
func (s *RaidService) Get(raidID string) (*domain.RaidEvent, *domain.CompTemplate, error) {
	var raid *domain.RaidEvent
	var tpl *domain.CompTemplate
	err := s.store.View(func(st *storage.State) error {
		r, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		raid = cloneRaid(r)
		if t, ok := st.Templates[r.TemplateName]; ok {
			cp := *t
			tpl = &cp
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return raid, tpl, nil
}

// GetByThread busca el raid dueño de un thread (componentes dentro del
// thread de discusión).
func (s *RaidService) GetByThread(threadID int64) (*domain.RaidEvent, error) {
	var raid *domain.RaidEvent
	err := s.store.View(func(st *storage.State) error {
		r := st.RaidByThread(threadID)
		if r == nil {
			return domain.ErrRaidNotFound
		}
		raid = cloneRaid(r)
		return nil
	})
	return raid, err
}

// List devuelve los raids ordenados por start_at ascendente; con activeOnly
// filtra los terminales.
func (s *RaidService) List(activeOnly bool) []*domain.RaidEvent {
	var out []*domain.RaidEvent
	_ = s.store.View(func(st *storage.State) error {
		for _, r := range st.Raids {
			if activeOnly && r.CleanupDone {
				continue
			}
			out = append(out, cloneRaid(r))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt != out[j].StartAt {
			return out[i].StartAt < out[j].StartAt
		}
		return out[i].RaidID < out[j].RaidID
	})
	return out
}

// SetLootLimits guarda los defaults de split del guild (fee del scout, bonus
// del RL). Campos en cero conservan los defaults del comando.
func (s *RaidService) SetLootLimits(guildID int64, limits domain.LootLimits) error {
	if limits.ScoutPct < 0 || limits.ScoutMin < 0 || limits.ScoutMax < 0 || limits.RLBonusPct < 0 {
		return domain.ErrInvalidAmount
	}
	if limits.ScoutMax > 0 && limits.ScoutMin > limits.ScoutMax {
		return domain.ErrInvalidAmount
	}
	return s.store.Update(func(st *storage.State) error {
		cp := limits
		st.LootLimits[guildID] = &cp
		return nil
	})
}

// LootLimits devuelve los defaults de split configurados, si los hay.
func (s *RaidService) LootLimits(guildID int64) (domain.LootLimits, bool) {
	var out domain.LootLimits
	var ok bool
	_ = s.store.View(func(st *storage.State) error {
		if l := st.LootLimits[guildID]; l != nil {
			out = *l
			ok = true
		}
		return nil
	})
	return out, ok
}

// cloneRaid: copia defensiva para leer fuera del lock.
func cloneRaid(r *domain.RaidEvent) *domain.RaidEvent {
	cp := *r
	cp.Signups = make(map[int64]*domain.Signup, len(r.Signups))
	for uid, s := range r.Signups {
		sc := *s
		cp.Signups[uid] = &sc
	}
	cp.Absent = make(map[int64]struct{}, len(r.Absent))
	for uid := range r.Absent {
		cp.Absent[uid] = struct{}{}
	}
	cp.DMNotifyUsers = make(map[int64]struct{}, len(r.DMNotifyUsers))
	for uid := range r.DMNotifyUsers {
		cp.DMNotifyUsers[uid] = struct{}{}
	}
	cp.LastVoicePresentIDs = append([]int64(nil), r.LastVoicePresentIDs...)
	return &cp
}
