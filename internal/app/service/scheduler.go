package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

// Scheduler recorre todos los raids no terminales en cada tick y dispara las
// cuatro fases cuando el reloj cruza sus umbrales. Cada transición se
// reclama bajo lock (check-set-persist) antes del efecto externo: si la
// entrega falla se loggea y la fase queda marcada igual — avanzar siempre
// antes que arriesgar un mass-ping duplicado.
type Scheduler struct {
	store    *storage.Store
	notifier Notifier
	now      Clock
	log      *zap.Logger

	voiceCheckAfterMinutes int
}

func NewScheduler(store *storage.Store, notifier Notifier, now Clock, log *zap.Logger, voiceCheckAfterMinutes int) *Scheduler {
	return &Scheduler{
		store:                  store,
		notifier:               notifier,
		now:                    now,
		log:                    log,
		voiceCheckAfterMinutes: voiceCheckAfterMinutes,
	}
}

// Run corre el loop de polling hasta que el contexto se cancele.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

type phase int

const (
	phasePrep phase = iota
	phasePing
	phaseVoiceCheck
	phaseCleanup
)

// errPhaseNotDue aborta el Update sin persistir ni reclamar nada.
var errPhaseNotDue = errors.New("phase not due")

func (p phase) String() string {
	switch p {
	case phasePrep:
		return "prep"
	case phasePing:
		return "ping"
	case phaseVoiceCheck:
		return "voice_check"
	default:
		return "cleanup"
	}
}

// Tick procesa cada raid una vez. Un raid atrasado puede cruzar varias fases
// en el mismo tick (se procesan en orden); el fallo de un raid nunca frena a
// los demás.
func (s *Scheduler) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("pánico en tick del scheduler", zap.Any("panic", r))
		}
	}()

	var ids []string
	_ = s.store.View(func(st *storage.State) error {
		for id, r := range st.Raids {
			if !r.CleanupDone {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Strings(ids)
	for _, id := range ids {
		s.processRaid(ctx, id)
	}
}

func (s *Scheduler) processRaid(ctx context.Context, raidID string) {
	fired := false
	for _, p := range []phase{phasePrep, phasePing, phaseVoiceCheck, phaseCleanup} {
		raid, claimed := s.claimPhase(raidID, p)
		if !claimed {
			continue
		}
		fired = true
		s.firePhase(ctx, raid, p)
	}
	if fired {
		s.refresh(ctx, raidID)
	}
}

// claimPhase re-verifica el flag bajo lock, lo marca y persiste. Devuelve una
// copia del raid para el efecto externo fuera del lock.
func (s *Scheduler) claimPhase(raidID string, p phase) (*domain.RaidEvent, bool) {
	now := s.now()
	var clone *domain.RaidEvent
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		if !s.phaseDue(raid, p, now) {
			return errPhaseNotDue
		}
		switch p {
		case phasePrep:
			raid.PrepDone = true
		case phasePing:
			raid.PingDone = true
		case phaseVoiceCheck:
			raid.VoiceCheckDone = true
		case phaseCleanup:
			raid.CleanupDone = true
		}
		clone = cloneRaid(raid)
		return nil
	})
	if err != nil {
		return nil, false
	}
	return clone, true
}

// phaseDue: umbral cruzado, flag todavía en false y fase anterior cumplida
// (el orden prep → ping → voice_check → cleanup es estricto).
func (s *Scheduler) phaseDue(r *domain.RaidEvent, p phase, now int64) bool {
	switch p {
	case phasePrep:
		return !r.PrepDone && now >= r.StartAt-int64(r.PrepMinutes)*60
	case phasePing:
		return !r.PingDone && r.PrepDone && now >= r.StartAt
	case phaseVoiceCheck:
		return !r.VoiceCheckDone && r.PingDone &&
			now >= r.StartAt+int64(s.voiceCheckAfterMinutes)*60
	case phaseCleanup:
		return !r.CleanupDone && r.VoiceCheckDone &&
			now >= r.StartAt+int64(r.CleanupMinutes)*60
	}
	return false
}

func (s *Scheduler) firePhase(ctx context.Context, raid *domain.RaidEvent, p phase) {
	log := s.log.With(zap.String("raid_id", raid.RaidID), zap.String("phase", p.String()))
	switch p {
	case phasePrep:
		tempRoleID, err := s.notifier.AssignPrepAccess(ctx, raid)
		if err != nil {
			log.Warn("asignación de acceso de prep falló", zap.Error(err))
		}
		if tempRoleID != 0 {
			s.persistTempRole(raid.RaidID, tempRoleID)
		}
	case phasePing:
		if err := s.notifier.SendMassPing(ctx, raid); err != nil {
			log.Warn("mass-ping falló", zap.Error(err))
		}
	case phaseVoiceCheck:
		report := s.attendance(ctx, raid)
		s.persistPresent(raid.RaidID, report)
		if err := s.notifier.SendAttendanceReport(ctx, raid, report); err != nil {
			log.Warn("entrega del reporte de asistencia falló", zap.Error(err))
		}
	case phaseCleanup:
		// terminal; el rol temporal se retiene a propósito hasta el loot split
	}
	log.Info("fase disparada", zap.Int64("start_at", raid.StartAt))
}

// attendance cruza los inscritos no ausentes contra los presentes en el
// vocal. Sin vocal configurado, todos los esperados cuentan como presentes.
func (s *Scheduler) attendance(ctx context.Context, raid *domain.RaidEvent) AttendanceReport {
	expected := make([]int64, 0, len(raid.Signups))
	for uid := range raid.Signups {
		if !raid.IsAbsent(uid) {
			expected = append(expected, uid)
		}
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i] < expected[j] })

	if raid.VoiceChannelID == 0 {
		return AttendanceReport{VoiceChecked: false, PresentExpected: expected}
	}
	occupants, err := s.notifier.VoiceOccupants(ctx, raid)
	if err != nil {
		s.log.Warn("lectura del canal de voz falló",
			zap.String("raid_id", raid.RaidID), zap.Error(err))
		return AttendanceReport{VoiceChecked: false, PresentExpected: expected}
	}
	inVoice := make(map[int64]struct{}, len(occupants))
	for _, uid := range occupants {
		inVoice[uid] = struct{}{}
	}
	expectedSet := make(map[int64]struct{}, len(expected))
	for _, uid := range expected {
		expectedSet[uid] = struct{}{}
	}

	report := AttendanceReport{VoiceChecked: true}
	for _, uid := range expected {
		if _, ok := inVoice[uid]; ok {
			report.PresentExpected = append(report.PresentExpected, uid)
		} else {
			report.MissingExpected = append(report.MissingExpected, uid)
		}
	}
	unexpected := make([]int64, 0)
	for uid := range inVoice {
		if _, ok := expectedSet[uid]; !ok {
			unexpected = append(unexpected, uid)
		}
	}
	sort.Slice(unexpected, func(i, j int) bool { return unexpected[i] < unexpected[j] })
	report.PresentUnexpected = unexpected
	return report
}

func (s *Scheduler) persistTempRole(raidID string, tempRoleID int64) {
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		raid.TempRoleID = tempRoleID
		return nil
	})
	if err != nil {
		s.log.Warn("no se pudo persistir el rol temporal",
			zap.String("raid_id", raidID), zap.Error(err))
	}
}

// persistPresent guarda la lista de presentes del voice-check; es el set que
// después precarga el loot split.
func (s *Scheduler) persistPresent(raidID string, report AttendanceReport) {
	err := s.store.Update(func(st *storage.State) error {
		raid, ok := st.Raids[raidID]
		if !ok {
			return domain.ErrRaidNotFound
		}
		raid.LastVoicePresentIDs = append([]int64(nil), report.PresentExpected...)
		return nil
	})
	if err != nil {
		s.log.Warn("no se pudo persistir la asistencia",
			zap.String("raid_id", raidID), zap.Error(err))
	}
}

func (s *Scheduler) refresh(ctx context.Context, raidID string) {
	var clone *domain.RaidEvent
	_ = s.store.View(func(st *storage.State) error {
		if raid, ok := st.Raids[raidID]; ok {
			clone = cloneRaid(raid)
		}
		return nil
	})
	if clone == nil {
		return
	}
	if err := s.notifier.RefreshRoster(ctx, clone); err != nil {
		s.log.Warn("re-render del anuncio falló",
			zap.String("raid_id", raidID), zap.Error(err))
	}
}
