package service

import (
	"context"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// Clock en epoch-seconds; los tests inyectan una fija.
type Clock func() int64

// Notifier son los efectos externos del scheduler. Lo implementa
// internal/adapters/discord; todo es best-effort, un fallo se loggea y la
// fase avanza igual (política forward-progress, nada de reintentos que
// dupliquen mass-pings).
type Notifier interface {
	// AssignPrepAccess crea (si falta) el rol temporal del raid, aplica el
	// overwrite de voz y asigna el rol a cada inscrito no ausente. Devuelve
	// el id del rol temporal para persistirlo en el raid.
	AssignPrepAccess(ctx context.Context, raid *domain.RaidEvent) (tempRoleID int64, err error)
	// SendMassPing manda el mass-up al canal/thread + DMs opt-in.
	SendMassPing(ctx context.Context, raid *domain.RaidEvent) error
	// VoiceOccupants lista los presentes en el vocal del raid (sin bots).
	VoiceOccupants(ctx context.Context, raid *domain.RaidEvent) ([]int64, error)
	// SendAttendanceReport entrega el reporte al RL (DM → thread → canal).
	SendAttendanceReport(ctx context.Context, raid *domain.RaidEvent, report AttendanceReport) error
	// ReleaseTempAccess desarma rol temporal y overwrite tras el loot split.
	ReleaseTempAccess(ctx context.Context, raid *domain.RaidEvent) error
	// RefreshRoster re-renderiza el anuncio del raid (fuera del lock).
	RefreshRoster(ctx context.Context, raid *domain.RaidEvent) error
}

// AttendanceReport es el resultado del voice-check (T+N minutos).
type AttendanceReport struct {
	VoiceChecked      bool // false cuando el raid no tiene vocal definido
	PresentExpected   []int64
	PresentUnexpected []int64
	MissingExpected   []int64
}

// RoomProvisioner crea/cierra el canal o thread privado de un ticket.
// Lo implementa el adapter; si la creación falla no se persiste registro.
type RoomProvisioner interface {
	CreateTicketRoom(ctx context.Context, guildID, ownerID int64, cfg domain.TicketConfig) (channelID int64, err error)
	ArchiveTicketRoom(ctx context.Context, channelID, ownerID int64) error
	DeleteTicketRoom(ctx context.Context, channelID int64) error
}

// HasRoleFunc: predicado de membresía que aporta el caller (el core no
// conoce la API de Discord).
type HasRoleFunc func(roleIDs []int64) bool
