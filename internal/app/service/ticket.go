package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

// TicketService: ciclo de vida de tickets de soporte. Regla dura: primero el
// room (canal/thread), después el registro — si el provisioner falla no queda
// ningún ticket huérfano persistido.
type TicketService struct {
	store *storage.Store
	rooms RoomProvisioner
	now   Clock
	log   *zap.Logger
}

func NewTicketService(store *storage.Store, rooms RoomProvisioner, now Clock, log *zap.Logger) *TicketService {
	return &TicketService{store: store, rooms: rooms, now: now, log: log}
}

func newTicketID() string { return timeID("T") }

// Configure define el esquema de tickets del guild (modo, categoría, roles
// de soporte).
func (s *TicketService) Configure(guildID int64, cfg domain.TicketConfig) error {
	if cfg.Mode != domain.TicketModeThread && cfg.Mode != domain.TicketModeChannel {
		return domain.ErrInvalidSpec
	}
	return s.store.Update(func(st *storage.State) error {
		c := cfg
		st.TicketConfigs[guildID] = &c
		return nil
	})
}

// Config devuelve la config del guild, con default a thread privado.
func (s *TicketService) Config(guildID int64) domain.TicketConfig {
	cfg := domain.TicketConfig{Mode: domain.TicketModeThread}
	_ = s.store.View(func(st *storage.State) error {
		if c, ok := st.TicketConfigs[guildID]; ok {
			cfg = *c
		}
		return nil
	})
	return cfg
}

// Open crea el ticket: valida que el owner no tenga otro abierto, crea el
// room afuera del lock y recién ahí persiste el registro. Si entre medio
// apareció otro ticket del mismo owner, el room se desarma best-effort.
func (s *TicketService) Open(ctx context.Context, guildID, ownerID int64) (*domain.TicketRecord, error) {
	var hasOpen bool
	_ = s.store.View(func(st *storage.State) error {
		hasOpen = openTicketFor(st, guildID, ownerID) != nil
		return nil
	})
	if hasOpen {
		return nil, domain.ErrTicketAlreadyOpen
	}

	cfg := s.Config(guildID)
	channelID, err := s.rooms.CreateTicketRoom(ctx, guildID, ownerID, cfg)
	if err != nil {
		return nil, fmt.Errorf("crear room del ticket: %w", err)
	}

	rec := &domain.TicketRecord{
		TicketID:  newTicketID(),
		GuildID:   guildID,
		ChannelID: channelID,
		OwnerID:   ownerID,
		Status:    domain.TicketOpen,
		CreatedAt: s.now(),
	}
	err = s.store.Update(func(st *storage.State) error {
		if openTicketFor(st, guildID, ownerID) != nil {
			return domain.ErrTicketAlreadyOpen
		}
		st.Tickets[rec.TicketID] = rec
		st.TicketEvents[rec.TicketID] = nil
		return nil
	})
	if err != nil {
		if derr := s.rooms.DeleteTicketRoom(ctx, channelID); derr != nil {
			s.log.Warn("no se pudo desarmar el room del ticket duplicado",
				zap.Int64("channel_id", channelID), zap.Error(derr))
		}
		return nil, err
	}
	s.log.Info("ticket abierto",
		zap.String("ticket_id", rec.TicketID),
		zap.Int64("guild_id", guildID),
		zap.Int64("owner_id", ownerID))
	return rec, nil
}

func openTicketFor(st *storage.State, guildID, ownerID int64) *domain.TicketRecord {
	for _, t := range st.Tickets {
		if t.GuildID == guildID && t.OwnerID == ownerID && t.Status == domain.TicketOpen {
			return t
		}
	}
	return nil
}

// RecordEvent captura un mensaje (o edición/borrado) dentro del room de un
// ticket abierto; materia prima del transcript. Canales sin ticket se
// ignoran en silencio.
func (s *TicketService) RecordEvent(ev domain.TicketSnapshot) error {
	return s.store.Update(func(st *storage.State) error {
		t := st.TicketByChannel(ev.ChannelID)
		if t == nil || t.Status != domain.TicketOpen {
			return nil
		}
		ev.TicketID = t.TicketID
		if ev.CreatedAt == 0 {
			ev.CreatedAt = s.now()
		}
		st.TicketEvents[t.TicketID] = append(st.TicketEvents[t.TicketID], ev)
		return nil
	})
}

// Close finaliza el ticket: genera el transcript, persiste el estado
// terminal y recién después archiva o borra el room (best-effort). Un ticket
// cerrado no se reabre; se crea otro.
func (s *TicketService) Close(ctx context.Context, channelID int64, deleteRoom bool) (*domain.TicketRecord, error) {
	var rec *domain.TicketRecord
	err := s.store.Update(func(st *storage.State) error {
		t := st.TicketByChannel(channelID)
		if t == nil {
			return domain.ErrTicketNotFound
		}
		if t.Status != domain.TicketOpen {
			return domain.ErrTicketTerminal
		}
		t.ClosedAt = s.now()
		if deleteRoom {
			t.Status = domain.TicketDeleted
		} else {
			t.Status = domain.TicketClosed
		}
		t.TranscriptMarkdown = renderTranscript(t, st.TicketEvents[t.TicketID])
		cp := *t
		rec = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}

	if deleteRoom {
		if err := s.rooms.DeleteTicketRoom(ctx, channelID); err != nil {
			s.log.Warn("borrado del room falló", zap.Int64("channel_id", channelID), zap.Error(err))
		}
	} else {
		if err := s.rooms.ArchiveTicketRoom(ctx, channelID, rec.OwnerID); err != nil {
			s.log.Warn("archivado del room falló", zap.Int64("channel_id", channelID), zap.Error(err))
		}
	}
	s.log.Info("ticket finalizado",
		zap.String("ticket_id", rec.TicketID),
		zap.String("status", string(rec.Status)))
	return rec, nil
}

// Get devuelve el ticket de un canal, abierto o no.
func (s *TicketService) Get(channelID int64) (*domain.TicketRecord, error) {
	var rec *domain.TicketRecord
	err := s.store.View(func(st *storage.State) error {
		t := st.TicketByChannel(channelID)
		if t == nil {
			return domain.ErrTicketNotFound
		}
		cp := *t
		rec = &cp
		return nil
	})
	return rec, err
}

// renderTranscript arma el markdown del historial: una línea por evento, con
// ediciones y borrados anotados.
func renderTranscript(t *domain.TicketRecord, events []domain.TicketSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Ticket %s\n\n", t.TicketID)
	fmt.Fprintf(&b, "- Owner: <@%d>\n", t.OwnerID)
	fmt.Fprintf(&b, "- Abierto: %s\n", time.Unix(t.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Cerrado: %s\n\n", time.Unix(t.ClosedAt, 0).UTC().Format(time.RFC3339))
	for _, ev := range events {
		ts := time.Unix(ev.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05")
		name := ev.AuthorName
		if name == "" {
			name = fmt.Sprintf("<@%d>", ev.AuthorID)
		}
		switch ev.EventType {
		case domain.TicketEventMessageEdit:
			fmt.Fprintf(&b, "[%s] %s (editado): %s\n", ts, name, ev.Content)
			if ev.PreviousContent != "" {
				fmt.Fprintf(&b, "    antes: %s\n", ev.PreviousContent)
			}
		case domain.TicketEventMessageDelete:
			fmt.Fprintf(&b, "[%s] %s (borrado): %s\n", ts, name, ev.PreviousContent)
		default:
			fmt.Fprintf(&b, "[%s] %s: %s\n", ts, name, ev.Content)
		}
	}
	return b.String()
}
