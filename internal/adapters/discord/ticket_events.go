package discord

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// Capturas para el transcript: cada mensaje (y edición/borrado) dentro de un
// room de ticket abierto se persiste como snapshot. Los canales que no son
// tickets se descartan en el servicio sin costo.

func (r *Router) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID != r.guildID || m.Author == nil || m.Author.Bot {
		return
	}
	err := r.tickets.RecordEvent(domain.TicketSnapshot{
		EventType:  domain.TicketEventMessage,
		ChannelID:  parseSnowflake(m.ChannelID),
		MessageID:  parseSnowflake(m.ID),
		AuthorID:   parseSnowflake(m.Author.ID),
		AuthorName: m.Author.Username,
		Content:    m.Content,
	})
	if err != nil {
		r.log.Warn("snapshot de mensaje falló", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

func (r *Router) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.GuildID != r.guildID || m.Author == nil || m.Author.Bot {
		return
	}
	prev := ""
	if m.BeforeUpdate != nil {
		prev = m.BeforeUpdate.Content
	}
	err := r.tickets.RecordEvent(domain.TicketSnapshot{
		EventType:       domain.TicketEventMessageEdit,
		ChannelID:       parseSnowflake(m.ChannelID),
		MessageID:       parseSnowflake(m.ID),
		AuthorID:        parseSnowflake(m.Author.ID),
		AuthorName:      m.Author.Username,
		Content:         m.Content,
		PreviousContent: prev,
	})
	if err != nil {
		r.log.Warn("snapshot de edición falló", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

func (r *Router) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.GuildID != r.guildID {
		return
	}
	prev := ""
	authorID := int64(0)
	authorName := ""
	if m.BeforeDelete != nil {
		prev = m.BeforeDelete.Content
		if m.BeforeDelete.Author != nil {
			if m.BeforeDelete.Author.Bot {
				return
			}
			authorID = parseSnowflake(m.BeforeDelete.Author.ID)
			authorName = m.BeforeDelete.Author.Username
		}
	}
	err := r.tickets.RecordEvent(domain.TicketSnapshot{
		EventType:       domain.TicketEventMessageDelete,
		ChannelID:       parseSnowflake(m.ChannelID),
		MessageID:       parseSnowflake(m.ID),
		AuthorID:        authorID,
		AuthorName:      authorName,
		PreviousContent: prev,
	})
	if err != nil {
		r.log.Warn("snapshot de borrado falló", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}
