package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// El Router también implementa service.RoomProvisioner: crea y desarma los
// rooms de tickets. En modo thread, CategoryID es el canal de texto que
// hospeda los threads privados; en modo canal es la categoría contenedora.

func (r *Router) CreateTicketRoom(_ context.Context, guildID, ownerID int64, cfg domain.TicketConfig) (int64, error) {
	owner, err := r.s.GuildMember(snowflake(guildID), snowflake(ownerID))
	if err != nil {
		return 0, fmt.Errorf("leer owner: %w", err)
	}
	name := "ticket-" + owner.User.Username

	if cfg.Mode == domain.TicketModeChannel {
		overwrites := []*discordgo.PermissionOverwrite{
			{
				ID:   snowflake(guildID), // @everyone
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    snowflake(ownerID),
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
			},
		}
		for _, roleID := range cfg.SupportRoleIDs {
			overwrites = append(overwrites, &discordgo.PermissionOverwrite{
				ID:    snowflake(roleID),
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
			})
		}
		ch, err := r.s.GuildChannelCreateComplex(snowflake(guildID), discordgo.GuildChannelCreateData{
			Name:                 name,
			Type:                 discordgo.ChannelTypeGuildText,
			ParentID:             snowflake(cfg.CategoryID),
			PermissionOverwrites: overwrites,
		})
		if err != nil {
			return 0, fmt.Errorf("crear canal del ticket: %w", err)
		}
		return parseSnowflake(ch.ID), nil
	}

	// thread privado
	if cfg.CategoryID == 0 {
		return 0, fmt.Errorf("tickets en modo thread sin canal host configurado")
	}
	th, err := r.s.ThreadStartComplex(snowflake(cfg.CategoryID), &discordgo.ThreadStart{
		Name:                name,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
		AutoArchiveDuration: 10080,
		Invitable:           false,
	})
	if err != nil {
		return 0, fmt.Errorf("crear thread del ticket: %w", err)
	}
	if err := r.s.ThreadMemberAdd(th.ID, snowflake(ownerID)); err != nil {
		_, _ = r.s.ChannelDelete(th.ID)
		return 0, fmt.Errorf("agregar owner al thread: %w", err)
	}
	return parseSnowflake(th.ID), nil
}

func (r *Router) ArchiveTicketRoom(_ context.Context, channelID, ownerID int64) error {
	ch, err := r.s.Channel(snowflake(channelID))
	if err != nil {
		return err
	}
	if ch.IsThread() {
		archived := true
		locked := true
		_, err = r.s.ChannelEditComplex(ch.ID, &discordgo.ChannelEdit{
			Archived: &archived,
			Locked:   &locked,
		})
		return err
	}
	// canal: lo renombramos y le sacamos la escritura al owner
	if _, err = r.s.ChannelEditComplex(ch.ID, &discordgo.ChannelEdit{Name: "cerrado-" + ch.Name}); err != nil {
		return err
	}
	return r.s.ChannelPermissionSet(ch.ID, snowflake(ownerID),
		discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionViewChannel|discordgo.PermissionReadMessageHistory,
		discordgo.PermissionSendMessages)
}

func (r *Router) DeleteTicketRoom(_ context.Context, channelID int64) error {
	_, err := r.s.ChannelDelete(snowflake(channelID))
	return err
}
