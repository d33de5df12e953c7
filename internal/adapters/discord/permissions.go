package discord

import "github.com/bwmarrin/discordgo"

// isGuildAdmin: owner del server o bit Administrator.
func (r *Router) isGuildAdmin(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if g, _ := s.State.Guild(ic.GuildID); g != nil && ic.Member != nil && ic.Member.User != nil && ic.Member.User.ID == g.OwnerID {
		return true
	}
	roles, _ := s.GuildRoles(ic.GuildID)
	var perms int64
outer:
	for _, rid := range ic.Member.Roles {
		for _, ro := range roles {
			if ro.ID == rid {
				perms |= ro.Permissions
				if (perms & discordgo.PermissionAdministrator) != 0 {
					break outer
				}
			}
		}
	}
	return (perms & discordgo.PermissionAdministrator) != 0
}

// requirePerm: admins siempre pasan; el resto necesita uno de los roles
// configurados para la clave (con el fallback que resuelve el core).
func (r *Router) requirePerm(s *discordgo.Session, ic *discordgo.InteractionCreate, permKey string) bool {
	if r.isGuildAdmin(s, ic) {
		return true
	}
	guildID := parseSnowflake(ic.GuildID)
	if r.perms.Allowed(guildID, permKey, memberHasRole(ic.Member)) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 No tienes permisos para esta acción.")
	return false
}

// requireAdmin: solo owner/Administrator (perm_set).
func (r *Router) requireAdmin(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if r.isGuildAdmin(s, ic) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 Solo administradores.")
	return false
}
