package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/app/service"
	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// El Router implementa service.Notifier: los efectos externos de las fases
// del scheduler. Todo best-effort; el scheduler loggea y avanza igual.

// AssignPrepAccess crea (o reusa) el rol temporal del raid, habilita el
// canal de voz para ese rol y se lo asigna a cada inscrito no ausente.
func (r *Router) AssignPrepAccess(_ context.Context, raid *domain.RaidEvent) (int64, error) {
	roleID := raid.TempRoleID
	if roleID == 0 {
		role, err := r.s.GuildRoleCreate(r.guildID, &discordgo.RoleParams{
			Name:        "raid-" + raid.RaidID,
			Mentionable: boolPtr(true),
		})
		if err != nil {
			return 0, fmt.Errorf("crear rol temporal: %w", err)
		}
		roleID = parseSnowflake(role.ID)
	}

	var errs []error
	if raid.VoiceChannelID != 0 {
		err := r.s.ChannelPermissionSet(
			snowflake(raid.VoiceChannelID),
			snowflake(roleID),
			discordgo.PermissionOverwriteTypeRole,
			discordgo.PermissionViewChannel|discordgo.PermissionVoiceConnect|discordgo.PermissionVoiceSpeak,
			0,
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("overwrite de voz: %w", err))
		}
	}
	for uid := range raid.Signups {
		if raid.IsAbsent(uid) {
			continue
		}
		if err := r.s.GuildMemberRoleAdd(r.guildID, snowflake(uid), snowflake(roleID)); err != nil {
			errs = append(errs, fmt.Errorf("rol a %d: %w", uid, err))
		}
	}
	return roleID, errors.Join(errs...)
}

// SendMassPing: el mass-up al thread (o canal) más los DMs opt-in.
func (r *Router) SendMassPing(_ context.Context, raid *domain.RaidEvent) error {
	var mentions []string
	for uid := range raid.Signups {
		if !raid.IsAbsent(uid) {
			mentions = append(mentions, mention(uid))
		}
	}
	content := fmt.Sprintf("⚔️ **MASS UP — %s** ⚔️\n🕒 <t:%d:R>", raid.Title, raid.StartAt)
	if raid.VoiceChannelID != 0 {
		content += "\n🎧 Vocal: <#" + snowflake(raid.VoiceChannelID) + ">"
	}
	if len(mentions) > 0 {
		content += "\n" + strings.Join(mentions, " ")
	}

	target := raid.ThreadID
	if target == 0 {
		target = raid.ChannelID
	}
	var errs []error
	if target != 0 {
		if _, err := r.s.ChannelMessageSend(snowflake(target), content); err != nil {
			errs = append(errs, fmt.Errorf("mass-ping al canal: %w", err))
		}
	}
	dm := fmt.Sprintf("⚔️ ¡**%s** empieza ya! <t:%d:R>", raid.Title, raid.StartAt)
	for uid := range raid.DMNotifyUsers {
		if raid.IsAbsent(uid) {
			continue
		}
		if err := SendDM(r.s, uid, dm); err != nil {
			r.log.Debug("DM de mass-up falló", zap.Int64("user_id", uid), zap.Error(err))
		}
	}
	return errors.Join(errs...)
}

// VoiceOccupants lista los presentes en el vocal del raid (sin bots).
func (r *Router) VoiceOccupants(_ context.Context, raid *domain.RaidEvent) ([]int64, error) {
	g, err := r.s.State.Guild(r.guildID)
	if err != nil {
		return nil, err
	}
	voiceID := snowflake(raid.VoiceChannelID)
	var out []int64
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != voiceID {
			continue
		}
		if m, err := r.s.State.Member(r.guildID, vs.UserID); err == nil && m.User != nil && m.User.Bot {
			continue
		}
		out = append(out, parseSnowflake(vs.UserID))
	}
	return out, nil
}

// SendAttendanceReport entrega el reporte al RL: DM → thread → canal.
func (r *Router) SendAttendanceReport(_ context.Context, raid *domain.RaidEvent, report service.AttendanceReport) error {
	content := formatAttendance(raid, report)

	leaderID := raid.CreatedBy
	for uid, su := range raid.Signups {
		if su.RoleKey == domain.RoleKeyRaidLeader {
			leaderID = uid
			break
		}
	}
	if leaderID != 0 {
		if err := SendDM(r.s, leaderID, content); err == nil {
			return nil
		}
	}
	if raid.ThreadID != 0 {
		if _, err := r.s.ChannelMessageSend(snowflake(raid.ThreadID), content); err == nil {
			return nil
		}
	}
	if raid.ChannelID != 0 {
		_, err := r.s.ChannelMessageSend(snowflake(raid.ChannelID), content)
		return err
	}
	return fmt.Errorf("sin destino para el reporte del raid %s", raid.RaidID)
}

func formatAttendance(raid *domain.RaidEvent, report service.AttendanceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **Asistencia — %s**\n", raid.Title)
	if !report.VoiceChecked {
		b.WriteString("ℹ️ Sin vocal configurado: todos los anotados cuentan como presentes.\n")
	}
	writeUserList(&b, "✅ Presentes", report.PresentExpected)
	if report.VoiceChecked {
		writeUserList(&b, "❌ Faltaron", report.MissingExpected)
		writeUserList(&b, "👀 En voz sin anotarse", report.PresentUnexpected)
	}
	return b.String()
}

func writeUserList(b *strings.Builder, label string, ids []int64) {
	if len(ids) == 0 {
		return
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = mention(id)
	}
	fmt.Fprintf(b, "%s (%d): %s\n", label, len(ids), strings.Join(names, " "))
}

// ReleaseTempAccess borra el rol temporal y el overwrite de voz; se llama al
// confirmar el loot split, no en el cleanup.
func (r *Router) ReleaseTempAccess(_ context.Context, raid *domain.RaidEvent) error {
	var errs []error
	if raid.TempRoleID != 0 {
		if err := r.s.GuildRoleDelete(r.guildID, snowflake(raid.TempRoleID)); err != nil {
			errs = append(errs, fmt.Errorf("borrar rol temporal: %w", err))
		}
	}
	if raid.VoiceChannelID != 0 && raid.TempRoleID != 0 {
		if err := r.s.ChannelPermissionDelete(snowflake(raid.VoiceChannelID), snowflake(raid.TempRoleID)); err != nil {
			errs = append(errs, fmt.Errorf("quitar overwrite: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RefreshRoster re-renderiza el anuncio (lo llama el scheduler tras cada
// fase disparada).
func (r *Router) RefreshRoster(_ context.Context, raid *domain.RaidEvent) error {
	r.refreshRaidMessage(raid.RaidID)
	return nil
}

func boolPtr(v bool) *bool { return &v }
