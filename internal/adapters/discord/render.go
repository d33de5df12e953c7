package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/app/service"
	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

const embedFieldLimit = 1024

func statusEmoji(st domain.RaidStatus) string {
	switch st {
	case domain.RaidPinged:
		return "🟠"
	case domain.RaidClosed:
		return "🔴"
	default:
		return "🟢"
	}
}

// buildRaidEmbed arma el anuncio: un field por rol con mains y waitlist, más
// la lista de ausentes. Campos largos se parten para no pasar el límite de
// Discord.
func buildRaidEmbed(raid *domain.RaidEvent, tpl *domain.CompTemplate) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("%s **%s**\n🕒 <t:%d:F> (<t:%d:R>)", statusEmoji(raid.Status()), raid.Status(), raid.StartAt, raid.StartAt)
	if raid.Description != "" {
		desc += "\n\n" + raid.Description
	}
	if raid.ExtraMessage != "" {
		desc += "\n\n📣 " + raid.ExtraMessage
	}

	embed := &discordgo.MessageEmbed{
		Title:       raid.Title,
		Description: desc,
		Color:       0x2b6cb0,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Raid " + raid.RaidID + " · " + raid.TemplateName},
	}

	if tpl == nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⚠️ Template borrado",
			Value: "La composición `" + raid.TemplateName + "` ya no existe; el roster no se puede mostrar.",
		})
		return embed
	}

	for _, role := range tpl.Roles {
		var mains, waits []string
		for _, su := range sortedSignups(raid, role.Key) {
			line := "• " + mention(su.UserID)
			if su.IP != nil {
				line += fmt.Sprintf(" (IP %d)", *su.IP)
			}
			if su.Status == domain.SignupMain {
				mains = append(mains, line)
			} else {
				waits = append(waits, "⏳ "+mention(su.UserID))
			}
		}
		name := fmt.Sprintf("%s (%d/%d)", role.Label, len(mains), role.Slots)
		lines := append(mains, waits...)
		if len(lines) == 0 {
			lines = []string{"—"}
		}
		for i, chunk := range chunkLines(lines, embedFieldLimit) {
			fieldName := name
			if i > 0 {
				fieldName = name + " (cont.)"
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: fieldName, Value: chunk, Inline: true,
			})
		}
	}

	if len(raid.Absent) > 0 {
		var lines []string
		for uid := range raid.Absent {
			lines = append(lines, "⛔ "+mention(uid))
		}
		for _, chunk := range chunkLines(lines, embedFieldLimit) {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Ausentes", Value: chunk})
		}
	}
	return embed
}

// sortedSignups: los signups de un rol por joined_at (orden FIFO visible).
func sortedSignups(raid *domain.RaidEvent, roleKey string) []*domain.Signup {
	var out []*domain.Signup
	for _, su := range raid.Signups {
		if su.RoleKey == roleKey {
			out = append(out, su)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].JoinedAt < out[j-1].JoinedAt; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	for _, l := range lines {
		if cur.Len() > 0 && cur.Len()+len(l)+1 > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(l)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// raidComponents: select de roles (sin raid_leader, que se ocupa al abrir) y
// los botones de salir/ausente/DM.
func raidComponents(raid *domain.RaidEvent, tpl *domain.CompTemplate) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	if tpl != nil && raid.Status() == domain.RaidOpen {
		opts := make([]discordgo.SelectMenuOption, 0, len(tpl.Roles))
		for _, role := range tpl.Roles {
			if role.Key == domain.RoleKeyRaidLeader {
				continue
			}
			desc := fmt.Sprintf("%d slots", role.Slots)
			if role.IPRequired {
				desc += " · pide IP"
			}
			opts = append(opts, discordgo.SelectMenuOption{
				Label:       truncate(role.Label, 100),
				Value:       role.Key,
				Description: desc,
			})
		}
		if len(opts) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    "raid_role:" + raid.RaidID,
					Placeholder: "Elige tu rol para anotarte",
					Options:     opts,
				},
			}})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: "raid_leave:" + raid.RaidID, Label: "Salir", Style: discordgo.DangerButton},
			discordgo.Button{CustomID: "raid_absent:" + raid.RaidID, Label: "Ausente", Style: discordgo.SecondaryButton},
			discordgo.Button{CustomID: "raid_notify:" + raid.RaidID, Label: "🔔 DM", Style: discordgo.SecondaryButton},
		}})
	}
	return rows
}

// publishRaid manda el anuncio, abre el thread de discusión y persiste las
// referencias externas.
func (r *Router) publishRaid(channelID string, raid *domain.RaidEvent, tpl *domain.CompTemplate) error {
	msg, err := r.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildRaidEmbed(raid, tpl)},
		Components: raidComponents(raid, tpl),
	})
	if err != nil {
		return err
	}
	threadID := int64(0)
	thread, err := r.s.MessageThreadStartComplex(channelID, msg.ID, &discordgo.ThreadStart{
		Name:                raid.Title + " · " + service.FormatParisShort(raid.StartAt),
		AutoArchiveDuration: 1440,
	})
	if err != nil {
		r.log.Warn("no se pudo abrir el thread del raid", zap.String("raid_id", raid.RaidID), zap.Error(err))
	} else {
		threadID = parseSnowflake(thread.ID)
	}
	return r.raids.AttachMessage(raid.RaidID, parseSnowflake(channelID), parseSnowflake(msg.ID), threadID)
}

// refreshRaidMessage re-renderiza el anuncio tras cualquier cambio de roster
// o de fase.
func (r *Router) refreshRaidMessage(raidID string) {
	raid, tpl, err := r.raids.Get(raidID)
	if err != nil || raid.MessageID == 0 {
		return
	}
	embeds := []*discordgo.MessageEmbed{buildRaidEmbed(raid, tpl)}
	components := raidComponents(raid, tpl)
	_, err = r.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    snowflake(raid.ChannelID),
		ID:         snowflake(raid.MessageID),
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		r.log.Warn("re-render del raid falló", zap.String("raid_id", raidID), zap.Error(err))
	}
}

// buildLootEmbed: desglose completo del split para la confirmación.
func buildLootEmbed(raidID string, in service.LootInput, b service.LootBreakdown) *discordgo.MessageEmbed {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 Cofre neto: **%s** (impuesto %.1f%%)\n", service.FormatSilver(b.ChestNet), in.ChestTaxPct)
	fmt.Fprintf(&sb, "👜 Bolsas: **%s** → total neto **%s**\n", service.FormatSilver(in.SilverBags), service.FormatSilver(b.TotalNet))
	if in.ScoutID != 0 {
		fmt.Fprintf(&sb, "🔭 Scout %s: **%s** (rango %s–%s)\n", mention(in.ScoutID),
			service.FormatSilver(b.ScoutPaid), service.FormatSilver(b.ScoutMin), service.FormatSilver(b.ScoutMax))
	}
	if len(in.Maps) > 0 {
		fmt.Fprintf(&sb, "🗺️ Mapas (%d, %d terminados): **-%s**\n", len(in.Maps), b.FinishedMaps, service.FormatSilver(b.MapsCost))
	}
	fmt.Fprintf(&sb, "\n➗ A repartir: **%s**\n", service.FormatSilver(b.PostMaps))
	fmt.Fprintf(&sb, "Parte por jugador: **%s**\n", service.FormatSilver(b.Share))
	if b.RLPaid > 0 {
		fmt.Fprintf(&sb, "Raid leader %s (+%.1f%%): **%s**\n", mention(in.RaidLeaderID), in.RLBonusPct, service.FormatSilver(b.RLPaid))
	}

	var lines []string
	for _, uid := range sortedPayoutIDs(b.Payouts) {
		lines = append(lines, fmt.Sprintf("%s → %s", mention(uid), service.FormatSilver(b.Payouts[uid])))
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Reparto del botín · " + raidID,
		Description: sb.String(),
		Color:       0xd69e2e,
	}
	for i, chunk := range chunkLines(lines, embedFieldLimit) {
		name := "Pagos"
		if i > 0 {
			name = "Pagos (cont.)"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: chunk})
	}
	return embed
}

func sortedPayoutIDs(payouts map[int64]int64) []int64 {
	ids := make([]int64, 0, len(payouts))
	for id := range payouts {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}
