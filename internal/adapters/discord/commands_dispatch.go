// Despacho de InteractionApplicationCommand: acá solo se parsea la
// interacción y se delega a los servicios; la lógica vive en el core.
package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/app/service"
	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

const helpText = "**Banco**: `/bal` `/pay` `/undo` `/bank_add` `/bank_remove` `/bank_add_split` `/bank_remove_split`\n" +
	"**Raids**: `/raid_open` `/raid_edit` `/raid_close` `/raid_list` `/loot_split` `/loot_scout_limits`\n" +
	"**Compos**: `/comp_create` `/comp_edit` `/comp_delete` `/comp_list`\n" +
	"**Tickets**: `/ticket_setup` `/ticket_open` `/ticket_close`\n" +
	"**Admin**: `/perm_set`"

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	cmd := ic.ApplicationCommandData()
	r.log.Info("slash", zap.String("cmd", cmd.Name), zap.String("by", ic.Member.User.ID))

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic en slash", zap.String("cmd", cmd.Name), zap.Any("panic", rec))
			ReplyEphemeral(s, ic, "⚠️ Ocurrió un error inesperado. Contacta con un administrador.")
		}
	}()

	defer step("slash." + cmd.Name)()
	_ = DeferEphemeral(s, ic)
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	guildID := parseSnowflake(ic.GuildID)
	userID := parseSnowflake(ic.Member.User.ID)

	switch cmd.Name {

	case "ping":
		ReplyEphemeral(s, ic, "🏓 Pong!")

	case "help":
		ReplyEphemeral(s, ic, helpText)

	// ---- banco ----
	case "bal":
		bal, err := r.bank.Balance(ctx, guildID, userID)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No pude leer tu balance: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "💰 Tu balance: **"+service.FormatSilver(bal)+"** de plata.")

	case "pay":
		to, _ := optUser(ic, "to")
		amount, _ := optInt(ic, "amount")
		toIsBot := false
		if m, err := s.GuildMember(ic.GuildID, snowflake(to)); err == nil && m.User != nil {
			toIsBot = m.User.Bot
		}
		if err := r.bank.Pay(ctx, guildID, userID, to, amount, toIsBot); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo transferir: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Transferiste **"+service.FormatSilver(amount)+"** a "+mention(to)+".")

	case "undo":
		action, err := r.bank.Undo(ctx, guildID, userID)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo deshacer: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "↩️ Acción `"+action.ActionID+"` deshecha ("+string(action.ActionType)+", "+
			service.FormatSilver(sumAbsDeltas(action.Deltas))+" sobre "+itoa(len(action.Deltas))+").")

	case "bank_add", "bank_remove", "bank_add_split", "bank_remove_split":
		if !r.requirePerm(s, ic, domain.PermBankManager) {
			return
		}
		amount, _ := optInt(ic, "amount")
		rawTargets, _ := optStr(ic, "targets")
		note, _ := optStr(ic, "note")
		actionType := map[string]domain.BankActionType{
			"bank_add":          domain.BankAdd,
			"bank_remove":       domain.BankRemove,
			"bank_add_split":    domain.BankAddSplit,
			"bank_remove_split": domain.BankRemoveSplit,
		}[cmd.Name]
		action, err := r.bank.MassChange(ctx, guildID, userID, actionType, amount, parseIDs(rawTargets), note)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo aplicar: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Acción `"+action.ActionID+"` aplicada sobre "+itoa(len(action.Deltas))+
			". Tienes 15 min para `/undo`.")

	// ---- composiciones ----
	case "comp_create", "comp_edit":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		name, _ := optStr(ic, "name")
		content, _ := optStr(ic, "content")
		rolesRaw, _ := optStr(ic, "roles")
		desc, _ := optStr(ic, "description")
		reqRaw, _ := optStr(ic, "required_roles")
		in := service.SaveTemplateInput{
			Name:                name,
			Description:         desc,
			ContentType:         domain.ContentType(content),
			CreatedBy:           userID,
			Spec:                strings.ReplaceAll(rolesRaw, "|", "\n"),
			RaidRequiredRoleIDs: parseIDs(reqRaw),
		}
		var tpl *domain.CompTemplate
		var warnings []string
		var err error
		if cmd.Name == "comp_create" {
			tpl, warnings, err = r.templates.Create(in)
		} else {
			tpl, warnings, err = r.templates.Update(in)
		}
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo guardar el template: "+err.Error())
			return
		}
		msg := "✅ Template **" + tpl.Name + "** guardado con " + itoa(len(tpl.Roles)) + " roles."
		if len(warnings) > 0 {
			msg += "\n⚠️ " + strings.Join(warnings, "\n⚠️ ")
		}
		ReplyEphemeral(s, ic, msg)

	case "comp_delete":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		name, _ := optStr(ic, "name")
		if err := r.templates.Delete(name); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo borrar: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "🗑️ Template **"+name+"** borrado.")

	case "comp_list":
		tpls := r.templates.List()
		if len(tpls) == 0 {
			ReplyEphemeral(s, ic, "ℹ️ No hay templates todavía. Crea uno con `/comp_create`.")
			return
		}
		var b strings.Builder
		for _, t := range tpls {
			slots := 0
			for _, role := range t.Roles {
				slots += role.Slots
			}
			b.WriteString("• **" + t.Name + "** (" + string(t.ContentType) + ", " +
				itoa(len(t.Roles)) + " roles, " + itoa(slots) + " slots)\n")
		}
		ReplyEphemeral(s, ic, b.String())

	// ---- raids ----
	case "raid_open":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		tplName, _ := optStr(ic, "template")
		title, _ := optStr(ic, "title")
		startRaw, _ := optStr(ic, "start")
		desc, _ := optStr(ic, "description")
		extra, _ := optStr(ic, "extra")
		voiceID, _ := optChannel(ic, "voice")
		prep, _ := optInt(ic, "prep_minutes")
		cleanup, _ := optInt(ic, "cleanup_minutes")

		startAt, err := service.ParseParisTime(startRaw)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ "+err.Error())
			return
		}
		raid, err := r.raids.Open(service.OpenRaidInput{
			TemplateName:   tplName,
			Title:          title,
			Description:    desc,
			ExtraMessage:   extra,
			StartAt:        startAt,
			CreatedBy:      userID,
			VoiceChannelID: voiceID,
			PrepMinutes:    int(prep),
			CleanupMinutes: int(cleanup),
		})
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo abrir el raid: "+err.Error())
			return
		}
		_, tpl, _ := r.raids.Get(raid.RaidID)
		if err := r.publishRaid(ic.ChannelID, raid, tpl); err != nil {
			ReplyEphemeral(s, ic, "⚠️ Raid creado pero no pude publicar el anuncio: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Raid **"+raid.RaidID+"** abierto. Inicio <t:"+snowflake(raid.StartAt)+":F>.")

	case "raid_edit":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		raidID, _ := optStr(ic, "raid")
		var in service.EditRaidInput
		if v, ok := optStr(ic, "title"); ok {
			in.Title = &v
		}
		if v, ok := optStr(ic, "description"); ok {
			in.Description = &v
		}
		if v, ok := optStr(ic, "start"); ok {
			startAt, err := service.ParseParisTime(v)
			if err != nil {
				ReplyEphemeral(s, ic, "⚠️ "+err.Error())
				return
			}
			in.StartAt = &startAt
		}
		if _, err := r.raids.Edit(raidID, in); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo editar: "+err.Error())
			return
		}
		go r.refreshRaidMessage(raidID)
		ReplyEphemeral(s, ic, "✅ Raid **"+raidID+"** actualizado.")

	case "raid_close":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		raidID, _ := optStr(ic, "raid")
		if err := r.raids.Close(raidID); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo cerrar: "+err.Error())
			return
		}
		go r.refreshRaidMessage(raidID)
		ReplyEphemeral(s, ic, "🔒 Raid **"+raidID+"** cerrado.")

	case "raid_list":
		raids := r.raids.List(true)
		if len(raids) == 0 {
			ReplyEphemeral(s, ic, "ℹ️ No hay raids activos.")
			return
		}
		var b strings.Builder
		for _, raid := range raids {
			b.WriteString(statusEmoji(raid.Status()) + " `" + raid.RaidID + "` **" + raid.Title +
				"** — <t:" + snowflake(raid.StartAt) + ":R> (" + itoa(len(raid.Signups)) + " anotados)\n")
		}
		ReplyEphemeral(s, ic, b.String())

	case "loot_scout_limits":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		var limits domain.LootLimits
		limits.ScoutPct, _ = optNumber(ic, "scout_pct")
		limits.ScoutMin, _ = optInt(ic, "scout_min")
		limits.ScoutMax, _ = optInt(ic, "scout_max")
		limits.RLBonusPct, _ = optNumber(ic, "rl_bonus")
		if err := r.raids.SetLootLimits(guildID, limits); err != nil {
			ReplyEphemeral(s, ic, "⚠️ Límites inválidos: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Defaults del split guardados.")

	case "loot_split":
		if !r.requirePerm(s, ic, domain.PermRaidManager) {
			return
		}
		r.handleLootSplit(s, ic, guildID, userID)

	// ---- tickets ----
	case "ticket_setup":
		if !r.requirePerm(s, ic, domain.PermTicketManager) {
			return
		}
		mode, _ := optStr(ic, "mode")
		category, _ := optChannel(ic, "category")
		supportRaw, _ := optStr(ic, "support_roles")
		err := r.tickets.Configure(guildID, domain.TicketConfig{
			Mode:           domain.TicketMode(mode),
			CategoryID:     category,
			SupportRoleIDs: parseIDs(supportRaw),
		})
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ Configuración inválida: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Tickets configurados en modo `"+mode+"`.")

	case "ticket_open":
		rec, err := r.tickets.Open(ctx, guildID, userID)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo abrir el ticket: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "🎫 Ticket abierto: <#"+snowflake(rec.ChannelID)+">")

	case "ticket_close":
		if !r.requirePerm(s, ic, domain.PermTicketManager) {
			return
		}
		del, _ := optBool(ic, "delete")
		rec, err := r.tickets.Close(ctx, parseSnowflake(ic.ChannelID), del)
		if err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo cerrar: "+err.Error())
			return
		}
		// el transcript le llega al owner por DM, best-effort
		if err := SendDM(r.s, rec.OwnerID, "📄 Transcript de tu ticket:\n\n"+truncate(rec.TranscriptMarkdown, 1800)); err != nil {
			r.log.Debug("DM de transcript falló", zap.Int64("owner", rec.OwnerID), zap.Error(err))
		}
		ReplyEphemeral(s, ic, "✅ Ticket **"+rec.TicketID+"** finalizado ("+string(rec.Status)+").")

	// ---- permisos ----
	case "perm_set":
		if !r.requireAdmin(s, ic) {
			return
		}
		perm, _ := optStr(ic, "perm")
		rolesRaw, _ := optStr(ic, "roles")
		if err := r.perms.Set(guildID, perm, parseIDs(rolesRaw)); err != nil {
			ReplyEphemeral(s, ic, "⚠️ No se pudo guardar: "+err.Error())
			return
		}
		ReplyEphemeral(s, ic, "✅ Permiso `"+perm+"` actualizado.")
	}
}

func sumAbsDeltas(deltas map[int64]int64) int64 {
	var sum int64
	for _, d := range deltas {
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}


