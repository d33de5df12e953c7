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

// Flujo del split: /loot_split calcula y muestra el desglose con botones de
// confirmación; recién al confirmar se acreditan los pagos en el banco, se
// libera el rol temporal y se cierra el raid. El cálculo pendiente vive solo
// en memoria: si el bot se reinicia se vuelve a tirar el comando y listo.

// defaults del fee del scout y el bonus del RL cuando el comando no los trae
const (
	defaultScoutPct = 10.0
	defaultScoutMin = 200_000
	defaultScoutMax = 1_000_000
	defaultRLBonus  = 7.5
)

func (r *Router) handleLootSplit(s *discordgo.Session, ic *discordgo.InteractionCreate, guildID, userID int64) {
	raidID, _ := optStr(ic, "raid")
	raid, _, err := r.raids.Get(raidID)
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ "+friendlyRosterErr(err))
		return
	}

	chest, _ := optInt(ic, "chest")
	bags, _ := optInt(ic, "bags")
	tax, _ := optNumber(ic, "tax")

	in := service.LootInput{
		ChestValue:  chest,
		ChestTaxPct: tax,
		SilverBags:  bags,
		ScoutPct:    defaultScoutPct,
		ScoutMin:    defaultScoutMin,
		ScoutMax:    defaultScoutMax,
		RLBonusPct:  defaultRLBonus,
	}
	// precedencia: opciones del comando > defaults del guild > constantes
	if limits, ok := r.raids.LootLimits(guildID); ok {
		if limits.ScoutPct > 0 {
			in.ScoutPct = limits.ScoutPct
		}
		if limits.ScoutMin > 0 {
			in.ScoutMin = limits.ScoutMin
		}
		if limits.ScoutMax > 0 {
			in.ScoutMax = limits.ScoutMax
		}
		if limits.RLBonusPct > 0 {
			in.RLBonusPct = limits.RLBonusPct
		}
	}
	if v, ok := optNumber(ic, "scout_pct"); ok {
		in.ScoutPct = v
	}
	if v, ok := optInt(ic, "scout_min"); ok {
		in.ScoutMin = v
	}
	if v, ok := optInt(ic, "scout_max"); ok {
		in.ScoutMax = v
	}
	if v, ok := optNumber(ic, "rl_bonus"); ok {
		in.RLBonusPct = v
	}
	// las opciones del comando pasan por el mismo filtro que /loot_scout_limits
	if in.ScoutPct < 0 || in.ScoutMin < 0 || in.ScoutMax < 0 || in.RLBonusPct < 0 ||
		(in.ScoutMax > 0 && in.ScoutMin > in.ScoutMax) {
		ReplyEphemeral(s, ic, "⚠️ Parámetros inválidos: nada puede ser negativo y `scout_min` ≤ `scout_max`.")
		return
	}

	// RL y scout salen del roster; si nadie tomó el slot de RL cae en el
	// creador del raid
	in.RaidLeaderID = raid.CreatedBy
	for uid, su := range raid.Signups {
		switch su.RoleKey {
		case domain.RoleKeyRaidLeader:
			in.RaidLeaderID = uid
		case domain.RoleKeyScout:
			in.ScoutID = uid
		}
	}

	if raw, ok := optStr(ic, "players"); ok && strings.TrimSpace(raw) != "" {
		in.Players = parseIDs(raw)
	} else {
		in.Players = service.SuggestPlayers(raid)
	}
	if len(in.Players) == 0 {
		ReplyEphemeral(s, ic, "⚠️ No hay presentes para repartir: pasa `players` o corre el raid con voice-check.")
		return
	}

	var warnings []string
	if raw, ok := optStr(ic, "maps"); ok && strings.TrimSpace(raw) != "" {
		in.Maps, warnings = service.ParseMapRows(strings.ReplaceAll(raw, "|", "\n"))
	}

	breakdown := service.ComputeLootSplit(in)

	r.pruneStaleLoot(10 * time.Minute)
	r.lootMu.Lock()
	r.pendingLoot[raidID] = &pendingLoot{
		actorID:   userID,
		input:     in,
		breakdown: breakdown,
		createdAt: time.Now(),
	}
	r.lootMu.Unlock()

	msg := "Revisa el desglose y confirma para acreditar en el banco."
	if len(warnings) > 0 {
		msg += "\n⚠️ " + strings.Join(warnings, "\n⚠️ ")
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Confirmar y pagar", Style: discordgo.SuccessButton, CustomID: "loot_ok:" + raidID},
			discordgo.Button{Label: "Cancelar", Style: discordgo.DangerButton, CustomID: "loot_no:" + raidID},
		}},
	}
	ReplyComponentsEphemeral(s, ic, msg, components, buildLootEmbed(raidID, in, breakdown))
}

func (r *Router) onLootConfirm(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID string) {
	guildID := parseSnowflake(ic.GuildID)
	userID := parseSnowflake(ic.Member.User.ID)

	r.lootMu.Lock()
	pending, ok := r.pendingLoot[raidID]
	if ok && pending.actorID == userID {
		delete(r.pendingLoot, raidID)
	}
	r.lootMu.Unlock()

	if !ok {
		ReplyEphemeral(s, ic, "⚠️ No hay un split pendiente para este raid. Corre `/loot_split` de nuevo.")
		return
	}
	if pending.actorID != userID {
		ReplyEphemeral(s, ic, "🔒 Solo quien corrió `/loot_split` puede confirmar.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	action, err := r.bank.ApplyPayouts(ctx, guildID, userID, pending.breakdown.Payouts, "loot split "+raidID)
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ No se pudo acreditar el split: "+err.Error())
		return
	}

	// recién acá se desarma el acceso temporal y se cierra el raid
	if raid, _, err := r.raids.Get(raidID); err == nil {
		if err := r.ReleaseTempAccess(ctx, raid); err != nil {
			r.log.Warn("liberar acceso temporal falló", zap.String("raid_id", raidID), zap.Error(err))
		}
	}
	if err := r.raids.Close(raidID); err != nil {
		r.log.Warn("cerrar raid tras el split falló", zap.String("raid_id", raidID), zap.Error(err))
	}
	go r.refreshRaidMessage(raidID)

	ReplyEphemeral(s, ic, "✅ Split acreditado (`"+action.ActionID+"`, "+
		itoa(len(pending.breakdown.Payouts))+" pagos). Raid **"+raidID+"** cerrado.")
}

func (r *Router) onLootCancel(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID string) {
	userID := parseSnowflake(ic.Member.User.ID)

	r.lootMu.Lock()
	pending, ok := r.pendingLoot[raidID]
	if ok && pending.actorID == userID {
		delete(r.pendingLoot, raidID)
	}
	r.lootMu.Unlock()

	if !ok || pending.actorID != userID {
		ReplyEphemeral(s, ic, "ℹ️ No había nada que cancelar.")
		return
	}
	ReplyEphemeral(s, ic, "🗑️ Split descartado. Nada se acreditó.")
}
