package discord

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic en componente", zap.String("custom_id", data.CustomID), zap.Any("panic", rec))
		}
	}()

	id := data.CustomID
	switch {
	case strings.HasPrefix(id, "raid_role:"):
		// ojo: acá NO se puede deferir antes, el rol puede pedir IP por modal
		r.onRaidRoleSelect(s, ic, strings.TrimPrefix(id, "raid_role:"), data.Values)

	case strings.HasPrefix(id, "raid_leave:"):
		_ = DeferEphemeral(s, ic)
		r.onRaidLeave(s, ic, strings.TrimPrefix(id, "raid_leave:"))

	case strings.HasPrefix(id, "raid_absent:"):
		_ = DeferEphemeral(s, ic)
		r.onRaidAbsent(s, ic, strings.TrimPrefix(id, "raid_absent:"))

	case strings.HasPrefix(id, "raid_notify:"):
		_ = DeferEphemeral(s, ic)
		r.onRaidNotify(s, ic, strings.TrimPrefix(id, "raid_notify:"))

	case strings.HasPrefix(id, "loot_ok:"):
		_ = DeferEphemeral(s, ic)
		r.onLootConfirm(s, ic, strings.TrimPrefix(id, "loot_ok:"))

	case strings.HasPrefix(id, "loot_no:"):
		_ = DeferEphemeral(s, ic)
		r.onLootCancel(s, ic, strings.TrimPrefix(id, "loot_no:"))
	}
}

// onRaidRoleSelect: roles con IP piden el valor por modal; el resto se
// inscribe directo.
func (r *Router) onRaidRoleSelect(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID string, values []string) {
	if len(values) == 0 {
		return
	}
	roleKey := values[0]

	_, tpl, err := r.raids.Get(raidID)
	if err != nil || tpl == nil {
		_ = DeferEphemeral(s, ic)
		ReplyEphemeral(s, ic, "⚠️ Este raid ya no está disponible.")
		return
	}
	role, ok := tpl.RoleByKey(roleKey)
	if !ok {
		_ = DeferEphemeral(s, ic)
		ReplyEphemeral(s, ic, "⚠️ Ese rol ya no existe en la composición.")
		return
	}

	if role.IPRequired {
		err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: "raid_ip:" + raidID + ":" + roleKey,
				Title:    "IP para " + role.Label,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "ip",
							Label:       "Tu item power (0-2500)",
							Style:       discordgo.TextInputShort,
							Placeholder: "1450",
							Required:    true,
							MaxLength:   4,
						},
					}},
				},
			},
		})
		if err != nil {
			r.log.Warn("no pude abrir el modal de IP", zap.Error(err))
		}
		return
	}

	_ = DeferEphemeral(s, ic)
	r.joinAndReply(s, ic, raidID, roleKey, nil)
}

func (r *Router) handleModalSubmit(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.ModalSubmitData()
	if !strings.HasPrefix(data.CustomID, "raid_ip:") {
		return
	}
	parts := strings.SplitN(data.CustomID, ":", 3)
	if len(parts) != 3 {
		return
	}
	raidID, roleKey := parts[1], parts[2]

	_ = DeferEphemeral(s, ic)

	raw := ""
	for _, row := range data.Components {
		if ar, ok := row.(*discordgo.ActionsRow); ok {
			for _, c := range ar.Components {
				if ti, ok := c.(*discordgo.TextInput); ok && ti.CustomID == "ip" {
					raw = ti.Value
				}
			}
		}
	}
	ip, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ IP inválido: escribe solo el número.")
		return
	}
	r.joinAndReply(s, ic, raidID, roleKey, &ip)
}

func (r *Router) joinAndReply(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID, roleKey string, ip *int) {
	defer step("component.raid_join")()
	userID := parseSnowflake(ic.Member.User.ID)
	if !r.clickLimiter.Allow(userID) {
		ReplyEphemeral(s, ic, "⏳ Esperá un segundo…")
		return
	}
	status, err := r.raids.Join(raidID, userID, roleKey, ip, memberHasRole(ic.Member))
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ "+friendlyRosterErr(err))
		return
	}
	go r.refreshRaidMessage(raidID)
	if status == domain.SignupMain {
		ReplyEphemeral(s, ic, "✅ Anotado como **"+roleKey+"**.")
	} else {
		ReplyEphemeral(s, ic, "⏳ Slots llenos: quedaste en **lista de espera** para **"+roleKey+"**.")
	}
}

func (r *Router) onRaidLeave(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID string) {
	userID := parseSnowflake(ic.Member.User.ID)
	if !r.clickLimiter.Allow(userID) {
		ReplyEphemeral(s, ic, "⏳ Esperá un segundo…")
		return
	}
	changed, err := r.raids.Leave(raidID, userID)
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ "+friendlyRosterErr(err))
		return
	}
	if !changed {
		ReplyEphemeral(s, ic, "ℹ️ No estabas anotado en este raid.")
		return
	}
	go r.refreshRaidMessage(raidID)
	ReplyEphemeral(s, ic, "👋 Saliste del raid.")
}

func (r *Router) onRaidAbsent(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID string) {
	userID := parseSnowflake(ic.Member.User.ID)
	nowAbsent, err := r.raids.MarkAbsent(raidID, userID)
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ "+friendlyRosterErr(err))
		return
	}
	go r.refreshRaidMessage(raidID)
	if nowAbsent {
		ReplyEphemeral(s, ic, "⛔ Marcado como **ausente**. Tu slot quedó libre.")
	} else {
		ReplyEphemeral(s, ic, "✅ Ya no figuras como ausente. Anótate de nuevo si quieres un slot.")
	}
}

func (r *Router) onRaidNotify(s *discordgo.Session, ic *discordgo.InteractionCreate, raidID string) {
	userID := parseSnowflake(ic.Member.User.ID)
	enabled, err := r.raids.ToggleDMNotify(raidID, userID)
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ "+friendlyRosterErr(err))
		return
	}
	if enabled {
		ReplyEphemeral(s, ic, "🔔 Te va a llegar un DM con el mass-up.")
	} else {
		ReplyEphemeral(s, ic, "🔕 DM del mass-up desactivado.")
	}
}

// friendlyRosterErr traduce los errores del core a mensajes para el usuario.
func friendlyRosterErr(err error) string {
	switch {
	case errors.Is(err, domain.ErrRegistrationClosed):
		return "Las inscripciones de este raid ya cerraron."
	case errors.Is(err, domain.ErrRoleNotFound):
		return "Ese rol ya no existe en la composición."
	case errors.Is(err, domain.ErrReservedRole):
		return "El raid leader no puede hacer eso: es un rol fijo."
	case errors.Is(err, domain.ErrLeaderLocked):
		return "Eres el raid leader, no puedes cambiar de rol."
	case errors.Is(err, domain.ErrMissingRequired):
		return "No tienes el rol de Discord requerido para anotarte."
	case errors.Is(err, domain.ErrIPRequired):
		return "Este rol pide tu IP para anotarte."
	case errors.Is(err, domain.ErrIPOutOfRange):
		return "El IP tiene que estar entre 0 y 2500."
	case errors.Is(err, domain.ErrTemplateMissing):
		return "La composición de este raid fue borrada."
	case errors.Is(err, domain.ErrRaidNotFound):
		return "Este raid ya no existe."
	default:
		return "No se pudo: " + err.Error()
	}
}

// pruneStaleLoot limpia confirmaciones de split abandonadas.
func (r *Router) pruneStaleLoot(maxAge time.Duration) {
	r.lootMu.Lock()
	defer r.lootMu.Unlock()
	for id, p := range r.pendingLoot {
		if time.Since(p.createdAt) > maxAge {
			delete(r.pendingLoot, id)
		}
	}
}
