package service

import (
	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

// PermissionResolver decide qué roles de Discord habilitan cada permiso del
// bot. Orden de resolución: lista configurada por guild → fallback del env.
// ticket_manager sin configurar cae en raid_manager (cadena única y
// documentada, nada de fallbacks cruzados).
type PermissionResolver struct {
	store *storage.Store

	fallbackRaidManager []int64
	fallbackBankManager []int64
}

func NewPermissionResolver(store *storage.Store, fallbackRaidManager, fallbackBankManager []int64) *PermissionResolver {
	return &PermissionResolver{
		store:               store,
		fallbackRaidManager: fallbackRaidManager,
		fallbackBankManager: fallbackBankManager,
	}
}

func validPermKey(key string) bool {
	switch key {
	case domain.PermRaidManager, domain.PermBankManager, domain.PermTicketManager:
		return true
	}
	return false
}

// RoleIDs devuelve los roles habilitados para una clave de permiso.
func (p *PermissionResolver) RoleIDs(guildID int64, key string) []int64 {
	var stored []int64
	_ = p.store.View(func(st *storage.State) error {
		stored = st.PermissionRoleIDs(guildID, key)
		if key == domain.PermTicketManager && len(stored) == 0 {
			stored = st.PermissionRoleIDs(guildID, domain.PermRaidManager)
		}
		return nil
	})
	if len(stored) > 0 {
		return stored
	}
	switch key {
	case domain.PermBankManager:
		return append([]int64(nil), p.fallbackBankManager...)
	default: // raid_manager y ticket_manager
		return append([]int64(nil), p.fallbackRaidManager...)
	}
}

// Set pisa la lista de roles de una clave para el guild.
func (p *PermissionResolver) Set(guildID int64, key string, roleIDs []int64) error {
	if !validPermKey(key) {
		return domain.ErrInvalidSpec
	}
	return p.store.Update(func(st *storage.State) error {
		st.SetPermissionRoleIDs(guildID, key, roleIDs)
		return nil
	})
}

// Allowed: el predicado de membresía viene del adapter.
func (p *PermissionResolver) Allowed(guildID int64, key string, hasRole HasRoleFunc) bool {
	ids := p.RoleIDs(guildID, key)
	if len(ids) == 0 {
		return false
	}
	return hasRole != nil && hasRole(ids)
}
