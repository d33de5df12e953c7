package service

import (
	"sort"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// Motor de roster: lógica pura sobre un RaidEvent + su template. Sin I/O;
// RaidService envuelve todo esto en store.Update.

const (
	ipMin = 0
	ipMax = 2500
)

// JoinRoster inscribe (o re-inscribe) al usuario en un rol de la compo.
// Cambiar de rol sobreescribe el signup y resetea joined_at, así que el
// usuario pierde su lugar en la cola FIFO del rol nuevo.
func JoinRoster(raid *domain.RaidEvent, tpl *domain.CompTemplate, userID int64, roleKey string, ip *int, now int64, hasRole HasRoleFunc) (domain.SignupStatus, error) {
	if raid.RegistrationClosed(now) {
		return "", domain.ErrRegistrationClosed
	}
	role, ok := tpl.RoleByKey(roleKey)
	if !ok {
		return "", domain.ErrRoleNotFound
	}
	if roleKey == domain.RoleKeyRaidLeader {
		return "", domain.ErrReservedRole
	}
	if prev, ok := raid.Signups[userID]; ok && prev.RoleKey == domain.RoleKeyRaidLeader {
		return "", domain.ErrLeaderLocked
	}
	if hasRole != nil {
		if len(tpl.RaidRequiredRoleIDs) > 0 && !hasRole(tpl.RaidRequiredRoleIDs) {
			return "", domain.ErrMissingRequired
		}
		if len(role.RequiredRoleIDs) > 0 && !hasRole(role.RequiredRoleIDs) {
			return "", domain.ErrMissingRequired
		}
	}
	if role.IPRequired && ip == nil {
		return "", domain.ErrIPRequired
	}
	if ip != nil && (*ip < ipMin || *ip > ipMax) {
		return "", domain.ErrIPOutOfRange
	}

	delete(raid.Absent, userID)

	status := domain.SignupWait
	if mainCount(raid, roleKey, userID) < role.Slots {
		status = domain.SignupMain
	}
	raid.Signups[userID] = &domain.Signup{
		UserID:   userID,
		RoleKey:  roleKey,
		Status:   status,
		IP:       ip,
		JoinedAt: now,
	}
	// el cambio de rol puede haber liberado un main en otro rol
	RecomputePromotions(raid, tpl)
	return raid.Signups[userID].Status, nil
}

// LeaveRoster saca al usuario del roster y/o de la lista de ausentes.
func LeaveRoster(raid *domain.RaidEvent, tpl *domain.CompTemplate, userID int64, now int64) (bool, error) {
	if raid.RegistrationClosed(now) {
		return false, domain.ErrRegistrationClosed
	}
	if s, ok := raid.Signups[userID]; ok && s.RoleKey == domain.RoleKeyRaidLeader {
		return false, domain.ErrReservedRole
	}
	changed := false
	if _, ok := raid.Signups[userID]; ok {
		delete(raid.Signups, userID)
		changed = true
	}
	if _, ok := raid.Absent[userID]; ok {
		delete(raid.Absent, userID)
		changed = true
	}
	if changed && tpl != nil {
		RecomputePromotions(raid, tpl)
	}
	return changed, nil
}

// ToggleAbsent marca/desmarca ausencia. Marcar ausente libera el slot del
// usuario; desmarcar no lo re-inscribe (tiene que volver a anotarse).
func ToggleAbsent(raid *domain.RaidEvent, tpl *domain.CompTemplate, userID int64, now int64) (bool, error) {
	if raid.RegistrationClosed(now) {
		return false, domain.ErrRegistrationClosed
	}
	if s, ok := raid.Signups[userID]; ok && s.RoleKey == domain.RoleKeyRaidLeader {
		return false, domain.ErrReservedRole
	}
	if raid.IsAbsent(userID) {
		delete(raid.Absent, userID)
		return false, nil
	}
	delete(raid.Signups, userID)
	if raid.Absent == nil {
		raid.Absent = map[int64]struct{}{}
	}
	raid.Absent[userID] = struct{}{}
	if tpl != nil {
		RecomputePromotions(raid, tpl)
	}
	return true, nil
}

// RecomputePromotions promueve waiters a main hasta llenar los slots de cada
// rol, en orden FIFO por joined_at y salteando ausentes. Idempotente; hay que
// llamarla tras cada cambio estructural del roster.
func RecomputePromotions(raid *domain.RaidEvent, tpl *domain.CompTemplate) {
	for _, role := range tpl.Roles {
		for mainCount(raid, role.Key, 0) < role.Slots {
			next := nextWaiter(raid, role.Key)
			if next == nil {
				break
			}
			next.Status = domain.SignupMain
		}
	}
}

// mainCount cuenta los signups main del rol, excluyendo opcionalmente a un
// usuario (para decidir el status de su propia re-inscripción).
func mainCount(raid *domain.RaidEvent, roleKey string, excludeUser int64) int {
	n := 0
	for uid, s := range raid.Signups {
		if uid == excludeUser {
			continue
		}
		if s.RoleKey == roleKey && s.Status == domain.SignupMain {
			n++
		}
	}
	return n
}

// nextWaiter: el waiter no-ausente más antiguo del rol (desempate por user_id
// para que el orden sea determinístico).
func nextWaiter(raid *domain.RaidEvent, roleKey string) *domain.Signup {
	var candidates []*domain.Signup
	for _, s := range raid.Signups {
		if s.RoleKey == roleKey && s.Status == domain.SignupWait && !raid.IsAbsent(s.UserID) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].JoinedAt != candidates[j].JoinedAt {
			return candidates[i].JoinedAt < candidates[j].JoinedAt
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	return candidates[0]
}
