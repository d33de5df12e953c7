package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

// Calculadora de loot split: función pura, sin estado. Todos los montos
// intermedios quedan en el Breakdown para que la pantalla de confirmación
// pueda auditar el cálculo completo.

// MapEntry: un mapa corrido durante el raid. Cancelado cuesta el 10% del
// precio pactado.
type MapEntry struct {
	Tier     string
	Price    int64
	Finished bool
}

func (m MapEntry) EffectivePrice() int64 {
	if m.Finished {
		return m.Price
	}
	return int64(math.Round(float64(m.Price) * 0.10))
}

type LootInput struct {
	ChestValue  int64   // valor bruto del cofre
	ChestTaxPct float64 // impuesto de mercado sobre el cofre
	SilverBags  int64   // plata suelta, sin impuesto

	Players []int64 // presentes (precargado de last_voice_present_ids)

	RaidLeaderID int64 // 0 = sin RL designado
	ScoutID      int64 // 0 = sin scout
	RLBonusPct   float64
	ScoutPct     float64
	ScoutMin     int64 // límites base; escalan por mapas terminados
	ScoutMax     int64

	Maps []MapEntry
}

// LootBreakdown: desglose completo del cálculo, reproducible.
type LootBreakdown struct {
	ChestNet  int64
	TotalNet  int64
	ScoutPaid int64
	PostScout int64
	MapsCost  int64
	PostMaps  int64
	Share     int64
	RLPaid    int64

	FinishedMaps int
	ScoutMin     int64 // límites ya escalados
	ScoutMax     int64

	Payouts map[int64]int64
}

// ComputeLootSplit reparte el botín: fee del scout acotado primero, costo de
// mapas después, y el resto en partes iguales con bonus para el RL. Si el RL
// no está entre los presentes el resto de la división entera se absorbe sin
// repartir (comportamiento documentado, no un bug).
func ComputeLootSplit(in LootInput) LootBreakdown {
	b := LootBreakdown{Payouts: map[int64]int64{}}

	b.ChestNet = int64(math.Round(float64(in.ChestValue) * (1 - in.ChestTaxPct/100)))
	b.TotalNet = b.ChestNet + in.SilverBags

	for _, m := range in.Maps {
		if m.Finished {
			b.FinishedMaps++
		}
		b.MapsCost += m.EffectivePrice()
	}

	mult := int64(b.FinishedMaps)
	if mult < 1 {
		mult = 1
	}
	b.ScoutMin = in.ScoutMin * mult
	b.ScoutMax = in.ScoutMax * mult

	if in.ScoutID != 0 {
		raw := int64(math.Round(float64(b.TotalNet) * in.ScoutPct / 100))
		b.ScoutPaid = clamp64(raw, b.ScoutMin, b.ScoutMax)
	}
	b.PostScout = max64(0, b.TotalNet-b.ScoutPaid)
	b.PostMaps = max64(0, b.PostScout-b.MapsCost)

	base := make([]int64, 0, len(in.Players))
	leaderInBase := false
	for _, uid := range in.Players {
		if uid == in.ScoutID {
			continue
		}
		if uid == in.RaidLeaderID {
			leaderInBase = true
		}
		base = append(base, uid)
	}

	// un bonus negativo podría anular el denominador de la división con
	// leader; se neutraliza en vez de propagar un Inf
	bonus := in.RLBonusPct / 100
	if bonus < 0 {
		bonus = 0
	}
	switch {
	case len(base) == 0:
		// nadie entre quien repartir; solo el scout cobra
	case leaderInBase:
		denom := float64(len(base)-1) + (1 + bonus)
		b.Share = int64(float64(b.PostMaps) / denom)
		b.RLPaid = int64(math.Round(float64(b.Share) * (1 + bonus)))
		for _, uid := range base {
			if uid == in.RaidLeaderID {
				b.Payouts[uid] = b.RLPaid
			} else {
				b.Payouts[uid] = b.Share
			}
		}
	default:
		b.Share = b.PostMaps / int64(len(base))
		for _, uid := range base {
			b.Payouts[uid] = b.Share
		}
	}

	if in.ScoutID != 0 && b.ScoutPaid > 0 {
		b.Payouts[in.ScoutID] += b.ScoutPaid
	}
	return b
}

// ParseMapRows interpreta el texto del modal de mapas, una línea por mapa:
// "tier;precio;ok|cancel". Las líneas malformadas se devuelven como warnings
// en vez de abortar el modal entero.
func ParseMapRows(text string) ([]MapEntry, []string) {
	var entries []MapEntry
	var warnings []string
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ";")
		if len(parts) < 2 {
			warnings = append(warnings, fmt.Sprintf("línea %d: formato inválido (%q)", i+1, line))
			continue
		}
		price, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil || price < 0 {
			warnings = append(warnings, fmt.Sprintf("línea %d: precio inválido (%q)", i+1, parts[1]))
			continue
		}
		finished := true
		if len(parts) >= 3 {
			switch strings.ToLower(strings.TrimSpace(parts[2])) {
			case "", "ok", "fini", "finished", "1", "true":
				finished = true
			case "cancel", "cancelled", "annule", "annulé", "0", "false":
				finished = false
			default:
				warnings = append(warnings, fmt.Sprintf("línea %d: estado desconocido (%q), se asume ok", i+1, parts[2]))
			}
		}
		entries = append(entries, MapEntry{
			Tier:     strings.TrimSpace(parts[0]),
			Price:    price,
			Finished: finished,
		})
	}
	return entries, warnings
}

// SuggestPlayers precarga el set de presentes para el split: primero el
// resultado del voice-check, si no hay los inscritos no ausentes.
func SuggestPlayers(raid *domain.RaidEvent) []int64 {
	if len(raid.LastVoicePresentIDs) > 0 {
		return append([]int64(nil), raid.LastVoicePresentIDs...)
	}
	out := make([]int64, 0, len(raid.Signups))
	for uid := range raid.Signups {
		if !raid.IsAbsent(uid) {
			out = append(out, uid)
		}
	}
	return out
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
