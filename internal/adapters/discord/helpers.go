package discord

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

var reMention = regexp.MustCompile(`<@!?(\d+)>`)

// parseIDs acepta menciones (<@123>) o IDs crudos separados por espacios.
func parseIDs(raw string) []int64 {
	ids := []int64{}
	for _, tok := range strings.Fields(raw) {
		if m := reMention.FindStringSubmatch(tok); len(m) == 2 {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				ids = append(ids, id)
			}
			continue
		}
		if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseSnowflake(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

func mention(id int64) string {
	return "<@" + strconv.FormatInt(id, 10) + ">"
}

func optStr(ic *discordgo.InteractionCreate, name string) (string, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return "", false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue(), true
		}
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, so := range o.Options {
				if so.Name == name && so.Type == discordgo.ApplicationCommandOptionString {
					return so.StringValue(), true
				}
			}
		}
	}
	return "", false
}

func optBool(ic *discordgo.InteractionCreate, name string) (bool, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return false, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionBoolean {
			return o.BoolValue(), true
		}
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, so := range o.Options {
				if so.Name == name && so.Type == discordgo.ApplicationCommandOptionBoolean {
					return so.BoolValue(), true
				}
			}
		}
	}
	return false, false
}

func optInt(ic *discordgo.InteractionCreate, name string) (int64, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return 0, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionInteger {
			return o.IntValue(), true
		}
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, so := range o.Options {
				if so.Name == name && so.Type == discordgo.ApplicationCommandOptionInteger {
					return so.IntValue(), true
				}
			}
		}
	}
	return 0, false
}

func optNumber(ic *discordgo.InteractionCreate, name string) (float64, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return 0, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionNumber {
			return o.FloatValue(), true
		}
	}
	return 0, false
}

func optUser(ic *discordgo.InteractionCreate, name string) (int64, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return 0, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionUser {
			return parseSnowflake(o.Value.(string)), true
		}
	}
	return 0, false
}

func optChannel(ic *discordgo.InteractionCreate, name string) (int64, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return 0, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionChannel {
			return parseSnowflake(o.Value.(string)), true
		}
	}
	return 0, false
}

// memberHasRole arma el predicado de membresía que consumen los servicios.
func memberHasRole(m *discordgo.Member) func(roleIDs []int64) bool {
	return func(roleIDs []int64) bool {
		if m == nil {
			return false
		}
		has := make(map[string]struct{}, len(m.Roles))
		for _, rid := range m.Roles {
			has[rid] = struct{}{}
		}
		for _, want := range roleIDs {
			if _, ok := has[snowflake(want)]; ok {
				return true
			}
		}
		return false
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// truncate corta en un límite de runa para no partir UTF-8 a la mitad.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
