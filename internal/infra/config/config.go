package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DiscordToken string
	DiscordGuild string
	DataPath     string

	// Ledger: postgres si hay URL, sqlite si hay path; sin ninguno el
	// banco vive dentro del snapshot JSON.
	DatabaseURL string
	SQLitePath  string

	SchedTickSeconds       int
	DefaultPrepMinutes     int
	DefaultCleanupMinutes  int
	VoiceCheckAfterMinutes int

	BankActionLogLimit int
	BankAllowNegative  bool

	// Roles manager de fallback cuando el guild no configuró los suyos.
	RaidManagerRoleID int64
	BankManagerRoleID int64

	LogLevel  string
	LogFormat string
}

func Load() Config {
	get := func(k string, req bool) string {
		v := os.Getenv(k)
		if v == "" && req {
			log.Fatalf("faltante env %s", k)
		}
		return v
	}

	cfg := Config{
		DiscordToken: get("DISCORD_BOT_TOKEN", true),
		DiscordGuild: get("DISCORD_GUILD_ID", true),
		DataPath:     get("DATA_PATH", false),
		DatabaseURL:  get("DATABASE_URL", false),
		SQLitePath:   get("BANK_SQLITE_PATH", false),

		SchedTickSeconds:       getInt("SCHED_TICK_SECONDS", 15),
		DefaultPrepMinutes:     getInt("DEFAULT_PREP_MINUTES", 10),
		DefaultCleanupMinutes:  getInt("DEFAULT_CLEANUP_MINUTES", 30),
		VoiceCheckAfterMinutes: getInt("VOICE_CHECK_AFTER_MINUTES", 5),

		BankActionLogLimit: getInt("BANK_ACTION_LOG_LIMIT", 500),
		BankAllowNegative:  getBool("BANK_ALLOW_NEGATIVE", true),

		RaidManagerRoleID: getInt64("RAID_MANAGER_ROLE_ID"),
		BankManagerRoleID: getInt64("BANK_MANAGER_ROLE_ID"),

		LogLevel:  get("LOG_LEVEL", false),
		LogFormat: get("LOG_FORMAT", false),
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "data/state.json"
	}
	return cfg
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s inválida: %v", k, err)
	}
	return n
}

func getInt64(k string) int64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("env %s inválida: %v", k, err)
	}
	return n
}

func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
