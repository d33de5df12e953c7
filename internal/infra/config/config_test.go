package config

import "testing"

func TestLoadWithoutLedgerEnvLeavesBothEmpty(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("DISCORD_GUILD_ID", "1")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BANK_SQLITE_PATH", "")

	cfg := Load()
	// sin DATABASE_URL ni BANK_SQLITE_PATH el banco cae al snapshot: ningún
	// default puede forzar la ruta SQL
	if cfg.DatabaseURL != "" || cfg.SQLitePath != "" {
		t.Fatalf("ledger sin configurar: url=%q sqlite=%q, want vacíos", cfg.DatabaseURL, cfg.SQLitePath)
	}
	if cfg.DataPath != "data/state.json" {
		t.Fatalf("data path default: %q", cfg.DataPath)
	}
}

func TestLoadHonorsSQLitePath(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("DISCORD_GUILD_ID", "1")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BANK_SQLITE_PATH", "/var/bot/bank.sqlite3")

	if cfg := Load(); cfg.SQLitePath != "/var/bot/bank.sqlite3" {
		t.Fatalf("sqlite path: %q", cfg.SQLitePath)
	}
}
