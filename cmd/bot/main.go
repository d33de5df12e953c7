package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	discordrouter "github.com/jose-valero/albion-raid-bot/internal/adapters/discord"
	"github.com/jose-valero/albion-raid-bot/internal/app/service"
	"github.com/jose-valero/albion-raid-bot/internal/infra/config"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
	"github.com/jose-valero/albion-raid-bot/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	zl, err := logger.New(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, logger.DefaultServiceName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Estado: snapshot JSON local + ledger del banco (postgres > sqlite >
	// el propio snapshot).
	store, err := storage.OpenStore(cfg.DataPath, cfg.BankActionLogLimit, zl)
	if err != nil {
		zl.Fatal("abrir store", zap.Error(err))
	}
	ledger, err := storage.OpenLedger(ctx, store, cfg.DatabaseURL, cfg.SQLitePath, cfg.BankActionLogLimit)
	if err != nil {
		zl.Fatal("abrir ledger", zap.Error(err))
	}
	defer ledger.Close()
	zl.Info("✅ storage listo", zap.String("data_path", cfg.DataPath))

	var clock service.Clock = func() int64 { return time.Now().Unix() }

	// Discord session (antes del router, que la necesita)
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		zl.Fatal("sesión discord", zap.Error(err))
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	s.State.TrackVoice = true

	// Services
	raidSvc := service.NewRaidService(store, clock, zl, cfg.DefaultPrepMinutes, cfg.DefaultCleanupMinutes)
	tplSvc := service.NewTemplateService(store, clock, zl)
	bankSvc := service.NewBankService(store, ledger, clock, zl, cfg.BankAllowNegative)
	permSvc := service.NewPermissionResolver(store,
		fallbackRoles(cfg.RaidManagerRoleID),
		fallbackRoles(cfg.BankManagerRoleID),
	)

	r := discordrouter.NewRouter(s, cfg.DiscordGuild, zl, raidSvc, tplSvc, bankSvc, permSvc)

	// el router es también el provisioner de rooms de tickets
	ticketSvc := service.NewTicketService(store, r, clock, zl)
	r.SetTickets(ticketSvc)

	r.Handlers()
	if err := s.Open(); err != nil {
		zl.Fatal("abrir gateway", zap.Error(err))
	}
	defer s.Close()
	zl.Info("✅ conectado", zap.String("user", s.State.User.Username), zap.String("id", s.State.User.ID))

	if err := r.Register(); err != nil {
		zl.Fatal("registrar comandos", zap.Error(err))
	}
	zl.Info("✅ comandos registrados", zap.String("guild", cfg.DiscordGuild))

	// Scheduler de fases (prep / mass-up / voice-check / cleanup)
	sched := service.NewScheduler(store, r, clock, zl, cfg.VoiceCheckAfterMinutes)
	go sched.Run(ctx, time.Duration(cfg.SchedTickSeconds)*time.Second)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop
	zl.Info("apagando")
}

func fallbackRoles(id int64) []int64 {
	if id == 0 {
		return nil
	}
	return []int64{id}
}
