package discord

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/app/service"
)

// Router conecta la API de Discord con los servicios del core: registra los
// slash commands, despacha interacciones y captura los mensajes de los
// rooms de tickets.
type Router struct {
	s       *discordgo.Session
	guildID string
	log     *zap.Logger

	raids     *service.RaidService
	templates *service.TemplateService
	bank      *service.BankService
	tickets   *service.TicketService
	perms     *service.PermissionResolver

	clickLimiter *userLimiter

	// splits calculados esperando confirmación (efímero, solo memoria)
	lootMu      sync.Mutex
	pendingLoot map[string]*pendingLoot
}

type pendingLoot struct {
	actorID   int64
	input     service.LootInput
	breakdown service.LootBreakdown
	createdAt time.Time
}

func NewRouter(
	s *discordgo.Session,
	guildID string,
	log *zap.Logger,
	raids *service.RaidService,
	templates *service.TemplateService,
	bank *service.BankService,
	perms *service.PermissionResolver,
) *Router {
	return &Router{
		s:            s,
		guildID:      guildID,
		log:          log,
		raids:        raids,
		templates:    templates,
		bank:         bank,
		perms:        perms,
		clickLimiter: newUserLimiter(1500 * time.Millisecond),
		pendingLoot:  map[string]*pendingLoot{},
	}
}

// SetTickets cierra el ciclo router ↔ tickets: el servicio necesita al
// router como provisioner de rooms, así que se inyecta después.
func (r *Router) SetTickets(t *service.TicketService) { r.tickets = t }

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		switch ic.Type {
		case discordgo.InteractionApplicationCommand:
			r.handleSlashCommand(s, ic)
		case discordgo.InteractionMessageComponent:
			r.handleMessageComponent(s, ic)
		case discordgo.InteractionModalSubmit:
			r.handleModalSubmit(s, ic)
		}
	})

	// capturas para el transcript de tickets
	r.s.AddHandler(r.onMessageCreate)
	r.s.AddHandler(r.onMessageUpdate)
	r.s.AddHandler(r.onMessageDelete)
}
