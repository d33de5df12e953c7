package domain

// Entidades compartidas del bot (raids, banco, tickets). Sin I/O aquí:
// la persistencia vive en internal/infra/storage.

type RaidStatus string

const (
	RaidOpen   RaidStatus = "OPEN"
	RaidPinged RaidStatus = "PINGED"
	RaidClosed RaidStatus = "CLOSED"
)

type ContentType string

const (
	ContentAvaRaid ContentType = "ava_raid"
	ContentPvP     ContentType = "pvp"
	ContentPvE     ContentType = "pve"
)

// Roles reservados en templates ava_raid (siempre primero/último de la compo).
const (
	RoleKeyRaidLeader = "raid_leader"
	RoleKeyScout      = "scout"
)

type SignupStatus string

const (
	SignupMain SignupStatus = "main"
	SignupWait SignupStatus = "wait"
)

// CompRole es un slot de la composición. Inmutable una vez que un raid
// abierto lo referencia; el re-render del roster lee el template actual.
type CompRole struct {
	Key             string  `json:"key"`
	Label           string  `json:"label"`
	Slots           int     `json:"slots"`
	IPRequired      bool    `json:"ip_required"`
	RequiredRoleIDs []int64 `json:"required_role_ids,omitempty"`
}

type CompTemplate struct {
	Name                string      `json:"name"`
	Description         string      `json:"description"`
	CreatedBy           int64       `json:"created_by"`
	ContentType         ContentType `json:"content_type"`
	CreatedAt           int64       `json:"created_at"`
	RaidRequiredRoleIDs []int64     `json:"raid_required_role_ids,omitempty"`
	Roles               []CompRole  `json:"roles"`
}

// RoleByKey devuelve la definición de un rol de la compo, si existe.
func (t *CompTemplate) RoleByKey(key string) (CompRole, bool) {
	for _, r := range t.Roles {
		if r.Key == key {
			return r, true
		}
	}
	return CompRole{}, false
}

// Signup: una inscripción por usuario por raid. Cambiar de rol sobreescribe
// y resetea JoinedAt (afecta el orden FIFO de la waitlist).
type Signup struct {
	UserID   int64        `json:"user_id"`
	RoleKey  string       `json:"role_key"`
	Status   SignupStatus `json:"status"`
	IP       *int         `json:"ip,omitempty"`
	JoinedAt int64        `json:"joined_at"`
}

// RaidEvent es la entidad central del scheduler. Los cuatro flags de fase
// son monótonos: una vez true nunca vuelven a false.
type RaidEvent struct {
	RaidID       string `json:"raid_id"`
	TemplateName string `json:"template_name"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ExtraMessage string `json:"extra_message"`
	StartAt      int64  `json:"start_at"`
	CreatedBy    int64  `json:"created_by"`
	CreatedAt    int64  `json:"created_at"`

	ChannelID int64 `json:"channel_id,omitempty"`
	MessageID int64 `json:"message_id,omitempty"`
	ThreadID  int64 `json:"thread_id,omitempty"`

	VoiceChannelID int64 `json:"voice_channel_id,omitempty"`

	Signups map[int64]*Signup  `json:"signups"`
	Absent  map[int64]struct{} `json:"absent,omitempty"`

	PrepMinutes    int `json:"prep_minutes"`
	CleanupMinutes int `json:"cleanup_minutes"`

	TempRoleID int64 `json:"temp_role_id,omitempty"`

	PrepDone       bool `json:"prep_done"`
	PingDone       bool `json:"ping_done"`
	VoiceCheckDone bool `json:"voice_check_done"`
	CleanupDone    bool `json:"cleanup_done"`

	LastVoicePresentIDs []int64            `json:"last_voice_present_ids,omitempty"`
	DMNotifyUsers       map[int64]struct{} `json:"dm_notify_users,omitempty"`
}

// Status deriva el estado visible de los flags de fase.
func (r *RaidEvent) Status() RaidStatus {
	if r.CleanupDone {
		return RaidClosed
	}
	if r.PingDone {
		return RaidPinged
	}
	return RaidOpen
}

// RegistrationClosed: inscripciones cerradas desde el mass-up (o el start),
// o con el raid ya terminado.
func (r *RaidEvent) RegistrationClosed(now int64) bool {
	return r.PingDone || r.CleanupDone || now >= r.StartAt
}

func (r *RaidEvent) IsAbsent(userID int64) bool {
	_, ok := r.Absent[userID]
	return ok
}

// LootLimits: defaults por guild para el split (fee del scout y bonus del
// RL). Cero valor = usar los defaults del comando.
type LootLimits struct {
	ScoutPct   float64 `json:"scout_pct,omitempty"`
	ScoutMin   int64   `json:"scout_min,omitempty"`
	ScoutMax   int64   `json:"scout_max,omitempty"`
	RLBonusPct float64 `json:"rl_bonus_pct,omitempty"`
}

type BankActionType string

const (
	BankAdd         BankActionType = "add"
	BankRemove      BankActionType = "remove"
	BankAddSplit    BankActionType = "add_split"
	BankRemoveSplit BankActionType = "remove_split"
)

// BankAction: registro append-only de cada mutación de balances. El undo
// niega cada delta; el tipo queda solo como metadata una vez persistido.
type BankAction struct {
	ActionID   string          `json:"action_id"`
	GuildID    int64           `json:"guild_id"`
	ActorID    int64           `json:"actor_id"`
	CreatedAt  int64           `json:"created_at"`
	ActionType BankActionType  `json:"action_type"`
	Deltas     map[int64]int64 `json:"deltas"`
	Note       string          `json:"note,omitempty"`
	Undone     bool            `json:"undone"`
	UndoneAt   int64           `json:"undone_at,omitempty"`
}

type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketClosed  TicketStatus = "closed"
	TicketDeleted TicketStatus = "deleted"
)

type TicketRecord struct {
	TicketID  string       `json:"ticket_id"`
	GuildID   int64        `json:"guild_id"`
	ChannelID int64        `json:"channel_id"`
	OwnerID   int64        `json:"owner_id"`
	Status    TicketStatus `json:"status"`
	CreatedAt int64        `json:"created_at"`
	ClosedAt  int64        `json:"closed_at,omitempty"`

	TranscriptMarkdown string `json:"transcript_markdown,omitempty"`
	TranscriptPath     string `json:"transcript_path,omitempty"`
}

type TicketEventType string

const (
	TicketEventMessage       TicketEventType = "message"
	TicketEventMessageEdit   TicketEventType = "message_edit"
	TicketEventMessageDelete TicketEventType = "message_delete"
)

// TicketSnapshot: un evento capturado dentro del canal/thread del ticket,
// materia prima del transcript.
type TicketSnapshot struct {
	TicketID        string          `json:"ticket_id"`
	EventType       TicketEventType `json:"event_type"`
	CreatedAt       int64           `json:"created_at"`
	ChannelID       int64           `json:"channel_id"`
	MessageID       int64           `json:"message_id,omitempty"`
	AuthorID        int64           `json:"author_id,omitempty"`
	AuthorName      string          `json:"author_name,omitempty"`
	Content         string          `json:"content,omitempty"`
	PreviousContent string          `json:"previous_content,omitempty"`
}

type TicketMode string

const (
	TicketModeThread  TicketMode = "private_thread"
	TicketModeChannel TicketMode = "private_channel"
)

// TicketConfig: un solo esquema tipado por guild.
type TicketConfig struct {
	Mode           TicketMode `json:"mode"`
	CategoryID     int64      `json:"category_id,omitempty"`
	SupportRoleIDs []int64    `json:"support_role_ids,omitempty"`
	OpenStyle      string     `json:"open_style,omitempty"` // message | button
}

// Claves de permisos configurables por guild.
const (
	PermRaidManager   = "raid_manager"
	PermBankManager   = "bank_manager"
	PermTicketManager = "ticket_manager"
)
