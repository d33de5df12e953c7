package logger

// Nombres de campos estándar para logs consistentes.
const (
	FieldService = "service"
	FieldGuildID = "guild_id"
	FieldUserID  = "user_id"
	FieldRaidID  = "raid_id"
	FieldPhase   = "phase"
	FieldAction  = "action_id"
	FieldTicket  = "ticket_id"
)
