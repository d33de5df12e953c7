package domain

import "errors"

// Errores de validación/autorización del core. El adapter los traduce a
// mensajes efímeros; nunca disparan retries.
var (
	ErrRaidNotFound       = errors.New("raid not found")
	ErrTemplateMissing    = errors.New("template missing")
	ErrRoleNotFound       = errors.New("role not found in template")
	ErrReservedRole       = errors.New("reserved role")
	ErrLeaderLocked       = errors.New("raid leader cannot switch roles")
	ErrMissingRequired    = errors.New("missing required discord role")
	ErrRegistrationClosed = errors.New("registration closed")
	ErrRaidTerminal       = errors.New("raid already closed")
	ErrIPRequired         = errors.New("ip required for role")
	ErrIPOutOfRange       = errors.New("ip out of range")

	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNoTargets         = errors.New("no targets resolved")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUndoableAction  = errors.New("no undoable action")
	ErrUndoWindowExpired = errors.New("undo window expired")
	ErrAlreadyUndone     = errors.New("action already undone")
	ErrSelfPayment       = errors.New("cannot pay yourself")
	ErrBotTarget         = errors.New("cannot target a bot account")

	ErrTicketAlreadyOpen = errors.New("ticket already open for user")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketTerminal    = errors.New("ticket already finalized")

	ErrTemplateExists = errors.New("template already exists")
	ErrInvalidSpec    = errors.New("invalid comp spec")
)
