package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
)

var ErrNotFound = errors.New("not found")

// State es el documento persistido: todo el grafo de entidades menos el
// ledger SQL (cuando hay base configurada, bank_* viajan vacíos).
type State struct {
	Templates        map[string]*domain.CompTemplate    `json:"templates"`
	Raids            map[string]*domain.RaidEvent       `json:"raids"`
	GuildPermissions map[int64]map[string][]int64       `json:"guild_permissions"`
	TicketConfigs    map[int64]*domain.TicketConfig     `json:"ticket_configs"`
	Tickets          map[string]*domain.TicketRecord    `json:"tickets"`
	TicketEvents     map[string][]domain.TicketSnapshot `json:"ticket_events"`
	LootLimits       map[int64]*domain.LootLimits       `json:"loot_limits,omitempty"`

	// Fallback JSON del banco (ver SnapshotLedger).
	BankBalances map[int64]map[int64]int64      `json:"bank_balances,omitempty"`
	BankActions  map[int64][]*domain.BankAction `json:"bank_actions,omitempty"`
}

func newState() *State {
	return &State{
		Templates:        map[string]*domain.CompTemplate{},
		Raids:            map[string]*domain.RaidEvent{},
		GuildPermissions: map[int64]map[string][]int64{},
		TicketConfigs:    map[int64]*domain.TicketConfig{},
		Tickets:          map[string]*domain.TicketRecord{},
		TicketEvents:     map[string][]domain.TicketSnapshot{},
		LootLimits:       map[int64]*domain.LootLimits{},
		BankBalances:     map[int64]map[int64]int64{},
		BankActions:      map[int64][]*domain.BankAction{},
	}
}

// Store es el dueño único del State en memoria. Un solo mutex protege cada
// read-modify-write; toda mutación durable termina en Save antes de soltarlo.
type Store struct {
	mu    sync.Mutex
	path  string
	log   *zap.Logger
	state *State

	// retención del log de acciones cuando el banco vive en el snapshot
	actionLogLimit int
}

func OpenStore(path string, actionLogLimit int, log *zap.Logger) (*Store, error) {
	s := &Store{path: path, actionLogLimit: actionLogLimit, log: log, state: newState()}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	st := newState()
	if err := json.Unmarshal(raw, st); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	normalize(st)
	s.state = st
	return nil
}

// normalize repone los maps anidados que el decode pudo dejar en nil.
func normalize(st *State) {
	if st.Templates == nil {
		st.Templates = map[string]*domain.CompTemplate{}
	}
	if st.Raids == nil {
		st.Raids = map[string]*domain.RaidEvent{}
	}
	if st.GuildPermissions == nil {
		st.GuildPermissions = map[int64]map[string][]int64{}
	}
	if st.TicketConfigs == nil {
		st.TicketConfigs = map[int64]*domain.TicketConfig{}
	}
	if st.Tickets == nil {
		st.Tickets = map[string]*domain.TicketRecord{}
	}
	if st.TicketEvents == nil {
		st.TicketEvents = map[string][]domain.TicketSnapshot{}
	}
	if st.LootLimits == nil {
		st.LootLimits = map[int64]*domain.LootLimits{}
	}
	if st.BankBalances == nil {
		st.BankBalances = map[int64]map[int64]int64{}
	}
	if st.BankActions == nil {
		st.BankActions = map[int64][]*domain.BankAction{}
	}
	for _, r := range st.Raids {
		if r.Signups == nil {
			r.Signups = map[int64]*domain.Signup{}
		}
		if r.Absent == nil {
			r.Absent = map[int64]struct{}{}
		}
		if r.DMNotifyUsers == nil {
			r.DMNotifyUsers = map[int64]struct{}{}
		}
	}
}

// Lock/Unlock exponen el mutex para secuencias que intercalan I/O del ledger
// con el estado (banco). El resto de los servicios usa Update/View.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// SaveLocked persiste el snapshot. El caller debe tener el lock.
// Escritura atómica: tmp + rename.
func (s *Store) SaveLocked() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// StateLocked da acceso directo al State. El caller debe tener el lock.
func (s *Store) StateLocked() *State { return s.state }

// Update: lock → mutar → persistir → unlock. Si fn devuelve error no se
// persiste nada.
func (s *Store) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.state); err != nil {
		return err
	}
	return s.SaveLocked()
}

// View: lectura bajo lock, sin persistencia.
func (s *Store) View(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// PermissionRoleIDs devuelve los roles configurados para una clave de
// permiso del guild (copia defensiva).
func (st *State) PermissionRoleIDs(guildID int64, permKey string) []int64 {
	ids := st.GuildPermissions[guildID][permKey]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

func (st *State) SetPermissionRoleIDs(guildID int64, permKey string, roleIDs []int64) {
	if st.GuildPermissions[guildID] == nil {
		st.GuildPermissions[guildID] = map[string][]int64{}
	}
	st.GuildPermissions[guildID][permKey] = roleIDs
}

// TicketByChannel busca el ticket asociado a un canal/thread.
func (st *State) TicketByChannel(channelID int64) *domain.TicketRecord {
	for _, t := range st.Tickets {
		if t.ChannelID == channelID {
			return t
		}
	}
	return nil
}

// RaidByThread busca el raid dueño de un thread de discusión.
func (st *State) RaidByThread(threadID int64) *domain.RaidEvent {
	for _, r := range st.Raids {
		if r.ThreadID == threadID {
			return r
		}
	}
	return nil
}
