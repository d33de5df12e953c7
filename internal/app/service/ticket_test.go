package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jose-valero/albion-raid-bot/internal/domain"
	"github.com/jose-valero/albion-raid-bot/internal/infra/storage"
)

type fakeRooms struct {
	nextChannel int64
	createErr   error

	created        int
	archived       []int64
	archivedOwners []int64
	deleted        []int64
}

func (f *fakeRooms) CreateTicketRoom(context.Context, int64, int64, domain.TicketConfig) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created++
	f.nextChannel++
	return f.nextChannel, nil
}

func (f *fakeRooms) ArchiveTicketRoom(_ context.Context, ch, owner int64) error {
	f.archived = append(f.archived, ch)
	f.archivedOwners = append(f.archivedOwners, owner)
	return nil
}

func (f *fakeRooms) DeleteTicketRoom(_ context.Context, ch int64) error {
	f.deleted = append(f.deleted, ch)
	return nil
}

func newTicketFixture(t *testing.T) (*TicketService, *storage.Store, *fakeRooms) {
	t.Helper()
	store, err := storage.OpenStore(filepath.Join(t.TempDir(), "state.json"), 10, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	rooms := &fakeRooms{nextChannel: 1000}
	now := int64(5000)
	svc := NewTicketService(store, rooms, func() int64 { return now }, zap.NewNop())
	return svc, store, rooms
}

func TestOpenTicket(t *testing.T) {
	svc, _, rooms := newTicketFixture(t)
	ctx := context.Background()

	rec, err := svc.Open(ctx, testGuild, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if rec.Status != domain.TicketOpen || rec.ChannelID != 1001 {
		t.Fatalf("registro mal armado: %+v", rec)
	}
	if rooms.created != 1 {
		t.Fatalf("rooms creados = %d", rooms.created)
	}
}

func TestOpenTicketOnePerOwner(t *testing.T) {
	svc, _, _ := newTicketFixture(t)
	ctx := context.Background()

	if _, err := svc.Open(ctx, testGuild, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Open(ctx, testGuild, 10); !errors.Is(err, domain.ErrTicketAlreadyOpen) {
		t.Fatalf("segundo open: err = %v, want ErrTicketAlreadyOpen", err)
	}
	// otro owner sí puede
	if _, err := svc.Open(ctx, testGuild, 11); err != nil {
		t.Fatalf("open de otro owner: %v", err)
	}
}

func TestOpenTicketRoomFailureLeavesNoRecord(t *testing.T) {
	svc, store, rooms := newTicketFixture(t)
	rooms.createErr = errors.New("discord caído")

	if _, err := svc.Open(context.Background(), testGuild, 10); err == nil {
		t.Fatal("open tendría que fallar si el room no se pudo crear")
	}
	var count int
	_ = store.View(func(st *storage.State) error {
		count = len(st.Tickets)
		return nil
	})
	if count != 0 {
		t.Fatalf("quedó un ticket huérfano persistido: %d", count)
	}
}

func TestCloseTicketRendersTranscript(t *testing.T) {
	svc, _, rooms := newTicketFixture(t)
	ctx := context.Background()

	rec, err := svc.Open(ctx, testGuild, 10)
	if err != nil {
		t.Fatal(err)
	}
	events := []domain.TicketSnapshot{
		{EventType: domain.TicketEventMessage, ChannelID: rec.ChannelID, AuthorID: 10, AuthorName: "Pablo", Content: "hola, perdí mi set"},
		{EventType: domain.TicketEventMessageEdit, ChannelID: rec.ChannelID, AuthorID: 10, AuthorName: "Pablo", Content: "perdí mi set T8", PreviousContent: "hola, perdí mi set"},
		{EventType: domain.TicketEventMessageDelete, ChannelID: rec.ChannelID, AuthorID: 10, AuthorName: "Pablo", PreviousContent: "mensaje borrado"},
	}
	for _, ev := range events {
		if err := svc.RecordEvent(ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	closed, err := svc.Close(ctx, rec.ChannelID, false)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != domain.TicketClosed {
		t.Fatalf("status = %s, want closed", closed.Status)
	}
	for _, want := range []string{"perdí mi set T8", "(editado)", "(borrado)", "mensaje borrado"} {
		if !strings.Contains(closed.TranscriptMarkdown, want) {
			t.Fatalf("transcript sin %q:\n%s", want, closed.TranscriptMarkdown)
		}
	}
	if len(rooms.archived) != 1 {
		t.Fatalf("room no archivado: %v", rooms.archived)
	}
	// el archivado recibe al owner para poder sacarle la escritura
	if len(rooms.archivedOwners) != 1 || rooms.archivedOwners[0] != 10 {
		t.Fatalf("owner del archivado = %v, want [10]", rooms.archivedOwners)
	}
}

func TestCloseTicketTerminalStates(t *testing.T) {
	svc, _, rooms := newTicketFixture(t)
	ctx := context.Background()

	rec, err := svc.Open(ctx, testGuild, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Close(ctx, rec.ChannelID, true); err != nil {
		t.Fatal(err)
	}
	if len(rooms.deleted) != 1 {
		t.Fatalf("room no borrado: %v", rooms.deleted)
	}
	// terminal: no se reabre ni se vuelve a cerrar
	if _, err := svc.Close(ctx, rec.ChannelID, false); !errors.Is(err, domain.ErrTicketTerminal) {
		t.Fatalf("segundo close: err = %v, want ErrTicketTerminal", err)
	}
	// el owner puede abrir uno nuevo
	if _, err := svc.Open(ctx, testGuild, 10); err != nil {
		t.Fatalf("reapertura con ticket nuevo: %v", err)
	}
}

func TestRecordEventIgnoresForeignChannels(t *testing.T) {
	svc, store, _ := newTicketFixture(t)
	if err := svc.RecordEvent(domain.TicketSnapshot{ChannelID: 9999, Content: "x"}); err != nil {
		t.Fatalf("canales sin ticket se ignoran: %v", err)
	}
	_ = store.View(func(st *storage.State) error {
		for id, evs := range st.TicketEvents {
			if len(evs) != 0 {
				t.Fatalf("eventos fantasma en %s", id)
			}
		}
		return nil
	})
}
