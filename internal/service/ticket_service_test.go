package service

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/dto"
	"github.com/kasi-it/incident-desk/internal/mirror"
	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
	"github.com/kasi-it/incident-desk/pkg/export"
)

// memTicketStore is an in-memory record store with injectable failure.
type memTicketStore struct {
	tickets map[string]models.Ticket
	err     error
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{tickets: map[string]models.Ticket{}}
}

func (s *memTicketStore) Create(_ context.Context, t *models.Ticket) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.tickets[t.TicketID]; ok {
		return appErrors.ErrDuplicateTicket
	}
	s.tickets[t.TicketID] = *t
	return nil
}

func (s *memTicketStore) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tickets[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &t, nil
}

func (s *memTicketStore) List(context.Context) ([]models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	tickets := make([]models.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].CreatedAt.After(tickets[j].CreatedAt) })
	return tickets, nil
}

func (s *memTicketStore) Update(_ context.Context, t *models.Ticket) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.tickets[t.TicketID]; ok {
		s.tickets[t.TicketID] = *t
	}
	return nil
}

func (s *memTicketStore) Delete(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	delete(s.tickets, id)
	return nil
}

type fixedIDGen struct{ id string }

func (f fixedIDGen) Generate(context.Context, string, string) string { return f.id }

type recordedHistory struct {
	actions []string
	editors []string
}

func (r *recordedHistory) Record(_ context.Context, _, action string, _ map[string]interface{}, editor string) {
	r.actions = append(r.actions, action)
	r.editors = append(r.editors, editor)
}

type fakeRenderer struct {
	title  string
	fields []export.Field
	images int
}

func (f *fakeRenderer) Render(title string, fields []export.Field, images []export.Image) ([]byte, error) {
	f.title = title
	f.fields = fields
	f.images = len(images)
	return []byte("%PDF"), nil
}

type noUploads struct{}

func (noUploads) Open(string) (io.ReadCloser, error) { return nil, appErrors.ErrNotFound }

type ticketFixture struct {
	svc     *TicketService
	store   *memTicketStore
	mirror  *mirror.TicketMirror
	history *recordedHistory
	pdf     *fakeRenderer
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	store := newMemTicketStore()
	m := mirror.NewTicketMirror(filepath.Join(t.TempDir(), "tickets.csv"))
	history := &recordedHistory{}
	pdf := &fakeRenderer{}
	svc := NewTicketService(TicketServiceParams{
		Store:   store,
		Mirror:  m,
		IDGen:   fixedIDGen{id: "KASI-LOS1-20260314-NET-0001"},
		History: history,
		Cache:   NewCacheService(nil, nil, 0, zap.NewNop(), false),
		Metrics: NewMetricsService(),
		Uploads: noUploads{},
		PDF:     pdf,
		Logger:  zap.NewNop(),
		Now:     fixedNow,
	})
	return &ticketFixture{svc: svc, store: store, mirror: m, history: history, pdf: pdf}
}

func TestTicketServiceCreateGeneratesID(t *testing.T) {
	f := newTicketFixture(t)

	created, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{
		Category: "Network",
		Building: "LOS1",
		Status:   models.StatusOpen,
		Editor:   "ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "KASI-LOS1-20260314-NET-0001", created.TicketID)
	assert.Equal(t, fixedNow().UTC(), created.CreatedAt)

	// Both sides of the dual write hold the ticket.
	stored, err := f.store.GetByID(context.Background(), created.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "Network", stored.Category)

	mirrored, err := f.mirror.FindTicket(created.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "Network", mirrored.Category)

	assert.Equal(t, []string{models.ActionCreate}, f.history.actions)
	assert.Equal(t, []string{"ada"}, f.history.editors)
}

func TestTicketServiceCreateClosedSetsClosedAt(t *testing.T) {
	f := newTicketFixture(t)

	created, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{
		TicketID: "T-1",
		Status:   models.StatusClosed,
	})
	require.NoError(t, err)
	require.NotNil(t, created.ClosedAt)
	assert.Equal(t, fixedNow().UTC(), *created.ClosedAt)
}

func TestTicketServiceCreateDuplicate(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{TicketID: "T-1"})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), dto.CreateTicketRequest{TicketID: "T-1"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateTicket)
}

func TestTicketServiceCreateStoreDownStillMirrors(t *testing.T) {
	f := newTicketFixture(t)
	f.store.err = appErrors.ErrStoreUnavailable

	created, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{TicketID: "T-1", Category: "Power"})
	require.NoError(t, err)

	mirrored, err := f.mirror.FindTicket(created.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "Power", mirrored.Category)
}

func TestTicketServiceGetFallsBackToMirror(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{TicketID: "T-1", Category: "Network"})
	require.NoError(t, err)

	f.store.err = appErrors.ErrStoreUnavailable

	got, source, err := f.svc.GetByID(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, SourceMirror, source)
	assert.Equal(t, "Network", got.Category)

	tickets, source, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceMirror, source)
	assert.Len(t, tickets, 1)
}

func TestTicketServiceUpdatePreservesUnspecifiedFields(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{
		TicketID:    "T-1",
		Description: "core switch down",
		Status:      models.StatusOpen,
	})
	require.NoError(t, err)

	status := models.StatusInProgress
	updated, err := f.svc.Update(context.Background(), "T-1", dto.UpdateTicketRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "core switch down", updated.Description)

	mirrored, err := f.mirror.FindTicket("T-1")
	require.NoError(t, err)
	assert.Equal(t, "core switch down", mirrored.Description)
	assert.Equal(t, models.StatusInProgress, mirrored.Status)
}

func TestTicketServiceClosedAtTransitions(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{TicketID: "T-1", Status: models.StatusOpen})
	require.NoError(t, err)

	closed := models.StatusClosed
	updated, err := f.svc.Update(context.Background(), "T-1", dto.UpdateTicketRequest{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)

	open := models.StatusOpen
	updated, err = f.svc.Update(context.Background(), "T-1", dto.UpdateTicketRequest{Status: &open})
	require.NoError(t, err)
	assert.Nil(t, updated.ClosedAt)

	updated, err = f.svc.Update(context.Background(), "T-1", dto.UpdateTicketRequest{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)
}

func TestTicketServiceUpdateMissing(t *testing.T) {
	f := newTicketFixture(t)
	status := models.StatusClosed
	_, err := f.svc.Update(context.Background(), "nope", dto.UpdateTicketRequest{Status: &status})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTicketServiceDeleteRemovesBothSides(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{TicketID: "T-1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), "T-1", "ada"))

	_, _, err = f.svc.GetByID(context.Background(), "T-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.mirror.FindTicket("T-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.Equal(t, []string{models.ActionCreate, models.ActionDelete}, f.history.actions)
}

func TestTicketServiceDeleteMissing(t *testing.T) {
	f := newTicketFixture(t)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), "nope", ""), appErrors.ErrNotFound)
}

func TestTicketServiceRenderPDF(t *testing.T) {
	f := newTicketFixture(t)
	_, err := f.svc.Create(context.Background(), dto.CreateTicketRequest{
		TicketID:    "T-1",
		Category:    "Network",
		Attachments: []string{"missing.png", "notes.txt"},
	})
	require.NoError(t, err)

	payload, filename, err := f.svc.RenderPDF(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1.pdf", filename)
	assert.NotEmpty(t, payload)
	assert.Equal(t, "Incident Ticket T-1", f.pdf.title)
	// Unreadable and non-image attachments are skipped.
	assert.Equal(t, 0, f.pdf.images)

	var category string
	for _, field := range f.pdf.fields {
		if field.Label == "Category" {
			category = field.Value
		}
	}
	assert.Equal(t, "Network", category)
}
