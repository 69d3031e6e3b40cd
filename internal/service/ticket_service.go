package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/dto"
	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
	"github.com/kasi-it/incident-desk/pkg/export"
)

// Read sources reported in response metadata.
const (
	SourceStore  = "store"
	SourceMirror = "mirror"
)

// statsCachePattern matches every cached stats payload; any ticket
// mutation invalidates them all.
const statsCachePattern = "stats:*"

// ticketStore is the record-store side of the dual write.
type ticketStore interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context) ([]models.Ticket, error)
	Update(ctx context.Context, t *models.Ticket) error
	Delete(ctx context.Context, id string) error
}

// ticketMirrorStore is the file side of the dual write.
type ticketMirrorStore interface {
	Append(t *models.Ticket) error
	FindTicket(id string) (*models.Ticket, error)
	AllTickets() ([]models.Ticket, error)
	RewriteWithUpdate(id string, t *models.Ticket) error
	RewriteWithout(id string) error
	Path() string
}

// idGenerator assigns ids to submissions that omitted one.
type idGenerator interface {
	Generate(ctx context.Context, category, building string) string
}

// historyRecorder appends change-log entries.
type historyRecorder interface {
	Record(ctx context.Context, ticketID, action string, changes map[string]interface{}, editor string)
}

// attachmentOpener reads stored upload files for PDF embedding.
type attachmentOpener interface {
	Open(filename string) (io.ReadCloser, error)
}

// pdfRenderer renders the ticket summary document.
type pdfRenderer interface {
	Render(title string, fields []export.Field, images []export.Image) ([]byte, error)
}

// TicketService owns the ticket lifecycle: dual-writing the record store
// and the CSV mirror, recording history, and serving fallback reads.
type TicketService struct {
	store   ticketStore
	mirror  ticketMirrorStore
	idgen   idGenerator
	history historyRecorder
	cache   *CacheService
	metrics *MetricsService
	uploads attachmentOpener
	pdf     pdfRenderer
	logger  *zap.Logger
	now     func() time.Time
}

// TicketServiceParams bundles the ticket service dependencies.
type TicketServiceParams struct {
	Store   ticketStore
	Mirror  ticketMirrorStore
	IDGen   idGenerator
	History historyRecorder
	Cache   *CacheService
	Metrics *MetricsService
	Uploads attachmentOpener
	PDF     pdfRenderer
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewTicketService constructs a ticket service.
func NewTicketService(p TicketServiceParams) *TicketService {
	if p.Now == nil {
		p.Now = time.Now
	}
	return &TicketService{
		store:   p.Store,
		mirror:  p.Mirror,
		idgen:   p.IDGen,
		history: p.History,
		cache:   p.Cache,
		metrics: p.Metrics,
		uploads: p.Uploads,
		pdf:     p.PDF,
		logger:  p.Logger,
		now:     p.Now,
	}
}

// Create persists a new ticket. The record store is written first; a
// duplicate id there is fatal, any other store failure is logged and the
// mirror write proceeds so the ticket is not lost.
func (s *TicketService) Create(ctx context.Context, req dto.CreateTicketRequest) (*models.Ticket, error) {
	t := req.Ticket()
	if t.TicketID == "" {
		t.TicketID = s.idgen.Generate(ctx, t.Category, t.Building)
	}

	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == models.StatusClosed {
		t.ClosedAt = &now
	}

	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateTicket) {
			return nil, err
		}
		s.logger.Error("store create failed, continuing with mirror", zap.String("ticket_id", t.TicketID), zap.Error(err))
		// The store could not enforce uniqueness; check the mirror before
		// appending a second row with the same id.
		if _, mErr := s.mirror.FindTicket(t.TicketID); mErr == nil {
			return nil, appErrors.ErrDuplicateTicket
		}
	}

	if err := s.mirror.Append(t); err != nil {
		s.metrics.RecordMirrorFailure("ticket_append")
		s.logger.Error("mirror append failed", zap.String("ticket_id", t.TicketID), zap.Error(err))
	}

	s.history.Record(ctx, t.TicketID, models.ActionCreate, req.Snapshot(), req.Editor)
	s.cache.Invalidate(ctx, statsCachePattern)
	return t, nil
}

// GetByID reads one ticket, preferring the record store and falling back
// to the mirror file. The returned source names the path that served the
// read.
func (s *TicketService) GetByID(ctx context.Context, id string) (*models.Ticket, string, error) {
	t, err := s.store.GetByID(ctx, id)
	if err == nil {
		return t, SourceStore, nil
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		s.metrics.RecordStoreFallback()
		s.logger.Warn("store read failed, using mirror", zap.String("ticket_id", id), zap.Error(err))
	}

	mt, mErr := s.mirror.FindTicket(id)
	if mErr == nil {
		return mt, SourceMirror, nil
	}
	if errors.Is(mErr, appErrors.ErrNotFound) || errors.Is(err, appErrors.ErrNotFound) {
		return nil, "", appErrors.ErrNotFound
	}
	return nil, "", fmt.Errorf("read ticket %s: %w", id, mErr)
}

// List returns every ticket, newest first, with mirror fallback.
func (s *TicketService) List(ctx context.Context) ([]models.Ticket, string, error) {
	tickets, err := s.store.List(ctx)
	if err == nil {
		return tickets, SourceStore, nil
	}
	s.metrics.RecordStoreFallback()
	s.logger.Warn("store list failed, using mirror", zap.Error(err))

	tickets, mErr := s.mirror.AllTickets()
	if mErr != nil {
		return nil, "", fmt.Errorf("list tickets: %w", mErr)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, SourceMirror, nil
}

// Update merges the partial request onto the existing ticket and writes
// both sides. Status transitions into Closed stamp closed_at; transitions
// out clear it.
func (s *TicketService) Update(ctx context.Context, id string, req dto.UpdateTicketRequest) (*models.Ticket, error) {
	existing, _, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	priorStatus := existing.Status
	req.Apply(existing)

	now := s.now().UTC()
	switch {
	case existing.Status == models.StatusClosed && priorStatus != models.StatusClosed:
		existing.ClosedAt = &now
	case existing.Status != models.StatusClosed && priorStatus == models.StatusClosed:
		existing.ClosedAt = nil
	}
	existing.UpdatedAt = now

	if err := s.store.Update(ctx, existing); err != nil {
		s.logger.Error("store update failed, continuing with mirror", zap.String("ticket_id", id), zap.Error(err))
	}

	if err := s.mirror.RewriteWithUpdate(id, existing); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			// Row missing from the mirror (a past append failure); restore it.
			if aErr := s.mirror.Append(existing); aErr != nil {
				s.metrics.RecordMirrorFailure("ticket_update")
				s.logger.Error("mirror restore failed", zap.String("ticket_id", id), zap.Error(aErr))
			}
		} else {
			s.metrics.RecordMirrorFailure("ticket_update")
			s.logger.Error("mirror update failed", zap.String("ticket_id", id), zap.Error(err))
		}
	}

	s.history.Record(ctx, id, models.ActionUpdate, req.Snapshot(), req.Editor)
	s.cache.Invalidate(ctx, statsCachePattern)
	return existing, nil
}

// Delete removes the ticket from both sides. The history log keeps its
// entries. A failed mirror rewrite is surfaced: the caller must not be
// told the ticket is gone while the fallback path still serves it.
func (s *TicketService) Delete(ctx context.Context, id, editor string) error {
	if _, _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("store delete failed, continuing with mirror", zap.String("ticket_id", id), zap.Error(err))
	}

	if err := s.mirror.RewriteWithout(id); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
		s.metrics.RecordMirrorFailure("ticket_delete")
		return fmt.Errorf("remove ticket %s from mirror: %w", id, err)
	}

	s.history.Record(ctx, id, models.ActionDelete, map[string]interface{}{"ticket_id": id}, editor)
	s.cache.Invalidate(ctx, statsCachePattern)
	return nil
}

// ExportPath returns the location of the raw ticket mirror file.
func (s *TicketService) ExportPath() string {
	return s.mirror.Path()
}

// RenderPDF builds the printable ticket summary with embedded image
// attachments. Attachments that are missing or not images are skipped.
func (s *TicketService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	t, _, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	images, closers := s.openImages(t.Attachments)
	defer func() {
		for _, closer := range closers {
			closer.Close() //nolint:errcheck
		}
	}()

	payload, err := s.pdf.Render("Incident Ticket "+t.TicketID, ticketFields(t), images)
	if err != nil {
		return nil, "", fmt.Errorf("render ticket %s: %w", id, err)
	}
	return payload, t.TicketID + ".pdf", nil
}

func (s *TicketService) openImages(attachments []string) ([]export.Image, []io.Closer) {
	images := make([]export.Image, 0, len(attachments))
	closers := make([]io.Closer, 0, len(attachments))
	for _, name := range attachments {
		var imageType string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png":
			imageType = "PNG"
		case ".jpg", ".jpeg":
			imageType = "JPG"
		default:
			continue
		}
		reader, err := s.uploads.Open(name)
		if err != nil {
			s.logger.Warn("attachment unreadable, skipping", zap.String("attachment", name), zap.Error(err))
			continue
		}
		closers = append(closers, reader)
		images = append(images, export.Image{Name: name, Type: imageType, Reader: reader})
	}
	return images, closers
}

func ticketFields(t *models.Ticket) []export.Field {
	closedAt := ""
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.UTC().Format(time.RFC3339)
	}
	return []export.Field{
		{Label: "Ticket ID", Value: t.TicketID},
		{Label: "Category", Value: t.Category},
		{Label: "Sub-category", Value: t.SubCategory},
		{Label: "Opened", Value: t.Opened},
		{Label: "Reporter", Value: t.Reporter},
		{Label: "Priority", Value: t.Priority},
		{Label: "Building", Value: t.Building},
		{Label: "Location", Value: t.Location},
		{Label: "Impacted Systems", Value: t.ImpactedSystems},
		{Label: "Description", Value: t.Description},
		{Label: "Detection Source", Value: t.DetectionSource},
		{Label: "Detected At", Value: t.DetectedAt},
		{Label: "Root Cause", Value: t.RootCause},
		{Label: "Actions Taken", Value: t.ActionsTaken},
		{Label: "Status", Value: t.Status},
		{Label: "Assigned Engineers", Value: strings.Join(t.AssignedEngineers, ", ")},
		{Label: "Resolution Summary", Value: t.ResolutionSummary},
		{Label: "Resolved At", Value: t.ResolvedAt},
		{Label: "Duration", Value: t.Duration},
		{Label: "Post-incident Review", Value: t.PostReview},
		{Label: "Escalation History", Value: t.EscalationHistory},
		{Label: "Closed", Value: t.Closed},
		{Label: "SLA Breach", Value: t.SLABreach},
		{Label: "Created At", Value: t.CreatedAt.UTC().Format(time.RFC3339)},
		{Label: "Closed At", Value: closedAt},
	}
}
