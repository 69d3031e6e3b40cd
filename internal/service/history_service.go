package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/models"
)

// historyStore persists history entries in the record store.
type historyStore interface {
	Create(ctx context.Context, e *models.HistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]models.HistoryEntry, error)
}

// historyMirror persists history entries in the mirror file.
type historyMirror interface {
	Append(e *models.HistoryEntry) error
	FindByTicket(ticketID string) ([]models.HistoryEntry, error)
}

// HistoryService maintains the append-only change log. Recording is
// best-effort on both sides: history must never fail a ticket operation.
type HistoryService struct {
	store   historyStore
	mirror  historyMirror
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewHistoryService constructs a history service. now may be nil.
func NewHistoryService(store historyStore, mirror historyMirror, metrics *MetricsService, logger *zap.Logger, now func() time.Time) *HistoryService {
	if now == nil {
		now = time.Now
	}
	return &HistoryService{store: store, mirror: mirror, metrics: metrics, logger: logger, now: now}
}

// Record appends one entry to both the record store and the mirror file.
// changes is serialised to JSON; a nil map records an empty object.
func (s *HistoryService) Record(ctx context.Context, ticketID, action string, changes map[string]interface{}, editor string) {
	if changes == nil {
		changes = map[string]interface{}{}
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		s.logger.Error("marshal history changes", zap.String("ticket_id", ticketID), zap.Error(err))
		payload = []byte("{}")
	}

	entry := &models.HistoryEntry{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Timestamp: s.now().UTC(),
		Action:    action,
		Changes:   string(payload),
		Editor:    editor,
	}

	if s.store != nil {
		if err := s.store.Create(ctx, entry); err != nil {
			s.logger.Error("record history in store", zap.String("ticket_id", ticketID), zap.String("action", action), zap.Error(err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.Append(entry); err != nil {
			s.metrics.RecordMirrorFailure("history_append")
			s.logger.Error("record history in mirror", zap.String("ticket_id", ticketID), zap.String("action", action), zap.Error(err))
		}
	}
}

// FindByTicket returns the change log for one ticket, oldest first,
// preferring the record store and falling back to the mirror file.
func (s *HistoryService) FindByTicket(ctx context.Context, ticketID string) ([]models.HistoryEntry, error) {
	if s.store != nil {
		entries, err := s.store.ListByTicket(ctx, ticketID)
		if err == nil {
			return entries, nil
		}
		s.metrics.RecordStoreFallback()
		s.logger.Warn("history from store failed, using mirror", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	if s.mirror == nil {
		return []models.HistoryEntry{}, nil
	}
	return s.mirror.FindByTicket(ticketID)
}
