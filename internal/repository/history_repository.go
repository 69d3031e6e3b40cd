package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasi-it/incident-desk/internal/models"
)

// HistoryRepository persists the append-only change log in the record
// store. Entries survive ticket deletion.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs a new repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts one history entry.
func (r *HistoryRepository) Create(ctx context.Context, e *models.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	query := `INSERT INTO ticket_history (id, ticket_id, timestamp, action, changes, editor)
VALUES (:id, :ticket_id, :timestamp, :action, :changes, :editor)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create history entry: %w", err)
	}
	return nil
}

// ListByTicket returns entries for one ticket, oldest first.
func (r *HistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	query := `SELECT id, ticket_id, timestamp, action, changes, editor
FROM ticket_history WHERE ticket_id = $1 ORDER BY timestamp ASC`
	if err := r.db.SelectContext(ctx, &entries, query, ticketID); err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	return entries, nil
}
