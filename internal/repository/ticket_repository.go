package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
)

const ticketColumns = `ticket_id, category, sub_category, opened, reporter, priority, building, location,
impacted_systems, description, detection_source, detected_at, root_cause, actions_taken, status,
assigned_engineers, resolution_summary, resolved_at, duration, post_review, attachments,
escalation_history, closed, sla_breach, created_at, updated_at, closed_at`

// TicketRepository manages ticket persistence in the record store.
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository constructs a new repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket. A duplicate ticket_id yields
// ErrDuplicateTicket.
func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	query := `INSERT INTO tickets (ticket_id, category, sub_category, opened, reporter, priority, building, location,
impacted_systems, description, detection_source, detected_at, root_cause, actions_taken, status,
assigned_engineers, resolution_summary, resolved_at, duration, post_review, attachments,
escalation_history, closed, sla_breach, created_at, updated_at, closed_at)
VALUES (:ticket_id, :category, :sub_category, :opened, :reporter, :priority, :building, :location,
:impacted_systems, :description, :detection_source, :detected_at, :root_cause, :actions_taken, :status,
:assigned_engineers, :resolution_summary, :resolved_at, :duration, :post_review, :attachments,
:escalation_history, :closed, :sla_breach, :created_at, :updated_at, :closed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return appErrors.ErrDuplicateTicket
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// GetByID fetches a single ticket.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE ticket_id = $1", ticketColumns)
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
}

// List returns every ticket, newest first.
func (r *TicketRepository) List(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	query := fmt.Sprintf("SELECT %s FROM tickets ORDER BY created_at DESC", ticketColumns)
	if err := r.db.SelectContext(ctx, &tickets, query); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// Update writes the full merged ticket back. A missing id is a no-op from
// the store's perspective; callers confirm existence separately.
func (r *TicketRepository) Update(ctx context.Context, t *models.Ticket) error {
	t.UpdatedAt = time.Now().UTC()
	query := `UPDATE tickets SET category = :category, sub_category = :sub_category, opened = :opened,
reporter = :reporter, priority = :priority, building = :building, location = :location,
impacted_systems = :impacted_systems, description = :description, detection_source = :detection_source,
detected_at = :detected_at, root_cause = :root_cause, actions_taken = :actions_taken, status = :status,
assigned_engineers = :assigned_engineers, resolution_summary = :resolution_summary, resolved_at = :resolved_at,
duration = :duration, post_review = :post_review, attachments = :attachments,
escalation_history = :escalation_history, closed = :closed, sla_breach = :sla_breach,
updated_at = :updated_at, closed_at = :closed_at
WHERE ticket_id = :ticket_id`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

// Delete removes a ticket row.
func (r *TicketRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM tickets WHERE ticket_id = $1", id); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

// CountByCategory counts tickets in one category; the id generator's
// sequence source.
func (r *TicketRepository) CountByCategory(ctx context.Context, category string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM tickets WHERE category = $1", category); err != nil {
		return 0, fmt.Errorf("count tickets by category: %w", err)
	}
	return count, nil
}

// Count returns the number of tickets created within the range.
func (r *TicketRepository) Count(ctx context.Context, rng models.DateRange) (int, error) {
	var builder strings.Builder
	builder.WriteString("SELECT COUNT(*) FROM tickets WHERE 1=1")
	args := appendRange(&builder, nil, "created_at", rng)
	var count int
	if err := r.db.GetContext(ctx, &count, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

// groupable whitelists the columns the grouped counts may touch.
var groupable = map[string]struct{}{
	"status":   {},
	"category": {},
	"priority": {},
}

// GroupCounts aggregates ticket counts grouped by a column, substituting
// the placeholder for empty values. Group order follows the store's
// result order; ties in downstream "top group" picks are broken by first
// encounter.
func (r *TicketRepository) GroupCounts(ctx context.Context, column, placeholder string, rng models.DateRange) ([]models.GroupCount, error) {
	if _, ok := groupable[column]; !ok {
		return nil, fmt.Errorf("group counts: column %q not groupable", column)
	}
	var builder strings.Builder
	args := []interface{}{placeholder}
	builder.WriteString(fmt.Sprintf("SELECT COALESCE(NULLIF(btrim(%s), ''), $1) AS key, COUNT(*) AS count FROM tickets WHERE 1=1", column))
	args = appendRange(&builder, args, "created_at", rng)
	builder.WriteString(" GROUP BY key ORDER BY count DESC")

	var groups []models.GroupCount
	if err := r.db.SelectContext(ctx, &groups, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("group tickets by %s: %w", column, err)
	}
	return groups, nil
}

// OpenedPerDay buckets ticket creations by calendar day.
func (r *TicketRepository) OpenedPerDay(ctx context.Context, rng models.DateRange) ([]models.DayCount, error) {
	var builder strings.Builder
	builder.WriteString("SELECT to_char(created_at, 'YYYY-MM-DD') AS day, COUNT(*) AS count FROM tickets WHERE 1=1")
	args := appendRange(&builder, nil, "created_at", rng)
	builder.WriteString(" GROUP BY day ORDER BY day ASC")

	var days []models.DayCount
	if err := r.db.SelectContext(ctx, &days, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("opened per day: %w", err)
	}
	return days, nil
}

// ClosedPerDay buckets closed tickets by the day they closed, falling back
// to the creation day when no closed instant was recorded. Tickets marked
// Closed through paths that bypassed the transition logic can therefore
// land on their creation day; a known data-integrity caveat.
func (r *TicketRepository) ClosedPerDay(ctx context.Context, rng models.DateRange) ([]models.DayCount, error) {
	var builder strings.Builder
	builder.WriteString("SELECT to_char(COALESCE(closed_at, created_at), 'YYYY-MM-DD') AS day, COUNT(*) AS count FROM tickets WHERE status = 'Closed'")
	args := appendRange(&builder, nil, "COALESCE(closed_at, created_at)", rng)
	builder.WriteString(" GROUP BY day ORDER BY day ASC")

	var days []models.DayCount
	if err := r.db.SelectContext(ctx, &days, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("closed per day: %w", err)
	}
	return days, nil
}

// SLASplit counts breached tickets within the range. The breach flag is
// read permissively: legacy rows carry booleans, "yes"/"checked" strings
// or 0/1 numerics.
func (r *TicketRepository) SLASplit(ctx context.Context, rng models.DateRange) (models.SLASplit, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE lower(btrim(sla_breach)) IN ('true', 'yes', 'checked', '1')) AS breached
FROM tickets WHERE 1=1`)
	args := appendRange(&builder, nil, "created_at", rng)

	var split models.SLASplit
	if err := r.db.GetContext(ctx, &split, builder.String(), args...); err != nil {
		return models.SLASplit{}, fmt.Errorf("sla split: %w", err)
	}
	return split, nil
}

func appendRange(builder *strings.Builder, args []interface{}, expr string, rng models.DateRange) []interface{} {
	if rng.From != nil {
		args = append(args, *rng.From)
		builder.WriteString(fmt.Sprintf(" AND %s >= $%d", expr, len(args)))
	}
	if rng.To != nil {
		args = append(args, *rng.To)
		builder.WriteString(fmt.Sprintf(" AND %s < $%d", expr, len(args)))
	}
	return args
}
