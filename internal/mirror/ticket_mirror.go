package mirror

import (
	"strings"
	"sync"
	"time"

	appErrors "github.com/kasi-it/incident-desk/pkg/errors"

	"github.com/kasi-it/incident-desk/internal/models"
)

// TicketColumns is the fixed header of the ticket mirror file. The order
// is part of the file contract; consumers key rows by these names.
var TicketColumns = []string{
	"ticket_id",
	"category",
	"sub_category",
	"opened",
	"reporter",
	"priority",
	"building",
	"location",
	"impacted_systems",
	"description",
	"detection_source",
	"detected_at",
	"root_cause",
	"actions_taken",
	"status",
	"assigned_engineers",
	"resolution_summary",
	"resolved_at",
	"duration",
	"post_review",
	"attachments",
	"escalation_history",
	"closed",
	"sla_breach",
	"created_at",
	"updated_at",
	"closed_at",
}

// listSeparator joins multi-value cells (engineers, attachments). A
// semicolon keeps values containing commas inside a single cell.
const listSeparator = "; "

// TicketMirror owns the ticket CSV file. Read-modify-write sequences hold
// a per-file mutex; concurrent processes racing on the same file remain a
// known limitation.
type TicketMirror struct {
	path string
	mu   sync.Mutex
}

// NewTicketMirror returns a mirror bound to the given file path.
func NewTicketMirror(path string) *TicketMirror {
	return &TicketMirror{path: path}
}

// Path exposes the underlying file location (served raw by the export
// endpoint).
func (m *TicketMirror) Path() string {
	return m.path
}

// Append serialises the ticket to one row, creating the file with its
// header when absent.
func (m *TicketMirror) Append(t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return appendLine(m.path, TicketColumns, ticketValues(t))
}

// ReadAll parses the whole file into rows keyed by header names.
func (m *TicketMirror) ReadAll() ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, rows, err := readRows(m.path)
	return rows, err
}

// FindByID scans for the row whose first column matches id.
func (m *TicketMirror) FindByID(id string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	header, rows, err := readRows(m.path)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, appErrors.ErrNotFound
	}
	for _, row := range rows {
		if row[header[0]] == id {
			return row, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

// FindTicket is FindByID decoded into the store model.
func (m *TicketMirror) FindTicket(id string) (*models.Ticket, error) {
	row, err := m.FindByID(id)
	if err != nil {
		return nil, err
	}
	ticket := TicketFromRow(row)
	return &ticket, nil
}

// AllTickets decodes every row into store models.
func (m *TicketMirror) AllTickets() ([]models.Ticket, error) {
	rows, err := m.ReadAll()
	if err != nil {
		return nil, err
	}
	tickets := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, TicketFromRow(row))
	}
	return tickets, nil
}

// RewriteWithUpdate replaces the matching row with the merged ticket,
// preserving the file's own column order. Columns the file carries that
// the model does not are kept from the old row.
func (m *TicketMirror) RewriteWithUpdate(id string, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	header, rows, err := readRows(m.path)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return appErrors.ErrNotFound
	}
	replacement := rowFromTicket(t)
	found := false
	for i, row := range rows {
		if row[header[0]] != id {
			continue
		}
		merged := make(Row, len(row))
		for column, value := range row {
			merged[column] = value
		}
		for column, value := range replacement {
			merged[column] = value
		}
		rows[i] = merged
		found = true
		break
	}
	if !found {
		return appErrors.ErrNotFound
	}
	return writeRows(m.path, header, rows)
}

// RewriteWithout drops the matching row and writes the file back.
func (m *TicketMirror) RewriteWithout(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	header, rows, err := readRows(m.path)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return appErrors.ErrNotFound
	}
	kept := rows[:0]
	found := false
	for _, row := range rows {
		if row[header[0]] == id {
			found = true
			continue
		}
		kept = append(kept, row)
	}
	if !found {
		return appErrors.ErrNotFound
	}
	return writeRows(m.path, header, kept)
}

// CountByCategory counts rows matching the category by parsing the file
// directly rather than through ReadAll, so a file without a category
// column yields zero instead of an error. Used by the id generator when
// the record store is down.
func (m *TicketMirror) CountByCategory(category string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	header, rows, err := readRows(m.path)
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, column := range header {
		if column == "category" {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, nil
	}
	count := 0
	for _, row := range rows {
		if row["category"] == category {
			count++
		}
	}
	return count, nil
}

func ticketValues(t *models.Ticket) []string {
	row := rowFromTicket(t)
	values := make([]string, len(TicketColumns))
	for i, column := range TicketColumns {
		values[i] = row[column]
	}
	return values
}

func rowFromTicket(t *models.Ticket) Row {
	closedAt := ""
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.UTC().Format(time.RFC3339)
	}
	return Row{
		"ticket_id":          t.TicketID,
		"category":           t.Category,
		"sub_category":       t.SubCategory,
		"opened":             t.Opened,
		"reporter":           t.Reporter,
		"priority":           t.Priority,
		"building":           t.Building,
		"location":           t.Location,
		"impacted_systems":   t.ImpactedSystems,
		"description":        t.Description,
		"detection_source":   t.DetectionSource,
		"detected_at":        t.DetectedAt,
		"root_cause":         t.RootCause,
		"actions_taken":      t.ActionsTaken,
		"status":             t.Status,
		"assigned_engineers": strings.Join(t.AssignedEngineers, listSeparator),
		"resolution_summary": t.ResolutionSummary,
		"resolved_at":        t.ResolvedAt,
		"duration":           t.Duration,
		"post_review":        t.PostReview,
		"attachments":        strings.Join(t.Attachments, listSeparator),
		"escalation_history": t.EscalationHistory,
		"closed":             t.Closed,
		"sla_breach":         t.SLABreach,
		"created_at":         t.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":         t.UpdatedAt.UTC().Format(time.RFC3339),
		"closed_at":          closedAt,
	}
}

// TicketFromRow decodes a mirror row into the store model. Unparseable
// instants decode to zero values; the mirror is a fallback, not a source
// of truth.
func TicketFromRow(row Row) models.Ticket {
	t := models.Ticket{
		TicketID:          row["ticket_id"],
		Category:          row["category"],
		SubCategory:       row["sub_category"],
		Opened:            row["opened"],
		Reporter:          row["reporter"],
		Priority:          row["priority"],
		Building:          row["building"],
		Location:          row["location"],
		ImpactedSystems:   row["impacted_systems"],
		Description:       row["description"],
		DetectionSource:   row["detection_source"],
		DetectedAt:        row["detected_at"],
		RootCause:         row["root_cause"],
		ActionsTaken:      row["actions_taken"],
		Status:            row["status"],
		AssignedEngineers: splitList(row["assigned_engineers"]),
		ResolutionSummary: row["resolution_summary"],
		ResolvedAt:        row["resolved_at"],
		Duration:          row["duration"],
		PostReview:        row["post_review"],
		Attachments:       splitList(row["attachments"]),
		EscalationHistory: row["escalation_history"],
		Closed:            row["closed"],
		SLABreach:         row["sla_breach"],
	}
	if parsed, err := time.Parse(time.RFC3339, row["created_at"]); err == nil {
		t.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, row["updated_at"]); err == nil {
		t.UpdatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, row["closed_at"]); err == nil {
		t.ClosedAt = &parsed
	}
	return t
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, listSeparator)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
