package mirror

import (
	"sync"
	"time"

	"github.com/kasi-it/incident-desk/internal/models"
)

// HistoryColumns is the fixed header of the history mirror file.
var HistoryColumns = []string{
	"id",
	"ticket_id",
	"timestamp",
	"action",
	"changes",
	"editor",
}

// HistoryMirror owns the append-only history CSV file. Entries are never
// rewritten, so file order is chronological by construction.
type HistoryMirror struct {
	path string
	mu   sync.Mutex
}

// NewHistoryMirror returns a mirror bound to the given file path.
func NewHistoryMirror(path string) *HistoryMirror {
	return &HistoryMirror{path: path}
}

// Append writes one history entry, creating the file with its header when
// absent.
func (m *HistoryMirror) Append(e *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := []string{
		e.ID,
		e.TicketID,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Action,
		e.Changes,
		e.Editor,
	}
	return appendLine(m.path, HistoryColumns, values)
}

// FindByTicket scans the file for entries referencing the ticket,
// preserving file order.
func (m *HistoryMirror) FindByTicket(ticketID string) ([]models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, rows, err := readRows(m.path)
	if err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0)
	for _, row := range rows {
		if row["ticket_id"] != ticketID {
			continue
		}
		entry := models.HistoryEntry{
			ID:       row["id"],
			TicketID: row["ticket_id"],
			Action:   row["action"],
			Changes:  row["changes"],
			Editor:   row["editor"],
		}
		if parsed, err := time.Parse(time.RFC3339, row["timestamp"]); err == nil {
			entry.Timestamp = parsed
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
