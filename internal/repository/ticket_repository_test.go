package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
)

func newTicketMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func anyTicketArgs() []driver.Value {
	args := make([]driver.Value, 27)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func ticketRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"ticket_id", "category", "sub_category", "opened", "reporter", "priority", "building", "location",
		"impacted_systems", "description", "detection_source", "detected_at", "root_cause", "actions_taken", "status",
		"assigned_engineers", "resolution_summary", "resolved_at", "duration", "post_review", "attachments",
		"escalation_history", "closed", "sla_breach", "created_at", "updated_at", "closed_at",
	}).AddRow(
		"KASI-LOS1-20260314-NET-0001", "Network", "", "", "A. Okafor", "High", "LOS1", "",
		"", "switch down", "", "", "", "", "Open",
		"{}", "", "", "", "", "{}",
		"", "", "", now, now, nil,
	)
}

func TestTicketRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectExec("INSERT INTO tickets").
		WithArgs(anyTicketArgs()...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Ticket{TicketID: "T-1", Category: "Network", Status: models.StatusOpen})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectExec("INSERT INTO tickets").
		WithArgs(anyTicketArgs()...).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Ticket{TicketID: "T-1"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateTicket)
}

func TestTicketRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT .* FROM tickets WHERE ticket_id").
		WithArgs("KASI-LOS1-20260314-NET-0001").
		WillReturnRows(ticketRow())

	ticket, err := repo.GetByID(context.Background(), "KASI-LOS1-20260314-NET-0001")
	require.NoError(t, err)
	assert.Equal(t, "Network", ticket.Category)
	assert.Equal(t, models.StatusOpen, ticket.Status)
	assert.Nil(t, ticket.ClosedAt)
}

func TestTicketRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT .* FROM tickets WHERE ticket_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTicketRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	args := make([]driver.Value, 26)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec("UPDATE tickets SET").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Ticket{TicketID: "T-1", Status: models.StatusClosed})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectExec("DELETE FROM tickets WHERE ticket_id").
		WithArgs("T-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "T-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryCountByCategory(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tickets WHERE category").
		WithArgs("Network").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByCategory(context.Background(), "Network")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestTicketRepositoryCountWithRange(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tickets WHERE 1=1 AND created_at >= \\$1 AND created_at < \\$2").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background(), models.DateRange{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTicketRepositoryGroupCountsRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	_, err := repo.GroupCounts(context.Background(), "reporter", "Unknown", models.DateRange{})
	assert.Error(t, err)
}

func TestTicketRepositoryGroupCounts(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT COALESCE\\(NULLIF\\(btrim\\(status\\), ''\\), \\$1\\) AS key").
		WithArgs("Unknown").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).
			AddRow("Open", 5).
			AddRow("Closed", 2).
			AddRow("Unknown", 1))

	groups, err := repo.GroupCounts(context.Background(), "status", "Unknown", models.DateRange{})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Open", groups[0].Key)
	assert.Equal(t, 5, groups[0].Count)
	assert.Equal(t, "Unknown", groups[2].Key)
}

func TestTicketRepositoryOpenedPerDay(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT to_char\\(created_at, 'YYYY-MM-DD'\\) AS day").
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).
			AddRow("2026-03-14", 2).
			AddRow("2026-03-15", 1))

	days, err := repo.OpenedPerDay(context.Background(), models.DateRange{})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-03-14", days[0].Day)
	assert.Equal(t, 2, days[0].Count)
}

func TestTicketRepositoryClosedPerDayFallsBackToCreation(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT to_char\\(COALESCE\\(closed_at, created_at\\), 'YYYY-MM-DD'\\) AS day.*WHERE status = 'Closed'").
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).AddRow("2026-03-14", 1))

	days, err := repo.ClosedPerDay(context.Background(), models.DateRange{})
	require.NoError(t, err)
	require.Len(t, days, 1)
}

func TestTicketRepositorySLASplit(t *testing.T) {
	db, mock, cleanup := newTicketMock(t)
	defer cleanup()
	repo := NewTicketRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").
		WillReturnRows(sqlmock.NewRows([]string{"total", "breached"}).AddRow(10, 3))

	split, err := repo.SLASplit(context.Background(), models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 10, split.Total)
	assert.Equal(t, 3, split.Breached)
}
