package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasi-it/incident-desk/internal/models"
)

func TestNormalizeBreachFlag(t *testing.T) {
	cases := []struct {
		name string
		raw  interface{}
		want string
	}{
		{"nil", nil, ""},
		{"bool true", true, "Yes"},
		{"bool false", false, ""},
		{"yes string", "yes", "Yes"},
		{"checked mixed case", " Checked ", "Yes"},
		{"true string", "TRUE", "Yes"},
		{"one string", "1", "Yes"},
		{"no string", "no", ""},
		{"unchecked", "unchecked", ""},
		{"numeric one", float64(1), "Yes"},
		{"numeric zero", float64(0), ""},
		{"int one", 1, "Yes"},
		{"garbage", "maybe", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeBreachFlag(tc.raw))
		})
	}
}

func TestUpdateRequestApplyPartialMerge(t *testing.T) {
	ticket := &models.Ticket{
		TicketID:    "T-1",
		Description: "core switch down",
		Status:      models.StatusOpen,
		Attachments: []string{"a.png"},
	}

	status := models.StatusResolved
	UpdateTicketRequest{Status: &status}.Apply(ticket)

	assert.Equal(t, models.StatusResolved, ticket.Status)
	assert.Equal(t, "core switch down", ticket.Description)
	assert.Equal(t, []string{"a.png"}, []string(ticket.Attachments))
}

func TestUpdateRequestApplyNormalizesBreachFlag(t *testing.T) {
	ticket := &models.Ticket{TicketID: "T-1"}
	UpdateTicketRequest{SLABreach: "checked"}.Apply(ticket)
	assert.Equal(t, "Yes", ticket.SLABreach)

	UpdateTicketRequest{SLABreach: false}.Apply(ticket)
	assert.Equal(t, "", ticket.SLABreach)
}

func TestUpdateRequestSnapshotOnlyProvidedFields(t *testing.T) {
	status := models.StatusClosed
	snapshot := UpdateTicketRequest{Status: &status, Attachments: []string{}}.Snapshot()

	assert.Equal(t, models.StatusClosed, snapshot["status"])
	assert.Contains(t, snapshot, "attachments")
	assert.NotContains(t, snapshot, "description")
	assert.NotContains(t, snapshot, "sla_breach")
}

func TestCreateRequestSnapshotSkipsEmptyFields(t *testing.T) {
	snapshot := CreateTicketRequest{Category: "Network", SLABreach: true}.Snapshot()

	assert.Equal(t, "Network", snapshot["category"])
	assert.Equal(t, "Yes", snapshot["sla_breach"])
	assert.NotContains(t, snapshot, "description")
}
