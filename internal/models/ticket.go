package models

import (
	"time"

	"github.com/lib/pq"
)

// Ticket statuses. The column is an open-ended string in practice; these
// are the values the UI submits.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
)

// Ticket is one incident record tracked from open to closed.
//
// Operator-entered timestamps (opened, detected_at, resolved_at, closed)
// are kept as free text exactly as submitted; created_at, updated_at and
// closed_at are store-managed instants. closed_at is set when the status
// transitions into Closed and cleared when it transitions out, and is the
// authoritative input for SLA day-bucketing.
type Ticket struct {
	TicketID          string         `db:"ticket_id" json:"ticket_id"`
	Category          string         `db:"category" json:"category"`
	SubCategory       string         `db:"sub_category" json:"sub_category"`
	Opened            string         `db:"opened" json:"opened"`
	Reporter          string         `db:"reporter" json:"reporter"`
	Priority          string         `db:"priority" json:"priority"`
	Building          string         `db:"building" json:"building"`
	Location          string         `db:"location" json:"location"`
	ImpactedSystems   string         `db:"impacted_systems" json:"impacted_systems"`
	Description       string         `db:"description" json:"description"`
	DetectionSource   string         `db:"detection_source" json:"detection_source"`
	DetectedAt        string         `db:"detected_at" json:"detected_at"`
	RootCause         string         `db:"root_cause" json:"root_cause"`
	ActionsTaken      string         `db:"actions_taken" json:"actions_taken"`
	Status            string         `db:"status" json:"status"`
	AssignedEngineers pq.StringArray `db:"assigned_engineers" json:"assigned_engineers"`
	ResolutionSummary string         `db:"resolution_summary" json:"resolution_summary"`
	ResolvedAt        string         `db:"resolved_at" json:"resolved_at"`
	Duration          string         `db:"duration" json:"duration"`
	PostReview        string         `db:"post_review" json:"post_review"`
	Attachments       pq.StringArray `db:"attachments" json:"attachments"`
	EscalationHistory string         `db:"escalation_history" json:"escalation_history"`
	Closed            string         `db:"closed" json:"closed"`
	SLABreach         string         `db:"sla_breach" json:"sla_breach"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
	ClosedAt          *time.Time     `db:"closed_at" json:"closed_at,omitempty"`
}

// HistoryEntry is one append-only change-log record. Entries reference a
// ticket by id and are never mutated or deleted, even when the ticket is.
type HistoryEntry struct {
	ID        string    `db:"id" json:"id"`
	TicketID  string    `db:"ticket_id" json:"ticket_id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Action    string    `db:"action" json:"action"`
	Changes   string    `db:"changes" json:"changes"`
	Editor    string    `db:"editor" json:"editor"`
}

// History actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)
