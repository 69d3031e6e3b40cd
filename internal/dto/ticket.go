package dto

import (
	"strconv"
	"strings"

	"github.com/kasi-it/incident-desk/internal/models"
)

// CreateTicketRequest carries a new ticket submission. Every field is
// optional; the form has historically been permissive and absent fields
// default to the empty string. SLABreach accepts the legacy
// representations (boolean, "yes"/"no", "checked"/"unchecked", 0/1) and
// is canonicalised before persisting.
type CreateTicketRequest struct {
	TicketID          string      `json:"ticket_id"`
	Category          string      `json:"category"`
	SubCategory       string      `json:"sub_category"`
	Opened            string      `json:"opened"`
	Reporter          string      `json:"reporter"`
	Priority          string      `json:"priority"`
	Building          string      `json:"building"`
	Location          string      `json:"location"`
	ImpactedSystems   string      `json:"impacted_systems"`
	Description       string      `json:"description"`
	DetectionSource   string      `json:"detection_source"`
	DetectedAt        string      `json:"detected_at"`
	RootCause         string      `json:"root_cause"`
	ActionsTaken      string      `json:"actions_taken"`
	Status            string      `json:"status"`
	AssignedEngineers []string    `json:"assigned_engineers"`
	ResolutionSummary string      `json:"resolution_summary"`
	ResolvedAt        string      `json:"resolved_at"`
	Duration          string      `json:"duration"`
	PostReview        string      `json:"post_review"`
	Attachments       []string    `json:"attachments"`
	EscalationHistory string      `json:"escalation_history"`
	Closed            string      `json:"closed"`
	SLABreach         interface{} `json:"sla_breach"`
	Editor            string      `json:"editor"`
}

// Ticket converts the request into a store model.
func (r CreateTicketRequest) Ticket() *models.Ticket {
	return &models.Ticket{
		TicketID:          strings.TrimSpace(r.TicketID),
		Category:          r.Category,
		SubCategory:       r.SubCategory,
		Opened:            r.Opened,
		Reporter:          r.Reporter,
		Priority:          r.Priority,
		Building:          r.Building,
		Location:          r.Location,
		ImpactedSystems:   r.ImpactedSystems,
		Description:       r.Description,
		DetectionSource:   r.DetectionSource,
		DetectedAt:        r.DetectedAt,
		RootCause:         r.RootCause,
		ActionsTaken:      r.ActionsTaken,
		Status:            r.Status,
		AssignedEngineers: r.AssignedEngineers,
		ResolutionSummary: r.ResolutionSummary,
		ResolvedAt:        r.ResolvedAt,
		Duration:          r.Duration,
		PostReview:        r.PostReview,
		Attachments:       r.Attachments,
		EscalationHistory: r.EscalationHistory,
		Closed:            r.Closed,
		SLABreach:         NormalizeBreachFlag(r.SLABreach),
	}
}

// Snapshot captures the submitted fields for the history log. Empty
// fields are left out to keep entries readable.
func (r CreateTicketRequest) Snapshot() map[string]interface{} {
	snapshot := map[string]interface{}{}
	put := func(key, value string) {
		if value != "" {
			snapshot[key] = value
		}
	}
	put("ticket_id", r.TicketID)
	put("category", r.Category)
	put("sub_category", r.SubCategory)
	put("opened", r.Opened)
	put("reporter", r.Reporter)
	put("priority", r.Priority)
	put("building", r.Building)
	put("location", r.Location)
	put("impacted_systems", r.ImpactedSystems)
	put("description", r.Description)
	put("detection_source", r.DetectionSource)
	put("detected_at", r.DetectedAt)
	put("root_cause", r.RootCause)
	put("actions_taken", r.ActionsTaken)
	put("status", r.Status)
	put("resolution_summary", r.ResolutionSummary)
	put("resolved_at", r.ResolvedAt)
	put("duration", r.Duration)
	put("post_review", r.PostReview)
	put("escalation_history", r.EscalationHistory)
	put("closed", r.Closed)
	if len(r.AssignedEngineers) > 0 {
		snapshot["assigned_engineers"] = r.AssignedEngineers
	}
	if len(r.Attachments) > 0 {
		snapshot["attachments"] = r.Attachments
	}
	if r.SLABreach != nil {
		snapshot["sla_breach"] = NormalizeBreachFlag(r.SLABreach)
	}
	return snapshot
}

// UpdateTicketRequest is a partial-field merge: nil fields keep the
// ticket's prior value.
type UpdateTicketRequest struct {
	Category          *string     `json:"category"`
	SubCategory       *string     `json:"sub_category"`
	Opened            *string     `json:"opened"`
	Reporter          *string     `json:"reporter"`
	Priority          *string     `json:"priority"`
	Building          *string     `json:"building"`
	Location          *string     `json:"location"`
	ImpactedSystems   *string     `json:"impacted_systems"`
	Description       *string     `json:"description"`
	DetectionSource   *string     `json:"detection_source"`
	DetectedAt        *string     `json:"detected_at"`
	RootCause         *string     `json:"root_cause"`
	ActionsTaken      *string     `json:"actions_taken"`
	Status            *string     `json:"status"`
	AssignedEngineers []string    `json:"assigned_engineers"`
	ResolutionSummary *string     `json:"resolution_summary"`
	ResolvedAt        *string     `json:"resolved_at"`
	Duration          *string     `json:"duration"`
	PostReview        *string     `json:"post_review"`
	Attachments       []string    `json:"attachments"`
	EscalationHistory *string     `json:"escalation_history"`
	Closed            *string     `json:"closed"`
	SLABreach         interface{} `json:"sla_breach"`
	Editor            string      `json:"editor"`
}

// Apply merges the request onto an existing ticket.
func (r UpdateTicketRequest) Apply(t *models.Ticket) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&t.Category, r.Category)
	setString(&t.SubCategory, r.SubCategory)
	setString(&t.Opened, r.Opened)
	setString(&t.Reporter, r.Reporter)
	setString(&t.Priority, r.Priority)
	setString(&t.Building, r.Building)
	setString(&t.Location, r.Location)
	setString(&t.ImpactedSystems, r.ImpactedSystems)
	setString(&t.Description, r.Description)
	setString(&t.DetectionSource, r.DetectionSource)
	setString(&t.DetectedAt, r.DetectedAt)
	setString(&t.RootCause, r.RootCause)
	setString(&t.ActionsTaken, r.ActionsTaken)
	setString(&t.Status, r.Status)
	setString(&t.ResolutionSummary, r.ResolutionSummary)
	setString(&t.ResolvedAt, r.ResolvedAt)
	setString(&t.Duration, r.Duration)
	setString(&t.PostReview, r.PostReview)
	setString(&t.EscalationHistory, r.EscalationHistory)
	setString(&t.Closed, r.Closed)
	if r.AssignedEngineers != nil {
		t.AssignedEngineers = r.AssignedEngineers
	}
	if r.Attachments != nil {
		t.Attachments = r.Attachments
	}
	if r.SLABreach != nil {
		t.SLABreach = NormalizeBreachFlag(r.SLABreach)
	}
}

// Snapshot captures only the fields the update actually provided.
func (r UpdateTicketRequest) Snapshot() map[string]interface{} {
	snapshot := map[string]interface{}{}
	put := func(key string, value *string) {
		if value != nil {
			snapshot[key] = *value
		}
	}
	put("category", r.Category)
	put("sub_category", r.SubCategory)
	put("opened", r.Opened)
	put("reporter", r.Reporter)
	put("priority", r.Priority)
	put("building", r.Building)
	put("location", r.Location)
	put("impacted_systems", r.ImpactedSystems)
	put("description", r.Description)
	put("detection_source", r.DetectionSource)
	put("detected_at", r.DetectedAt)
	put("root_cause", r.RootCause)
	put("actions_taken", r.ActionsTaken)
	put("status", r.Status)
	put("resolution_summary", r.ResolutionSummary)
	put("resolved_at", r.ResolvedAt)
	put("duration", r.Duration)
	put("post_review", r.PostReview)
	put("escalation_history", r.EscalationHistory)
	put("closed", r.Closed)
	if r.AssignedEngineers != nil {
		snapshot["assigned_engineers"] = r.AssignedEngineers
	}
	if r.Attachments != nil {
		snapshot["attachments"] = r.Attachments
	}
	if r.SLABreach != nil {
		snapshot["sla_breach"] = NormalizeBreachFlag(r.SLABreach)
	}
	return snapshot
}

// NormalizeBreachFlag canonicalises the SLA breach flag to "Yes" or "".
// The historical form and imports produced booleans, "yes"/"checked"
// strings and 0/1 numerics; everything else counts as not breached.
func NormalizeBreachFlag(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "Yes"
		}
		return ""
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "checked", "1":
			return "Yes"
		}
		return ""
	case float64:
		if v == 1 {
			return "Yes"
		}
		return ""
	case int:
		if v == 1 {
			return "Yes"
		}
		return ""
	default:
		if s := strings.ToLower(strings.TrimSpace(toString(raw))); s == "true" || s == "yes" || s == "checked" || s == "1" {
			return "Yes"
		}
		return ""
	}
}

func toString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
