package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/dto"
	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
	"github.com/kasi-it/incident-desk/pkg/response"
)

// editorHeader attributes changes when the body carries no editor field.
const editorHeader = "X-Editor"

// ticketOps is the service surface the ticket endpoints need.
type ticketOps interface {
	Create(ctx context.Context, req dto.CreateTicketRequest) (*models.Ticket, error)
	List(ctx context.Context) ([]models.Ticket, string, error)
	GetByID(ctx context.Context, id string) (*models.Ticket, string, error)
	Update(ctx context.Context, id string, req dto.UpdateTicketRequest) (*models.Ticket, error)
	Delete(ctx context.Context, id, editor string) error
	RenderPDF(ctx context.Context, id string) ([]byte, string, error)
	ExportPath() string
}

// historyReader serves the change log.
type historyReader interface {
	FindByTicket(ctx context.Context, ticketID string) ([]models.HistoryEntry, error)
}

// uploadSaver stores attachment file parts.
type uploadSaver interface {
	SaveStream(filename string, r io.Reader) (string, error)
}

// TicketHandler exposes the ticket REST endpoints.
type TicketHandler struct {
	tickets   ticketOps
	history   historyReader
	uploads   uploadSaver
	maxUpload int64
	logger    *zap.Logger
}

// NewTicketHandler constructs the handler.
func NewTicketHandler(tickets ticketOps, history historyReader, uploads uploadSaver, maxUpload int64, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, history: history, uploads: uploads, maxUpload: maxUpload, logger: logger}
}

// Create godoc
// @Summary Create a ticket
// @Tags Tickets
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /tickets [post]
func (h *TicketHandler) Create(c *gin.Context) {
	var req dto.CreateTicketRequest
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		parsed, err := h.bindMultipart(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		req = parsed
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed ticket payload"))
		return
	}
	if req.Editor == "" {
		req.Editor = c.GetHeader(editorHeader)
	}

	ticket, err := h.tickets.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ticket)
}

// List godoc
// @Summary List tickets, newest first
// @Tags Tickets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tickets [get]
func (h *TicketHandler) List(c *gin.Context) {
	tickets, source, err := h.tickets.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, map[string]interface{}{"source": source, "count": len(tickets)})
}

// Get godoc
// @Summary Fetch one ticket
// @Tags Tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Router /tickets/{id} [get]
func (h *TicketHandler) Get(c *gin.Context) {
	ticket, source, err := h.tickets.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, map[string]interface{}{"source": source})
}

// Update godoc
// @Summary Partially update a ticket
// @Tags Tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Router /tickets/{id} [put]
func (h *TicketHandler) Update(c *gin.Context) {
	var req dto.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed ticket payload"))
		return
	}
	if req.Editor == "" {
		req.Editor = c.GetHeader(editorHeader)
	}

	ticket, err := h.tickets.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Delete godoc
// @Summary Delete a ticket
// @Tags Tickets
// @Param id path string true "Ticket ID"
// @Success 204
// @Router /tickets/{id} [delete]
func (h *TicketHandler) Delete(c *gin.Context) {
	if err := h.tickets.Delete(c.Request.Context(), c.Param("id"), c.GetHeader(editorHeader)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Change log for one ticket
// @Tags Tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Router /tickets/{id}/history [get]
func (h *TicketHandler) History(c *gin.Context) {
	entries, err := h.history.FindByTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Download godoc
// @Summary Render a ticket summary PDF
// @Tags Tickets
// @Produce application/pdf
// @Param id path string true "Ticket ID"
// @Success 200 {file} binary
// @Router /tickets/{id}/download [get]
func (h *TicketHandler) Download(c *gin.Context) {
	payload, filename, err := h.tickets.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// ExportAll godoc
// @Summary Download the raw ticket CSV mirror
// @Tags Tickets
// @Produce text/csv
// @Success 200 {file} binary
// @Router /tickets/export/all [get]
func (h *TicketHandler) ExportAll(c *gin.Context) {
	path := h.tickets.ExportPath()
	if _, err := os.Stat(path); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no tickets exported yet"))
		return
	}
	c.FileAttachment(path, "tickets.csv")
}

// bindMultipart maps a form submission onto the create request, saving
// file parts into the upload area and recording their token names as
// attachments.
func (h *TicketHandler) bindMultipart(c *gin.Context) (dto.CreateTicketRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return dto.CreateTicketRequest{}, appErrors.Clone(appErrors.ErrValidation, "malformed multipart form")
	}

	value := func(key string) string {
		if values := form.Value[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}

	req := dto.CreateTicketRequest{
		TicketID:          value("ticket_id"),
		Category:          value("category"),
		SubCategory:       value("sub_category"),
		Opened:            value("opened"),
		Reporter:          value("reporter"),
		Priority:          value("priority"),
		Building:          value("building"),
		Location:          value("location"),
		ImpactedSystems:   value("impacted_systems"),
		Description:       value("description"),
		DetectionSource:   value("detection_source"),
		DetectedAt:        value("detected_at"),
		RootCause:         value("root_cause"),
		ActionsTaken:      value("actions_taken"),
		Status:            value("status"),
		AssignedEngineers: listValues(form.Value["assigned_engineers"]),
		ResolutionSummary: value("resolution_summary"),
		ResolvedAt:        value("resolved_at"),
		Duration:          value("duration"),
		PostReview:        value("post_review"),
		EscalationHistory: value("escalation_history"),
		Closed:            value("closed"),
		Editor:            value("editor"),
	}
	if raw := value("sla_breach"); raw != "" {
		req.SLABreach = raw
	}

	for _, header := range form.File["attachments"] {
		if h.maxUpload > 0 && header.Size > h.maxUpload {
			return dto.CreateTicketRequest{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("attachment %s exceeds the size limit", header.Filename))
		}
		file, err := header.Open()
		if err != nil {
			h.logger.Warn("open uploaded attachment", zap.String("file", header.Filename), zap.Error(err))
			continue
		}
		token := uuid.NewString()[:8] + "_" + filepath.Base(header.Filename)
		name, err := h.uploads.SaveStream(token, file)
		file.Close() //nolint:errcheck
		if err != nil {
			h.logger.Error("save uploaded attachment", zap.String("file", header.Filename), zap.Error(err))
			return dto.CreateTicketRequest{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "attachment upload failed")
		}
		req.Attachments = append(req.Attachments, name)
	}
	return req, nil
}

// listValues flattens repeated form values, splitting single
// comma-joined submissions for compatibility with the legacy form.
func listValues(values []string) []string {
	if len(values) == 1 && strings.Contains(values[0], ",") {
		values = strings.Split(values[0], ",")
	}
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
