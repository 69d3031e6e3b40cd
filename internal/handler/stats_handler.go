package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kasi-it/incident-desk/internal/dto"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
	"github.com/kasi-it/incident-desk/pkg/response"
)

// statsAggregator computes the dashboard payload.
type statsAggregator interface {
	Aggregate(ctx context.Context, query dto.StatsQuery) (*dto.TicketStatsResponse, error)
}

// StatsHandler exposes the dashboard aggregation endpoint.
type StatsHandler struct {
	stats statsAggregator
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(stats statsAggregator) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Stats godoc
// @Summary Aggregated ticket statistics
// @Tags Tickets
// @Produce json
// @Param month query string false "Calendar month filter (YYYY-MM)"
// @Param week query string false "ISO week filter (YYYY-Www)"
// @Param year query string false "Calendar year filter (YYYY)"
// @Success 200 {object} response.Envelope
// @Router /tickets/stats [get]
func (h *StatsHandler) Stats(c *gin.Context) {
	var query dto.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "malformed stats filter"))
		return
	}

	stats, err := h.stats.Aggregate(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
