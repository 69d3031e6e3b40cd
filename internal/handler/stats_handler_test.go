package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kasi-it/incident-desk/internal/dto"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
)

type fakeStatsAggregator struct {
	stats     *dto.TicketStatsResponse
	err       error
	lastQuery dto.StatsQuery
}

func (f *fakeStatsAggregator) Aggregate(_ context.Context, query dto.StatsQuery) (*dto.TicketStatsResponse, error) {
	f.lastQuery = query
	return f.stats, f.err
}

func TestStatsHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	aggregator := &fakeStatsAggregator{stats: &dto.TicketStatsResponse{TotalTickets: 4}}
	handler := NewStatsHandler(aggregator)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/stats?month=2026-03", nil)

	handler.Stats(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-03", aggregator.lastQuery.Month)
}

func TestStatsHandlerValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatsHandler(&fakeStatsAggregator{err: appErrors.Clone(appErrors.ErrValidation, "bad filter")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/stats?month=garbage", nil)

	handler.Stats(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
