package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasi-it/incident-desk/internal/dto"
	"github.com/kasi-it/incident-desk/internal/models"
	appErrors "github.com/kasi-it/incident-desk/pkg/errors"
	"github.com/kasi-it/incident-desk/pkg/response"
)

type fakeTicketOps struct {
	ticket     *models.Ticket
	tickets    []models.Ticket
	err        error
	exportPath string
	pdf        []byte

	lastCreate dto.CreateTicketRequest
	lastUpdate dto.UpdateTicketRequest
	lastEditor string
}

func (f *fakeTicketOps) Create(_ context.Context, req dto.CreateTicketRequest) (*models.Ticket, error) {
	f.lastCreate = req
	return f.ticket, f.err
}

func (f *fakeTicketOps) List(context.Context) ([]models.Ticket, string, error) {
	return f.tickets, "store", f.err
}

func (f *fakeTicketOps) GetByID(context.Context, string) (*models.Ticket, string, error) {
	return f.ticket, "store", f.err
}

func (f *fakeTicketOps) Update(_ context.Context, _ string, req dto.UpdateTicketRequest) (*models.Ticket, error) {
	f.lastUpdate = req
	return f.ticket, f.err
}

func (f *fakeTicketOps) Delete(_ context.Context, _, editor string) error {
	f.lastEditor = editor
	return f.err
}

func (f *fakeTicketOps) RenderPDF(context.Context, string) ([]byte, string, error) {
	return f.pdf, "T-1.pdf", f.err
}

func (f *fakeTicketOps) ExportPath() string { return f.exportPath }

type fakeHistoryReader struct {
	entries []models.HistoryEntry
	err     error
}

func (f *fakeHistoryReader) FindByTicket(context.Context, string) ([]models.HistoryEntry, error) {
	return f.entries, f.err
}

type fakeUploadSaver struct{ saved []string }

func (f *fakeUploadSaver) SaveStream(filename string, r io.Reader) (string, error) {
	io.Copy(io.Discard, r) //nolint:errcheck
	f.saved = append(f.saved, filename)
	return filename, nil
}

func newTicketTestHandler(ops *fakeTicketOps, history *fakeHistoryReader) *TicketHandler {
	return NewTicketHandler(ops, history, &fakeUploadSaver{}, 1<<20, zap.NewNop())
}

func newMultipartWriter(t *testing.T, body *bytes.Buffer, fields map[string]string, fileField, filename string, content []byte) string {
	t.Helper()
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return writer.FormDataContentType()
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestTicketHandlerCreateJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ops := &fakeTicketOps{ticket: &models.Ticket{TicketID: "KASI-LOS1-20260314-NET-0001"}}
	handler := newTicketTestHandler(ops, &fakeHistoryReader{})

	body := `{"category":"Network","building":"LOS1","sla_breach":true}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set(editorHeader, "ada")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Network", ops.lastCreate.Category)
	assert.Equal(t, "ada", ops.lastCreate.Editor)
	assert.Equal(t, true, ops.lastCreate.SLABreach)
}

func TestTicketHandlerCreateMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTicketTestHandler(&fakeTicketOps{}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTicketHandlerCreateDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTicketTestHandler(&fakeTicketOps{err: appErrors.ErrDuplicateTicket}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(`{"ticket_id":"T-1"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTicketHandlerCreateMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ops := &fakeTicketOps{ticket: &models.Ticket{TicketID: "T-1"}}
	uploads := &fakeUploadSaver{}
	handler := NewTicketHandler(ops, &fakeHistoryReader{}, uploads, 1<<20, zap.NewNop())

	body := &bytes.Buffer{}
	writer := newMultipartWriter(t, body, map[string]string{
		"category":           "Network",
		"assigned_engineers": "B. Eze, C. Musa",
		"sla_breach":         "checked",
	}, "attachments", "diagram.png", []byte("pngdata"))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tickets", body)
	c.Request.Header.Set("Content-Type", writer)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Network", ops.lastCreate.Category)
	assert.Equal(t, []string{"B. Eze", "C. Musa"}, ops.lastCreate.AssignedEngineers)
	assert.Equal(t, "checked", ops.lastCreate.SLABreach)
	require.Len(t, ops.lastCreate.Attachments, 1)
	assert.True(t, strings.HasSuffix(ops.lastCreate.Attachments[0], "_diagram.png"))
	assert.Equal(t, ops.lastCreate.Attachments, uploads.saved)
}

func TestTicketHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTicketTestHandler(&fakeTicketOps{ticket: &models.Ticket{TicketID: "T-1"}}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/T-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "T-1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "store", envelope.Meta["source"])
}

func TestTicketHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTicketTestHandler(&fakeTicketOps{err: appErrors.ErrNotFound}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTicketHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ops := &fakeTicketOps{ticket: &models.Ticket{TicketID: "T-1", Status: models.StatusClosed}}
	handler := newTicketTestHandler(ops, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/tickets/T-1", strings.NewReader(`{"status":"Closed"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set(editorHeader, "obi")
	c.Params = gin.Params{{Key: "id", Value: "T-1"}}

	handler.Update(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ops.lastUpdate.Status)
	assert.Equal(t, models.StatusClosed, *ops.lastUpdate.Status)
	assert.Equal(t, "obi", ops.lastUpdate.Editor)
}

func TestTicketHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ops := &fakeTicketOps{}
	handler := newTicketTestHandler(ops, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/tickets/T-1", nil)
	c.Request.Header.Set(editorHeader, "ada")
	c.Params = gin.Params{{Key: "id", Value: "T-1"}}

	handler.Delete(c)
	// Flush the buffered status the way gin's engine does after handlers run;
	// Delete writes no body, so nothing else triggers the flush.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ada", ops.lastEditor)
}

func TestTicketHandlerHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	history := &fakeHistoryReader{entries: []models.HistoryEntry{{ID: "h1", Action: models.ActionCreate}}}
	handler := newTicketTestHandler(&fakeTicketOps{}, history)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/T-1/history", nil)
	c.Params = gin.Params{{Key: "id", Value: "T-1"}}

	handler.History(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), envelope.Meta["count"])
}

func TestTicketHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTicketTestHandler(&fakeTicketOps{pdf: []byte("%PDF-1.4")}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/T-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "T-1"}}

	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "T-1.pdf")
}

func TestTicketHandlerExportAll(t *testing.T) {
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "tickets.csv")
	require.NoError(t, os.WriteFile(path, []byte("\"ticket_id\"\n\"T-1\"\n"), 0o644))
	handler := newTicketTestHandler(&fakeTicketOps{exportPath: path}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/export/all", nil)

	handler.ExportAll(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tickets.csv")
}

func TestTicketHandlerExportAllMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTicketTestHandler(&fakeTicketOps{exportPath: filepath.Join(t.TempDir(), "absent.csv")}, &fakeHistoryReader{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tickets/export/all", nil)

	handler.ExportAll(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
