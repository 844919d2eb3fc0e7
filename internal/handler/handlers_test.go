package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/middleware"
	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

func testContext(method, target string, body *bytes.Buffer, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if body == nil {
		body = &bytes.Buffer{}
	}
	c.Request = httptest.NewRequest(method, target, body)
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

type fakeSchoolSrv struct {
	filter  models.SchoolFilter
	created dto.CreateSchoolRequest
	delErr  error
}

func (f *fakeSchoolSrv) List(_ context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	f.filter = filter
	return []models.School{{ID: 1, Name: "Maple"}}, models.NewPagination(1, 100, 1), nil
}

func (f *fakeSchoolSrv) Get(_ context.Context, id int64) (*models.School, error) {
	return &models.School{ID: id, Name: "Maple"}, nil
}

func (f *fakeSchoolSrv) Create(_ context.Context, req dto.CreateSchoolRequest, _ *models.JWTClaims) (*models.School, error) {
	f.created = req
	return &models.School{ID: 2, Name: req.Name}, nil
}

func (f *fakeSchoolSrv) Update(_ context.Context, id int64, req dto.UpdateSchoolRequest, _ *models.JWTClaims) (*models.School, error) {
	return &models.School{ID: id}, nil
}

func (f *fakeSchoolSrv) Delete(context.Context, int64, *models.JWTClaims) error { return f.delErr }

func TestSchoolHandlerListAndCreate(t *testing.T) {
	srv := &fakeSchoolSrv{}
	handler := NewSchoolHandler(srv)

	c, rec := testContext(http.MethodGet, "/schools?status=active&region=North&per_page=20", nil, officer)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", srv.filter.Status)
	assert.Equal(t, "North", srv.filter.Region)
	assert.Equal(t, 20, srv.filter.PageSize)

	c, rec = testContext(http.MethodPost, "/schools", bytes.NewBufferString(`{"name":"Oak Grove","tier":2}`), officer)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Oak Grove", srv.created.Name)
}

func TestSchoolHandlerDeleteConflict(t *testing.T) {
	srv := &fakeSchoolSrv{delErr: appErrors.Clone(appErrors.ErrConflict, "school has reports")}
	handler := NewSchoolHandler(srv)

	c, rec := testContext(http.MethodDelete, "/schools/3", nil, officer)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = testContext(http.MethodDelete, "/schools/x", nil, officer)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeSettingsSrv struct {
	updated dto.UpdateSettingsRequest
}

func (f *fakeSettingsSrv) List(context.Context) ([]dto.SettingItem, error) {
	return []dto.SettingItem{{Key: models.SettingGeminiAPIKey, Value: "********abcd", Masked: true}}, nil
}

func (f *fakeSettingsSrv) Update(_ context.Context, req dto.UpdateSettingsRequest, _ *models.JWTClaims) ([]dto.SettingItem, error) {
	f.updated = req
	return []dto.SettingItem{}, nil
}

type fakeStatsSrv struct{}

func (fakeStatsSrv) Get(context.Context, *models.JWTClaims) (*models.Stats, error) {
	return &models.Stats{TotalSchools: 4}, nil
}

type fakeSystemSrv struct{}

func (fakeSystemSrv) Me(claims *models.JWTClaims) dto.MeResponse {
	return dto.MeResponse{ID: claims.UserID, Role: claims.Role, Capabilities: models.CapabilitiesFor(claims.Role).Map()}
}

func (fakeSystemSrv) Check(context.Context) service.SystemReport {
	return service.SystemReport{SystemCheck: dto.SystemCheck{Status: "degraded"}}
}

func TestAdminHandlerMeReturnsCapabilityMap(t *testing.T) {
	handler := NewAdminHandler(&fakeSettingsSrv{}, fakeStatsSrv{}, fakeSystemSrv{}, &fakeAuditSrv{})

	c, rec := testContext(http.MethodGet, "/me", nil, officer)
	handler.Me(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data dto.MeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Capabilities[models.CapCreate])
	assert.False(t, body.Data.Capabilities[models.CapApprove])

	c, rec = testContext(http.MethodGet, "/me", nil, nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminHandlerSettingsAndSystemCheck(t *testing.T) {
	settings := &fakeSettingsSrv{}
	handler := NewAdminHandler(settings, fakeStatsSrv{}, fakeSystemSrv{}, &fakeAuditSrv{})

	c, rec := testContext(http.MethodPost, "/settings", bytes.NewBufferString(`{"settings":{"enable_ai":"false"}}`), officer)
	handler.UpdateSettings(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", settings.updated.Settings[models.SettingEnableAI])

	c, rec = testContext(http.MethodGet, "/system-check", nil, officer)
	handler.SystemCheck(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)

	c, rec = testContext(http.MethodGet, "/stats", nil, officer)
	handler.Stats(c)
	require.Equal(t, http.StatusOK, rec.Code)
}

type fakeAuditSrv struct {
	got models.AuditFilter
}

func (f *fakeAuditSrv) Trail(_ context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	f.got = filter
	if filter.Resource == "users" {
		return nil, appErrors.Validation("resource", "must be one of report, school, settings")
	}
	return []models.AuditLog{{ID: "a1", Action: models.AuditActionReportUpdate, RequestID: "req-1"}}, nil
}

func TestAdminHandlerAuditTrail(t *testing.T) {
	audit := &fakeAuditSrv{}
	handler := NewAdminHandler(&fakeSettingsSrv{}, fakeStatsSrv{}, fakeSystemSrv{}, audit)

	c, rec := testContext(http.MethodGet, "/audit?resource=report&resource_id=7&limit=10", nil, officer)
	handler.AuditTrail(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", audit.got.ResourceID)
	assert.Equal(t, 10, audit.got.Limit)
	assert.Contains(t, rec.Body.String(), `"request_id":"req-1"`)

	c, rec = testContext(http.MethodGet, "/audit?resource=users", nil, officer)
	handler.AuditTrail(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeAISrv struct {
	doc service.Document
	err error
}

func (f *fakeAISrv) Generate(_ context.Context, id int64, _ *models.JWTClaims) (*models.AISummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.AISummary{ReportID: id, ExecutiveSummary: "ok"}, nil
}

func (f *fakeAISrv) ParseDocument(_ context.Context, doc service.Document, _ *models.JWTClaims) (*dto.ParsedDocument, error) {
	f.doc = doc
	return &dto.ParsedDocument{SchoolName: "Maple", Source: "plain_text"}, nil
}

func TestAIHandlerGenerateSummaryDependencyFailure(t *testing.T) {
	srv := &fakeAISrv{err: appErrors.Clone(appErrors.ErrDependency, "provider unavailable")}
	handler := NewAIHandler(srv)

	c, rec := testContext(http.MethodPost, "/reports/7/generate-summary", nil, officer)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	handler.GenerateSummary(c)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAIHandlerParseDocumentReadsUpload(t *testing.T) {
	srv := &fakeAISrv{}
	handler := NewAIHandler(srv)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "visit.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("School: Maple\nDate: 2024-03-01"))
	require.NoError(t, writer.Close())

	c, rec := testContext(http.MethodPost, "/ai/parse-document", buf, officer)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	handler.ParseDocument(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "visit.txt", srv.doc.Filename)
	assert.Contains(t, string(srv.doc.Data), "Maple")
	assert.Contains(t, srv.doc.ContentType, "text/plain")
}

func TestAIHandlerParseDocumentRequiresFile(t *testing.T) {
	handler := NewAIHandler(&fakeAISrv{})
	c, rec := testContext(http.MethodPost, "/ai/parse-document", nil, officer)
	handler.ParseDocument(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeExportSrv struct{}

func (fakeExportSrv) ReportPDF(_ context.Context, id int64, _ *models.JWTClaims) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "report_7_maple.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}, nil
}

func (fakeExportSrv) ReportList(_ context.Context, _ models.ReportFilter, format string, _ *models.JWTClaims) (*service.ExportFile, error) {
	if format == "xlsx" {
		return &service.ExportFile{Filename: "reports.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: []byte("PK")}, nil
	}
	return &service.ExportFile{Filename: "reports.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("ID\n1\n")}, nil
}

func TestExportHandlerSetsDisposition(t *testing.T) {
	handler := NewExportHandler(fakeExportSrv{})

	c, rec := testContext(http.MethodGet, "/reports/7/pdf", nil, officer)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	handler.ReportPDF(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=report_7_maple.pdf", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	c, rec = testContext(http.MethodGet, "/reports/export", nil, officer)
	handler.ReportList(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID\n1\n", rec.Body.String())

	c, rec = testContext(http.MethodGet, "/reports/export?format=xlsx", nil, officer)
	handler.ReportList(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=reports.xlsx", rec.Header().Get("Content-Disposition"))
}

type fakeOpener struct {
	path string
	err  error
}

func (f fakeOpener) OpenLocal(_ context.Context, _ int64, token string, _ bool) (*os.File, string, error) {
	if f.err != nil || token == "" {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired link")
	}
	file, err := os.Open(f.path)
	return file, "image/png", err
}

func TestPhotoFileHandlerStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))
	handler := NewPhotoFileHandler(fakeOpener{path: path})

	c, rec := testContext(http.MethodGet, "/photos/3/file?token=abc", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	handler.File(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	c, rec = testContext(http.MethodGet, "/photos/3/thumbnail", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	handler.Thumbnail(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type readyStub struct{ err error }

func (r readyStub) Ready(context.Context) error { return r.err }

func TestProbeHandlerReadiness(t *testing.T) {
	probes := NewProbeHandler(nil, readyStub{})
	c, rec := testContext(http.MethodGet, "/ready", nil, nil)
	probes.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	probes = NewProbeHandler(nil, readyStub{err: errors.New("database: connection refused")})
	c, rec = testContext(http.MethodGet, "/ready", nil, nil)
	probes.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	c, rec = testContext(http.MethodGet, "/metrics", nil, nil)
	probes.Metrics(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "metrics disabled")
}
