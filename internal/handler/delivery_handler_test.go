package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/middleware"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/service"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type lifecycleServiceMock struct {
	listQuery   dto.DeliveryListQuery
	problemReq  dto.ReportProblemRequest
	checkout    *time.Time
	lastActor   models.Identity
	closedState models.DeliveryStatus
	err         error
}

func (m *lifecycleServiceMock) Get(ctx context.Context, id string, actor models.Identity) (*models.DeliveryView, error) {
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.DeliveryView{DeliveryRecord: &models.DeliveryRecord{ID: id, Status: models.DeliveryInProgress}}, nil
}

func (m *lifecycleServiceMock) List(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) ([]models.DeliveryView, *models.Pagination, error) {
	m.listQuery, m.lastActor = query, actor
	return []models.DeliveryView{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *lifecycleServiceMock) ReportProblem(ctx context.Context, id string, req dto.ReportProblemRequest, actor models.Identity) (*models.DeliveryRecord, error) {
	m.problemReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.DeliveryRecord{ID: id, ProblemType: &req.ProblemType}, nil
}

func (m *lifecycleServiceMock) MarkAsMonitored(ctx context.Context, id string, actor models.Identity) (*models.DeliveryRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.DeliveryRecord{ID: id, BeingMonitored: true}, nil
}

func (m *lifecycleServiceMock) AddComment(ctx context.Context, id, text string, actor models.Identity) (*models.Comment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Comment{ID: "c1", DeliveryID: id, Text: text, AuthorEmail: actor.Email}, nil
}

func (m *lifecycleServiceMock) Finalize(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error) {
	m.checkout, m.closedState = checkout, models.DeliveryFinalized
	return &models.DeliveryRecord{ID: id, Status: models.DeliveryFinalized}, m.err
}

func (m *lifecycleServiceMock) Return(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error) {
	m.checkout, m.closedState = checkout, models.DeliveryReturned
	return &models.DeliveryRecord{ID: id, Status: models.DeliveryReturned}, m.err
}

type exportServiceMock struct {
	query dto.DeliveryListQuery
}

func (m *exportServiceMock) ExportDeliveries(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) (*service.ExportFile, error) {
	m.query = query
	if query.Format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportFile{Filename: "deliveries.csv", ContentType: "text/csv", Data: []byte("ID\n")}, nil
}

var driverClaims = &models.JWTClaims{UserID: "u1", Email: "driver@example.com", FullName: "Dana", Role: models.RoleDriver}

func newTestContext(method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestDeliveryHandlerRequiresIdentity(t *testing.T) {
	handler := NewDeliveryHandler(&lifecycleServiceMock{}, &exportServiceMock{})
	c, w := newTestContext(http.MethodGet, "/deliveries", nil, nil)
	handler.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeliveryHandlerListBindsQuery(t *testing.T) {
	svc := &lifecycleServiceMock{}
	handler := NewDeliveryHandler(svc, &exportServiceMock{})
	c, w := newTestContext(http.MethodGet, "/deliveries?status=in_progress&has_problem=true&page=2", nil, driverClaims)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in_progress", svc.listQuery.Status)
	require.NotNil(t, svc.listQuery.HasProblem)
	assert.True(t, *svc.listQuery.HasProblem)
	assert.Equal(t, 2, svc.listQuery.Page)
	assert.Equal(t, "driver@example.com", svc.lastActor.Email)
	assert.Contains(t, w.Body.String(), `"pagination"`)
	assert.Contains(t, w.Body.String(), `"scope":"own"`)
}

func TestDeliveryHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{appErrors.Clone(appErrors.ErrNotFound, "delivery not found"), http.StatusNotFound},
		{appErrors.Clone(appErrors.ErrForbidden, "not yours"), http.StatusForbidden},
		{appErrors.Clone(appErrors.ErrInvalidState, "closed"), http.StatusConflict},
		{appErrors.Clone(appErrors.ErrPreconditionFailed, "no problem"), http.StatusPreconditionFailed},
		{appErrors.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		handler := NewDeliveryHandler(&lifecycleServiceMock{err: tc.err}, nil)
		c, w := newTestContext(http.MethodPost, "/deliveries/r1/monitor", nil, driverClaims)
		c.Params = gin.Params{{Key: "id", Value: "r1"}}
		handler.Monitor(c)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}

func TestDeliveryHandlerReportProblem(t *testing.T) {
	svc := &lifecycleServiceMock{}
	handler := NewDeliveryHandler(svc, nil)

	body, _ := json.Marshal(dto.ReportProblemRequest{ProblemType: "Closed gate", Note: "nobody home"})
	c, w := newTestContext(http.MethodPost, "/deliveries/r1/problem", body, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.ReportProblem(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Closed gate", svc.problemReq.ProblemType)

	c, w = newTestContext(http.MethodPost, "/deliveries/r1/problem", []byte(`{bad`), driverClaims)
	handler.ReportProblem(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveryHandlerAddComment(t *testing.T) {
	handler := NewDeliveryHandler(&lifecycleServiceMock{}, nil)
	body, _ := json.Marshal(dto.AddCommentRequest{Text: "on my way"})
	c, w := newTestContext(http.MethodPost, "/deliveries/r1/comments", body, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.AddComment(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "on my way")
}

func TestDeliveryHandlerCloseWithAndWithoutBody(t *testing.T) {
	svc := &lifecycleServiceMock{}
	handler := NewDeliveryHandler(svc, nil)

	c, w := newTestContext(http.MethodPost, "/deliveries/r1/finalize", nil, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Finalize(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.checkout)
	assert.Equal(t, models.DeliveryFinalized, svc.closedState)

	checkout := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(dto.CheckoutRequest{CheckoutTime: &checkout})
	c, w = newTestContext(http.MethodPost, "/deliveries/r1/return", body, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Return(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.checkout)
	assert.True(t, checkout.Equal(*svc.checkout))
	assert.Equal(t, models.DeliveryReturned, svc.closedState)
}

func TestDeliveryHandlerCloseWithChunkedEmptyBody(t *testing.T) {
	svc := &lifecycleServiceMock{}
	handler := NewDeliveryHandler(svc, nil)

	c, w := newTestContext(http.MethodPost, "/deliveries/r1/finalize", nil, driverClaims)
	c.Request.Body = io.NopCloser(strings.NewReader(""))
	c.Request.ContentLength = -1
	c.Request.TransferEncoding = []string{"chunked"}
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.Finalize(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.checkout)
	assert.Equal(t, models.DeliveryFinalized, svc.closedState)

	c, w = newTestContext(http.MethodPost, "/deliveries/r1/return", []byte(`{"checkout_time":`), driverClaims)
	c.Request.ContentLength = -1
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Return(c)
	assert.Equal(t, http.StatusBadRequest, w.Code, "a truncated body is still rejected")
}

func TestDeliveryHandlerExport(t *testing.T) {
	exports := &exportServiceMock{}
	handler := NewDeliveryHandler(&lifecycleServiceMock{}, exports)

	c, w := newTestContext(http.MethodGet, "/deliveries/export?format=csv&from=2024-05-01", nil, driverClaims)
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "deliveries.csv")
	assert.Equal(t, "2024-05-01", exports.query.From)

	c, w = newTestContext(http.MethodGet, "/deliveries/export?format=xlsx", nil, driverClaims)
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
