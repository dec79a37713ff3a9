package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerTestSecret = "test-secret-key-for-jwt"

// stubBatchService records the company scope each call ran under.
type stubBatchService struct {
	batch.BatchService

	mu        sync.Mutex
	companies []string
	uploaded  []batch.UploadedFile
	evalErr   error
	events    []sse.Event
}

func (s *stubBatchService) record(ctx context.Context) {
	companyID, _ := jwt.CompanyIDFromContext(ctx)
	s.mu.Lock()
	s.companies = append(s.companies, companyID)
	s.mu.Unlock()
}

func (s *stubBatchService) CreateBatch(ctx context.Context) (batch.BatchResponse, error) {
	s.record(ctx)
	return batch.BatchResponse{ID: "B-1"}, nil
}

func (s *stubBatchService) GetBatch(ctx context.Context, batchID string) (batch.BatchResponse, error) {
	s.record(ctx)
	if batchID != "B-1" {
		return batch.BatchResponse{}, batch.ErrBatchNotFound
	}
	return batch.BatchResponse{ID: batchID}, nil
}

func (s *stubBatchService) UploadFiles(ctx context.Context, batchID string, files []batch.UploadedFile) (batch.UploadResponse, error) {
	s.record(ctx)
	s.uploaded = files
	return batch.UploadResponse{Batch: batch.BatchResponse{ID: batchID}}, nil
}

func (s *stubBatchService) Evaluate(ctx context.Context, batchID string, opts attendance.ViewOptions) (batch.EvaluationResponse, error) {
	s.record(ctx)
	return batch.EvaluationResponse{}, s.evalErr
}

func (s *stubBatchService) Export(ctx context.Context, batchID string, req batch.ExportRequest) (batch.ExportResult, error) {
	s.record(ctx)
	return batch.ExportResult{FileName: "employees.xlsx", Data: []byte("PK")}, nil
}

func (s *stubBatchService) Subscribe(ctx context.Context, batchID string) (<-chan sse.Event, func(), error) {
	s.record(ctx)
	ch := make(chan sse.Event, len(s.events))
	for _, e := range s.events {
		ch <- e
	}
	close(ch)
	return ch, func() {}, nil
}

func newTestRouter(t *testing.T, svc *stubBatchService) (*chi.Mux, jwt.Service) {
	t.Helper()
	jwtService := jwt.NewJWTService(routerTestSecret)
	handler := NewBatchHandler(svc, jwtService, 1<<20)
	router := NewRouter(AppInfo{Name: "dtr-ingest-test", Env: "test", AllowedOrigins: []string{"*"}}, jwtService, handler)
	return router, jwtService
}

func signToken(t *testing.T, jwtService jwt.Service, claims map[string]interface{}) string {
	t.Helper()
	_, token, err := jwtService.JWTAuth().Encode(claims)
	require.NoError(t, err)
	return token
}

func accessToken(t *testing.T, jwtService jwt.Service, companyID string) string {
	return signToken(t, jwtService, map[string]interface{}{"type": "access", "company_id": companyID})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_Authentication(t *testing.T) {
	svc := &stubBatchService{}
	router, jwtService := newTestRouter(t, svc)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing token", token: "", status: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "stream token as bearer", token: signToken(t, jwtService, map[string]interface{}{"type": "stream", "company_id": "C-1"}), status: http.StatusUnauthorized},
		{name: "no company claim", token: signToken(t, jwtService, map[string]interface{}{"type": "access"}), status: http.StatusForbidden},
		{name: "valid access token", token: accessToken(t, jwtService, "C-1"), status: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, []string{"C-1"}, svc.companies)
}

func TestRouter_UploadForwardsEveryFile(t *testing.T) {
	svc := &stubBatchService{}
	router, jwtService := newTestRouter(t, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"march.xls", "april.xlsx"} {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/B-1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+accessToken(t, jwtService, "C-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.uploaded, 2)
	assert.Equal(t, "march.xls", svc.uploaded[0].Name)
	assert.Equal(t, []byte("content of april.xlsx"), svc.uploaded[1].Data)
}

func TestRouter_BlockingConditionIsConflict(t *testing.T) {
	svc := &stubBatchService{evalErr: batch.ErrMixedMonthsUnconfirmed}
	router, jwtService := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/B-1/evaluate", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, jwtService, "C-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	errDetail, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(batch.BlockMixedMonths), errDetail["code"])
}

func TestRouter_ExportIsAttachment(t *testing.T) {
	svc := &stubBatchService{}
	router, jwtService := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/B-1/export", bytes.NewBufferString(`{"kind":"employees"}`))
	req.Header.Set("Authorization", "Bearer "+accessToken(t, jwtService, "C-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="employees.xlsx"`)
	assert.Equal(t, "PK", rec.Body.String())
}

func TestRouter_StreamWithStreamToken(t *testing.T) {
	svc := &stubBatchService{events: []sse.Event{
		{Topic: "B-1", Event: "evaluation.completed", Data: map[string]int{"day_count": 4}},
	}}
	router, jwtService := newTestRouter(t, svc)

	// issue the token through the API
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/B-1/events/token", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, jwtService, "C-9"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var issued struct {
		Data streamTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Data.Token)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/batches/B-1/events?token="+issued.Data.Token, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: connected\n")
	assert.Contains(t, rec.Body.String(), "event: evaluation.completed\ndata: {\"day_count\":4}\n\n")
	assert.Equal(t, "C-9", svc.companies[len(svc.companies)-1])
}

func TestRouter_StreamTokenBoundToBatch(t *testing.T) {
	svc := &stubBatchService{}
	router, jwtService := newTestRouter(t, svc)

	token, _, err := jwtService.GenerateStreamToken("C-1", "B-OTHER")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/B-1/events?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.companies)
}

func TestRouter_StreamRejectsStreamTokenAsBearer(t *testing.T) {
	svc := &stubBatchService{}
	router, jwtService := newTestRouter(t, svc)

	token, _, err := jwtService.GenerateStreamToken("C-1", "B-OTHER")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/B-1/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.companies)
}
