package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/handler/http/response"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type BatchHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Reset(w http.ResponseWriter, r *http.Request)

	Upload(w http.ResponseWriter, r *http.Request)
	ConfirmMonths(w http.ResponseWriter, r *http.Request)
	SetPeriod(w http.ResponseWriter, r *http.Request)

	Evaluate(w http.ResponseWriter, r *http.Request)
	BindIdentity(w http.ResponseWriter, r *http.Request)

	ListEmployees(w http.ResponseWriter, r *http.Request)
	ListOffices(w http.ResponseWriter, r *http.Request)
	ListDays(w http.ResponseWriter, r *http.Request)
	ListExcluded(w http.ResponseWriter, r *http.Request)
	SearchDirectory(w http.ResponseWriter, r *http.Request)

	Export(w http.ResponseWriter, r *http.Request)
	NormalizedFile(w http.ResponseWriter, r *http.Request)

	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type batchHandlerImpl struct {
	batchService   batch.BatchService
	jwtService     jwt.Service
	maxUploadBytes int64
}

func NewBatchHandler(batchService batch.BatchService, jwtService jwt.Service, maxUploadBytes int64) BatchHandler {
	return &batchHandlerImpl{
		batchService:   batchService,
		jwtService:     jwtService,
		maxUploadBytes: maxUploadBytes,
	}
}

// Create implements BatchHandler.
func (h *batchHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	result, err := h.batchService.CreateBatch(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Batch created successfully", result)
}

// Get implements BatchHandler.
func (h *batchHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.batchService.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// Reset implements BatchHandler.
func (h *batchHandlerImpl) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.batchService.ResetBatch(r.Context(), chi.URLParam(r, "batchID")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Batch reset successfully", nil)
}

// Upload implements BatchHandler.
func (h *batchHandlerImpl) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		response.BadRequest(w, "Failed to parse form data", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		response.BadRequest(w, "Field 'files' is required", nil)
		return
	}

	files := make([]batch.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			slog.Error("Failed to open uploaded file", "file", fh.Filename, "error", err)
			response.BadRequest(w, "Invalid file upload", nil)
			return
		}
		// one byte past the limit is enough for the service to reject the file
		data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
		f.Close()
		if err != nil {
			slog.Error("Failed to read uploaded file", "file", fh.Filename, "error", err)
			response.BadRequest(w, "Invalid file upload", nil)
			return
		}
		files = append(files, batch.UploadedFile{Name: fh.Filename, Data: data})
	}

	result, err := h.batchService.UploadFiles(r.Context(), chi.URLParam(r, "batchID"), files)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Files uploaded", result)
}

// ConfirmMonths implements BatchHandler.
func (h *batchHandlerImpl) ConfirmMonths(w http.ResponseWriter, r *http.Request) {
	var req batch.ConfirmMonthsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.batchService.ConfirmMonths(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// SetPeriod implements BatchHandler.
func (h *batchHandlerImpl) SetPeriod(w http.ResponseWriter, r *http.Request) {
	var req batch.SetPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.batchService.SetPeriod(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// Evaluate implements BatchHandler.
func (h *batchHandlerImpl) Evaluate(w http.ResponseWriter, r *http.Request) {
	var opts attendance.ViewOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && err != io.EOF {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.batchService.Evaluate(r.Context(), chi.URLParam(r, "batchID"), opts)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// BindIdentity implements BatchHandler.
func (h *batchHandlerImpl) BindIdentity(w http.ResponseWriter, r *http.Request) {
	var req identity.BindIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.batchService.BindIdentity(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Identity bound successfully", result)
}

// ListEmployees implements BatchHandler.
func (h *batchHandlerImpl) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := attendance.ListEmployeesRequest{
		ViewOptions: viewOptionsFromQuery(q),
		OfficeID:    q.Get("office_id"),
		Status:      q.Get("status"),
		Query:       q.Get("q"),
	}

	result, err := h.batchService.ListEmployees(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, result, &response.Meta{TotalItems: int64(len(result))})
}

// ListOffices implements BatchHandler.
func (h *batchHandlerImpl) ListOffices(w http.ResponseWriter, r *http.Request) {
	result, err := h.batchService.ListOffices(r.Context(), chi.URLParam(r, "batchID"), viewOptionsFromQuery(r.URL.Query()))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// ListDays implements BatchHandler.
func (h *batchHandlerImpl) ListDays(w http.ResponseWriter, r *http.Request) {
	req := batch.ListDaysRequest{
		Token:  r.URL.Query().Get("token"),
		Status: r.URL.Query().Get("status"),
	}

	result, err := h.batchService.ListDays(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, result, &response.Meta{TotalItems: int64(len(result))})
}

// ListExcluded implements BatchHandler.
func (h *batchHandlerImpl) ListExcluded(w http.ResponseWriter, r *http.Request) {
	result, err := h.batchService.ListExcluded(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// SearchDirectory implements BatchHandler.
func (h *batchHandlerImpl) SearchDirectory(w http.ResponseWriter, r *http.Request) {
	req := identity.SearchEmployeesRequest{Query: r.URL.Query().Get("q")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}

	result, err := h.batchService.SearchDirectory(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

// Export implements BatchHandler.
func (h *batchHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	var req batch.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.batchService.Export(r.Context(), chi.URLParam(r, "batchID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Attachment(w, result.FileName, xlsxContentType, result.Data)
}

// NormalizedFile implements BatchHandler.
func (h *batchHandlerImpl) NormalizedFile(w http.ResponseWriter, r *http.Request) {
	result, err := h.batchService.NormalizedFile(r.Context(), chi.URLParam(r, "batchID"), chi.URLParam(r, "fileID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Attachment(w, result.FileName, xlsxContentType, result.Data)
}

type streamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// StreamToken implements BatchHandler. EventSource cannot send headers, so
// the stream authenticates with a short-lived token bound to the batch.
func (h *batchHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if _, err := h.batchService.GetBatch(r.Context(), batchID); err != nil {
		response.HandleError(w, err)
		return
	}
	companyID, err := jwt.CompanyIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(companyID, batchID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, streamTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream implements BatchHandler.
func (h *batchHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	ctx := r.Context()

	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		companyID, err := h.jwtService.ValidateStreamToken(tokenStr, batchID)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		ctx = jwt.WithCompanyID(ctx, companyID)
	} else if _, err := jwt.CompanyIDFromContext(ctx); err != nil {
		response.HandleError(w, err)
		return
	}

	events, cleanup, err := h.batchService.Subscribe(ctx, batchID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer cleanup()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"batch_id\":%q}\n\n", batchID)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				// batch evicted
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

func viewOptionsFromQuery(q url.Values) attendance.ViewOptions {
	return attendance.ViewOptions{
		RateMode:  q.Get("rate_mode"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		ThenBy:    q.Get("then_by"),
		ThenOrder: q.Get("then_order"),
	}
}
