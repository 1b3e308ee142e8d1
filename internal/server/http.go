package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/export"
	"github.com/joseph-ayodele/order-intake/internal/pipeline"
	"github.com/joseph-ayodele/order-intake/internal/services/intake"
)

// DefaultMaxUpload caps one multipart request.
const DefaultMaxUpload = 64 << 20

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	RequestTimeout time.Duration
	MaxUpload      int64
}

// HTTPHandler serves the upload and batch API.
type HTTPHandler struct {
	svc      Intake
	exporter *export.Service
	health   *HealthWatcher
	cfg      HTTPConfig
	logger   *slog.Logger
}

func NewHTTPHandler(svc Intake, exporter *export.Service, hw *HealthWatcher, cfg HTTPConfig, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(nil, nil, logger)
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	return &HTTPHandler{svc: svc, exporter: exporter, health: hw, cfg: cfg, logger: logger}
}

// Router builds the chi route tree.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(h.cfg.RequestTimeout))

	r.Get("/healthz", h.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", h.submitDocuments)
		r.Post("/messages/text", h.submitText)
		r.Post("/messages/image", h.submitImage)

		r.Get("/stats", h.stats)
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.listBatches)
			r.Get("/{batchID}", h.loadBatch)
			r.Get("/{batchID}/aggregate", h.aggregateBatch)
		})
	})
	return r
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		id := chimiddleware.GetReqID(r.Context())
		ctx := common.WithRequestID(r.Context(), id)
		next.ServeHTTP(ww, r.WithContext(ctx))
		h.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", id,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *HTTPHandler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil && !h.health.Healthy() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "NOT_SERVING"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "SERVING"})
}

func formBatch(r *http.Request) (batchFields, error) {
	b := batchFields{
		BatchID: strings.TrimSpace(r.FormValue("batch_id")),
		Note:    r.FormValue("note"),
		Account: strings.TrimSpace(r.FormValue("account")),
	}
	if v := strings.TrimSpace(r.FormValue("persist")); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			return b, common.NewAppError(common.CodeInvalidInput, "persist must be a boolean", common.ErrInvalidInput)
		}
		b.Persist = p
	}
	return b, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *HTTPHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUpload)
	if err := r.ParseMultipartForm(h.cfg.MaxUpload); err != nil {
		return common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("multipart form: %v", err), common.ErrInvalidInput)
	}
	return nil
}

// submitDocuments accepts one or more "file" parts. With ?format=xlsx the response is the report workbook.
func (h *HTTPHandler) submitDocuments(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.fail(w, err)
		return
	}
	batch, err := formBatch(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		h.fail(w, common.NewAppError(common.CodeInvalidInput, "at least one file is required", common.ErrInvalidInput))
		return
	}

	docs := make([]pipeline.Document, 0, len(parts))
	for _, fh := range parts {
		content, err := readPart(fh)
		if err != nil {
			h.fail(w, common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("read %s: %v", fh.Filename, err), common.ErrInvalidInput))
			return
		}
		docs = append(docs, pipeline.Document{Name: fh.Filename, Content: content})
	}

	res, err := h.svc.Ingest(r.Context(), intake.IngestRequest{
		Documents:     docs,
		ReferenceDate: strings.TrimSpace(r.FormValue("reference_date")),
		Persist:       batch.Persist,
		Batch:         batch.meta(),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if wantsXLSX(r) {
		h.writeWorkbook(w, r, res.Lines, batch.Account)
		return
	}
	h.writeJSON(w, http.StatusOK, newResultView(res))
}

func (h *HTTPHandler) submitText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		h.fail(w, common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("decode body: %v", err), common.ErrInvalidInput))
		return
	}
	res, err := h.svc.SubmitText(r.Context(), req.toIntake())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newResultView(res))
}

func (h *HTTPHandler) submitImage(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.fail(w, err)
		return
	}
	batch, err := formBatch(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var image []byte
	if parts := r.MultipartForm.File["image"]; len(parts) > 0 {
		if image, err = readPart(parts[0]); err != nil {
			h.fail(w, common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("read image: %v", err), common.ErrInvalidInput))
			return
		}
	}
	res, err := h.svc.SubmitImage(r.Context(), intake.ImageRequest{
		Image:         image,
		Sender:        r.FormValue("sender"),
		Message:       r.FormValue("message"),
		ReferenceDate: strings.TrimSpace(r.FormValue("reference_date")),
		Persist:       batch.Persist,
		Batch:         batch.meta(),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newResultView(res))
}

func (h *HTTPHandler) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.Batches(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if batches == nil {
		batches = []entity.Batch{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *HTTPHandler) loadBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	rows, err := h.svc.LoadBatch(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BatchRows{BatchID: id, Rows: rows})
}

func (h *HTTPHandler) aggregateBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	lines, summary, err := h.svc.AggregateBatch(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if wantsXLSX(r) {
		h.writeWorkbook(w, r, lines, r.URL.Query().Get("account"))
		return
	}
	h.writeJSON(w, http.StatusOK, BatchAggregate{BatchID: id, Lines: lines, Summary: summary})
}

func (h *HTTPHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func wantsXLSX(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "xlsx")
}

func (h *HTTPHandler) writeWorkbook(w http.ResponseWriter, r *http.Request, lines []entity.OrderLine, account string) {
	b, err := h.exporter.Workbook(r.Context(), lines, account)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exporter.FileName()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		h.logger.Warn("http.write_failed", "error", err)
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("http.write_failed", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// fail maps an application error onto an HTTP status.
func (h *HTTPHandler) fail(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, common.CodeInternal
	switch {
	case errors.Is(err, common.ErrNotFound):
		status, code = http.StatusNotFound, common.CodeNotFound
	case errors.Is(err, common.ErrValidation):
		status, code = http.StatusBadRequest, common.CodeValidation
	case errors.Is(err, common.ErrInvalidInput):
		status, code = http.StatusBadRequest, common.CodeInvalidInput
	case errors.Is(err, common.ErrLockTimeout):
		status, code = http.StatusServiceUnavailable, common.CodeLockTimeout
	case errors.Is(err, common.ErrPersistence):
		status, code = http.StatusServiceUnavailable, common.CodePersistence
	}
	if status >= 500 {
		h.logger.Error("http.failed", "status", status, "error", err)
	}
	h.writeError(w, status, code, err.Error())
}
