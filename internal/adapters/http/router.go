package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/config"
	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
	"github.com/kirillkom/merchant-statements/internal/observability/metrics"
)

const serviceName = "api"

// Services groups the inbound ports the API exposes. Nil services answer 501.
type Services struct {
	Ingest    ports.StatementIngestor
	Manual    ports.ManualEntryService
	Reader    ports.StatementReader
	Reviewer  ports.StatementReviewer
	Processor ports.StatementProcessor
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(cfg config.Config, services Services, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:      cfg,
		services: services,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/statements", rt.uploadStatement)
	mux.HandleFunc("GET /v1/statements", rt.listStatements)
	mux.HandleFunc("POST /v1/statements/manual", rt.createManualStatement)
	mux.HandleFunc("GET /v1/statements/{id}", rt.getStatementByID)
	mux.HandleFunc("POST /v1/statements/{id}/review", rt.reviewStatement)
	mux.HandleFunc("POST /v1/statements/{id}/process", rt.processStatement)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadStatement(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingest == nil {
		writeNotImplemented(w)
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "statement file is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	rec, err := rt.services.Ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("processor"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordStatementAccepted(serviceName, string(rec.Source), rec.FileSize)
	}

	writeJSON(w, http.StatusAccepted, rec)
}

func (rt *Router) listStatements(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reader == nil {
		writeNotImplemented(w)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be an integer"})
		return
	}

	records, err := rt.services.Reader.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statements": records})
}

func (rt *Router) getStatementByID(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reader == nil {
		writeNotImplemented(w)
		return
	}
	rec, err := rt.services.Reader.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type manualStatementRequest struct {
	MerchantName     string          `json:"merchant_name"`
	ProcessorName    string          `json:"processor_name"`
	PeriodStart      string          `json:"period_start"`
	PeriodEnd        string          `json:"period_end"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	TransactionCount int             `json:"transaction_count"`
	InterchangeFees  decimal.Decimal `json:"interchange_fees"`
	ProcessingFees   decimal.Decimal `json:"processing_fees"`
	MonthlyFees      decimal.Decimal `json:"monthly_fees"`
	OtherFees        decimal.Decimal `json:"other_fees"`
}

func (req manualStatementRequest) entry() (domain.ManualEntry, error) {
	start, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.PeriodStart))
	if err != nil {
		return domain.ManualEntry{}, errors.New("period_start must be YYYY-MM-DD")
	}
	end, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.PeriodEnd))
	if err != nil {
		return domain.ManualEntry{}, errors.New("period_end must be YYYY-MM-DD")
	}
	return domain.ManualEntry{
		MerchantName:     req.MerchantName,
		ProcessorName:    req.ProcessorName,
		PeriodStart:      start,
		PeriodEnd:        end,
		TotalVolume:      req.TotalVolume,
		TransactionCount: req.TransactionCount,
		InterchangeFees:  req.InterchangeFees,
		ProcessingFees:   req.ProcessingFees,
		MonthlyFees:      req.MonthlyFees,
		OtherFees:        req.OtherFees,
	}, nil
}

func (rt *Router) createManualStatement(w http.ResponseWriter, r *http.Request) {
	if rt.services.Manual == nil {
		writeNotImplemented(w)
		return
	}

	var req manualStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	entry, err := req.entry()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rec, err := rt.services.Manual.CreateManual(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordStatementAccepted(serviceName, string(rec.Source), 0)
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (rt *Router) reviewStatement(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reviewer == nil {
		writeNotImplemented(w)
		return
	}
	rec, err := rt.services.Reviewer.MarkReviewed(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// processStatement reruns extraction synchronously and returns the updated record.
func (rt *Router) processStatement(w http.ResponseWriter, r *http.Request) {
	if rt.services.Processor == nil || rt.services.Reader == nil {
		writeNotImplemented(w)
		return
	}
	id := r.PathValue("id")
	if _, err := rt.services.Processor.ProcessByID(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := rt.services.Reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeNotImplemented(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "endpoint is not configured"})
}
