package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/orchestrator"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// ActorHeader carries the identity recorded on resolve and dismiss.
const ActorHeader = "X-Actor"

// Alerts is the alert lifecycle as the handler uses it.
type Alerts interface {
	List(ctx context.Context, f types.AlertFilter, p types.Page) (types.AlertPage, error)
	Get(ctx context.Context, id string) (*types.Alert, error)
	Resolve(ctx context.Context, id, actor string) (*types.Alert, error)
	Dismiss(ctx context.Context, id, actor string) (*types.Alert, error)
}

// Assessor runs a manual single-batch assessment.
type Assessor interface {
	AssessBatchNow(ctx context.Context, batchID string) (*orchestrator.Outcome, error)
}

// Deps are the handler's collaborators. Metrics, Queue and Stream may be nil.
type Deps struct {
	Alerts   Alerts
	Assessor Assessor
	Metrics  io.WriterTo
	Queue    func() QueueState
	Stream   http.Handler // alert WebSocket at /api/v1/stream
	Logger   *logger.Logger
}

// Handler is the HTTP handler for all assessor endpoints.
type Handler struct {
	alerts   Alerts
	assessor Assessor
	metrics  io.WriterTo
	queue    func() QueueState
	log      *logger.Logger
	mux      *http.ServeMux
	now      func() time.Time
}

// New creates a Handler and registers all routes.
func New(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{
		alerts:   d.Alerts,
		assessor: d.Assessor,
		metrics:  d.Metrics,
		queue:    d.Queue,
		log:      log.With("component", "api"),
		mux:      http.NewServeMux(),
		now:      time.Now,
	}

	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("GET /metrics", h.metricsText)
	h.mux.HandleFunc("GET /api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("GET /api/v1/alerts/{id}", h.getAlert)
	h.mux.HandleFunc("POST /api/v1/alerts/{id}/resolve", h.transition(Alerts.Resolve))
	h.mux.HandleFunc("POST /api/v1/alerts/{id}/dismiss", h.transition(Alerts.Dismiss))
	h.mux.HandleFunc("POST /api/v1/batches/{id}/assess", h.assess)
	if d.Stream != nil {
		h.mux.Handle("GET /api/v1/stream", d.Stream)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Time: h.now().UTC()}
	if h.queue != nil {
		q := h.queue()
		resp.Queue = &q
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) metricsText(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		jsonErr(w, http.StatusNotFound, "metrics disabled")
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if _, err := h.metrics.WriteTo(w); err != nil {
		h.log.Warn("api: write metrics", "error", err)
	}
}

// listAlerts returns GET /api/v1/alerts?warehouseId=&batchId=&status=&riskLevel=&page=&limit=
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "page: "+err.Error())
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}

	f := types.AlertFilter{
		WarehouseID: q.Get("warehouseId"),
		BatchID:     q.Get("batchId"),
		Status:      types.AlertStatus(q.Get("status")),
		RiskLevel:   types.RiskLevel(q.Get("riskLevel")),
	}
	out, err := h.alerts.List(r.Context(), f, types.Page{Page: page, Limit: limit})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.alerts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, a)
}

func (h *Handler) transition(fn func(Alerts, context.Context, string, string) (*types.Alert, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			jsonErr(w, http.StatusBadRequest, ActorHeader+" header is required")
			return
		}
		a, err := fn(h.alerts, r.Context(), r.PathValue("id"), actor)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		jsonResp(w, http.StatusOK, a)
	}
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request) {
	out, err := h.assessor.AssessBatchNow(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

// fail writes err with the status of its kind. Unexpected errors are logged
// and their text is not sent to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := apperr.HTTPStatus(kind)
	if !apperr.IsOperational(err) {
		kv := []interface{}{"method", r.Method, "path", r.URL.Path, "error", err}
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			kv = append(kv, "trace_id", sc.TraceID().String())
		}
		h.log.Error("api: request failed", kv...)
		jsonResp(w, code, errorResponse{Error: "internal error"})
		return
	}
	jsonResp(w, code, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
