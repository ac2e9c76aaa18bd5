package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/alerts"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/api"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/metrics"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/orchestrator"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/store"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// --- test helpers -----------------------------------------------------------

type fakeAssessor struct {
	out *orchestrator.Outcome
	err error
	ids []string
}

func (f *fakeAssessor) AssessBatchNow(_ context.Context, id string) (*orchestrator.Outcome, error) {
	f.ids = append(f.ids, id)
	return f.out, f.err
}

type fixture struct {
	h        *api.Handler
	svc      *alerts.Service
	assessor *fakeAssessor
	metrics  *metrics.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := alerts.NewService(store.NewMemory().Set().Alerts, nil, nil)
	fa := &fakeAssessor{}
	reg := metrics.New()
	h := api.New(api.Deps{
		Alerts:   svc,
		Assessor: fa,
		Metrics:  reg,
		Queue:    func() api.QueueState { return api.QueueState{Idle: true, Completed: 4} },
	})
	return &fixture{h: h, svc: svc, assessor: fa, metrics: reg}
}

func (f *fixture) alert(t *testing.T, batch, warehouse string, level types.RiskLevel) *types.Alert {
	t.Helper()
	a, err := f.svc.Create(context.Background(), alerts.CreateInput{
		BatchID:     batch,
		WarehouseID: warehouse,
		Result: types.RiskResult{
			RiskScore: 70, RiskLevel: level,
			Reason: "warm", RecommendedAction: "cool", TimeToCriticalHours: 6,
		},
		Provenance: types.ProvenancePredefined,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func do(t *testing.T, h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- alerts -----------------------------------------------------------------

func TestListAlerts_Filters(t *testing.T) {
	f := newFixture(t)
	f.alert(t, "b1", "w1", types.RiskHigh)
	f.alert(t, "b2", "w1", types.RiskCritical)
	f.alert(t, "b3", "w2", types.RiskHigh)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by warehouse", "?warehouseId=w1", 2},
		{"by batch", "?batchId=b3", 1},
		{"by level", "?riskLevel=Critical", 1},
		{"by status", "?status=resolved", 0},
		{"page size", "?limit=2", 2},
		{"second page", "?limit=2&page=2", 1},
		{"page beyond any offset", "?limit=20&page=9223372036854775807", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, f.h, http.MethodGet, "/api/v1/alerts"+tc.query, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200 (%s)", rr.Code, rr.Body.String())
			}
			var page types.AlertPage
			decode(t, rr, &page)
			if len(page.Items) != tc.want {
				t.Errorf("items: got %d, want %d", len(page.Items), tc.want)
			}
			if page.Total < len(page.Items) {
				t.Errorf("total %d < items %d", page.Total, len(page.Items))
			}
		})
	}
}

func TestListAlerts_BadParams(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"?page=x", "?limit=-", "?status=open", "?riskLevel=Severe"} {
		rr := do(t, f.h, http.MethodGet, "/api/v1/alerts"+q, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", q, rr.Code)
		}
	}
}

func TestGetAlert(t *testing.T) {
	f := newFixture(t)
	a := f.alert(t, "b1", "w1", types.RiskHigh)

	rr := do(t, f.h, http.MethodGet, "/api/v1/alerts/"+a.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var got types.Alert
	decode(t, rr, &got)
	if got.ID != a.ID || got.BatchID != "b1" {
		t.Errorf("alert: %+v", got)
	}

	rr = do(t, f.h, http.MethodGet, "/api/v1/alerts/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", rr.Code)
	}
}

func TestResolveAndDismiss(t *testing.T) {
	f := newFixture(t)
	a := f.alert(t, "b1", "w1", types.RiskHigh)
	b := f.alert(t, "b2", "w1", types.RiskHigh)
	actor := map[string]string{api.ActorHeader: "ops@example.com"}

	rr := do(t, f.h, http.MethodPost, "/api/v1/alerts/"+a.ID+"/resolve", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing actor: got %d, want 400", rr.Code)
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/alerts/"+a.ID+"/resolve", actor)
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve: got %d (%s)", rr.Code, rr.Body.String())
	}
	var got types.Alert
	decode(t, rr, &got)
	if got.Status != types.AlertResolved || got.ResolvedBy != "ops@example.com" || got.ResolvedAt == nil {
		t.Errorf("resolved alert: %+v", got)
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/alerts/"+a.ID+"/dismiss", actor)
	if rr.Code != http.StatusConflict {
		t.Errorf("dismiss resolved: got %d, want 409", rr.Code)
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/alerts/"+b.ID+"/dismiss", actor)
	if rr.Code != http.StatusOK {
		t.Fatalf("dismiss: got %d", rr.Code)
	}
	decode(t, rr, &got)
	if got.Status != types.AlertDismissed {
		t.Errorf("status: got %s", got.Status)
	}

	rr = do(t, f.h, http.MethodGet, "/api/v1/alerts/"+a.ID+"/resolve", actor)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET on resolve: got %d, want 405", rr.Code)
	}
}

// --- batches ----------------------------------------------------------------

func TestAssessBatch(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.assessor.out = &orchestrator.Outcome{
		BatchID: "b1", Score: 72, Level: types.RiskHigh, Provenance: types.ProvenancePredefined,
		AnalyzedAt: at, CooldownUntil: at.Add(30 * time.Minute),
	}

	rr := do(t, f.h, http.MethodPost, "/api/v1/batches/b1/assess", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["riskScore"].(float64) != 72 || resp["riskLevel"] != "High" || resp["batchId"] != "b1" {
		t.Errorf("response: %v", resp)
	}
	if len(f.assessor.ids) != 1 || f.assessor.ids[0] != "b1" {
		t.Errorf("assessor calls: %v", f.assessor.ids)
	}
}

func TestAssessBatch_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"cooling down", apperr.Errorf(apperr.Conflict, "orchestrator: assess now", "cooling down"), http.StatusConflict, "cooling down"},
		{"missing batch", apperr.Errorf(apperr.NotFound, "store: batch", "b9"), http.StatusNotFound, "b9"},
		{"inference down", apperr.Errorf(apperr.ServiceUnavailable, "inference: assess", "down"), http.StatusServiceUnavailable, "down"},
		{"bad payload", apperr.Errorf(apperr.InvalidResponse, "inference: assess", "schema"), http.StatusBadGateway, "schema"},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.assessor.err = tc.err
			rr := do(t, f.h, http.MethodPost, "/api/v1/batches/b9/assess", nil)
			if rr.Code != tc.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tc.wantCode)
			}
			if !strings.Contains(rr.Body.String(), tc.wantBody) {
				t.Errorf("body %q missing %q", rr.Body.String(), tc.wantBody)
			}
		})
	}
}

// --- ops --------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rr := do(t, f.h, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "ok" || resp.Queue == nil || !resp.Queue.Idle || resp.Queue.Completed != 4 {
		t.Errorf("health: %+v", resp)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.metrics.Inc(metrics.AlertsTotal, "High")

	rr := do(t, f.h, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type: %q", ct)
	}
	if !strings.Contains(rr.Body.String(), metrics.AlertsTotal) {
		t.Errorf("body missing %s:\n%s", metrics.AlertsTotal, rr.Body.String())
	}
}

func TestStream_MountedWhenGiven(t *testing.T) {
	var hit bool
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	h := api.New(api.Deps{Alerts: alerts.NewService(store.NewMemory().Set().Alerts, nil, nil), Stream: stream})

	do(t, h, http.MethodGet, "/api/v1/stream", nil)
	if !hit {
		t.Error("stream handler not reached")
	}

	bare := newFixture(t)
	if rr := do(t, bare.h, http.MethodGet, "/api/v1/stream", nil); rr.Code != http.StatusNotFound {
		t.Errorf("without stream: got %d, want 404", rr.Code)
	}
}
