package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

func TestWebhooks_Delivery(t *testing.T) {
	type hit struct {
		path string
		body map[string]interface{}
	}
	hits := make(chan hit, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		hits <- hit{path: r.URL.Path, body: body}
	}))
	defer srv.Close()

	t.Setenv("TEST_SLACK_URL", srv.URL+"/slack")
	t.Setenv("TEST_TEAMS_URL", srv.URL+"/teams")
	t.Setenv("TEST_HTTP_URL", srv.URL+"/http")

	w := NewWebhooks([]config.WebhookConfig{
		{Type: "slack", URLEnv: "TEST_SLACK_URL"},
		{Type: "teams", URLEnv: "TEST_TEAMS_URL"},
		{Type: "http", URLEnv: "TEST_HTTP_URL"},
		{Type: "slack", URLEnv: "TEST_UNSET_URL"},
	}, nil)

	a := types.Alert{ID: "a1", BatchID: "b1", WarehouseID: "w1", RiskLevel: types.RiskCritical, RiskScore: 91}
	w.Notify(context.Background(), a)
	close(hits)

	got := map[string]map[string]interface{}{}
	for h := range hits {
		got[h.path] = h.body
	}
	if len(got) != 3 {
		t.Fatalf("deliveries: got %d, want 3", len(got))
	}
	if text, _ := got["/slack"]["text"].(string); !strings.HasPrefix(text, "*[CRITICAL]*") {
		t.Errorf("slack text: %q", text)
	}
	if got["/teams"]["@type"] != "MessageCard" {
		t.Errorf("teams payload: %v", got["/teams"])
	}
	if alert, ok := got["/http"]["alert"].(map[string]interface{}); !ok || alert["id"] != "a1" {
		t.Errorf("http payload: %v", got["/http"])
	}
}

func TestWebhooks_FailureDoesNotStopOthers(t *testing.T) {
	var okHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		okHits++
	}))
	defer srv.Close()

	t.Setenv("TEST_FAIL_URL", srv.URL+"/fail")
	t.Setenv("TEST_OK_URL", srv.URL+"/ok")

	w := NewWebhooks([]config.WebhookConfig{
		{Type: "http", URLEnv: "TEST_FAIL_URL"},
		{Type: "http", URLEnv: "TEST_OK_URL"},
	}, nil)
	w.Notify(context.Background(), types.Alert{ID: "a1"})

	if okHits != 1 {
		t.Errorf("second target hits: got %d, want 1", okHits)
	}
}
