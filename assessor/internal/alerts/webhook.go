package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Webhooks delivers alerts to slack, teams and plain HTTP endpoints.
type Webhooks struct {
	targets []config.WebhookConfig
	client  *http.Client
	log     *logger.Logger
}

// NewWebhooks returns a Notifier for targets. URLs are resolved from the
// environment at delivery time so a rotated secret takes effect without a
// restart.
func NewWebhooks(targets []config.WebhookConfig, log *logger.Logger) *Webhooks {
	if log == nil {
		log = logger.Nop()
	}
	return &Webhooks{
		targets: targets,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With("component", "webhooks"),
	}
}

// Notify sends a to every configured target. Errors are logged.
func (w *Webhooks) Notify(ctx context.Context, a types.Alert) {
	for _, wh := range w.targets {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = w.sendSlack(ctx, url, a)
		case "teams":
			err = w.sendTeams(ctx, url, a)
		case "http":
			err = w.sendHTTP(ctx, url, a)
		default:
			w.log.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			w.log.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"alert_id", a.ID,
				"error", err,
			)
		} else {
			w.log.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"alert_id", a.ID,
			)
		}
	}
}

func (w *Webhooks) sendSlack(ctx context.Context, url string, a types.Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", levelLabel(a.RiskLevel), summary(a)),
	})
	return w.post(ctx, url, body)
}

func (w *Webhooks) sendTeams(ctx context.Context, url string, a types.Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": levelColor(a.RiskLevel),
		"summary":    fmt.Sprintf("Spoilage risk on batch %s", a.BatchID),
		"title":      fmt.Sprintf("Spoilage risk %s: batch %s", a.RiskLevel, a.BatchID),
		"text":       summary(a),
	}
	body, _ := json.Marshal(payload)
	return w.post(ctx, url, body)
}

func (w *Webhooks) sendHTTP(ctx context.Context, url string, a types.Alert) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return w.post(ctx, url, body)
}

func (w *Webhooks) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func summary(a types.Alert) string {
	return fmt.Sprintf("Batch %s in warehouse %s scored %d. %s Action: %s",
		a.BatchID, a.WarehouseID, a.RiskScore, a.Reason, a.RecommendedAction)
}

func levelLabel(l types.RiskLevel) string {
	switch l {
	case types.RiskCritical:
		return "[CRITICAL]"
	case types.RiskHigh:
		return "[HIGH]"
	case types.RiskMedium:
		return "[MEDIUM]"
	default:
		return "[LOW]"
	}
}

func levelColor(l types.RiskLevel) string {
	switch l {
	case types.RiskCritical:
		return "FF4F6A"
	case types.RiskHigh:
		return "FFAB40"
	case types.RiskMedium:
		return "FFE066"
	default:
		return "00D4FF"
	}
}
