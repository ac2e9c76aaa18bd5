package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/apperr"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

var tracer = otel.Tracer("github.com/itzrealashwin/AnnaRaksha/assessor/internal/inference")

// Client assesses one batch.
type Client interface {
	Assess(ctx context.Context, p Prompt) (*Assessment, error)
}

// Assessment is a schema-conforming result plus audit data.
type Assessment struct {
	Result     types.RiskResult
	Provenance types.Provenance

	// Attempts is the number of requests made, including the successful one.
	Attempts int
}

// ExhaustedError is the cause carried by a ServiceUnavailable failure.
type ExhaustedError struct {
	Retries int
	Err     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("unavailable after %d retries: %v", e.Retries, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPClient implements Client against an OpenAI-compatible Responses API.
type HTTPClient struct {
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration

	http  *http.Client
	log   *logger.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient builds a client from cfg. The API key is read from the
// environment variable cfg names.
func NewHTTPClient(cfg config.InferenceConfig, log *logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey(),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		http:       &http.Client{},
		log:        log.With("component", "inference"),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text struct {
		Format map[string]any `json:"format"`
	} `json:"text"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (r responsesResponse) outputText() string {
	var out strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				out.WriteString(c.Text)
			}
		}
	}
	return out.String()
}

// rawResult mirrors the output schema. Numbers are pointers so that an
// omitted field is distinguishable from zero.
type rawResult struct {
	RiskScore           *float64 `json:"riskScore" validate:"required"`
	RiskLevel           string   `json:"riskLevel" validate:"required,oneof=Low Medium High Critical"`
	Reason              string   `json:"reason" validate:"required"`
	RecommendedAction   string   `json:"recommendedAction" validate:"required"`
	TimeToCriticalHours *float64 `json:"timeToCriticalHours" validate:"required"`
}

// Assess sends p to the service, retrying transport and status failures.
func (c *HTTPClient) Assess(ctx context.Context, p Prompt) (*Assessment, error) {
	const op = "inference: assess"

	ctx, span := tracer.Start(ctx, "inference.Assess")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", p.BatchID),
		attribute.String("produce", p.Produce),
		attribute.String("provenance", string(p.Provenance())),
	)

	body, err := c.request(p)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, apperr.New(apperr.InvalidInput, op, err)
	}

	attempts := c.maxRetries + 1
	var lastErr error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		res, err := c.attempt(ctx, body)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return &Assessment{Result: res, Provenance: p.Provenance(), Attempts: attempt}, nil
		}
		if apperr.Is(err, apperr.InvalidResponse) {
			span.SetStatus(codes.Error, err.Error())
			c.log.Warn("inference: invalid response", "batch_id", p.BatchID, "attempt", attempt, "error", err)
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt) * c.baseDelay
		c.log.Warn("inference: attempt failed, retrying",
			"batch_id", p.BatchID,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"sleep", delay.String(),
			"error", err,
		)
		if serr := c.sleep(ctx, delay); serr != nil {
			lastErr = serr
			break
		}
	}

	exhausted := &ExhaustedError{Retries: made - 1, Err: lastErr}
	span.SetAttributes(attribute.Int("attempts", made))
	span.SetStatus(codes.Error, exhausted.Error())
	return nil, apperr.New(apperr.ServiceUnavailable, op, exhausted)
}

func (c *HTTPClient) request(p Prompt) ([]byte, error) {
	user, err := p.payload()
	if err != nil {
		return nil, err
	}
	var req responsesRequest
	req.Model = c.model
	req.Input = []inputMessage{
		{Role: "system", Content: p.instructions()},
		{Role: "user", Content: user},
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": riskSchema(),
		"strict": true,
	}
	return json.Marshal(req)
}

// attempt performs one bounded request. Only schema problems are returned as
// InvalidResponse; everything else is retryable.
func (c *HTTPClient) attempt(ctx context.Context, body []byte) (types.RiskResult, error) {
	const op = "inference: decode"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return types.RiskResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.RiskResult{}, fmt.Errorf("http post: %w", err)
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return types.RiskResult{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.RiskResult{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 256)}
	}

	var envelope responsesResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return types.RiskResult{}, apperr.Errorf(apperr.InvalidResponse, op, "parse envelope: %v", err)
	}
	if envelope.Refusal != "" {
		return types.RiskResult{}, apperr.Errorf(apperr.InvalidResponse, op, "model refused: %s", envelope.Refusal)
	}
	text := envelope.outputText()
	if strings.TrimSpace(text) == "" {
		return types.RiskResult{}, apperr.Errorf(apperr.InvalidResponse, op, "no output_text in response")
	}
	return parseResult(text)
}

func parseResult(text string) (types.RiskResult, error) {
	const op = "inference: decode"

	var r rawResult
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&r); err != nil {
		return types.RiskResult{}, apperr.Errorf(apperr.InvalidResponse, op, "parse result: %v", err)
	}
	if err := types.Validator().Struct(r); err != nil {
		return types.RiskResult{}, apperr.Errorf(apperr.InvalidResponse, op, "schema: %v", err)
	}
	return types.RiskResult{
		RiskScore:           *r.RiskScore,
		RiskLevel:           types.RiskLevel(r.RiskLevel),
		Reason:              r.Reason,
		RecommendedAction:   r.RecommendedAction,
		TimeToCriticalHours: *r.TimeToCriticalHours,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsExhausted reports whether err is a retry-budget exhaustion.
func IsExhausted(err error) bool {
	var e *ExhaustedError
	return errors.As(err, &e)
}
