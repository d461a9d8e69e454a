package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"childgen/internal/infra"
)

const (
	defaultBaseURL      = "https://api.replicate.com/v1"
	defaultModelVersion = "smoosh-sh/baby-mystic:ba5ab694"
	maxResponseBytes    = 4 << 20
)

// Options configures the predictions client.
type Options struct {
	Token              string
	BaseURL            string
	ModelVersion       string
	HTTPClient         *http.Client
	Logger             *infra.Logger
	SubmitTimeout      time.Duration
	PollRequestTimeout time.Duration
	Denylist           []string
}

// Client talks to the Replicate predictions API.
type Client struct {
	token              string
	baseURL            string
	modelVersion       string
	httpClient         *http.Client
	logger             *infra.Logger
	submitTimeout      time.Duration
	pollRequestTimeout time.Duration
	denylist           []string
}

type apiError struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := strings.TrimSpace(opts.ModelVersion)
	if version == "" {
		version = defaultModelVersion
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = 10 * time.Second
	}
	pollTimeout := opts.PollRequestTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	denylist := opts.Denylist
	if denylist == nil {
		denylist = DefaultDenylist
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		token:              strings.TrimSpace(opts.Token),
		baseURL:            baseURL,
		modelVersion:       version,
		httpClient:         httpClient,
		logger:             logger,
		submitTimeout:      submitTimeout,
		pollRequestTimeout: pollTimeout,
		denylist:           denylist,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.token != ""
}

// Submit creates one prediction. It is never retried and always bounded by
// the submit timeout, whatever deadline ctx carries.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingToken
	}
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = c.modelVersion
	}
	body, err := json.Marshal(createPredictionRequest{Version: version, Input: req.Input})
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	p, err := c.do(httpReq, "submit")
	if err != nil {
		return nil, err
	}
	if p.Error != "" && p.Status != StatusFailed {
		return p, &ServiceError{Op: "submit", Message: string(p.Error)}
	}
	c.logger.Debug().
		Str("prediction_id", p.ID).
		Str("status", string(p.Status)).
		Str("version", version).
		Bool("with_images", req.Input.HasImages()).
		Dur("elapsed", time.Since(started)).
		Msg("replicate: prediction created")
	return p, nil
}

// Get fetches the current state of a prediction.
func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingToken
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("replicate: prediction id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.pollRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	return c.do(httpReq, "get")
}

func (c *Client) do(req *http.Request, op string) (*Prediction, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail apiError
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, &StatusError{Op: op, Code: resp.StatusCode, Detail: detail.Detail}
		}
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Detail: strings.TrimSpace(snippet(raw))}
	}

	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ServiceError{Op: op, Message: "decode response", Err: err}
	}
	return &p, nil
}

// Poll re-queries a prediction until it leaves the pending states or the
// policy's attempt budget is spent. Each attempt waits the full interval
// before querying. Failed queries are logged and still consume an attempt.
// Cancelling ctx stops the loop at once.
func (c *Client) Poll(ctx context.Context, id string, policy Policy) (*Prediction, Outcome) {
	var (
		last   *Prediction
		status Status
	)
	log := c.logger.With().Str("prediction_id", id).Logger()

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := wait(ctx, policy.Interval); err != nil {
			return last, Outcome{
				Kind:         KindTransportError,
				Reason:       err.Error(),
				Status:       status,
				PredictionID: id,
				Attempts:     attempt - 1,
			}
		}

		p, err := c.Get(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, Outcome{
					Kind:         KindTransportError,
					Reason:       ctxErr.Error(),
					Status:       status,
					PredictionID: id,
					Attempts:     attempt,
				}
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("replicate: poll failed")
			continue
		}
		last = p
		status = p.Status
		log.Debug().Int("attempt", attempt).Str("status", string(p.Status)).Msg("replicate: polled prediction")

		out := Normalize(*p, c.denylist)
		if out.Kind != KindPending {
			out.Attempts = attempt
			return p, out
		}
	}

	reason := fmt.Sprintf("prediction still %s after %d attempts", status, policy.MaxAttempts)
	if last == nil {
		reason = fmt.Sprintf("prediction unresolved after %d attempts, no poll succeeded", policy.MaxAttempts)
	}
	return last, Outcome{
		Kind:         KindTimeout,
		Reason:       reason,
		Status:       status,
		PredictionID: id,
		Attempts:     policy.MaxAttempts,
	}
}

// Run submits a prediction and resolves it to a single Outcome.
func (c *Client) Run(ctx context.Context, req SubmitRequest, policy Policy) Outcome {
	p, err := c.Submit(ctx, req)
	if err != nil {
		out := outcomeFromSubmitError(err)
		if p != nil {
			out.PredictionID = p.ID
			out.Status = p.Status
		}
		c.logger.Warn().Err(err).Str("kind", string(out.Kind)).Msg("replicate: submit failed")
		return out
	}

	out := Normalize(*p, c.denylist)
	if out.Kind == KindPending {
		if strings.TrimSpace(p.ID) == "" {
			out = Outcome{Kind: KindServiceError, Reason: "submit response missing prediction id", Status: p.Status}
			c.logger.Warn().Str("status", string(p.Status)).Msg("replicate: submit response missing prediction id")
			return out
		}
		_, out = c.Poll(ctx, p.ID, policy)
		if out.Status == "" {
			out.Status = p.Status
		}
	}
	c.logger.Info().
		Str("prediction_id", p.ID).
		Str("kind", string(out.Kind)).
		Str("status", string(out.Status)).
		Int("attempts", out.Attempts).
		Msg("replicate: prediction resolved")
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
