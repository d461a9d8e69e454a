package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedAPI serves a create call followed by GETs that walk through polls.
// Entries in polls that equal "!500" answer with an HTTP 500 instead.
type scriptedAPI struct {
	mu         sync.Mutex
	created    map[string]any
	authHeader string
	polls      []string
	gets       int
	output     any
	submit     func(w http.ResponseWriter)
}

func (s *scriptedAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authHeader = r.Header.Get("Authorization")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/predictions":
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &s.created)
		if s.submit != nil {
			s.submit(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": "starting", "urls": map[string]string{"get": "https://api.example.com/predictions/p1"}})
	case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
		status := "processing"
		if s.gets < len(s.polls) {
			status = s.polls[s.gets]
		}
		s.gets++
		if status == "!500" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"upstream hiccup"}`))
			return
		}
		resp := map[string]any{"id": "p1", "status": status}
		if status == "succeeded" {
			resp["output"] = s.output
		}
		_ = json.NewEncoder(w).Encode(resp)
	default:
		http.NotFound(w, r)
	}
}

func (s *scriptedAPI) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func newTestClient(t *testing.T, api http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(Options{Token: "r8_test", BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestSubmitSendsVersionInputAndToken(t *testing.T) {
	api := &scriptedAPI{}
	client := newTestClient(t, api)

	p, err := client.Submit(context.Background(), SubmitRequest{Input: Input{
		Prompt:        "a smiling baby",
		Width:         1024,
		ContentFilter: true,
		Image1:        "https://cdn.example.com/mother.jpg",
		Image2:        "data:image/png;base64,AAAA",
	}})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if p.ID != "p1" || p.Status != StatusStarting {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if api.authHeader != "Token r8_test" {
		t.Fatalf("Authorization = %q", api.authHeader)
	}
	if api.created["version"] != defaultModelVersion {
		t.Fatalf("version = %v", api.created["version"])
	}
	input, ok := api.created["input"].(map[string]any)
	if !ok {
		t.Fatalf("input missing: %#v", api.created)
	}
	if input["image_1"] != "https://cdn.example.com/mother.jpg" || input["image_2"] != "data:image/png;base64,AAAA" {
		t.Fatalf("image fields = %v / %v", input["image_1"], input["image_2"])
	}
	if input["content_filter"] != true {
		t.Fatalf("content_filter = %v", input["content_filter"])
	}
}

func TestSubmitPromptOnlyOmitsImages(t *testing.T) {
	api := &scriptedAPI{}
	client := newTestClient(t, api)
	if _, err := client.Submit(context.Background(), SubmitRequest{Input: Input{Prompt: "p"}}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	input := api.created["input"].(map[string]any)
	if _, ok := input["image_1"]; ok {
		t.Fatalf("image_1 should be omitted: %#v", input)
	}
}

func TestSubmitErrorsAreDistinguishable(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		client := NewClient(Options{})
		_, err := client.Submit(context.Background(), SubmitRequest{})
		if !errors.Is(err, ErrMissingToken) {
			t.Fatalf("err = %v, want ErrMissingToken", err)
		}
	})

	t.Run("status", func(t *testing.T) {
		client := newTestClient(t, &scriptedAPI{submit: func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"invalid version"}`))
		}})
		_, err := client.Submit(context.Background(), SubmitRequest{})
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if statusErr.Code != http.StatusUnprocessableEntity || statusErr.Detail != "invalid version" {
			t.Fatalf("unexpected status error %+v", statusErr)
		}
	})

	t.Run("service", func(t *testing.T) {
		client := newTestClient(t, &scriptedAPI{submit: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting","error":"model is cold"}`))
		}})
		_, err := client.Submit(context.Background(), SubmitRequest{})
		var serviceErr *ServiceError
		if !errors.As(err, &serviceErr) {
			t.Fatalf("err = %v, want *ServiceError", err)
		}
		if serviceErr.Message != "model is cold" {
			t.Fatalf("message = %q", serviceErr.Message)
		}
	})

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()
		client := NewClient(Options{Token: "t", BaseURL: base})
		_, err := client.Submit(context.Background(), SubmitRequest{})
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("err = %v, want *TransportError", err)
		}
	})
}

func TestSubmitAppliesTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(Options{Token: "t", BaseURL: srv.URL, SubmitTimeout: 50 * time.Millisecond})
	started := time.Now()
	_, err := client.Submit(context.Background(), SubmitRequest{})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("submit took %s", elapsed)
	}
}

func TestPollQueriesSequentiallyUntilSuccess(t *testing.T) {
	api := &scriptedAPI{polls: []string{"processing", "succeeded"}, output: []string{"https://x/a.jpg"}}
	client := newTestClient(t, api)
	interval := 20 * time.Millisecond

	started := time.Now()
	_, out := client.Poll(context.Background(), "p1", Policy{MaxAttempts: 5, Interval: interval})
	elapsed := time.Since(started)

	if out.Kind != KindSuccess || out.URL != "https://x/a.jpg" {
		t.Fatalf("outcome = %+v", out)
	}
	if got := api.getCount(); got != 2 {
		t.Fatalf("status queries = %d, want 2", got)
	}
	if out.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", out.Attempts)
	}
	if elapsed < 2*interval {
		t.Fatalf("elapsed %s, want at least %s", elapsed, 2*interval)
	}
}

func TestPollTimesOutWhileProcessing(t *testing.T) {
	api := &scriptedAPI{}
	client := newTestClient(t, api)

	_, out := client.Poll(context.Background(), "p1", Policy{MaxAttempts: 3, Interval: time.Millisecond})
	if out.Kind != KindTimeout {
		t.Fatalf("kind = %s, want timeout", out.Kind)
	}
	if out.Status != StatusProcessing {
		t.Fatalf("status = %q", out.Status)
	}
	if got := api.getCount(); got != 3 {
		t.Fatalf("status queries = %d, want 3", got)
	}
}

func TestPollToleratesTransientFailures(t *testing.T) {
	api := &scriptedAPI{polls: []string{"!500", "succeeded"}, output: "https://x/y.jpg"}
	client := newTestClient(t, api)

	_, out := client.Poll(context.Background(), "p1", Policy{MaxAttempts: 3, Interval: time.Millisecond})
	if out.Kind != KindSuccess {
		t.Fatalf("kind = %s (%s), want success", out.Kind, out.Reason)
	}
	if out.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", out.Attempts)
	}
}

func TestPollFailuresStillConsumeBudget(t *testing.T) {
	api := &scriptedAPI{polls: []string{"!500", "!500", "succeeded"}}
	client := newTestClient(t, api)

	_, out := client.Poll(context.Background(), "p1", Policy{MaxAttempts: 2, Interval: time.Millisecond})
	if out.Kind != KindTimeout {
		t.Fatalf("kind = %s, want timeout", out.Kind)
	}
}

func TestPollStopsOnCancellation(t *testing.T) {
	api := &scriptedAPI{}
	client := newTestClient(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	started := time.Now()
	_, out := client.Poll(ctx, "p1", Policy{MaxAttempts: 100, Interval: 10 * time.Second})
	if out.Kind != KindTransportError {
		t.Fatalf("kind = %s, want transport_error", out.Kind)
	}
	if time.Since(started) > 2*time.Second {
		t.Fatalf("poll did not abort promptly")
	}
	if got := api.getCount(); got != 0 {
		t.Fatalf("status queries = %d, want 0", got)
	}
}

func TestRunTerminalOnSubmit(t *testing.T) {
	api := &scriptedAPI{submit: func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":{"url":"https://x/c.jpg"}}`))
	}}
	client := newTestClient(t, api)

	out := client.Run(context.Background(), SubmitRequest{Input: Input{Prompt: "p"}}, Policy{MaxAttempts: 3, Interval: time.Millisecond})
	if out.Kind != KindSuccess || out.URL != "https://x/c.jpg" {
		t.Fatalf("outcome = %+v", out)
	}
	if api.getCount() != 0 {
		t.Fatalf("unexpected poll")
	}
}

func TestRunPollsAndReportsFailure(t *testing.T) {
	api := &scriptedAPI{polls: []string{"processing", "failed"}}
	client := newTestClient(t, api)

	out := client.Run(context.Background(), SubmitRequest{}, Policy{MaxAttempts: 4, Interval: time.Millisecond})
	if out.Kind != KindFailed || out.Reason != "unknown" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.PredictionID != "p1" {
		t.Fatalf("prediction id = %q", out.PredictionID)
	}
}

func TestRunMapsSubmitErrors(t *testing.T) {
	out := NewClient(Options{}).Run(context.Background(), SubmitRequest{}, DefaultPolicy)
	if out.Kind != KindNotConfigured {
		t.Fatalf("kind = %s, want not_configured", out.Kind)
	}

	client := newTestClient(t, &scriptedAPI{submit: func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
	}})
	out = client.Run(context.Background(), SubmitRequest{}, DefaultPolicy)
	if out.Kind != KindStatusError || out.Reason != "status 401: Invalid token." {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRunSeparatesStatusAndServiceErrors(t *testing.T) {
	rejected := newTestClient(t, &scriptedAPI{submit: func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"model is cold"}`))
	}})
	reported := newTestClient(t, &scriptedAPI{submit: func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"id":"p1","status":"starting","error":"model is cold"}`))
	}})

	a := rejected.Run(context.Background(), SubmitRequest{}, DefaultPolicy)
	b := reported.Run(context.Background(), SubmitRequest{}, DefaultPolicy)
	if a.Kind != KindStatusError || a.Reason != "status 422: model is cold" {
		t.Fatalf("non-2xx outcome = %+v", a)
	}
	if b.Kind != KindServiceError || b.Reason != "model is cold" {
		t.Fatalf("reported error outcome = %+v", b)
	}
}

func TestRunRejectsPendingSubmitWithoutID(t *testing.T) {
	api := &scriptedAPI{submit: func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}}
	client := newTestClient(t, api)

	started := time.Now()
	out := client.Run(context.Background(), SubmitRequest{}, Policy{MaxAttempts: 4, Interval: 100 * time.Millisecond})
	if out.Kind != KindServiceError || !strings.Contains(out.Reason, "missing prediction id") {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Status != StatusStarting {
		t.Fatalf("status = %q, want starting", out.Status)
	}
	if elapsed := time.Since(started); elapsed > 100*time.Millisecond {
		t.Fatalf("run waited %s before failing", elapsed)
	}
	if got := api.getCount(); got != 0 {
		t.Fatalf("status queries = %d, want 0", got)
	}
}

func TestPollEndsOnUnknownStatus(t *testing.T) {
	api := &scriptedAPI{polls: []string{"processing", "canceled", "succeeded"}}
	client := newTestClient(t, api)

	_, out := client.Poll(context.Background(), "p1", Policy{MaxAttempts: 5, Interval: time.Millisecond})
	if out.Kind != KindUnknownStatus || out.Status != Status("canceled") {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", out.Attempts)
	}
	if got := api.getCount(); got != 2 {
		t.Fatalf("status queries = %d, want 2", got)
	}
}

func TestPollTimeoutWithoutAnswerKeepsSubmitStatus(t *testing.T) {
	api := &scriptedAPI{polls: []string{"!500", "!500"}}
	client := newTestClient(t, api)

	_, out := client.Poll(context.Background(), "p1", Policy{MaxAttempts: 2, Interval: time.Millisecond})
	if out.Kind != KindTimeout || out.Status != "" {
		t.Fatalf("poll outcome = %+v", out)
	}
	if strings.Contains(out.Reason, string(StatusProcessing)) {
		t.Fatalf("reason claims a status never observed: %q", out.Reason)
	}

	api = &scriptedAPI{polls: []string{"!500", "!500"}}
	client = newTestClient(t, api)
	out = client.Run(context.Background(), SubmitRequest{}, Policy{MaxAttempts: 2, Interval: time.Millisecond})
	if out.Kind != KindTimeout || out.Status != StatusStarting {
		t.Fatalf("run outcome = %+v", out)
	}
}

func TestRunTerminalKindsAreDistinct(t *testing.T) {
	cases := []struct {
		name   string
		polls  []string
		output any
		want   Kind
	}{
		{name: "success", polls: []string{"succeeded"}, output: "https://x/y.jpg", want: KindSuccess},
		{name: "failed", polls: []string{"failed"}, want: KindFailed},
		{name: "no url", polls: []string{"succeeded"}, want: KindExtractionError},
		{name: "still processing", polls: []string{"processing", "processing"}, want: KindTimeout},
	}
	seen := map[Kind]string{}
	for _, tc := range cases {
		client := newTestClient(t, &scriptedAPI{polls: tc.polls, output: tc.output})
		out := client.Run(context.Background(), SubmitRequest{}, Policy{MaxAttempts: 2, Interval: time.Millisecond})
		if out.Kind != tc.want {
			t.Fatalf("%s: kind = %s, want %s", tc.name, out.Kind, tc.want)
		}
		if prev, ok := seen[out.Kind]; ok {
			t.Fatalf("%s and %s share kind %s", prev, tc.name, out.Kind)
		}
		seen[out.Kind] = tc.name
	}
}
