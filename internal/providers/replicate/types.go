package replicate

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state reported by the predictions API. The
// vocabulary belongs to the remote service, so any value outside the known
// constants is treated as unrecognized rather than trusted.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// IsPending reports whether the prediction is still running.
func (s Status) IsPending() bool {
	return s == StatusStarting || s == StatusProcessing
}

// IsTerminal reports whether polling can stop on this status.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Prediction is a remote generation job as returned by create and get calls.
type Prediction struct {
	ID        string      `json:"id"`
	Version   string      `json:"version,omitempty"`
	Status    Status      `json:"status"`
	Output    Output      `json:"output"`
	Error     ErrorText   `json:"error,omitempty"`
	Logs      string      `json:"logs,omitempty"`
	URLs      URLs        `json:"urls"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	Metrics   *RunMetrics `json:"metrics,omitempty"`
}

// URLs holds the API links attached to a prediction.
type URLs struct {
	Get    string `json:"get,omitempty"`
	Cancel string `json:"cancel,omitempty"`
}

// RunMetrics carries timing information when the service reports it.
type RunMetrics struct {
	PredictTime float64 `json:"predict_time,omitempty"`
}

// ErrorText decodes the prediction error field, which is usually a string
// but is not contractually one. Objects are kept as compact JSON.
type ErrorText string

func (e *ErrorText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ErrorText(strings.TrimSpace(s))
		return nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, b); err != nil {
		return err
	}
	*e = ErrorText(compact.String())
	return nil
}

// Input is the model input object. Image fields hold either an externally
// reachable URL or an inline data URI and are omitted for prompt-only jobs.
type Input struct {
	Prompt               string  `json:"prompt"`
	NegativePrompt       string  `json:"negative_prompt,omitempty"`
	Width                int     `json:"width,omitempty"`
	Height               int     `json:"height,omitempty"`
	NumInferenceSteps    int     `json:"num_inference_steps,omitempty"`
	GuidanceScale        float64 `json:"guidance_scale,omitempty"`
	SafetyTolerance      int     `json:"safety_tolerance,omitempty"`
	SafetyLevel          int     `json:"safety_level,omitempty"`
	ContentFilter        bool    `json:"content_filter"`
	InappropriateContent string  `json:"inappropriate_content,omitempty"`
	ChildSafety          string  `json:"child_safety,omitempty"`
	Image1               string  `json:"image_1,omitempty"`
	Image2               string  `json:"image_2,omitempty"`
}

// HasImages reports whether the input references parent images.
func (in Input) HasImages() bool {
	return in.Image1 != "" || in.Image2 != ""
}

// SubmitRequest describes one prediction to create.
type SubmitRequest struct {
	// Version overrides the client's configured model version when set.
	Version string
	Input   Input
}

type createPredictionRequest struct {
	Version string `json:"version"`
	Input   Input  `json:"input"`
}

// Policy bounds the poll loop.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPolicy matches the service's historical behaviour: four polls two seconds apart.
var DefaultPolicy = Policy{MaxAttempts: 4, Interval: 2 * time.Second}
