package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"childgen/internal/domain"
	"childgen/internal/infra"
	"childgen/internal/metrics"
	"childgen/internal/providers/replicate"
	"childgen/internal/uploads"
)

var (
	ErrInvalidRequest      = errors.New("imagegen: invalid request")
	ErrParentImageMissing  = errors.New("imagegen: parent image not uploaded")
	ErrParentImageTooLarge = errors.New("imagegen: parent image too large to send inline")
)

// Statuses reported to callers alongside an error or a fallback URL.
const (
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusError   = "error"
	StatusMock    = "mock"
)

// Model input constants. They favour safety filters over speed.
const (
	imageSize            = 1024
	inferenceSteps       = 50
	guidanceScale        = 15
	safetyTolerance      = 2
	safetyLevel          = 4
	inappropriateContent = "block"
	childSafetyMaximum   = "maximum"
)

// Runner resolves one prediction to an Outcome. *replicate.Client satisfies it.
type Runner interface {
	HasCredentials() bool
	Run(ctx context.Context, req replicate.SubmitRequest, policy replicate.Policy) replicate.Outcome
}

// Recorder stores generation records. domain.GenerationRepository satisfies it.
type Recorder interface {
	Create(ctx context.Context, g *domain.Generation) error
}

// Options configures a Service.
type Options struct {
	Runner              Runner
	Uploads             uploads.Store
	Policy              replicate.Policy
	FallbackURL         string
	OnUnavailable       string
	PublicBaseURL       string
	MaxInlineImageBytes int
	Recorder            Recorder
	Metrics             *metrics.Metrics
	Logger              *infra.Logger
	Picker              Picker
}

// Service turns generation requests into a single image URL, a fallback URL
// or a caller-facing error.
type Service struct {
	runner        Runner
	uploads       uploads.Store
	policy        replicate.Policy
	fallbackURL   string
	mockOnFailure bool
	publicBaseURL string
	maxInline     int
	recorder      Recorder
	metrics       *metrics.Metrics
	logger        *infra.Logger
	pick          Picker
}

// Result is the caller-facing answer. Exactly one of FileURL or Error is set.
type Result struct {
	FileURL  string `json:"fileUrl,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`

	Outcome      replicate.Outcome `json:"-"`
	GenerationID string            `json:"-"`
}

func NewService(opts Options) *Service {
	fallback := strings.TrimSpace(opts.FallbackURL)
	if fallback == "" {
		fallback = infra.DefaultFallbackImageURL
	}
	policy := opts.Policy
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = replicate.DefaultPolicy.MaxAttempts
	}
	if policy.Interval <= 0 {
		policy.Interval = replicate.DefaultPolicy.Interval
	}
	maxInline := opts.MaxInlineImageBytes
	if maxInline <= 0 {
		maxInline = 1 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	pick := opts.Picker
	if pick == nil {
		pick = rand.Intn
	}
	return &Service{
		runner:        opts.Runner,
		uploads:       opts.Uploads,
		policy:        policy,
		fallbackURL:   fallback,
		mockOnFailure: opts.OnUnavailable == infra.OnUnavailableMock,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		maxInline:     maxInline,
		recorder:      opts.Recorder,
		metrics:       opts.Metrics,
		logger:        logger,
		pick:          pick,
	}
}

// HasCredentials reports whether real generation is possible.
func (s *Service) HasCredentials() bool {
	return s.runner != nil && s.runner.HasCredentials()
}

// Generate serves one request. Returned errors are request or storage
// problems; generation failures are reported inside the Result.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	owner := uploads.NewKey(req.UserID, req.ChildKey, "")
	req.UserID, req.ChildKey = owner.UserID, owner.ChildKey
	log := s.logger.With().Str("user_id", req.UserID).Str("child_key", req.ChildKey).Logger()

	if !s.HasCredentials() {
		log.Warn().Msg("imagegen: no replicate token configured, returning fallback image")
		res := &Result{
			FileURL:  s.fallbackURL,
			Fallback: true,
			Status:   StatusMock,
			Outcome:  replicate.Outcome{Kind: replicate.KindNotConfigured, Reason: "replicate api token not configured"},
		}
		s.finish(ctx, req, res, false)
		return res, nil
	}

	images, err := s.resolveImages(ctx, req)
	if err != nil {
		return nil, err
	}
	prompt := BuildPrompt(req, s.pick)
	input := replicate.Input{
		Prompt:               prompt.Positive,
		NegativePrompt:       prompt.Negative,
		Width:                imageSize,
		Height:               imageSize,
		NumInferenceSteps:    inferenceSteps,
		GuidanceScale:        guidanceScale,
		SafetyTolerance:      safetyTolerance,
		SafetyLevel:          safetyLevel,
		ContentFilter:        true,
		InappropriateContent: inappropriateContent,
		ChildSafety:          childSafetyMaximum,
	}
	if len(images) > 0 {
		input.Image1 = images[0]
	}
	if len(images) > 1 {
		input.Image2 = images[1]
	}
	log.Debug().Str("prompt", prompt.Positive).Int("images", len(images)).Msg("imagegen: submitting prediction")

	out := s.runner.Run(ctx, replicate.SubmitRequest{Input: input}, s.policy)
	res := s.resultFor(out)
	s.finish(ctx, req, res, len(images) > 0)
	return res, nil
}

func (s *Service) resultFor(out replicate.Outcome) *Result {
	res := &Result{Outcome: out}
	switch out.Kind {
	case replicate.KindSuccess:
		res.FileURL = out.URL
		return res
	case replicate.KindNotConfigured:
		res.FileURL = s.fallbackURL
		res.Fallback = true
		res.Status = StatusMock
		return res
	}

	res.Status = CallerStatus(out.Kind)
	if s.mockOnFailure && out.Kind != replicate.KindExtractionError {
		res.FileURL = s.fallbackURL
		res.Fallback = true
		return res
	}
	res.Error = errorMessage(out)
	return res
}

// CallerStatus maps an outcome kind to the status string shown to callers.
func CallerStatus(kind replicate.Kind) string {
	switch kind {
	case replicate.KindFailed:
		return StatusFailed
	case replicate.KindTimeout:
		return StatusTimeout
	case replicate.KindNotConfigured:
		return StatusMock
	case replicate.KindSuccess:
		return ""
	default:
		return StatusError
	}
}

func errorMessage(out replicate.Outcome) string {
	switch out.Kind {
	case replicate.KindFailed:
		return out.Reason
	case replicate.KindServiceError:
		return out.Reason
	case replicate.KindStatusError:
		return "generation service rejected the request: " + out.Reason
	case replicate.KindTimeout:
		return "generation timed out: " + out.Reason
	case replicate.KindTransportError:
		return "generation service unreachable: " + out.Reason
	case replicate.KindExtractionError:
		return "generation succeeded but returned no usable image: " + out.Reason
	case replicate.KindUnknownStatus:
		return "generation ended in an unexpected state: " + out.Reason
	default:
		return fmt.Sprintf("generation ended with %s: %s", out.Kind, out.Reason)
	}
}

func (s *Service) resolveImages(ctx context.Context, req Request) ([]string, error) {
	if len(req.ParentRoles) == 0 {
		return nil, nil
	}
	if s.uploads == nil {
		return nil, fmt.Errorf("%w: no upload store configured", ErrParentImageMissing)
	}
	refs := make([]string, 0, len(req.ParentRoles))
	for _, role := range req.ParentRoles {
		key := uploads.NewKey(req.UserID, req.ChildKey, role)
		ref, err := s.imageRef(ctx, key)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// imageRef prefers a URL the service can fetch: a presigned store URL, then
// a public URL served by this process, then an inline data URI.
func (s *Service) imageRef(ctx context.Context, key uploads.Key) (string, error) {
	if provider, ok := s.uploads.(uploads.URLProvider); ok {
		u, err := provider.URL(ctx, key)
		if errors.Is(err, uploads.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrParentImageMissing, key)
		}
		if err != nil {
			return "", fmt.Errorf("imagegen: parent image url %s: %w", key, err)
		}
		return u, nil
	}
	img, err := s.uploads.Get(ctx, key)
	if errors.Is(err, uploads.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrParentImageMissing, key)
	}
	if err != nil {
		return "", fmt.Errorf("imagegen: load parent image %s: %w", key, err)
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/uploads/" + url.PathEscape(key.UserID) + "/" + url.PathEscape(key.ChildKey) + "/" + url.PathEscape(key.Role), nil
	}
	if len(img.Data) > s.maxInline {
		return "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrParentImageTooLarge, key, len(img.Data), s.maxInline)
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
}

func (s *Service) finish(ctx context.Context, req Request, res *Result, withImages bool) {
	out := res.Outcome
	s.metrics.ObserveOutcome(string(out.Kind), res.Fallback)
	if out.PredictionID != "" {
		s.metrics.ObservePollAttempts(out.Attempts)
	}

	event := s.logger.Info()
	if res.Error != "" {
		event = s.logger.Warn()
	}
	event.
		Str("user_id", req.UserID).
		Str("child_key", req.ChildKey).
		Str("prediction_id", out.PredictionID).
		Str("kind", string(out.Kind)).
		Str("status", res.Status).
		Bool("fallback", res.Fallback).
		Str("reason", out.Reason).
		Msg("imagegen: generation finished")

	if s.recorder == nil {
		return
	}
	rec := &domain.Generation{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		ChildKey:     req.ChildKey,
		PredictionID: out.PredictionID,
		Outcome:      string(out.Kind),
		Status:       string(out.Status),
		FileURL:      res.FileURL,
		Reason:       out.Reason,
		Fallback:     res.Fallback,
		WithImages:   withImages,
		PollAttempts: out.Attempts,
		CreatedAt:    time.Now().UTC(),
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.Create(recordCtx, rec); err != nil {
		s.logger.Error().Err(err).Str("generation_id", rec.ID).Msg("imagegen: record generation failed")
		return
	}
	res.GenerationID = rec.ID
}
