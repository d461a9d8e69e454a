package replicate

import (
	"errors"
	"fmt"
)

// Kind classifies the result of one generation attempt.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindPending         Kind = "pending"
	KindFailed          Kind = "failed"
	KindTimeout         Kind = "timeout"
	KindExtractionError Kind = "extraction_error"
	KindUnknownStatus   Kind = "unknown_status"
	KindTransportError  Kind = "transport_error"
	KindStatusError     Kind = "status_error"
	KindServiceError    Kind = "service_error"
	KindNotConfigured   Kind = "not_configured"
)

// Outcome is the normalized result handed to callers. Raw service payloads
// never leave this package; only the URL and a reason string do.
type Outcome struct {
	Kind         Kind
	URL          string
	Reason       string
	Status       Status
	PredictionID string
	// Attempts is the number of poll requests made, zero when the submit
	// response was already terminal.
	Attempts int
}

// OK reports whether the outcome carries a usable URL.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess && o.URL != ""
}

// outcomeFromSubmitError maps a Submit error to an Outcome.
func outcomeFromSubmitError(err error) Outcome {
	var (
		transportErr *TransportError
		statusErr    *StatusError
		serviceErr   *ServiceError
	)
	switch {
	case errors.Is(err, ErrMissingToken):
		return Outcome{Kind: KindNotConfigured, Reason: err.Error()}
	case errors.As(err, &transportErr):
		return Outcome{Kind: KindTransportError, Reason: transportErr.Err.Error()}
	case errors.As(err, &statusErr):
		reason := fmt.Sprintf("status %d", statusErr.Code)
		if statusErr.Detail != "" {
			reason += ": " + statusErr.Detail
		}
		return Outcome{Kind: KindStatusError, Reason: reason}
	case errors.As(err, &serviceErr):
		return Outcome{Kind: KindServiceError, Reason: serviceErr.Message}
	default:
		return Outcome{Kind: KindTransportError, Reason: err.Error()}
	}
}
