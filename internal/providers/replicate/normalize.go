package replicate

import (
	"fmt"
	"strings"
)

// DefaultDenylist holds substrings that disqualify an output URL.
var DefaultDenylist = []string{"nsfw", "inappropriate", "placeholder"}

// Normalize classifies a prediction into an Outcome. It does no I/O and
// returns the same Outcome for the same input.
//
// The denylist is a case-insensitive substring match on the URL text. It
// catches obvious placeholder or flagged URLs and is not content moderation.
func Normalize(p Prediction, denylist []string) Outcome {
	out := Outcome{Status: p.Status, PredictionID: p.ID}
	switch {
	case p.Status == StatusSucceeded:
		url, ok := extractURL(p)
		if !ok {
			out.Kind = KindExtractionError
			out.Reason = fmt.Sprintf("no image url in %s output", p.Output.Kind)
			return out
		}
		if term, blocked := denied(url, denylist); blocked {
			out.Kind = KindExtractionError
			out.Reason = fmt.Sprintf("output url rejected by denylist term %q", term)
			return out
		}
		out.Kind = KindSuccess
		out.URL = url
	case p.Status == StatusFailed:
		out.Kind = KindFailed
		out.Reason = string(p.Error)
		if out.Reason == "" {
			out.Reason = "unknown"
		}
	case p.Status.IsPending():
		out.Kind = KindPending
	default:
		out.Kind = KindUnknownStatus
		out.Reason = fmt.Sprintf("unrecognized prediction status %q", p.Status)
	}
	return out
}

func extractURL(p Prediction) (string, bool) {
	if url, ok := p.Output.FirstURL(); ok {
		if url = strings.TrimSpace(url); url != "" {
			return url, true
		}
	}
	if get := strings.TrimSpace(p.URLs.Get); get != "" {
		return get, true
	}
	return "", false
}

func denied(url string, denylist []string) (string, bool) {
	lower := strings.ToLower(url)
	for _, term := range denylist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(lower, term) {
			return term, true
		}
	}
	return "", false
}
