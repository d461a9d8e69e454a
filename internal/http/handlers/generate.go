package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"childgen/internal/imagegen"
)

const maxGenerateBody = 64 << 10

// GenerateChild runs one generation and answers with a file URL, a fallback
// URL or a structured error.
func (a *App) GenerateChild(w http.ResponseWriter, r *http.Request) {
	if a.Generator == nil {
		a.error(w, http.StatusServiceUnavailable, imagegen.StatusError, "generator not configured")
		return
	}
	var req imagegen.Request
	body := http.MaxBytesReader(w, r.Body, maxGenerateBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, imagegen.StatusError, "invalid payload")
		return
	}

	res, err := a.Generator.Generate(r.Context(), req)
	switch {
	case errors.Is(err, imagegen.ErrInvalidRequest),
		errors.Is(err, imagegen.ErrParentImageMissing),
		errors.Is(err, imagegen.ErrParentImageTooLarge):
		a.error(w, http.StatusBadRequest, imagegen.StatusError, strings.TrimPrefix(err.Error(), "imagegen: "))
		return
	case err != nil:
		a.log(r).Error().Err(err).Msg("generate: request failed")
		a.error(w, http.StatusInternalServerError, imagegen.StatusError, "failed to generate image")
		return
	}
	if res.GenerationID != "" {
		w.Header().Set("X-Generation-ID", res.GenerationID)
	}
	a.json(w, statusCode(res), res)
}

func statusCode(res *imagegen.Result) int {
	if res.Error == "" {
		return http.StatusOK
	}
	switch res.Status {
	case imagegen.StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
