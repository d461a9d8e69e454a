package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"childgen/internal/domain"
	"childgen/internal/imagegen"
)

// ListGenerations returns recent generation records for a user.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	if a.Generations == nil {
		a.error(w, http.StatusServiceUnavailable, imagegen.StatusError, "generation log not configured")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		a.error(w, http.StatusBadRequest, imagegen.StatusError, "userId is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, imagegen.StatusError, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.Generations.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.log(r).Error().Err(err).Str("user_id", userID).Msg("generations: list failed")
		a.error(w, http.StatusInternalServerError, imagegen.StatusError, "failed to list generations")
		return
	}
	if items == nil {
		items = []domain.Generation{}
	}
	a.json(w, http.StatusOK, map[string]any{"userId": userID, "items": items})
}
