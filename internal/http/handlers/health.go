package handlers

import (
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "AI Child Server is running",
	})
}

type testResponse struct {
	Message     string `json:"message"`
	HasAPIToken bool   `json:"hasApiToken"`
	AppEnv      string `json:"appEnv"`
	Timestamp   string `json:"timestamp"`
}

// Test reports configuration facts useful when checking a deployment.
func (a *App) Test(w http.ResponseWriter, r *http.Request) {
	resp := testResponse{
		Message:     "Server is working",
		HasAPIToken: a.Generator != nil && a.Generator.HasCredentials(),
		Timestamp:   a.now().UTC().Format(time.RFC3339Nano),
	}
	if a.Config != nil {
		resp.AppEnv = a.Config.AppEnv
	}
	a.json(w, http.StatusOK, resp)
}
