// Package handlers implements the HTTP API: episode creation and retrieval,
// notification listing, and the RSS feed endpoints.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"podslice/internal/feed"
	"podslice/internal/models"
	"podslice/internal/storage"
	"podslice/pkg/tasks"
)

type Handlers struct {
	asynqClient tasks.TaskEnqueuer
	store       storage.Store
	feedGen     *feed.Generator
	validate    *validator.Validate
}

func New(asynqClient tasks.TaskEnqueuer, store storage.Store, feedGen *feed.Generator) *Handlers {
	return &Handlers{
		asynqClient: asynqClient,
		store:       store,
		feedGen:     feedGen,
		validate:    validator.New(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// currentUser pulls the authenticated user the auth middleware stored.
func currentUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(models.UserContextKey).(*models.User)
	return user, ok
}
