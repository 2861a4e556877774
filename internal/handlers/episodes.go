package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"

	"podslice/internal/db"
	"podslice/internal/models"
	"podslice/internal/storage"
	"podslice/pkg/tasks"
)

type createEpisodeRequest struct {
	SourceURL     string `json:"source_url" validate:"required,url"`
	Title         string `json:"title" validate:"required,max=300"`
	Mode          string `json:"mode" validate:"omitempty,oneof=single dialogue"`
	TargetMinutes int    `json:"target_minutes" validate:"omitempty,min=1,max=30"`
}

// CreateEpisode accepts a source URL and queues the generation workflow.
func (h *Handlers) CreateEpisode(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createEpisodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeSingle
	}
	if req.TargetMinutes == 0 {
		req.TargetMinutes = 5
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	episode, err := db.CreateEpisode(&user.ID, nil, req.SourceURL, req.Title, req.Mode, req.TargetMinutes)
	if err != nil {
		log.Printf("Failed to create episode: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create episode")
		return
	}

	task, err := newGenerationTask(episode)
	if err != nil {
		log.Printf("Failed to create task for episode %s: %v", episode.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to queue episode")
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		log.Printf("Failed to enqueue episode %s: %v", episode.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to queue episode")
		return
	}

	writeJSON(w, http.StatusCreated, episode)
}

func newGenerationTask(episode models.Episode) (*asynq.Task, error) {
	if episode.Mode == models.ModeDialogue {
		return tasks.NewGenerateDialogueEpisodeTask(episode.ID)
	}
	return tasks.NewGenerateEpisodeTask(episode.ID)
}

// ListEpisodes returns the caller's episodes, newest first.
func (h *Handlers) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	episodes, err := db.GetEpisodesByUserID(user.ID)
	if err != nil {
		log.Printf("Failed to list episodes for user %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	writeJSON(w, http.StatusOK, episodes)
}

// GetEpisode returns one of the caller's episodes.
func (h *Handlers) GetEpisode(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.ownedEpisode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

// GetEpisodeAudio redirects to a short-lived signed URL for the episode's
// audio object.
func (h *Handlers) GetEpisodeAudio(w http.ResponseWriter, r *http.Request) {
	episode, ok := h.ownedEpisode(w, r)
	if !ok {
		return
	}
	if episode.Status != db.StatusCompleted || episode.AudioLocation == nil {
		writeError(w, http.StatusConflict, "episode audio is not ready")
		return
	}

	obj, resolved := storage.ResolveObjectURL(*episode.AudioLocation)
	if !resolved || obj.Bucket != h.store.Bucket() {
		log.Printf("Episode %s has unservable audio location %q", episode.ID, *episode.AudioLocation)
		writeError(w, http.StatusInternalServerError, "failed to resolve audio")
		return
	}
	signed, err := h.store.SignedURL(r.Context(), obj.Path, storage.SignedURLTTL)
	if err != nil {
		log.Printf("Failed to sign audio URL for episode %s: %v", episode.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to sign audio URL")
		return
	}
	http.Redirect(w, r, signed, http.StatusFound)
}

// ListNotifications returns the caller's in-app notifications.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notifications, err := db.GetNotificationsByUserID(user.ID)
	if err != nil {
		log.Printf("Failed to list notifications for user %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// ownedEpisode loads the path's episode and enforces ownership. Catalog
// episodes have no user owner and are only reachable through their feed.
func (h *Handlers) ownedEpisode(w http.ResponseWriter, r *http.Request) (models.Episode, bool) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return models.Episode{}, false
	}

	id := mux.Vars(r)["id"]
	episode, err := db.GetEpisode(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "episode not found")
		} else {
			log.Printf("Failed to get episode %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to get episode")
		}
		return models.Episode{}, false
	}
	if episode.UserID == nil || *episode.UserID != user.ID {
		writeError(w, http.StatusNotFound, "episode not found")
		return models.Episode{}, false
	}
	return episode, true
}
