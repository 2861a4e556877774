package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"podslice/internal/db"
)

// GetPersonalFeed serves a user's private RSS feed, addressed by the opaque
// feed UUID instead of credentials so podcast clients can fetch it.
func (h *Handlers) GetPersonalFeed(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	user, err := db.GetUserByFeedUUID(uuid)
	if err != nil {
		http.Error(w, "Feed not found", http.StatusNotFound)
		return
	}

	episodes, err := db.GetCompletedEpisodesByUserID(user.ID)
	if err != nil {
		log.Printf("Error getting episodes for feed %s: %v", uuid, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := h.feedGen.PersonalRSS(r.Context(), user, episodes)
	if err != nil {
		log.Printf("Error generating RSS for feed %s: %v", uuid, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

// GetCatalogFeed serves a curated bundle's public RSS feed.
func (h *Handlers) GetCatalogFeed(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	bundle, err := db.GetPodcastByFeedUUID(uuid)
	if err != nil {
		http.Error(w, "Feed not found", http.StatusNotFound)
		return
	}

	episodes, err := db.GetCompletedEpisodesByPodcastID(bundle.ID)
	if err != nil {
		log.Printf("Error getting episodes for catalog %s: %v", uuid, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := h.feedGen.CatalogRSS(r.Context(), &bundle, episodes)
	if err != nil {
		log.Printf("Error generating RSS for catalog %s: %v", uuid, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
