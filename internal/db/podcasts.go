package db

import (
	"log"
	"podslice/internal/models"
)

func GetPodcastByID(id int64) (models.Podcast, error) {
	p := models.Podcast{}
	err := DB.Get(&p, "SELECT * FROM podcasts WHERE id = $1", id)
	return p, err
}

// GetPodcastByFeedUUID resolves a curated bundle from its public feed URL.
func GetPodcastByFeedUUID(feedUUID string) (models.Podcast, error) {
	p := models.Podcast{}
	err := DB.Get(&p, "SELECT * FROM podcasts WHERE feed_uuid = $1", feedUUID)
	return p, err
}

func GetAllPodcasts() ([]models.Podcast, error) {
	var podcasts []models.Podcast
	err := DB.Select(&podcasts, "SELECT * FROM podcasts ORDER BY name")
	if err != nil {
		log.Printf("Error getting podcasts: %v", err)
		return nil, err
	}
	return podcasts, nil
}
