package db

import (
	"log"
	"podslice/internal/models"
)

// GetUserByAPIToken looks up the user owning a bearer token.
func GetUserByAPIToken(token string) (*models.User, error) {
	user := &models.User{}
	err := DB.Get(user, "SELECT * FROM users WHERE api_token = $1", token)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func GetUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	err := DB.Get(user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByFeedUUID resolves the owner of a personal feed URL.
func GetUserByFeedUUID(feedUUID string) (*models.User, error) {
	user := &models.User{}
	err := DB.Get(user, "SELECT * FROM users WHERE feed_uuid = $1", feedUUID)
	if err != nil {
		log.Printf("Error getting user by feed uuid: %v", err)
		return nil, err
	}
	return user, nil
}
