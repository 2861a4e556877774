package db

import "podslice/internal/models"

func CreateNotification(userID int64, title, body string) error {
	_, err := DB.Exec(`
		INSERT INTO notifications (user_id, title, body)
		VALUES ($1, $2, $3)`,
		userID, title, body)
	return err
}

func GetNotificationsByUserID(userID int64) ([]models.Notification, error) {
	var notifications []models.Notification
	err := DB.Select(&notifications, `
		SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	return notifications, err
}
