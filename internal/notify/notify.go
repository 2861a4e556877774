// Package notify delivers episode lifecycle notifications: an in-app record
// and, preference permitting, a templated email. Delivery is best-effort by
// contract; the generation workflow never fails because a notification did.
package notify

import (
	"fmt"
	"log"

	"podslice/internal/db"
	"podslice/internal/models"
)

// Mailer sends one templated email. Implemented by SMTPMailer, mocked in
// tests.
type Mailer interface {
	Send(to, subject, body string) error
}

// Notifier fans a lifecycle event out to the user's enabled channels.
type Notifier struct {
	mailer  Mailer
	baseURL string
}

func NewNotifier(mailer Mailer, baseURL string) *Notifier {
	return &Notifier{mailer: mailer, baseURL: baseURL}
}

// EpisodeReady tells the owner their episode is playable.
func (n *Notifier) EpisodeReady(user *models.User, episode models.Episode) error {
	title := "Your episode is ready"
	episodeURL := fmt.Sprintf("%s/episodes/%s", n.baseURL, episode.ID)
	body := fmt.Sprintf("Hi %s, your episode %q is ready to play: %s", user.FirstName, episode.Title, episodeURL)
	return n.deliver(user, title, body)
}

// EpisodeFailed tells the owner generation did not complete. The copy is
// deliberately generic; internal error detail never reaches users.
func (n *Notifier) EpisodeFailed(user *models.User, episode models.Episode) error {
	title := "Episode generation failed"
	body := fmt.Sprintf("Hi %s, we hit a technical issue while generating %q. Please try again later.", user.FirstName, episode.Title)
	return n.deliver(user, title, body)
}

func (n *Notifier) deliver(user *models.User, title, body string) error {
	var firstErr error

	if user.NotifyInApp {
		if err := db.CreateNotification(user.ID, title, body); err != nil {
			log.Printf("Failed to create in-app notification for user %d: %v", user.ID, err)
			firstErr = err
		}
	}

	if user.NotifyEmail && n.mailer != nil && user.Email != "" {
		if err := n.mailer.Send(user.Email, title, body); err != nil {
			log.Printf("Failed to send notification email to user %d: %v", user.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
