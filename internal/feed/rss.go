// Package feed renders podcast RSS for personal feeds and curated catalog
// bundles. Enclosure links are short-lived signed URLs so the audio bucket
// stays private.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/eduncan911/podcast"

	"podslice/internal/models"
	"podslice/internal/storage"
)

// URLSigner is the slice of the storage port the feed needs.
type URLSigner interface {
	Bucket() string
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// Generator renders RSS documents.
type Generator struct {
	signer  URLSigner
	baseURL string
}

func NewGenerator(signer URLSigner, baseURL string) *Generator {
	return &Generator{signer: signer, baseURL: baseURL}
}

// PersonalRSS renders a user's private feed of completed episodes.
func (g *Generator) PersonalRSS(ctx context.Context, user *models.User, episodes []models.Episode) (string, error) {
	title := fmt.Sprintf("%s's PODSLICE Feed", user.FirstName)
	link := fmt.Sprintf("%s/rss/%s", g.baseURL, user.FeedUUID)
	p := podcast.New(title, link, "Your personal feed of generated summary episodes.", &time.Time{}, &time.Time{})
	if err := g.addEpisodes(ctx, &p, episodes); err != nil {
		return "", err
	}
	return p.String(), nil
}

// CatalogRSS renders a curated bundle's public feed.
func (g *Generator) CatalogRSS(ctx context.Context, bundle *models.Podcast, episodes []models.Episode) (string, error) {
	link := fmt.Sprintf("%s/catalog/%s", g.baseURL, bundle.FeedUUID)
	p := podcast.New(bundle.Name, link, bundle.Description, &time.Time{}, &time.Time{})
	if err := g.addEpisodes(ctx, &p, episodes); err != nil {
		return "", err
	}
	return p.String(), nil
}

func (g *Generator) addEpisodes(ctx context.Context, p *podcast.Podcast, episodes []models.Episode) error {
	for i := range episodes {
		episode := episodes[i]
		if episode.AudioLocation == nil {
			continue
		}
		obj, ok := storage.ResolveObjectURL(*episode.AudioLocation)
		if !ok || obj.Bucket != g.signer.Bucket() {
			// Legacy locations in other buckets cannot be served from here.
			continue
		}
		enclosureURL, err := g.signer.SignedURL(ctx, obj.Path, storage.SignedURLTTL)
		if err != nil {
			return fmt.Errorf("failed to sign enclosure URL for episode %s: %w", episode.ID, err)
		}

		description := episode.Title
		if episode.Summary != nil && *episode.Summary != "" {
			description = *episode.Summary
		}
		pubDate := episode.CreatedAt
		item := podcast.Item{
			Title:       episode.Title,
			Description: description,
			PubDate:     &pubDate,
		}
		if episode.DurationSeconds != nil {
			item.IDuration = fmt.Sprintf("%d", *episode.DurationSeconds)
		}
		// The feed library has no WAV enclosure type; MP3 is the closest
		// audio type it offers and clients sniff the real container anyway.
		item.AddEnclosure(enclosureURL, podcast.MP3, 0)
		if _, err := p.AddItem(item); err != nil {
			return fmt.Errorf("failed to add episode %s to feed: %w", episode.ID, err)
		}
	}
	return nil
}
