package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podslice/internal/models"
)

type fakeSigner struct {
	signedPaths []string
}

func (f *fakeSigner) Bucket() string { return "audio-bucket" }

func (f *fakeSigner) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	f.signedPaths = append(f.signedPaths, path)
	return "https://signed.example/" + path, nil
}

func TestPersonalRSS(t *testing.T) {
	signer := &fakeSigner{}
	g := NewGenerator(signer, "https://podslice.example")

	user := &models.User{FirstName: "Alice", FeedUUID: "feed-uuid"}
	location := "s3://audio-bucket/episodes/e1/1.wav"
	duration := 330
	summary := "What the conversation covered."
	episodes := []models.Episode{{
		ID:              "e1",
		Title:           "First Episode",
		Summary:         &summary,
		AudioLocation:   &location,
		DurationSeconds: &duration,
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	rss, err := g.PersonalRSS(context.Background(), user, episodes)
	require.NoError(t, err)

	assert.Contains(t, rss, "Alice's PODSLICE Feed")
	assert.Contains(t, rss, "First Episode")
	assert.Contains(t, rss, "https://signed.example/episodes/e1/1.wav")
	assert.Equal(t, []string{"episodes/e1/1.wav"}, signer.signedPaths)
}

func TestPersonalRSSSkipsEpisodesWithoutAudio(t *testing.T) {
	signer := &fakeSigner{}
	g := NewGenerator(signer, "https://podslice.example")

	user := &models.User{FirstName: "Alice", FeedUUID: "feed-uuid"}
	episodes := []models.Episode{{ID: "e2", Title: "No Audio Yet"}}

	rss, err := g.PersonalRSS(context.Background(), user, episodes)
	require.NoError(t, err)

	assert.NotContains(t, rss, "No Audio Yet")
	assert.Empty(t, signer.signedPaths)
}

func TestPersonalRSSSkipsForeignBucketAudio(t *testing.T) {
	signer := &fakeSigner{}
	g := NewGenerator(signer, "https://podslice.example")

	user := &models.User{FirstName: "Alice", FeedUUID: "feed-uuid"}
	location := "gs://other-bucket/episodes/e4/1.wav"
	episodes := []models.Episode{{ID: "e4", Title: "Migrated Elsewhere", AudioLocation: &location}}

	rss, err := g.PersonalRSS(context.Background(), user, episodes)
	require.NoError(t, err)

	assert.NotContains(t, rss, "Migrated Elsewhere")
	assert.Empty(t, signer.signedPaths)
}

func TestCatalogRSS(t *testing.T) {
	signer := &fakeSigner{}
	g := NewGenerator(signer, "https://podslice.example")

	bundle := &models.Podcast{ID: 1, Name: "Tech This Week", Description: "Weekly tech digests.", FeedUUID: "cat-uuid"}
	location := "s3://audio-bucket/episodes/e3/1.wav"
	episodes := []models.Episode{{
		ID:            "e3",
		Title:         "Model Releases Roundup",
		AudioLocation: &location,
		CreatedAt:     time.Now(),
	}}

	rss, err := g.CatalogRSS(context.Background(), bundle, episodes)
	require.NoError(t, err)

	assert.Contains(t, rss, "Tech This Week")
	assert.Contains(t, rss, "Model Releases Roundup")
	assert.Contains(t, rss, "https://signed.example/episodes/e3/1.wav")
}
