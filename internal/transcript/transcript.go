// Package transcript resolves a usable transcript for a source URL by trying
// an ordered chain of providers, each wrapping an unstable external
// capability. A failing provider may hand resolution off to a different URL,
// which re-selects the chain.
package transcript

import (
	"context"
	"net/url"
	"strings"
)

// Kind classifies a source URL.
type Kind string

const (
	KindYouTube Kind = "youtube"
	KindPodcast Kind = "podcast"
	KindUnknown Kind = "unknown"
)

var podcastHosts = []string{"anchor.fm", "spotify.com", "apple.com", "podcasts.apple.com"}

// KindOf detects the source kind from the URL's host and path.
func KindOf(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return KindUnknown
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))

	if host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") {
		return KindYouTube
	}

	lowerPath := strings.ToLower(u.Path)
	if strings.HasSuffix(lowerPath, ".rss") ||
		strings.Contains(lowerPath, "/rss") ||
		strings.Contains(lowerPath, "/feed") ||
		strings.Contains(host, "rss") ||
		strings.Contains(host, "podcast") {
		return KindPodcast
	}
	for _, h := range podcastHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return KindPodcast
		}
	}
	return KindUnknown
}

// Request is the unit of work passed to each provider.
type Request struct {
	URL               string
	Kind              Kind
	Language          string
	AllowPaidFallback bool
}

// Response is a provider's answer. On failure NextURL may name a different
// URL the orchestrator should re-dispatch with.
type Response struct {
	Transcript string
	Provider   string
	NextURL    string
}

// Provider wraps one transcript source.
type Provider interface {
	Name() string
	CanHandle(req Request) bool
	GetTranscript(ctx context.Context, req Request) (*Response, error)
}

// Attempt records one provider call for observability.
type Attempt struct {
	Provider string `json:"provider"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}
