package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"podslice/internal/chunker"
)

const providerTimeout = 60 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: providerTimeout}
}

// VideoIDFromURL extracts the YouTube video id from watch, share and shorts
// URL shapes. Returns "" for anything else.
func VideoIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch {
	case host == "youtu.be":
		return strings.Trim(u.Path, "/")
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if id := u.Query().Get("v"); id != "" {
			return id
		}
		for _, prefix := range []string{"/shorts/", "/live/", "/embed/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if i := strings.Index(rest, "/"); i >= 0 {
					rest = rest[:i]
				}
				return rest
			}
		}
	}
	return ""
}

// WindowOverlapSeconds is how far each windowed transcription request reaches
// back across the previous window boundary, so words straddling a cut are not
// lost.
const WindowOverlapSeconds = 5

// VideoAPIProvider calls an external video-transcription HTTP API. The API
// is an undocumented internal capability and can disappear without notice,
// which is why it sits behind the chain protocol. Sources longer than
// MaxWindowSeconds are fetched window by window and re-joined.
type VideoAPIProvider struct {
	BaseURL          string
	APIKey           string
	MaxWindowSeconds int
	Client           *http.Client
}

func NewVideoAPIProvider(baseURL, apiKey string) *VideoAPIProvider {
	return &VideoAPIProvider{
		BaseURL:          baseURL,
		APIKey:           apiKey,
		MaxWindowSeconds: chunker.DefaultMaxWindowSeconds,
		Client:           newHTTPClient(),
	}
}

func (p *VideoAPIProvider) Name() string { return "video-api" }

func (p *VideoAPIProvider) CanHandle(req Request) bool {
	return p.BaseURL != "" && p.APIKey != "" && req.Kind == KindYouTube
}

type videoAPIResponse struct {
	Transcript      string `json:"transcript"`
	Error           string `json:"error"`
	AlternateURL    string `json:"alternateUrl"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (p *VideoAPIProvider) GetTranscript(ctx context.Context, req Request) (*Response, error) {
	parsed, status, err := p.fetch(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusOK && parsed.Transcript != "" {
		return &Response{Transcript: parsed.Transcript, Provider: p.Name()}, nil
	}

	// The API refuses to transcribe very long sources in one shot but tells
	// us the source duration; split the timeline and fetch per window.
	if parsed.DurationSeconds > p.maxWindow() {
		return p.fetchWindowed(ctx, req, parsed.DurationSeconds)
	}

	msg := parsed.Error
	if msg == "" {
		msg = fmt.Sprintf("status %d with no transcript", status)
	}
	// An alternate URL lets the orchestrator re-dispatch, e.g. to the
	// audio-only mirror of the same content.
	return &Response{Provider: p.Name(), NextURL: parsed.AlternateURL}, fmt.Errorf("video transcription api: %s", msg)
}

func (p *VideoAPIProvider) maxWindow() int {
	if p.MaxWindowSeconds > 0 {
		return p.MaxWindowSeconds
	}
	return chunker.DefaultMaxWindowSeconds
}

// fetchWindowed pulls one transcript slice per time window. Every window
// after the first starts WindowOverlapSeconds early so a sentence cut at the
// boundary appears in full in the later window.
func (p *VideoAPIProvider) fetchWindowed(ctx context.Context, req Request, totalSeconds int) (*Response, error) {
	windows := chunker.TimeWindows(totalSeconds, p.maxWindow())

	var sb strings.Builder
	for _, w := range windows {
		start, dur := w.Start, w.Seconds
		if w.Index > 0 {
			start -= WindowOverlapSeconds
			dur += WindowOverlapSeconds
		}

		parsed, status, err := p.fetch(ctx, req, &window{Start: start, Duration: dur})
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", w.Index, err)
		}
		if status != http.StatusOK || parsed.Transcript == "" {
			msg := parsed.Error
			if msg == "" {
				msg = fmt.Sprintf("status %d with no transcript", status)
			}
			return nil, fmt.Errorf("video transcription api window %d: %s", w.Index, msg)
		}

		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(parsed.Transcript))
	}

	return &Response{Transcript: sb.String(), Provider: p.Name()}, nil
}

type window struct {
	Start    int
	Duration int
}

func (p *VideoAPIProvider) fetch(ctx context.Context, req Request, win *window) (*videoAPIResponse, int, error) {
	payload := map[string]any{"url": req.URL, "lang": req.Language}
	if win != nil {
		payload["start"] = win.Start
		payload["duration"] = win.Duration
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/transcript", strings.NewReader(string(body)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call video transcription api: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed videoAPIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return &parsed, resp.StatusCode, nil
}

// CaptionProvider pulls published caption tracks straight from YouTube's
// timedtext endpoint. Only works when the video has captions, but costs
// nothing and needs no key.
type CaptionProvider struct {
	Client *http.Client
}

func NewCaptionProvider() *CaptionProvider {
	return &CaptionProvider{Client: newHTTPClient()}
}

func (p *CaptionProvider) Name() string { return "client-captions" }

func (p *CaptionProvider) CanHandle(req Request) bool {
	return req.Kind == KindYouTube && VideoIDFromURL(req.URL) != ""
}

type timedTextDoc struct {
	Texts []struct {
		Body string `xml:",chardata"`
	} `xml:"text"`
}

func (p *CaptionProvider) GetTranscript(ctx context.Context, req Request) (*Response, error) {
	videoID := VideoIDFromURL(req.URL)
	lang := req.Language
	if lang == "" {
		lang = "en"
	}

	endpoint := fmt.Sprintf("https://video.google.com/timedtext?lang=%s&v=%s", url.QueryEscape(lang), url.QueryEscape(videoID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("caption endpoint returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	var doc timedTextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse caption xml: %w", err)
	}

	var sb strings.Builder
	for _, t := range doc.Texts {
		line := strings.TrimSpace(html.UnescapeString(t.Body))
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("no caption track for video %s", videoID)
	}

	return &Response{Transcript: sb.String(), Provider: p.Name()}, nil
}

// SearchProvider never returns a transcript itself. It asks a search API for
// a better-known URL serving the same content (typically a podcast RSS
// enclosure) and hands resolution off to it.
type SearchProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewSearchProvider(baseURL, apiKey string) *SearchProvider {
	return &SearchProvider{BaseURL: baseURL, APIKey: apiKey, Client: newHTTPClient()}
}

func (p *SearchProvider) Name() string { return "search-discovery" }

func (p *SearchProvider) CanHandle(req Request) bool {
	return p.BaseURL != "" && req.Kind == KindUnknown
}

func (p *SearchProvider) GetTranscript(ctx context.Context, req Request) (*Response, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s", p.BaseURL, url.QueryEscape(req.URL))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if p.APIKey != "" {
		httpReq.Header.Set("x-api-key", p.APIKey)
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call search api: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		ResultURL string `json:"resultUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	if parsed.ResultURL == "" {
		return nil, fmt.Errorf("search found no alternate source for %s", req.URL)
	}

	return &Response{Provider: p.Name(), NextURL: parsed.ResultURL}, fmt.Errorf("handing off to discovered url")
}
