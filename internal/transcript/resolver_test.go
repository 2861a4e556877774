package transcript

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	handles func(Request) bool
	resp    *Response
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CanHandle(req Request) bool {
	if f.handles == nil {
		return true
	}
	return f.handles(req)
}

func (f *fakeProvider) GetTranscript(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	return f.resp, f.err
}

func TestKindOf(t *testing.T) {
	cases := map[string]Kind{
		"https://www.youtube.com/watch?v=abc123":      KindYouTube,
		"https://youtu.be/abc123":                     KindYouTube,
		"https://m.youtube.com/watch?v=abc123":        KindYouTube,
		"https://anchor.fm/show/episodes/1":           KindPodcast,
		"https://podcasts.apple.com/us/podcast/x":     KindPodcast,
		"https://example.com/shows/feed":              KindPodcast,
		"https://example.com/show.rss":                KindPodcast,
		"https://open.spotify.com/episode/xyz":        KindPodcast,
		"https://example.com/article":                 KindUnknown,
		"not a url":                                   KindUnknown,
	}
	for rawURL, want := range cases {
		assert.Equal(t, want, KindOf(rawURL), rawURL)
	}
}

func TestVideoIDFromURL(t *testing.T) {
	assert.Equal(t, "abc123", VideoIDFromURL("https://www.youtube.com/watch?v=abc123"))
	assert.Equal(t, "abc123", VideoIDFromURL("https://youtu.be/abc123"))
	assert.Equal(t, "abc123", VideoIDFromURL("https://youtube.com/shorts/abc123"))
	assert.Equal(t, "", VideoIDFromURL("https://example.com/watch?v=abc123"))
}

func TestResolveFirstProviderWins(t *testing.T) {
	a := &fakeProvider{name: "a", resp: &Response{Transcript: "hello", Provider: "a"}}
	b := &fakeProvider{name: "b"}
	r := NewResolver(func(Kind) []Provider { return []Provider{a, b} })

	result, err := r.Resolve(context.Background(), Request{URL: "https://youtu.be/x", Kind: KindYouTube})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Transcript)
	assert.Equal(t, "a", result.Provider)
	require.Len(t, result.Attempts, 1)
	assert.True(t, result.Attempts[0].Success)
	assert.Equal(t, 0, b.calls)
}

func TestResolveAdvancesPastFailure(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("api down")}
	b := &fakeProvider{name: "b", resp: &Response{Transcript: "from b"}}
	r := NewResolver(func(Kind) []Provider { return []Provider{a, b} })

	result, err := r.Resolve(context.Background(), Request{Kind: KindYouTube})
	require.NoError(t, err)
	assert.Equal(t, "from b", result.Transcript)
	assert.Equal(t, "b", result.Provider)
	require.Len(t, result.Attempts, 2)
	assert.False(t, result.Attempts[0].Success)
	assert.Equal(t, "api down", result.Attempts[0].Error)
	assert.True(t, result.Attempts[1].Success)
}

func TestResolveHandoffSwitchesChain(t *testing.T) {
	handoffURL := "https://feeds.example.com/show.rss"
	a := &fakeProvider{
		name: "a",
		err:  errors.New("video api gave up"),
		resp: &Response{Provider: "a", NextURL: handoffURL},
	}
	b := &fakeProvider{name: "b", resp: &Response{Transcript: "via rss", Provider: "b"}}

	r := NewResolver(func(kind Kind) []Provider {
		switch kind {
		case KindYouTube:
			return []Provider{a}
		case KindPodcast:
			return []Provider{b}
		}
		return nil
	})

	result, err := r.Resolve(context.Background(), Request{URL: "https://youtu.be/x", Kind: KindYouTube})
	require.NoError(t, err)
	assert.Equal(t, "via rss", result.Transcript)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "a", result.Attempts[0].Provider)
	assert.False(t, result.Attempts[0].Success)
	assert.Equal(t, "b", result.Attempts[1].Provider)
	assert.True(t, result.Attempts[1].Success)
}

func TestResolveEmptyChain(t *testing.T) {
	r := NewResolver(DefaultChains(nil, nil, nil))

	result, err := r.Resolve(context.Background(), Request{URL: "https://anchor.fm/show", Kind: KindPodcast})
	require.ErrorIs(t, err, ErrNoTranscript)
	assert.Empty(t, result.Attempts)
}

func TestResolveExhaustion(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	b := &fakeProvider{name: "b", err: errors.New("also down")}
	r := NewResolver(func(Kind) []Provider { return []Provider{a, b} })

	result, err := r.Resolve(context.Background(), Request{Kind: KindYouTube})
	require.ErrorIs(t, err, ErrNoTranscript)
	assert.Len(t, result.Attempts, 2)
}

func TestResolveSkipsDecliningProvider(t *testing.T) {
	a := &fakeProvider{name: "a", handles: func(Request) bool { return false }}
	b := &fakeProvider{name: "b", resp: &Response{Transcript: "ok"}}
	r := NewResolver(func(Kind) []Provider { return []Provider{a, b} })

	result, err := r.Resolve(context.Background(), Request{Kind: KindYouTube})
	require.NoError(t, err)
	assert.Equal(t, 0, a.calls)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, "b", result.Attempts[0].Provider)
}

func TestResolveHandoffLoopBounded(t *testing.T) {
	// A provider that always hands off to itself must terminate.
	loop := &fakeProvider{name: "loop", err: errors.New("again"), resp: &Response{NextURL: "https://example.com/unknown"}}
	r := NewResolver(func(Kind) []Provider { return []Provider{loop} })

	_, err := r.Resolve(context.Background(), Request{URL: "https://example.com/unknown", Kind: KindUnknown})
	require.ErrorIs(t, err, ErrNoTranscript)
	assert.LessOrEqual(t, loop.calls, maxHandoffs+1)
}
