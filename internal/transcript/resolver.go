package transcript

import (
	"context"
	"errors"
	"log"
)

// ErrNoTranscript is returned when every provider in every selected chain
// has been exhausted without a usable transcript.
var ErrNoTranscript = errors.New("no transcript available from any provider")

// maxHandoffs bounds NextURL re-dispatch so two misbehaving providers cannot
// bounce a request between each other forever.
const maxHandoffs = 3

// ChainFunc selects the ordered provider chain for a detected kind.
type ChainFunc func(Kind) []Provider

// DefaultChains wires the deployment's provider table: YouTube sources go
// through the video-transcription API and then client caption extraction;
// unknown sources get search-based discovery (whose handoffs re-enter the
// table); no podcast provider is wired.
func DefaultChains(video, captions, search Provider) ChainFunc {
	return func(kind Kind) []Provider {
		switch kind {
		case KindYouTube:
			chain := make([]Provider, 0, 2)
			if video != nil {
				chain = append(chain, video)
			}
			if captions != nil {
				chain = append(chain, captions)
			}
			return chain
		case KindUnknown:
			if search != nil {
				return []Provider{search}
			}
		}
		return nil
	}
}

// Resolver runs the provider chain protocol.
type Resolver struct {
	chains ChainFunc
}

func NewResolver(chains ChainFunc) *Resolver {
	return &Resolver{chains: chains}
}

// Result is the outcome of a resolution, successful or not. Attempts lists
// every provider call made, in order.
type Result struct {
	Transcript string
	Provider   string
	Attempts   []Attempt
}

// Resolve tries each provider for the request's kind in order. A provider
// error is recorded and the chain advances; a failure carrying NextURL
// re-detects the kind and restarts with the new chain. Returns ErrNoTranscript
// (with the accumulated attempts) when everything is exhausted.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	result := &Result{Attempts: []Attempt{}}

	for handoff := 0; handoff <= maxHandoffs; handoff++ {
		nextURL := ""
		for _, p := range r.chains(req.Kind) {
			if !p.CanHandle(req) {
				continue
			}

			resp, err := p.GetTranscript(ctx, req)
			if err != nil {
				log.Printf("transcript provider %s failed for %s: %v", p.Name(), req.URL, err)
				result.Attempts = append(result.Attempts, Attempt{Provider: p.Name(), Error: err.Error()})
				if resp != nil && resp.NextURL != "" {
					nextURL = resp.NextURL
					break
				}
				continue
			}
			if resp == nil || resp.Transcript == "" {
				result.Attempts = append(result.Attempts, Attempt{Provider: p.Name(), Error: "empty transcript"})
				continue
			}

			result.Attempts = append(result.Attempts, Attempt{Provider: p.Name(), Success: true})
			result.Transcript = resp.Transcript
			result.Provider = resp.Provider
			if result.Provider == "" {
				result.Provider = p.Name()
			}
			return result, nil
		}

		if nextURL == "" {
			break
		}
		req.URL = nextURL
		req.Kind = KindOf(nextURL)
		log.Printf("transcript resolution handed off to %s (kind %s)", req.URL, req.Kind)
	}

	return result, ErrNoTranscript
}
