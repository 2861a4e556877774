package worker

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"podslice/internal/db"
	"podslice/internal/models"
	"podslice/internal/storage"
	"podslice/internal/wav"
)

// catalogBackfillLimit caps how many catalog episodes a single backfill run
// touches. Personal episodes are never capped.
const catalogBackfillLimit = 50

// headerProbeBytes is the ranged-read size for the WAV fast path. The
// canonical header is 44 bytes; the extra slack is free on a range request.
const headerProbeBytes = 256

// downloadTimeout bounds the slow path of one extraction. A single oversized
// object must not stall the whole batch.
const downloadTimeout = 10 * time.Second

// metadataDurationKeys are the custom-metadata spellings that have been used
// for duration over the life of the system, checked in order.
var metadataDurationKeys = []string{"duration", "duration-seconds", "durationseconds", "audio-duration"}

// MetadataParser estimates playback duration from a full audio payload when
// neither the WAV header nor object metadata yields one.
type MetadataParser interface {
	EstimateDuration(data []byte) (float64, error)
}

// BitrateEstimator is the default MetadataParser: a constant-bitrate estimate
// good enough for compressed formats we did not produce ourselves.
type BitrateEstimator struct {
	// BitsPerSecond defaults to 128 kbit/s when zero.
	BitsPerSecond int
}

func (e BitrateEstimator) EstimateDuration(data []byte) (float64, error) {
	bps := e.BitsPerSecond
	if bps == 0 {
		bps = 128000
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("empty audio payload")
	}
	return float64(len(data)*8) / float64(bps), nil
}

// DurationExtractor derives playback durations for stored episode audio.
// Strategy order: WAV header probe via a ranged read, object metadata, then a
// bounded full download handed to the parser.
type DurationExtractor struct {
	store  storage.Store
	parser MetadataParser
}

func NewDurationExtractor(store storage.Store, parser MetadataParser) *DurationExtractor {
	if parser == nil {
		parser = BitrateEstimator{}
	}
	return &DurationExtractor{store: store, parser: parser}
}

// ExtractForLocation resolves a stored audio URL and extracts its duration in
// whole seconds.
func (e *DurationExtractor) ExtractForLocation(ctx context.Context, location string) (int, error) {
	obj, ok := storage.ResolveObjectURL(location)
	if !ok {
		return 0, fmt.Errorf("unrecognized audio location %q", location)
	}
	if obj.Bucket != e.store.Bucket() {
		return 0, fmt.Errorf("audio location %q points outside bucket %s", location, e.store.Bucket())
	}
	return e.extract(ctx, obj.Path)
}

func (e *DurationExtractor) extract(ctx context.Context, path string) (int, error) {
	// Fast path: our own output is always canonical WAV, so the header alone
	// carries the answer.
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		header, err := e.store.ReadRange(ctx, path, 0, headerProbeBytes-1)
		if err != nil {
			return 0, fmt.Errorf("failed to read header of %s: %w", path, err)
		}
		if seconds, ok := wav.HeaderDuration(header); ok {
			return int(seconds + 0.5), nil
		}
		// Mislabeled object, fall through to the generic paths.
	}

	meta, err := e.store.Metadata(ctx, path)
	if err == nil {
		for _, key := range metadataDurationKeys {
			if v, ok := meta[key]; ok {
				if seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && seconds > 0 {
					return int(seconds + 0.5), nil
				}
			}
		}
	} else {
		log.Printf("Metadata read failed for %s, falling back to download: %v", path, err)
	}

	dctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	data, err := e.store.Download(dctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", path, err)
	}
	if seconds, ok := wav.DurationSeconds(data); ok {
		return int(seconds + 0.5), nil
	}
	seconds, err := e.parser.EstimateDuration(data)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate duration of %s: %w", path, err)
	}
	return int(seconds + 0.5), nil
}

// HandleBackfillDurationsTask is the scheduled sweep that fills in missing
// duration_seconds on completed episodes. Personal episodes are processed
// exhaustively; catalog episodes in capped batches so successive runs chew
// through the backlog. Per-episode failures are tallied, never fatal.
func (h *TaskHandler) HandleBackfillDurationsTask(ctx context.Context, t *asynq.Task) error {
	if h.extractor == nil {
		return fmt.Errorf("duration extractor not configured")
	}

	personal, err := db.GetPersonalEpisodesMissingDuration()
	if err != nil {
		return fmt.Errorf("failed to list personal episodes: %w", err)
	}
	catalog, err := db.GetCatalogEpisodesMissingDuration(catalogBackfillLimit)
	if err != nil {
		return fmt.Errorf("failed to list catalog episodes: %w", err)
	}

	updated, failed := 0, 0
	for _, episode := range append(personal, catalog...) {
		ok, err := h.backfillEpisode(ctx, episode)
		if err != nil {
			log.Printf("Backfill failed for episode %s: %v", episode.ID, err)
			failed++
			continue
		}
		if ok {
			updated++
		}
	}

	log.Printf("Duration backfill done: %d updated, %d failed (%d personal, %d catalog)",
		updated, failed, len(personal), len(catalog))
	return nil
}

func (h *TaskHandler) backfillEpisode(ctx context.Context, episode models.Episode) (bool, error) {
	if episode.AudioLocation == nil {
		return false, fmt.Errorf("no audio location")
	}
	obj, ok := storage.ResolveObjectURL(*episode.AudioLocation)
	if !ok {
		// Old records carry URL shapes we cannot map to an object. Skip
		// quietly instead of failing the batch forever.
		log.Printf("Skipping episode %s: unrecognized audio location %q", episode.ID, *episode.AudioLocation)
		return false, nil
	}
	if obj.Bucket != h.extractor.store.Bucket() {
		// Same for locations in buckets we no longer have; the path would
		// read a same-named object in the wrong bucket.
		log.Printf("Skipping episode %s: audio location %q is outside bucket %s",
			episode.ID, *episode.AudioLocation, h.extractor.store.Bucket())
		return false, nil
	}
	seconds, err := h.extractor.extract(ctx, obj.Path)
	if err != nil {
		return false, err
	}
	if seconds <= 0 {
		return false, fmt.Errorf("extracted non-positive duration %d", seconds)
	}
	if err := db.SetEpisodeDuration(episode.ID, seconds); err != nil {
		return false, err
	}
	return true, nil
}
