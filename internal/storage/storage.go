// Package storage provides the blob-storage port used by the episode
// pipeline: upload of stitched audio, ranged header probes and metadata reads
// for the duration backfill, and short-lived signed URLs for feed clients.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SignedURLTTL is how long a feed enclosure link stays valid.
const SignedURLTTL = 15 * time.Minute

// Store is the object-storage port.
type Store interface {
	// Bucket names the bucket this store reads and writes. Resolved object
	// URLs pointing anywhere else must not be read through it.
	Bucket() string

	// Upload writes data under path and returns the internal object URI.
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// Download returns the full object body.
	Download(ctx context.Context, path string) ([]byte, error)

	// ReadRange returns object bytes [start, end] inclusive.
	ReadRange(ctx context.Context, path string, start, end int64) ([]byte, error)

	// Metadata returns the object's custom metadata key/value pairs.
	Metadata(ctx context.Context, path string) (map[string]string, error)

	// SignedURL returns a time-limited HTTPS GET URL for client consumption.
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// Object names a stored blob.
type Object struct {
	Bucket string
	Path   string
}

// ResolveObjectURL maps the storage URL shapes that have accumulated in
// episode records onto a bucket/path pair: s3:// and legacy gs:// schemes
// plus the common HTTPS gateway forms. Unrecognized shapes return ok=false
// and are skipped by callers, not treated as errors.
func ResolveObjectURL(rawURL string) (Object, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Object{}, false
	}
	path := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "s3", "gs":
		if u.Host == "" || path == "" {
			return Object{}, false
		}
		return Object{Bucket: u.Host, Path: path}, true
	case "https":
	default:
		return Object{}, false
	}

	host := strings.ToLower(u.Host)
	switch {
	case host == "storage.googleapis.com" || host == "storage.cloud.google.com":
		// https://storage.googleapis.com/<bucket>/<path>
		bucket, rest, found := strings.Cut(path, "/")
		if !found || rest == "" {
			return Object{}, false
		}
		return Object{Bucket: bucket, Path: rest}, true
	case strings.HasPrefix(host, "s3.") && strings.HasSuffix(host, ".amazonaws.com"):
		// https://s3.<region>.amazonaws.com/<bucket>/<path>
		bucket, rest, found := strings.Cut(path, "/")
		if !found || rest == "" {
			return Object{}, false
		}
		return Object{Bucket: bucket, Path: rest}, true
	case strings.Contains(host, ".s3.") && strings.HasSuffix(host, ".amazonaws.com"):
		// https://<bucket>.s3.<region>.amazonaws.com/<path>
		bucket := host[:strings.Index(host, ".s3.")]
		if bucket == "" || path == "" {
			return Object{}, false
		}
		return Object{Bucket: bucket, Path: path}, true
	}
	return Object{}, false
}

// ObjectURI renders the internal URI for a bucket/path pair.
func ObjectURI(bucket, path string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, path)
}
