// Package storage stages split HL7 messages in object storage. Destination
// keys are deterministic functions of the message header and its position in
// the source log, so concurrent splits of different files cannot collide and
// re-running a split overwrites identical content instead of duplicating it.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the staging contract used by the split and transform
// activities.
type ObjectStore interface {
	// Put writes an object and returns its full s3:// URL. An empty bucket
	// selects the store's configured bucket and prefix; a job that overrides
	// its output location passes the bucket explicitly.
	Put(ctx context.Context, bucket, key string, body io.Reader) (string, error)

	// Get opens the object addressed by a full s3:// URL, which may point at a
	// bucket other than the store's default.
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}
