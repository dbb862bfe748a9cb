package ports

import (
	"context"
	"time"

	"github.com/contentmod/audio-pipeline/domain/model"
)

// Queue is the FIFO half of the Queue & Counter Service contract.
type Queue interface {
	// ListPushRight appends a byte payload to a named FIFO.
	ListPushRight(ctx context.Context, queue string, payload []byte) error

	// ListBlockingPopLeft blocks until a payload is available on one of the
	// given queues or timeout elapses, in which case ok is false.
	ListBlockingPopLeft(ctx context.Context, queues []string, timeout time.Duration) (queue string, payload []byte, ok bool, err error)

	// QueueLength reports the current number of entries on queue. Used for
	// the failed-queue-depth operator signal, never on a job's hot path.
	QueueLength(ctx context.Context, queue string) (int64, error)
}

// Counter is the atomic-integer half of the Queue & Counter Service
// contract. Increment is atomic under concurrency — the one
// invariant the batch-completion design depends on.
type Counter interface {
	CounterSet(ctx context.Context, key string, n int64) error
	CounterGet(ctx context.Context, key string) (n int64, found bool, err error)
	CounterIncrement(ctx context.Context, key string) (newValue int64, err error)

	StringSet(ctx context.Context, key, value string) error
	StringGet(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// QueueCounter is the full Queue & Counter Service surface; production
// adapters (e.g. internal/queue.Store) implement both halves with one
// underlying connection.
type QueueCounter interface {
	Queue
	Counter
}

// BlobStore is the object-storage contract.
type BlobStore interface {
	// Put uploads localPath to key, using multipart upload transparently
	// for payloads at or above the configured threshold.
	Put(ctx context.Context, key, localPath string) error
	Get(ctx context.Context, key, localPath string) error
	Delete(ctx context.Context, key string) error
	// Head returns the object size, or found=false if it does not exist.
	Head(ctx context.Context, key string) (size int64, found bool, err error)
	ListBuckets(ctx context.Context) ([]string, error)
}

// RelationalStore is the persistence contract: transactional insert
// of audio records, transcripts, classifications, and status mutations.
type RelationalStore interface {
	// InsertAudioRecord inserts a new AudioRecord with status=pending and
	// returns the surrogate id.
	InsertAudioRecord(ctx context.Context, rec *model.AudioRecord) (id int64, err error)

	SetAudioStatus(ctx context.Context, audioID int64, status model.AudioStatus) error
	SetAudioObjectKey(ctx context.Context, audioID int64, objectKey string) error

	InsertTranscript(ctx context.Context, t *model.Transcript) (id int64, err error)
	InsertClassification(ctx context.Context, c *model.Classification) (id int64, err error)

	FlaggedItems(ctx context.Context, limit int) ([]model.FlaggedItem, error)
}

// ArchiveExtractor implements content-magic format
// detection and path-traversal-safe extraction.
type ArchiveExtractor interface {
	// Detect classifies archivePath by content magic, ignoring its name.
	Detect(archivePath string) (model.ArchiveFormat, error)

	// Extract decompresses (if needed) and untars archivePath into destDir.
	// Any entry that would escape destDir is rejected fatally.
	Extract(ctx context.Context, archivePath, destDir string, format model.ArchiveFormat) error
}

// TranscriptionResult is the typed output of Transcriber.Transcribe.
type TranscriptionResult struct {
	Text       string
	Language   string
	Confidence float64
}

// Transcriber is the black-box speech-to-text boundary, invoked as a
// typed function rather than embedding any model runtime here.
type Transcriber interface {
	Transcribe(ctx context.Context, opusPath string) (TranscriptionResult, error)
}

// ClassificationResult is the typed, validated output of Classifier.Classify.
type ClassificationResult struct {
	Flagged  bool
	Score    float64
	Category *string
}

// Classifier is the black-box content-classification boundary.
// Implementations must parse free-form model output defensively and never
// propagate raw output into SQL parameters.
type Classifier interface {
	Classify(ctx context.Context, text string) (ClassificationResult, error)
}
