package model

import "time"

// AudioStatus is the lifecycle status of an AudioRecord.
type AudioStatus string

const (
	StatusPending     AudioStatus = "pending"
	StatusTranscribed AudioStatus = "transcribed"
	StatusFlagged     AudioStatus = "flagged"
	StatusFailed      AudioStatus = "failed"
)

// ArchiveFormat is the content-magic classification of an inbound archive
// Detection never trusts the filename extension.
type ArchiveFormat string

const (
	ArchiveFormatPlainTar ArchiveFormat = "plain-tar"
	ArchiveFormatGzip     ArchiveFormat = "gzip"
	ArchiveFormatBzip2    ArchiveFormat = "bzip2"
	ArchiveFormatUnknown  ArchiveFormat = "unknown"
)

// Batch is the logical unit of ingestion identified by BatchID, a string of
// the form YYYYMMDD-HHMMSS-{6-hex} guaranteed unique per producer.
type Batch struct {
	ID            string
	S3Key         string
	Original      string
	TotalClips    int
	Processed     int
	TransferredAt time.Time
}

// LedgerKeys returns the three per-batch key names in the Queue & Counter
// Service that make up a BatchLedger.
func LedgerKeys(batchID string) (total, processed, s3Key string) {
	return "batch:" + batchID + ":total",
		"batch:" + batchID + ":processed",
		"batch:" + batchID + ":s3_key"
}

// AudioRecord is the persisted row for one clip.
type AudioRecord struct {
	ID               int64
	OriginalFilename string
	LocalOpusPath    string // transient, not persisted as a column beyond processing
	ObjectKey        string // populated after the GPU stage uploads the clip
	ArchiveSource    string // batch_id
	DurationSeconds  float64
	ByteSize         int64
	CreatedAt        time.Time
	ProcessedAt      time.Time
	Status           AudioStatus
}

// Transcript is one row per AudioRecord.
type Transcript struct {
	ID         int64
	AudioID    int64
	Text       string
	Language   string // ISO-639
	Confidence float64
}

// Classification is one row per AudioRecord. Presence means inference
// completed; its absence alongside status=failed means inference failed
// terminally.
type Classification struct {
	ID       int64
	AudioID  int64
	Flagged  bool
	Score    float64
	Category *string
}

// FlaggedItem is a row from the flagged-items view consumed by downstream
// review tooling.
type FlaggedItem struct {
	AudioID   int64
	Filename  string
	BatchID   string
	Score     float64
	Category  *string
	CreatedAt time.Time
}
