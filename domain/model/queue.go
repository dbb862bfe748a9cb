package model

import "time"

// UnpackJob is the payload popped from the `unpack` queue.
type UnpackJob struct {
	BatchID          string    `json:"batch_id"`
	S3Key            string    `json:"s3_key"`
	OriginalFilename string    `json:"original_filename"`
	TransferredAt    time.Time `json:"transferred_at"`
}

// TranscribeJob is the payload popped from the `transcribe` queue. The
// opus path is a host-local filesystem path: the GPU worker that dequeues
// it must be co-located with the Unpack worker that produced it.
type TranscribeJob struct {
	BatchID          string `json:"batch_id"`
	OpusPath         string `json:"opus_path"`
	OriginalFilename string `json:"original_filename"`
}

// FailedJob is the payload pushed to the `failed` queue on fatal or
// per-item failure.
type FailedJob struct {
	OriginalJob interface{} `json:"original_job"`
	Error       string      `json:"error"`
	Worker      string      `json:"worker"` // "unpack" | "gpu"
	Timestamp   time.Time   `json:"timestamp"`
}
