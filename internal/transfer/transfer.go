// Package transfer implements the producer-side shim that puts an archive
// into the Blob Store and announces it on the unpack queue. The secure-copy
// step that acquires the archive from the upstream host is an external
// collaborator: this package only defines its contract and drives the
// handoff that follows it.
package transfer

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	pkgerrors "github.com/contentmod/audio-pipeline/pkg/errors"
	"github.com/contentmod/audio-pipeline/pkg/logger"
)

// SecureCopier is the external collaborator that stages the upstream
// archive onto local disk before it is uploaded to the Blob Store. Its
// internals (SSH transport, host credentials) are out of scope for this
// module; production deployments supply a concrete implementation.
type SecureCopier interface {
	// Fetch stages the remote archive at remotePath onto localPath.
	Fetch(ctx context.Context, remotePath, localPath string) error
}

// Service drives the Transfer stage: stage the archive locally, upload it
// to the Blob Store under its batch_id key, and push exactly one UnpackJob.
type Service struct {
	copier SecureCopier
	blob   ports.BlobStore
	queue  ports.Queue
	log    *logger.Logger
}

// NewService builds a transfer Service.
func NewService(copier SecureCopier, blob ports.BlobStore, queue ports.Queue, log *logger.Logger) *Service {
	if log == nil {
		log, _ = logger.New(false)
	}
	return &Service{copier: copier, blob: blob, queue: queue, log: log.Named("transfer")}
}

// NewBatchID mints a batch_id of the form YYYYMMDD-HHMMSS-{6-hex}, unique
// per producer. now is injected so callers (and tests) control the
// timestamp component.
func NewBatchID(now time.Time) string {
	suffix := uuid.New().String()
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), suffix[:6])
}

// Ingest stages remotePath locally via the SecureCopier, uploads it to the
// Blob Store at archives/{batch_id}.tar, and pushes the corresponding
// UnpackJob. It is fire-and-forget from the producer's view: once the
// push succeeds, this call's job is done.
func (s *Service) Ingest(ctx context.Context, remotePath, originalFilename, localStagingPath string) (string, error) {
	batchID := NewBatchID(time.Now())
	s3Key := fmt.Sprintf("archives/%s.tar", batchID)

	if err := s.copier.Fetch(ctx, remotePath, localStagingPath); err != nil {
		return "", pkgerrors.NewQueueError("fetch", fmt.Sprintf("failed to stage archive for batch %s", batchID), err)
	}

	if err := s.blob.Put(ctx, s3Key, localStagingPath); err != nil {
		return "", err
	}

	job := model.UnpackJob{
		BatchID:          batchID,
		S3Key:            s3Key,
		OriginalFilename: originalFilename,
		TransferredAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("transfer: failed to marshal unpack job: %w", err)
	}

	if err := s.queue.ListPushRight(ctx, "unpack", payload); err != nil {
		return "", err
	}

	s.log.Info("batch transferred", zap.String("batch_id", batchID), zap.String("s3_key", s3Key))
	return batchID, nil
}
