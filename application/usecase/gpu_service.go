package usecase

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	"github.com/contentmod/audio-pipeline/internal/metrics"
	"github.com/contentmod/audio-pipeline/internal/scratch"
	"github.com/contentmod/audio-pipeline/pkg/logger"
)

// GPUConfig configures a GPUService.
type GPUConfig struct {
	Queue       ports.QueueCounter
	Blob        ports.BlobStore
	DB          ports.RelationalStore
	Transcriber ports.Transcriber
	Classifier  ports.Classifier
	ScratchRoot string

	// DeleteSourceArchive enables deleting archives/{batch_id}.tar from the
	// Blob Store on finalisation. Defaults to false (retain for reprocess),
	// per the source's own default.
	DeleteSourceArchive bool

	Logger *logger.Logger
}

// GPUService implements the per-item processing contract and batch
// finalisation owned by the GPU Worker.
type GPUService struct {
	queue       ports.QueueCounter
	blob        ports.BlobStore
	db          ports.RelationalStore
	transcriber ports.Transcriber
	classifier  ports.Classifier
	scratchRoot string
	deleteArc   bool
	log         *logger.Logger
}

// NewGPUService builds a GPUService.
func NewGPUService(cfg GPUConfig) *GPUService {
	log := cfg.Logger
	if log == nil {
		log, _ = logger.New(false)
	}
	return &GPUService{
		queue:       cfg.Queue,
		blob:        cfg.Blob,
		db:          cfg.DB,
		transcriber: cfg.Transcriber,
		classifier:  cfg.Classifier,
		scratchRoot: cfg.ScratchRoot,
		deleteArc:   cfg.DeleteSourceArchive,
		log:         log.Named("gpu-worker"),
	}
}

// ProcessItem runs the seven-step per-item algorithm for one TranscribeJob.
// Every item is independent: a failure at any step marks that item's
// AudioRecord failed and moves on, it never aborts siblings in the
// caller's micro-batch.
func (s *GPUService) ProcessItem(ctx context.Context, job model.TranscribeJob) error {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("gpu").Observe(time.Since(start).Seconds()) }()

	log := s.log.With(zap.String("batch_id", job.BatchID), zap.String("opus_path", job.OpusPath))

	totalKey, processedKey, s3KeyKey := model.LedgerKeys(job.BatchID)
	if _, found, err := s.queue.CounterGet(ctx, totalKey); err != nil {
		return err
	} else if !found {
		// Contract violation: the ledger should exist for every dequeued
		// transcribe job, since Unpack seeds it before fan-out. Treat this
		// item as an orphan: do not increment a counter that does not
		// exist, and do not attempt finalisation.
		log.Warn("missing ledger on dequeue, treating item as orphan")
		return s.orphan(ctx, job)
	}

	rec := &model.AudioRecord{
		OriginalFilename: job.OriginalFilename,
		ArchiveSource:    job.BatchID,
		Status:           model.StatusPending,
	}
	audioID, err := s.db.InsertAudioRecord(ctx, rec)
	if err != nil {
		return err
	}
	log = log.With(zap.Int64("audio_id", audioID))

	transcriptResult, err := s.transcriber.Transcribe(ctx, job.OpusPath)
	if err != nil {
		log.Warn("transcription failed", zap.Error(err))
		s.markFailed(ctx, audioID, "transcribe")
		return s.incrementAndMaybeFinalize(ctx, job.BatchID, totalKey, processedKey, s3KeyKey)
	}

	if _, err := s.db.InsertTranscript(ctx, &model.Transcript{
		AudioID:    audioID,
		Text:       transcriptResult.Text,
		Language:   transcriptResult.Language,
		Confidence: transcriptResult.Confidence,
	}); err != nil {
		log.Warn("transcript insert failed", zap.Error(err))
		s.markFailed(ctx, audioID, "persist")
		return s.incrementAndMaybeFinalize(ctx, job.BatchID, totalKey, processedKey, s3KeyKey)
	}

	classResult, err := s.classifier.Classify(ctx, transcriptResult.Text)
	if err != nil {
		log.Warn("classification failed after repair pass", zap.Error(err))
		s.markFailed(ctx, audioID, "classify")
		return s.incrementAndMaybeFinalize(ctx, job.BatchID, totalKey, processedKey, s3KeyKey)
	}

	if _, err := s.db.InsertClassification(ctx, &model.Classification{
		AudioID:  audioID,
		Flagged:  classResult.Flagged,
		Score:    classResult.Score,
		Category: classResult.Category,
	}); err != nil {
		return err
	}

	status := model.StatusTranscribed
	if classResult.Flagged {
		status = model.StatusFlagged
	}
	if err := s.db.SetAudioStatus(ctx, audioID, status); err != nil {
		return err
	}

	objectKey := fmt.Sprintf("processed/%s/%d.opus", time.Now().UTC().Format("2006-01-02"), audioID)
	if err := s.blob.Put(ctx, objectKey, job.OpusPath); err != nil {
		log.Warn("opus upload failed, lineage retained", zap.Error(err))
		s.markFailed(ctx, audioID, "upload")
	} else if err := s.db.SetAudioObjectKey(ctx, audioID, objectKey); err != nil {
		log.Warn("object key update failed", zap.Error(err))
		s.markFailed(ctx, audioID, "persist")
	}

	return s.incrementAndMaybeFinalize(ctx, job.BatchID, totalKey, processedKey, s3KeyKey)
}

// markFailed sets an audio record's status to failed and records the
// terminal-failure metric. It swallows its own persistence error after
// logging: the record's lineage already reflects everything that
// succeeded up to this point, and the counter must still be incremented
// per the batch-liveness invariant.
func (s *GPUService) markFailed(ctx context.Context, audioID int64, stage string) {
	metrics.RecordsFailed.WithLabelValues(stage).Inc()
	if err := s.db.SetAudioStatus(ctx, audioID, model.StatusFailed); err != nil {
		s.log.Error("failed to persist failed status", zap.Int64("audio_id", audioID), zap.Error(err))
	}
}

// orphan pushes a FailedJob entry tagged missing-ledger for an item whose
// batch ledger was not found on dequeue.
func (s *GPUService) orphan(ctx context.Context, job model.TranscribeJob) error {
	entry := model.FailedJob{
		OriginalJob: job,
		Error:       "missing-ledger:batch counters absent on dequeue",
		Worker:      "gpu",
		Timestamp:   time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("gpu: failed to marshal orphan entry: %w", err)
	}
	if err := s.queue.ListPushRight(ctx, "failed", payload); err != nil {
		return err
	}
	if depth, err := s.queue.QueueLength(ctx, "failed"); err == nil {
		metrics.FailedQueueDepth.Set(float64(depth))
	}
	return nil
}

// incrementAndMaybeFinalize performs step 7: atomically increment the
// processed counter, then check for batch completion. Atomicity of
// Increment guarantees exactly one caller across every concurrent GPU
// worker observes processed >= total and becomes the finaliser.
func (s *GPUService) incrementAndMaybeFinalize(ctx context.Context, batchID, totalKey, processedKey, s3KeyKey string) error {
	processed, err := s.queue.CounterIncrement(ctx, processedKey)
	if err != nil {
		return err
	}

	total, found, err := s.queue.CounterGet(ctx, totalKey)
	if err != nil {
		return err
	}
	if !found {
		// total was deleted out from under us: another worker already
		// finalised. Nothing left for this one to do.
		return nil
	}

	if processed > total {
		s.log.Warn("processed exceeded total, possible duplicate delivery",
			zap.String("batch_id", batchID), zap.Int64("processed", processed), zap.Int64("total", total))
	}

	if processed >= total {
		return s.Finalize(ctx, batchID, totalKey, processedKey, s3KeyKey)
	}
	return nil
}

// Finalize performs the one-time cleanup that ends a batch's lifetime:
// scratch removal and ledger deletion, idempotently. It is safe to call
// more than once for the same batch_id (e.g. across a crash/restart);
// the second call finds nothing left to remove.
func (s *GPUService) Finalize(ctx context.Context, batchID, totalKey, processedKey, s3KeyKey string) error {
	var errs error

	if err := scratch.Remove(s.scratchRoot, batchID); err != nil {
		errs = multierr.Append(errs, err)
	}

	s3Key, found, err := s.queue.StringGet(ctx, s3KeyKey)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	if err := s.queue.Delete(ctx, totalKey, processedKey, s3KeyKey); err != nil {
		errs = multierr.Append(errs, err)
	}

	if s.deleteArc && found && s3Key != "" {
		if err := s.blob.Delete(ctx, s3Key); err != nil {
			s.log.Warn("failed to delete source archive after finalisation", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	metrics.BatchesFinalized.Inc()
	s.log.Info("batch finalized", zap.String("batch_id", batchID))
	return errs
}
