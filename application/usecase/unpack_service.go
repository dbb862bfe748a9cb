// Package usecase holds the per-job business logic for both worker roles.
// It is deliberately free of any queue-consumption loop: application/pipeline
// wraps these services with the blocking-pop loop and graceful shutdown.
package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	"github.com/contentmod/audio-pipeline/internal/metrics"
	"github.com/contentmod/audio-pipeline/internal/scratch"
	"github.com/contentmod/audio-pipeline/internal/transcode"
	pkgerrors "github.com/contentmod/audio-pipeline/pkg/errors"
	"github.com/contentmod/audio-pipeline/pkg/logger"
	"github.com/contentmod/audio-pipeline/pkg/retry"
)

// UnpackService implements the algorithm in the batch-lifecycle contract's
// Unpack stage: download, detect, extract, transcode fan-out, seed the
// ledger, and hand clips off to the transcribe queue.
type UnpackService struct {
	queue       ports.QueueCounter
	blob        ports.BlobStore
	extractor   ports.ArchiveExtractor
	transcode   *transcode.Service
	scratchRoot string
	extensions  []string
	log         *logger.Logger
}

// UnpackConfig configures an UnpackService.
type UnpackConfig struct {
	Queue       ports.QueueCounter
	Blob        ports.BlobStore
	Extractor   ports.ArchiveExtractor
	Transcode   *transcode.Service
	ScratchRoot string
	Extensions  []string // e.g. [".mp3"], from AUDIO_EXTENSIONS
	Logger      *logger.Logger
}

// NewUnpackService builds an UnpackService.
func NewUnpackService(cfg UnpackConfig) *UnpackService {
	log := cfg.Logger
	if log == nil {
		log, _ = logger.New(false)
	}
	return &UnpackService{
		queue:       cfg.Queue,
		blob:        cfg.Blob,
		extractor:   cfg.Extractor,
		transcode:   cfg.Transcode,
		scratchRoot: cfg.ScratchRoot,
		extensions:  cfg.Extensions,
		log:         log.Named("unpack-worker"),
	}
}

// ProcessJob runs the full Unpack algorithm for one UnpackJob. On fatal
// failure it cleans scratch and pushes a FailedJob to the `failed` queue;
// it never returns an error for a condition the caller still has to act on
// beyond logging, since the failure has already been routed.
func (s *UnpackService) ProcessJob(ctx context.Context, job model.UnpackJob) error {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("unpack").Observe(time.Since(start).Seconds()) }()

	log := s.log.With(zap.String("batch_id", job.BatchID))

	dir, err := scratch.New(s.scratchRoot, job.BatchID)
	if err != nil {
		return s.fail(ctx, job, "scratch-alloc-failed", err)
	}

	archivePath := dir.Join("archive.tar")
	if err := s.download(ctx, job.S3Key, archivePath); err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, "download-failed", err)
	}

	format, err := s.extractor.Detect(archivePath)
	if err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, "detect-failed", err)
	}
	if format == model.ArchiveFormatUnknown {
		_ = dir.Remove()
		return s.fail(ctx, job, "unknown-archive-format", fmt.Errorf("archive magic did not match tar, gzip, or bzip2"))
	}

	log.Info("extracting archive", zap.String("format", string(format)))
	if err := s.extractor.Extract(ctx, archivePath, dir.Path(), format); err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, archiveFailureTag(err), err)
	}

	clips, err := enumerateAudioFiles(dir.Path(), s.extensions)
	if err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, "enumerate-failed", err)
	}

	jobs := make([]transcode.ClipJob, 0, len(clips))
	for _, c := range clips {
		jobs = append(jobs, transcode.ClipJob{
			Stem:       c.stem,
			SourcePath: c.path,
			OutputPath: dir.Join(c.stem + ".opus"),
		})
	}

	results := s.transcode.ConvertMany(ctx, jobs)
	if len(results) == 0 {
		_ = dir.Remove()
		return s.fail(ctx, job, "empty-batch", fmt.Errorf("archive produced zero transcoded clips"))
	}

	totalKey, processedKey, s3Key := model.LedgerKeys(job.BatchID)
	if err := s.queue.CounterSet(ctx, totalKey, int64(len(results))); err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, "ledger-seed-failed", err)
	}
	if err := s.queue.CounterSet(ctx, processedKey, 0); err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, "ledger-seed-failed", err)
	}
	if err := s.queue.StringSet(ctx, s3Key, job.S3Key); err != nil {
		_ = dir.Remove()
		return s.fail(ctx, job, "ledger-seed-failed", err)
	}

	for _, r := range results {
		tj := model.TranscribeJob{
			BatchID:          job.BatchID,
			OpusPath:         r.OutputPath,
			OriginalFilename: job.OriginalFilename,
		}
		payload, err := json.Marshal(tj)
		if err != nil {
			log.Error("failed to marshal transcribe job, clip dropped", zap.String("stem", r.Stem), zap.Error(err))
			continue
		}
		if err := s.queue.ListPushRight(ctx, "transcribe", payload); err != nil {
			log.Error("failed to enqueue transcribe job, clip dropped", zap.String("stem", r.Stem), zap.Error(err))
			continue
		}
	}

	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to reclaim archive.tar from scratch", zap.Error(err))
	}

	log.Info("batch fanned out", zap.Int("clip_count", len(results)))
	return nil
}

func (s *UnpackService) download(ctx context.Context, s3Key, dest string) error {
	return retry.Do(ctx, retry.TransientInfraConfig(), func() error {
		return s.blob.Get(ctx, s3Key, dest)
	})
}

// fail pushes a FailedJob entry for job and returns the original cause so
// the caller can log it; it never returns a different error than cause
// itself, since the side effect (the failed-queue entry) is the one that
// matters to the rest of the system.
func (s *UnpackService) fail(ctx context.Context, job model.UnpackJob, tag string, cause error) error {
	entry := model.FailedJob{
		OriginalJob: job,
		Error:       fmt.Sprintf("%s:%v", tag, cause),
		Worker:      "unpack",
		Timestamp:   time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		s.log.Error("failed to marshal failed-queue entry", zap.String("batch_id", job.BatchID), zap.Error(err))
		return cause
	}
	if err := s.queue.ListPushRight(ctx, "failed", payload); err != nil {
		s.log.Error("failed to push to failed queue", zap.String("batch_id", job.BatchID), zap.Error(err))
	} else if depth, err := s.queue.QueueLength(ctx, "failed"); err == nil {
		metrics.FailedQueueDepth.Set(float64(depth))
	}
	s.log.Warn("batch failed fatally", zap.String("batch_id", job.BatchID), zap.String("reason", tag), zap.Error(cause))
	return cause
}

// archiveFailureTag recovers the Reason tag from an ArchiveError so the
// failed-queue entry carries a stable, greppable error code instead of a
// free-form message.
func archiveFailureTag(err error) string {
	if archErr, ok := pkgerrors.As[*pkgerrors.ArchiveError](err); ok {
		return archErr.Reason
	}
	return "extract-failed"
}

type audioFile struct {
	stem string
	path string
}

// enumerateAudioFiles walks root and returns every file whose extension
// (case-insensitive) is in extensions, paired with its extension-stripped
// stem (the clip's identity for the rest of the pipeline).
func enumerateAudioFiles(root string, extensions []string) ([]audioFile, error) {
	var out []audioFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		for _, want := range extensions {
			if strings.EqualFold(ext, want) {
				stem := strings.TrimSuffix(filepath.Base(path), ext)
				out = append(out, audioFile{stem: stem, path: path})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unpack: failed to enumerate extracted files: %w", err)
	}
	return out, nil
}
