package transcode

import (
	"context"
	"fmt"
	"os"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	"github.com/contentmod/audio-pipeline/internal/workerpool"
	"github.com/contentmod/audio-pipeline/pkg/logger"
	"github.com/contentmod/audio-pipeline/pkg/progress"
	"github.com/contentmod/audio-pipeline/pkg/retry"
	"go.uber.org/zap"
)

// ClipJob is one source file awaiting conversion to opus during the
// Unpack Worker's transcode fan-out.
type ClipJob struct {
	Stem       string // extension-stripped leaf name, becomes the clip identity
	SourcePath string
	OutputPath string // {stem}.opus in the scratch directory
}

// ClipResult is the outcome of converting one ClipJob.
type ClipResult struct {
	Stem       string
	OutputPath string
	Duration   float64 // seconds; 0 if the duration probe failed (non-fatal)
}

// Service wires the ffmpeg pipeline, a worker pool, and retry policy
// together the way the teacher's usecase.AudioService wires
// pipeline.Pipeline + pipeline.WorkerPool, but targets a fixed output
// codec/bitrate (opus, via OPUS_BITRATE) rather than caller-supplied
// per-call options.
type Service struct {
	pipeline *Pipeline
	storage  ports.StorageProvider
	log      *logger.Logger
	reporter progress.Reporter
	retryCfg retry.Config
	workers  int
	opts     *model.ProcessingOptions
}

// Config configures a transcode Service.
type Config struct {
	Executor    ports.FFmpegExecutor
	Storage     ports.StorageProvider
	Logger      *logger.Logger
	Reporter    progress.Reporter
	Workers     int    // parallelism for the fan-out, via TRANSCODE_PARALLELISM
	OpusBitrate string // e.g. "32k", via OPUS_BITRATE

	// ExtraOptions layers further overrides (filters, sample rate, loudness
	// targets) on top of the fixed opus encode profile. Most deployments
	// leave this empty; it exists for operators who need to tune the
	// transcode profile without a code change.
	ExtraOptions []ports.Option
}

// NewService creates a transcode Service targeting opus output.
func NewService(cfg Config) (*Service, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("FFmpegExecutor is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("StorageProvider is required")
	}

	log := cfg.Logger
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	bitrate, err := parseBitrate(cfg.OpusBitrate)
	if err != nil {
		return nil, err
	}

	opts := model.DefaultProcessingOptions()
	opts.Codec = model.CodecOpus
	opts.BitrateMode = model.BitrateModeVBR
	opts.Bitrate = bitrate
	opts.NormalizationEnabled = false // source clips are raw extracted audio, not a mastering pass

	for _, apply := range cfg.ExtraOptions {
		apply(opts)
	}

	return &Service{
		pipeline: NewPipeline(cfg.Executor, cfg.Storage, log),
		storage:  cfg.Storage,
		log:      log,
		reporter: reporter,
		retryCfg: retry.DefaultConfig(),
		workers:  workers,
		opts:     opts,
	}, nil
}

// ConvertMany runs the transcode fan-out over jobs in parallel, returning
// one ClipResult per job that succeeded. Per-file failures are logged and
// the file is simply absent from the result slice: log and
// skip the file (it does not contribute to the batch)").
func (s *Service) ConvertMany(ctx context.Context, jobs []ClipJob) []ClipResult {
	resultsCh := workerpool.Run(ctx, jobs, s.workers, s.convertOne)

	out := make([]ClipResult, 0, len(jobs))
	for r := range resultsCh {
		if r.Err != nil {
			s.log.Warn("transcode failed, skipping clip",
				zap.String("stem", r.Item.Stem),
				zap.String("source", r.Item.SourcePath),
				zap.Error(r.Err),
			)
			continue
		}
		out = append(out, r.Out)
	}
	return out
}

func (s *Service) convertOne(ctx context.Context, job ClipJob) (ClipResult, error) {
	pipelineJob := &Job{
		ID:         job.Stem,
		InputPath:  job.SourcePath,
		OutputPath: job.OutputPath,
		Options:    s.opts,
		Reporter:   s.reporter,
	}

	var result *model.ProcessingResult
	err := retry.Do(ctx, s.retryCfg, func() error {
		var runErr error
		result, runErr = s.pipeline.Run(ctx, pipelineJob)
		return runErr
	})
	if err != nil {
		return ClipResult{}, err
	}

	duration := 0.0
	if result.OutputMeta != nil {
		duration = result.OutputMeta.Duration.Seconds()
	}

	if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to reclaim source file after conversion",
			zap.String("stem", job.Stem), zap.String("source", job.SourcePath), zap.Error(err))
	}

	return ClipResult{
		Stem:       job.Stem,
		OutputPath: job.OutputPath,
		Duration:   duration,
	}, nil
}

func parseBitrate(s string) (int, error) {
	if s == "" {
		return 32000, nil
	}
	n := 0
	unit := 1
	suffix := s
	if len(s) > 0 && (s[len(s)-1] == 'k' || s[len(s)-1] == 'K') {
		unit = 1000
		suffix = s[:len(s)-1]
	}
	if _, err := fmt.Sscanf(suffix, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid OPUS_BITRATE %q: %w", s, err)
	}
	return n * unit, nil
}
