package pipeline

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/application/usecase"
	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	"github.com/contentmod/audio-pipeline/pkg/logger"
)

// microBatchIdleWait bounds how long the assembly window waits for a new
// job before processing whatever has been collected so far.
const microBatchIdleWait = 5 * time.Second

// GPUPipeline runs the GPU Worker's consume loop: assemble a micro-batch
// of transcribe jobs, process each item independently, repeat. The
// micro-batch is a scheduling primitive for inference efficiency; it is
// not a transactional unit, so one item's failure never affects its
// siblings.
type GPUPipeline struct {
	queue     ports.Queue
	service   *usecase.GPUService
	batchSize int
	log       *logger.Logger
}

// NewGPUPipeline builds a GPUPipeline targeting microBatchSize items per
// assembly window (GPU_MICRO_BATCH).
func NewGPUPipeline(queue ports.Queue, service *usecase.GPUService, microBatchSize int, log *logger.Logger) *GPUPipeline {
	if log == nil {
		log, _ = logger.New(false)
	}
	if microBatchSize <= 0 {
		microBatchSize = 32
	}
	return &GPUPipeline{queue: queue, service: service, batchSize: microBatchSize, log: log.Named("gpu-worker")}
}

// Run blocks until ctx is cancelled. A shutdown signal lets the in-flight
// micro-batch finish before the loop exits.
func (p *GPUPipeline) Run(ctx context.Context) error {
	p.log.Info("gpu worker entering pop loop", zap.Int("micro_batch_target", p.batchSize))
	for {
		if ctx.Err() != nil {
			return nil
		}

		batch := p.assemble(ctx)
		if len(batch) == 0 {
			continue
		}

		for _, job := range batch {
			if err := p.service.ProcessItem(context.WithoutCancel(ctx), job); err != nil {
				p.log.Error("transcribe item failed",
					zap.String("batch_id", job.BatchID), zap.String("opus_path", job.OpusPath), zap.Error(err))
			}
		}
	}
}

// assemble pops jobs until either batchSize have been collected or
// microBatchIdleWait elapses with no new job arriving.
func (p *GPUPipeline) assemble(ctx context.Context) []model.TranscribeJob {
	batch := make([]model.TranscribeJob, 0, p.batchSize)

	for len(batch) < p.batchSize {
		if ctx.Err() != nil {
			return batch
		}

		_, payload, ok, err := p.queue.ListBlockingPopLeft(ctx, []string{"transcribe"}, microBatchIdleWait)
		if err != nil {
			if ctx.Err() != nil {
				return batch
			}
			p.log.Error("failed to pop from transcribe queue", zap.Error(err))
			return batch
		}
		if !ok {
			// Idle window elapsed with no new job: close out the batch.
			return batch
		}

		var job model.TranscribeJob
		if err := json.Unmarshal(payload, &job); err != nil {
			p.log.Error("dropping malformed transcribe job payload", zap.Error(err))
			continue
		}
		batch = append(batch, job)
	}

	return batch
}
