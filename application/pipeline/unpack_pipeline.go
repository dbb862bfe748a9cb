// Package pipeline wraps the usecase services with the long-running
// blocking-pop loop each worker process runs: queue-as-bus is the
// durability boundary, so neither loop here talks to the other directly.
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

// popTimeout is how long a single blocking pop waits before looping to
// recheck ctx. It is not a job timeout: a popped job runs to completion
// regardless of how long that takes.
const popTimeout = 5 * time.Second

// UnpackPipeline runs the Unpack Worker's consume loop: pop one UnpackJob
// from the `unpack` queue, process it fully, repeat.
type UnpackPipeline struct {
	queue   ports.Queue
	service *usecase.UnpackService
	log     *logger.Logger
}

// NewUnpackPipeline builds an UnpackPipeline.
func NewUnpackPipeline(queue ports.Queue, service *usecase.UnpackService, log *logger.Logger) *UnpackPipeline {
	if log == nil {
		log, _ = logger.New(false)
	}
	return &UnpackPipeline{queue: queue, service: service, log: log.Named("unpack-worker")}
}

// Run blocks until ctx is cancelled. On shutdown signal it finishes the
// in-flight job (if any) before returning; unpopped queue entries simply
// remain for the next worker.
func (p *UnpackPipeline) Run(ctx context.Context) error {
	p.log.Info("unpack worker entering pop loop")
	for {
		if ctx.Err() != nil {
			return nil
		}

		_, payload, ok, err := p.queue.ListBlockingPopLeft(ctx, []string{"unpack"}, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("failed to pop from unpack queue", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		var job model.UnpackJob
		if err := json.Unmarshal(payload, &job); err != nil {
			p.log.Error("dropping malformed unpack job payload", zap.Error(err))
			continue
		}

		if err := p.service.ProcessJob(context.WithoutCancel(ctx), job); err != nil {
			p.log.Warn("unpack job ended in failure (routed to failed queue)",
				zap.String("batch_id", job.BatchID), zap.Error(err))
		}
	}
}
