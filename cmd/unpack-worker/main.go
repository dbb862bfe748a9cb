// Command unpack-worker runs the Unpack Worker: it consumes jobs from the
// `unpack` queue, materialises each archive into scratch, transcodes its
// clips to opus, seeds the batch ledger, and fans out transcribe jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/application/pipeline"
	"github.com/contentmod/audio-pipeline/application/usecase"
	"github.com/contentmod/audio-pipeline/internal/archive"
	"github.com/contentmod/audio-pipeline/internal/blobstore"
	"github.com/contentmod/audio-pipeline/internal/config"
	"github.com/contentmod/audio-pipeline/internal/queue"
	"github.com/contentmod/audio-pipeline/internal/transcode"
	"github.com/contentmod/audio-pipeline/infrastructure/ffmpeg"
	"github.com/contentmod/audio-pipeline/infrastructure/storage"
	"github.com/contentmod/audio-pipeline/pkg/logger"
	"github.com/contentmod/audio-pipeline/pkg/progress"
)

type options struct {
	EnvFile string `long:"env-file" description:"path to a .env file to load before reading the environment"`
	Dev     bool   `long:"dev" description:"use a development (console) logger instead of JSON"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log, err := logger.New(opts.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.Named("unpack-worker")

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blob, err := blobstore.NewFromEnv(ctx, cfg.BlobEndpoint, cfg.BlobBucket, cfg.BlobAccessKey, cfg.BlobSecretKey)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}

	qc := queue.Dial(cfg.QueueAddr())

	executor, err := ffmpeg.NewExecutor(ffmpeg.ExecutorConfig{Logger: log})
	if err != nil {
		log.Fatal("failed to initialize ffmpeg executor", zap.Error(err))
	}

	transcodeService, err := transcode.NewService(transcode.Config{
		Executor:    executor,
		Storage:     storage.NewLocalStorage(),
		Logger:      log,
		Reporter:    progress.NewLogReporter(log),
		Workers:     cfg.TranscodeParallelism,
		OpusBitrate: cfg.OpusBitrate,
	})
	if err != nil {
		log.Fatal("failed to initialize transcode service", zap.Error(err))
	}

	unpackService := usecase.NewUnpackService(usecase.UnpackConfig{
		Queue:       qc,
		Blob:        blob,
		Extractor:   archive.NewExtractor(),
		Transcode:   transcodeService,
		ScratchRoot: cfg.ScratchRoot,
		Extensions:  cfg.AudioExtensions,
		Logger:      log,
	})

	worker := pipeline.NewUnpackPipeline(qc, unpackService, log)

	log.Info("unpack worker starting",
		zap.String("scratch_root", cfg.ScratchRoot),
		zap.Int("transcode_parallelism", cfg.TranscodeParallelism),
		zap.Strings("audio_extensions", cfg.AudioExtensions),
	)

	if err := worker.Run(ctx); err != nil {
		log.Fatal("unpack worker exited with error", zap.Error(err))
	}

	log.Info("unpack worker shut down cleanly")
}
