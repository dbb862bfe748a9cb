// Command gpu-worker runs the GPU Worker: it consumes transcribe jobs in
// micro-batches, invokes transcription and classification, persists
// results, uploads processed clips, and finalises batches it observes
// complete. It holds its inference models in process memory for the
// lifetime of the process; model loading is simulated here by the HTTP
// callout clients, since the model runtime itself is out of scope.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/application/pipeline"
	"github.com/contentmod/audio-pipeline/application/usecase"
	"github.com/contentmod/audio-pipeline/internal/blobstore"
	"github.com/contentmod/audio-pipeline/internal/config"
	"github.com/contentmod/audio-pipeline/internal/ml"
	"github.com/contentmod/audio-pipeline/internal/queue"
	"github.com/contentmod/audio-pipeline/internal/relstore"
	"github.com/contentmod/audio-pipeline/pkg/logger"
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
	log = log.Named("gpu-worker")

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()

	blob, err := blobstore.NewFromEnv(ctx, cfg.BlobEndpoint, cfg.BlobBucket, cfg.BlobAccessKey, cfg.BlobSecretKey)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}

	qc := queue.Dial(cfg.QueueAddr())

	db, err := relstore.Open(cfg.DBDataSource())
	if err != nil {
		log.Fatal("failed to initialize relational store", zap.Error(err))
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: 60 * time.Second}
	transcriber := ml.NewTranscriber(httpClient, cfg.TranscribeServiceURL)
	classifier := ml.NewClassifier(httpClient, cfg.ClassifyServiceURL)

	// Model initialisation may take several minutes in a real deployment;
	// readiness is signalled by entering the pop loop below. The memory
	// figure is a startup diagnostic operators watch for OOM risk.
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	log.Info("models initialized",
		zap.Duration("init_duration", time.Since(startedAt)),
		zap.Uint64("alloc_bytes", mem.Alloc),
		zap.Uint64("sys_bytes", mem.Sys),
	)

	gpuService := usecase.NewGPUService(usecase.GPUConfig{
		Queue:               qc,
		Blob:                blob,
		DB:                  db,
		Transcriber:         transcriber,
		Classifier:          classifier,
		ScratchRoot:         cfg.ScratchRoot,
		DeleteSourceArchive: cfg.DeleteSourceArchive,
		Logger:              log,
	})

	worker := pipeline.NewGPUPipeline(qc, gpuService, cfg.GPUMicroBatch, log)

	log.Info("gpu worker starting",
		zap.Int("gpu_micro_batch", cfg.GPUMicroBatch),
		zap.Bool("delete_source_archive", cfg.DeleteSourceArchive),
	)

	if err := worker.Run(ctx); err != nil {
		log.Fatal("gpu worker exited with error", zap.Error(err))
	}

	log.Info("gpu worker shut down cleanly")
}
