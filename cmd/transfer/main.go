// Command transfer is the producer-side shim: given a remote archive path,
// it stages the file locally via scp, uploads it to the Blob Store, and
// pushes the UnpackJob that announces the new batch. The scp invocation is
// the one piece of this binary that is genuinely out of scope for the core
// pipeline; everything past it (upload, job push) is the Transfer contract
// this module owns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/contentmod/audio-pipeline/internal/blobstore"
	"github.com/contentmod/audio-pipeline/internal/config"
	"github.com/contentmod/audio-pipeline/internal/queue"
	"github.com/contentmod/audio-pipeline/internal/transfer"
	"github.com/contentmod/audio-pipeline/pkg/logger"
)

type options struct {
	EnvFile  string `long:"env-file" description:"path to a .env file to load before reading the environment"`
	Remote   string `long:"remote" required:"true" description:"remote path of the archive, e.g. user@host:/data/batch.tar"`
	Filename string `long:"filename" required:"true" description:"original filename to record with the batch"`
	Staging  string `long:"staging" description:"local staging directory" default:"/data/staging"`
}

// scpCopier implements transfer.SecureCopier over the system scp binary.
// This is the external collaborator boundary: production deployments may
// swap this for an SFTP client or an internal file-transfer service
// without touching anything downstream of Fetch.
type scpCopier struct{}

func (scpCopier) Fetch(ctx context.Context, remotePath, localPath string) error {
	cmd := exec.CommandContext(ctx, "scp", remotePath, localPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scp: failed to fetch %s: %w", remotePath, err)
	}
	return nil
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log, err := logger.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.Named("transfer")

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	blob, err := blobstore.NewFromEnv(ctx, cfg.BlobEndpoint, cfg.BlobBucket, cfg.BlobAccessKey, cfg.BlobSecretKey)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}
	qc := queue.Dial(cfg.QueueAddr())

	if err := os.MkdirAll(opts.Staging, 0o755); err != nil {
		log.Fatal("failed to create staging directory", zap.Error(err))
	}
	localPath := filepath.Join(opts.Staging, filepath.Base(opts.Filename))

	svc := transfer.NewService(scpCopier{}, blob, qc, log)

	batchID, err := svc.Ingest(ctx, opts.Remote, opts.Filename, localPath)
	if err != nil {
		log.Fatal("transfer failed", zap.Error(err))
	}

	log.Info("batch ingested", zap.String("batch_id", batchID))
}
