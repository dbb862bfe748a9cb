package pipeline

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/contentmod/audio-pipeline/application/usecase"
	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/internal/mocks"
)

func TestUnpackPipeline_ProcessesPoppedJobThenStopsOnCancel(t *testing.T) {
	job := model.UnpackJob{BatchID: "B1", S3Key: "archives/B1.tar", OriginalFilename: "src.tar"}
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	var popped atomic.Int32
	q := mocks.NewMockQueueCounter()
	q.PopFunc = func(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
		if popped.Add(1) == 1 {
			return "unpack", payload, true, nil
		}
		<-ctx.Done()
		return "", nil, false, ctx.Err()
	}

	blob := mocks.NewMockBlobStore()
	blob.GetFunc = func(ctx context.Context, key, localPath string) error {
		return writeFile(localPath, []byte("not an archive at all"))
	}

	svc := usecase.NewUnpackService(usecase.UnpackConfig{
		Queue:       q,
		Blob:        blob,
		Extractor:   &mocks.MockArchiveExtractor{DetectFunc: func(string) (model.ArchiveFormat, error) { return model.ArchiveFormatUnknown, nil }},
		ScratchRoot: t.TempDir(),
		Extensions:  []string{".mp3"},
	})

	p := NewUnpackPipeline(q, svc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = p.Run(ctx)
	require.NoError(t, err)

	require.Len(t, q.PushedItems["failed"], 1, "the one popped job should have been routed to failed (unknown magic)")
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func TestUnpackPipeline_StopsImmediatelyOnAlreadyCancelledContext(t *testing.T) {
	q := mocks.NewMockQueueCounter()
	svc := usecase.NewUnpackService(usecase.UnpackConfig{
		Queue:       q,
		Blob:        mocks.NewMockBlobStore(),
		Extractor:   &mocks.MockArchiveExtractor{},
		ScratchRoot: t.TempDir(),
		Extensions:  []string{".mp3"},
	})
	p := NewUnpackPipeline(q, svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
}
