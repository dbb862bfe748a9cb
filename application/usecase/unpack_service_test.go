package usecase

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	"github.com/contentmod/audio-pipeline/infrastructure/storage"
	"github.com/contentmod/audio-pipeline/internal/archive"
	"github.com/contentmod/audio-pipeline/internal/mocks"
	"github.com/contentmod/audio-pipeline/internal/transcode"
)

func buildTarArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(body)), Mode: 0o644}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func newTestUnpackService(t *testing.T, q ports.QueueCounter, blob ports.BlobStore, scratchRoot string) *UnpackService {
	t.Helper()

	executor := &mocks.MockFFmpegExecutor{
		ExecuteFunc: func(ctx context.Context, args []string) error {
			// args end in "...  <output path>"; fabricate the opus file.
			out := args[len(args)-1]
			return os.WriteFile(out, []byte("opus-bytes"), 0o644)
		},
	}

	svc, err := transcode.NewService(transcode.Config{
		Executor: executor,
		Storage:  storage.NewLocalStorage(),
		Workers:  2,
	})
	require.NoError(t, err)

	return NewUnpackService(UnpackConfig{
		Queue:       q,
		Blob:        blob,
		Extractor:   archive.NewExtractor(),
		Transcode:   svc,
		ScratchRoot: scratchRoot,
		Extensions:  []string{".mp3"},
	})
}

func TestUnpackService_HappyPath(t *testing.T) {
	data := buildTarArchive(t, map[string]string{"a.mp3": "aaa", "b.mp3": "bbb", "c.mp3": "ccc"})

	blob := mocks.NewMockBlobStore()
	blob.PutFunc = func(ctx context.Context, key, localPath string) error { return nil }
	blob.GetFunc = func(ctx context.Context, key, localPath string) error {
		return os.WriteFile(localPath, data, 0o644)
	}

	q := mocks.NewMockQueueCounter()
	root := t.TempDir()

	svc := newTestUnpackService(t, q, blob, root)

	job := model.UnpackJob{BatchID: "B1", S3Key: "archives/B1.tar", OriginalFilename: "src.tar"}
	err := svc.ProcessJob(context.Background(), job)
	require.NoError(t, err)

	totalKey, processedKey, s3Key := model.LedgerKeys("B1")
	assert.Equal(t, int64(3), q.Counters[totalKey])
	assert.Equal(t, int64(0), q.Counters[processedKey])
	assert.Equal(t, "archives/B1.tar", q.Strings[s3Key])
	assert.Len(t, q.PushedItems["transcribe"], 3)

	_, err = os.Stat(filepath.Join(root, "B1", "archive.tar"))
	assert.True(t, os.IsNotExist(err), "archive.tar should be reclaimed")

	_, err = os.Stat(filepath.Join(root, "B1", "a.mp3"))
	assert.True(t, os.IsNotExist(err), "source clip should be reclaimed after successful conversion")
}

func TestUnpackService_EmptyArchive(t *testing.T) {
	data := buildTarArchive(t, map[string]string{"notes.txt": "no audio here"})

	blob := mocks.NewMockBlobStore()
	blob.GetFunc = func(ctx context.Context, key, localPath string) error {
		return os.WriteFile(localPath, data, 0o644)
	}

	q := mocks.NewMockQueueCounter()
	root := t.TempDir()
	svc := newTestUnpackService(t, q, blob, root)

	job := model.UnpackJob{BatchID: "B4", S3Key: "archives/B4.tar", OriginalFilename: "src.tar"}
	err := svc.ProcessJob(context.Background(), job)
	require.Error(t, err)

	require.Len(t, q.PushedItems["failed"], 1)
	var entry model.FailedJob
	require.NoError(t, json.Unmarshal(q.PushedItems["failed"][0], &entry))
	assert.Equal(t, "unpack", entry.Worker)
	assert.Contains(t, entry.Error, "empty-batch")

	_, statErr := os.Stat(filepath.Join(root, "B4"))
	assert.True(t, os.IsNotExist(statErr), "scratch should be removed on fatal failure")

	totalKey, _, _ := model.LedgerKeys("B4")
	_, found := q.Counters[totalKey]
	assert.False(t, found, "no ledger should be seeded on fatal failure")
}

func TestUnpackService_UnknownMagic(t *testing.T) {
	blob := mocks.NewMockBlobStore()
	blob.GetFunc = func(ctx context.Context, key, localPath string) error {
		return os.WriteFile(localPath, []byte("not a valid archive at all"), 0o644)
	}

	q := mocks.NewMockQueueCounter()
	root := t.TempDir()
	svc := newTestUnpackService(t, q, blob, root)

	job := model.UnpackJob{BatchID: "B5", S3Key: "archives/B5.tar", OriginalFilename: "src.tar"}
	err := svc.ProcessJob(context.Background(), job)
	require.Error(t, err)

	require.Len(t, q.PushedItems["failed"], 1)
	var entry model.FailedJob
	require.NoError(t, json.Unmarshal(q.PushedItems["failed"][0], &entry))
	assert.Contains(t, entry.Error, "unknown-archive-format")
}

func TestUnpackService_MislabeledExtensionStillDetectsContent(t *testing.T) {
	// B2: archives/B2.tar.gz name, but plain-tar content (extension lies).
	data := buildTarArchive(t, map[string]string{"only.mp3": "clip"})

	blob := mocks.NewMockBlobStore()
	blob.GetFunc = func(ctx context.Context, key, localPath string) error {
		return os.WriteFile(localPath, data, 0o644)
	}

	q := mocks.NewMockQueueCounter()
	root := t.TempDir()
	svc := newTestUnpackService(t, q, blob, root)

	job := model.UnpackJob{BatchID: "B2", S3Key: "archives/B2.tar.gz", OriginalFilename: "src.tar.gz"}
	err := svc.ProcessJob(context.Background(), job)
	require.NoError(t, err)

	totalKey, _, _ := model.LedgerKeys("B2")
	assert.Equal(t, int64(1), q.Counters[totalKey])
}
