package transfer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/internal/mocks"
)

type fakeCopier struct {
	fetchErr error
	fetched  []string
}

func (f *fakeCopier) Fetch(ctx context.Context, remotePath, localPath string) error {
	f.fetched = append(f.fetched, remotePath)
	if f.fetchErr != nil {
		return f.fetchErr
	}
	return os.WriteFile(localPath, []byte("archive-bytes"), 0o644)
}

var batchIDPattern = regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{6}$`)

func TestNewBatchID_Format(t *testing.T) {
	id := NewBatchID(time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC))
	assert.Regexp(t, batchIDPattern, id)
	assert.Contains(t, id, "20260729-120000-")
}

func TestNewBatchID_UniquePerCall(t *testing.T) {
	now := time.Now()
	a := NewBatchID(now)
	b := NewBatchID(now)
	assert.NotEqual(t, a, b, "the hex suffix must differ even for the same timestamp")
}

func TestService_Ingest_HappyPath(t *testing.T) {
	copier := &fakeCopier{}
	blob := mocks.NewMockBlobStore()
	q := mocks.NewMockQueueCounter()

	svc := NewService(copier, blob, q, nil)

	staging := filepath.Join(t.TempDir(), "staged.tar")
	batchID, err := svc.Ingest(context.Background(), "user@host:/data/batch.tar", "batch.tar", staging)
	require.NoError(t, err)
	assert.Regexp(t, batchIDPattern, batchID)

	assert.Equal(t, []string{"user@host:/data/batch.tar"}, copier.fetched)

	expectedKey := "archives/" + batchID + ".tar"
	_, found, _ := blob.Head(context.Background(), expectedKey)
	assert.True(t, found, "archive should have been uploaded under its batch key")

	require.Len(t, q.PushedItems["unpack"], 1)
	var job model.UnpackJob
	require.NoError(t, json.Unmarshal(q.PushedItems["unpack"][0], &job))
	assert.Equal(t, batchID, job.BatchID)
	assert.Equal(t, expectedKey, job.S3Key)
	assert.Equal(t, "batch.tar", job.OriginalFilename)
}

func TestService_Ingest_FetchFailure_NoUploadNoPush(t *testing.T) {
	copier := &fakeCopier{fetchErr: assertErr}
	blob := mocks.NewMockBlobStore()
	q := mocks.NewMockQueueCounter()

	svc := NewService(copier, blob, q, nil)

	_, err := svc.Ingest(context.Background(), "user@host:/data/batch.tar", "batch.tar", filepath.Join(t.TempDir(), "staged.tar"))
	require.Error(t, err)

	assert.Empty(t, blob.Objects)
	assert.Empty(t, q.PushedItems["unpack"])
}

func TestService_Ingest_UploadFailure_NoPush(t *testing.T) {
	copier := &fakeCopier{}
	blob := mocks.NewMockBlobStore()
	blob.PutFunc = func(ctx context.Context, key, localPath string) error {
		return assertErr
	}
	q := mocks.NewMockQueueCounter()

	svc := NewService(copier, blob, q, nil)

	_, err := svc.Ingest(context.Background(), "user@host:/data/batch.tar", "batch.tar", filepath.Join(t.TempDir(), "staged.tar"))
	require.Error(t, err)
	assert.Empty(t, q.PushedItems["unpack"])
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

var assertErr = &testErr{"boom"}
