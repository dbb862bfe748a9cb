package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	"github.com/contentmod/audio-pipeline/internal/mocks"
)

func seedLedger(q *mocks.MockQueueCounter, batchID string, total int64) {
	totalKey, processedKey, s3Key := model.LedgerKeys(batchID)
	q.Counters[totalKey] = total
	q.Counters[processedKey] = 0
	q.Strings[s3Key] = "archives/" + batchID + ".tar"
}

func newTestGPUService(q *mocks.MockQueueCounter, blob *mocks.MockBlobStore, db *mocks.MockRelationalStore, tr ports.Transcriber, cl ports.Classifier, scratchRoot string) *GPUService {
	return NewGPUService(GPUConfig{
		Queue:       q,
		Blob:        blob,
		DB:          db,
		Transcriber: tr,
		Classifier:  cl,
		ScratchRoot: scratchRoot,
	})
}

func TestGPUService_HappyPathFinalization(t *testing.T) {
	root := t.TempDir()
	batchDir := filepath.Join(root, "B1")
	require.NoError(t, os.MkdirAll(batchDir, 0o755))
	opusPath := filepath.Join(batchDir, "a.opus")
	require.NoError(t, os.WriteFile(opusPath, []byte("clip"), 0o644))

	q := mocks.NewMockQueueCounter()
	seedLedger(q, "B1", 1)
	blob := mocks.NewMockBlobStore()
	db := mocks.NewMockRelationalStore()

	svc := newTestGPUService(q, blob, db, &mocks.MockTranscriber{}, &mocks.MockClassifier{}, root)

	err := svc.ProcessItem(context.Background(), model.TranscribeJob{
		BatchID: "B1", OpusPath: opusPath, OriginalFilename: "a.mp3",
	})
	require.NoError(t, err)

	require.Len(t, db.AudioRecords, 1)
	var rec *model.AudioRecord
	for _, r := range db.AudioRecords {
		rec = r
	}
	assert.Equal(t, model.StatusTranscribed, rec.Status)
	assert.NotEmpty(t, rec.ObjectKey)
	require.Len(t, db.Transcripts, 1)
	require.Len(t, db.Classifications, 1)

	totalKey, processedKey, s3Key := model.LedgerKeys("B1")
	_, found, _ := q.CounterGet(context.Background(), totalKey)
	assert.False(t, found, "ledger should be deleted on finalisation")
	_, found, _ = q.CounterGet(context.Background(), processedKey)
	assert.False(t, found)
	_, found, _ = q.StringGet(context.Background(), s3Key)
	assert.False(t, found)

	_, statErr := os.Stat(batchDir)
	assert.True(t, os.IsNotExist(statErr), "scratch should be removed on finalisation")
}

func TestGPUService_TranscriptionFailure_StillIncrementsCounter(t *testing.T) {
	root := t.TempDir()
	q := mocks.NewMockQueueCounter()
	seedLedger(q, "B3", 2)
	blob := mocks.NewMockBlobStore()
	db := mocks.NewMockRelationalStore()

	failingTranscriber := &mocks.MockTranscriber{
		TranscribeFunc: func(ctx context.Context, opusPath string) (ports.TranscriptionResult, error) {
			return ports.TranscriptionResult{}, assertErr
		},
	}

	svc := newTestGPUService(q, blob, db, failingTranscriber, &mocks.MockClassifier{}, root)

	err := svc.ProcessItem(context.Background(), model.TranscribeJob{BatchID: "B3", OpusPath: "/tmp/x.opus"})
	require.NoError(t, err)

	require.Len(t, db.AudioRecords, 1)
	var rec *model.AudioRecord
	for _, r := range db.AudioRecords {
		rec = r
	}
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Empty(t, db.Transcripts)
	assert.Empty(t, db.Classifications)

	_, processedKey, _ := model.LedgerKeys("B3")
	assert.Equal(t, int64(1), q.Counters[processedKey])
}

func TestGPUService_MalformedClassifierOutput_MarksFailedButIncrements(t *testing.T) {
	root := t.TempDir()
	q := mocks.NewMockQueueCounter()
	seedLedger(q, "B1", 1)
	blob := mocks.NewMockBlobStore()
	db := mocks.NewMockRelationalStore()

	badClassifier := &mocks.MockClassifier{
		ClassifyFunc: func(ctx context.Context, text string) (ports.ClassificationResult, error) {
			return ports.ClassificationResult{}, assertErr
		},
	}

	svc := newTestGPUService(q, blob, db, &mocks.MockTranscriber{}, badClassifier, root)

	err := svc.ProcessItem(context.Background(), model.TranscribeJob{BatchID: "B1", OpusPath: "/tmp/x.opus"})
	require.NoError(t, err)

	require.Len(t, db.AudioRecords, 1)
	var rec *model.AudioRecord
	for _, r := range db.AudioRecords {
		rec = r
	}
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Empty(t, db.Classifications)

	totalKey, _, _ := model.LedgerKeys("B1")
	_, found, _ := q.CounterGet(context.Background(), totalKey)
	assert.False(t, found, "single-item batch should still finalize")
}

func TestGPUService_MissingLedger_OrphansItem(t *testing.T) {
	root := t.TempDir()
	q := mocks.NewMockQueueCounter()
	blob := mocks.NewMockBlobStore()
	db := mocks.NewMockRelationalStore()

	svc := newTestGPUService(q, blob, db, &mocks.MockTranscriber{}, &mocks.MockClassifier{}, root)

	job := model.TranscribeJob{BatchID: "ghost", OpusPath: "/tmp/x.opus"}
	err := svc.ProcessItem(context.Background(), job)
	require.NoError(t, err)

	assert.Empty(t, db.AudioRecords, "orphaned item must not create a record")
	require.Len(t, q.PushedItems["failed"], 1)

	var entry model.FailedJob
	require.NoError(t, json.Unmarshal(q.PushedItems["failed"][0], &entry))
	assert.Equal(t, "gpu", entry.Worker)
	assert.Contains(t, entry.Error, "missing-ledger")
}

func TestGPUService_ConcurrentFinalizationRace_OnlyOneFinalizes(t *testing.T) {
	root := t.TempDir()
	q := mocks.NewMockQueueCounter()
	seedLedger(q, "B3", 2)
	blob := mocks.NewMockBlobStore()
	db := mocks.NewMockRelationalStore()
	svc := newTestGPUService(q, blob, db, &mocks.MockTranscriber{}, &mocks.MockClassifier{}, root)

	totalKey, processedKey, s3KeyKey := model.LedgerKeys("B3")

	// Simulate worker A observing processed=1 (not yet complete).
	processedA, err := q.CounterIncrement(context.Background(), processedKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), processedA)

	// Worker B observes processed=2 == total: B finalizes.
	err = svc.incrementAndMaybeFinalize(context.Background(), "B3", totalKey, processedKey, s3KeyKey)
	require.NoError(t, err)

	_, found, _ := q.CounterGet(context.Background(), totalKey)
	assert.False(t, found, "ledger deleted after the completing increment")
}

var assertErr = &testErr{"boom"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
