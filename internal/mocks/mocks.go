// Package mocks holds function-field test doubles for this module's ports,
// in the style of the teacher's original fakes: every method delegates to
// an overridable Func field, falling back to a reasonable default.
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
)

// MockFFmpegExecutor is a test double for ports.FFmpegExecutor
type MockFFmpegExecutor struct {
	ExecuteFunc  func(ctx context.Context, args []string) error
	ProbeFunc    func(ctx context.Context, inputPath string) ([]byte, error)
	ExecutedArgs [][]string
}

func (m *MockFFmpegExecutor) Execute(ctx context.Context, args []string) error {
	m.ExecutedArgs = append(m.ExecutedArgs, args)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	return nil
}

func (m *MockFFmpegExecutor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, inputPath)
	}
	return defaultProbeResponse(), nil
}

func defaultProbeResponse() []byte {
	resp := map[string]interface{}{
		"format": map[string]interface{}{
			"duration":    "12.5",
			"bit_rate":    "32000",
			"size":        "48000",
			"format_name": "opus",
		},
		"streams": []map[string]interface{}{
			{
				"codec_name":  "opus",
				"sample_rate": "48000",
				"channels":    1,
				"bit_rate":    "32000",
			},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

// MockStorageProvider is a test double for ports.StorageProvider
type MockStorageProvider struct {
	ExistsFunc   func(ctx context.Context, path string) (bool, error)
	SizeFunc     func(ctx context.Context, path string) (int64, error)
	RemoveFunc   func(ctx context.Context, path string) error
	TempFileFunc func(ctx context.Context, dir, pattern string) (string, error)
}

func (m *MockStorageProvider) Exists(ctx context.Context, path string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, path)
	}
	return true, nil
}

func (m *MockStorageProvider) Size(ctx context.Context, path string) (int64, error) {
	if m.SizeFunc != nil {
		return m.SizeFunc(ctx, path)
	}
	return 1024, nil
}

func (m *MockStorageProvider) Remove(ctx context.Context, path string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, path)
	}
	return nil
}

func (m *MockStorageProvider) TempFile(ctx context.Context, dir, pattern string) (string, error) {
	if m.TempFileFunc != nil {
		return m.TempFileFunc(ctx, dir, pattern)
	}
	return "/tmp/mock_temp_file", nil
}

// MockQueueCounter is a test double for ports.QueueCounter.
type MockQueueCounter struct {
	PushFunc    func(ctx context.Context, queue string, payload []byte) error
	PopFunc     func(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error)
	Counters    map[string]int64
	Strings     map[string]string
	PushedItems map[string][][]byte
}

func NewMockQueueCounter() *MockQueueCounter {
	return &MockQueueCounter{
		Counters:    map[string]int64{},
		Strings:     map[string]string{},
		PushedItems: map[string][][]byte{},
	}
}

func (m *MockQueueCounter) ListPushRight(ctx context.Context, queue string, payload []byte) error {
	m.PushedItems[queue] = append(m.PushedItems[queue], payload)
	if m.PushFunc != nil {
		return m.PushFunc(ctx, queue, payload)
	}
	return nil
}

func (m *MockQueueCounter) ListBlockingPopLeft(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, bool, error) {
	if m.PopFunc != nil {
		return m.PopFunc(ctx, queues, timeout)
	}
	return "", nil, false, nil
}

func (m *MockQueueCounter) CounterSet(ctx context.Context, key string, n int64) error {
	m.Counters[key] = n
	return nil
}

func (m *MockQueueCounter) CounterGet(ctx context.Context, key string) (int64, bool, error) {
	v, ok := m.Counters[key]
	return v, ok, nil
}

func (m *MockQueueCounter) CounterIncrement(ctx context.Context, key string) (int64, error) {
	m.Counters[key]++
	return m.Counters[key], nil
}

func (m *MockQueueCounter) StringSet(ctx context.Context, key, value string) error {
	m.Strings[key] = value
	return nil
}

func (m *MockQueueCounter) StringGet(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.Strings[key]
	return v, ok, nil
}

func (m *MockQueueCounter) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.Counters, k)
		delete(m.Strings, k)
	}
	return nil
}

func (m *MockQueueCounter) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0, len(m.Strings)+len(m.Counters))
	for k := range m.Strings {
		keys = append(keys, k)
	}
	for k := range m.Counters {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MockQueueCounter) QueueLength(ctx context.Context, queue string) (int64, error) {
	return int64(len(m.PushedItems[queue])), nil
}

var _ ports.QueueCounter = (*MockQueueCounter)(nil)

// MockBlobStore is a test double for ports.BlobStore.
type MockBlobStore struct {
	PutFunc func(ctx context.Context, key, localPath string) error
	GetFunc func(ctx context.Context, key, localPath string) error
	Objects map[string]int64
	Deleted []string
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{Objects: map[string]int64{}}
}

func (m *MockBlobStore) Put(ctx context.Context, key, localPath string) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, localPath)
	}
	m.Objects[key] = 1
	return nil
}

func (m *MockBlobStore) Get(ctx context.Context, key, localPath string) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, localPath)
	}
	return nil
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.Deleted = append(m.Deleted, key)
	delete(m.Objects, key)
	return nil
}

func (m *MockBlobStore) Head(ctx context.Context, key string) (int64, bool, error) {
	size, ok := m.Objects[key]
	return size, ok, nil
}

func (m *MockBlobStore) ListBuckets(ctx context.Context) ([]string, error) {
	return nil, nil
}

var _ ports.BlobStore = (*MockBlobStore)(nil)

// MockRelationalStore is a test double for ports.RelationalStore.
type MockRelationalStore struct {
	nextID          int64
	AudioRecords    map[int64]*model.AudioRecord
	Transcripts     []*model.Transcript
	Classifications []*model.Classification
}

func NewMockRelationalStore() *MockRelationalStore {
	return &MockRelationalStore{AudioRecords: map[int64]*model.AudioRecord{}}
}

func (m *MockRelationalStore) InsertAudioRecord(ctx context.Context, rec *model.AudioRecord) (int64, error) {
	m.nextID++
	rec.ID = m.nextID
	rec.Status = model.StatusPending
	m.AudioRecords[rec.ID] = rec
	return rec.ID, nil
}

func (m *MockRelationalStore) SetAudioStatus(ctx context.Context, audioID int64, status model.AudioStatus) error {
	if rec, ok := m.AudioRecords[audioID]; ok {
		rec.Status = status
	}
	return nil
}

func (m *MockRelationalStore) SetAudioObjectKey(ctx context.Context, audioID int64, objectKey string) error {
	if rec, ok := m.AudioRecords[audioID]; ok {
		rec.ObjectKey = objectKey
	}
	return nil
}

func (m *MockRelationalStore) InsertTranscript(ctx context.Context, t *model.Transcript) (int64, error) {
	t.ID = int64(len(m.Transcripts) + 1)
	m.Transcripts = append(m.Transcripts, t)
	return t.ID, nil
}

func (m *MockRelationalStore) InsertClassification(ctx context.Context, c *model.Classification) (int64, error) {
	c.ID = int64(len(m.Classifications) + 1)
	m.Classifications = append(m.Classifications, c)
	return c.ID, nil
}

func (m *MockRelationalStore) FlaggedItems(ctx context.Context, limit int) ([]model.FlaggedItem, error) {
	var out []model.FlaggedItem
	for _, c := range m.Classifications {
		if !c.Flagged {
			continue
		}
		rec := m.AudioRecords[c.AudioID]
		if rec == nil {
			continue
		}
		out = append(out, model.FlaggedItem{
			AudioID:  c.AudioID,
			Filename: rec.OriginalFilename,
			BatchID:  rec.ArchiveSource,
			Score:    c.Score,
			Category: c.Category,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

var _ ports.RelationalStore = (*MockRelationalStore)(nil)

// MockTranscriber is a test double for ports.Transcriber.
type MockTranscriber struct {
	TranscribeFunc func(ctx context.Context, opusPath string) (ports.TranscriptionResult, error)
}

func (m *MockTranscriber) Transcribe(ctx context.Context, opusPath string) (ports.TranscriptionResult, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, opusPath)
	}
	return ports.TranscriptionResult{Text: "mock transcript", Language: "en", Confidence: 0.9}, nil
}

var _ ports.Transcriber = (*MockTranscriber)(nil)

// MockClassifier is a test double for ports.Classifier.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, text string) (ports.ClassificationResult, error)
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (ports.ClassificationResult, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	return ports.ClassificationResult{Flagged: false, Score: 0.0}, nil
}

var _ ports.Classifier = (*MockClassifier)(nil)

// MockArchiveExtractor is a test double for ports.ArchiveExtractor.
type MockArchiveExtractor struct {
	DetectFunc  func(archivePath string) (model.ArchiveFormat, error)
	ExtractFunc func(ctx context.Context, archivePath, destDir string, format model.ArchiveFormat) error
}

func (m *MockArchiveExtractor) Detect(archivePath string) (model.ArchiveFormat, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(archivePath)
	}
	return model.ArchiveFormatPlainTar, nil
}

func (m *MockArchiveExtractor) Extract(ctx context.Context, archivePath, destDir string, format model.ArchiveFormat) error {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, archivePath, destDir, format)
	}
	return nil
}

var _ ports.ArchiveExtractor = (*MockArchiveExtractor)(nil)
