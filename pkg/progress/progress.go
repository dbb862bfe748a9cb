package progress

import (
	"sync"
	"time"

	"github.com/contentmod/audio-pipeline/pkg/logger"
	"go.uber.org/zap"
)

// Stage represents a pipeline stage
type Stage string

const (
	// Transcode stages (single-clip ffmpeg conversion, driven by internal/transcode).
	StageProbe      Stage = "probe"
	StagePreprocess Stage = "preprocess"
	StageNormalize  Stage = "normalize"
	StageFilter     Stage = "filter"
	StageEncode     Stage = "encode"
	StageDone       Stage = "done"

	// Unpack Worker batch stages.
	StageDownload   Stage = "download"
	StageDetect     Stage = "detect"
	StageExtract    Stage = "extract"
	StageTranscode  Stage = "transcode"
	StageLedgerSeed Stage = "ledger-seed"
	StageFanOut     Stage = "fan-out"

	// GPU Worker per-clip stages.
	StageTranscribe Stage = "transcribe"
	StageClassify   Stage = "classify"
	StageUpload     Stage = "upload"
	StageFinalize   Stage = "finalize"
)

// Update holds a progress update. BatchID is set for batch-scoped updates
// (Unpack/GPU worker stages); JobID is set for single-clip transcode jobs.
type Update struct {
	JobID     string
	BatchID   string
	Stage     Stage
	Percent   float64
	Message   string
	Timestamp time.Time
}

// Reporter is the interface for progress reporting
type Reporter interface {
	Report(update Update)
}

// ChannelReporter sends updates to a channel
type ChannelReporter struct {
	ch chan<- Update
}

// NewChannelReporter creates a reporter that sends updates to ch
func NewChannelReporter(ch chan<- Update) *ChannelReporter {
	return &ChannelReporter{ch: ch}
}

func (r *ChannelReporter) Report(update Update) {
	select {
	case r.ch <- update:
	default: // non-blocking: drop if channel is full
	}
}

// MultiReporter fans out to multiple reporters
type MultiReporter struct {
	mu        sync.RWMutex
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

func (m *MultiReporter) Add(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

func (m *MultiReporter) Report(update Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reporters {
		r.Report(update)
	}
}

// NoopReporter discards all updates
type NoopReporter struct{}

func (n NoopReporter) Report(_ Update) {}

// LogReporter emits progress updates as structured log lines. The
// unpack-worker command hands it to the transcode service, since the worker
// runs unattended and has no channel consumer.
type LogReporter struct {
	log *logger.Logger
}

// NewLogReporter creates a reporter that logs each update at info level.
func NewLogReporter(log *logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(update Update) {
	if r.log == nil {
		return
	}
	r.log.Info("progress",
		zap.String("batch_id", update.BatchID),
		zap.String("job_id", update.JobID),
		zap.String("stage", string(update.Stage)),
		zap.Float64("percent", update.Percent),
		zap.String("message", update.Message),
	)
}