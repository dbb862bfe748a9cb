// Package ml implements the HTTP-callout boundary to the external
// transcription and classification services. Both are black boxes:
// this package only defines their wire contract and defends against
// malformed responses, never the inference itself.
package ml

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/contentmod/audio-pipeline/domain/ports"
)

// HTTPClient is the narrow dependency both Transcriber and Classifier take,
// satisfied by *http.Client or any fake in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transcriber calls an HTTP transcription service.
type Transcriber struct {
	client  HTTPClient
	baseURL string
}

var _ ports.Transcriber = (*Transcriber)(nil)

// NewTranscriber builds a Transcriber posting to baseURL + "/transcribe".
func NewTranscriber(client HTTPClient, baseURL string) *Transcriber {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Transcriber{client: client, baseURL: baseURL}
}

type transcribeRequest struct {
	OpusPath string `json:"opus_path"`
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Transcribe posts opusPath to the transcription service and returns the
// typed result.
func (t *Transcriber) Transcribe(ctx context.Context, opusPath string) (ports.TranscriptionResult, error) {
	body, err := json.Marshal(transcribeRequest{OpusPath: opusPath})
	if err != nil {
		return ports.TranscriptionResult{}, fmt.Errorf("ml: failed to marshal transcribe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return ports.TranscriptionResult{}, fmt.Errorf("ml: failed to build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return ports.TranscriptionResult{}, fmt.Errorf("ml: transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.TranscriptionResult{}, fmt.Errorf("ml: transcribe service returned status %d", resp.StatusCode)
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.TranscriptionResult{}, fmt.Errorf("ml: failed to decode transcribe response: %w", err)
	}

	return ports.TranscriptionResult{
		Text:       out.Text,
		Language:   out.Language,
		Confidence: out.Confidence,
	}, nil
}
