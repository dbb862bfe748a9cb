package ml

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/contentmod/audio-pipeline/domain/ports"
	pkgerrors "github.com/contentmod/audio-pipeline/pkg/errors"
)

// Classifier calls an HTTP content-classification service and defends
// against free-form or malformed model output.
type Classifier struct {
	client  HTTPClient
	baseURL string
}

var _ ports.Classifier = (*Classifier)(nil)

// NewClassifier builds a Classifier posting to baseURL + "/classify".
func NewClassifier(client HTTPClient, baseURL string) *Classifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Classifier{client: client, baseURL: baseURL}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// classifyPayload is the expected shape of the classifier's JSON object.
// Every field is a pointer so a missing key is distinguishable from an
// explicit zero value, matching the defaulting rule in ParseClassification.
type classifyPayload struct {
	Flagged  *bool    `json:"flagged"`
	Score    *float64 `json:"score"`
	Category *string  `json:"category"`
}

// Classify posts text to the classification service and parses its
// response defensively: a malformed body gets one repair attempt before
// the call is treated as a failure.
func (c *Classifier) Classify(ctx context.Context, text string) (ports.ClassificationResult, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return ports.ClassificationResult{}, fmt.Errorf("ml: failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return ports.ClassificationResult{}, fmt.Errorf("ml: failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.ClassificationResult{}, fmt.Errorf("ml: classify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.ClassificationResult{}, fmt.Errorf("ml: classify service returned status %d", resp.StatusCode)
	}

	raw := new(bytes.Buffer)
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		return ports.ClassificationResult{}, fmt.Errorf("ml: failed to read classify response: %w", err)
	}

	return ParseClassification(raw.Bytes())
}

// ParseClassification decodes raw classifier output into a ClassificationResult,
// defaulting any missing key to {flagged: false, score: 0.0, category: nil}.
// If raw is not valid JSON, it is repaired once by extracting the first
// top-level {...} substring; a second parse failure is terminal.
func ParseClassification(raw []byte) (ports.ClassificationResult, error) {
	payload, err := decodeClassifyPayload(raw)
	if err != nil {
		repaired, ok := extractJSONObject(raw)
		if !ok {
			return ports.ClassificationResult{}, pkgerrors.NewClassifierError("classifier output is not valid JSON", string(raw), err)
		}
		payload, err = decodeClassifyPayload(repaired)
		if err != nil {
			return ports.ClassificationResult{}, pkgerrors.NewClassifierError("classifier output remained invalid after repair", string(raw), err)
		}
	}

	result := ports.ClassificationResult{}
	if payload.Flagged != nil {
		result.Flagged = *payload.Flagged
	}
	if payload.Score != nil {
		result.Score = *payload.Score
	}
	result.Category = payload.Category

	return result, nil
}

func decodeClassifyPayload(raw []byte) (classifyPayload, error) {
	var p classifyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return classifyPayload{}, err
	}
	return p, nil
}

// extractJSONObject returns the first balanced {...} substring in raw.
func extractJSONObject(raw []byte) ([]byte, bool) {
	s := string(raw)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), true
			}
		}
	}
	return nil, false
}
