package ml

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestTranscriber_Transcribe(t *testing.T) {
	fake := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/transcribe", req.URL.Path)
		return jsonResponse(http.StatusOK, `{"text":"hello","language":"en","confidence":0.98}`), nil
	})

	tr := NewTranscriber(fake, "http://ml.internal")
	res, err := tr.Transcribe(context.Background(), "/scratch/batch-1/clip1.opus")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, 0.98, res.Confidence)
}

func TestTranscriber_NonOKStatusIsError(t *testing.T) {
	fake := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `{}`), nil
	})

	tr := NewTranscriber(fake, "http://ml.internal")
	_, err := tr.Transcribe(context.Background(), "/scratch/batch-1/clip1.opus")
	assert.Error(t, err)
}

func TestClassifier_Classify(t *testing.T) {
	fake := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/classify", req.URL.Path)
		return jsonResponse(http.StatusOK, `{"flagged":true,"score":0.7,"category":"spam"}`), nil
	})

	c := NewClassifier(fake, "http://ml.internal")
	res, err := c.Classify(context.Background(), "some transcript text")
	require.NoError(t, err)
	assert.True(t, res.Flagged)
	assert.Equal(t, 0.7, res.Score)
}
