package relstore

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentmod/audio-pipeline/domain/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewStore(sqlxDB), mock
}

func TestStore_InsertAudioRecord(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO audio_records`).
		WithArgs("clip1.mp3", "batch-1", 0.0, int64(0), string(model.StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := s.InsertAudioRecord(context.Background(), &model.AudioRecord{
		OriginalFilename: "clip1.mp3",
		ArchiveSource:    "batch-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetAudioStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE audio_records SET status`).
		WithArgs(string(model.StatusFlagged), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SetAudioStatus(context.Background(), 42, model.StatusFlagged)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertTranscript(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO transcripts`).
		WithArgs(int64(42), "hello world", "en", 0.95).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := s.InsertTranscript(context.Background(), &model.Transcript{
		AudioID:    42,
		Text:       "hello world",
		Language:   "en",
		Confidence: 0.95,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestStore_FlaggedItems(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"audio_id", "filename", "batch_id", "score", "category", "created_at"}).
		AddRow(int64(1), "clip1.mp3", "batch-1", 0.9, "hate_speech", nil)

	mock.ExpectQuery(`SELECT audio_id, filename, batch_id, score, category, created_at FROM flagged_items`).
		WithArgs(10).
		WillReturnRows(rows)

	items, err := s.FlaggedItems(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "clip1.mp3", items[0].Filename)
	require.NotNil(t, items[0].Category)
	assert.Equal(t, "hate_speech", *items[0].Category)
}
