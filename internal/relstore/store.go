// Package relstore implements the relational-store contract over Postgres
// via sqlx, persisting audio records, transcripts, classifications, and
// the flagged-items view consumed by review tooling.
package relstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/contentmod/audio-pipeline/domain/model"
	"github.com/contentmod/audio-pipeline/domain/ports"
	pkgerrors "github.com/contentmod/audio-pipeline/pkg/errors"
)

// Store implements ports.RelationalStore over a *sqlx.DB.
type Store struct {
	db *sqlx.DB
}

var _ ports.RelationalStore = (*Store)(nil)

// Open connects to Postgres at dsn and runs pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("relstore: failed to connect: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-connected *sqlx.DB, skipping migration (tests
// and callers that migrate separately).
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertAudioRecord inserts a new AudioRecord with status=pending and
// returns the surrogate id.
func (s *Store) InsertAudioRecord(ctx context.Context, rec *model.AudioRecord) (int64, error) {
	const q = `
		INSERT INTO audio_records (original_filename, archive_source, duration_seconds, byte_size, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, q,
		rec.OriginalFilename, rec.ArchiveSource, rec.DurationSeconds, rec.ByteSize, model.StatusPending,
	).Scan(&id)
	if err != nil {
		return 0, pkgerrors.NewPersistenceError("audio_records", "failed to insert audio record", err)
	}
	return id, nil
}

// SetAudioStatus updates the lifecycle status of one audio record.
func (s *Store) SetAudioStatus(ctx context.Context, audioID int64, status model.AudioStatus) error {
	const q = `UPDATE audio_records SET status = $1, processed_at = now() WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, q, string(status), audioID); err != nil {
		return pkgerrors.NewPersistenceError("audio_records", "failed to update status", err)
	}
	return nil
}

// SetAudioObjectKey records the object key an audio record was uploaded to.
func (s *Store) SetAudioObjectKey(ctx context.Context, audioID int64, objectKey string) error {
	const q = `UPDATE audio_records SET object_key = $1 WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, q, objectKey, audioID); err != nil {
		return pkgerrors.NewPersistenceError("audio_records", "failed to set object key", err)
	}
	return nil
}

// InsertTranscript inserts a transcript row for an audio record.
func (s *Store) InsertTranscript(ctx context.Context, t *model.Transcript) (int64, error) {
	const q = `
		INSERT INTO transcripts (audio_id, text, language, confidence)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, q, t.AudioID, t.Text, t.Language, t.Confidence).Scan(&id)
	if err != nil {
		return 0, pkgerrors.NewPersistenceError("transcripts", "failed to insert transcript", err)
	}
	return id, nil
}

// InsertClassification inserts a classification row for an audio record.
func (s *Store) InsertClassification(ctx context.Context, c *model.Classification) (int64, error) {
	const q = `
		INSERT INTO classifications (audio_id, flagged, score, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, q, c.AudioID, c.Flagged, c.Score, c.Category).Scan(&id)
	if err != nil {
		return 0, pkgerrors.NewPersistenceError("classifications", "failed to insert classification", err)
	}
	return id, nil
}

type dbFlaggedItem struct {
	AudioID   int64          `db:"audio_id"`
	Filename  string         `db:"filename"`
	BatchID   string         `db:"batch_id"`
	Score     float64        `db:"score"`
	Category  sql.NullString `db:"category"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

// FlaggedItems returns up to limit rows from the flagged_items view, most
// recent first.
func (s *Store) FlaggedItems(ctx context.Context, limit int) ([]model.FlaggedItem, error) {
	const q = `SELECT audio_id, filename, batch_id, score, category, created_at FROM flagged_items LIMIT $1`

	var rows []dbFlaggedItem
	if err := s.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, pkgerrors.NewPersistenceError("flagged_items", "failed to query flagged items", err)
	}

	out := make([]model.FlaggedItem, 0, len(rows))
	for _, r := range rows {
		item := model.FlaggedItem{
			AudioID:  r.AudioID,
			Filename: r.Filename,
			BatchID:  r.BatchID,
			Score:    r.Score,
		}
		if r.Category.Valid {
			cat := r.Category.String
			item.Category = &cat
		}
		if r.CreatedAt.Valid {
			item.CreatedAt = r.CreatedAt.Time
		}
		out = append(out, item)
	}
	return out, nil
}
