package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/ascgate/internal/core"
)

// DefaultUploadListLimit caps ListUploads when no limit is given.
const DefaultUploadListLimit = 50

// SaveUpload inserts or updates an upload journal entry.
func (s *Store) SaveUpload(ctx context.Context, record *core.UploadRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if record == nil {
		return errors.New("upload record is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	id := strings.TrimSpace(record.ID)
	if id == "" {
		return errors.New("upload id is required")
	}

	now := time.Now().UTC()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO uploads (id, kind, file_name, file_size, set_id, asset_id, checksum, state, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			asset_id = excluded.asset_id,
			checksum = excluded.checksum,
			state = excluded.state,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, id, record.Kind, record.FileName, record.FileSize, record.SetID,
		nullString(record.AssetID), nullString(record.Checksum), string(record.State),
		nullString(record.Error), createdAt.UTC().Unix(), updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}

	return nil
}

// GetUpload returns an upload journal entry, or nil when it does not exist.
func (s *Store) GetUpload(ctx context.Context, id string) (*core.UploadRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, kind, file_name, file_size, set_id, asset_id, checksum, state, error, created_at, updated_at
		FROM uploads
		WHERE id = ?
	`, strings.TrimSpace(id))

	record, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch upload: %w", err)
	}
	return record, nil
}

// ListUploads returns the most recently updated uploads, optionally filtered
// by state.
func (s *Store) ListUploads(ctx context.Context, state core.UploadState, limit int) ([]core.UploadRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = DefaultUploadListLimit
	}

	query := `
		SELECT id, kind, file_name, file_size, set_id, asset_id, checksum, state, error, created_at, updated_at
		FROM uploads`
	args := make([]any, 0, 2)
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY updated_at DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	records := make([]core.UploadRecord, 0)
	for rows.Next() {
		record, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	return records, nil
}

// PruneUploads deletes journal entries last updated before cutoff.
func (s *Store) PruneUploads(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM uploads WHERE updated_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune uploads: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*core.UploadRecord, error) {
	var (
		record    core.UploadRecord
		assetID   sql.NullString
		checksum  sql.NullString
		state     string
		errText   sql.NullString
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&record.ID, &record.Kind, &record.FileName, &record.FileSize, &record.SetID,
		&assetID, &checksum, &state, &errText, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record.AssetID = assetID.String
	record.Checksum = checksum.String
	record.State = core.UploadState(state)
	record.Error = errText.String
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	record.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &record, nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
