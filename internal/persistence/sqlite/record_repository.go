package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/qr-pointage/internal/persistence"
)

const recordColumns = `id, user_id, date, entry_time, exit_time, status, comment,
	validated_by, validated_at, latitude, longitude, site, created_at, updated_at`

// RecordRepository implements persistence.RecordRepository using SQLite.
// The UNIQUE (user_id, date) constraint settles racing first scans.
type RecordRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewRecordRepository creates a new SQLite attendance record repository
func NewRecordRepository(pool *ConnectionPool) *RecordRepository {
	return &RecordRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// GetRecordForDay returns the record of userID dated date.
func (r *RecordRepository) GetRecordForDay(ctx context.Context, userID, date string) (persistence.Record, error) {
	if userID == "" || date == "" {
		return persistence.Record{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE user_id = ? AND date = ?`, userID, date)
	return r.scanRecord(row)
}

// GetRecord returns the record with the given ID.
func (r *RecordRepository) GetRecord(ctx context.Context, id string) (persistence.Record, error) {
	if id == "" {
		return persistence.Record{}, persistence.ErrNotFound
	}
	return r.getRecord(ctx, r.pool.DB(), id)
}

// ListRecordsByUser returns the records of userID, most recent day first.
func (r *RecordRepository) ListRecordsByUser(ctx context.Context, userID string, filter persistence.RecordFilter) ([]persistence.Record, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + recordColumns + ` FROM attendance_records WHERE user_id = ?`)
	args := []any{userID}

	switch filter.Status {
	case persistence.RecordFilterPending:
		query.WriteString(` AND status <> ?`)
		args = append(args, persistence.StatusValidated)
	case persistence.RecordFilterValidated:
		query.WriteString(` AND status = ?`)
		args = append(args, persistence.StatusValidated)
	}
	if filter.Since != "" {
		query.WriteString(` AND date >= ?`)
		args = append(args, filter.Since)
	}
	query.WriteString(` ORDER BY date DESC, entry_time ASC`)

	rows, err := r.pool.DB().QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	records := make([]persistence.Record, 0)
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}

// InsertRecord stores a new record and returns ErrDuplicate when the user
// already has one for that day.
func (r *RecordRepository) InsertRecord(ctx context.Context, record persistence.Record) (persistence.Record, error) {
	if record.ID == "" || record.UserID == "" || record.Date == "" {
		return persistence.Record{}, persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Date,
		nullTime(record.EntryTime),
		nullTime(record.ExitTime),
		record.Status,
		nullString(record.Comment),
		nullString(record.ValidatedBy),
		nullTime(record.ValidatedAt),
		nullFloat(record.Latitude),
		nullFloat(record.Longitude),
		record.Site,
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		return persistence.Record{}, r.mapper.MapError(err)
	}
	return r.GetRecord(ctx, record.ID)
}

// UpdateRecord applies the non-nil fields of patch in a single statement, so
// the table constraints judge the merged row.
func (r *RecordRepository) UpdateRecord(ctx context.Context, id string, patch persistence.RecordPatch) (persistence.Record, error) {
	if id == "" {
		return persistence.Record{}, persistence.ErrNotFound
	}

	var updatedAt sql.NullString
	if !patch.UpdatedAt.IsZero() {
		updatedAt = sql.NullString{String: formatTime(patch.UpdatedAt), Valid: true}
	}

	var updated persistence.Record
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		const query = `
			UPDATE attendance_records
			SET exit_time = COALESCE(?, exit_time),
			    status = COALESCE(?, status),
			    comment = COALESCE(?, comment),
			    validated_by = COALESCE(?, validated_by),
			    validated_at = COALESCE(?, validated_at),
			    updated_at = COALESCE(?, updated_at)
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			nullTime(patch.ExitTime),
			nullString(patch.Status),
			nullString(patch.Comment),
			nullString(patch.ValidatedBy),
			nullTime(patch.ValidatedAt),
			updatedAt,
			id,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}

		updated, err = r.getRecord(ctx, tx, id)
		return err
	})
	if err != nil {
		return persistence.Record{}, err
	}
	return updated, nil
}

func (r *RecordRepository) getRecord(ctx context.Context, q queryer, id string) (persistence.Record, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`, id)
	return r.scanRecord(row)
}

func (r *RecordRepository) scanRecord(row rowScanner) (persistence.Record, error) {
	var record persistence.Record
	var entryTime, exitTime, validatedAt, comment, validatedBy sql.NullString
	var latitude, longitude sql.NullFloat64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Date,
		&entryTime,
		&exitTime,
		&record.Status,
		&comment,
		&validatedBy,
		&validatedAt,
		&latitude,
		&longitude,
		&record.Site,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Record{}, r.mapper.MapError(err)
	}

	if record.EntryTime, err = parseNullTime(entryTime); err != nil {
		return persistence.Record{}, fmt.Errorf("failed to parse entry_time: %w", err)
	}
	if record.ExitTime, err = parseNullTime(exitTime); err != nil {
		return persistence.Record{}, fmt.Errorf("failed to parse exit_time: %w", err)
	}
	if record.ValidatedAt, err = parseNullTime(validatedAt); err != nil {
		return persistence.Record{}, fmt.Errorf("failed to parse validated_at: %w", err)
	}
	if record.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if record.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Record{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	record.Comment = stringPtr(comment)
	record.ValidatedBy = stringPtr(validatedBy)
	record.Latitude = floatPtr(latitude)
	record.Longitude = floatPtr(longitude)
	return record, nil
}
