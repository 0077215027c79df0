package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kdimtricp/formfill/internal/models"
)

const defaultHistoryLimit = 50

type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Insert(ctx context.Context, rec *models.ExtractionRecord) error {
	query := r.db.rebind(`
		INSERT INTO extraction_history (
			id, workspace_id, session_id, filename, template, outcome,
			fields_found, fields_total, error_message, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.WorkspaceID,
		nullString(rec.SessionID),
		rec.Filename,
		rec.Template,
		string(rec.Outcome),
		rec.FieldsFound,
		rec.FieldsTotal,
		nullString(rec.ErrorMessage),
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction record: %w", err)
	}
	return nil
}

// List returns the most recent records first. A non-empty workspaceID
// restricts the list to that workspace.
func (r *HistoryRepository) List(ctx context.Context, workspaceID string, limit int) ([]models.ExtractionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `
		SELECT id, workspace_id, session_id, filename, template, outcome,
			fields_found, fields_total, error_message, duration_ms, created_at
		FROM extraction_history`
	args := []any{}
	if workspaceID != "" {
		query += ` WHERE workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction records: %w", err)
	}
	defer rows.Close()

	var records []models.ExtractionRecord
	for rows.Next() {
		var (
			rec        models.ExtractionRecord
			sessionID  sql.NullString
			errMessage sql.NullString
			outcome    string
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.WorkspaceID,
			&sessionID,
			&rec.Filename,
			&rec.Template,
			&outcome,
			&rec.FieldsFound,
			&rec.FieldsTotal,
			&errMessage,
			&durationMS,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction record: %w", err)
		}
		rec.SessionID = sessionID.String
		rec.ErrorMessage = errMessage.String
		rec.Outcome = models.Outcome(outcome)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extraction records: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
