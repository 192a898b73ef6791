package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/techcert/internal/model"
)

const recordColumns = `id, user_id, name, email, trainee_id, timestamp, module_results, answers, total_score, total_possible`

// SaveRecord stores a finished attempt under a new id and returns the id.
func (s *Store) SaveRecord(ctx context.Context, rec model.ExamRecord) (string, error) {
	results, err := json.Marshal(rec.ModuleResults)
	if err != nil {
		return "", fmt.Errorf("encode module results: %w", err)
	}
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_results (collection, `+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.results, id, rec.User.UserID, rec.User.Name, rec.User.Email, rec.User.ID,
		rec.Timestamp.UTC(), string(results), string(answers), rec.TotalScore, rec.TotalPossible,
	)
	if err != nil {
		return "", fmt.Errorf("save exam record: %w", err)
	}
	slog.Info("saved exam record", "id", id, "user", rec.User.UserID, "score", rec.TotalScore, "possible", rec.TotalPossible)
	s.publishResults(ctx)
	return id, nil
}

// ListRecords returns every record, newest first.
func (s *Store) ListRecords(ctx context.Context) ([]model.ExamRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM exam_results WHERE collection = ? ORDER BY timestamp DESC`, s.results)
}

// RecordsForUser returns the records of one trainee, newest first.
func (s *Store) RecordsForUser(ctx context.Context, userID string) ([]model.ExamRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM exam_results WHERE collection = ? AND user_id = ? ORDER BY timestamp DESC`,
		s.results, userID)
}

// GetRecord returns a record by id, or nil if not found.
func (s *Store) GetRecord(ctx context.Context, id string) (*model.ExamRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM exam_results WHERE collection = ? AND id = ?`, s.results, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &rec, nil
}

// ClearRecords deletes every record and returns how many were removed.
func (s *Store) ClearRecords(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exam_results WHERE collection = ?`, s.results)
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Info("cleared exam records", "count", n)
	s.publishResults(ctx)
	return int(n), nil
}

// ExportResults builds the JSON export of all records.
func (s *Store) ExportResults(ctx context.Context, appID string) (model.ResultsExport, error) {
	recs, err := s.ListRecords(ctx)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list records: %w", err)
	}
	return model.ResultsExport{
		AppID:      appID,
		ExportedAt: time.Now().UTC(),
		Count:      len(recs),
		Records:    recs,
	}, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]model.ExamRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var recs []model.ExamRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.ExamRecord, error) {
	var (
		rec              model.ExamRecord
		results, answers string
	)
	err := row.Scan(&rec.ID, &rec.User.UserID, &rec.User.Name, &rec.User.Email, &rec.User.ID,
		&rec.Timestamp, &results, &answers, &rec.TotalScore, &rec.TotalPossible)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(results), &rec.ModuleResults); err != nil {
		return rec, fmt.Errorf("decode module results of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return rec, fmt.Errorf("decode answers of %s: %w", rec.ID, err)
	}
	return rec, nil
}
