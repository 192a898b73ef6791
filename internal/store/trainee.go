package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/techcert/internal/model"
)

// AddTrainee hashes the password and inserts a new trainee.
func (s *Store) AddTrainee(ctx context.Context, nt model.NewTrainee) error {
	existing, err := s.GetTrainee(ctx, nt.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrTraineeExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nt.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.insertTrainee(ctx, nt, string(hash)); err != nil {
		slog.Error("failed to add trainee", "username", nt.Username, "error", err)
		return fmt.Errorf("add trainee %s: %w", nt.Username, err)
	}
	slog.Info("added trainee", "username", nt.Username)
	s.publishTrainees(ctx)
	return nil
}

func (s *Store) insertTrainee(ctx context.Context, nt model.NewTrainee, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trainees (collection, username, password_hash, name, email, trainee_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.trainees, nt.Username, hash, nt.Name, nt.Email, nt.ID, time.Now().UTC(),
	)
	return err
}

// GetTrainee returns a trainee by username, or nil if not found.
func (s *Store) GetTrainee(ctx context.Context, username string) (*model.Trainee, error) {
	var t model.Trainee
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, name, email, trainee_id, created_at
		 FROM trainees WHERE collection = ? AND username = ?`, s.trainees, username,
	).Scan(&t.Username, &t.PasswordHash, &t.Name, &t.Email, &t.ID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trainee %s: %w", username, err)
	}
	return &t, nil
}

// ListTrainees returns all trainees ordered by username.
func (s *Store) ListTrainees(ctx context.Context) ([]model.Trainee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password_hash, name, email, trainee_id, created_at
		 FROM trainees WHERE collection = ? ORDER BY username`, s.trainees,
	)
	if err != nil {
		return nil, fmt.Errorf("list trainees: %w", err)
	}
	defer rows.Close()
	var trainees []model.Trainee
	for rows.Next() {
		var t model.Trainee
		if err := rows.Scan(&t.Username, &t.PasswordHash, &t.Name, &t.Email, &t.ID, &t.CreatedAt); err != nil {
			return nil, err
		}
		trainees = append(trainees, t)
	}
	return trainees, rows.Err()
}

// DeleteTrainee removes a trainee. Past exam records are kept.
func (s *Store) DeleteTrainee(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM trainees WHERE collection = ? AND username = ?`, s.trainees, username,
	); err != nil {
		slog.Error("failed to delete trainee", "username", username, "error", err)
		return fmt.Errorf("delete trainee %s: %w", username, err)
	}
	slog.Info("deleted trainee", "username", username)
	s.publishTrainees(ctx)
	return nil
}

// Authenticate returns the trainee whose username and password match, or nil.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*model.Trainee, error) {
	t, err := s.GetTrainee(ctx, username)
	if err != nil || t == nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return t, nil
}

// SeedTrainees inserts seeds unless the first seed's username already exists,
// so a populated collection is never touched. It returns how many were added.
func (s *Store) SeedTrainees(ctx context.Context, seeds []model.NewTrainee) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}
	first, err := s.GetTrainee(ctx, seeds[0].Username)
	if err != nil {
		return 0, err
	}
	if first != nil {
		return 0, nil
	}
	slog.Info("initial trainee data not found, seeding", "count", len(seeds))
	n := 0
	for _, seed := range seeds {
		existing, err := s.GetTrainee(ctx, seed.Username)
		if err != nil {
			return n, err
		}
		if existing != nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return n, fmt.Errorf("hash password for %s: %w", seed.Username, err)
		}
		if err := s.insertTrainee(ctx, seed, string(hash)); err != nil {
			return n, fmt.Errorf("seed trainee %s: %w", seed.Username, err)
		}
		n++
	}
	s.publishTrainees(ctx)
	return n, nil
}
