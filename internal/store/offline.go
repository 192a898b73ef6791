package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/techcert/internal/model"
)

// Offline serves a fixed trainee list from memory when no database is
// available. Every write returns ErrOffline.
type Offline struct {
	mu       sync.Mutex
	trainees map[string]model.Trainee
	banner   string
}

// NewOffline hashes the fallback trainees into memory. banner is the message
// id reported by Banner.
func NewOffline(fallback []model.NewTrainee, banner string) (*Offline, error) {
	o := &Offline{trainees: make(map[string]model.Trainee, len(fallback)), banner: banner}
	now := time.Now().UTC()
	for _, nt := range fallback {
		hash, err := bcrypt.GenerateFromPassword([]byte(nt.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		o.trainees[nt.Username] = model.Trainee{
			Username:     nt.Username,
			PasswordHash: string(hash),
			Name:         nt.Name,
			Email:        nt.Email,
			ID:           nt.ID,
			CreatedAt:    now,
		}
	}
	return o, nil
}

func (o *Offline) Banner() string { return o.banner }

func (o *Offline) GetTrainee(_ context.Context, username string) (*model.Trainee, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.trainees[username]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (o *Offline) ListTrainees(_ context.Context) ([]model.Trainee, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := make([]model.Trainee, 0, len(o.trainees))
	for _, t := range o.trainees {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list, nil
}

func (o *Offline) Authenticate(ctx context.Context, username, password string) (*model.Trainee, error) {
	t, _ := o.GetTrainee(ctx, username)
	if t == nil || bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return t, nil
}

func (o *Offline) AddTrainee(_ context.Context, nt model.NewTrainee) error {
	slog.Warn("offline mode: trainee not added", "username", nt.Username)
	return ErrOffline
}

func (o *Offline) DeleteTrainee(_ context.Context, username string) error {
	slog.Warn("offline mode: trainee not deleted", "username", username)
	return ErrOffline
}

func (o *Offline) SaveRecord(_ context.Context, rec model.ExamRecord) (string, error) {
	return "", ErrOffline
}

func (o *Offline) ListRecords(context.Context) ([]model.ExamRecord, error) { return nil, nil }

func (o *Offline) RecordsForUser(context.Context, string) ([]model.ExamRecord, error) {
	return nil, nil
}

func (o *Offline) GetRecord(context.Context, string) (*model.ExamRecord, error) { return nil, nil }

func (o *Offline) ClearRecords(context.Context) (int, error) { return 0, ErrOffline }

// SubscribeTrainees delivers the fallback list once; it never changes.
func (o *Offline) SubscribeTrainees(ctx context.Context, fn func([]model.Trainee), _ func(error)) func() {
	list, _ := o.ListTrainees(ctx)
	fn(list)
	return func() {}
}

// SubscribeResults delivers an empty result set once.
func (o *Offline) SubscribeResults(_ context.Context, fn func([]model.ExamRecord), _ func(error)) func() {
	fn(nil)
	return func() {}
}
