package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/techcert/internal/model"
)

// TraineeFallback answers trainee reads from a built-in list whenever the
// database read fails, and reports BannerTraineeFallback while it does.
// Writes still go to the database and fail with it.
type TraineeFallback struct {
	*Store
	defaults *Offline
}

// WithTraineeFallback wraps s with defaults as the fallback trainee list.
func WithTraineeFallback(s *Store, defaults []model.NewTrainee) (*TraineeFallback, error) {
	off, err := NewOffline(defaults, BannerTraineeFallback)
	if err != nil {
		return nil, fmt.Errorf("prepare default trainees: %w", err)
	}
	return &TraineeFallback{Store: s, defaults: off}, nil
}

func (f *TraineeFallback) useDefaults(err error) {
	slog.Error("failed to fetch trainees, using built-in defaults", "error", err)
	f.setBanner(BannerTraineeFallback)
}

func (f *TraineeFallback) recovered() {
	if f.Banner() == BannerTraineeFallback {
		slog.Info("trainee store reachable again")
		f.setBanner("")
	}
}

func (f *TraineeFallback) GetTrainee(ctx context.Context, username string) (*model.Trainee, error) {
	t, err := f.Store.GetTrainee(ctx, username)
	if err != nil {
		f.useDefaults(err)
		return f.defaults.GetTrainee(ctx, username)
	}
	f.recovered()
	return t, nil
}

func (f *TraineeFallback) ListTrainees(ctx context.Context) ([]model.Trainee, error) {
	list, err := f.Store.ListTrainees(ctx)
	if err != nil {
		f.useDefaults(err)
		return f.defaults.ListTrainees(ctx)
	}
	f.recovered()
	return list, nil
}

func (f *TraineeFallback) Authenticate(ctx context.Context, username, password string) (*model.Trainee, error) {
	t, err := f.Store.Authenticate(ctx, username, password)
	if err != nil {
		f.useDefaults(err)
		return f.defaults.Authenticate(ctx, username, password)
	}
	f.recovered()
	return t, nil
}

// SubscribeTrainees behaves like Store.SubscribeTrainees, but a failed fetch
// delivers the default list before onErr is called.
func (f *TraineeFallback) SubscribeTrainees(ctx context.Context, fn func([]model.Trainee), onErr func(error)) func() {
	return f.Store.SubscribeTrainees(ctx, fn, func(err error) {
		if list, lerr := f.defaults.ListTrainees(ctx); lerr == nil {
			fn(list)
		}
		if onErr != nil {
			onErr(err)
		}
	})
}
