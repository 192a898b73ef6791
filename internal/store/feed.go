package store

import (
	"context"
	"log/slog"

	"github.com/pavelanni/techcert/internal/model"
)

// Message ids reported by Banner.
const (
	BannerOffline         = "BannerOffline"
	BannerTraineeFallback = "BannerTraineeFallback"
)

type subscriber struct {
	trainees func([]model.Trainee)
	results  func([]model.ExamRecord)
	onErr    func(error)
}

// SubscribeTrainees calls fn with the full trainee list now and after every
// trainee write. The returned function unsubscribes.
func (s *Store) SubscribeTrainees(ctx context.Context, fn func([]model.Trainee), onErr func(error)) func() {
	unsubscribe := s.subscribe(subscriber{trainees: fn, onErr: onErr})
	list, err := s.ListTrainees(ctx)
	if err != nil {
		s.traineeFetchFailed(err, subscriber{onErr: onErr})
		return unsubscribe
	}
	fn(list)
	return unsubscribe
}

// SubscribeResults calls fn with all records now and after every record write.
func (s *Store) SubscribeResults(ctx context.Context, fn func([]model.ExamRecord), onErr func(error)) func() {
	unsubscribe := s.subscribe(subscriber{results: fn, onErr: onErr})
	recs, err := s.ListRecords(ctx)
	if err != nil {
		slog.Error("failed to fetch results", "error", err)
		if onErr != nil {
			onErr(err)
		}
		return unsubscribe
	}
	fn(recs)
	return unsubscribe
}

func (s *Store) subscribe(sub subscriber) func() {
	s.mu.Lock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = sub
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotSubs() []subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

func (s *Store) publishTrainees(ctx context.Context) {
	subs := s.snapshotSubs()
	if len(subs) == 0 {
		return
	}
	list, err := s.ListTrainees(ctx)
	if err != nil {
		for _, sub := range subs {
			if sub.trainees != nil {
				s.traineeFetchFailed(err, sub)
			}
		}
		return
	}
	s.setBanner("")
	for _, sub := range subs {
		if sub.trainees != nil {
			sub.trainees(list)
		}
	}
}

func (s *Store) publishResults(ctx context.Context) {
	subs := s.snapshotSubs()
	if len(subs) == 0 {
		return
	}
	recs, err := s.ListRecords(ctx)
	for _, sub := range subs {
		if sub.results == nil {
			continue
		}
		if err != nil {
			if sub.onErr != nil {
				sub.onErr(err)
			}
			continue
		}
		sub.results(recs)
	}
}

func (s *Store) traineeFetchFailed(err error, sub subscriber) {
	slog.Error("failed to fetch trainees", "error", err)
	s.setBanner(BannerTraineeFallback)
	if sub.onErr != nil {
		sub.onErr(err)
	}
}
