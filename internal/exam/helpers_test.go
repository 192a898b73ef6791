package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/techcert/internal/model"
)

func testModules() []model.Module {
	abc := map[string]string{"A": "alpha", "B": "bravo", "C": "charlie"}
	return []model.Module{
		{ID: "1", Title: "Safety", ItemCount: 3, Questions: []model.Question{
			{ID: "m1q1", Text: "First?", Choices: abc, Correct: "A"},
			{ID: "m1q2", Text: "Second?", Choices: abc, Correct: "B"},
			{ID: "m1q3", Text: "Third?", Choices: abc, Correct: "C"},
		}},
		{ID: "2", Title: "Tools", ItemCount: 2, Questions: []model.Question{
			{ID: "m2q1", Text: "Fourth?", Choices: abc, Correct: "A"},
			{ID: "m2q2", Text: "Fifth?", Choices: abc, Correct: "B"},
		}},
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mapKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapKV() *mapKV { return &mapKV{data: make(map[string]string)} }

func (m *mapKV) GetValue(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapKV) SetValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapKV) DeleteValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeBackend struct {
	mu       sync.Mutex
	trainees map[string]model.Trainee
	pass     map[string]string
	records  []model.ExamRecord
	saveErr  error
	banner   string
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		trainees: make(map[string]model.Trainee),
		pass:     make(map[string]string),
	}
	b.trainees["jdoe"] = model.Trainee{Username: "jdoe", Name: "Jane Doe", Email: "jane@example.com", ID: "T-1"}
	b.pass["jdoe"] = "secret1"
	return b
}

func (b *fakeBackend) Authenticate(_ context.Context, username, password string) (*model.Trainee, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trainees[username]
	if !ok || b.pass[username] != password {
		return nil, nil
	}
	return &t, nil
}

func (b *fakeBackend) GetTrainee(_ context.Context, username string) (*model.Trainee, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trainees[username]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (b *fakeBackend) AddTrainee(_ context.Context, nt model.NewTrainee) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trainees[nt.Username] = model.Trainee{Username: nt.Username, Name: nt.Name, Email: nt.Email, ID: nt.ID}
	b.pass[nt.Username] = nt.Password
	return nil
}

func (b *fakeBackend) SaveRecord(_ context.Context, rec model.ExamRecord) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return "", b.saveErr
	}
	rec.ID = fmt.Sprintf("rec-%d", len(b.records)+1)
	b.records = append(b.records, rec)
	return rec.ID, nil
}

func (b *fakeBackend) RecordsForUser(_ context.Context, userID string) ([]model.ExamRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []model.ExamRecord
	for _, r := range b.records {
		if r.User.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *fakeBackend) GetRecord(_ context.Context, id string) (*model.ExamRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (b *fakeBackend) Banner() string { return b.banner }

func (b *fakeBackend) recordCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

type offlineErr struct{}

func (offlineErr) Error() string { return "offline" }
func (offlineErr) Offline() bool { return true }

var errWrite = errors.New("disk full")

type testEnv struct {
	deps    Deps
	clock   *fakeClock
	kv      *mapKV
	backend *fakeBackend
}

func newTestEnv(t *testing.T, duration time.Duration) *testEnv {
	t.Helper()
	env := &testEnv{clock: newFakeClock(), kv: newMapKV(), backend: newFakeBackend()}
	env.deps = Deps{
		Backend: env.backend,
		KV:      env.kv,
		Modules: testModules(),
		Config: model.Config{
			ExamDuration:   duration,
			PassingPercent: 70,
		},
		Now: env.clock.Now,
	}
	return env
}

func (env *testEnv) controller(t *testing.T, clientID string) *Controller {
	t.Helper()
	c := NewController(env.deps, clientID)
	t.Cleanup(func() {
		c.Close()
		c.Wait()
	})
	return c
}

func signedIn(t *testing.T, env *testEnv, clientID string) *Controller {
	t.Helper()
	c := env.controller(t, clientID)
	if err := c.Login(context.Background(), "jdoe", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return c
}

func answerAndNext(t *testing.T, c *Controller, qid, choice string) Step {
	t.Helper()
	ctx := context.Background()
	ok, err := c.Answer(ctx, qid, choice)
	if err != nil || !ok {
		t.Fatalf("Answer(%s, %s) = %v, %v", qid, choice, ok, err)
	}
	step, _, err := c.NextQuestion(ctx)
	if err != nil {
		t.Fatalf("NextQuestion after %s: %v", qid, err)
	}
	return step
}
