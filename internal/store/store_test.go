package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/techcert/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", "test-app")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTestTrainee(t *testing.T, s *Store, username string) {
	t.Helper()
	err := s.AddTrainee(context.Background(), model.NewTrainee{
		Username: username,
		Password: "secret1",
		Name:     "Name of " + username,
		Email:    username + "@example.com",
		ID:       "ID-" + username,
	})
	if err != nil {
		t.Fatalf("addTestTrainee: %v", err)
	}
}

func testRecord(userID string, ts time.Time, score, possible int) model.ExamRecord {
	return model.ExamRecord{
		User:          model.User{Name: "Name of " + userID, Email: userID + "@example.com", ID: "ID-" + userID, UserID: userID},
		Timestamp:     ts,
		ModuleResults: map[string]model.ModuleResult{"1": {Score: score, Total: possible}},
		Answers:       map[string]string{"m1q1": "A"},
		TotalScore:    score,
		TotalPossible: possible,
	}
}

func TestCollectionPath(t *testing.T) {
	if got := CollectionPath("cfmti", TraineesCollection); got != "artifacts/cfmti/public/data/trainees" {
		t.Errorf("CollectionPath = %q", got)
	}
	if got := CollectionPath("", ResultsCollection); got != "artifacts/default-app-id/public/data/exam_results" {
		t.Errorf("CollectionPath with empty app = %q", got)
	}
}

func TestTraineeCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	list, err := s.ListTrainees(ctx)
	if err != nil {
		t.Fatalf("ListTrainees: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	addTestTrainee(t, s, "jdoe")
	tr, err := s.GetTrainee(ctx, "jdoe")
	if err != nil || tr == nil {
		t.Fatalf("GetTrainee = %v, %v", tr, err)
	}
	if tr.Name != "Name of jdoe" || tr.ID != "ID-jdoe" {
		t.Errorf("unexpected trainee %+v", tr)
	}
	if tr.PasswordHash == "secret1" || tr.PasswordHash == "" {
		t.Error("password stored in plain text")
	}

	// Not found.
	missing, err := s.GetTrainee(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("GetTrainee(nobody) = %v, %v; want nil, nil", missing, err)
	}

	err = s.AddTrainee(ctx, model.NewTrainee{Username: "jdoe", Password: "other1", Name: "X"})
	if !errors.Is(err, ErrTraineeExists) {
		t.Errorf("duplicate AddTrainee = %v, want ErrTraineeExists", err)
	}

	addTestTrainee(t, s, "alice")
	list, _ = s.ListTrainees(ctx)
	if len(list) != 2 || list[0].Username != "alice" {
		t.Errorf("ListTrainees = %+v", list)
	}

	if err := s.DeleteTrainee(ctx, "jdoe"); err != nil {
		t.Fatalf("DeleteTrainee: %v", err)
	}
	if tr, _ := s.GetTrainee(ctx, "jdoe"); tr != nil {
		t.Error("trainee still present after delete")
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addTestTrainee(t, s, "jdoe")

	tests := []struct {
		name     string
		user     string
		password string
		wantOK   bool
	}{
		{"match", "jdoe", "secret1", true},
		{"wrong password", "jdoe", "secret2", false},
		{"unknown user", "nobody", "secret1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := s.Authenticate(ctx, tt.user, tt.password)
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if (tr != nil) != tt.wantOK {
				t.Errorf("Authenticate = %v, want ok=%v", tr, tt.wantOK)
			}
		})
	}
}

func TestSeedTrainees(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seeds, err := LoadSeeds("")
	if err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	if len(seeds) == 0 {
		t.Fatal("no default seeds")
	}

	n, err := s.SeedTrainees(ctx, seeds)
	if err != nil || n != len(seeds) {
		t.Fatalf("SeedTrainees = %d, %v; want %d", n, err, len(seeds))
	}

	// Seeding again is a no-op, even after other trainees were deleted.
	if len(seeds) > 1 {
		if err := s.DeleteTrainee(ctx, seeds[1].Username); err != nil {
			t.Fatal(err)
		}
	}
	n, err = s.SeedTrainees(ctx, seeds)
	if err != nil || n != 0 {
		t.Errorf("second SeedTrainees = %d, %v; want 0", n, err)
	}

	tr, err := s.Authenticate(ctx, seeds[0].Username, seeds[0].Password)
	if err != nil || tr == nil {
		t.Errorf("seeded trainee cannot log in: %v", err)
	}
}

func TestRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	id1, err := s.SaveRecord(ctx, testRecord("jdoe", base, 3, 5))
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if id1 == "" {
		t.Fatal("empty record id")
	}
	if _, err := s.SaveRecord(ctx, testRecord("jdoe", base.Add(time.Hour), 4, 5)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRecord(ctx, testRecord("alice", base.Add(2*time.Hour), 5, 5)); err != nil {
		t.Fatal(err)
	}

	rec, err := s.GetRecord(ctx, id1)
	if err != nil || rec == nil {
		t.Fatalf("GetRecord = %v, %v", rec, err)
	}
	if rec.TotalScore != 3 || rec.ModuleResults["1"].Total != 5 || rec.Answers["m1q1"] != "A" {
		t.Errorf("round-tripped record = %+v", rec)
	}
	if !rec.Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp, base)
	}
	if rec.User.DisplayID() != "jdoe@example.com" {
		t.Errorf("user = %+v", rec.User)
	}

	missing, err := s.GetRecord(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetRecord(nope) = %v, %v", missing, err)
	}

	mine, err := s.RecordsForUser(ctx, "jdoe")
	if err != nil || len(mine) != 2 {
		t.Fatalf("RecordsForUser = %d, %v", len(mine), err)
	}

	all, err := s.ListRecords(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListRecords = %d, %v", len(all), err)
	}

	exp, err := s.ExportResults(ctx, "test-app")
	if err != nil || exp.Count != 3 || exp.AppID != "test-app" {
		t.Errorf("ExportResults = %+v, %v", exp, err)
	}

	n, err := s.ClearRecords(ctx)
	if err != nil || n != 3 {
		t.Errorf("ClearRecords = %d, %v; want 3", n, err)
	}
	n, _ = s.ClearRecords(ctx)
	if n != 0 {
		t.Errorf("second ClearRecords = %d, want 0", n)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	path := t.TempDir() + "/shared.db"
	a, err := New(path, "app-a")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	b, err := New(path, "app-b")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	ctx := context.Background()

	addTestTrainee(t, a, "jdoe")
	if tr, _ := b.GetTrainee(ctx, "jdoe"); tr != nil {
		t.Error("trainee visible across app namespaces")
	}
}

func TestKV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetValue(ctx, "tab:cfmti_user")
	if err != nil || v != "" {
		t.Fatalf("GetValue on empty = %q, %v", v, err)
	}
	if err := s.SetValue(ctx, "tab:cfmti_user", "one"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue(ctx, "tab:cfmti_user", "two"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetValue(ctx, "tab:cfmti_user"); v != "two" {
		t.Errorf("GetValue = %q, want two", v)
	}
	if err := s.DeleteValue(ctx, "tab:cfmti_user"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetValue(ctx, "tab:cfmti_user"); v != "" {
		t.Errorf("value survived delete: %q", v)
	}

	if err := s.SetValue(ctx, "old", "x"); err != nil {
		t.Fatal(err)
	}
	n, err := s.PurgeValues(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Errorf("PurgeValues = %d, %v; want 1", n, err)
	}
}

func TestSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		trainees [][]model.Trainee
		results  [][]model.ExamRecord
	)
	unsubT := s.SubscribeTrainees(ctx, func(list []model.Trainee) {
		mu.Lock()
		trainees = append(trainees, list)
		mu.Unlock()
	}, nil)
	unsubR := s.SubscribeResults(ctx, func(recs []model.ExamRecord) {
		mu.Lock()
		results = append(results, recs)
		mu.Unlock()
	}, nil)

	addTestTrainee(t, s, "jdoe")
	if _, err := s.SaveRecord(ctx, testRecord("jdoe", time.Now(), 1, 1)); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	if len(trainees) != 2 || len(trainees[1]) != 1 {
		t.Errorf("trainee snapshots = %v", trainees)
	}
	if len(results) != 2 || len(results[1]) != 1 {
		t.Errorf("result snapshots = %v", results)
	}
	mu.Unlock()

	unsubT()
	unsubR()
	addTestTrainee(t, s, "alice")
	mu.Lock()
	defer mu.Unlock()
	if len(trainees) != 2 {
		t.Errorf("received update after unsubscribe: %d snapshots", len(trainees))
	}
}

func TestOffline(t *testing.T) {
	ctx := context.Background()
	o, err := NewOffline([]model.NewTrainee{{Username: "demo", Password: "demo123", Name: "Demo"}}, BannerOffline)
	if err != nil {
		t.Fatalf("NewOffline: %v", err)
	}
	if o.Banner() != BannerOffline {
		t.Errorf("Banner = %q", o.Banner())
	}
	tr, err := o.Authenticate(ctx, "demo", "demo123")
	if err != nil || tr == nil {
		t.Fatalf("Authenticate = %v, %v", tr, err)
	}
	if tr, _ := o.Authenticate(ctx, "demo", "nope"); tr != nil {
		t.Error("wrong password accepted")
	}

	if _, err := o.SaveRecord(ctx, model.ExamRecord{}); !errors.Is(err, ErrOffline) {
		t.Errorf("SaveRecord = %v, want ErrOffline", err)
	}
	if err := o.AddTrainee(ctx, model.NewTrainee{Username: "x"}); !errors.Is(err, ErrOffline) {
		t.Errorf("AddTrainee = %v, want ErrOffline", err)
	}
	var oe interface{ Offline() bool }
	if !errors.As(ErrOffline, &oe) || !oe.Offline() {
		t.Error("ErrOffline does not report Offline()")
	}

	var got []model.Trainee
	o.SubscribeTrainees(ctx, func(list []model.Trainee) { got = list }, nil)
	if len(got) != 1 || got[0].Username != "demo" {
		t.Errorf("offline subscription = %+v", got)
	}
}

func TestTraineeFallbackAfterDatabaseFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addTestTrainee(t, s, "alice")

	fb, err := WithTraineeFallback(s, []model.NewTrainee{
		{Username: "tech01", Password: "pass01", Name: "Default Tech", ID: "D-1"},
	})
	if err != nil {
		t.Fatalf("WithTraineeFallback: %v", err)
	}
	if got, err := fb.Authenticate(ctx, "alice", "secret1"); err != nil || got == nil {
		t.Fatalf("Authenticate with database = %v, %v", got, err)
	}
	if b := fb.Banner(); b != "" {
		t.Errorf("banner with working database = %q", b)
	}

	s.Close()

	got, err := fb.Authenticate(ctx, "tech01", "pass01")
	if err != nil || got == nil || got.Name != "Default Tech" {
		t.Fatalf("Authenticate after failure = %+v, %v", got, err)
	}
	if got, err := fb.Authenticate(ctx, "tech01", "wrong"); err != nil || got != nil {
		t.Errorf("wrong password after failure = %+v, %v", got, err)
	}
	if b := fb.Banner(); b != BannerTraineeFallback {
		t.Errorf("banner = %q, want %q", b, BannerTraineeFallback)
	}

	list, err := fb.ListTrainees(ctx)
	if err != nil || len(list) != 1 || list[0].Username != "tech01" {
		t.Errorf("ListTrainees after failure = %+v, %v", list, err)
	}

	var delivered []model.Trainee
	var feedErr error
	unsubscribe := fb.SubscribeTrainees(ctx,
		func(l []model.Trainee) { delivered = l },
		func(err error) { feedErr = err })
	unsubscribe()
	if len(delivered) != 1 || feedErr == nil {
		t.Errorf("subscription after failure: delivered %+v, err %v", delivered, feedErr)
	}

	if err := fb.AddTrainee(ctx, model.NewTrainee{Username: "bob", Password: "secret1", Name: "Bob"}); err == nil {
		t.Error("AddTrainee succeeded on a closed database")
	}
}
