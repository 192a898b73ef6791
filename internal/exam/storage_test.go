package exam

import (
	"context"
	"testing"
	"time"

	"github.com/pavelanni/techcert/internal/model"
)

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	s := NewStorage(kv, "tab-1")

	u, err := s.LoadUser(ctx)
	if err != nil || u != nil {
		t.Fatalf("LoadUser on empty = %v, %v; want nil, nil", u, err)
	}

	want := model.User{Name: "Jane", Email: "jane@example.com", ID: "T-1", UserID: "jdoe"}
	if err := s.SaveUser(ctx, want); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	got, err := s.LoadUser(ctx)
	if err != nil || got == nil || *got != want {
		t.Fatalf("LoadUser = %+v, %v; want %+v", got, err, want)
	}

	end := time.Date(2024, 5, 1, 10, 0, 0, 123_000_000, time.UTC)
	if err := s.SaveEndTime(ctx, end); err != nil {
		t.Fatalf("SaveEndTime: %v", err)
	}
	if raw := kv.data["tab-1:"+EndTimeKey]; raw != "1714557600123" {
		t.Errorf("stored end time = %q, want epoch milliseconds", raw)
	}
	loaded, ok, err := s.LoadEndTime(ctx)
	if err != nil || !ok || !loaded.Equal(end) {
		t.Errorf("LoadEndTime = %v, %v, %v; want %v", loaded, ok, err, end)
	}

	sess := NewSession()
	sess.Answers["m1q1"] = "A"
	if err := s.SaveSession(ctx, SavedSession{View: "exam", Session: sess}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	saved, err := s.LoadSession(ctx)
	if err != nil || saved == nil {
		t.Fatalf("LoadSession = %v, %v", saved, err)
	}
	if saved.View != "exam" || saved.Session.Answers["m1q1"] != "A" {
		t.Errorf("LoadSession = %+v", saved)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(kv.data) != 0 {
		t.Errorf("ClearAll left %d keys", len(kv.data))
	}
}

func TestStorageScopesByClient(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	a := NewStorage(kv, "a")
	b := NewStorage(kv, "b")

	if err := a.SaveUser(ctx, model.User{Name: "A"}); err != nil {
		t.Fatal(err)
	}
	u, err := b.LoadUser(ctx)
	if err != nil || u != nil {
		t.Errorf("client b sees client a's user: %+v", u)
	}
}

func TestStorageBadEndTime(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	kv.data["c:"+EndTimeKey] = "soon"
	_, ok, err := NewStorage(kv, "c").LoadEndTime(ctx)
	if err == nil || ok {
		t.Errorf("LoadEndTime on garbage = %v, %v; want error", ok, err)
	}
}
