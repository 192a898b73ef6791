package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/techcert/internal/model"
)

const testKey = "sk-test-0123456789"

var seenMu sync.Mutex

func testModule() model.Module {
	return model.Module{
		ID:    "1",
		Title: "Refrigeration Cycle",
		Questions: []model.Question{
			{ID: "q1", Text: "What does superheat indicate?", Correct: "B",
				Choices: map[string]string{"A": "Voltage", "B": "Charge level"}},
		},
	}
}

// fakeAPI answers chat completions with reply, or with status when non-zero.
func fakeAPI(t *testing.T, reply string, status int, calls *atomic.Int32, seen *[]openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			seenMu.Lock()
			*seen = append(*seen, req)
			seenMu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "bad key", "type": "invalid_request_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"REPLACE_WITH_KEY", true},
		{"short", true},
		{testKey, false},
	}
	for _, tt := range tests {
		err := CheckKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckKey(%q) = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrConfig) {
			t.Errorf("CheckKey(%q) error %v is not ErrConfig", tt.key, err)
		}
	}
}

func TestStartSessionRejectsBadKey(t *testing.T) {
	c := New("http://127.0.0.1:1", "REPLACE_ME_PLEASE", "test-model")
	if _, err := c.StartSession(context.Background(), testModule()); !errors.Is(err, ErrConfig) {
		t.Errorf("StartSession = %v, want ErrConfig", err)
	}
}

func TestChatSessionSend(t *testing.T) {
	var calls atomic.Int32
	var seen []openai.ChatCompletionRequest
	srv := fakeAPI(t, "Superheat tells you about the charge.", 0, &calls, &seen)
	c := New(srv.URL+"/v1", testKey, "test-model")

	s, err := c.StartSession(context.Background(), testModule())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	reply, err := s.Send(context.Background(), "What is superheat?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "Superheat tells you about the charge." {
		t.Errorf("reply = %q", reply)
	}
	if _, err := s.Send(context.Background(), "And subcooling?"); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if s.Turns() != 2 {
		t.Errorf("Turns = %d, want 2", s.Turns())
	}

	seenMu.Lock()
	defer seenMu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("API saw %d requests, want 2", len(seen))
	}
	last := seen[1].Messages
	if len(last) != 4 {
		t.Fatalf("second request carried %d messages, want system+user+assistant+user", len(last))
	}
	if last[0].Role != openai.ChatMessageRoleSystem || !strings.Contains(last[0].Content, "Refrigeration Cycle") {
		t.Errorf("system message = %+v", last[0])
	}
	if !strings.Contains(last[3].Content, "<trainee-message>") {
		t.Errorf("user message not wrapped: %q", last[3].Content)
	}
}

func TestChatSessionUnauthorizedCloses(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAPI(t, "", http.StatusUnauthorized, &calls, nil)
	c := New(srv.URL+"/v1", testKey, "test-model")

	s, err := c.StartSession(context.Background(), testModule())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := s.Send(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from rejected key")
	}
	if _, err := s.Send(context.Background(), "hi again"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Send after rejected key = %v, want ErrNoSession", err)
	}
	if calls.Load() != 1 {
		t.Errorf("API called %d times, want 1", calls.Load())
	}
	if s.Turns() != 0 {
		t.Errorf("failed message kept in transcript")
	}
}

func TestStudyGuideOrFallback(t *testing.T) {
	var calls atomic.Int32
	ok := fakeAPI(t, "# Guide", 0, &calls, nil)
	guide, fallback := New(ok.URL+"/v1", testKey, "m").StudyGuideOrFallback(context.Background(), testModule())
	if fallback || guide != "# Guide" {
		t.Errorf("guide = %q fallback=%v", guide, fallback)
	}

	bad := fakeAPI(t, "", http.StatusInternalServerError, &calls, nil)
	guide, fallback = New(bad.URL+"/v1", testKey, "m").StudyGuideOrFallback(context.Background(), testModule())
	if !fallback || !strings.Contains(guide, "**Answer: B) Charge level**") {
		t.Errorf("fallback guide = %q fallback=%v", guide, fallback)
	}
}
