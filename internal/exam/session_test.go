package exam

import (
	"errors"
	"testing"
)

func TestSessionNextRequiresAnswer(t *testing.T) {
	m := testModules()[0]
	s := NewSession()

	if _, err := s.Next(m); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("expected ErrNoAnswer, got %v", err)
	}
	if s.QuestionIndex != 0 {
		t.Errorf("cursor moved without an answer: %d", s.QuestionIndex)
	}
}

func TestSessionSetAnswer(t *testing.T) {
	mods := testModules()
	s := NewSession()

	tests := []struct {
		name     string
		qid, key string
		want     bool
	}{
		{"valid", "m1q1", "A", true},
		{"overwrite", "m1q1", "B", true},
		{"unknown choice", "m1q1", "Z", false},
		{"question of another module", "m2q1", "A", false},
		{"unknown question", "nope", "A", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SetAnswer(mods[0], tt.qid, tt.key); got != tt.want {
				t.Errorf("SetAnswer(%s, %s) = %v, want %v", tt.qid, tt.key, got, tt.want)
			}
		})
	}
	if s.Answers["m1q1"] != "B" {
		t.Errorf("m1q1 = %q, want B", s.Answers["m1q1"])
	}
}

func TestSessionSubmitLocksModule(t *testing.T) {
	mods := testModules()
	m := mods[0]
	s := NewSession()

	for i, key := range []string{"A", "B", "A"} {
		s.SetAnswer(m, m.Questions[i].ID, key)
		step, err := s.Next(m)
		if err != nil {
			t.Fatalf("Next at %d: %v", i, err)
		}
		wantStep := StepAdvanced
		if i == 2 {
			wantStep = StepModuleSubmitted
		}
		if step != wantStep {
			t.Fatalf("step at %d = %v, want %v", i, step, wantStep)
		}
	}

	res := s.ModuleResults["1"]
	if res.Score != 2 || res.Total != 3 {
		t.Fatalf("result = %+v, want 2/3", res)
	}
	if !s.SubmittedModules["1"] {
		t.Fatal("module should be submitted")
	}

	if s.SetAnswer(m, "m1q3", "C") {
		t.Error("answer accepted after submission")
	}
	if s.Answers["m1q3"] != "A" {
		t.Errorf("m1q3 changed to %q after submission", s.Answers["m1q3"])
	}
	if _, err := s.Next(m); !errors.Is(err, ErrModuleSubmitted) {
		t.Errorf("expected ErrModuleSubmitted, got %v", err)
	}

	again, fresh := s.SubmitModule(m)
	if fresh || again != res {
		t.Errorf("second SubmitModule = %+v, %v; want %+v, false", again, fresh, res)
	}
}

func TestSessionProceed(t *testing.T) {
	mods := testModules()
	s := NewSession()

	if _, err := s.Proceed(mods); !errors.Is(err, ErrModuleNotSubmitted) {
		t.Fatalf("expected ErrModuleNotSubmitted, got %v", err)
	}

	s.SubmitModule(mods[0])
	s.QuestionIndex = 2
	advanced, err := s.Proceed(mods)
	if err != nil || !advanced {
		t.Fatalf("Proceed = %v, %v; want true, nil", advanced, err)
	}
	if s.CurrentModuleIndex != 1 || s.QuestionIndex != 0 {
		t.Errorf("cursor = %d/%d, want 1/0", s.CurrentModuleIndex, s.QuestionIndex)
	}

	s.SubmitModule(mods[1])
	advanced, err = s.Proceed(mods)
	if err != nil || advanced {
		t.Errorf("Proceed on last module = %v, %v; want false, nil", advanced, err)
	}
	if s.CurrentModuleIndex != 1 {
		t.Errorf("module index moved past the end: %d", s.CurrentModuleIndex)
	}
}

func TestSessionPrev(t *testing.T) {
	m := testModules()[0]
	s := NewSession()
	if s.Prev() {
		t.Error("Prev at first question should report false")
	}
	s.SetAnswer(m, "m1q1", "A")
	if _, err := s.Next(m); err != nil {
		t.Fatal(err)
	}
	if !s.Prev() || s.QuestionIndex != 0 {
		t.Errorf("Prev did not move back, index %d", s.QuestionIndex)
	}
	if s.Answers["m1q1"] != "A" {
		t.Error("answer lost after Prev")
	}
}

func TestSessionClone(t *testing.T) {
	m := testModules()[0]
	s := NewSession()
	s.SetAnswer(m, "m1q1", "A")
	c := s.Clone()
	s.SetAnswer(m, "m1q1", "B")
	if c.Answers["m1q1"] != "A" {
		t.Errorf("clone shares answers map: %q", c.Answers["m1q1"])
	}
	if c.AnsweredCount() != 1 {
		t.Errorf("AnsweredCount = %d, want 1", c.AnsweredCount())
	}
}
