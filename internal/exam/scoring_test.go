package exam

import (
	"testing"

	"github.com/pavelanni/techcert/internal/model"
)

func TestScore(t *testing.T) {
	m := testModules()[0]
	tests := []struct {
		name    string
		answers map[string]string
		want    int
	}{
		{"none answered", map[string]string{}, 0},
		{"all correct", map[string]string{"m1q1": "A", "m1q2": "B", "m1q3": "C"}, 3},
		{"two of three", map[string]string{"m1q1": "A", "m1q2": "B", "m1q3": "A"}, 2},
		{"answers for other modules ignored", map[string]string{"m2q1": "A", "m1q1": "A"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(m, tt.answers)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d", got.Score, tt.want)
			}
			if got.Total != 3 {
				t.Errorf("Total = %d, want 3", got.Total)
			}
		})
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		score, total, decimals int
		want                   string
	}{
		{2, 3, 1, "66.7%"},
		{3, 5, 1, "60.0%"},
		{5, 5, 0, "100%"},
		{0, 0, 1, "0.0%"},
		{1, 3, 0, "33%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.score, tt.total, tt.decimals); got != tt.want {
			t.Errorf("FormatPercent(%d, %d, %d) = %q, want %q", tt.score, tt.total, tt.decimals, got, tt.want)
		}
	}
}

func TestTotals(t *testing.T) {
	score, possible := Totals(map[string]model.ModuleResult{
		"1": {Score: 2, Total: 3},
		"2": {Score: 1, Total: 2},
	})
	if score != 3 || possible != 5 {
		t.Errorf("Totals = %d/%d, want 3/5", score, possible)
	}

	score, possible = Totals(nil)
	if score != 0 || possible != 0 {
		t.Errorf("Totals(nil) = %d/%d, want 0/0", score, possible)
	}
}

func TestBuildReport(t *testing.T) {
	rec := model.ExamRecord{
		ModuleResults: map[string]model.ModuleResult{"1": {Score: 2, Total: 3}},
		Answers:       map[string]string{"m1q1": "A", "m1q2": "B", "m1q3": "A"},
		TotalScore:    2,
		TotalPossible: 3,
	}
	rep := BuildReport(testModules(), rec, 70)
	if rep.Percent != "66.7%" {
		t.Errorf("Percent = %q, want 66.7%%", rep.Percent)
	}
	if rep.Passed {
		t.Error("66.7% should not pass a 70% threshold")
	}
	if len(rep.Modules) != 2 {
		t.Fatalf("expected 2 module rows, got %d", len(rep.Modules))
	}
	if rep.Modules[1].Total != 0 || rep.Modules[1].Score != 0 {
		t.Errorf("unsubmitted module should show 0/0, got %+v", rep.Modules[1])
	}
	if len(rep.Items) != 5 {
		t.Fatalf("expected 5 review items, got %d", len(rep.Items))
	}
	if rep.Items[2].IsCorrect {
		t.Error("m1q3 answered A should be incorrect")
	}
	if rep.Items[3].UserAnswer != NotAnswered {
		t.Errorf("unanswered item shows %q, want %q", rep.Items[3].UserAnswer, NotAnswered)
	}

	rec.TotalScore = 4
	rec.TotalPossible = 5
	if !BuildReport(testModules(), rec, 70).Passed {
		t.Error("80% should pass a 70% threshold")
	}
}
