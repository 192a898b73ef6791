package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/techcert/internal/model"
)

var base = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func sampleRecords() []model.ExamRecord {
	return []model.ExamRecord{
		{
			User:          model.User{Name: `Jane "JJ" Doe`, Email: "jane@example.com", ID: "T-1"},
			Timestamp:     base,
			ModuleResults: map[string]model.ModuleResult{"1": {Score: 2, Total: 3}},
			TotalScore:    2,
			TotalPossible: 3,
		},
		{
			User:          model.User{Name: "bob", ID: "T-2"},
			Timestamp:     base.Add(time.Hour),
			ModuleResults: map[string]model.ModuleResult{"2": {Score: 1, Total: 2}, "1": {Score: 3, Total: 3}},
			TotalScore:    4,
			TotalPossible: 5,
		},
		{
			User:          model.User{Name: "Carl", Email: "carl@plant.example", ID: "X-9"},
			Timestamp:     base.Add(-time.Hour),
			ModuleResults: map[string]model.ModuleResult{},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	recs := sampleRecords()
	if err := WriteCSV(&buf, recs, time.UTC); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	if len(lines) != len(recs)+1 {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(recs)+1, buf.String())
	}

	wantHeader := "Name,Email/ID,Timestamp,TotalScore,TotalPossible,Module_1_Score,Module_1_Possible,Module_2_Score,Module_2_Possible"
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}

	want := []string{
		`"Jane ""JJ"" Doe","jane@example.com","2024-05-01 09:30:00","2","3","2","3","0","0"`,
		`"bob","T-2","2024-05-01 10:30:00","4","5","3","3","1","2"`,
		`"Carl","carl@plant.example","2024-05-01 08:30:00","0","0","0","0","0","0"`,
	}
	for i, w := range want {
		if lines[i+1] != w {
			t.Errorf("line %d = %q, want %q", i+1, lines[i+1], w)
		}
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, nil); !errors.Is(err, ErrNoRecords) {
		t.Errorf("WriteCSV(nil) = %v, want ErrNoRecords", err)
	}
	if buf.Len() != 0 {
		t.Error("wrote output for empty record set")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(base); got != "cfmti_results_2024-05-01.csv" {
		t.Errorf("Filename = %q", got)
	}
}

func TestFilterSort(t *testing.T) {
	recs := sampleRecords()
	names := func(rs []model.ExamRecord) string {
		var out []string
		for _, r := range rs {
			out = append(out, r.User.ID)
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"default newest first", DefaultQuery(), "T-2,T-1,X-9"},
		{"timestamp ascending", Query{SortBy: SortByTimestamp}, "X-9,T-1,T-2"},
		{"name ascending is case-insensitive", Query{SortBy: SortByName}, "T-2,X-9,T-1"},
		{"score descending", Query{SortBy: SortByTotalScore, Desc: true}, "T-2,T-1,X-9"},
		{"filter by email", Query{Filter: "PLANT", SortBy: SortByTimestamp}, "X-9"},
		{"filter by id", Query{Filter: "t-", SortBy: SortByTimestamp}, "T-1,T-2"},
		{"filter by name", Query{Filter: "jj"}, "T-1"},
		{"no match", Query{Filter: "zzz"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names(FilterSort(recs, tt.q)); got != tt.want {
				t.Errorf("FilterSort = %s, want %s", got, tt.want)
			}
		})
	}
	if recs[0].User.ID != "T-1" {
		t.Error("FilterSort reordered its input")
	}
}

func TestParseSortKey(t *testing.T) {
	for in, want := range map[string]SortKey{"": SortByTimestamp, "Name": SortByName, "totalscore": SortByTotalScore} {
		got, err := ParseSortKey(in)
		if err != nil || got != want {
			t.Errorf("ParseSortKey(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseSortKey("score"); err == nil {
		t.Error("expected error for unknown key")
	}
}
