// Package export renders exam records for download.
package export

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/techcert/internal/model"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no records to export")

// TimestampLayout is how record timestamps appear in the CSV.
const TimestampLayout = "2006-01-02 15:04:05"

// Filename returns the download name for an export made at now.
func Filename(now time.Time) string {
	return "cfmti_results_" + now.UTC().Format("2006-01-02") + ".csv"
}

// ModuleIDs returns the sorted union of module ids across records.
func ModuleIDs(records []model.ExamRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for id := range r.ModuleResults {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Header returns the CSV header row for the given module ids.
func Header(moduleIDs []string) []string {
	h := []string{"Name", "Email/ID", "Timestamp", "TotalScore", "TotalPossible"}
	for _, id := range moduleIDs {
		h = append(h, "Module_"+id+"_Score", "Module_"+id+"_Possible")
	}
	return h
}

// Row returns the CSV fields of one record. A module the record has no
// result for is written as 0/0.
func Row(r model.ExamRecord, moduleIDs []string, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	row := []string{
		r.User.Name,
		r.User.DisplayID(),
		r.Timestamp.In(loc).Format(TimestampLayout),
		strconv.Itoa(r.TotalScore),
		strconv.Itoa(r.TotalPossible),
	}
	for _, id := range moduleIDs {
		res := r.ModuleResults[id]
		row = append(row, strconv.Itoa(res.Score), strconv.Itoa(res.Total))
	}
	return row
}

// WriteCSV writes a header line plus one line per record. The header is
// bare; every data field is double-quoted with embedded quotes doubled.
// Lines are separated by "\n" with no trailing newline.
func WriteCSV(w io.Writer, records []model.ExamRecord, loc *time.Location) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	ids := ModuleIDs(records)
	var b strings.Builder
	b.WriteString(strings.Join(Header(ids), ","))
	for _, r := range records {
		b.WriteByte('\n')
		for i, field := range Row(r, ids, loc) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(field))
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
