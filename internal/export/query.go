package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pavelanni/techcert/internal/model"
)

// SortKey selects the column the admin results table is ordered by.
type SortKey string

const (
	SortByName       SortKey = "name"
	SortByTimestamp  SortKey = "timestamp"
	SortByTotalScore SortKey = "totalscore"
)

// Query filters and orders a result set. The zero value lists everything
// oldest first; DefaultQuery matches the admin screen's initial state.
type Query struct {
	Filter string
	SortBy SortKey
	Desc   bool
}

// DefaultQuery orders by timestamp, newest first.
func DefaultQuery() Query {
	return Query{SortBy: SortByTimestamp, Desc: true}
}

// ParseSortKey validates a sort key; empty means timestamp.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(s)); k {
	case "":
		return SortByTimestamp, nil
	case SortByName, SortByTimestamp, SortByTotalScore:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// FilterSort returns the records whose name, email or id contains the filter
// (case-insensitive), ordered per q. The input slice is not modified.
func FilterSort(records []model.ExamRecord, q Query) []model.ExamRecord {
	needle := strings.ToLower(q.Filter)
	out := make([]model.ExamRecord, 0, len(records))
	for _, r := range records {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.User.Name), needle) ||
			strings.Contains(strings.ToLower(r.User.Email), needle) ||
			strings.Contains(strings.ToLower(r.User.ID), needle) {
			out = append(out, r)
		}
	}

	less := func(a, b model.ExamRecord) bool {
		switch q.SortBy {
		case SortByName:
			return strings.ToLower(a.User.Name) < strings.ToLower(b.User.Name)
		case SortByTotalScore:
			return a.TotalScore < b.TotalScore
		default:
			return a.Timestamp.Before(b.Timestamp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
