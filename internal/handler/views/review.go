// Package views renders the server-side HTML pages.
package views

//go:generate templ generate

import (
	"context"
	"fmt"
	"time"

	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/model"
)

func t(ctx context.Context, id string) string { return appI18n.T(ctx, id) }

func takenAt(ctx context.Context, rec model.ExamRecord, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return appI18n.Td(ctx, "TakenAt", map[string]any{
		"Time": rec.Timestamp.In(loc).Format("2006-01-02 15:04"),
	})
}

func scoreLine(ctx context.Context, rep model.ReviewReport) string {
	return appI18n.Td(ctx, "ScoreLine", map[string]any{
		"Score":    rep.Record.TotalScore,
		"Possible": rep.Record.TotalPossible,
		"Percent":  rep.Percent,
	})
}

func verdict(ctx context.Context, passed bool) string {
	if passed {
		return appI18n.T(ctx, "Passed")
	}
	return appI18n.T(ctx, "Failed")
}

func verdictClass(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func moduleScore(m model.ModuleSummary) string {
	return fmt.Sprintf("%d / %d", m.Score, m.Total)
}

func itemNumber(it model.ReviewItem) string {
	return fmt.Sprintf("%d.%d", it.ModuleIndex+1, it.QuestionNum)
}

// rowClass marks incorrectly answered rows.
func rowClass(it model.ReviewItem) string {
	if it.IsCorrect {
		return ""
	}
	return "wrong"
}
