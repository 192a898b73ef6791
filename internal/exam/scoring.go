package exam

import (
	"math"
	"strconv"

	"github.com/pavelanni/techcert/internal/model"
)

// Score counts the questions of m whose recorded answer matches the correct key.
func Score(m model.Module, answers map[string]string) model.ModuleResult {
	score := 0
	for _, q := range m.Questions {
		if a, ok := answers[q.ID]; ok && a == q.Correct {
			score++
		}
	}
	return model.ModuleResult{Score: score, Total: len(m.Questions)}
}

// Percent returns score/total as a percentage; 0 when total is 0.
func Percent(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// FormatPercent renders a percentage with the given number of decimals, e.g. "66.7%".
func FormatPercent(score, total, decimals int) string {
	p := Percent(score, total)
	scale := math.Pow(10, float64(decimals))
	p = math.Round(p*scale) / scale
	return strconv.FormatFloat(p, 'f', decimals, 64) + "%"
}

// Totals sums module results elementwise. Modules never submitted contribute nothing.
func Totals(results map[string]model.ModuleResult) (score, possible int) {
	for _, r := range results {
		score += r.Score
		possible += r.Total
	}
	return score, possible
}
