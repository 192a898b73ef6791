package exam

import "github.com/pavelanni/techcert/internal/model"

// NotAnswered is shown in review rows for questions without an answer.
const NotAnswered = "N/A"

// BuildReport lays out a record for the results screen. Modules are listed in
// catalog order; a module the record has no result for shows 0/0.
func BuildReport(mods []model.Module, rec model.ExamRecord, passingPercent float64) model.ReviewReport {
	rep := model.ReviewReport{
		Record:  rec,
		Percent: FormatPercent(rec.TotalScore, rec.TotalPossible, 1),
		Passed:  Percent(rec.TotalScore, rec.TotalPossible) >= passingPercent,
	}
	for mi, m := range mods {
		res := rec.ModuleResults[m.ID]
		rep.Modules = append(rep.Modules, model.ModuleSummary{
			ModuleID: m.ID,
			Title:    m.Title,
			Score:    res.Score,
			Total:    res.Total,
			Percent:  FormatPercent(res.Score, res.Total, 0),
		})
		for qi, q := range m.Questions {
			answer, ok := rec.Answers[q.ID]
			if !ok || answer == "" {
				answer = NotAnswered
			}
			rep.Items = append(rep.Items, model.ReviewItem{
				ModuleIndex:   mi,
				ModuleTitle:   m.Title,
				QuestionNum:   qi + 1,
				QuestionText:  q.Text,
				UserAnswer:    answer,
				CorrectAnswer: q.Correct,
				IsCorrect:     answer == q.Correct,
			})
		}
	}
	return rep
}
