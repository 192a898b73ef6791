package model

import "time"

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	AppID      string       `json:"app_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Count      int          `json:"count"`
	Records    []ExamRecord `json:"records"`
}

// ReviewItem is one question row on the results screen.
type ReviewItem struct {
	ModuleIndex   int    `json:"moduleIndex"`
	ModuleTitle   string `json:"moduleTitle"`
	QuestionNum   int    `json:"questionNum"`
	QuestionText  string `json:"questionText"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// ModuleSummary is one module line on the results screen.
type ModuleSummary struct {
	ModuleID string `json:"moduleId"`
	Title    string `json:"title"`
	Score    int    `json:"score"`
	Total    int    `json:"total"`
	Percent  string `json:"percent"`
}

// ReviewReport is everything the results screen shows for one record.
type ReviewReport struct {
	Record  ExamRecord      `json:"record"`
	Percent string          `json:"percent"`
	Passed  bool            `json:"passed"`
	Modules []ModuleSummary `json:"modules"`
	Items   []ReviewItem    `json:"items"`
}
