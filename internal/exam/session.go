package exam

import (
	"errors"

	"github.com/pavelanni/techcert/internal/model"
)

var (
	// ErrNoAnswer means the current question has no recorded answer yet.
	ErrNoAnswer = errors.New("please select an option to proceed")
	// ErrModuleSubmitted means the module no longer accepts changes.
	ErrModuleSubmitted = errors.New("module already submitted")
	// ErrModuleNotSubmitted means proceed was requested before submission.
	ErrModuleNotSubmitted = errors.New("module not submitted yet")
)

// Step reports what Next did.
type Step int

const (
	// StepAdvanced moved the cursor to the next question.
	StepAdvanced Step = iota
	// StepModuleSubmitted scored and locked the module.
	StepModuleSubmitted
)

// Session is an ExamSession plus the in-module question cursor.
type Session struct {
	model.ExamSession
	QuestionIndex int `json:"questionIndex"`
}

// NewSession returns a fresh attempt positioned at the first question of the first module.
func NewSession() *Session {
	return &Session{ExamSession: model.NewExamSession()}
}

// CurrentModule returns the module the cursor is on.
func (s *Session) CurrentModule(mods []model.Module) (model.Module, bool) {
	if s.CurrentModuleIndex < 0 || s.CurrentModuleIndex >= len(mods) {
		return model.Module{}, false
	}
	return mods[s.CurrentModuleIndex], true
}

// SetAnswer records key for question qid of m. Writes to a submitted
// module, to a question outside m, or with a key that is not one of the
// question's choices are ignored and return false.
func (s *Session) SetAnswer(m model.Module, qid, key string) bool {
	if s.SubmittedModules[m.ID] {
		return false
	}
	q, ok := findQuestion(m, qid)
	if !ok {
		return false
	}
	if _, ok := q.Choices[key]; !ok {
		return false
	}
	s.Answers[qid] = key
	return true
}

// Next advances the cursor, or submits m when the cursor is on its last question.
func (s *Session) Next(m model.Module) (Step, error) {
	if s.SubmittedModules[m.ID] {
		return StepAdvanced, ErrModuleSubmitted
	}
	if len(m.Questions) == 0 {
		s.SubmitModule(m)
		return StepModuleSubmitted, nil
	}
	if s.QuestionIndex >= len(m.Questions) {
		s.QuestionIndex = len(m.Questions) - 1
	}
	q := m.Questions[s.QuestionIndex]
	if s.Answers[q.ID] == "" {
		return StepAdvanced, ErrNoAnswer
	}
	if s.QuestionIndex < len(m.Questions)-1 {
		s.QuestionIndex++
		return StepAdvanced, nil
	}
	s.SubmitModule(m)
	return StepModuleSubmitted, nil
}

// Prev moves the cursor back one question. It reports false at the first question.
func (s *Session) Prev() bool {
	if s.QuestionIndex == 0 {
		return false
	}
	s.QuestionIndex--
	return true
}

// SubmitModule scores m and locks it. A second call leaves the stored result untouched.
func (s *Session) SubmitModule(m model.Module) (model.ModuleResult, bool) {
	if s.SubmittedModules[m.ID] {
		return s.ModuleResults[m.ID], false
	}
	res := Score(m, s.Answers)
	s.ModuleResults[m.ID] = res
	s.SubmittedModules[m.ID] = true
	return res, true
}

// Proceed moves to the next module once the current one is submitted.
// It reports false when the current module is the last one.
func (s *Session) Proceed(mods []model.Module) (bool, error) {
	m, ok := s.CurrentModule(mods)
	if !ok {
		return false, nil
	}
	if !s.SubmittedModules[m.ID] {
		return false, ErrModuleNotSubmitted
	}
	if s.CurrentModuleIndex+1 >= len(mods) {
		return false, nil
	}
	s.CurrentModuleIndex++
	s.QuestionIndex = 0
	return true, nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := &Session{
		ExamSession: model.ExamSession{
			CurrentModuleIndex: s.CurrentModuleIndex,
			Answers:            make(map[string]string, len(s.Answers)),
			ModuleResults:      make(map[string]model.ModuleResult, len(s.ModuleResults)),
			SubmittedModules:   make(map[string]bool, len(s.SubmittedModules)),
		},
		QuestionIndex: s.QuestionIndex,
	}
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	for k, v := range s.ModuleResults {
		c.ModuleResults[k] = v
	}
	for k, v := range s.SubmittedModules {
		c.SubmittedModules[k] = v
	}
	return c
}

func (s *Session) ensureMaps() {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	if s.ModuleResults == nil {
		s.ModuleResults = make(map[string]model.ModuleResult)
	}
	if s.SubmittedModules == nil {
		s.SubmittedModules = make(map[string]bool)
	}
}

func findQuestion(m model.Module, qid string) (model.Question, bool) {
	for _, q := range m.Questions {
		if q.ID == qid {
			return q, true
		}
	}
	return model.Question{}, false
}
