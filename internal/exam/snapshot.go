package exam

import (
	"sort"

	"github.com/pavelanni/techcert/internal/catalog"
	"github.com/pavelanni/techcert/internal/model"
)

// Choice is one answer option as shown to the trainee.
type Choice struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// QuestionScreen is the current question without its correct answer.
type QuestionScreen struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Choices  []Choice `json:"choices"`
	Selected string   `json:"selected,omitempty"`
}

// ExamScreen is what the exam view renders.
type ExamScreen struct {
	ModuleID       string              `json:"moduleId"`
	ModuleTitle    string              `json:"moduleTitle"`
	ModuleIndex    int                 `json:"moduleIndex"`
	ModuleCount    int                 `json:"moduleCount"`
	QuestionIndex  int                 `json:"questionIndex"`
	QuestionCount  int                 `json:"questionCount"`
	Question       *QuestionScreen     `json:"question,omitempty"`
	IsLastQuestion bool                `json:"isLastQuestion"`
	IsLastModule   bool                `json:"isLastModule"`
	Submitted      bool                `json:"submitted"`
	Result         *model.ModuleResult `json:"result,omitempty"`
}

// State is a point-in-time copy of a controller, safe to serialize.
type State struct {
	View         string              `json:"view"`
	User         *model.User         `json:"user,omitempty"`
	Admin        bool                `json:"admin"`
	TimeLeft     *int                `json:"timeLeft,omitempty"`
	CurrentScore int                 `json:"currentScore"`
	Possible     int                 `json:"possible"`
	Answered     int                 `json:"answered"`
	Progress     float64             `json:"progress"`
	Exam         *ExamScreen         `json:"exam,omitempty"`
	Review       *model.ReviewReport `json:"review,omitempty"`
	Historical   bool                `json:"historical,omitempty"`
	ReviewModule string              `json:"reviewModule,omitempty"`
	ChatActive   bool                `json:"chatActive,omitempty"`
	Chat         []ChatMessage       `json:"chat,omitempty"`
	Banner       string              `json:"banner,omitempty"`
	Notices      []Notice            `json:"notices,omitempty"`
}

// AnsweredCount returns how many questions have a recorded answer.
func (s *Session) AnsweredCount() int {
	n := 0
	for _, a := range s.Answers {
		if a != "" {
			n++
		}
	}
	return n
}

// Snapshot copies the controller state for rendering.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		View:  ViewName(c.view),
		Admin: c.admin,
	}
	if c.user != nil {
		u := *c.user
		st.User = &u
	}
	if c.deps.Backend != nil {
		st.Banner = c.deps.Backend.Banner()
	}
	st.Notices = append([]Notice(nil), c.notices...)

	if c.endTime != nil && !c.finalized {
		left := Remaining(*c.endTime, c.deps.Now())
		st.TimeLeft = &left
	}
	st.CurrentScore, st.Possible = Totals(c.session.ModuleResults)
	st.Answered = c.session.AnsweredCount()
	if total := catalog.TotalQuestions(c.deps.Modules); total > 0 {
		st.Progress = float64(st.Answered) / float64(total) * 100
	}

	switch v := c.view.(type) {
	case ExamView:
		st.Exam = c.examScreenLocked()
	case ReviewView:
		rep := BuildReport(c.deps.Modules, v.Record, c.deps.Config.PassingPercent)
		st.Review = &rep
		st.Historical = v.Historical
	case ReviewerView:
		st.ReviewModule = v.ModuleID
		st.ChatActive = c.chat != nil
		st.Chat = append([]ChatMessage(nil), c.chatLog...)
	}
	return st
}

// Notices returns the pending notices.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) examScreenLocked() *ExamScreen {
	m, ok := c.session.CurrentModule(c.deps.Modules)
	if !ok {
		return nil
	}
	scr := &ExamScreen{
		ModuleID:      m.ID,
		ModuleTitle:   m.Title,
		ModuleIndex:   c.session.CurrentModuleIndex,
		ModuleCount:   len(c.deps.Modules),
		QuestionIndex: c.session.QuestionIndex,
		QuestionCount: len(m.Questions),
		IsLastModule:  c.session.CurrentModuleIndex == len(c.deps.Modules)-1,
		Submitted:     c.session.SubmittedModules[m.ID],
	}
	scr.IsLastQuestion = scr.QuestionIndex >= len(m.Questions)-1
	if scr.Submitted {
		r := c.session.ModuleResults[m.ID]
		scr.Result = &r
	}
	if c.session.QuestionIndex < len(m.Questions) {
		q := m.Questions[c.session.QuestionIndex]
		scr.Question = &QuestionScreen{
			ID:       q.ID,
			Text:     q.Text,
			Choices:  sortedChoices(q.Choices),
			Selected: c.session.Answers[q.ID],
		}
	}
	return scr
}

func sortedChoices(choices map[string]string) []Choice {
	out := make([]Choice, 0, len(choices))
	for k, v := range choices {
		out = append(out, Choice{Key: k, Text: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
