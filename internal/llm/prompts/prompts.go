// Package prompts builds the system prompts for the AI review assistant.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/techcert/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// MaxMessageRunes caps the length of one trainee chat message.
const MaxMessageRunes = 10000

var (
	traineeMessageRegex     = regexp.MustCompile(`(?i)</?\s*trainee-message\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var (
	loadOnce  sync.Once
	loadErr   error
	tutorTmpl *template.Template
	guideTmpl *template.Template
)

// Choice is one answer option in a prompt.
type Choice struct {
	Key  string
	Text string
}

// QuestionData is one module question as the assistant sees it.
type QuestionData struct {
	Num     int
	Text    string
	Choices []Choice
	Correct string
}

// ModuleData holds template data for both prompts.
type ModuleData struct {
	ModuleTitle string
	Questions   []QuestionData
}

func load() error {
	loadOnce.Do(func() {
		parse := func(name string) (*template.Template, error) {
			content, err := templateFS.ReadFile("templates/" + name)
			if err != nil {
				return nil, fmt.Errorf("read prompt file %s: %w", name, err)
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
			}
			return tmpl, nil
		}
		if tutorTmpl, loadErr = parse("tutor.txt"); loadErr != nil {
			return
		}
		guideTmpl, loadErr = parse("guide.txt")
	})
	return loadErr
}

// NewModuleData flattens a module into template data with choices sorted by key.
func NewModuleData(m model.Module) ModuleData {
	data := ModuleData{ModuleTitle: m.Title}
	for i, q := range m.Questions {
		qd := QuestionData{Num: i + 1, Text: q.Text, Correct: q.Correct}
		for k, v := range q.Choices {
			qd.Choices = append(qd.Choices, Choice{Key: k, Text: v})
		}
		sort.Slice(qd.Choices, func(a, b int) bool { return qd.Choices[a].Key < qd.Choices[b].Key })
		data.Questions = append(data.Questions, qd)
	}
	return data
}

// BuildTutorPrompt builds the system instruction of a review chat for m.
func BuildTutorPrompt(m model.Module) (string, error) {
	return execute(func() *template.Template { return tutorTmpl }, m)
}

// BuildGuidePrompt builds the one-shot study guide request for m.
func BuildGuidePrompt(m model.Module) (string, error) {
	return execute(func() *template.Template { return guideTmpl }, m)
}

func execute(tmpl func() *template.Template, m model.Module) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	if len(m.Questions) == 0 {
		return "", errors.New("module has no questions")
	}
	var buf bytes.Buffer
	if err := tmpl().Execute(&buf, NewModuleData(m)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WrapMessage sanitizes a trainee chat message and wraps it in delimiter tags.
func WrapMessage(text string) string {
	return "<trainee-message>\n" + SanitizeMessage(text) + "\n</trainee-message>"
}

// SanitizeMessage strips delimiter look-alikes, trims and truncates text.
func SanitizeMessage(text string) string {
	text = traineeMessageRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[Empty message]"
	}

	if utf8.RuneCountInString(text) > MaxMessageRunes {
		runes := []rune(text)
		text = string(runes[:MaxMessageRunes]) + "\n\n[Message truncated due to length]"
	}
	return text
}

// FallbackGuide is the plain question-and-answer review shown when the
// AI study guide cannot be generated.
func FallbackGuide(m model.Module) string {
	var sb strings.Builder
	sb.WriteString("## " + m.Title + "\n\n")
	for _, q := range NewModuleData(m).Questions {
		fmt.Fprintf(&sb, "**Question %d:** %s\n\n", q.Num, q.Text)
		for _, c := range q.Choices {
			if c.Key == q.Correct {
				fmt.Fprintf(&sb, "**Answer: %s) %s**\n\n", c.Key, c.Text)
			}
		}
	}
	return sb.String()
}
