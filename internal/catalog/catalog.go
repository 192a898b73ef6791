// Package catalog loads the static exam content.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pavelanni/techcert/internal/model"
)

//go:embed data/default.json
var defaultFS embed.FS

// Load reads modules from a JSON file. An empty path loads the built-in catalog.
func Load(path string) ([]model.Module, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultFS.ReadFile("data/default.json")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	mods, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded exam catalog", "path", path, "modules", len(mods), "questions", TotalQuestions(mods))
	return mods, nil
}

// Parse decodes and validates a JSON module list.
func Parse(data []byte) ([]model.Module, error) {
	var mods []model.Module
	if err := json.Unmarshal(data, &mods); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := Validate(mods); err != nil {
		return nil, err
	}
	for i := range mods {
		if mods[i].ItemCount == 0 {
			mods[i].ItemCount = len(mods[i].Questions)
		}
	}
	return mods, nil
}

// Validate checks id uniqueness and that every correct key is a listed choice.
func Validate(mods []model.Module) error {
	if len(mods) == 0 {
		return fmt.Errorf("catalog has no modules")
	}
	moduleIDs := make(map[string]bool)
	questionIDs := make(map[string]bool)
	for _, m := range mods {
		if m.ID == "" {
			return fmt.Errorf("module %q has no id", m.Title)
		}
		if moduleIDs[m.ID] {
			return fmt.Errorf("duplicate module id %q", m.ID)
		}
		moduleIDs[m.ID] = true
		for _, q := range m.Questions {
			if q.ID == "" {
				return fmt.Errorf("module %s: question without id", m.ID)
			}
			if questionIDs[q.ID] {
				return fmt.Errorf("duplicate question id %q", q.ID)
			}
			questionIDs[q.ID] = true
			if _, ok := q.Choices[q.Correct]; !ok {
				return fmt.Errorf("question %s: correct key %q is not a choice", q.ID, q.Correct)
			}
		}
	}
	return nil
}

// TotalQuestions counts questions across all modules.
func TotalQuestions(mods []model.Module) int {
	n := 0
	for _, m := range mods {
		n += len(m.Questions)
	}
	return n
}

// Find returns the module with the given id and its index, or -1.
func Find(mods []model.Module, id string) (model.Module, int) {
	for i, m := range mods {
		if m.ID == id {
			return m, i
		}
	}
	return model.Module{}, -1
}
