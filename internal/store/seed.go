package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pavelanni/techcert/internal/model"
)

//go:embed data/trainees.json
var defaultTrainees []byte

// LoadSeeds reads an ordered JSON array of trainees. An empty path returns
// the built-in defaults, which also serve as the offline fallback list.
func LoadSeeds(path string) ([]model.NewTrainee, error) {
	data := defaultTrainees
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}
	var seeds []model.NewTrainee
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return seeds, nil
}
