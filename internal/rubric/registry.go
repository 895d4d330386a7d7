// Package rubric holds the fixed checklist of audit questions and their
// per-band scoring descriptions. The checklist is embedded at compile time,
// validated once against a JSON Schema, and never mutated after load.
package rubric

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/daniela/compliance-reviewer/internal/scoring"
)

//go:embed checklist.json
var checklistJSON []byte

//go:embed checklist_schema.json
var checklistSchemaJSON []byte

// Question is one audit checklist item.
type Question struct {
	Number int                     `json:"number"`
	Text   string                  `json:"text"`
	Bands  map[scoring.Band]string `json:"bands"`
}

// BandGuidance renders the per-band descriptions as prompt-ready lines in
// ascending weight order.
func (q Question) BandGuidance() string {
	var b strings.Builder
	for _, band := range scoring.Bands() {
		desc, ok := q.Bands[band]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s (%d/5): %s\n", band, band.Weight(), desc)
	}
	return b.String()
}

// Registry is the immutable question table, loaded once at process start.
type Registry struct {
	questions map[int]Question
	numbers   []int
}

type checklistFile struct {
	Questions []Question `json:"questions"`
}

// Load parses and validates the embedded checklist.
func Load() (*Registry, error) {
	return load(checklistJSON)
}

func load(data []byte) (*Registry, error) {
	schema := gojsonschema.NewBytesLoader(checklistSchemaJSON)
	document := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return nil, fmt.Errorf("failed to validate checklist: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("checklist does not match schema: %s", strings.Join(issues, "; "))
	}

	var file checklistFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse checklist: %w", err)
	}

	r := &Registry{questions: make(map[int]Question, len(file.Questions))}
	for _, q := range file.Questions {
		if _, exists := r.questions[q.Number]; exists {
			return nil, fmt.Errorf("duplicate question number %d in checklist", q.Number)
		}
		r.questions[q.Number] = q
		r.numbers = append(r.numbers, q.Number)
	}
	sort.Ints(r.numbers)

	return r, nil
}

// Get looks up a question by number.
func (r *Registry) Get(number int) (Question, bool) {
	q, ok := r.questions[number]
	return q, ok
}

// Numbers returns all question numbers in ascending order.
func (r *Registry) Numbers() []int {
	out := make([]int, len(r.numbers))
	copy(out, r.numbers)
	return out
}

// Len returns the number of checklist questions.
func (r *Registry) Len() int {
	return len(r.numbers)
}
