package curriculum

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Difficulty grades how demanding a topic is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts the canonical names plus the legacy
// beginner/intermediate/advanced labels used by older topic files.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "beginner":
		return DifficultyEasy, nil
	case "medium", "intermediate", "":
		return DifficultyMedium, nil
	case "hard", "advanced":
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// Rank orders difficulties from 0 (easy) to 2 (hard).
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyHard:
		return 2
	default:
		return 1
	}
}

// Shift moves the difficulty by delta steps, clamped to the easy..hard range.
func (d Difficulty) Shift(delta int) Difficulty {
	r := d.Rank() + delta
	switch {
	case r <= 0:
		return DifficultyEasy
	case r >= 2:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Topic is an atomic unit of exam content.
type Topic struct {
	ID                 string              `yaml:"id"`
	Names              map[string]string   `yaml:"names"`
	SubjectID          string              `yaml:"subject_id"`
	Weight             float64             `yaml:"weight"`
	Difficulty         Difficulty          `yaml:"difficulty"`
	Prerequisites      []string            `yaml:"prerequisites"`
	LearningObjectives []LearningObjective `yaml:"learning_objectives"`
}

// LearningObjective is one ordered objective within a topic.
type LearningObjective struct {
	ID    string `yaml:"id"`
	Text  string `yaml:"text"`
	Bloom string `yaml:"bloom"`
}

// Name returns the topic name in the language closest to lang. Topics
// without any names fall back to their ID.
func (t Topic) Name(lang string) string {
	if len(t.Names) == 0 {
		return t.ID
	}
	keys := make([]string, 0, len(t.Names))
	tags := make([]language.Tag, 0, len(t.Names))
	// English first so it wins as the matcher's default.
	if _, ok := t.Names["en"]; ok {
		keys = append(keys, "en")
		tags = append(tags, language.English)
	}
	for k := range t.Names {
		if k == "en" {
			continue
		}
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		keys = append(keys, k)
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return t.ID
	}
	want, err := language.Parse(lang)
	if err != nil {
		return t.Names[keys[0]]
	}
	_, idx, _ := language.NewMatcher(tags).Match(want)
	return t.Names[keys[idx]]
}

// FirstObjective returns the text of the first learning objective, if any.
func (t Topic) FirstObjective() string {
	if len(t.LearningObjectives) == 0 {
		return ""
	}
	return t.LearningObjectives[0].Text
}

// topicFile is the on-disk YAML shape. Older files carry a single name and a
// required/recommended prerequisite block.
type topicFile struct {
	ID                 string              `yaml:"id"`
	Name               string              `yaml:"name"`
	NameMS             string              `yaml:"name_ms"`
	Names              map[string]string   `yaml:"names"`
	SubjectID          string              `yaml:"subject_id"`
	Weight             float64             `yaml:"weight"`
	Difficulty         string              `yaml:"difficulty"`
	LearningObjectives []LearningObjective `yaml:"learning_objectives"`
	Prerequisites      prerequisites       `yaml:"prerequisites"`
}

type prerequisites struct {
	Required []string
}

// UnmarshalYAML accepts either a plain list or a {required, recommended} map.
func (p *prerequisites) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		p.Required = list
		return nil
	}
	var block struct {
		Required    []string `yaml:"required"`
		Recommended []string `yaml:"recommended"`
	}
	if err := unmarshal(&block); err != nil {
		return err
	}
	p.Required = block.Required
	return nil
}

func (f topicFile) toTopic() (Topic, error) {
	difficulty, err := ParseDifficulty(f.Difficulty)
	if err != nil {
		return Topic{}, fmt.Errorf("topic %s: %w", f.ID, err)
	}
	names := make(map[string]string, len(f.Names)+2)
	for k, v := range f.Names {
		names[k] = v
	}
	if f.Name != "" {
		if _, ok := names["en"]; !ok {
			names["en"] = f.Name
		}
	}
	if f.NameMS != "" {
		names["ms"] = f.NameMS
	}
	weight := f.Weight
	if weight <= 0 {
		weight = 1
	}
	return Topic{
		ID:                 f.ID,
		Names:              names,
		SubjectID:          f.SubjectID,
		Weight:             weight,
		Difficulty:         difficulty,
		Prerequisites:      append([]string(nil), f.Prerequisites.Required...),
		LearningObjectives: f.LearningObjectives,
	}, nil
}
