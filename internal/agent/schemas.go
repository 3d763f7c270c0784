package agent

import (
	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

var contextSchema = ai.MustSchema("context", `{
  "type": "object",
  "required": ["studentLevel", "optimalPace", "recommendedDifficulty", "studyPatterns"],
  "properties": {
    "studentLevel": {"enum": ["beginner", "intermediate", "advanced"]},
    "optimalPace": {"enum": ["slow", "moderate", "fast"]},
    "recommendedDifficulty": {"enum": ["easy", "medium", "hard"]},
    "studyPatterns": {"type": "array", "items": {"type": "string", "minLength": 1}, "maxItems": 8}
  }
}`)

var taskSchema = ai.MustSchema("task", `{
  "type": "object",
  "required": ["title", "instructions", "resources", "successCriteria", "difficultyCalibration", "timeBreakdown"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "instructions": {"type": "string", "minLength": 1},
    "resources": {"type": "array", "items": {"type": "string"}},
    "successCriteria": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "difficultyCalibration": {"enum": ["easy", "medium", "hard"]},
    "timeBreakdown": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["activity", "minutes"],
        "properties": {
          "activity": {"type": "string", "minLength": 1},
          "minutes": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`)

// The score is not bounded here: out-of-range scores are clamped, not rejected.
var evaluationSchema = ai.MustSchema("evaluation", `{
  "type": "object",
  "required": ["score", "analysis"],
  "properties": {
    "score": {"type": "number"},
    "efficiency": {"type": "number"},
    "analysis": {"type": "string"},
    "recommendedDifficulty": {"enum": ["easy", "medium", "hard"]}
  }
}`)

var adaptationSchema = ai.MustSchema("adaptation", `{
  "type": "object",
  "required": ["adjustments", "note"],
  "properties": {
    "adjustments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["topicId", "difficulty"],
        "properties": {
          "topicId": {"type": "string", "minLength": 1},
          "difficulty": {"enum": ["easy", "medium", "hard"]}
        }
      }
    },
    "note": {"type": "string", "maxLength": 500}
  }
}`)

// taskAnswer is the generation response for one task.
type taskAnswer struct {
	Title                 string                `json:"title"`
	Instructions          string                `json:"instructions"`
	Resources             []string              `json:"resources"`
	SuccessCriteria       []string              `json:"successCriteria"`
	DifficultyCalibration curriculum.Difficulty `json:"difficultyCalibration"`
	TimeBreakdown         []planner.TimeBlock   `json:"timeBreakdown"`
}

// evaluationAnswer is the generation response for one evaluation.
type evaluationAnswer struct {
	Score                 float64               `json:"score"`
	Efficiency            *float64              `json:"efficiency"`
	Analysis              string                `json:"analysis"`
	RecommendedDifficulty curriculum.Difficulty `json:"recommendedDifficulty"`
}

// adaptationAnswer is the generation response for one adaptation cycle.
type adaptationAnswer struct {
	Adjustments []struct {
		TopicID    string                `json:"topicId"`
		Difficulty curriculum.Difficulty `json:"difficulty"`
	} `json:"adjustments"`
	Note string `json:"note"`
}
