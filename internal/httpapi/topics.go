package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// TopicCatalog is the read-only curriculum view served under /v1/topics.
type TopicCatalog interface {
	Query(f curriculum.Filter) []curriculum.Topic
	GetTopic(id string) (curriculum.Topic, error)
	Dependents(id string) []string
}

type topicView struct {
	curriculum.Topic
	Dependents []string `json:"dependents"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := curriculum.Filter{
		Subject:               q.Get("subject"),
		RequiredPrerequisites: q["prerequisite"],
	}
	if d := q.Get("difficulty"); d != "" {
		diff, err := curriculum.ParseDifficulty(d)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", planner.ErrInvalidParameter, err))
			return
		}
		f.Difficulty = diff
	}
	if mw := q.Get("max_weight"); mw != "" {
		v, err := strconv.ParseFloat(mw, 64)
		if err != nil || v <= 0 {
			writeError(w, r, fmt.Errorf("%w: max_weight %q", planner.ErrInvalidParameter, mw))
			return
		}
		f.MaxWeight = v
	}

	topics := s.topics.Query(f)
	if topics == nil {
		topics = []curriculum.Topic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("topicID")
	t, err := s.topics.GetTopic(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deps := s.topics.Dependents(id)
	if deps == nil {
		deps = []string{}
	}
	writeJSON(w, http.StatusOK, topicView{Topic: t, Dependents: deps})
}
