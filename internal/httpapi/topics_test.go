package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/httpapi"
)

func topicGraph(t *testing.T) *curriculum.Graph {
	t.Helper()
	g, err := curriculum.NewGraph([]curriculum.Topic{
		{ID: "alg-1", SubjectID: "algebra", Weight: 10, Difficulty: curriculum.DifficultyMedium},
		{ID: "alg-2", SubjectID: "algebra", Weight: 4, Difficulty: curriculum.DifficultyHard, Prerequisites: []string{"alg-1"}},
		{ID: "geo-1", SubjectID: "Geometry", Weight: 5, Difficulty: curriculum.DifficultyEasy},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

func TestTopics(t *testing.T) {
	srv := newServer(t, httpapi.Config{Topics: topicGraph(t)})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all", query: "", want: []string{"alg-1", "alg-2", "geo-1"}},
		{name: "subject case-insensitive", query: "?subject=GEOMETRY", want: []string{"geo-1"}},
		{name: "difficulty alias", query: "?difficulty=advanced", want: []string{"alg-2"}},
		{name: "max weight", query: "?max_weight=5", want: []string{"alg-2", "geo-1"}},
		{name: "prerequisite", query: "?prerequisite=alg-1", want: []string{"alg-2"}},
		{name: "no match", query: "?subject=physics", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, srv.URL+"/v1/topics"+tt.query, "")
			wantStatus(t, resp, http.StatusOK)
			body := decode[struct {
				Topics []curriculum.Topic `json:"topics"`
			}](t, resp)
			got := []string{}
			for _, tp := range body.Topics {
				got = append(got, tp.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("topic IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}

	for _, q := range []string{"?difficulty=extreme", "?max_weight=-1", "?max_weight=heavy"} {
		wantStatus(t, do(t, http.MethodGet, srv.URL+"/v1/topics"+q, ""), http.StatusBadRequest)
	}
}

func TestTopic(t *testing.T) {
	srv := newServer(t, httpapi.Config{Topics: topicGraph(t)})

	resp := do(t, http.MethodGet, srv.URL+"/v1/topics/alg-1", "")
	wantStatus(t, resp, http.StatusOK)
	body := decode[struct {
		ID         string
		Dependents []string `json:"dependents"`
	}](t, resp)
	if body.ID != "alg-1" || !cmp.Equal(body.Dependents, []string{"alg-2"}) {
		t.Errorf("topic = %+v", body)
	}

	wantStatus(t, do(t, http.MethodGet, srv.URL+"/v1/topics/nope", ""), http.StatusNotFound)

	bare := newServer(t, httpapi.Config{})
	wantStatus(t, do(t, http.MethodGet, bare.URL+"/v1/topics", ""), http.StatusNotFound)
}
