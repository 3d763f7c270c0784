package planner

import (
	"sort"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
)

// unknownErrorRate is assumed for topics with no history.
const unknownErrorRate = 0.5

// TopicGraph is the read-only view of the topic graph the planner needs.
type TopicGraph interface {
	GetTopic(id string) (curriculum.Topic, error)
	TopologicalOrder() []string
}

// TopicStat summarises recent performance on one topic.
type TopicStat struct {
	Attempts     int
	ErrorRate    float64
	MasteryDepth int
	Mastered     bool
}

// Ranked is a topic with its weakness score.
type Ranked struct {
	Topic    curriculum.Topic
	Score    float64
	Mastered bool
}

// TopicStats reduces a student's history to per-topic statistics using the
// most recent cfg.RecentWindow records of each topic.
func TopicStats(history []PerformanceRecord, cfg Config) map[string]TopicStat {
	byTopic := make(map[string][]PerformanceRecord)
	for _, r := range history {
		byTopic[r.TopicID] = append(byTopic[r.TopicID], r)
	}

	stats := make(map[string]TopicStat, len(byTopic))
	for id, recs := range byTopic {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].RecordedAt.Before(recs[j].RecordedAt) })
		if len(recs) > cfg.RecentWindow {
			recs = recs[len(recs)-cfg.RecentWindow:]
		}
		sum := 0.0
		depth := 0
		for _, r := range recs {
			s := clamp(r.Score, 0, 100)
			sum += s
			if s >= cfg.MasteryThreshold {
				depth++
			}
		}
		mean := sum / float64(len(recs))
		stats[id] = TopicStat{
			Attempts:     len(recs),
			ErrorRate:    1 - mean/100,
			MasteryDepth: depth,
			Mastered:     mean >= cfg.MasteryThreshold,
		}
	}
	return stats
}

// severity grows faster than linearly so frequent errors dominate, and never
// reaches zero so a clean record still carries its topic weight.
func severity(errorRate float64) float64 {
	e := clamp(errorRate, 0, 1)
	return 0.1 + e*e
}

// AssessWeakness ranks every topic in the graph by
//
//	score = severity(recentErrorRate) * weight / (1 + masteryDepth)
//
// then pushes cfg.PropagationFactor of each topic's score onto its
// non-mastered prerequisites, dependents first so deficits cascade down
// prerequisite chains. The result is ordered by descending score with
// ascending topic ID breaking ties.
func AssessWeakness(g TopicGraph, history []PerformanceRecord, cfg Config) []Ranked {
	stats := TopicStats(history, cfg)
	order := g.TopologicalOrder()

	topics := make(map[string]curriculum.Topic, len(order))
	scores := make(map[string]float64, len(order))
	for _, id := range order {
		t, err := g.GetTopic(id)
		if err != nil {
			continue
		}
		topics[id] = t
		st, seen := stats[id]
		errRate := unknownErrorRate
		if seen {
			errRate = st.ErrorRate
		}
		scores[id] = severity(errRate) * t.Weight / float64(1+st.MasteryDepth)
	}

	for i := len(order) - 1; i >= 0; i-- {
		t, ok := topics[order[i]]
		if !ok {
			continue
		}
		share := cfg.PropagationFactor * scores[t.ID]
		for _, p := range t.Prerequisites {
			if stats[p].Mastered {
				continue
			}
			scores[p] += share
		}
	}

	ranked := make([]Ranked, 0, len(topics))
	for id, t := range topics {
		ranked = append(ranked, Ranked{Topic: t, Score: scores[id], Mastered: stats[id].Mastered})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Topic.ID < ranked[j].Topic.ID
	})
	return ranked
}
