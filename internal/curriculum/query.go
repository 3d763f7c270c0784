package curriculum

import "golang.org/x/text/cases"

// Filter narrows a topic query. Zero-valued fields do not filter.
type Filter struct {
	Subject               string
	Difficulty            Difficulty
	MaxWeight             float64
	RequiredPrerequisites []string
}

// Query returns topics matching every set field of f, ordered by ID.
func (g *Graph) Query(f Filter) []Topic {
	fold := cases.Fold()
	subject := fold.String(f.Subject)

	var out []Topic
	for _, id := range g.sortedIDs() {
		t := g.topics[id]
		if subject != "" && fold.String(t.SubjectID) != subject {
			continue
		}
		if f.Difficulty != "" && t.Difficulty != f.Difficulty {
			continue
		}
		if f.MaxWeight > 0 && t.Weight > f.MaxWeight {
			continue
		}
		if !hasAll(t.Prerequisites, f.RequiredPrerequisites) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// InSubjects reports whether the topic's subject is one of subjects, compared
// case-insensitively. An empty list matches everything.
func (t Topic) InSubjects(subjects []string) bool {
	if len(subjects) == 0 {
		return true
	}
	fold := cases.Fold()
	s := fold.String(t.SubjectID)
	for _, want := range subjects {
		if fold.String(want) == s {
			return true
		}
	}
	return false
}

func hasAll(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
