package planner

// SelectTopics walks ranked greedily. A topic is taken when the remaining
// study budget still covers cfg.MinAllocation and each prerequisite is either
// mastered or already taken earlier in this pass. Topics with unmet
// prerequisites are skipped, not fatal. Mastered topics and topics outside
// subjects (when subjects is non-empty) are not candidates.
//
// The result keeps the ranked order, so no topic precedes one of its
// prerequisites.
func SelectTopics(ranked []Ranked, studyBudget int, subjects []string, cfg Config) []Ranked {
	mastered := make(map[string]bool, len(ranked))
	for _, r := range ranked {
		if r.Mastered {
			mastered[r.Topic.ID] = true
		}
	}

	selected := make([]Ranked, 0, cfg.MaxTopics)
	taken := make(map[string]bool, cfg.MaxTopics)
	remaining := studyBudget

	for _, r := range ranked {
		if len(selected) >= cfg.MaxTopics || remaining < cfg.MinAllocation {
			break
		}
		if r.Mastered || !r.Topic.InSubjects(subjects) {
			continue
		}
		if !prerequisitesMet(r, mastered, taken) {
			continue
		}
		selected = append(selected, r)
		taken[r.Topic.ID] = true
		remaining -= cfg.MinAllocation
	}

	if len(selected) == 0 && studyBudget > 0 {
		// Budget below the floor, or everything mastered: review the
		// highest-ranked topic whose prerequisites are mastered.
		for _, r := range ranked {
			if r.Topic.InSubjects(subjects) && prerequisitesMet(r, mastered, taken) {
				return []Ranked{r}
			}
		}
	}
	return selected
}

func prerequisitesMet(r Ranked, mastered, taken map[string]bool) bool {
	for _, p := range r.Topic.Prerequisites {
		if !mastered[p] && !taken[p] {
			return false
		}
	}
	return true
}
