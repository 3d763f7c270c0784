package planner

// Design parameters of the allocator:
//
//   - Study runs in continuous blocks of at most cfg.FocusWindow minutes. A
//     break follows every full block that is not the end of the day. Every
//     cfg.LongBreakEvery-th break lasts cfg.LongBreak minutes, the rest
//     cfg.ShortBreak.
//   - Study minutes are split across topics in proportion to their weakness
//     score, with every topic held between cfg.MinAllocation and
//     cfg.MaxAllocation.
//   - Rounding is to whole minutes. The rounding remainder goes to the
//     highest-priority topics with room under the ceiling. Minutes the break
//     arithmetic cannot place, or that no topic can take, are added to the
//     last break. Nothing is dropped, so study plus break minutes always
//     equal the budget.
//   - Allocations are ordered by descending priority.

// breakAt returns the duration and kind of the n-th break (1-based).
func breakAt(n int, cfg Config) (int, BreakKind) {
	if cfg.LongBreakEvery > 0 && cfg.LongBreak > 0 && n%cfg.LongBreakEvery == 0 {
		return cfg.LongBreak, BreakLong
	}
	return cfg.ShortBreak, BreakShort
}

func breakMinutes(count int, cfg Config) int {
	total := 0
	for n := 1; n <= count; n++ {
		d, _ := breakAt(n, cfg)
		total += d
	}
	return total
}

func breaksFor(study int, cfg Config) int {
	if study <= 0 {
		return 0
	}
	return (study - 1) / cfg.FocusWindow
}

// StudyMinutes returns the largest number of study minutes that fits in
// budget together with the breaks that study time requires.
func StudyMinutes(budget int, cfg Config) int {
	for s := budget; s > 0; s-- {
		if s+breakMinutes(breaksFor(s, cfg), cfg) <= budget {
			return s
		}
	}
	return 0
}

// Allocate splits budget across selected topics (already in priority order)
// and schedules breaks.
func Allocate(selected []Ranked, budget int, c Context, lang string, cfg Config) ([]TopicAllocation, []BreakSlot) {
	if budget <= 0 {
		return nil, nil
	}
	study := StudyMinutes(budget, cfg)
	if len(selected) == 0 || study == 0 {
		// Nothing to study: the whole budget is free time.
		return nil, []BreakSlot{{OffsetMinutes: 0, DurationMinutes: budget, Kind: BreakLong}}
	}

	for len(selected) > 1 && len(selected)*cfg.MinAllocation > study {
		selected = selected[:len(selected)-1]
	}

	minutes := splitMinutes(selected, study, cfg)

	allocs := make([]TopicAllocation, len(selected))
	for i, r := range selected {
		allocs[i] = TopicAllocation{
			TopicID:    r.Topic.ID,
			TopicName:  r.Topic.Name(lang),
			Minutes:    minutes[i],
			Priority:   r.Score,
			Difficulty: r.Topic.Difficulty.Shift(c.RecommendedDifficulty.Rank() - 1),
			Objectives: objectiveSubset(r, minutes[i], c.OptimalPace),
			Status:     StatusPending,
		}
	}

	breaks := Schedule(allocs, budget, cfg)
	return allocs, breaks
}

// splitMinutes distributes study minutes proportionally to score with floor
// and ceiling constraints (water-filling), then rounds to whole minutes.
func splitMinutes(selected []Ranked, study int, cfg Config) []int {
	n := len(selected)
	weights := make([]float64, n)
	totalWeight := 0.0
	for i, r := range selected {
		if r.Score > 0 {
			weights[i] = r.Score
			totalWeight += r.Score
		}
	}
	if totalWeight == 0 {
		for i := range weights {
			weights[i] = 1
		}
	}

	floor := float64(cfg.MinAllocation)
	ceiling := float64(cfg.MaxAllocation)
	if n*cfg.MinAllocation > study {
		floor = 0 // a single topic below the floor keeps the whole budget
	}

	fixed := make(map[int]float64, n)
	raw := make([]float64, n)
	for {
		pool := float64(study)
		freeWeight := 0.0
		for i := 0; i < n; i++ {
			if v, ok := fixed[i]; ok {
				pool -= v
				continue
			}
			freeWeight += weights[i]
		}
		if freeWeight == 0 {
			break
		}

		var low, high []int
		for i := 0; i < n; i++ {
			if _, ok := fixed[i]; ok {
				continue
			}
			raw[i] = pool * weights[i] / freeWeight
			if raw[i] < floor {
				low = append(low, i)
			} else if raw[i] > ceiling {
				high = append(high, i)
			}
		}
		if len(low) > 0 {
			for _, i := range low {
				fixed[i] = floor
			}
			continue
		}
		if len(high) > 0 {
			for _, i := range high {
				fixed[i] = ceiling
			}
			continue
		}
		break
	}

	out := make([]int, n)
	sum := 0
	for i := 0; i < n; i++ {
		v := raw[i]
		if f, ok := fixed[i]; ok {
			v = f
		}
		out[i] = int(v)
		sum += out[i]
	}

	// Remainder goes to the highest-priority topics with room under the
	// ceiling. Whatever no topic can take becomes break time in Schedule.
	rest := study - sum
	for i := 0; i < n && rest > 0; i++ {
		room := cfg.MaxAllocation - out[i]
		if room <= 0 {
			continue
		}
		if room > rest {
			room = rest
		}
		out[i] += room
		rest -= room
	}
	return out
}

// Schedule lays allocations out on the wall clock, sets each StartOffset and
// returns the breaks. The allocations' minutes must sum to no more than
// budget; anything not covered by study or regular breaks is added to the
// last break.
func Schedule(allocs []TopicAllocation, budget int, cfg Config) []BreakSlot {
	total := 0
	for _, a := range allocs {
		total += a.Minutes
	}

	var breaks []BreakSlot
	wall, studied := 0, 0
	for i := range allocs {
		allocs[i].StartOffset = wall
		left := allocs[i].Minutes
		for left > 0 {
			chunk := cfg.FocusWindow - studied%cfg.FocusWindow
			if chunk > left {
				chunk = left
			}
			studied += chunk
			wall += chunk
			left -= chunk
			if studied%cfg.FocusWindow == 0 && studied < total {
				d, kind := breakAt(len(breaks)+1, cfg)
				breaks = append(breaks, BreakSlot{OffsetMinutes: wall, DurationMinutes: d, Kind: kind})
				wall += d
			}
		}
	}

	if spare := budget - wall; spare > 0 {
		if len(breaks) == 0 {
			kind := BreakShort
			if cfg.LongBreak > 0 && spare >= cfg.LongBreak {
				kind = BreakLong
			}
			breaks = append(breaks, BreakSlot{OffsetMinutes: wall, DurationMinutes: spare, Kind: kind})
		} else {
			last := &breaks[len(breaks)-1]
			last.DurationMinutes += spare
			for i := range allocs {
				if allocs[i].StartOffset > last.OffsetMinutes {
					allocs[i].StartOffset += spare
				}
			}
		}
	}
	return breaks
}

func minutesPerObjective(p Pace) int {
	switch p {
	case PaceSlow:
		return 25
	case PaceFast:
		return 15
	default:
		return 20
	}
}

func objectiveSubset(r Ranked, minutes int, pace Pace) []string {
	objs := r.Topic.LearningObjectives
	if len(objs) == 0 {
		return []string{}
	}
	k := minutes / minutesPerObjective(pace)
	if k < 1 {
		k = 1
	}
	if k > len(objs) {
		k = len(objs)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = objs[i].Text
	}
	return out
}
