package planner

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
)

// TopicProgress aggregates same-day evaluations of one topic.
type TopicProgress struct {
	TopicID     string
	Average     float64
	Evaluations int
	Spent       int
}

// Cycle is the input to one adaptation cycle.
type Cycle struct {
	Evaluations []Evaluation                     // every same-day evaluation of the student
	Adjustments map[string]curriculum.Difficulty // optional per-topic difficulty changes
	Note        string
	Now         time.Time
}

// NewEvaluations returns the evaluations of plan's day that no earlier
// cycle has consumed. Consumption is tracked by evaluation ID, so records
// sharing a timestamp with the last consumed one are still picked up.
func NewEvaluations(plan *DailyPlan, evals []Evaluation) []Evaluation {
	var out []Evaluation
	for _, e := range evals {
		if e.PlanDate != plan.Date || e.StudentID != plan.StudentID {
			continue
		}
		if !plan.Metadata.consumed(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

func (m Metadata) consumed(id string) bool {
	i := sort.SearchStrings(m.Consumed, id)
	return i < len(m.Consumed) && m.Consumed[i] == id
}

// Summarize computes running averages and time spent per topic.
func Summarize(evals []Evaluation) map[string]TopicProgress {
	sums := make(map[string]float64)
	out := make(map[string]TopicProgress)
	for _, e := range evals {
		p := out[e.TopicID]
		p.TopicID = e.TopicID
		p.Evaluations++
		p.Spent += e.TimeSpentMinutes
		sums[e.TopicID] += ClampScore(e.Score)
		out[e.TopicID] = p
	}
	for id, p := range out {
		p.Average = sums[id] / float64(p.Evaluations)
		out[id] = p
	}
	return out
}

// DefaultAdjustments steps mastered topics up and struggling topics down.
// It is the adaptation stage's fallback when no difficulty advice is available.
func DefaultAdjustments(plan *DailyPlan, progress map[string]TopicProgress, cfg Config) map[string]curriculum.Difficulty {
	out := make(map[string]curriculum.Difficulty)
	for _, a := range plan.Allocations {
		p, ok := progress[a.TopicID]
		if !ok || a.Status == StatusCompleted {
			continue
		}
		switch {
		case p.Average >= cfg.MasteryThreshold:
			out[a.TopicID] = a.Difficulty.Shift(1)
		case p.Average < cfg.StruggleThreshold:
			out[a.TopicID] = a.Difficulty.Shift(-1)
		}
	}
	return out
}

// Adapt runs one adaptation cycle against plan and returns version N+1.
// It reports false, returning plan itself, when there are no evaluations
// newer than the plan's cursor or when the cycle would not change the
// schedule. plan is never modified.
//
// Only allocations that are not completed are touched. Averages cover every
// same-day evaluation, but only topics evaluated since the previous cycle
// donate or receive minutes or take difficulty adjustments. Mastered topics
// (average >= cfg.MasteryThreshold) donate cfg.DonationFraction of their
// remaining minutes without dropping below max(cfg.MinAllocation, spent);
// struggling topics (average < cfg.StruggleThreshold) receive them, lowest
// average first in proportion to their deficit, up to cfg.MaxAllocation.
// Donors give exactly what receivers take, so total study minutes are
// unchanged. Breaks are unchanged.
func Adapt(plan *DailyPlan, c Cycle, cfg Config) (*DailyPlan, bool) {
	fresh := NewEvaluations(plan, c.Evaluations)
	if len(fresh) == 0 {
		return plan, false
	}

	var sameDay []Evaluation
	for _, e := range c.Evaluations {
		if e.PlanDate == plan.Date && e.StudentID == plan.StudentID {
			sameDay = append(sameDay, e)
		}
	}
	progress := Summarize(sameDay)
	touched := make(map[string]bool, len(fresh))
	for _, e := range fresh {
		touched[e.TopicID] = true
	}

	next := plan.Clone()
	active := make([]int, 0, len(next.Allocations))
	for i, a := range next.Allocations {
		if a.Status != StatusCompleted {
			active = append(active, i)
		}
	}

	type donor struct {
		idx     int
		avg     float64
		canGive int
	}
	var donors []donor
	var receivers []int
	var deficits []float64
	var caps []int

	for _, i := range active {
		a := next.Allocations[i]
		p, ok := progress[a.TopicID]
		if !ok || !touched[a.TopicID] {
			continue
		}
		switch {
		case p.Average >= cfg.MasteryThreshold:
			keep := cfg.MinAllocation
			if p.Spent > keep {
				keep = p.Spent
			}
			remaining := a.Minutes - p.Spent
			if remaining < 0 {
				remaining = 0
			}
			give := int(cfg.DonationFraction * float64(remaining))
			if limit := a.Minutes - keep; give > limit {
				give = limit
			}
			if give > 0 {
				donors = append(donors, donor{idx: i, avg: p.Average, canGive: give})
			}
		case p.Average < cfg.StruggleThreshold:
			if room := cfg.MaxAllocation - a.Minutes; room > 0 {
				receivers = append(receivers, i)
				deficits = append(deficits, cfg.StruggleThreshold-p.Average)
				caps = append(caps, room)
			}
		}
	}

	sort.SliceStable(donors, func(i, j int) bool {
		if donors[i].avg != donors[j].avg {
			return donors[i].avg > donors[j].avg
		}
		return next.Allocations[donors[i].idx].TopicID < next.Allocations[donors[j].idx].TopicID
	})
	order := make([]int, len(receivers))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(x, y int) bool {
		i, j := order[x], order[y]
		if deficits[i] != deficits[j] {
			return deficits[i] > deficits[j]
		}
		return next.Allocations[receivers[i]].TopicID < next.Allocations[receivers[j]].TopicID
	})
	sortedDeficits := make([]float64, len(order))
	sortedCaps := make([]int, len(order))
	for k, o := range order {
		sortedDeficits[k] = deficits[o]
		sortedCaps[k] = caps[o]
	}

	pool := 0
	for _, d := range donors {
		pool += d.canGive
	}
	given := distribute(pool, sortedDeficits, sortedCaps)

	taken := 0
	for k, o := range order {
		next.Allocations[receivers[o]].Minutes += given[k]
		taken += given[k]
	}
	for _, d := range donors {
		if taken == 0 {
			break
		}
		g := d.canGive
		if g > taken {
			g = taken
		}
		next.Allocations[d.idx].Minutes -= g
		taken -= g
	}

	for _, i := range active {
		a := &next.Allocations[i]
		p, ok := progress[a.TopicID]
		if !ok {
			continue
		}
		a.SpentMinutes = p.Spent
		if a.SpentMinutes > a.Minutes {
			a.SpentMinutes = a.Minutes
		}
		if a.SpentMinutes >= a.Minutes {
			a.Status = StatusCompleted
		} else {
			a.Status = StatusInProgress
		}
		if d, ok := c.Adjustments[a.TopicID]; ok && d != "" && touched[a.TopicID] {
			a.Difficulty = d
		}
	}

	// Refresh start offsets of the allocations still open; the break layout
	// depends only on total study minutes, which is unchanged.
	scratch := next.Clone()
	Schedule(scratch.Allocations, next.BudgetMinutes, cfg)
	for _, i := range active {
		next.Allocations[i].StartOffset = scratch.Allocations[i].StartOffset
	}

	next.Fingerprint = Fingerprint(next)
	if next.Fingerprint == plan.Fingerprint {
		return plan, false
	}

	next.ID = uuid.NewString()
	next.Version = plan.Version + 1
	next.Metadata.BaseVersion = plan.Version
	next.Metadata.GeneratedAt = c.Now
	next.Metadata.Note = c.Note
	for _, e := range fresh {
		if e.CreatedAt.After(next.Metadata.AdaptedThrough) {
			next.Metadata.AdaptedThrough = e.CreatedAt
		}
		next.Metadata.Consumed = append(next.Metadata.Consumed, e.ID)
	}
	sort.Strings(next.Metadata.Consumed)
	return next, true
}

// distribute hands out up to pool minutes in proportion to weights without
// exceeding caps. Weights and caps are ordered by precedence; rounding
// leftovers go to the earliest entries with room.
func distribute(pool int, weights []float64, caps []int) []int {
	out := make([]int, len(weights))
	for pool > 0 {
		total := 0.0
		for i, w := range weights {
			if out[i] < caps[i] {
				total += w
			}
		}
		if total == 0 {
			break
		}

		handed := 0
		budget := pool
		for i, w := range weights {
			room := caps[i] - out[i]
			if room <= 0 {
				continue
			}
			share := int(float64(budget) * w / total)
			if share > room {
				share = room
			}
			out[i] += share
			handed += share
		}
		pool -= handed

		if handed == 0 {
			// Shares rounded to zero: one minute at a time in precedence order.
			for i := range weights {
				if pool == 0 {
					break
				}
				if out[i] < caps[i] {
					out[i]++
					pool--
				}
			}
		}
	}
	return out
}
