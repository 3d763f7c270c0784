package planner

import "github.com/p-n-ai/pai-planner/internal/curriculum"

// Achievement-rate thresholds used by HeuristicContext.
const (
	lowAchievement  = 0.5
	highAchievement = 0.8
)

// AchievementRate returns the profile's completion rate, or the mean score of
// the history scaled to 0..1 when the profile does not carry one.
func AchievementRate(profile StudentProfile, history []PerformanceRecord) float64 {
	if profile.AchievementRate > 0 {
		return clamp(profile.AchievementRate, 0, 1)
	}
	if len(history) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range history {
		sum += clamp(r.Score, 0, 100)
	}
	return sum / float64(len(history)) / 100
}

// HeuristicContext derives a study context from numeric thresholds only.
// It is the fallback for the context analysis stage and is a pure function.
func HeuristicContext(profile StudentProfile, history []PerformanceRecord) Context {
	rate := AchievementRate(profile, history)

	switch {
	case rate < lowAchievement:
		return Context{
			StudentLevel:          LevelBeginner,
			OptimalPace:           PaceSlow,
			RecommendedDifficulty: curriculum.DifficultyEasy,
			StudyPatterns:         []string{"short_focus_blocks", "worked_examples_first"},
		}
	case rate < highAchievement:
		return Context{
			StudentLevel:          LevelIntermediate,
			OptimalPace:           PaceModerate,
			RecommendedDifficulty: curriculum.DifficultyMedium,
			StudyPatterns:         []string{"mixed_practice"},
		}
	default:
		return Context{
			StudentLevel:          LevelAdvanced,
			OptimalPace:           PaceFast,
			RecommendedDifficulty: curriculum.DifficultyHard,
			StudyPatterns:         []string{"challenge_problems", "timed_practice"},
		}
	}
}

// ValidContext reports whether every field holds a known value.
func ValidContext(c Context) bool {
	switch c.StudentLevel {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
	default:
		return false
	}
	switch c.OptimalPace {
	case PaceSlow, PaceModerate, PaceFast:
	default:
		return false
	}
	switch c.RecommendedDifficulty {
	case curriculum.DifficultyEasy, curriculum.DifficultyMedium, curriculum.DifficultyHard:
	default:
		return false
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
