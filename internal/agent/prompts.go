package agent

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/planner"
)

// Prompt history is capped so a long-standing student does not blow the
// context window.
const maxPromptRecords = 20

const contextSystemPrompt = `You analyse a secondary school student's study history for a daily study planner.
Answer with a single JSON object and nothing else:
{"studentLevel": "beginner|intermediate|advanced",
 "optimalPace": "slow|moderate|fast",
 "recommendedDifficulty": "easy|medium|hard",
 "studyPatterns": ["short snake_case labels"]}`

const taskSystemPrompt = `You write one focused study task for a secondary school student.
Answer with a single JSON object and nothing else:
{"title": string, "instructions": string, "resources": [string],
 "successCriteria": [string], "difficultyCalibration": "easy|medium|hard",
 "timeBreakdown": [{"activity": string, "minutes": integer}]}
The time breakdown must add up to the minutes given. Write in the student's language.`

const evaluationSystemPrompt = `You grade a student's attempt at a study task.
Answer with a single JSON object and nothing else:
{"score": number from 0 to 100, "efficiency": number from 0 to 1,
 "analysis": string, "recommendedDifficulty": "easy|medium|hard"}`

const adaptationSystemPrompt = `You adjust a student's study plan in the middle of the day.
Minutes are already rebalanced; only suggest difficulty changes for unfinished topics.
Answer with a single JSON object and nothing else:
{"adjustments": [{"topicId": string, "difficulty": "easy|medium|hard"}], "note": string}
Keep the note under two sentences and address the student directly.`

func contextPrompt(profile planner.StudentProfile, history []planner.PerformanceRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ability level on file: %s\n", orUnknown(string(profile.AbilityLevel)))
	fmt.Fprintf(&b, "Daily budget: %d minutes\n", profile.DailyBudgetMinutes)
	fmt.Fprintf(&b, "Target score: %.0f\n", profile.TargetScore)
	fmt.Fprintf(&b, "Historical completion rate: %.2f\n", planner.AchievementRate(profile, history))
	if len(profile.PreferredSubjects) > 0 {
		fmt.Fprintf(&b, "Preferred subjects: %s\n", strings.Join(profile.PreferredSubjects, ", "))
	}
	if len(history) > maxPromptRecords {
		history = history[len(history)-maxPromptRecords:]
	}
	if len(history) == 0 {
		b.WriteString("No recorded performance yet.\n")
		return b.String()
	}
	b.WriteString("Recent performance (oldest first):\n")
	for _, r := range history {
		fmt.Fprintf(&b, "- %s %s score=%.0f efficiency=%.2f minutes=%d\n",
			r.RecordedAt.Format("2006-01-02"), r.TopicID, r.Score, r.Efficiency, r.TimeSpentMinutes)
	}
	return b.String()
}

func taskPrompt(plan *planner.DailyPlan, a planner.TopicAllocation, topic curriculum.Topic, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s (%s)\n", topic.Name(lang), topic.ID)
	fmt.Fprintf(&b, "Minutes: %d\n", a.Minutes)
	fmt.Fprintf(&b, "Difficulty: %s\n", a.Difficulty)
	fmt.Fprintf(&b, "Student level: %s, pace: %s\n", plan.Parameters.StudentLevel, plan.Parameters.OptimalPace)
	fmt.Fprintf(&b, "Language: %s\n", orDefault(lang, "en"))
	if len(a.Objectives) > 0 {
		b.WriteString("Objectives:\n")
		for _, o := range a.Objectives {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	return b.String()
}

func evaluationPrompt(task planner.Task, a planner.TopicAllocation, p planner.PerformancePayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	fmt.Fprintf(&b, "Instructions: %s\n", task.Instructions)
	if len(task.SuccessCriteria) > 0 {
		fmt.Fprintf(&b, "Success criteria: %s\n", strings.Join(task.SuccessCriteria, "; "))
	}
	fmt.Fprintf(&b, "Difficulty: %s\n", a.Difficulty)
	fmt.Fprintf(&b, "Planned minutes: %d, spent: %d\n", a.Minutes, p.TimeSpentMinutes)
	fmt.Fprintf(&b, "Attempts: %d\n", p.Attempts)
	fmt.Fprintf(&b, "Correct: %d of %d\n", p.Correct, p.Total)
	if p.Notes != "" {
		fmt.Fprintf(&b, "Student notes: %s\n", p.Notes)
	}
	return b.String()
}

func adaptationPrompt(plan *planner.DailyPlan, progress map[string]planner.TopicProgress) string {
	var b strings.Builder
	b.WriteString("Unfinished topics:\n")
	for _, a := range plan.Allocations {
		if a.Status == planner.StatusCompleted {
			continue
		}
		p, ok := progress[a.TopicID]
		if !ok {
			fmt.Fprintf(&b, "- %s difficulty=%s minutes=%d not started\n", a.TopicID, a.Difficulty, a.Minutes)
			continue
		}
		fmt.Fprintf(&b, "- %s difficulty=%s minutes=%d spent=%d average=%.0f evaluations=%d\n",
			a.TopicID, a.Difficulty, a.Minutes, p.Spent, p.Average, p.Evaluations)
	}
	return b.String()
}

func orUnknown(s string) string {
	return orDefault(s, "unknown")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
