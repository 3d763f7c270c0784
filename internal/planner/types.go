// Package planner implements the deterministic core of daily study planning:
// weakness ranking, topic selection, time allocation, plan assembly and
// same-day adaptation. Nothing here performs I/O.
package planner

import (
	"time"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
)

// DateLayout is the canonical string form of a plan date.
const DateLayout = "2006-01-02"

// AbilityLevel is a coarse classification of the student.
type AbilityLevel string

const (
	LevelBeginner     AbilityLevel = "beginner"
	LevelIntermediate AbilityLevel = "intermediate"
	LevelAdvanced     AbilityLevel = "advanced"
)

// Pace is the study pace inferred for a student.
type Pace string

const (
	PaceSlow     Pace = "slow"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

// AllocationStatus tracks a topic allocation through the day.
type AllocationStatus string

const (
	StatusPending    AllocationStatus = "pending"
	StatusInProgress AllocationStatus = "in_progress"
	StatusCompleted  AllocationStatus = "completed"
)

// BreakKind distinguishes short and long breaks.
type BreakKind string

const (
	BreakShort BreakKind = "short"
	BreakLong  BreakKind = "long"
)

// FollowUp is the category a scored task falls into.
type FollowUp string

const (
	FollowUpRemediation   FollowUp = "remediation"
	FollowUpReinforcement FollowUp = "reinforcement"
	FollowUpExtension     FollowUp = "extension"
)

// StudentProfile is owned by an external collaborator and read-only here.
type StudentProfile struct {
	StudentID          string       `json:"student_id"`
	AbilityLevel       AbilityLevel `json:"ability_level"`
	DailyBudgetMinutes int          `json:"daily_budget_minutes"`
	PreferredSubjects  []string     `json:"preferred_subjects,omitempty"`
	TargetScore        float64      `json:"target_score"`
	AchievementRate    float64      `json:"achievement_rate"` // historical completion, 0..1
	Language           string       `json:"language,omitempty"`
	Channel            string       `json:"channel,omitempty"`
	ChannelID          string       `json:"channel_id,omitempty"`
}

// PerformanceRecord is one append-only entry of a student's history.
type PerformanceRecord struct {
	StudentID        string    `json:"student_id"`
	TopicID          string    `json:"topic_id"`
	RecordedAt       time.Time `json:"recorded_at"`
	Score            float64   `json:"score"`
	Efficiency       float64   `json:"efficiency"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	Notes            string    `json:"notes,omitempty"`
}

// Context is the analysed study context for one student and day.
type Context struct {
	StudentLevel          AbilityLevel          `json:"studentLevel"`
	OptimalPace           Pace                  `json:"optimalPace"`
	RecommendedDifficulty curriculum.Difficulty `json:"recommendedDifficulty"`
	StudyPatterns         []string              `json:"studyPatterns"`
}

// TopicAllocation pairs a topic with a minute budget within a plan.
type TopicAllocation struct {
	TopicID      string                `json:"topic_id"`
	TopicName    string                `json:"topic_name"`
	Minutes      int                   `json:"minutes"`
	SpentMinutes int                   `json:"spent_minutes"`
	StartOffset  int                   `json:"start_offset"`
	Priority     float64               `json:"priority"`
	Difficulty   curriculum.Difficulty `json:"difficulty"`
	Objectives   []string              `json:"objectives"`
	Status       AllocationStatus      `json:"status"`
}

// Remaining returns the unused minutes of the allocation.
func (a TopicAllocation) Remaining() int {
	if a.SpentMinutes >= a.Minutes {
		return 0
	}
	return a.Minutes - a.SpentMinutes
}

// BreakSlot is a scheduled break on the plan's wall clock.
type BreakSlot struct {
	OffsetMinutes   int       `json:"offset_minutes"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            BreakKind `json:"kind"`
}

// Parameters are the adaptive parameters a plan was built with.
type Parameters struct {
	Context
	FocusWindowMinutes int `json:"focus_window_minutes"`
	MinAllocation      int `json:"min_allocation"`
	MaxAllocation      int `json:"max_allocation"`
}

// Metadata describes how a plan version was produced.
type Metadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	FallbackUsed   bool      `json:"fallback_used"`
	DegradedStages []string  `json:"degraded_stages,omitempty"`
	BaseVersion    int       `json:"base_version,omitempty"`
	AdaptedThrough time.Time `json:"adapted_through,omitempty"`
	Consumed       []string  `json:"consumed_evaluations,omitempty"` // sorted evaluation IDs already adapted on
	Note           string    `json:"note,omitempty"`
}

// DailyPlan is one immutable version of a student's plan for a date.
type DailyPlan struct {
	ID            string            `json:"id"`
	StudentID     string            `json:"student_id"`
	Date          string            `json:"date"`
	Version       int               `json:"version"`
	BudgetMinutes int               `json:"budget_minutes"`
	Allocations   []TopicAllocation `json:"allocations"`
	Breaks        []BreakSlot       `json:"breaks"`
	Objectives    []string          `json:"objectives"`
	Parameters    Parameters        `json:"parameters"`
	Metadata      Metadata          `json:"metadata"`
	Fingerprint   string            `json:"fingerprint"`
}

// StudyMinutes sums allocated minutes.
func (p *DailyPlan) StudyMinutes() int {
	total := 0
	for _, a := range p.Allocations {
		total += a.Minutes
	}
	return total
}

// BreakMinutes sums break durations.
func (p *DailyPlan) BreakMinutes() int {
	total := 0
	for _, b := range p.Breaks {
		total += b.DurationMinutes
	}
	return total
}

// Allocation returns the allocation for topicID.
func (p *DailyPlan) Allocation(topicID string) (TopicAllocation, bool) {
	for _, a := range p.Allocations {
		if a.TopicID == topicID {
			return a, true
		}
	}
	return TopicAllocation{}, false
}

// Clone returns a deep copy so a new version never aliases the previous one.
func (p *DailyPlan) Clone() *DailyPlan {
	c := *p
	c.Allocations = make([]TopicAllocation, len(p.Allocations))
	for i, a := range p.Allocations {
		a.Objectives = append([]string(nil), a.Objectives...)
		c.Allocations[i] = a
	}
	c.Breaks = append([]BreakSlot(nil), p.Breaks...)
	c.Objectives = append([]string(nil), p.Objectives...)
	c.Parameters.StudyPatterns = append([]string(nil), p.Parameters.StudyPatterns...)
	c.Metadata.DegradedStages = append([]string(nil), p.Metadata.DegradedStages...)
	c.Metadata.Consumed = append([]string(nil), p.Metadata.Consumed...)
	return &c
}

// TaskStatus tracks task execution.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// TaskSettings are the adaptive settings stamped on every task.
type TaskSettings struct {
	InitialDifficulty   curriculum.Difficulty `json:"initial_difficulty"`
	CanAdjustDifficulty bool                  `json:"can_adjust_difficulty"`
	RetryAttempts       int                   `json:"retry_attempts"`
	FeedbackMechanism   string                `json:"feedback_mechanism"`
}

// TimeBlock is one entry of a task's time breakdown.
type TimeBlock struct {
	Activity string `json:"activity"`
	Minutes  int    `json:"minutes"`
}

// Task is one concrete piece of work generated for an allocation.
type Task struct {
	ID              string       `json:"id"`
	StudentID       string       `json:"student_id"`
	PlanDate        string       `json:"plan_date"`
	TopicID         string       `json:"topic_id"`
	PlanVersion     int          `json:"plan_version"`
	Title           string       `json:"title"`
	Instructions    string       `json:"instructions"`
	Resources       []string     `json:"resources"`
	SuccessCriteria []string     `json:"success_criteria"`
	TimeBreakdown   []TimeBlock  `json:"time_breakdown"`
	Settings        TaskSettings `json:"settings"`
	Status          TaskStatus   `json:"status"`
	Synthetic       bool         `json:"synthetic"`
	CreatedAt       time.Time    `json:"created_at"`
}

// PerformancePayload is the raw outcome of a task attempt.
type PerformancePayload struct {
	Attempts         int    `json:"attempts" validate:"gte=0"`
	TimeSpentMinutes int    `json:"time_spent_minutes" validate:"gte=0"`
	Correct          int    `json:"correct" validate:"gte=0"`
	Total            int    `json:"total" validate:"gte=0,gtefield=Correct"`
	Notes            string `json:"notes,omitempty"`
}

// Evaluation is created exactly once per completed task.
type Evaluation struct {
	ID                    string                `json:"id"`
	TaskID                string                `json:"task_id"`
	StudentID             string                `json:"student_id"`
	TopicID               string                `json:"topic_id"`
	PlanDate              string                `json:"plan_date"`
	Score                 float64               `json:"score"`
	Effectiveness         float64               `json:"effectiveness"`
	RecommendedDifficulty curriculum.Difficulty `json:"recommended_difficulty"`
	FollowUp              FollowUp              `json:"follow_up"`
	TimeSpentMinutes      int                   `json:"time_spent_minutes"`
	Analysis              string                `json:"analysis,omitempty"`
	Degraded              bool                  `json:"degraded"`
	CreatedAt             time.Time             `json:"created_at"`
}
