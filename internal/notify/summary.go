package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

type phrases struct {
	heading   string
	minutes   string
	breaks    string
	firstTask string
	adjusted  string
}

var (
	phraseTags = []language.Tag{language.English, language.Malay}
	phraseBook = []phrases{
		{
			heading:   "Your study plan for %s (%d min)",
			minutes:   "%d min",
			breaks:    "Breaks: %d min",
			firstTask: "Start with: %s",
			adjusted:  "Some tasks were prepared without the tutor and may be simpler than usual.",
		},
		{
			heading:   "Pelan belajar anda untuk %s (%d minit)",
			minutes:   "%d minit",
			breaks:    "Rehat: %d minit",
			firstTask: "Mulakan dengan: %s",
			adjusted:  "Sesetengah tugasan disediakan tanpa tutor dan mungkin lebih ringkas daripada biasa.",
		},
	}
	phraseMatcher = language.NewMatcher(phraseTags)
)

func phrasesFor(lang string) phrases {
	tag, err := language.Parse(lang)
	if err != nil {
		return phraseBook[0]
	}
	_, idx, _ := phraseMatcher.Match(tag)
	return phraseBook[idx]
}

// Summary renders a short plain-text summary of plan in lang.
func Summary(plan *planner.DailyPlan, tasks []planner.Task, lang string) string {
	p := phrasesFor(lang)

	var b strings.Builder
	fmt.Fprintf(&b, p.heading, plan.Date, plan.BudgetMinutes)
	b.WriteString("\n")
	for i, a := range plan.Allocations {
		fmt.Fprintf(&b, "%d. %s (%s, "+p.minutes+")\n", i+1, a.TopicName, a.Difficulty, a.Minutes)
	}
	if m := plan.BreakMinutes(); m > 0 {
		fmt.Fprintf(&b, p.breaks+"\n", m)
	}
	if len(tasks) > 0 && tasks[0].Title != "" {
		fmt.Fprintf(&b, p.firstTask+"\n", tasks[0].Title)
	}
	if plan.Metadata.FallbackUsed {
		b.WriteString(p.adjusted + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// PlanNotifier sends a summary of each new plan to the student's channel.
type PlanNotifier struct {
	gateway *Gateway
}

// NewPlanNotifier creates a notifier over gateway.
func NewPlanNotifier(gateway *Gateway) *PlanNotifier {
	return &PlanNotifier{gateway: gateway}
}

// NotifyPlan delivers the summary. Students without a channel, or with a
// channel that is not registered, are skipped.
func (n *PlanNotifier) NotifyPlan(ctx context.Context, profile planner.StudentProfile, plan *planner.DailyPlan, tasks []planner.Task) error {
	if profile.Channel == "" || profile.ChannelID == "" {
		return nil
	}
	if !n.gateway.HasChannel(profile.Channel) {
		slog.Debug("plan notification skipped",
			"student_id", profile.StudentID,
			"channel", profile.Channel,
		)
		return nil
	}
	return n.gateway.Send(ctx, Message{
		Channel:   profile.Channel,
		Recipient: profile.ChannelID,
		Text:      Summary(plan, tasks, profile.Language),
	})
}
