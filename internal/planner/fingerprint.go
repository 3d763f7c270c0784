package planner

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes the schedule-relevant content of a plan: allocations
// (topic, minutes, spent, difficulty, status) and breaks. Two versions with
// the same fingerprint schedule the day identically.
func Fingerprint(p *DailyPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d\n", p.StudentID, p.Date, p.BudgetMinutes)
	for _, a := range p.Allocations {
		fmt.Fprintf(&b, "a|%s|%d|%d|%s|%s\n", a.TopicID, a.Minutes, a.SpentMinutes, a.Difficulty, a.Status)
	}
	for _, br := range p.Breaks {
		fmt.Fprintf(&b, "b|%d|%d|%s\n", br.OffsetMinutes, br.DurationMinutes, br.Kind)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
