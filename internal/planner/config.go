package planner

import "fmt"

// Config holds the explicit design parameters of the planning pipeline.
type Config struct {
	MinAllocation     int     // per-topic floor in minutes
	MaxAllocation     int     // per-topic ceiling in minutes
	MaxTopics         int     // topics per plan
	FocusWindow       int     // continuous study minutes before a break
	ShortBreak        int     // minutes
	LongBreak         int     // minutes
	LongBreakEvery    int     // every n-th break is long; 0 disables long breaks
	MasteryThreshold  float64 // average score at or above which a topic is mastered
	StruggleThreshold float64 // average score below which a topic is struggling
	DonationFraction  float64 // share of a mastered topic's remaining minutes given away
	PropagationFactor float64 // share of a weakness score pushed to unmet prerequisites
	RecentWindow      int     // performance records considered per topic
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinAllocation:     15,
		MaxAllocation:     120,
		MaxTopics:         6,
		FocusWindow:       45,
		ShortBreak:        5,
		LongBreak:         15,
		LongBreakEvery:    4,
		MasteryThreshold:  85,
		StruggleThreshold: 70,
		DonationFraction:  0.5,
		PropagationFactor: 0.3,
		RecentWindow:      5,
	}
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	switch {
	case c.MinAllocation <= 0:
		return fmt.Errorf("%w: min allocation %d", ErrInvalidParameter, c.MinAllocation)
	case c.MaxAllocation < c.MinAllocation:
		return fmt.Errorf("%w: max allocation %d below min %d", ErrInvalidParameter, c.MaxAllocation, c.MinAllocation)
	case c.MaxTopics <= 0:
		return fmt.Errorf("%w: max topics %d", ErrInvalidParameter, c.MaxTopics)
	case c.FocusWindow <= 0:
		return fmt.Errorf("%w: focus window %d", ErrInvalidParameter, c.FocusWindow)
	case c.ShortBreak <= 0 || c.LongBreak < 0 || c.LongBreakEvery < 0:
		return fmt.Errorf("%w: break settings %d/%d/%d", ErrInvalidParameter, c.ShortBreak, c.LongBreak, c.LongBreakEvery)
	case c.StruggleThreshold > c.MasteryThreshold || c.MasteryThreshold > 100 || c.StruggleThreshold < 0:
		return fmt.Errorf("%w: thresholds %.0f/%.0f", ErrInvalidParameter, c.StruggleThreshold, c.MasteryThreshold)
	case c.DonationFraction < 0 || c.DonationFraction > 1:
		return fmt.Errorf("%w: donation fraction %f", ErrInvalidParameter, c.DonationFraction)
	case c.PropagationFactor < 0 || c.PropagationFactor > 1:
		return fmt.Errorf("%w: propagation factor %f", ErrInvalidParameter, c.PropagationFactor)
	case c.RecentWindow <= 0:
		return fmt.Errorf("%w: recent window %d", ErrInvalidParameter, c.RecentWindow)
	}
	return nil
}
