package planner

import "errors"

// Sentinel errors. Check with errors.Is.
var (
	ErrNotFound         = errors.New("planner: not found")
	ErrPlanConflict     = errors.New("planner: plan version conflict")
	ErrInvalidParameter = errors.New("planner: parameter out of bounds")
)
