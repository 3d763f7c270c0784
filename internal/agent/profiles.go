package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

// ProfileSource reads student profiles owned by another service.
type ProfileSource interface {
	Profile(ctx context.Context, studentID string) (planner.StudentProfile, error)
	// ActiveStudents lists the students the daily batch plans for.
	ActiveStudents(ctx context.Context) ([]string, error)
}

// MemoryProfiles is an in-memory ProfileSource.
type MemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]planner.StudentProfile
	inactive map[string]bool
}

// NewMemoryProfiles returns a source holding profiles, all active.
func NewMemoryProfiles(profiles ...planner.StudentProfile) *MemoryProfiles {
	m := &MemoryProfiles{
		profiles: make(map[string]planner.StudentProfile),
		inactive: make(map[string]bool),
	}
	for _, p := range profiles {
		m.profiles[p.StudentID] = p
	}
	return m
}

// Put adds or replaces a profile.
func (m *MemoryProfiles) Put(p planner.StudentProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.StudentID] = p
}

// SetActive includes or excludes a student from the batch.
func (m *MemoryProfiles) SetActive(studentID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inactive[studentID] = !active
}

func (m *MemoryProfiles) Profile(_ context.Context, studentID string) (planner.StudentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[studentID]
	if !ok {
		return planner.StudentProfile{}, fmt.Errorf("student %s: %w", studentID, planner.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryProfiles) ActiveStudents(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.profiles {
		if !m.inactive[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// PostgresProfiles reads the students table.
type PostgresProfiles struct {
	pool *pgxpool.Pool
}

// NewPostgresProfiles creates a PostgreSQL-backed profile source.
func NewPostgresProfiles(pool *pgxpool.Pool) *PostgresProfiles {
	return &PostgresProfiles{pool: pool}
}

func (p *PostgresProfiles) Profile(ctx context.Context, studentID string) (planner.StudentProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var prof planner.StudentProfile
	var level string
	err := p.pool.QueryRow(ctx,
		`SELECT id, ability_level, daily_budget_minutes, preferred_subjects, target_score,
		        achievement_rate, language, channel, channel_id
		 FROM students
		 WHERE id = $1`,
		studentID,
	).Scan(
		&prof.StudentID,
		&level,
		&prof.DailyBudgetMinutes,
		&prof.PreferredSubjects,
		&prof.TargetScore,
		&prof.AchievementRate,
		&prof.Language,
		&prof.Channel,
		&prof.ChannelID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return planner.StudentProfile{}, fmt.Errorf("student %s: %w", studentID, planner.ErrNotFound)
		}
		return planner.StudentProfile{}, fmt.Errorf("get student: %w", err)
	}
	prof.AbilityLevel = planner.AbilityLevel(level)
	return prof, nil
}

func (p *PostgresProfiles) ActiveStudents(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT id FROM students WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active students: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect active students: %w", err)
	}
	return ids, nil
}
