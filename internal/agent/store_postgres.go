package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-planner/internal/planner"
)

const (
	dbTimeout          = 5 * time.Second
	pgUniqueViolation  = "23505"
	pgForeignKeyFailed = "23503"
)

// PostgresStore is a PostgreSQL-backed Store. Plans, tasks and evaluations
// are kept as JSONB documents next to the columns used for lookups.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) LatestPlan(ctx context.Context, studentID, date string) (*planner.DailyPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.scanPlan(s.pool.QueryRow(ctx,
		`SELECT document FROM daily_plans
		 WHERE student_id = $1 AND plan_date = $2::date
		 ORDER BY version DESC
		 LIMIT 1`,
		studentID, date,
	), studentID, date)
}

func (s *PostgresStore) PlanVersion(ctx context.Context, studentID, date string, version int) (*planner.DailyPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.scanPlan(s.pool.QueryRow(ctx,
		`SELECT document FROM daily_plans
		 WHERE student_id = $1 AND plan_date = $2::date AND version = $3`,
		studentID, date, version,
	), studentID, date)
}

func (s *PostgresStore) scanPlan(row pgx.Row, studentID, date string) (*planner.DailyPlan, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plan %s/%s: %w", studentID, date, planner.ErrNotFound)
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	var plan planner.DailyPlan
	if err := json.Unmarshal(doc, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

// SavePlan inserts the next version and its tasks in one transaction, only
// while the stored maximum still equals baseVersion. The unique
// (student_id, plan_date, version) key turns a lost race between two writers
// into a conflict as well.
func (s *PostgresStore) SavePlan(ctx context.Context, plan *planner.DailyPlan, baseVersion int, tasks []planner.Task) error {
	if plan.Version != baseVersion+1 {
		return fmt.Errorf("plan version %d does not follow base %d", plan.Version, baseVersion)
	}
	doc, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	batch, err := taskBatch(tasks)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx,
			`INSERT INTO daily_plans (id, student_id, plan_date, version, base_version, fallback_used, fingerprint, document, created_at)
			 SELECT $1::uuid, $2, $3::date, $4, $5, $6, $7, $8::jsonb, $9
			 WHERE COALESCE((SELECT MAX(version) FROM daily_plans
			                 WHERE student_id = $2 AND plan_date = $3::date), 0) = $5`,
			plan.ID,
			plan.StudentID,
			plan.Date,
			plan.Version,
			baseVersion,
			plan.Metadata.FallbackUsed,
			plan.Fingerprint,
			string(doc),
			plan.Metadata.GeneratedAt,
		)
		if err != nil {
			if pgCode(err) == pgUniqueViolation {
				return fmt.Errorf("plan %s/%s v%d: %w", plan.StudentID, plan.Date, plan.Version, planner.ErrPlanConflict)
			}
			return fmt.Errorf("insert plan: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("plan %s/%s base v%d: %w", plan.StudentID, plan.Date, baseVersion, planner.ErrPlanConflict)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
		return nil
	})
}

func taskBatch(tasks []planner.Task) (*pgx.Batch, error) {
	batch := &pgx.Batch{}
	for _, t := range tasks {
		doc, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal task: %w", err)
		}
		batch.Queue(
			`INSERT INTO tasks (id, student_id, plan_date, topic_id, plan_version, status, document, created_at)
			 VALUES ($1::uuid, $2, $3::date, $4, $5, $6, $7::jsonb, $8)`,
			t.ID, t.StudentID, t.PlanDate, t.TopicID, t.PlanVersion, string(t.Status), string(doc), t.CreatedAt,
		)
	}
	return batch, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (planner.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT document, status FROM tasks WHERE id::text = $1`,
		id,
	).Scan(&doc, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return planner.Task{}, fmt.Errorf("task %s: %w", id, planner.ErrNotFound)
		}
		return planner.Task{}, fmt.Errorf("get task: %w", err)
	}
	return decodeTask(doc, status)
}

func (s *PostgresStore) ListTasks(ctx context.Context, studentID, date string) ([]planner.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT document, status FROM tasks
		 WHERE student_id = $1 AND plan_date = $2::date
		 ORDER BY created_at ASC, id ASC`,
		studentID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := []planner.Task{}
	for rows.Next() {
		var doc []byte
		var status string
		if err := rows.Scan(&doc, &status); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t, err := decodeTask(doc, status)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func decodeTask(doc []byte, status string) (planner.Task, error) {
	var t planner.Task
	if err := json.Unmarshal(doc, &t); err != nil {
		return planner.Task{}, fmt.Errorf("decode task: %w", err)
	}
	t.Status = planner.TaskStatus(status)
	return t, nil
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, id string, status planner.TaskStatus) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, updated_at = NOW() WHERE id::text = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, planner.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, e planner.Evaluation) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, task_id, student_id, topic_id, plan_date, score, follow_up, document, created_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5::date, $6, $7, $8::jsonb, $9)`,
		e.ID, e.TaskID, e.StudentID, e.TopicID, e.PlanDate, e.Score, string(e.FollowUp), string(doc), e.CreatedAt,
	)
	switch pgCode(err) {
	case "":
	case pgUniqueViolation:
		return fmt.Errorf("evaluation for task %s: %w", e.TaskID, ErrDuplicate)
	case pgForeignKeyFailed:
		return fmt.Errorf("task %s: %w", e.TaskID, planner.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (s *PostgresStore) EvaluationForTask(ctx context.Context, taskID string) (planner.Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM evaluations WHERE task_id::text = $1`,
		taskID,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return planner.Evaluation{}, fmt.Errorf("evaluation for task %s: %w", taskID, planner.ErrNotFound)
		}
		return planner.Evaluation{}, fmt.Errorf("get evaluation: %w", err)
	}
	var e planner.Evaluation
	if err := json.Unmarshal(doc, &e); err != nil {
		return planner.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, studentID, date string) ([]planner.Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT document FROM evaluations
		 WHERE student_id = $1 AND plan_date = $2::date
		 ORDER BY created_at ASC`,
		studentID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []planner.Evaluation
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		var e planner.Evaluation
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendRecord(ctx context.Context, r planner.PerformanceRecord) error {
	if r.StudentID == "" || r.TopicID == "" {
		return fmt.Errorf("performance record needs student and topic")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO performance_records (student_id, topic_id, recorded_at, score, efficiency, time_spent_minutes, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.StudentID, r.TopicID, r.RecordedAt, r.Score, r.Efficiency, r.TimeSpentMinutes, r.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert performance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentRecords(ctx context.Context, studentID string, limit int) ([]planner.PerformanceRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT student_id, topic_id, recorded_at, score, efficiency, time_spent_minutes, notes
		 FROM (
		   SELECT * FROM performance_records
		   WHERE student_id = $1
		   ORDER BY recorded_at DESC, id DESC
		   LIMIT $2
		 ) recent
		 ORDER BY recorded_at ASC, id ASC`,
		studentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query performance records: %w", err)
	}
	defer rows.Close()

	var out []planner.PerformanceRecord
	for rows.Next() {
		var r planner.PerformanceRecord
		if err := rows.Scan(&r.StudentID, &r.TopicID, &r.RecordedAt, &r.Score, &r.Efficiency, &r.TimeSpentMinutes, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan performance record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance records: %w", err)
	}
	return out, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
