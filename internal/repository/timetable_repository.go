package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable/internal/models"
)

const timetableRunColumns = `id, fingerprint, max_days_per_week, balance_load, prefer_five_days, assignment_count, conflicts, warnings, status, created_at`

// TimetableRepository persists saved generation runs and their sessions.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateRun inserts the run header, filling id, status and timestamps when empty.
func (r *TimetableRepository) CreateRun(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("timetable run payload is nil")
	}
	if run.Fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.TimetableRunStatusDraft
	}
	if len(run.Conflicts) == 0 {
		run.Conflicts = types.JSONText(`[]`)
	}
	if len(run.Warnings) == 0 {
		run.Warnings = types.JSONText(`[]`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_runs (id, fingerprint, max_days_per_week, balance_load, prefer_five_days, assignment_count, conflicts, warnings, status, created_at)
VALUES (:id, :fingerprint, :max_days_per_week, :balance_load, :prefer_five_days, :assignment_count, :conflicts, :warnings, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// InsertSessions stores the sessions of a run.
func (r *TimetableRepository) InsertSessions(ctx context.Context, exec sqlx.ExtContext, runID string, sessions []models.TimetableSession) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_sessions (id, run_id, group_id, subject_id, teacher_id, day_index, slot_index, week_parity, created_at)
VALUES (:id, :run_id, :group_id, :subject_id, :teacher_id, :day_index, :slot_index, :week_parity, :created_at)`

	for i := range sessions {
		session := &sessions[i]
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		session.RunID = runID
		if session.CreatedAt.IsZero() {
			session.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, session); err != nil {
			return fmt.Errorf("insert timetable session: %w", err)
		}
	}
	return nil
}

// List returns a page of runs, newest first, and the total count.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableRunFilter) ([]models.TimetableRun, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM timetable_runs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		timetableRunColumns, whereClause, size, offset)
	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable runs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM timetable_runs WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable runs: %w", err)
	}
	return runs, total, nil
}

// FindByID loads a run header. A missing run yields sql.ErrNoRows.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM timetable_runs WHERE id = $1`, timetableRunColumns)
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListSessions returns the sessions of a run ordered by group, day and slot.
func (r *TimetableRepository) ListSessions(ctx context.Context, runID string) ([]models.TimetableSession, error) {
	const query = `SELECT id, run_id, group_id, subject_id, teacher_id, day_index, slot_index, week_parity, created_at
FROM timetable_sessions WHERE run_id = $1 ORDER BY group_id ASC, day_index ASC, slot_index ASC`
	var sessions []models.TimetableSession
	if err := r.db.SelectContext(ctx, &sessions, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable sessions: %w", err)
	}
	return sessions, nil
}

// UpdateStatus moves a run to the given status.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus) error {
	const query = `UPDATE timetable_runs SET status = $1 WHERE id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update timetable run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a run and its sessions. Callers pass a transaction so both
// deletes land together.
func (r *TimetableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM timetable_sessions WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable sessions: %w", err)
	}
	result, err := target.ExecContext(ctx, `DELETE FROM timetable_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
