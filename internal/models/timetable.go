package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableRunStatus is the lifecycle of a saved generation run.
type TimetableRunStatus string

const (
	TimetableRunStatusDraft     TimetableRunStatus = "DRAFT"
	TimetableRunStatusPublished TimetableRunStatus = "PUBLISHED"
)

// TimetableRun is a persisted generation result. Conflicts and Warnings hold
// the report's JSON string arrays.
type TimetableRun struct {
	ID              string             `db:"id" json:"id"`
	Fingerprint     string             `db:"fingerprint" json:"fingerprint"`
	MaxDaysPerWeek  int                `db:"max_days_per_week" json:"max_days_per_week"`
	BalanceLoad     bool               `db:"balance_load" json:"balance_load"`
	PreferFiveDays  bool               `db:"prefer_five_days" json:"prefer_five_days"`
	AssignmentCount int                `db:"assignment_count" json:"assignment_count"`
	Conflicts       types.JSONText     `db:"conflicts" json:"conflicts"`
	Warnings        types.JSONText     `db:"warnings" json:"warnings"`
	Status          TimetableRunStatus `db:"status" json:"status"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
}

// TimetableSession is one placed session of a saved run.
type TimetableSession struct {
	ID         string    `db:"id" json:"id"`
	RunID      string    `db:"run_id" json:"run_id"`
	GroupID    string    `db:"group_id" json:"group_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	DayIndex   int       `db:"day_index" json:"day_index"`
	SlotIndex  int       `db:"slot_index" json:"slot_index"`
	WeekParity string    `db:"week_parity" json:"week_parity"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TimetableRunDetail is a run with its sessions ordered by group, day and slot.
type TimetableRunDetail struct {
	TimetableRun
	Sessions []TimetableSession `json:"sessions"`
}

// TimetableRunFilter narrows run listings.
type TimetableRunFilter struct {
	Status   *TimetableRunStatus
	Page     int
	PageSize int
}
