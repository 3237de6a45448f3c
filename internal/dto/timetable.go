package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable/internal/scheduler"
)

// TimeSlotRequest is one position of the bell schedule.
type TimeSlotRequest struct {
	Position  int    `json:"position" validate:"min=0"`
	StartTime string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Duration  int    `json:"duration" validate:"min=0"`
}

// SubjectRequest describes a subject. ShortName is printed in grid exports.
type SubjectRequest struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	ShortName string `json:"shortName" validate:"max=5"`
}

// TeacherRequest lists the subjects a teacher can take and the weekly cap.
// The cap is checked by the engine, not here.
type TeacherRequest struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name"`
	Subjects    []string `json:"subjects" validate:"dive,required"`
	WeeklyHours int      `json:"weeklyHours"`
}

// GroupRequest is a class with its required subjects.
type GroupRequest struct {
	ID       string   `json:"id" validate:"required"`
	Name     string   `json:"name"`
	Subjects []string `json:"subjects" validate:"dive,required"`
}

// CorePolicyRequest overrides the configured session policy for one run.
type CorePolicyRequest struct {
	Subjects        []string `json:"subjects" validate:"omitempty,dive,required"`
	CoreSessions    int      `json:"coreSessions" validate:"omitempty,min=1,max=12"`
	DefaultSessions int      `json:"defaultSessions" validate:"omitempty,min=1,max=12"`
}

// GenerateTimetableRequest carries the engine input. Empty lists, bad caps
// and unsupported day counts pass this layer and are reported by the engine.
// Omitted week options take the configured defaults.
type GenerateTimetableRequest struct {
	Groups         []GroupRequest     `json:"groups" validate:"dive"`
	Teachers       []TeacherRequest   `json:"teachers" validate:"dive"`
	Subjects       []SubjectRequest   `json:"subjects" validate:"dive"`
	TimeSlots      []TimeSlotRequest  `json:"timeSlots" validate:"dive"`
	MaxDaysPerWeek *int               `json:"maxDaysPerWeek,omitempty"`
	BalanceLoad    *bool              `json:"balanceLoad,omitempty"`
	PreferFiveDays *bool              `json:"preferFiveDays,omitempty"`
	CorePolicy     *CorePolicyRequest `json:"corePolicy,omitempty"`
}

// TimetableProposalResponse is a generated, not yet saved, timetable.
type TimetableProposalResponse struct {
	ProposalID   string                  `json:"proposalId"`
	Fingerprint  string                  `json:"fingerprint"`
	Cached       bool                    `json:"cached"`
	CreatedAt    time.Time               `json:"createdAt"`
	ExpiresAt    time.Time               `json:"expiresAt"`
	Report       scheduler.Report        `json:"report"`
	TeacherLoads []scheduler.TeacherLoad `json:"teacherLoads"`
}

// SaveTimetableRequest persists a proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// SaveTimetableResponse returns the stored run id.
type SaveTimetableResponse struct {
	RunID string `json:"runId"`
}

// TimetableRunQuery filters saved runs.
type TimetableRunQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// ExportTimetableQuery selects the export format. TermStart anchors
// calendar exports to a real week; Weeks bounds their recurrence.
type ExportTimetableQuery struct {
	Format    string `form:"format" validate:"required,oneof=csv pdf xlsx ics"`
	TermStart string `form:"termStart" validate:"omitempty,datetime=2006-01-02"`
	Weeks     int    `form:"weeks" validate:"omitempty,min=1,max=52"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
