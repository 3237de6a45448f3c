package scheduler

import "github.com/samber/lo"

// Report is the outcome of one generation run.
//
// Conflicts holds either the single validation failure of a rejected input or
// the double-bookings found by the audit. Warnings holds the routine
// shortfalls: missing teachers, missing slots and cap overruns.
type Report struct {
	Assignments []SessionAssignment `json:"items"`
	Conflicts   []string            `json:"conflicts"`
	Warnings    []string            `json:"warnings"`
}

// TeacherLoad is the number of sessions a teacher received against the cap.
type TeacherLoad struct {
	TeacherID string `json:"teacherId"`
	Name      string `json:"name"`
	Sessions  int    `json:"sessions"`
	WeeklyCap int    `json:"weeklyHours"`
}

func rejected(reason string) Report {
	return Report{
		Assignments: make([]SessionAssignment, 0),
		Conflicts:   []string{reason},
		Warnings:    make([]string, 0),
	}
}

// HasFatal reports whether the run was rejected at validation.
func (r Report) HasFatal() bool {
	return len(r.Assignments) == 0 && len(r.Warnings) == 0 && len(r.Conflicts) == 1
}

// ByGroup returns the group's assignments in placement order.
func (r Report) ByGroup(groupID string) []SessionAssignment {
	return lo.Filter(r.Assignments, func(a SessionAssignment, _ int) bool {
		return a.GroupID == groupID
	})
}

// At returns the assignments occupying a day/slot cell, one per group at most.
func (r Report) At(day, slot int) []SessionAssignment {
	return lo.Filter(r.Assignments, func(a SessionAssignment, _ int) bool {
		return a.Day == day && a.Slot == slot
	})
}

// TeacherLoads counts sessions per teacher in teacher input order.
func (r Report) TeacherLoads(teachers []Teacher) []TeacherLoad {
	counts := lo.CountValuesBy(r.Assignments, func(a SessionAssignment) string { return a.TeacherID })
	return lo.Map(teachers, func(t Teacher, _ int) TeacherLoad {
		return TeacherLoad{
			TeacherID: t.ID,
			Name:      t.Name,
			Sessions:  counts[t.ID],
			WeeklyCap: t.WeeklyCap,
		}
	})
}
