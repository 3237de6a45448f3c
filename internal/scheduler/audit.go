package scheduler

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// BalanceLoad compares each teacher's placed sessions with the weekly cap and
// returns one warning per teacher over the cap, in teacher input order.
func BalanceLoad(teachers []Teacher, assignments []SessionAssignment) []string {
	warnings := make([]string, 0)
	for _, teacher := range teachers {
		count := lo.CountBy(assignments, func(a SessionAssignment) bool {
			return a.TeacherID == teacher.ID
		})
		if count > teacher.WeeklyCap {
			warnings = append(warnings, fmt.Sprintf("teacher %s exceeds weekly cap: %d/%d",
				displayName(teacher.Name, teacher.ID), count, teacher.WeeklyCap))
		}
	}
	return warnings
}

// AuditConflicts rescans the assignments for a teacher holding two different
// groups in the same day/slot. Placement already prevents this; the audit is
// the ground truth the tests check against. Cells and teachers are reported
// in order of first appearance so the output is stable.
func AuditConflicts(in Input, assignments []SessionAssignment) []string {
	conflicts := make([]string, 0)

	cellOrder := make([]Cell, 0)
	byCell := make(map[Cell][]SessionAssignment)
	for _, a := range assignments {
		cell := a.Cell()
		if _, seen := byCell[cell]; !seen {
			cellOrder = append(cellOrder, cell)
		}
		byCell[cell] = append(byCell[cell], a)
	}

	for _, cell := range cellOrder {
		items := byCell[cell]
		teacherOrder := lo.Uniq(lo.Map(items, func(a SessionAssignment, _ int) string { return a.TeacherID }))
		for _, teacherID := range teacherOrder {
			groups := lo.Uniq(lo.FilterMap(items, func(a SessionAssignment, _ int) (string, bool) {
				return a.GroupID, a.TeacherID == teacherID
			}))
			if len(groups) < 2 {
				continue
			}
			names := lo.Map(groups, func(id string, _ int) string { return in.groupName(id) })
			conflicts = append(conflicts, fmt.Sprintf("teacher %s double-booked at day %d slot %d: groups %s",
				in.teacherName(teacherID), cell.Day, cell.Slot, strings.Join(names, ", ")))
		}
	}
	return conflicts
}
