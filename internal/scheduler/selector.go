package scheduler

import "github.com/samber/lo"

// QualifiedTeachers filters teachers that list subjectID, keeping input order.
func QualifiedTeachers(subjectID string, teachers []Teacher) []Teacher {
	return lo.Filter(teachers, func(t Teacher, _ int) bool {
		return lo.Contains(t.Subjects, subjectID)
	})
}

// SelectTeacher picks the qualified teacher with the fewest sessions placed so
// far in the run. Ties go to the teacher listed first. The load is read at
// selection time only; later placements are not projected.
func SelectTeacher(subjectID string, teachers []Teacher, occ *Occupancy) (Teacher, bool) {
	qualified := QualifiedTeachers(subjectID, teachers)
	if len(qualified) == 0 {
		return Teacher{}, false
	}
	return lo.MinBy(qualified, func(a, b Teacher) bool {
		return occ.Load(a.ID) < occ.Load(b.ID)
	}), true
}
