package scheduler

type occupant struct {
	TeacherID string
	GroupID   string
}

// Occupancy is the working state of one generation run: which cells are
// claimed by which teacher/group, the running load per teacher, and the
// assignments made so far in placement order. A fresh value is created for
// every run and never shared between runs.
type Occupancy struct {
	cells       map[Cell][]occupant
	loads       map[string]int
	assignments []SessionAssignment
	attempts    int
}

// NewOccupancy returns an empty grid.
func NewOccupancy() *Occupancy {
	return &Occupancy{
		cells:       make(map[Cell][]occupant),
		loads:       make(map[string]int),
		assignments: make([]SessionAssignment, 0),
	}
}

// IsFree reports whether neither the group nor the teacher already holds the cell.
func (o *Occupancy) IsFree(cell Cell, groupID, teacherID string) bool {
	for _, occ := range o.cells[cell] {
		if occ.GroupID == groupID || occ.TeacherID == teacherID {
			return false
		}
	}
	return true
}

// Place records the assignment. Callers check IsFree first.
func (o *Occupancy) Place(a SessionAssignment) {
	cell := a.Cell()
	o.cells[cell] = append(o.cells[cell], occupant{TeacherID: a.TeacherID, GroupID: a.GroupID})
	o.loads[a.TeacherID]++
	o.assignments = append(o.assignments, a)
}

// Load returns how many sessions the teacher holds so far in this run.
func (o *Occupancy) Load(teacherID string) int {
	return o.loads[teacherID]
}

// Assignments returns a copy of the placements in the order they were made.
func (o *Occupancy) Assignments() []SessionAssignment {
	out := make([]SessionAssignment, len(o.assignments))
	copy(out, o.assignments)
	return out
}
