package scheduler

// WeekParity marks whether a session runs every week or only on alternating weeks.
type WeekParity string

const (
	ParityUpper WeekParity = "upper"
	ParityLower WeekParity = "lower"
	ParityBoth  WeekParity = "both"
)

// TimeSlot is one position in the daily bell schedule.
type TimeSlot struct {
	Position        int    `json:"position" mapstructure:"position"`
	StartTime       string `json:"startTime" mapstructure:"startTime"`
	EndTime         string `json:"endTime" mapstructure:"endTime"`
	DurationMinutes int    `json:"duration" mapstructure:"duration"`
}

// Subject is a taught discipline. ShortName is what grid renderers print.
type Subject struct {
	ID        string `json:"id" mapstructure:"id"`
	Name      string `json:"name" mapstructure:"name"`
	ShortName string `json:"shortName" mapstructure:"shortName"`
}

// Teacher can teach any subject listed in Subjects. WeeklyCap is advisory and
// only checked by the load balancer after placement.
type Teacher struct {
	ID        string   `json:"id" mapstructure:"id"`
	Name      string   `json:"name" mapstructure:"name"`
	Subjects  []string `json:"subjects" mapstructure:"subjects"`
	WeeklyCap int      `json:"weeklyHours" mapstructure:"weeklyHours" validate:"gt=0"`
}

// Group is a class of students with the subjects it must be taught.
type Group struct {
	ID       string   `json:"id" mapstructure:"id"`
	Name     string   `json:"name" mapstructure:"name"`
	Subjects []string `json:"subjects" mapstructure:"subjects"`
}

// Input carries everything one generation run reads. It is never mutated.
type Input struct {
	Teachers       []Teacher  `json:"teachers" mapstructure:"teachers" validate:"min=1,dive"`
	Groups         []Group    `json:"groups" mapstructure:"groups" validate:"min=1"`
	Subjects       []Subject  `json:"subjects" mapstructure:"subjects" validate:"min=1"`
	TimeSlots      []TimeSlot `json:"timeSlots" mapstructure:"timeSlots" validate:"min=1"`
	MaxDaysPerWeek int        `json:"maxDaysPerWeek" mapstructure:"maxDaysPerWeek" validate:"oneof=5 6"`
	BalanceLoad    bool       `json:"balanceLoad" mapstructure:"balanceLoad"`
	PreferFiveDays bool       `json:"preferFiveDays" mapstructure:"preferFiveDays"`
}

// SessionAssignment places one session of a subject for a group into a day/slot cell.
type SessionAssignment struct {
	TeacherID string     `json:"teacherId"`
	SubjectID string     `json:"subjectId"`
	GroupID   string     `json:"groupId"`
	Day       int        `json:"day"`
	Slot      int        `json:"timeSlot"`
	Parity    WeekParity `json:"weekType"`
}

// Cell returns the day/slot pair the assignment occupies.
func (a SessionAssignment) Cell() Cell {
	return Cell{Day: a.Day, Slot: a.Slot}
}

// Cell addresses one day × slot position in the weekly grid.
type Cell struct {
	Day  int `json:"day"`
	Slot int `json:"timeSlot"`
}

func (in Input) teacherName(id string) string {
	for _, t := range in.Teachers {
		if t.ID == id {
			return displayName(t.Name, t.ID)
		}
	}
	return id
}

func (in Input) groupName(id string) string {
	for _, g := range in.Groups {
		if g.ID == id {
			return displayName(g.Name, g.ID)
		}
	}
	return id
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
