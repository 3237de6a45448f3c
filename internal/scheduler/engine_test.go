package scheduler

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(policy Policy) *Engine {
	return NewEngine(policy, zap.NewNop(), EngineConfig{})
}

func slots(n int) []TimeSlot {
	out := make([]TimeSlot, n)
	for i := range out {
		out[i] = TimeSlot{Position: i + 1, StartTime: fmt.Sprintf("%02d:00", 8+i), EndTime: fmt.Sprintf("%02d:45", 8+i), DurationMinutes: 45}
	}
	return out
}

func fixedPolicy(counts map[string]int) Policy {
	return PolicyFunc(func(subjectID string) int {
		if n, ok := counts[subjectID]; ok {
			return n
		}
		return 2
	})
}

func TestEngineGenerateSingleCoreSubject(t *testing.T) {
	engine := newTestEngine(nil)

	report := engine.Generate(Input{
		Groups:         []Group{{ID: "g1", Name: "10-A", Subjects: []string{"math"}}},
		Teachers:       []Teacher{{ID: "t1", Name: "Ivanov", Subjects: []string{"math"}, WeeklyCap: 20}},
		Subjects:       []Subject{{ID: "math", Name: "Mathematics", ShortName: "Math"}},
		TimeSlots:      slots(6),
		MaxDaysPerWeek: 6,
		BalanceLoad:    true,
		PreferFiveDays: true,
	})

	require.Len(t, report.Assignments, 3)
	assert.Empty(t, report.Conflicts)
	assert.Empty(t, report.Warnings)

	cells := map[Cell]bool{}
	for _, a := range report.Assignments {
		assert.False(t, cells[a.Cell()], "cell %v used twice", a.Cell())
		cells[a.Cell()] = true
		assert.GreaterOrEqual(t, a.Day, 0)
		assert.LessOrEqual(t, a.Day, 4)
		assert.Equal(t, ParityBoth, a.Parity)
		assert.Equal(t, "t1", a.TeacherID)
	}
	assert.Equal(t, []Cell{{Day: 0, Slot: 0}, {Day: 1, Slot: 0}, {Day: 2, Slot: 0}},
		lo.Map(report.Assignments, func(a SessionAssignment, _ int) Cell { return a.Cell() }))
}

func TestEngineGenerateSubjectWithoutTeacher(t *testing.T) {
	engine := newTestEngine(nil)

	report := engine.Generate(Input{
		Groups:         []Group{{ID: "g1", Name: "10-A", Subjects: []string{"art"}}},
		Teachers:       []Teacher{{ID: "t1", Name: "Ivanov", Subjects: []string{"math"}, WeeklyCap: 20}},
		Subjects:       []Subject{{ID: "art", Name: "Art", ShortName: "Art"}},
		TimeSlots:      slots(4),
		MaxDaysPerWeek: 5,
	})

	assert.Empty(t, report.Assignments)
	assert.Empty(t, report.Conflicts)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "art")
	assert.Contains(t, report.Warnings[0], "10-A")
}

func TestEngineGenerateLastFreeSlot(t *testing.T) {
	engine := newTestEngine(fixedPolicy(map[string]int{"filler": 4, "art": 2}))

	report := engine.Generate(Input{
		Groups: []Group{{ID: "g1", Name: "10-A", Subjects: []string{"filler", "art"}}},
		Teachers: []Teacher{
			{ID: "t1", Name: "Filler", Subjects: []string{"filler"}, WeeklyCap: 10},
			{ID: "t2", Name: "Artist", Subjects: []string{"art"}, WeeklyCap: 10},
		},
		Subjects:       []Subject{{ID: "filler", Name: "Filler"}, {ID: "art", Name: "Art"}},
		TimeSlots:      slots(1),
		MaxDaysPerWeek: 5,
	})

	art := lo.Filter(report.Assignments, func(a SessionAssignment, _ int) bool { return a.SubjectID == "art" })
	require.Len(t, art, 1)
	assert.Equal(t, ParityUpper, art[0].Parity)
	assert.Equal(t, Cell{Day: 4, Slot: 0}, art[0].Cell())

	filler := lo.Filter(report.Assignments, func(a SessionAssignment, _ int) bool { return a.SubjectID == "filler" })
	assert.Len(t, filler, 4)
	for _, a := range filler {
		assert.Equal(t, ParityBoth, a.Parity)
	}

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "no free slot for subject art in group 10-A", report.Warnings[0])
	assert.Empty(t, report.Conflicts)
}

func TestEngineGenerateSharedTeacherAcrossGroups(t *testing.T) {
	engine := newTestEngine(fixedPolicy(map[string]int{"art": 2}))

	report := engine.Generate(Input{
		Groups: []Group{
			{ID: "g1", Name: "10-A", Subjects: []string{"art"}},
			{ID: "g2", Name: "10-B", Subjects: []string{"art"}},
		},
		Teachers:       []Teacher{{ID: "t1", Name: "Artist", Subjects: []string{"art"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "art", Name: "Art"}},
		TimeSlots:      slots(1),
		MaxDaysPerWeek: 5,
		PreferFiveDays: true,
	})

	require.Len(t, report.Assignments, 4)
	assert.Empty(t, report.Conflicts)
	assert.Empty(t, report.Warnings)

	g1 := report.ByGroup("g1")
	g2 := report.ByGroup("g2")
	assert.Equal(t, []Cell{{Day: 0}, {Day: 1}}, lo.Map(g1, func(a SessionAssignment, _ int) Cell { return a.Cell() }))
	assert.Equal(t, []Cell{{Day: 2}, {Day: 3}}, lo.Map(g2, func(a SessionAssignment, _ int) Cell { return a.Cell() }))
	assert.Empty(t, AuditConflicts(Input{}, report.Assignments))
}

func TestEngineGenerateSixthDayFallback(t *testing.T) {
	engine := newTestEngine(fixedPolicy(map[string]int{"a": 3, "b": 2, "c": 2}))

	report := engine.Generate(Input{
		Groups:         []Group{{ID: "g1", Name: "10-A", Subjects: []string{"a", "b", "c"}}},
		Teachers:       []Teacher{{ID: "t1", Name: "All", Subjects: []string{"a", "b", "c"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		TimeSlots:      slots(1),
		MaxDaysPerWeek: 6,
		PreferFiveDays: true,
	})

	require.Len(t, report.Assignments, 6)
	last := report.Assignments[5]
	assert.Equal(t, "c", last.SubjectID)
	assert.Equal(t, 5, last.Day)
	assert.Equal(t, ParityUpper, last.Parity)
	assert.Equal(t, []string{"no free slot for subject c in group 10-A"}, report.Warnings)
}

func TestEngineGenerateNoFallbackWhenFiveDayWeek(t *testing.T) {
	engine := newTestEngine(fixedPolicy(map[string]int{"a": 3, "b": 3}))

	report := engine.Generate(Input{
		Groups:         []Group{{ID: "g1", Name: "10-A", Subjects: []string{"a", "b"}}},
		Teachers:       []Teacher{{ID: "t1", Name: "All", Subjects: []string{"a", "b"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "a"}, {ID: "b"}},
		TimeSlots:      slots(1),
		MaxDaysPerWeek: 5,
		PreferFiveDays: true,
	})

	assert.Len(t, report.Assignments, 5)
	for _, a := range report.Assignments {
		assert.Less(t, a.Day, 5)
	}
	assert.Len(t, report.Warnings, 1)
}

func TestEngineGenerateSixDaysWithoutPreference(t *testing.T) {
	engine := newTestEngine(fixedPolicy(map[string]int{"a": 6}))

	report := engine.Generate(Input{
		Groups:         []Group{{ID: "g1", Subjects: []string{"a"}}},
		Teachers:       []Teacher{{ID: "t1", Subjects: []string{"a"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "a"}},
		TimeSlots:      slots(1),
		MaxDaysPerWeek: 6,
	})

	require.Len(t, report.Assignments, 6)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, lo.Map(report.Assignments, func(a SessionAssignment, _ int) int { return a.Day }))
	assert.Empty(t, report.Warnings)
}

func TestEngineGenerateValidationGate(t *testing.T) {
	valid := func() Input {
		return Input{
			Groups:         []Group{{ID: "g1", Name: "10-A", Subjects: []string{"math"}}},
			Teachers:       []Teacher{{ID: "t1", Name: "Ivanov", Subjects: []string{"math"}, WeeklyCap: 20}},
			Subjects:       []Subject{{ID: "math"}},
			TimeSlots:      slots(2),
			MaxDaysPerWeek: 5,
		}
	}

	cases := []struct {
		name   string
		mutate func(in *Input)
		reason string
	}{
		{name: "no teachers", mutate: func(in *Input) { in.Teachers = nil }, reason: "no teachers supplied"},
		{name: "no groups", mutate: func(in *Input) { in.Groups = nil }, reason: "no groups supplied"},
		{name: "no subjects", mutate: func(in *Input) { in.Subjects = []Subject{} }, reason: "no subjects supplied"},
		{name: "no time slots", mutate: func(in *Input) { in.TimeSlots = nil }, reason: "no time slots supplied"},
		{name: "zero cap", mutate: func(in *Input) { in.Teachers[0].WeeklyCap = 0 }, reason: "teacher Ivanov has non-positive weekly cap 0"},
		{name: "negative cap", mutate: func(in *Input) { in.Teachers[0].WeeklyCap = -2 }, reason: "teacher Ivanov has non-positive weekly cap -2"},
		{name: "seven days", mutate: func(in *Input) { in.MaxDaysPerWeek = 7 }, reason: "maxDaysPerWeek must be 5 or 6, got 7"},
		{name: "teachers reported before groups", mutate: func(in *Input) { in.Teachers = nil; in.Groups = nil }, reason: "no teachers supplied"},
		{name: "groups reported before caps", mutate: func(in *Input) { in.Groups = nil; in.Teachers[0].WeeklyCap = 0 }, reason: "no groups supplied"},
	}

	engine := newTestEngine(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid()
			tc.mutate(&in)

			report := engine.Generate(in)

			assert.Empty(t, report.Assignments)
			assert.Empty(t, report.Warnings)
			require.Len(t, report.Conflicts, 1)
			assert.Equal(t, tc.reason, report.Conflicts[0])
			assert.True(t, report.HasFatal())
		})
	}
}

func TestEngineGenerateLoadBalanceToggle(t *testing.T) {
	in := Input{
		Groups:         []Group{{ID: "g1", Name: "10-A", Subjects: []string{"math"}}},
		Teachers:       []Teacher{{ID: "t1", Name: "Ivanov", Subjects: []string{"math"}, WeeklyCap: 1}},
		Subjects:       []Subject{{ID: "math"}},
		TimeSlots:      slots(2),
		MaxDaysPerWeek: 5,
		BalanceLoad:    true,
	}
	engine := newTestEngine(nil)

	report := engine.Generate(in)
	assert.Equal(t, []string{"teacher Ivanov exceeds weekly cap: 3/1"}, report.Warnings)

	in.BalanceLoad = false
	report = engine.Generate(in)
	assert.Empty(t, report.Warnings)
	assert.Len(t, report.Assignments, 3)
}

func TestEngineGeneratePlacementLimit(t *testing.T) {
	engine := NewEngine(fixedPolicy(map[string]int{"a": 3}), zap.NewNop(), EngineConfig{MaxPlacements: 4})

	report := engine.Generate(Input{
		Groups: []Group{
			{ID: "g1", Subjects: []string{"a"}},
			{ID: "g2", Subjects: []string{"a"}},
		},
		Teachers:       []Teacher{{ID: "t1", Subjects: []string{"a"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "a"}},
		TimeSlots:      slots(3),
		MaxDaysPerWeek: 5,
	})

	assert.Len(t, report.Assignments, 4)
	assert.Equal(t, []string{"placement limit 4 reached; remaining sessions were not scheduled"}, report.Warnings)
}

func TestEngineGenerateDuplicateGroupSubjects(t *testing.T) {
	engine := newTestEngine(nil)

	report := engine.Generate(Input{
		Groups:         []Group{{ID: "g1", Subjects: []string{"pe", "pe"}}},
		Teachers:       []Teacher{{ID: "t1", Subjects: []string{"pe"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "pe"}},
		TimeSlots:      slots(2),
		MaxDaysPerWeek: 5,
	})

	assert.Len(t, report.Assignments, 2)
}

func TestEngineGenerateSampleInvariants(t *testing.T) {
	in := SampleInput()
	report := newTestEngine(nil).Generate(in)

	require.NotEmpty(t, report.Assignments)
	assertReportInvariants(t, DefaultPolicy(), in, report)
}

func TestEngineGenerateRandomInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	engine := newTestEngine(nil)
	pool := []string{"math", "physics", "history", "art", "music", "pe", "biology", "english"}

	for iter := 0; iter < 200; iter++ {
		in := randomInput(rng, pool)
		report := engine.Generate(in)
		assertReportInvariants(t, engine.Policy(), in, report)
	}
}

func TestEngineGenerateDeterministic(t *testing.T) {
	engine := newTestEngine(nil)
	in := SampleInput()

	first, err := json.Marshal(engine.Generate(in))
	require.NoError(t, err)
	second, err := json.Marshal(engine.Generate(in))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestEngineGenerateGroupOrderMatters(t *testing.T) {
	engine := newTestEngine(fixedPolicy(map[string]int{"art": 1}))
	in := Input{
		Groups: []Group{
			{ID: "g1", Subjects: []string{"art"}},
			{ID: "g2", Subjects: []string{"art"}},
		},
		Teachers:       []Teacher{{ID: "t1", Subjects: []string{"art"}, WeeklyCap: 10}},
		Subjects:       []Subject{{ID: "art"}},
		TimeSlots:      slots(1),
		MaxDaysPerWeek: 5,
	}

	forward := engine.Generate(in)
	in.Groups[0], in.Groups[1] = in.Groups[1], in.Groups[0]
	reversed := engine.Generate(in)

	assert.Equal(t, 0, forward.ByGroup("g1")[0].Day)
	assert.Equal(t, 0, reversed.ByGroup("g2")[0].Day)
}

func assertReportInvariants(t *testing.T, policy Policy, in Input, report Report) {
	t.Helper()
	if report.HasFatal() {
		return
	}

	groupCells := map[string]bool{}
	teacherCells := map[string]bool{}
	maxDay := in.MaxDaysPerWeek
	for _, a := range report.Assignments {
		gk := fmt.Sprintf("%s/%d/%d", a.GroupID, a.Day, a.Slot)
		tk := fmt.Sprintf("%s/%d/%d", a.TeacherID, a.Day, a.Slot)
		require.False(t, groupCells[gk], "group double-booked: %s", gk)
		require.False(t, teacherCells[tk], "teacher double-booked: %s", tk)
		groupCells[gk] = true
		teacherCells[tk] = true
		require.GreaterOrEqual(t, a.Day, 0)
		require.Less(t, a.Day, maxDay)
		require.Less(t, a.Slot, len(in.TimeSlots))
	}
	require.Empty(t, report.Conflicts)

	for _, group := range in.Groups {
		name := displayName(group.Name, group.ID)
		for _, subjectID := range lo.Uniq(group.Subjects) {
			placed := lo.Filter(report.Assignments, func(a SessionAssignment, _ int) bool {
				return a.GroupID == group.ID && a.SubjectID == subjectID
			})
			target := policy.SessionsPerWeek(subjectID)
			if len(placed) != target {
				warned := lo.SomeBy(report.Warnings, func(w string) bool {
					return strings.Contains(w, subjectID) && strings.Contains(w, name)
				})
				require.True(t, warned, "subject %s in group %s placed %d/%d without warning", subjectID, name, len(placed), target)
			}
			for i, a := range placed {
				if target >= 3 {
					require.Equal(t, ParityBoth, a.Parity)
				} else if i%2 == 0 {
					require.Equal(t, ParityUpper, a.Parity)
				} else {
					require.Equal(t, ParityLower, a.Parity)
				}
			}
		}
	}
}

func randomInput(rng *rand.Rand, pool []string) Input {
	pick := func(n int) []string {
		perm := rng.Perm(len(pool))
		out := make([]string, 0, n)
		for _, idx := range perm[:n] {
			out = append(out, pool[idx])
		}
		return out
	}

	teachers := make([]Teacher, 1+rng.Intn(5))
	for i := range teachers {
		teachers[i] = Teacher{
			ID:        fmt.Sprintf("t%d", i),
			Name:      fmt.Sprintf("Teacher %d", i),
			Subjects:  pick(1 + rng.Intn(3)),
			WeeklyCap: 1 + rng.Intn(20),
		}
	}
	groups := make([]Group, 1+rng.Intn(6))
	for i := range groups {
		groups[i] = Group{
			ID:       fmt.Sprintf("g%d", i),
			Name:     fmt.Sprintf("Group %d", i),
			Subjects: pick(1 + rng.Intn(len(pool))),
		}
	}
	subjects := lo.Map(pool, func(id string, _ int) Subject { return Subject{ID: id, Name: id} })

	return Input{
		Groups:         groups,
		Teachers:       teachers,
		Subjects:       subjects,
		TimeSlots:      slots(1 + rng.Intn(6)),
		MaxDaysPerWeek: 5 + rng.Intn(2),
		BalanceLoad:    rng.Intn(2) == 0,
		PreferFiveDays: rng.Intn(2) == 0,
	}
}
