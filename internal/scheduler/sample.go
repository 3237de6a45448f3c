package scheduler

// SampleInput returns a small school: six 90-minute slots, ten subjects, six
// teachers and four groups, with six-day weeks allowed but five preferred.
// The CLI uses it for dry runs and the tests use it as a realistic fixture.
func SampleInput() Input {
	return Input{
		TimeSlots: []TimeSlot{
			{Position: 1, StartTime: "08:30", EndTime: "10:00", DurationMinutes: 90},
			{Position: 2, StartTime: "10:15", EndTime: "11:45", DurationMinutes: 90},
			{Position: 3, StartTime: "12:00", EndTime: "13:30", DurationMinutes: 90},
			{Position: 4, StartTime: "14:15", EndTime: "15:45", DurationMinutes: 90},
			{Position: 5, StartTime: "16:00", EndTime: "17:30", DurationMinutes: 90},
			{Position: 6, StartTime: "17:45", EndTime: "19:15", DurationMinutes: 90},
		},
		Subjects: []Subject{
			{ID: "math", Name: "Mathematics", ShortName: "Math"},
			{ID: "physics", Name: "Physics", ShortName: "Phys"},
			{ID: "chemistry", Name: "Chemistry", ShortName: "Chem"},
			{ID: "biology", Name: "Biology", ShortName: "Bio"},
			{ID: "history", Name: "History", ShortName: "Hist"},
			{ID: "literature", Name: "Literature", ShortName: "Lit"},
			{ID: "english", Name: "English", ShortName: "Eng"},
			{ID: "geometry", Name: "Geometry", ShortName: "Geom"},
			{ID: "informatics", Name: "Informatics", ShortName: "Inf"},
			{ID: "pe", Name: "Physical Education", ShortName: "PE"},
		},
		Teachers: []Teacher{
			{ID: "ivanov", Name: "Ivanov I.I.", Subjects: []string{"math", "geometry", "physics"}, WeeklyCap: 18},
			{ID: "petrov", Name: "Petrov P.P.", Subjects: []string{"chemistry", "biology"}, WeeklyCap: 16},
			{ID: "sidorov", Name: "Sidorov S.S.", Subjects: []string{"history", "literature"}, WeeklyCap: 20},
			{ID: "kozlov", Name: "Kozlov K.K.", Subjects: []string{"english"}, WeeklyCap: 24},
			{ID: "smirnov", Name: "Smirnov A.A.", Subjects: []string{"informatics"}, WeeklyCap: 14},
			{ID: "volkov", Name: "Volkov V.V.", Subjects: []string{"pe"}, WeeklyCap: 22},
		},
		Groups: []Group{
			{ID: "10a", Name: "10-A", Subjects: []string{"math", "physics", "chemistry", "biology", "history", "literature", "english", "geometry", "informatics", "pe"}},
			{ID: "10b", Name: "10-B", Subjects: []string{"math", "physics", "chemistry", "history", "literature", "english", "geometry", "informatics", "pe"}},
			{ID: "11a", Name: "11-A", Subjects: []string{"math", "physics", "chemistry", "biology", "history", "english", "geometry", "informatics"}},
			{ID: "11b", Name: "11-B", Subjects: []string{"math", "chemistry", "biology", "history", "literature", "english", "geometry", "pe"}},
		},
		MaxDaysPerWeek: 6,
		BalanceLoad:    true,
		PreferFiveDays: true,
	}
}
