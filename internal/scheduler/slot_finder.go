package scheduler

// sixthDay is the day index probed by the Saturday fallback.
const sixthDay = 5

// Grid describes the searchable area for one run.
type Grid struct {
	Slots int
	// Days is the effective day count: 5 when five-day weeks are preferred,
	// otherwise the configured maximum.
	Days int
	// SixthDayFallback enables the retry on day index 5 when the primary
	// search over Days found nothing.
	SixthDayFallback bool
}

// GridFor derives the search grid from the run input.
func GridFor(in Input) Grid {
	days := in.MaxDaysPerWeek
	if in.PreferFiveDays {
		days = 5
	}
	return Grid{
		Slots:            len(in.TimeSlots),
		Days:             days,
		SixthDayFallback: in.PreferFiveDays && in.MaxDaysPerWeek > days,
	}
}

// FindSlot returns the first cell, scanning slot-major then day-minor, that is
// free for both the group and the teacher and not already used by the
// current subject's own placement loop. Filling slot 0 across every day
// before moving to slot 1 spreads sessions one per day.
func FindSlot(groupID, teacherID string, occ *Occupancy, usedThisRound map[Cell]struct{}, grid Grid) (Cell, bool) {
	for slot := 0; slot < grid.Slots; slot++ {
		for day := 0; day < grid.Days; day++ {
			cell := Cell{Day: day, Slot: slot}
			if acceptable(cell, groupID, teacherID, occ, usedThisRound) {
				return cell, true
			}
		}
	}

	if grid.SixthDayFallback {
		for slot := 0; slot < grid.Slots; slot++ {
			cell := Cell{Day: sixthDay, Slot: slot}
			if acceptable(cell, groupID, teacherID, occ, usedThisRound) {
				return cell, true
			}
		}
	}

	return Cell{}, false
}

func acceptable(cell Cell, groupID, teacherID string, occ *Occupancy, usedThisRound map[Cell]struct{}) bool {
	if _, used := usedThisRound[cell]; used {
		return false
	}
	return occ.IsFree(cell, groupID, teacherID)
}
