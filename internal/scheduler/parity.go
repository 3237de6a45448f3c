package scheduler

// highFrequencyThreshold is the weekly count from which a subject runs every week.
const highFrequencyThreshold = 3

// ParityFor tags the sessionIndex-th session (0-based) of a subject that needs
// total sessions per week.
//
// Subjects with three or more sessions are always tagged "both". This means
// the model cannot express uneven splits such as three sessions in upper
// weeks and two in lower weeks; high-frequency subjects only ever recur
// uniformly. Lighter subjects alternate upper, lower, upper, ... in placement
// order.
func ParityFor(total, sessionIndex int) WeekParity {
	if total >= highFrequencyThreshold {
		return ParityBoth
	}
	if sessionIndex%2 == 0 {
		return ParityUpper
	}
	return ParityLower
}
