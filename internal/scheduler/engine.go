package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

const defaultMaxPlacements = 10000

// EngineConfig tunes the generation run.
type EngineConfig struct {
	// MaxPlacements bounds slot searches per run. Sessions left once the
	// bound is hit are skipped with a single warning.
	MaxPlacements int
}

// Engine turns groups, teachers and time slots into session placements.
// It holds only read-only configuration, so one Engine may serve concurrent
// Generate calls; each call builds its own Occupancy.
type Engine struct {
	policy    Policy
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EngineConfig
}

// NewEngine wires the engine. A nil policy means DefaultPolicy.
func NewEngine(policy Policy, logger *zap.Logger, cfg EngineConfig) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPlacements <= 0 {
		cfg.MaxPlacements = defaultMaxPlacements
	}
	return &Engine{
		policy:    policy,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Policy returns the session-count policy the engine plans with.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Generate validates the input, plans every group in the order given, then
// runs the load check (when BalanceLoad is set) and the conflict audit.
//
// Groups are planned strictly in input order and each one sees the cells
// claimed by the groups before it, so reordering Groups changes which group
// gets first pick of scarce slots. Identical input always yields an
// identical report.
//
// A rejected input yields a report with the reason as its only conflict and
// no assignments. Sessions that cannot be placed become warnings; they never
// abort the run.
func (e *Engine) Generate(in Input) Report {
	if err := e.Validate(in); err != nil {
		reason := appErrors.FromError(err).Message
		e.logger.Info("timetable input rejected", zap.String("reason", reason))
		return rejected(reason)
	}

	occ := NewOccupancy()
	grid := GridFor(in)
	warnings := make([]string, 0)

	for _, group := range in.Groups {
		groupWarnings, exhausted := e.planGroup(group, in.Teachers, occ, grid)
		warnings = append(warnings, groupWarnings...)
		if exhausted {
			warnings = append(warnings, fmt.Sprintf("placement limit %d reached; remaining sessions were not scheduled", e.cfg.MaxPlacements))
			break
		}
	}

	assignments := occ.Assignments()
	if in.BalanceLoad {
		warnings = append(warnings, BalanceLoad(in.Teachers, assignments)...)
	}
	conflicts := AuditConflicts(in, assignments)

	for _, w := range warnings {
		e.logger.Debug("timetable warning", zap.String("warning", w))
	}
	e.logger.Info("timetable generated",
		zap.Int("groups", len(in.Groups)),
		zap.Int("assignments", len(assignments)),
		zap.Int("warnings", len(warnings)),
		zap.Int("conflicts", len(conflicts)),
	)

	return Report{Assignments: assignments, Conflicts: conflicts, Warnings: warnings}
}

// planGroup places every required subject of the group. It reports true when
// the placement bound was hit part-way.
func (e *Engine) planGroup(group Group, teachers []Teacher, occ *Occupancy, grid Grid) ([]string, bool) {
	warnings := make([]string, 0)
	groupName := displayName(group.Name, group.ID)

	for _, subjectID := range lo.Uniq(group.Subjects) {
		total := e.policy.SessionsPerWeek(subjectID)

		teacher, ok := SelectTeacher(subjectID, teachers, occ)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no teacher for subject %s in group %s", subjectID, groupName))
			continue
		}

		usedThisRound := make(map[Cell]struct{}, total)
		for i := 0; i < total; i++ {
			if occ.attempts >= e.cfg.MaxPlacements {
				return warnings, true
			}
			occ.attempts++

			cell, found := FindSlot(group.ID, teacher.ID, occ, usedThisRound, grid)
			if !found {
				warnings = append(warnings, fmt.Sprintf("no free slot for subject %s in group %s", subjectID, groupName))
				continue
			}
			occ.Place(SessionAssignment{
				TeacherID: teacher.ID,
				SubjectID: subjectID,
				GroupID:   group.ID,
				Day:       cell.Day,
				Slot:      cell.Slot,
				Parity:    ParityFor(total, i),
			})
			usedThisRound[cell] = struct{}{}
		}
	}
	return warnings, false
}

// validationOrder ranks failing fields so the first reported problem follows
// the order teachers, groups, subjects, time slots, caps, day count.
var validationOrder = map[string]int{
	"Teachers":       0,
	"Groups":         1,
	"Subjects":       2,
	"TimeSlots":      3,
	"WeeklyCap":      4,
	"MaxDaysPerWeek": 5,
}

var teacherIndexPattern = regexp.MustCompile(`Teachers\[(\d+)\]`)

// Validate checks the structural constraints of the input and returns a
// VALIDATION_ERROR describing the first violated one.
func (e *Engine) Validate(in Input) error {
	err := e.validator.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable input")
	}

	first := fieldErrs[0]
	for _, fe := range fieldErrs[1:] {
		if validationOrder[fe.StructField()] < validationOrder[first.StructField()] {
			first = fe
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, describeFieldError(in, first))
}

func describeFieldError(in Input, fe validator.FieldError) string {
	switch fe.StructField() {
	case "Teachers":
		return "no teachers supplied"
	case "Groups":
		return "no groups supplied"
	case "Subjects":
		return "no subjects supplied"
	case "TimeSlots":
		return "no time slots supplied"
	case "WeeklyCap":
		name := "unknown"
		if m := teacherIndexPattern.FindStringSubmatch(fe.StructNamespace()); m != nil {
			if idx, convErr := strconv.Atoi(m[1]); convErr == nil && idx < len(in.Teachers) {
				name = displayName(in.Teachers[idx].Name, in.Teachers[idx].ID)
			}
		}
		return fmt.Sprintf("teacher %s has non-positive weekly cap %v", name, fe.Value())
	case "MaxDaysPerWeek":
		return fmt.Sprintf("maxDaysPerWeek must be 5 or 6, got %v", fe.Value())
	default:
		return fmt.Sprintf("invalid %s", fe.Namespace())
	}
}
