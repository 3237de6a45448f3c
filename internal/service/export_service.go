package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
)

const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
	FormatICS  = "ics"
)

// DayNames labels day indexes 0..5.
var DayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var contentTypes = map[string]string{
	FormatCSV:  "text/csv",
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatICS:  "text/calendar; charset=utf-8",
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type workbookRenderer interface {
	Render(book export.Workbook) ([]byte, error)
}

type calendarRenderer interface {
	Render(cal export.Calendar) ([]byte, error)
}

// TimetableExportConfig tunes calendar exports.
type TimetableExportConfig struct {
	Timezone  string
	TermWeeks int
}

// TimetableExportService turns proposals into downloadable files.
type TimetableExportService struct {
	csv    csvRenderer
	pdf    workbookRenderer
	xlsx   workbookRenderer
	ics    calendarRenderer
	loc    *time.Location
	cfg    TimetableExportConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewTimetableExportService constructs the export service. Nil renderers
// fall back to the defaults in pkg/export.
func NewTimetableExportService(cfg TimetableExportConfig, csv csvRenderer, pdf, xlsx workbookRenderer, ics calendarRenderer) *TimetableExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter()
	}
	if cfg.TermWeeks <= 0 {
		cfg.TermWeeks = 18
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			cfg.Timezone = "UTC"
		}
	} else {
		cfg.Timezone = "UTC"
	}
	return &TimetableExportService{
		csv:    csv,
		pdf:    pdf,
		xlsx:   xlsx,
		ics:    ics,
		loc:    loc,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// WithLogger sets the logger used for render failures.
func (s *TimetableExportService) WithLogger(logger *zap.Logger) *TimetableExportService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Export renders the proposal in the query's format.
func (s *TimetableExportService) Export(proposal TimetableProposal, query dto.ExportTimetableQuery) (*dto.ExportFile, error) {
	format := strings.ToLower(query.Format)
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = s.csv.Render(SessionDataset(proposal.Input, proposal.Report))
	case FormatPDF:
		data, err = s.pdf.Render(GridWorkbook(proposal.Input, proposal.Report))
	case FormatXLSX:
		book := GridWorkbook(proposal.Input, proposal.Report)
		book.Sheets = append(book.Sheets, TeacherLoadDataset(proposal.Input, proposal.Report))
		data, err = s.xlsx.Render(book)
	case FormatICS:
		var cal export.Calendar
		cal, err = s.calendar(proposal, query)
		if err != nil {
			return nil, err
		}
		data, err = s.ics.Render(cal)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", query.Format))
	}
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("format", format), zap.String("proposal_id", proposal.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("timetable-%s.%s", shortID(proposal.ID), format),
		ContentType: contentTypes[format],
		Data:        data,
	}, nil
}

// SessionDataset flattens the report into one row per session, ordered by
// group input order, day and slot.
func SessionDataset(in scheduler.Input, report scheduler.Report) export.Dataset {
	names := newLookup(in)
	groupRank := make(map[string]int, len(in.Groups))
	for i, g := range in.Groups {
		groupRank[g.ID] = i
	}
	items := append([]scheduler.SessionAssignment(nil), report.Assignments...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if groupRank[a.GroupID] != groupRank[b.GroupID] {
			return groupRank[a.GroupID] < groupRank[b.GroupID]
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Slot < b.Slot
	})

	rows := lo.Map(items, func(a scheduler.SessionAssignment, _ int) []string {
		start, end := slotTimes(in, a.Slot)
		return []string{
			names.group(a.GroupID),
			dayName(a.Day),
			strconv.Itoa(a.Slot + 1),
			start,
			end,
			names.subject(a.SubjectID),
			names.teacher(a.TeacherID),
			string(a.Parity),
		}
	})
	return export.Dataset{
		Title:   "Timetable",
		Headers: []string{"Group", "Day", "Slot", "Start", "End", "Subject", "Teacher", "Week"},
		Rows:    rows,
	}
}

// GridWorkbook lays out one sheet per group with days as columns and slots
// as rows. Cells hold the subject short name followed by "*" for upper-week
// and "_" for lower-week sessions.
func GridWorkbook(in scheduler.Input, report scheduler.Report) export.Workbook {
	names := newLookup(in)
	days := displayDays(in, report)
	headers := append([]string{"Slot"}, DayNames[:days]...)

	sheets := lo.Map(in.Groups, func(g scheduler.Group, _ int) export.Dataset {
		byCell := lo.KeyBy(report.ByGroup(g.ID), func(a scheduler.SessionAssignment) scheduler.Cell { return a.Cell() })
		rows := make([][]string, 0, len(in.TimeSlots))
		for slot := range in.TimeSlots {
			row := make([]string, 0, days+1)
			row = append(row, slotLabel(in, slot))
			for day := 0; day < days; day++ {
				a, ok := byCell[scheduler.Cell{Day: day, Slot: slot}]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, names.short(a.SubjectID)+ParityMarker(a.Parity))
			}
			rows = append(rows, row)
		}
		return export.Dataset{Title: names.group(g.ID), Headers: headers, Rows: rows}
	})
	return export.Workbook{Title: "Weekly timetable", Sheets: sheets}
}

// TeacherLoadDataset lists each teacher's placed sessions against the cap.
func TeacherLoadDataset(in scheduler.Input, report scheduler.Report) export.Dataset {
	rows := lo.Map(report.TeacherLoads(in.Teachers), func(l scheduler.TeacherLoad, _ int) []string {
		return []string{displayOr(l.Name, l.TeacherID), strconv.Itoa(l.Sessions), strconv.Itoa(l.WeeklyCap)}
	})
	return export.Dataset{Title: "Teacher load", Headers: []string{"Teacher", "Sessions", "Weekly cap"}, Rows: rows}
}

// ParityMarker is the grid suffix for a week parity.
func ParityMarker(p scheduler.WeekParity) string {
	switch p {
	case scheduler.ParityUpper:
		return "*"
	case scheduler.ParityLower:
		return "_"
	default:
		return ""
	}
}

// calendar builds recurring events anchored on the Monday of the term start
// week. Alternating sessions repeat every second week; lower-week sessions
// begin one week after upper-week ones.
func (s *TimetableExportService) calendar(proposal TimetableProposal, query dto.ExportTimetableQuery) (export.Calendar, error) {
	termStart := s.now().In(s.loc)
	if query.TermStart != "" {
		parsed, err := time.ParseInLocation("2006-01-02", query.TermStart, s.loc)
		if err != nil {
			return export.Calendar{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "termStart must be YYYY-MM-DD")
		}
		termStart = parsed
	}
	monday := weekStart(termStart)
	weeks := query.Weeks
	if weeks <= 0 {
		weeks = s.cfg.TermWeeks
	}
	until := monday.AddDate(0, 0, weeks*7)

	in := proposal.Input
	names := newLookup(in)
	events := make([]export.CalendarEvent, 0, len(proposal.Report.Assignments))
	for i, a := range proposal.Report.Assignments {
		startClock, endClock := slotTimes(in, a.Slot)
		day := monday.AddDate(0, 0, a.Day)
		start, err := atClock(day, startClock, s.loc)
		if err != nil {
			return export.Calendar{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("time slot %d has no usable start time", a.Slot+1))
		}
		end, err := atClock(day, endClock, s.loc)
		if err != nil {
			end = start.Add(time.Duration(slotDuration(in, a.Slot)) * time.Minute)
		}

		interval := 1
		switch a.Parity {
		case scheduler.ParityUpper:
			interval = 2
		case scheduler.ParityLower:
			interval = 2
			start = start.AddDate(0, 0, 7)
			end = end.AddDate(0, 0, 7)
		}

		events = append(events, export.CalendarEvent{
			UID:           fmt.Sprintf("%s-%d@sma-timetable", proposal.ID, i),
			Summary:       fmt.Sprintf("%s (%s)", names.subject(a.SubjectID), names.group(a.GroupID)),
			Description:   fmt.Sprintf("Teacher: %s; week: %s", names.teacher(a.TeacherID), a.Parity),
			Start:         start,
			End:           end,
			IntervalWeeks: interval,
			Until:         until,
		})
	}
	return export.Calendar{Name: "Weekly timetable", Timezone: s.cfg.Timezone, Events: events}, nil
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}

func displayDays(in scheduler.Input, report scheduler.Report) int {
	days := scheduler.GridFor(in).Days
	if days < 5 || days > len(DayNames) {
		days = 5
	}
	if lo.SomeBy(report.Assignments, func(a scheduler.SessionAssignment) bool { return a.Day >= days }) {
		days = len(DayNames)
	}
	return days
}

func dayName(day int) string {
	if day >= 0 && day < len(DayNames) {
		return DayNames[day]
	}
	return strconv.Itoa(day)
}

func slotTimes(in scheduler.Input, slot int) (string, string) {
	if slot < 0 || slot >= len(in.TimeSlots) {
		return "", ""
	}
	return in.TimeSlots[slot].StartTime, in.TimeSlots[slot].EndTime
}

func slotDuration(in scheduler.Input, slot int) int {
	if slot >= 0 && slot < len(in.TimeSlots) && in.TimeSlots[slot].DurationMinutes > 0 {
		return in.TimeSlots[slot].DurationMinutes
	}
	return 45
}

func slotLabel(in scheduler.Input, slot int) string {
	start, end := slotTimes(in, slot)
	if start == "" || end == "" {
		return strconv.Itoa(slot + 1)
	}
	return fmt.Sprintf("%d %s-%s", slot+1, start, end)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayOr(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

type lookup struct {
	subjects map[string]scheduler.Subject
	teachers map[string]scheduler.Teacher
	groups   map[string]scheduler.Group
}

func newLookup(in scheduler.Input) lookup {
	return lookup{
		subjects: lo.KeyBy(in.Subjects, func(s scheduler.Subject) string { return s.ID }),
		teachers: lo.KeyBy(in.Teachers, func(t scheduler.Teacher) string { return t.ID }),
		groups:   lo.KeyBy(in.Groups, func(g scheduler.Group) string { return g.ID }),
	}
}

func (l lookup) subject(id string) string { return displayOr(l.subjects[id].Name, id) }
func (l lookup) teacher(id string) string { return displayOr(l.teachers[id].Name, id) }
func (l lookup) group(id string) string   { return displayOr(l.groups[id].Name, id) }

func (l lookup) short(id string) string {
	sub := l.subjects[id]
	if sub.ShortName != "" {
		return sub.ShortName
	}
	return displayOr(sub.Name, id)
}
