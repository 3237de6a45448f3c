package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

func exportFixture() TimetableProposal {
	in := scheduler.Input{
		Teachers: []scheduler.Teacher{
			{ID: "t1", Name: "Ivanov", Subjects: []string{"math"}, WeeklyCap: 10},
			{ID: "t2", Name: "Petrov", Subjects: []string{"art"}, WeeklyCap: 10},
		},
		Groups:   []scheduler.Group{{ID: "g1", Name: "10-A", Subjects: []string{"math", "art"}}},
		Subjects: []scheduler.Subject{{ID: "math", Name: "Mathematics", ShortName: "Math"}, {ID: "art", Name: "Art", ShortName: "Art"}},
		TimeSlots: []scheduler.TimeSlot{
			{Position: 1, StartTime: "08:30", EndTime: "10:00", DurationMinutes: 90},
			{Position: 2, StartTime: "10:15", EndTime: "11:45", DurationMinutes: 90},
		},
		MaxDaysPerWeek: 5,
	}
	report := scheduler.Report{
		Assignments: []scheduler.SessionAssignment{
			{TeacherID: "t1", SubjectID: "math", GroupID: "g1", Day: 0, Slot: 0, Parity: scheduler.ParityBoth},
			{TeacherID: "t2", SubjectID: "art", GroupID: "g1", Day: 1, Slot: 0, Parity: scheduler.ParityUpper},
			{TeacherID: "t2", SubjectID: "art", GroupID: "g1", Day: 0, Slot: 1, Parity: scheduler.ParityLower},
		},
		Conflicts: []string{},
		Warnings:  []string{},
	}
	return TimetableProposal{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Input: in, Report: report, CreatedAt: time.Now()}
}

func newExportServiceForTest() *TimetableExportService {
	return NewTimetableExportService(TimetableExportConfig{Timezone: "UTC", TermWeeks: 4}, nil, nil, nil, nil)
}

func TestSessionDatasetOrdersByGroupDaySlot(t *testing.T) {
	p := exportFixture()
	ds := SessionDataset(p.Input, p.Report)

	assert.Equal(t, []string{"Group", "Day", "Slot", "Start", "End", "Subject", "Teacher", "Week"}, ds.Headers)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, []string{"10-A", "Monday", "1", "08:30", "10:00", "Mathematics", "Ivanov", "both"}, ds.Rows[0])
	assert.Equal(t, []string{"10-A", "Monday", "2", "10:15", "11:45", "Art", "Petrov", "lower"}, ds.Rows[1])
	assert.Equal(t, "Tuesday", ds.Rows[2][1])
}

func TestGridWorkbookMarksParity(t *testing.T) {
	p := exportFixture()
	book := GridWorkbook(p.Input, p.Report)

	require.Len(t, book.Sheets, 1)
	sheet := book.Sheets[0]
	assert.Equal(t, "10-A", sheet.Title)
	assert.Equal(t, []string{"Slot", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, sheet.Headers)
	assert.Equal(t, []string{"1 08:30-10:00", "Math", "Art*", "", "", ""}, sheet.Rows[0])
	assert.Equal(t, []string{"2 10:15-11:45", "Art_", "", "", "", ""}, sheet.Rows[1])
}

func TestGridWorkbookWidensForSaturday(t *testing.T) {
	p := exportFixture()
	p.Input.MaxDaysPerWeek = 6
	p.Input.PreferFiveDays = true
	p.Report.Assignments[1].Day = 5

	book := GridWorkbook(p.Input, p.Report)
	assert.Len(t, book.Sheets[0].Headers, 7)
	assert.Equal(t, "Art*", book.Sheets[0].Rows[0][6])
}

func TestTimetableExportFormats(t *testing.T) {
	svc := newExportServiceForTest()
	p := exportFixture()

	csvFile, err := svc.Export(p, dto.ExportTimetableQuery{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", csvFile.ContentType)
	assert.Equal(t, "timetable-0f8fad5b.csv", csvFile.Filename)
	assert.True(t, strings.HasPrefix(string(csvFile.Data), "Group,Day,Slot,Start,End,Subject,Teacher,Week"))

	pdfFile, err := svc.Export(p, dto.ExportTimetableQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.True(t, bytes.HasPrefix(pdfFile.Data, []byte("%PDF")))

	xlsxFile, err := svc.Export(p, dto.ExportTimetableQuery{Format: "xlsx"})
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(xlsxFile.Data))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"10-A", "Teacher load"}, book.GetSheetList())
	cell, err := book.GetCellValue("10-A", "C3")
	require.NoError(t, err)
	assert.Equal(t, "Art*", cell)
}

func TestTimetableExportCalendar(t *testing.T) {
	svc := newExportServiceForTest()
	p := exportFixture()

	// 2026-09-02 is a Wednesday; events anchor on Monday 2026-08-31.
	file, err := svc.Export(p, dto.ExportTimetableQuery{Format: "ics", TermStart: "2026-09-02"})
	require.NoError(t, err)
	assert.Equal(t, "text/calendar; charset=utf-8", file.ContentType)

	cal, err := ics.ParseCalendar(bytes.NewReader(file.Data))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 3)

	weekly := events[0].GetProperty(ics.ComponentPropertyRrule)
	require.NotNil(t, weekly)
	assert.Equal(t, "FREQ=WEEKLY;INTERVAL=1;UNTIL=20260928T000000Z", weekly.Value)

	start, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC), start.UTC())

	upper := events[1].GetProperty(ics.ComponentPropertyRrule)
	assert.Contains(t, upper.Value, "INTERVAL=2")
	upperStart, err := events[1].GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC), upperStart.UTC())

	lowerStart, err := events[2].GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 7, 10, 15, 0, 0, time.UTC), lowerStart.UTC())
}

func TestTimetableExportCalendarNeedsStartTimes(t *testing.T) {
	svc := newExportServiceForTest()
	p := exportFixture()
	p.Input.TimeSlots[0].StartTime = ""

	_, err := svc.Export(p, dto.ExportTimetableQuery{Format: "ics", TermStart: "2026-09-02"})
	assertAppError(t, err, appErrors.ErrValidation.Code, 400)
}

func TestTimetableExportUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest()
	_, err := svc.Export(exportFixture(), dto.ExportTimetableQuery{Format: "docx"})
	assertAppError(t, err, appErrors.ErrValidation.Code, 400)
}

func TestTimetableServiceExportRequiresProposal(t *testing.T) {
	svc := newTestTimetableService(newTimetableRepoStub(), nil, nil)

	_, err := svc.Export(context.Background(), "missing", dto.ExportTimetableQuery{Format: "csv"})
	assertAppError(t, err, appErrors.ErrNotFound.Code, 404)

	_, err = svc.Export(context.Background(), "missing", dto.ExportTimetableQuery{Format: "docx"})
	assertAppError(t, err, appErrors.ErrValidation.Code, 400)
}

func TestParityMarker(t *testing.T) {
	assert.Equal(t, "*", ParityMarker(scheduler.ParityUpper))
	assert.Equal(t, "_", ParityMarker(scheduler.ParityLower))
	assert.Equal(t, "", ParityMarker(scheduler.ParityBoth))
}
