package export

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsUntilLayout = "20060102T150405Z"

// CalendarEvent is one recurring session. IntervalWeeks of 1 repeats every
// week, 2 every other week. Until bounds the recurrence.
type CalendarEvent struct {
	UID           string
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	IntervalWeeks int
	Until         time.Time
}

// Calendar is an iCalendar feed.
type Calendar struct {
	Name     string
	Timezone string
	Events   []CalendarEvent
}

// ICSExporter renders calendars as RFC 5545 text.
type ICSExporter struct {
	productID string
	now       func() time.Time
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter() *ICSExporter {
	return &ICSExporter{productID: "-//sma-timetable//timetable export//EN", now: time.Now}
}

// Render serialises every event with a weekly RRULE.
func (e *ICSExporter) Render(data Calendar) ([]byte, error) {
	if len(data.Events) == 0 {
		return nil, fmt.Errorf("ics requires at least one event")
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if data.Name != "" {
		cal.SetXWRCalName(data.Name)
	}
	if data.Timezone != "" {
		cal.SetXWRTimezone(data.Timezone)
	}

	stamp := e.now().UTC()
	for _, item := range data.Events {
		if !item.End.After(item.Start) {
			return nil, fmt.Errorf("ics event %s ends before it starts", item.UID)
		}
		event := cal.AddEvent(item.UID)
		event.SetDtStampTime(stamp)
		event.SetStartAt(item.Start)
		event.SetEndAt(item.End)
		event.SetSummary(item.Summary)
		if item.Description != "" {
			event.SetDescription(item.Description)
		}
		event.SetProperty(ics.ComponentPropertyRrule, recurrenceRule(item))
	}

	return []byte(cal.Serialize()), nil
}

func recurrenceRule(item CalendarEvent) string {
	interval := item.IntervalWeeks
	if interval < 1 {
		interval = 1
	}
	parts := []string{"FREQ=WEEKLY", fmt.Sprintf("INTERVAL=%d", interval)}
	if !item.Until.IsZero() {
		parts = append(parts, "UNTIL="+item.Until.UTC().Format(icsUntilLayout))
	}
	return strings.Join(parts, ";")
}
