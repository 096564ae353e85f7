package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"smartcal/internal/models"
)

const productID = "-//smartcal//EN"

// Encode writes events as a single VCALENDAR.
func Encode(w io.Writer, events []*models.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC()
	for _, event := range events {
		cal.Children = append(cal.Children, toICal(event, stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode events to iCal format: %w", err)
	}
	return nil
}

// toICal converts an internal Event model to an ical.Component (VEvent).
func toICal(event *models.Event, stamp time.Time) *ical.Component {
	uid := event.ICalUID
	if uid == "" {
		uid = GenerateUID()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	if event.AllDay {
		ve.Props.SetDate(ical.PropDateTimeStart, event.Start)
		if !event.End.IsZero() {
			ve.Props.SetDate(ical.PropDateTimeEnd, event.End)
		}
	} else {
		// Provider offsets parse into unnamed zones, which would encode as an
		// empty TZID. UTC keeps the instant exact.
		ve.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
		if !event.End.IsZero() {
			ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
		}
	}

	if event.Link != "" {
		ve.Props.SetText(ical.PropURL, event.Link)
	}
	if event.Organizer != nil && event.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText(fmt.Sprintf("mailto:%s", event.Organizer.Email))
		if event.Organizer.DisplayName != "" {
			p.Params.Set(ical.ParamCommonName, event.Organizer.DisplayName)
		}
		ve.Props.Add(p)
	}
	return ve
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
