package present

import (
	"strings"

	"smartcal/internal/models"
)

const (
	// virtualCalendarDomain is the organizer domain Google uses for the
	// calendars it generates itself (birthdays, holidays).
	virtualCalendarDomain = "group.v.calendar.google.com"

	birthdayTitle = "¡Feliz cumpleaños!"
)

// IsSuppressed reports whether ev is an auto-generated entry that should not
// be shown.
func IsSuppressed(ev *models.Event) bool {
	if ev == nil {
		return true
	}
	if ev.Organizer != nil && strings.HasSuffix(strings.ToLower(ev.Organizer.Email), virtualCalendarDomain) {
		return true
	}
	return ev.Title == birthdayTitle
}

// Visible returns the events that are not suppressed, in their original order.
func Visible(events []*models.Event) []*models.Event {
	out := make([]*models.Event, 0, len(events))
	for _, ev := range events {
		if !IsSuppressed(ev) {
			out = append(out, ev)
		}
	}
	return out
}
