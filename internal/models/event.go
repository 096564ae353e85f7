package models

import "time"

// ExtractedEvent holds the fields a language model pulled out of a free-text
// task description. Date and Time are kept as the model returned them.
type ExtractedEvent struct {
	Title       string `json:"title"`       // Short title for the event
	Date        string `json:"date"`        // Calendar date, YYYY-MM-DD
	Time        string `json:"time"`        // Local time, HH:MM (24h)
	Description string `json:"description"` // The user's input, verbatim
}

// EventDraft is an event ready to be sent to the calendar provider.
type EventDraft struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string // IANA zone name, empty if unknown
}

// Organizer identifies who owns an event at the provider.
type Organizer struct {
	Email       string
	DisplayName string
}

// Event represents a calendar event as read back from the provider.
// It is a read-only projection and is never written back.
type Event struct {
	ID        string     // Provider identifier
	Title     string     // Summary or title of the event
	Link      string     // URL of the event in the provider's web UI
	Start     time.Time  // Start instant, or midnight of the start day for all-day events
	End       time.Time  // End instant, zero if the provider sent none
	AllDay    bool       // True when the provider only gave a date
	Organizer *Organizer // Nil when the provider omits it
	ICalUID   string     // The iCalendar UID, used for exports
}
