// Package builder turns extracted fields into an event draft for the provider.
package builder

import (
	"fmt"
	"time"

	"smartcal/internal/models"
)

// Duration is the fixed length of every created event.
const Duration = time.Hour

const layout = "2006-01-02 15:04"

// Build combines the extracted date and time into a start instant in loc and
// sets the end exactly one hour later.
func Build(ex models.ExtractedEvent, loc *time.Location) (models.EventDraft, error) {
	if loc == nil {
		loc = time.Local
	}

	start, err := time.ParseInLocation(layout, ex.Date+" "+ex.Time, loc)
	if err != nil {
		return models.EventDraft{}, fmt.Errorf("invalid date/time %q %q: %w", ex.Date, ex.Time, err)
	}

	return models.EventDraft{
		Title:       ex.Title,
		Description: ex.Description,
		Start:       start,
		End:         start.Add(Duration),
		TimeZone:    zoneName(loc),
	}, nil
}

// zoneName returns the IANA name of loc, or "" for zones without one.
func zoneName(loc *time.Location) string {
	name := loc.String()
	if name == "Local" {
		return ""
	}
	return name
}
