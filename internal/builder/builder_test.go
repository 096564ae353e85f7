package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcal/internal/models"
)

func TestBuildScenario(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	input := "Cena con Fran y Gaby el sábado a las 21hs"
	draft, err := Build(models.ExtractedEvent{
		Title:       "Cena con Fran y Gaby",
		Date:        "2024-06-15",
		Time:        "21:00",
		Description: input,
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-15T21:00:00", draft.Start.Format("2006-01-02T15:04:05"))
	assert.Equal(t, "2024-06-15T22:00:00", draft.End.Format("2006-01-02T15:04:05"))
	assert.Equal(t, loc, draft.Start.Location())
	assert.Equal(t, "America/Argentina/Buenos_Aires", draft.TimeZone)
	assert.Equal(t, input, draft.Description)
	assert.Equal(t, "Cena con Fran y Gaby", draft.Title)
}

func TestBuildAlwaysOneHour(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	cases := []models.ExtractedEvent{
		{Date: "2024-01-01", Time: "00:00"},
		{Date: "2024-12-31", Time: "23:30"}, // crosses the year
		{Date: "2024-03-31", Time: "01:30"}, // DST change in Madrid
		{Date: "2024-02-29", Time: "12:00"},
	}
	for _, ex := range cases {
		draft, err := Build(ex, loc)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, draft.End.Sub(draft.Start), "%s %s", ex.Date, ex.Time)
	}
}

func TestBuildRejectsMalformed(t *testing.T) {
	_, err := Build(models.ExtractedEvent{Date: "15/06/2024", Time: "21:00"}, time.UTC)
	require.Error(t, err)

	_, err = Build(models.ExtractedEvent{Date: "2024-06-15", Time: "9pm"}, time.UTC)
	require.Error(t, err)
}

func TestBuildLocalZoneHasNoName(t *testing.T) {
	draft, err := Build(models.ExtractedEvent{Date: "2024-06-15", Time: "10:00"}, time.Local)
	require.NoError(t, err)
	assert.Empty(t, draft.TimeZone)

	draft, err = Build(models.ExtractedEvent{Date: "2024-06-15", Time: "10:00"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "UTC", draft.TimeZone)
}
