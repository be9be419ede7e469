package gcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarv3 "google.golang.org/api/calendar/v3"
)

func TestToEventDateTime(t *testing.T) {
	item := &calendarv3.Event{
		Id:       "ev1",
		Summary:  "wolne",
		Location: "GymA",
		Start:    &calendarv3.EventDateTime{DateTime: "2024-01-01T18:00:00+01:00"},
	}
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	ev, err := toEvent(item, warsaw)
	require.NoError(t, err)
	assert.Equal(t, "ev1", ev.ID)
	assert.Equal(t, "wolne", ev.Summary)
	assert.Equal(t, "GymA", ev.Location)
	assert.Equal(t, warsaw, ev.Start.Location())
	assert.True(t, ev.Start.Equal(time.Date(2024, 1, 1, 18, 0, 0, 0, warsaw)))
}

func TestToEventAllDay(t *testing.T) {
	item := &calendarv3.Event{
		Id:    "ev2",
		Start: &calendarv3.EventDateTime{Date: "2024-01-01"},
	}

	ev, err := toEvent(item, time.UTC)
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestToEventMissingStart(t *testing.T) {
	_, err := toEvent(&calendarv3.Event{Id: "ev3"}, time.UTC)
	assert.Error(t, err)

	_, err = toEvent(&calendarv3.Event{Id: "ev4", Start: &calendarv3.EventDateTime{DateTime: "garbage"}}, time.UTC)
	assert.Error(t, err)
}
