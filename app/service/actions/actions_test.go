package actions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTypedParams(t *testing.T) {
	raw := json.RawMessage(`{"title": "call mom", "priority": "high", "deadline": "2030-01-01T17:00:00"}`)

	params, err := Decode(DomainTask, "create", raw)
	require.NoError(t, err)

	create, ok := params.(TaskCreateParams)
	require.True(t, ok)
	assert.Equal(t, "call mom", create.Title)
	assert.Equal(t, "high", create.Priority)
}

func TestDecodeEmptyParams(t *testing.T) {
	params, err := Decode(DomainCalendar, "list_events", nil)
	require.NoError(t, err)

	list, ok := params.(CalendarListEventsParams)
	require.True(t, ok)
	assert.Zero(t, list.DaysAhead)
}

func TestDecodeRejectsUnknownDomain(t *testing.T) {
	_, err := Decode(Domain("weather"), "forecast", nil)
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownAction(t *testing.T) {
	_, err := Decode(DomainTask, "explode", nil)
	assert.Error(t, err)
}

func TestHighStakesTable(t *testing.T) {
	cases := []struct {
		domain Domain
		action string
		want   bool
	}{
		{DomainEmail, "send_email", true},
		{DomainEmail, "reply_to_email", true},
		{DomainEmail, "create_draft", false},
		{DomainCalendar, "delete_event", true},
		{DomainCalendar, "update_event", true},
		{DomainCalendar, "create_event", false},
		{DomainTask, "delete", true},
		{DomainTask, "create", false},
		{DomainTask, "complete", false},
		{DomainMemory, "delete", true},
		{DomainMemory, "store", false},
		{DomainMemory, "update", false},
		{DomainNotes, "delete_note", true},
		{DomainNotes, "create_note", false},
		{DomainNotes, "update_note", false},
		{DomainWebSearch, "search", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HighStakes(tc.domain, tc.action), "%s.%s", tc.domain, tc.action)
	}
}

func TestValidDomain(t *testing.T) {
	assert.True(t, ValidDomain(DomainTask))
	assert.False(t, ValidDomain(Domain("weather")))
}
