package tagparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/outline-metrics/internal/model"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()

	p, err := New(model.DefaultAppConfig().Tags)
	require.NoError(t, err)

	return p.WithReference(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestParseUntaggedDefaults(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Water the plants")

	assert.Equal(t, model.KindTask, a.Kind)
	assert.Equal(t, model.RecurrenceNone, a.Recurrence)
	assert.Nil(t, a.StoryPoints)
	assert.Empty(t, a.Contexts)
	assert.Nil(t, a.DueDate)
	assert.Empty(t, a.Warnings)
	assert.Equal(t, "Water the plants", a.Title)
}

func TestParseFullExample(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Ship report #Action #4STP @office Due Jan 1, 2024")

	assert.Equal(t, model.KindAction, a.Kind)
	require.NotNil(t, a.StoryPoints)
	assert.Equal(t, 4, *a.StoryPoints)
	assert.Equal(t, []string{"office"}, a.Contexts)
	require.NotNil(t, a.DueDate)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *a.DueDate)
	assert.Equal(t, "Ship report", a.Title)
	assert.Empty(t, a.Warnings)
}

func TestParseGoalTimeframe(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Finish draft #WeekGoal")

	assert.Equal(t, model.KindGoal, a.Kind)
	assert.Equal(t, model.TimeframeWeek, a.GoalTimeframe)
}

func TestParseFirstTagWins(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Review budget #Action #MonthGoal #Weekly #Daily")

	assert.Equal(t, model.KindAction, a.Kind)
	assert.Empty(t, a.GoalTimeframe)
	assert.Equal(t, model.RecurrenceWeekly, a.Recurrence)
}

func TestParseFirstStoryPointTagWins(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Plan sprint #2STP #8STP")

	require.NotNil(t, a.StoryPoints)
	assert.Equal(t, 2, *a.StoryPoints)
}

func TestParseFlags(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Launch v2 #Milestone #OnDeck")

	assert.True(t, a.Milestone)
	assert.True(t, a.OnDeck)
	assert.Equal(t, model.KindTask, a.Kind)
}

func TestParseUnrecognizedTagsIgnored(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Read paper #someday #xyz")

	assert.Equal(t, model.KindTask, a.Kind)
	assert.Equal(t, model.RecurrenceNone, a.Recurrence)
	assert.Empty(t, a.Warnings)
}

func TestParseDueMarkup(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse(`Taxes, Due <time startYear="2024" startMonth="4" startDay="15">Apr 15</time>`)

	require.NotNil(t, a.DueDate)
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), *a.DueDate)
	assert.Equal(t, "Taxes", a.Title)
}

func TestParseDueMarkupInvalidDate(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse(`Impossible, Due <time startYear="2024" startMonth="2" startDay="30">Feb 30</time>`)

	assert.Nil(t, a.DueDate)
	require.Len(t, a.Warnings, 1)
	assert.Equal(t, "due_date", a.Warnings[0].Field)
}

func TestParseDueTextISO(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Renew passport Due 2024-09-30")

	require.NotNil(t, a.DueDate)
	assert.Equal(t, time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), *a.DueDate)
}

func TestParseDueTextUnparseable(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Fix the fence Due Soonish")

	assert.Nil(t, a.DueDate)
	require.Len(t, a.Warnings, 1)
	assert.Equal(t, "due_date", a.Warnings[0].Field)
	assert.Equal(t, "Soonish", a.Warnings[0].Token)
}

func TestParseContextsDeduplicated(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Calls @home @office @home")

	assert.Equal(t, []string{"home", "office"}, a.Contexts)
}

func TestParseStripsHTML(t *testing.T) {
	p := newTestParser(t)

	a := p.Parse("Read <b>important</b> memo #Action")

	assert.Equal(t, "Read important memo", a.Title)
}

func TestParseIdempotent(t *testing.T) {
	p := newTestParser(t)
	raw := "Ship report #Action #4STP @office Due Jan 1, 2024"

	first := p.Parse(raw)
	second := p.Parse(raw)

	assert.Equal(t, first, second)
}

func TestParseCustomMarkers(t *testing.T) {
	cfg := model.DefaultAppConfig().Tags
	cfg.Marker = "!"
	cfg.ContextMarker = "+"

	p, err := New(cfg)
	require.NoError(t, err)

	a := p.Parse("Tidy desk !Action !1STP +home")

	assert.Equal(t, model.KindAction, a.Kind)
	require.NotNil(t, a.StoryPoints)
	assert.Equal(t, 1, *a.StoryPoints)
	assert.Equal(t, []string{"home"}, a.Contexts)
}
