package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"donna/app/service/actions"
	"donna/app/service/calendar"
	"donna/app/service/memory"
	"donna/app/service/tasks"

	"github.com/stretchr/testify/assert"
)

type fakeMemories struct {
	results []memory.SearchResult
	err     error
	calls   atomic.Int64
}

func (f *fakeMemories) Retrieve(_ context.Context, _, _, _ string, _ int, _ float64) ([]memory.SearchResult, error) {
	f.calls.Add(1)
	return f.results, f.err
}

type fakeTasks struct {
	results []tasks.Task
	calls   atomic.Int64
}

func (f *fakeTasks) ListPrioritized(_ context.Context, _ string, _ int, _ string) ([]tasks.Task, error) {
	f.calls.Add(1)
	return f.results, nil
}

type fakeCalendar struct {
	results []calendar.FormattedEvent
	err     error
	calls   atomic.Int64
}

func (f *fakeCalendar) FetchForMessage(_ context.Context, _ string) ([]calendar.FormattedEvent, error) {
	f.calls.Add(1)
	return f.results, f.err
}

type fakeContacts struct {
	results map[string]string
	calls   atomic.Int64
}

func (f *fakeContacts) ListContacts(_ context.Context) (map[string]string, error) {
	f.calls.Add(1)
	return f.results, nil
}

func newTestService(m *fakeMemories, t *fakeTasks, c *fakeCalendar, e *fakeContacts) *Service {
	return NewService(m, t, c, e, time.UTC)
}

func TestFetchAlwaysRetrievesMemories(t *testing.T) {
	memories := &fakeMemories{}
	taskList := &fakeTasks{}
	cal := &fakeCalendar{}
	contacts := &fakeContacts{}
	service := newTestService(memories, taskList, cal, contacts)

	service.Fetch(context.Background(), "u1", "hello there", []actions.Domain{})

	assert.EqualValues(t, 1, memories.calls.Load())
	assert.EqualValues(t, 0, taskList.calls.Load())
	assert.EqualValues(t, 0, cal.calls.Load())
	assert.EqualValues(t, 0, contacts.calls.Load())
}

func TestFetchBranchesFollowDomains(t *testing.T) {
	memories := &fakeMemories{}
	taskList := &fakeTasks{results: []tasks.Task{{ID: "t1", Title: "call mom"}}}
	cal := &fakeCalendar{}
	contacts := &fakeContacts{results: map[string]string{"Mom": "mom@example.com"}}
	service := newTestService(memories, taskList, cal, contacts)

	result := service.Fetch(context.Background(), "u1", "email mom about the task",
		[]actions.Domain{actions.DomainTask, actions.DomainEmail})

	assert.EqualValues(t, 1, taskList.calls.Load())
	assert.EqualValues(t, 1, contacts.calls.Load())
	assert.EqualValues(t, 0, cal.calls.Load())
	assert.Len(t, result.Tasks, 1)
	assert.Equal(t, "mom@example.com", result.Contacts["Mom"])
}

func TestFetchSpeculatesFromKeywordsWhenDomainsUnknown(t *testing.T) {
	memories := &fakeMemories{}
	taskList := &fakeTasks{}
	cal := &fakeCalendar{}
	contacts := &fakeContacts{}
	service := newTestService(memories, taskList, cal, contacts)

	service.Fetch(context.Background(), "u1", "what's on my calendar tomorrow", nil)

	assert.EqualValues(t, 1, cal.calls.Load())
	assert.EqualValues(t, 1, memories.calls.Load())
}

func TestFetchSwallowsBranchFailures(t *testing.T) {
	memories := &fakeMemories{err: errors.New("embedding service down")}
	taskList := &fakeTasks{results: []tasks.Task{{ID: "t1", Title: "buy milk"}}}
	cal := &fakeCalendar{err: errors.New("provider unavailable")}
	contacts := &fakeContacts{}
	service := newTestService(memories, taskList, cal, contacts)

	result := service.Fetch(context.Background(), "u1", "stuff",
		[]actions.Domain{actions.DomainTask, actions.DomainCalendar})

	assert.Empty(t, result.Memories)
	assert.Empty(t, result.Events)
	assert.Len(t, result.Tasks, 1)
}

func TestFetchPopulatesClock(t *testing.T) {
	service := newTestService(&fakeMemories{}, &fakeTasks{}, &fakeCalendar{}, &fakeContacts{})

	result := service.Fetch(context.Background(), "u1", "hi", []actions.Domain{})

	assert.NotEmpty(t, result.CurrentTime)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, result.Today)
	assert.Equal(t, "UTC", result.Timezone)
}

func TestFormatMemories(t *testing.T) {
	out := FormatMemories([]memory.SearchResult{
		{Record: memory.Record{Category: "preference", Key: "favorite color", Value: "blue"}},
	})

	assert.Equal(t, "- [preference] favorite color: blue", out)
	assert.Equal(t, "(No relevant memories)", FormatMemories(nil))
}

func TestFormatTasksIncludesDeadline(t *testing.T) {
	deadline := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	out := FormatTasks([]tasks.Task{
		{ID: "t1", Title: "call mom", Priority: "high", Deadline: &deadline},
		{ID: "t2", Title: "water plants", Priority: "low"},
	})

	assert.Contains(t, out, "call mom [id: t1] (priority: high, deadline: 2026-09-01 17:00)")
	assert.Contains(t, out, "water plants [id: t2] (priority: low, deadline: no deadline)")
}

func TestFormatContactsIsSortedAndCapped(t *testing.T) {
	contacts := map[string]string{}
	for _, name := range []string{"Zoe", "Adam", "Mia", "Ben", "Cara", "Dan", "Eve", "Finn", "Gil", "Hana", "Ira", "Jo"} {
		contacts[name] = name + "@example.com"
	}

	out := FormatContacts(contacts)

	assert.Contains(t, out, "- Adam <Adam@example.com>")
	assert.NotContains(t, out, "Zoe")
	assert.Less(t, len(out), 500)
}
