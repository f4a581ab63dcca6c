package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"donna/app/config"
	"donna/app/service/actions"
	"donna/app/service/calendar"
	"donna/app/service/email"
	"donna/app/service/memory"
	"donna/app/service/router"
	"donna/app/service/tasks"

	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

const (
	memoryLimit = 5
	taskLimit   = 5
)

type memorySource interface {
	Retrieve(ctx context.Context, userID, query, category string, limit int, threshold float64) ([]memory.SearchResult, error)
}

type taskSource interface {
	ListPrioritized(ctx context.Context, userID string, limit int, status string) ([]tasks.Task, error)
}

type eventSource interface {
	FetchForMessage(ctx context.Context, message string) ([]calendar.FormattedEvent, error)
}

type contactSource interface {
	ListContacts(ctx context.Context) (map[string]string, error)
}

// Context carries everything the planner might want to see about a user.
// Every field is best-effort: a failed branch leaves its zero value rather
// than failing the whole fetch.
type Context struct {
	Memories []memory.SearchResult
	Tasks    []tasks.Task
	Events   []calendar.FormattedEvent
	Contacts map[string]string

	CurrentTime string
	Today       string
	Timezone    string
}

type Service struct {
	memories memorySource
	tasks    taskSource
	calendar eventSource
	contacts contactSource
	location *time.Location
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	location, err := time.LoadLocation(cfg.Assistant.Timezone)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load timezone %q", cfg.Assistant.Timezone)
	}

	return NewService(
		do.MustInvoke[*memory.Service](di),
		do.MustInvoke[*tasks.Service](di),
		do.MustInvoke[*calendar.Service](di),
		do.MustInvoke[*email.Service](di),
		location,
	), nil
}

func NewService(memories memorySource, taskList taskSource, cal eventSource, contacts contactSource, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}

	return &Service{
		memories: memories,
		tasks:    taskList,
		calendar: cal,
		contacts: contacts,
		location: location,
	}
}

// Fetch gathers planner context concurrently. A nil domains slice means the
// route is not known yet (speculative fetch racing the router), so domains
// are guessed from message keywords. Memories are always fetched.
func (s *Service) Fetch(ctx context.Context, userID, message string, domains []actions.Domain) *Context {
	if domains == nil {
		domains = router.KeywordDomains(strings.ToLower(message))
	}

	wanted := make(map[actions.Domain]bool, len(domains))
	for _, domain := range domains {
		wanted[domain] = true
	}

	now := time.Now().In(s.location)
	result := &Context{
		CurrentTime: now.Format("Monday, January 02, 2006 at 03:04 PM"),
		Today:       now.Format("2006-01-02"),
		Timezone:    s.location.String(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		memories, err := s.memories.Retrieve(groupCtx, userID, message, "", memoryLimit, memory.RetrieveThreshold)
		if err != nil {
			slog.Warn("Context fetch: memories failed", "error", err)
			return nil
		}

		result.Memories = memories
		return nil
	})

	if wanted[actions.DomainTask] {
		group.Go(func() error {
			taskList, err := s.tasks.ListPrioritized(groupCtx, userID, taskLimit, "pending")
			if err != nil {
				slog.Warn("Context fetch: tasks failed", "error", err)
				return nil
			}

			result.Tasks = taskList
			return nil
		})
	}

	if wanted[actions.DomainCalendar] {
		group.Go(func() error {
			events, err := s.calendar.FetchForMessage(groupCtx, message)
			if err != nil {
				slog.Warn("Context fetch: calendar failed", "error", err)
				return nil
			}

			result.Events = events
			return nil
		})
	}

	if wanted[actions.DomainEmail] {
		group.Go(func() error {
			contacts, err := s.contacts.ListContacts(groupCtx)
			if err != nil {
				slog.Warn("Context fetch: contacts failed", "error", err)
				return nil
			}

			result.Contacts = contacts
			return nil
		})
	}

	// branches never return errors, so this cannot fail
	_ = group.Wait()

	return result
}

// FormatMemories renders retrieved memories as a prompt section.
func FormatMemories(memories []memory.SearchResult) string {
	if len(memories) == 0 {
		return "(No relevant memories)"
	}

	if len(memories) > memoryLimit {
		memories = memories[:memoryLimit]
	}

	var sb strings.Builder
	for _, m := range memories {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", m.Category, m.Key, m.Value)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func FormatTasks(taskList []tasks.Task) string {
	if len(taskList) == 0 {
		return "(No pending tasks)"
	}

	if len(taskList) > taskLimit {
		taskList = taskList[:taskLimit]
	}

	var sb strings.Builder
	for _, t := range taskList {
		deadline := "no deadline"
		if t.Deadline != nil {
			deadline = t.Deadline.Format("2006-01-02 15:04")
		}

		fmt.Fprintf(&sb, "- %s [id: %s] (priority: %s, deadline: %s)\n", t.Title, t.ID, t.Priority, deadline)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func FormatEvents(events []calendar.FormattedEvent) string {
	if len(events) == 0 {
		return "(No upcoming events)"
	}

	if len(events) > memoryLimit {
		events = events[:memoryLimit]
	}

	var sb strings.Builder
	for _, e := range events {
		line := fmt.Sprintf("- %s at %s", e.Title, e.Time)
		if e.Location != "" {
			line += " (" + e.Location + ")"
		}

		sb.WriteString(line + " [id: " + e.ID + "]\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func FormatContacts(contacts map[string]string) string {
	if len(contacts) == 0 {
		return "(No known contacts)"
	}

	names := make([]string, 0, len(contacts))
	for name := range contacts {
		names = append(names, name)
	}

	// map order is random; deterministic prompts are easier to debug
	slices.Sort(names)

	if len(names) > 10 {
		names = names[:10]
	}

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s <%s>\n", name, contacts[name])
	}

	return strings.TrimRight(sb.String(), "\n")
}
