package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"donna/app/service/actions"
	"donna/app/service/calendar"
	"donna/app/service/email"
	"donna/app/service/memory"
	"donna/app/service/notes"
	"donna/app/service/respond"
	"donna/app/service/tasks"
	"donna/app/service/websearch"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Executor dispatches validated plan actions to their domain services. One
// failed action never aborts the rest of the plan.
type Executor struct {
	tasks    *tasks.Service
	calendar *calendar.Service
	email    *email.Service
	memory   *memory.Service
	notes    *notes.Service
	search   *websearch.Service
}

func NewExecutorFromDI(di *do.Injector) (*Executor, error) {
	return NewExecutor(
		do.MustInvoke[*tasks.Service](di),
		do.MustInvoke[*calendar.Service](di),
		do.MustInvoke[*email.Service](di),
		do.MustInvoke[*memory.Service](di),
		do.MustInvoke[*notes.Service](di),
		do.MustInvoke[*websearch.Service](di),
	), nil
}

func NewExecutor(
	taskSvc *tasks.Service,
	calendarSvc *calendar.Service,
	emailSvc *email.Service,
	memorySvc *memory.Service,
	notesSvc *notes.Service,
	searchSvc *websearch.Service,
) *Executor {
	return &Executor{
		tasks:    taskSvc,
		calendar: calendarSvc,
		email:    emailSvc,
		memory:   memorySvc,
		notes:    notesSvc,
		search:   searchSvc,
	}
}

func (e *Executor) Execute(ctx context.Context, userID string, plan actions.Plan) []respond.ActionResult {
	results := make([]respond.ActionResult, 0, len(plan.Actions))

	for _, action := range plan.Actions {
		output, err := e.dispatch(ctx, userID, action)
		results = append(results, respond.ActionResult{
			Action: action,
			Output: output,
			Err:    err,
		})
	}

	return results
}

// dispatch is the single exhaustive switch over the closed action set.
func (e *Executor) dispatch(ctx context.Context, userID string, action actions.Action) (string, error) {
	switch params := action.Params.(type) {
	case actions.TaskCreateParams:
		return e.tasks.Create(ctx, userID, params.Title, params.Description, params.Priority, params.Deadline)

	case actions.TaskCompleteParams:
		taskID, err := e.resolveTask(ctx, userID, params.FindBy)
		if err != nil {
			return "", err
		}
		return e.tasks.Complete(ctx, userID, taskID)

	case actions.TaskUpdateParams:
		taskID, err := e.resolveTask(ctx, userID, params.FindBy)
		if err != nil {
			return "", err
		}

		priority := firstNonEmpty(params.Priority, params.Changes["priority"])
		deadline := firstNonEmpty(params.Deadline, params.Changes["deadline"])
		return e.tasks.Update(ctx, userID, taskID, priority, deadline)

	case actions.TaskDeleteParams:
		taskID, err := e.resolveTask(ctx, userID, params.FindBy)
		if err != nil {
			return "", err
		}
		return e.tasks.Delete(ctx, userID, taskID)

	case actions.CalendarCreateEventParams:
		start, err := parseEventTime(params.StartTime)
		if err != nil {
			return "", err
		}

		var end *time.Time
		if params.EndTime != "" {
			parsed, err := parseEventTime(params.EndTime)
			if err != nil {
				return "", err
			}
			end = &parsed
		}

		event, err := e.calendar.CreateEvent(ctx, params.Summary, start, end, params.Location, params.Description)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Created event: %s", event.Title), nil

	case actions.CalendarListEventsParams:
		daysAhead := params.DaysAhead
		if daysAhead <= 0 {
			daysAhead = 7
		}

		events, err := e.calendar.ListUpcoming(ctx, 20, daysAhead)
		if err != nil {
			return "", err
		}
		return formatEventList(events), nil

	case actions.CalendarDeleteEventParams:
		eventID, err := e.resolveEvent(ctx, params.EventID, params.FindBy)
		if err != nil {
			return "", err
		}

		if err = e.calendar.DeleteEvent(ctx, eventID); err != nil {
			return "", err
		}
		return "Event deleted", nil

	case actions.CalendarUpdateEventParams:
		eventID, err := e.resolveEvent(ctx, params.EventID, params.FindBy)
		if err != nil {
			return "", err
		}

		if err = e.calendar.UpdateEvent(ctx, eventID, params.Changes); err != nil {
			return "", err
		}
		return "Event updated", nil

	case actions.EmailCreateDraftParams:
		draft, err := e.email.CreateDraft(ctx, params.To, params.Subject, params.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Draft created for %s: %s", draft.To, draft.Subject), nil

	case actions.EmailSendParams:
		sent, err := e.email.Send(ctx, params.To, params.Subject, params.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Email sent to %s: %s", sent.To, sent.Subject), nil

	case actions.EmailReplyParams:
		sent, err := e.email.ReplyToSender(ctx, params.SenderName, params.Body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Replied to %s: %s", params.SenderName, sent.Subject), nil

	case actions.MemoryStoreParams:
		return e.memory.Store(ctx, userID, params.Category, params.Key, params.Value)

	case actions.MemoryUpdateParams:
		return e.memory.Update(ctx, userID, params.Key, params.NewValue)

	case actions.MemoryDeleteParams:
		return e.memory.Delete(ctx, userID, params.Key)

	case actions.NotesCreateParams:
		note, err := e.notes.Create(ctx, params.Title, params.Content)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Note created: %s", note.Title), nil

	case actions.NotesUpdateParams:
		note, err := e.notes.Update(ctx, params.TitleSearch, params.NewContent)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Note updated: %s", note.Title), nil

	case actions.NotesDeleteParams:
		if err := e.notes.Delete(ctx, params.TitleSearch); err != nil {
			return "", err
		}
		return "Note deleted", nil

	case actions.WebSearchParams:
		return e.search.Search(ctx, params.Query)

	default:
		return "", oops.Errorf("unhandled action: %s.%s", action.Domain, action.Name)
	}
}

func (e *Executor) resolveTask(ctx context.Context, userID, findBy string) (string, error) {
	if findBy == "" {
		return "", oops.Errorf("no task reference given")
	}

	taskID, found, err := e.tasks.FindByTitle(ctx, userID, findBy)
	if err != nil {
		return "", err
	}
	if !found {
		return "", oops.Errorf("no task matching %q", findBy)
	}

	return taskID, nil
}

func (e *Executor) resolveEvent(ctx context.Context, eventID, findBy string) (string, error) {
	if eventID != "" {
		return eventID, nil
	}
	if findBy == "" {
		return "", oops.Errorf("no event reference given")
	}

	events, err := e.calendar.ListUpcoming(ctx, 50, 14)
	if err != nil {
		return "", err
	}

	lower := strings.ToLower(findBy)
	for _, event := range events {
		if strings.Contains(strings.ToLower(event.Title), lower) {
			return event.ID, nil
		}
	}

	return "", oops.Errorf("no upcoming event matching %q", findBy)
}

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseEventTime(value string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, oops.Errorf("unparseable event time: %q", value)
}

func formatEventList(events []calendar.FormattedEvent) string {
	if len(events) == 0 {
		return "No upcoming events"
	}

	lines := make([]string, 0, len(events))
	for _, event := range events {
		lines = append(lines, fmt.Sprintf("%s at %s", event.Title, event.Time))
	}

	return strings.Join(lines, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
