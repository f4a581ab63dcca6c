package calendar

import (
	"context"
	"strings"
	"time"

	"donna/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const defaultDaysAhead = 7

type Event struct {
	ID          string
	Title       string
	Location    string
	Description string
	Start       time.Time
	End         *time.Time
	AllDay      bool
}

// Provider is the calendar backend (Google Calendar in production). Out of
// scope here; the service only needs these operations.
type Provider interface {
	EventsForDate(ctx context.Context, date time.Time) ([]Event, error)
	UpcomingEvents(ctx context.Context, maxResults, daysAhead int) ([]Event, error)
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, eventID string, changes map[string]string) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// FormattedEvent is the compact representation fed into prompts.
type FormattedEvent struct {
	ID       string
	Title    string
	Time     string
	Location string
	Start    string
}

type Service struct {
	provider    Provider
	noiseTitles []string
	location    *time.Location
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	location, err := time.LoadLocation(cfg.Assistant.Timezone)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load timezone %q", cfg.Assistant.Timezone)
	}

	return NewService(do.MustInvoke[Provider](di), cfg.Calendar.NoiseTitles, location), nil
}

func NewService(provider Provider, noiseTitles []string, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}

	return &Service{
		provider:    provider,
		noiseTitles: noiseTitles,
		location:    location,
	}
}

// FetchForMessage retrieves events for the window the message implies:
// "today" or "tomorrow" narrow to one day, anything else defaults to the
// next 7 days. Recurring noise titles are filtered out.
func (s *Service) FetchForMessage(ctx context.Context, message string) ([]FormattedEvent, error) {
	lower := strings.ToLower(message)
	now := time.Now().In(s.location)

	var (
		events []Event
		err    error
	)

	switch {
	case strings.Contains(lower, "tomorrow"):
		events, err = s.provider.EventsForDate(ctx, now.AddDate(0, 0, 1))
	case strings.Contains(lower, "today"):
		events, err = s.provider.EventsForDate(ctx, now)
	default:
		events, err = s.provider.UpcomingEvents(ctx, 10, defaultDaysAhead)
	}
	if err != nil {
		return nil, oops.Wrapf(err, "failed to fetch events")
	}

	events = pie.Filter(events, func(e Event) bool {
		return !s.isNoise(e.Title)
	})

	return pie.Map(events, s.format), nil
}

func (s *Service) ListUpcoming(ctx context.Context, maxResults, daysAhead int) ([]FormattedEvent, error) {
	if daysAhead <= 0 {
		daysAhead = defaultDaysAhead
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	events, err := s.provider.UpcomingEvents(ctx, maxResults, daysAhead)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to fetch events")
	}

	return pie.Map(events, s.format), nil
}

func (s *Service) CreateEvent(ctx context.Context, summary string, start time.Time, end *time.Time, location, description string) (Event, error) {
	if summary == "" {
		summary = "New Event"
	}

	created, err := s.provider.CreateEvent(ctx, Event{
		Title:       summary,
		Start:       start,
		End:         end,
		Location:    location,
		Description: description,
	})
	if err != nil {
		return Event{}, oops.Wrapf(err, "failed to create event")
	}

	return created, nil
}

func (s *Service) UpdateEvent(ctx context.Context, eventID string, changes map[string]string) error {
	if err := s.provider.UpdateEvent(ctx, eventID, changes); err != nil {
		return oops.Wrapf(err, "failed to update event")
	}

	return nil
}

func (s *Service) DeleteEvent(ctx context.Context, eventID string) error {
	if err := s.provider.DeleteEvent(ctx, eventID); err != nil {
		return oops.Wrapf(err, "failed to delete event")
	}

	return nil
}

func (s *Service) isNoise(title string) bool {
	lower := strings.ToLower(title)

	for _, noise := range s.noiseTitles {
		if noise != "" && strings.Contains(lower, strings.ToLower(noise)) {
			return true
		}
	}

	return false
}

func (s *Service) format(event Event) FormattedEvent {
	title := event.Title
	if title == "" {
		title = "Untitled"
	}
	if runes := []rune(title); len(runes) > 100 {
		title = string(runes[:100])
	}

	start := event.Start.In(s.location)

	var timeDisplay string
	if event.AllDay {
		timeDisplay = "All day on " + start.Format("Mon Jan 02")
	} else {
		timeDisplay = start.Format("03:04PM on Mon Jan 02")
	}

	location := event.Location
	if runes := []rune(location); len(runes) > 50 {
		location = string(runes[:50])
	}

	return FormattedEvent{
		ID:       event.ID,
		Title:    title,
		Time:     timeDisplay,
		Location: location,
		Start:    event.Start.Format(time.RFC3339),
	}
}

// Unconfigured is the provider used when no calendar backend is wired; every
// operation fails with a descriptive error the executor reports per-action.
type Unconfigured struct{}

var _ Provider = Unconfigured{}

func (Unconfigured) EventsForDate(context.Context, time.Time) ([]Event, error) {
	return nil, oops.Errorf("calendar provider not configured")
}

func (Unconfigured) UpcomingEvents(context.Context, int, int) ([]Event, error) {
	return nil, oops.Errorf("calendar provider not configured")
}

func (Unconfigured) CreateEvent(context.Context, Event) (Event, error) {
	return Event{}, oops.Errorf("calendar provider not configured")
}

func (Unconfigured) UpdateEvent(context.Context, string, map[string]string) error {
	return oops.Errorf("calendar provider not configured")
}

func (Unconfigured) DeleteEvent(context.Context, string) error {
	return oops.Errorf("calendar provider not configured")
}
