package actions

import (
	"encoding/json"

	"github.com/samber/oops"
)

type Domain string

const (
	DomainTask      Domain = "task"
	DomainCalendar  Domain = "calendar"
	DomainEmail     Domain = "email"
	DomainMemory    Domain = "memory"
	DomainNotes     Domain = "notes"
	DomainWebSearch Domain = "websearch"
)

// Domains is the closed set the router may dispatch toward.
var Domains = []Domain{
	DomainTask,
	DomainCalendar,
	DomainEmail,
	DomainMemory,
	DomainNotes,
	DomainWebSearch,
}

func ValidDomain(d Domain) bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}

	return false
}

// Params is implemented by every typed parameter record. The set is closed:
// the executor dispatches with an exhaustive type switch.
type Params interface {
	isParams()
}

type TaskCreateParams struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Deadline    string `json:"deadline"`
}

type TaskCompleteParams struct {
	FindBy string `json:"find_by"`
}

type TaskUpdateParams struct {
	FindBy   string            `json:"find_by"`
	Changes  map[string]string `json:"changes"`
	Priority string            `json:"priority"`
	Deadline string            `json:"deadline"`
}

type TaskDeleteParams struct {
	FindBy string `json:"find_by"`
}

type CalendarCreateEventParams struct {
	Summary     string `json:"summary"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type CalendarListEventsParams struct {
	DaysAhead int `json:"days_ahead"`
}

type CalendarDeleteEventParams struct {
	EventID string `json:"event_id"`
	FindBy  string `json:"find_by"`
}

type CalendarUpdateEventParams struct {
	EventID string            `json:"event_id"`
	FindBy  string            `json:"find_by"`
	Changes map[string]string `json:"changes"`
}

type EmailCreateDraftParams struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type EmailSendParams struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type EmailReplyParams struct {
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
}

type MemoryStoreParams struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

type MemoryUpdateParams struct {
	Key      string `json:"key"`
	NewValue string `json:"new_value"`
}

type MemoryDeleteParams struct {
	Key string `json:"key"`
}

type NotesCreateParams struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type NotesUpdateParams struct {
	TitleSearch string `json:"title_search"`
	NewContent  string `json:"new_content"`
}

type NotesDeleteParams struct {
	TitleSearch string `json:"title_search"`
}

type WebSearchParams struct {
	Query string `json:"query"`
}

func (TaskCreateParams) isParams()          {}
func (TaskCompleteParams) isParams()        {}
func (TaskUpdateParams) isParams()          {}
func (TaskDeleteParams) isParams()          {}
func (CalendarCreateEventParams) isParams() {}
func (CalendarListEventsParams) isParams()  {}
func (CalendarDeleteEventParams) isParams() {}
func (CalendarUpdateEventParams) isParams() {}
func (EmailCreateDraftParams) isParams()    {}
func (EmailSendParams) isParams()           {}
func (EmailReplyParams) isParams()          {}
func (MemoryStoreParams) isParams()         {}
func (MemoryUpdateParams) isParams()        {}
func (MemoryDeleteParams) isParams()        {}
func (NotesCreateParams) isParams()         {}
func (NotesUpdateParams) isParams()         {}
func (NotesDeleteParams) isParams()         {}
func (WebSearchParams) isParams()           {}

// Action is one validated planner output entry.
type Action struct {
	Domain    Domain
	Name      string
	Params    Params
	Reasoning string
}

// Plan is the planner's structured result for one turn. Never persisted
// beyond the confirmation manager's pending slot.
type Plan struct {
	Actions               []Action
	RequiresConfirmation  bool
	ConfirmationMessage   string
	NeedsClarification    bool
	ClarificationQuestion string
}

type spec struct {
	decode     func(raw json.RawMessage) (Params, error)
	highStakes bool
}

func typed[P Params](highStakes bool) spec {
	return spec{
		decode: func(raw json.RawMessage) (Params, error) {
			var params P
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &params); err != nil {
					return nil, oops.Wrapf(err, "invalid params")
				}
			}
			return params, nil
		},
		highStakes: highStakes,
	}
}

// registry is the closed domain×action table. The high-stakes flag marks
// actions whose effect is hard to reverse; they always require explicit
// confirmation regardless of what the model claims.
var registry = map[Domain]map[string]spec{
	DomainTask: {
		"create":   typed[TaskCreateParams](false),
		"complete": typed[TaskCompleteParams](false),
		"update":   typed[TaskUpdateParams](false),
		"delete":   typed[TaskDeleteParams](true),
	},
	DomainCalendar: {
		"create_event": typed[CalendarCreateEventParams](false),
		"list_events":  typed[CalendarListEventsParams](false),
		"delete_event": typed[CalendarDeleteEventParams](true),
		"update_event": typed[CalendarUpdateEventParams](true),
	},
	DomainEmail: {
		"create_draft":   typed[EmailCreateDraftParams](false),
		"send_email":     typed[EmailSendParams](true),
		"reply_to_email": typed[EmailReplyParams](true),
	},
	DomainMemory: {
		"store":  typed[MemoryStoreParams](false),
		"update": typed[MemoryUpdateParams](false),
		"delete": typed[MemoryDeleteParams](true),
	},
	DomainNotes: {
		"create_note": typed[NotesCreateParams](false),
		"update_note": typed[NotesUpdateParams](false),
		"delete_note": typed[NotesDeleteParams](true),
	},
	DomainWebSearch: {
		"search": typed[WebSearchParams](false),
	},
}

// Decode validates a (domain, action) pair against the registry and decodes
// raw params into the action's typed record.
func Decode(domain Domain, name string, raw json.RawMessage) (Params, error) {
	domainActions, ok := registry[domain]
	if !ok {
		return nil, oops.Errorf("unknown domain: %s", domain)
	}

	actionSpec, ok := domainActions[name]
	if !ok {
		return nil, oops.Errorf("unknown action: %s.%s", domain, name)
	}

	return actionSpec.decode(raw)
}

// HighStakes reports whether an action requires confirmation before
// execution. Unknown pairs are treated as low-stakes; they never execute
// anyway because Decode rejects them.
func HighStakes(domain Domain, name string) bool {
	if domainActions, ok := registry[domain]; ok {
		if actionSpec, ok := domainActions[name]; ok {
			return actionSpec.highStakes
		}
	}

	return false
}
