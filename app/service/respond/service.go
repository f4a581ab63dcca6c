package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"donna/app/client/llm"
	"donna/app/config"
	"donna/app/service/actions"
	"donna/app/service/conversation"
	"donna/app/service/fetcher"
	"donna/app/service/memory"

	_ "embed"

	"github.com/samber/do"
)

//go:embed chat_prompt_template.txt
var chatPromptTemplate string

//go:embed result_prompt_template.txt
var resultPromptTemplate string

// canned fallbacks for when the response model is down; the pipeline must
// still answer something
const (
	FallbackChat    = "Hey! How can I help you today?"
	FallbackSuccess = "Done."
	FallbackFailure = "Sorry, something went wrong. Please try again."
)

const (
	historyWindow = 5
	memoryLimit   = 3
)

// ActionResult records one executed action's outcome.
type ActionResult struct {
	Action actions.Action
	Output string
	Err    error
}

type Service struct {
	client llm.Client
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(llm.NewOpenAIClient(cfg.OpenAI.Response)), nil
}

func NewService(client llm.Client) *Service {
	return &Service{client: client}
}

// Chat answers a conversational message using retrieved memories as the only
// source of personal facts.
func (s *Service) Chat(ctx context.Context, message, currentTime string, memories []memory.SearchResult, historyTail []conversation.Turn) string {
	prompt := llm.RenderTemplate(chatPromptTemplate, map[string]string{
		"current_time": currentTime,
		"memories":     formatMemories(memories),
		"history":      formatHistory(historyTail),
		"message":      message,
	})

	response, err := s.client.Complete(ctx, prompt, 300, 0.7)
	if err != nil || strings.TrimSpace(response) == "" {
		slog.Error("Chat response failed", "error", err)
		return FallbackChat
	}

	return strings.TrimSpace(response)
}

// Synthesize turns execution results into a user-facing reply, with the
// recent conversation and retrieved memories available for phrasing. The
// fallback never claims success when anything failed.
func (s *Service) Synthesize(ctx context.Context, message string, historyTail []conversation.Turn, memories []memory.SearchResult, results []ActionResult) string {
	allOK := true
	for _, r := range results {
		if r.Err != nil {
			allOK = false
			break
		}
	}

	prompt := llm.RenderTemplate(resultPromptTemplate, map[string]string{
		"message":  message,
		"history":  formatHistory(historyTail),
		"memories": formatMemories(memories),
		"results":  renderActionResults(results),
	})

	response, err := s.client.Complete(ctx, prompt, 300, 0.7)
	if err != nil || strings.TrimSpace(response) == "" {
		slog.Error("Result response failed", "error", err)

		if allOK {
			return FallbackSuccess
		}
		return FallbackFailure
	}

	return strings.TrimSpace(response)
}

func formatHistory(historyTail []conversation.Turn) string {
	if len(historyTail) > historyWindow {
		historyTail = historyTail[len(historyTail)-historyWindow:]
	}

	history := conversation.Format(historyTail, 500)
	if history == "" {
		return "(No recent messages)"
	}

	return history
}

func formatMemories(memories []memory.SearchResult) string {
	if len(memories) > memoryLimit {
		memories = memories[:memoryLimit]
	}

	return fetcher.FormatMemories(memories)
}

func renderActionResults(results []ActionResult) string {
	var sb strings.Builder
	allOK := true

	for _, r := range results {
		if r.Err != nil {
			allOK = false
			fmt.Fprintf(&sb, "FAILED: %s.%s - %v\n", r.Action.Domain, r.Action.Name, r.Err)
			continue
		}

		output := r.Output
		if output == "" {
			output = "ok"
		}

		fmt.Fprintf(&sb, "SUCCESS: %s.%s - %s\n", r.Action.Domain, r.Action.Name, output)
	}

	if allOK {
		sb.WriteString("All actions succeeded.")
	} else {
		sb.WriteString("Some actions failed.")
	}

	return sb.String()
}

// ConfirmationPrompt builds the question shown before high-stakes actions
// run. The planner's own message wins when present.
func ConfirmationPrompt(plan actions.Plan) string {
	if strings.TrimSpace(plan.ConfirmationMessage) != "" {
		return plan.ConfirmationMessage
	}

	lines := make([]string, 0, len(plan.Actions))
	for _, action := range plan.Actions {
		lines = append(lines, "- "+describeAction(action))
	}

	if len(lines) == 0 {
		return "Should I go ahead with that?"
	}

	return "I'm about to do the following:\n" + strings.Join(lines, "\n") + "\nShould I proceed?"
}

func describeAction(action actions.Action) string {
	switch params := action.Params.(type) {
	case actions.EmailSendParams:
		return fmt.Sprintf("send an email to %s with subject %q", params.To, params.Subject)
	case actions.EmailReplyParams:
		return fmt.Sprintf("reply to the latest email from %s", params.SenderName)
	case actions.CalendarDeleteEventParams:
		return "delete a calendar event" + findByHint(params.EventID, params.FindBy)
	case actions.CalendarUpdateEventParams:
		return "update a calendar event" + findByHint(params.EventID, params.FindBy)
	case actions.TaskDeleteParams:
		return fmt.Sprintf("delete the task %q", params.FindBy)
	case actions.MemoryDeleteParams:
		return fmt.Sprintf("forget what I know about %q", params.Key)
	case actions.NotesDeleteParams:
		return fmt.Sprintf("delete the note matching %q", params.TitleSearch)
	default:
		return fmt.Sprintf("%s %s", action.Domain, strings.ReplaceAll(action.Name, "_", " "))
	}
}

func findByHint(eventID, findBy string) string {
	switch {
	case findBy != "":
		return fmt.Sprintf(" matching %q", findBy)
	case eventID != "":
		return fmt.Sprintf(" (id %s)", eventID)
	default:
		return ""
	}
}
