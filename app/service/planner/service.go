package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"donna/app/client/llm"
	"donna/app/config"
	"donna/app/service/actions"
	"donna/app/service/conversation"
	"donna/app/service/fetcher"

	_ "embed"

	"github.com/samber/do"
)

//go:embed plan_prompt_template.txt
var planPromptTemplate string

// ClarificationFallback is returned whenever planning fails outright.
// Better to admit confusion than to execute a half-parsed plan.
const ClarificationFallback = "I had trouble understanding. Could you rephrase that?"

type Service struct {
	client    llm.Client
	signature string
	window    int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		llm.NewOpenAIClient(cfg.OpenAI.Planner),
		cfg.Assistant.SignatureName,
		cfg.Assistant.HistoryWindow,
	), nil
}

func NewService(client llm.Client, signature string, historyWindow int) *Service {
	if historyWindow <= 0 {
		historyWindow = 10
	}

	return &Service{
		client:    client,
		signature: signature,
		window:    historyWindow,
	}
}

// wire shapes mirror the prompt contract; params stay raw until the action
// registry has validated the (domain, name) pair.
type wirePlan struct {
	Actions               []wireAction `json:"actions"`
	RequiresConfirmation  bool         `json:"requires_confirmation"`
	ConfirmationMessage   string       `json:"confirmation_message"`
	NeedsClarification    bool         `json:"needs_clarification"`
	ClarificationQuestion string       `json:"clarification_question"`
}

type wireAction struct {
	Domain    string          `json:"domain"`
	Name      string          `json:"name"`
	Params    json.RawMessage `json:"params"`
	Reasoning string          `json:"reasoning"`
}

// Plan turns a routed message into validated actions. Actions outside the
// routed domains are dropped, unknown or malformed actions are dropped, and
// the high-stakes table can only ADD a confirmation requirement, never
// remove one.
func (s *Service) Plan(
	ctx context.Context,
	message string,
	domains []actions.Domain,
	fetched *fetcher.Context,
	historyTail []conversation.Turn,
) actions.Plan {
	if len(historyTail) > s.window {
		historyTail = historyTail[len(historyTail)-s.window:]
	}

	prompt := s.renderPrompt(message, domains, fetched, historyTail)

	response, err := s.client.Complete(ctx, prompt, 1500, 0.2)
	if err != nil {
		slog.Error("Planner LLM call failed", "error", err)
		return clarificationPlan()
	}

	var parsed wirePlan
	if err = llm.Unmarshal(response, &parsed); err != nil {
		slog.Error("Planner response unparseable", "error", err, "response", response)
		return clarificationPlan()
	}

	return s.validate(parsed, domains)
}

func (s *Service) validate(parsed wirePlan, domains []actions.Domain) actions.Plan {
	allowed := make(map[actions.Domain]bool, len(domains))
	for _, domain := range domains {
		allowed[domain] = true
	}

	plan := actions.Plan{
		RequiresConfirmation:  parsed.RequiresConfirmation,
		ConfirmationMessage:   parsed.ConfirmationMessage,
		NeedsClarification:    parsed.NeedsClarification,
		ClarificationQuestion: parsed.ClarificationQuestion,
	}

	for _, raw := range parsed.Actions {
		domain := actions.Domain(raw.Domain)

		if !allowed[domain] {
			slog.Warn("Planner proposed out-of-route action, dropping",
				"domain", raw.Domain, "action", raw.Name)
			continue
		}

		params, err := actions.Decode(domain, raw.Name, raw.Params)
		if err != nil {
			slog.Warn("Planner proposed invalid action, dropping",
				"domain", raw.Domain, "action", raw.Name, "error", err)
			continue
		}

		if actions.HighStakes(domain, raw.Name) {
			plan.RequiresConfirmation = true
		}

		plan.Actions = append(plan.Actions, actions.Action{
			Domain:    domain,
			Name:      raw.Name,
			Params:    params,
			Reasoning: raw.Reasoning,
		})
	}

	if len(plan.Actions) == 0 && !plan.NeedsClarification {
		// everything got dropped or the model planned nothing actionable
		plan.RequiresConfirmation = false
	}

	return plan
}

func (s *Service) renderPrompt(
	message string,
	domains []actions.Domain,
	fetched *fetcher.Context,
	historyTail []conversation.Turn,
) string {
	if fetched == nil {
		fetched = &fetcher.Context{}
	}

	history := conversation.Format(historyTail, 500)
	if history == "" {
		history = "(No recent messages)"
	}

	domainNames := make([]string, 0, len(domains))
	for _, domain := range domains {
		domainNames = append(domainNames, string(domain))
	}

	now := time.Now()
	return llm.RenderTemplate(planPromptTemplate, map[string]string{
		"current_time": fetched.CurrentTime,
		"today":        fetched.Today,
		"timezone":     fetched.Timezone,
		"tomorrow":     now.AddDate(0, 0, 1).Format("2006-01-02"),
		"in_2_hours":   now.Add(2 * time.Hour).Format(time.RFC3339),
		"memories":     fetcher.FormatMemories(fetched.Memories),
		"tasks":        fetcher.FormatTasks(fetched.Tasks),
		"events":       fetcher.FormatEvents(fetched.Events),
		"contacts":     fetcher.FormatContacts(fetched.Contacts),
		"history":      history,
		"message":      message,
		"domains":      strings.Join(domainNames, ", "),
		"signature":    s.signature,
	})
}

func clarificationPlan() actions.Plan {
	return actions.Plan{
		NeedsClarification:    true,
		ClarificationQuestion: ClarificationFallback,
	}
}
