package router

import (
	"context"
	"log/slog"

	"donna/app/client/llm"
	"donna/app/config"
	"donna/app/service/actions"
	"donna/app/service/conversation"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

//go:embed route_prompt_template.txt
var routePromptTemplate string

// historyWindow is deliberately small: routing needs little context and the
// call is latency-sensitive.
const historyWindow = 3

type RouteType string

const (
	RouteChat     RouteType = "chat"
	RouteAction   RouteType = "action"
	RouteFollowup RouteType = "followup"
)

// Decision is ephemeral, used only within one turn.
type Decision struct {
	Type       RouteType
	Domains    []actions.Domain
	IsFollowup bool
}

type Service struct {
	client llm.Client
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(llm.NewOpenAIClient(cfg.OpenAI.Router)), nil
}

func NewService(client llm.Client) *Service {
	return &Service{client: client}
}

// Route classifies a message. Any transport or parse failure falls back to
// the deterministic heuristic: the heuristic is the availability floor of
// the whole pipeline.
func (s *Service) Route(ctx context.Context, message string, historyTail []conversation.Turn) Decision {
	if len(historyTail) > historyWindow {
		historyTail = historyTail[len(historyTail)-historyWindow:]
	}

	history := conversation.Format(historyTail, 200)
	if history == "" {
		history = "(No recent messages)"
	}

	prompt := llm.RenderTemplate(routePromptTemplate, map[string]string{
		"history": history,
		"message": message,
	})

	response, err := s.client.Complete(ctx, prompt, 100, 0.1)
	if err != nil {
		slog.Warn("Router LLM call failed, using heuristic", "error", err)
		return HeuristicRoute(message, historyTail)
	}

	var parsed struct {
		Type       string   `json:"type"`
		Domains    []string `json:"domains"`
		IsFollowup bool     `json:"is_followup"`
	}

	if err = llm.Unmarshal(response, &parsed); err != nil {
		slog.Warn("Router response unparseable, using heuristic", "error", err)
		return HeuristicRoute(message, historyTail)
	}

	decision := Decision{
		Type:       RouteType(parsed.Type),
		IsFollowup: parsed.IsFollowup,
		Domains: pie.Filter(
			pie.Map(parsed.Domains, func(d string) actions.Domain { return actions.Domain(d) }),
			actions.ValidDomain,
		),
	}

	switch decision.Type {
	case RouteChat, RouteAction, RouteFollowup:
	default:
		decision.Type = RouteChat
	}

	return decision
}
