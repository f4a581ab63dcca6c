package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"donna/app/config"
	"donna/app/observability"
	"donna/app/service/actions"
	"donna/app/service/confirm"
	"donna/app/service/conversation"
	"donna/app/service/fetcher"
	"donna/app/service/memory"
	"donna/app/service/planner"
	"donna/app/service/respond"
	"donna/app/service/router"

	"github.com/samber/do"
)

const (
	declinedReply  = "Got it, I won't do that."
	ambiguousReply = "I wasn't sure if that was a yes or no. "
)

// Result is one handled turn. The HTTP layer serializes it directly; a
// handled turn never surfaces an error.
type Result struct {
	Response             string
	AwaitingConfirmation bool
	ActionsExecuted      []respond.ActionResult
	Route                router.Decision
}

// Service orchestrates one message turn: confirmation gate, routing raced
// against a speculative context fetch, planning, the confirmation gate for
// new plans, execution and response synthesis.
type Service struct {
	router   *router.Service
	fetcher  *fetcher.Service
	planner  *planner.Service
	executor *Executor
	respond  *respond.Service
	confirm  *confirm.Manager
	history  *conversation.Log
	metrics  *observability.Metrics
	window   int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[*router.Service](di),
		do.MustInvoke[*fetcher.Service](di),
		do.MustInvoke[*planner.Service](di),
		do.MustInvoke[*Executor](di),
		do.MustInvoke[*respond.Service](di),
		do.MustInvoke[*confirm.Manager](di),
		do.MustInvoke[*conversation.Log](di),
		do.MustInvoke[*observability.Metrics](di),
		cfg.Assistant.HistoryWindow,
	), nil
}

func NewService(
	routerSvc *router.Service,
	fetcherSvc *fetcher.Service,
	plannerSvc *planner.Service,
	executor *Executor,
	respondSvc *respond.Service,
	confirmMgr *confirm.Manager,
	history *conversation.Log,
	metrics *observability.Metrics,
	historyWindow int,
) *Service {
	if historyWindow <= 0 {
		historyWindow = 10
	}

	return &Service{
		router:   routerSvc,
		fetcher:  fetcherSvc,
		planner:  plannerSvc,
		executor: executor,
		respond:  respondSvc,
		confirm:  confirmMgr,
		history:  history,
		metrics:  metrics,
		window:   historyWindow,
	}
}

// Handle processes one user message. It never returns an error to the
// caller: every failure mode degrades to a sensible reply instead.
func (s *Service) Handle(ctx context.Context, userID, message string) Result {
	tail, err := s.history.Tail(ctx, userID, s.window)
	if err != nil {
		slog.Warn("History load failed, continuing without it", "error", err)
	}

	// the confirmation gate runs before anything else: a bare "yes" only
	// makes sense against the pending plan
	if result, handled := s.resolvePending(ctx, userID, message, tail); handled {
		return result
	}

	// speculative fetch races the router; domains are guessed from keywords
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	speculated := router.KeywordDomains(strings.ToLower(message))
	fetchDone := make(chan *fetcher.Context, 1)

	fetchStart := time.Now()
	go func() {
		fetchDone <- s.fetcher.Fetch(fetchCtx, userID, message, speculated)
	}()

	routeStart := time.Now()
	route := s.router.Route(ctx, message, tail)
	s.metrics.ObserveStage("route", routeStart)
	s.metrics.CountRoute(string(route.Type))

	// a route that names no domains has nothing to plan, whatever its type;
	// it is answered as context-aware chat
	if route.Type == router.RouteChat || len(route.Domains) == 0 {
		// the one deliberate cancellation point: the chat reply does not
		// wait for speculative branches, it uses whatever survived
		cancelFetch()
		fetched := <-fetchDone
		s.metrics.ObserveStage("fetch", fetchStart)
		s.metrics.CountEarlyExit()

		respondStart := time.Now()
		reply := s.respond.Chat(ctx, message, fetched.CurrentTime, fetched.Memories, tail)
		s.metrics.ObserveStage("respond", respondStart)
		return Result{Response: reply, Route: route}
	}

	// reuse the speculative result only when it covers the routed domains;
	// otherwise cancel it and fetch for real
	var fetched *fetcher.Context
	if covers(speculated, route.Domains) {
		fetched = <-fetchDone
	} else {
		cancelFetch()
		<-fetchDone
		fetched = s.fetcher.Fetch(ctx, userID, message, route.Domains)
	}
	s.metrics.ObserveStage("fetch", fetchStart)

	planStart := time.Now()
	plan := s.planner.Plan(ctx, message, route.Domains, fetched, tail)
	s.metrics.ObserveStage("plan", planStart)

	if plan.NeedsClarification {
		return Result{Response: plan.ClarificationQuestion, Route: route}
	}

	if len(plan.Actions) == 0 {
		respondStart := time.Now()
		reply := s.respond.Chat(ctx, message, fetched.CurrentTime, fetched.Memories, tail)
		s.metrics.ObserveStage("respond", respondStart)
		return Result{Response: reply, Route: route}
	}

	if plan.RequiresConfirmation {
		s.confirm.Store(userID, plan)
		return Result{
			Response:             respond.ConfirmationPrompt(plan),
			AwaitingConfirmation: true,
			Route:                route,
		}
	}

	result := s.execute(ctx, userID, message, tail, fetched.Memories, plan)
	result.Route = route
	return result
}

// resolvePending applies the user's reply to a pending confirmation, if any.
func (s *Service) resolvePending(ctx context.Context, userID, message string, tail []conversation.Turn) (Result, bool) {
	plan, ok := s.confirm.Get(userID)
	if !ok {
		return Result{}, false
	}

	switch {
	case confirm.IsAffirmative(message):
		s.confirm.Clear(userID)
		// no fetched context on the resume path; the responder works from
		// the results and the conversation alone
		return s.execute(ctx, userID, message, tail, nil, plan), true

	case confirm.IsNegative(message):
		s.confirm.Clear(userID)
		return Result{Response: declinedReply}, true

	default:
		// neither a clear yes nor no: re-prompt, keep the plan pending
		return Result{
			Response:             ambiguousReply + respond.ConfirmationPrompt(plan),
			AwaitingConfirmation: true,
		}, true
	}
}

func (s *Service) execute(ctx context.Context, userID, message string, tail []conversation.Turn, memories []memory.SearchResult, plan actions.Plan) Result {
	executeStart := time.Now()
	results := s.executor.Execute(ctx, userID, plan)
	s.metrics.ObserveStage("execute", executeStart)

	for _, result := range results {
		s.metrics.CountAction(string(result.Action.Domain), result.Action.Name, result.Err == nil)
		if result.Err != nil {
			slog.Error("Action failed",
				"domain", result.Action.Domain,
				"action", result.Action.Name,
				"error", result.Err)
		}
	}

	respondStart := time.Now()
	reply := s.respond.Synthesize(ctx, message, tail, memories, results)
	s.metrics.ObserveStage("respond", respondStart)

	return Result{Response: reply, ActionsExecuted: results}
}

func covers(have, want []actions.Domain) bool {
	set := make(map[actions.Domain]bool, len(have))
	for _, domain := range have {
		set[domain] = true
	}

	for _, domain := range want {
		if !set[domain] {
			return false
		}
	}

	return true
}
