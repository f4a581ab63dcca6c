package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"donna/app/config"
	"donna/app/observability"
	"donna/app/service/conversation"
	"donna/app/service/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

type messageRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type executedAction struct {
	Domain string `json:"domain"`
	Action string `json:"action"`
	OK     bool   `json:"ok"`
}

type messageResponse struct {
	Response             string           `json:"response"`
	AwaitingConfirmation bool             `json:"awaiting_confirmation"`
	ActionsExecuted      []executedAction `json:"actions_executed"`
}

type Service struct {
	app           *fiber.App
	pipeline      *pipeline.Service
	history       *conversation.Log
	listen        string
	metricsListen string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[*pipeline.Service](di),
		do.MustInvoke[*conversation.Log](di),
		cfg.Server.Listen,
		cfg.Server.MetricsListen,
	), nil
}

func NewService(pipelineSvc *pipeline.Service, history *conversation.Log, listen, metricsListen string) *Service {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
	})

	service := &Service{
		app:           app,
		pipeline:      pipelineSvc,
		history:       history,
		listen:        listen,
		metricsListen: metricsListen,
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post("/api/message", service.handleMessage)

	return service
}

func (s *Service) handleMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and message are required")
	}

	ctx := c.UserContext()
	start := time.Now()

	if err := s.history.Append(ctx, req.UserID, conversation.SpeakerUser, req.Message); err != nil {
		slog.Warn("Failed to log user turn", "error", err)
	}

	result := s.pipeline.Handle(ctx, req.UserID, req.Message)

	if err := s.history.Append(ctx, req.UserID, conversation.SpeakerAssistant, result.Response); err != nil {
		slog.Warn("Failed to log assistant turn", "error", err)
	}

	executed := make([]executedAction, 0, len(result.ActionsExecuted))
	for _, action := range result.ActionsExecuted {
		executed = append(executed, executedAction{
			Domain: string(action.Action.Domain),
			Action: action.Action.Name,
			OK:     action.Err == nil,
		})
	}

	slog.Info("Message handled",
		"user_id", req.UserID,
		"route", result.Route.Type,
		"actions", len(executed),
		"duration", time.Since(start))

	return c.JSON(messageResponse{
		Response:             result.Response,
		AwaitingConfirmation: result.AwaitingConfirmation,
		ActionsExecuted:      executed,
	})
}

// Run serves the API until ctx is cancelled. The metrics endpoint lives on
// its own listener so it is never exposed alongside the API.
func (s *Service) Run(ctx context.Context) error {
	if s.metricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())

			if err := http.ListenAndServe(s.metricsListen, mux); err != nil {
				slog.Error("Metrics listener failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()

		if err := s.app.Shutdown(); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("API listening", "addr", s.listen)

	if err := s.app.Listen(s.listen); err != nil {
		return oops.Wrapf(err, "server failed")
	}

	return nil
}
