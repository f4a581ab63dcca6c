package main

import (
	"context"
	"donna/app/config"
	"donna/app/observability"
	"donna/app/server"
	"donna/app/service/calendar"
	"donna/app/service/confirm"
	"donna/app/service/conversation"
	"donna/app/service/email"
	"donna/app/service/embedding"
	"donna/app/service/fetcher"
	"donna/app/service/memory"
	"donna/app/service/notes"
	"donna/app/service/pipeline"
	"donna/app/service/planner"
	"donna/app/service/respond"
	"donna/app/service/router"
	"donna/app/service/tasks"
	"donna/app/service/websearch"
	"donna/app/storage/recordstore"
	"donna/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"github.com/samber/do"
)

func main() {
	_ = godotenv.Load()

	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	store, err := recordstore.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	do.ProvideValue[recordstore.Store](di, store)

	// external providers are out of scope here; swap these for real
	// integrations when wiring Gmail / Google Calendar / Keep
	do.ProvideValue[calendar.Provider](di, calendar.Unconfigured{})
	do.ProvideValue[email.Provider](di, email.Unconfigured{})
	do.ProvideValue[notes.Provider](di, notes.Unconfigured{})

	do.Provide(di, observability.New)
	do.Provide(di, embedding.New)
	do.Provide(di, conversation.New)
	do.Provide(di, memory.New)
	do.Provide(di, tasks.New)
	do.Provide(di, calendar.New)
	do.Provide(di, email.New)
	do.Provide(di, notes.New)
	do.Provide(di, websearch.New)
	do.Provide(di, router.New)
	do.Provide(di, fetcher.New)
	do.Provide(di, planner.New)
	do.Provide(di, confirm.New)
	do.Provide(di, respond.New)
	do.Provide(di, pipeline.NewExecutorFromDI)
	do.Provide(di, pipeline.New)
	do.Provide(di, server.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	if err = do.MustInvoke[*server.Service](di).Run(appCtx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
