package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meeting-continuity/internal/api"
	"meeting-continuity/internal/app"
	"meeting-continuity/internal/config"
	"meeting-continuity/pkg/continuity"
	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/summary"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatalf("stores: %v", err)
	}
	defer stores.Close()

	gen, err := app.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("llm: %v", err)
	}

	bus := journal.NewBus(stores.Journal)
	engine := continuity.New(stores.Tasks, gen,
		continuity.WithJournal(bus),
		continuity.WithAnalysisConcurrency(cfg.Continuity.AnalysisConcurrency),
	)
	server := api.New(stores.Sessions, stores.Tasks, bus, engine, summary.New(gen))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		// Open event streams end with the process.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("meeting-continuity listening on :%s (store=%s, llm=%s)", cfg.Port, cfg.Store.Driver, cfg.LLM.Provider)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}
