// Package app builds the stores and collaborators both binaries share from
// a loaded configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"meeting-continuity/internal/config"
	"meeting-continuity/internal/db"
	"meeting-continuity/pkg/journal"
	"meeting-continuity/pkg/llm"
	"meeting-continuity/pkg/session"
	"meeting-continuity/pkg/task"
)

// Stores holds one store per table, all on the configured driver.
type Stores struct {
	Sessions session.Store
	Tasks    task.Store
	Journal  journal.Store

	close func()
}

// Close releases the underlying database connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to the configured database and makes sure every
// table exists.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var s *Stores
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s = &Stores{
			Sessions: session.NewPgStore(pool),
			Tasks:    task.NewPgStore(pool),
			Journal:  journal.NewPgStore(pool),
			close:    pool.Close,
		}
	case config.DriverSQLite:
		gdb, err := db.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		s = &Stores{
			Sessions: session.NewGormStore(gdb),
			Tasks:    task.NewGormStore(gdb),
			Journal:  journal.NewGormStore(gdb),
			close: func() {
				if err := db.CloseSQLite(gdb); err != nil {
					log.Printf("app: close sqlite: %v", err)
				}
			},
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := s.Sessions.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure sessions table: %w", err)
	}
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Journal.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure journal table: %w", err)
	}
	return s, nil
}

// NewGenerator returns the configured text generator, bounded by the
// configured timeout.
func NewGenerator(cfg *config.Config) (llm.Generator, error) {
	var gen llm.Generator
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		gen = llm.NewOpenAI(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model),
		)
	case config.ProviderClaude:
		gen = &llm.Claude{WorkDir: cfg.LLM.WorkDir}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	return llm.WithTimeout(gen, cfg.LLM.Timeout), nil
}
