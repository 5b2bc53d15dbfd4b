package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nephro-assistant/internal/config"
	"nephro-assistant/internal/core"
	"nephro-assistant/internal/db"
	"nephro-assistant/internal/llm"
	"nephro-assistant/internal/metrics"
	"nephro-assistant/internal/patients"
	"nephro-assistant/internal/retrieval"
	"nephro-assistant/internal/session"
	"nephro-assistant/internal/websearch"
)

// app holds the wired components shared by serve and chat.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	engine   *core.Orchestrator
	sessions session.Store
	index    *retrieval.Index
	conn     *sql.DB
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("close index", zap.Error(err))
		}
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(a.registry)

	var repo *db.Repository
	if cfg.NeedsDatabase() {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		conn, err := db.Open(pingCtx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.conn = conn
		if err := db.Migrate(ctx, conn); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		repo = db.NewRepository(conn)
	}

	var lookup core.PatientLookup
	switch cfg.Patients.Source {
	case "postgres":
		lookup = repo
	default:
		lookup = patients.NewJSONStore(cfg.Patients.Path)
	}
	if cfg.Patients.CacheSize > 0 {
		cached, err := patients.NewCachedLookup(lookup, cfg.Patients.CacheSize)
		if err != nil {
			a.Close()
			return nil, err
		}
		lookup = cached
	}

	index, err := openIndex(ctx, cfg.Retrieval, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.index = index

	web, err := websearch.New(websearch.Config{
		Provider: cfg.WebSearch.Provider,
		APIKey:   cfg.WebSearch.APIKey,
		GoogleCX: cfg.WebSearch.GoogleCX,
	}, &http.Client{Timeout: 20 * time.Second})
	if err != nil {
		// Clinical questions fall back to documents only.
		logger.Warn("web search disabled", zap.Error(err))
	}

	client := llm.NewOpenAIClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, recorder)
	model := client.Model()

	a.engine = core.NewOrchestrator(
		core.NewIdentityResolver(lookup, cfg.Phrases, logger, recorder),
		core.NewRouter(client, model, cfg.Phrases),
		core.NewReceptionist(client, model, cfg.Phrases),
		core.NewClinicalAssembler(core.ClinicalConfig{
			LLM:      client,
			Model:    model,
			Docs:     index,
			Web:      web,
			Phrases:  cfg.Phrases,
			TopK:     cfg.Retrieval.TopK,
			WebCount: cfg.WebSearch.ResultCount,
			Logger:   logger,
			Recorder: recorder,
		}),
		logger,
		recorder,
	)

	switch cfg.Session.Store {
	case "postgres":
		notifier := db.NewNotifier(a.conn, cfg.Database.NotifyChannel)
		a.sessions = db.NewSessionStore(repo, notifier, cfg.Session.DefaultAllowWeb)
	default:
		a.sessions = session.NewMemoryStore(cfg.Session.DefaultAllowWeb)
	}
	return a, nil
}

// openIndex opens the passage index, seeding an empty one from the
// configured passages file when present.
func openIndex(ctx context.Context, cfg config.RetrievalConfig, logger *zap.Logger) (*retrieval.Index, error) {
	index, err := retrieval.OpenOrCreate(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	count, err := index.Count()
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	if count > 0 || cfg.PassagesPath == "" {
		logger.Info("reference index ready", zap.String("path", cfg.IndexPath), zap.Uint64("passages", count))
		return index, nil
	}
	added, err := ingestFile(ctx, index, cfg.PassagesPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("reference index is empty and no passages file was found",
			zap.String("passages_path", cfg.PassagesPath))
		return index, nil
	}
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	logger.Info("reference index seeded", zap.String("path", cfg.IndexPath), zap.Int("passages", added))
	return index, nil
}

// ingestFile loads a JSONL passages file into index.
func ingestFile(ctx context.Context, index *retrieval.Index, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	passages, err := retrieval.LoadPassages(f)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	if err := index.Add(ctx, passages); err != nil {
		return 0, err
	}
	return len(passages), nil
}
