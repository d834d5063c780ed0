package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gas-assistant/internal/agents"
	"gas-assistant/internal/chromemdb"
	"gas-assistant/internal/config"
	"gas-assistant/internal/db"
	"gas-assistant/internal/docstore"
	"gas-assistant/internal/embedding"
	"gas-assistant/internal/ingest"
	"gas-assistant/internal/llmservice"
	"gas-assistant/internal/models"
	"gas-assistant/internal/orchestrator"
	"gas-assistant/internal/parser"
	"gas-assistant/internal/rag"
	"gas-assistant/internal/router"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

// App holds the long-lived components built from the configuration.
type App struct {
	Config   *config.Config
	Pipeline *ingest.Pipeline
	Search   *rag.Service

	// Vectors is set when the chromem backend is used.
	Vectors *chromemdb.VectorDBManager

	db    *bun.DB
	graph func() (*orchestrator.Graph, error)
}

// New wires storage, the similarity index and the ingestion pipeline. The
// agent graph is built on first use by Graph. A missing embedding model
// leaves the index unset: ingestion then stores records unindexed and
// search returns nothing.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	var store docstore.Store
	switch cfg.Storage.Backend {
	case "json":
		store = docstore.NewJSONStore(cfg.Storage.DocumentIndexPath)
	case "postgres":
		bdb, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		store = db.NewDocumentStore(bdb)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var index rag.Index
	embedder, err := embedding.NewEmbedder(cfg.EmbedLLM)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding model unavailable, documents will not be indexed")
	} else {
		switch cfg.Index.Backend {
		case "chromem":
			m, err := chromemdb.NewVectorDBManager(cfg.RAG, embedding.ChromemFunc(embedder))
			if err != nil {
				return nil, fmt.Errorf("open vector db: %w", err)
			}
			a.Vectors = m
			index = m
		case "pgvector":
			bdb, err := a.database(ctx)
			if err != nil {
				return nil, err
			}
			index = db.NewVectorIndex(bdb, embedder)
		default:
			return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
		}
	}

	a.Pipeline = ingest.New(store, index,
		parser.NewExtractor(cfg.Office),
		parser.NewSplitter(cfg.RAG.ChunkSize, *cfg.RAG.ChunkOverlap),
		cfg.Storage.UploadDir,
	)
	a.Search = rag.NewService(index, cfg.RAG.SearchLimit)
	a.graph = sync.OnceValues(func() (*orchestrator.Graph, error) {
		return BuildGraph(cfg, a.Search)
	})
	return a, nil
}

// database opens Postgres once and creates the schema.
func (a *App) database(ctx context.Context) (*bun.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	sqldb, err := db.ConnectDB(&a.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	bdb := db.NewDB(sqldb, a.Config.Database.Debug)
	if err := db.InitDB(ctx, bdb, a.Config.Database.VectorSize); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.db = bdb
	return bdb, nil
}

// Graph returns the agent graph, building it on the first call.
func (a *App) Graph() (*orchestrator.Graph, error) {
	return a.graph()
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// BuildGraph creates one model client per agent and assembles the
// router, the four responders and the fallback model.
func BuildGraph(cfg *config.Config, search agents.Searcher) (*orchestrator.Graph, error) {
	client := func(model, name string, temperature float64) (*llmservice.Client, error) {
		return llmservice.FromConfig(cfg.LLM, model, name, temperature)
	}

	var errs []error
	routerLLM, err := client(cfg.Models.QA, "router", models.TemperatureRouter)
	errs = append(errs, err)
	expertLLM, err := client(cfg.Models.GazExpert, "gaz_expert", models.TemperatureGazExpert)
	errs = append(errs, err)
	watchLLM, err := client(cfg.Models.Veille, "veille", models.TemperatureVeille)
	errs = append(errs, err)
	vizLLM, err := client(cfg.Models.Visualization, "visualization", models.TemperatureVisualization)
	errs = append(errs, err)
	qaLLM, err := client(cfg.Models.QA, "qa", models.TemperatureQA)
	errs = append(errs, err)
	fallbackLLM, err := client(cfg.Models.QA, "fallback", models.TemperatureFallback)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", orchestrator.ErrGraphInit, err)
	}

	web, err := agents.NewWebSearch(cfg.Search.SerpAPIKey)
	if err != nil {
		log.Warn().Err(err).Msg("Web search unavailable")
	}

	expert := agents.NewExpert(expertLLM, search, cfg.RAG.ExpertContextLimit)
	watch := agents.NewWatch(watchLLM, web)
	viz := agents.NewVisualization(vizLLM)
	qa := agents.NewQA(qaLLM, cfg.Agent.MaxIterations, expert.Tools(), watch.Tools())

	return orchestrator.New(router.New(routerLLM), map[router.Category]agents.Responder{
		router.DomainExpert:  expert,
		router.Watch:         watch,
		router.Visualization: viz,
		router.QA:            qa,
	}, fallbackLLM)
}
