package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/antibody/internal/decay"
	"github.com/ppiankov/antibody/internal/embed"
	"github.com/ppiankov/antibody/internal/llm"
	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/pipeline"
	"github.com/ppiankov/antibody/internal/store"
	"github.com/ppiankov/antibody/internal/trend"
	"github.com/ppiankov/antibody/internal/triage"
)

// app holds the opened stores and the services built on them
type app struct {
	cfg     model.Config
	graph   *store.GraphStore
	vectors *store.VectorStore
	log     *triage.Store // nil unless opened with the triage log
	svc     *pipeline.Service
	triage  *triage.Service
}

// openApp loads the configuration and wires every collaborator. The triage log
// is a single-writer bbolt file, so only commands that need it open it.
func openApp(ctx context.Context, withTriage bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if a.graph, err = store.OpenGraph(cfg.Store.GraphPath); err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	if a.vectors, err = store.OpenVectors(cfg.Store.VectorPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	cacheDir := ""
	if cfg.Embedding.CacheEnabled {
		cacheDir = cfg.Embedding.CacheDir
	}
	embedder, err := embed.New(embed.ConfigFromModel(cfg), cacheDir, cfg.Embedding.CacheTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	// A nil interface disables trend checks; never store a typed nil here
	var trends decay.TrendProvider
	if cfg.Trend.Enabled {
		feed, err := trend.NewFeedProvider(trend.FeedConfigFromModel(cfg))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create trend provider: %w", err)
		}
		trends = trend.NewCachedProvider(feed, cfg.Trend.CacheTTL)
	}

	fetcher := pipeline.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		true, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)

	a.svc = pipeline.New(cfg, pipeline.Deps{
		Graph:    a.graph,
		Vectors:  a.vectors,
		Embedder: embedder,
		Trends:   trends,
		LLM:      provider,
		Fetcher:  fetcher,
	})

	if err := a.svc.EnsureCollection(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if withTriage {
		if a.log, err = triage.OpenStore(cfg.Store.RemediationPath); err != nil {
			a.Close()
			return nil, fmt.Errorf("open triage log: %w", err)
		}
		a.triage = triage.NewService(a.log, a.graph, a.svc, cfg.Timeouts.Graph)
	}

	logging.Debug("stores opened",
		"graph", cfg.Store.GraphPath,
		"vectors", cfg.Store.VectorPath,
		"embedder", embedder.Model(),
		"llm", cfg.LLM.Provider,
		"trends", cfg.Trend.Enabled)
	return a, nil
}

// Close releases every opened store
func (a *app) Close() {
	if a.log != nil {
		if err := a.log.Close(); err != nil {
			logging.Warn("close triage log", "err", err)
		}
	}
	if a.vectors != nil {
		if err := a.vectors.Close(); err != nil {
			logging.Warn("close vector store", "err", err)
		}
	}
	if a.graph != nil {
		if err := a.graph.Close(); err != nil {
			logging.Warn("close graph store", "err", err)
		}
	}
}
