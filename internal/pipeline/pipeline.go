// Package pipeline is the invocation surface used by the HTTP API and the CLI:
// per-claim and batch decay, adversarial retrieval, similarity search, the
// vulnerability queue, graph queries and ingest.
package pipeline

import (
	"context"
	"time"

	"github.com/ppiankov/antibody/internal/contradict"
	"github.com/ppiankov/antibody/internal/decay"
	"github.com/ppiankov/antibody/internal/embed"
	"github.com/ppiankov/antibody/internal/extract"
	"github.com/ppiankov/antibody/internal/graph"
	"github.com/ppiankov/antibody/internal/llm"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/retrieve"
	"github.com/ppiankov/antibody/internal/score"
	"github.com/ppiankov/antibody/internal/store"
	"github.com/ppiankov/antibody/internal/validate"
)

const (
	// maxPageSize bounds vulnerable listings and the triage queue
	maxPageSize = 100
	// maxBatchSize bounds batch decay and retrieval
	maxBatchSize = 1000
)

// GraphStore is the graph surface the pipeline reads and writes
type GraphStore interface {
	graph.Store
	Ping(ctx context.Context) error
	CreateClaim(ctx context.Context, c model.Claim) error
	DeleteClaim(ctx context.Context, id string) error
	CreateSupportEdge(ctx context.Context, from, to string, weight float64) error
	UpdateDecay(ctx context.Context, id string, score float64, halfLifeDays int) error
	IncrementContradictionCount(ctx context.Context, id string) error
	ListVulnerable(ctx context.Context, limit, offset int) ([]model.VulnerabilityRecord, error)
	CountVulnerable(ctx context.Context) (int, error)
	MutableClaimIDs(ctx context.Context) ([]string, error)
	CountClaims(ctx context.Context) (int, error)
	UpsertArticle(ctx context.Context, a model.Article) (model.Article, error)
	ClaimsByArticle(ctx context.Context, articleID string) ([]model.Claim, error)
}

// VectorStore is the similarity surface the pipeline needs
type VectorStore interface {
	retrieve.Vectors
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, collection, claimID string, vector []float32, language string, metadata map[string]any) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimensions int) error
	Info(ctx context.Context, name string) (*store.CollectionInfo, error)
}

// Deps are the collaborators of a Service. Trends, LLM and Fetcher are optional.
type Deps struct {
	Graph    GraphStore
	Vectors  VectorStore
	Embedder embed.Embedder
	Trends   decay.TrendProvider
	LLM      llm.Provider
	Fetcher  *Fetcher
}

// Service wires the scoring engine and the retrieval pipeline to the stores
type Service struct {
	cfg        model.Config
	graph      GraphStore
	vectors    VectorStore
	embedder   embed.Embedder
	llm        llm.Provider
	fetcher    *Fetcher
	forecaster *decay.Forecaster
	analyzer   *graph.Analyzer
	scorer     *score.Scorer
	retriever  *retrieve.Retriever
	extractor  *extract.ClaimExtractor
	now        func() time.Time
}

// New creates a Service. When LLM is set and retrieval.assessor is "llm", contradiction
// assessment is delegated to the model with the heuristic as fallback.
func New(cfg model.Config, deps Deps) *Service {
	var assessor contradict.Assessor = contradict.NewHeuristic()
	if deps.LLM != nil && cfg.Retrieval.Assessor == "llm" {
		assessor = contradict.NewModelAssessor(deps.LLM, assessor, time.Duration(cfg.LLM.Timeout)*time.Second)
	}

	return &Service{
		cfg:        cfg,
		graph:      deps.Graph,
		vectors:    deps.Vectors,
		embedder:   deps.Embedder,
		llm:        deps.LLM,
		fetcher:    deps.Fetcher,
		forecaster: decay.NewForecaster(decay.ConfigFromModel(cfg.Decay, cfg.Timeouts.Trend), deps.Trends),
		analyzer:   graph.NewAnalyzer(deps.Graph, cfg.Timeouts.Graph),
		scorer:     score.NewScorer(),
		retriever: retrieve.NewRetriever(retrieve.ConfigFromModel(cfg), deps.Graph, deps.Vectors, deps.Embedder,
			assessor, validate.NewAuthorityClassifier(&cfg.Authority)),
		extractor: extract.NewClaimExtractor(),
		now:       time.Now,
	}
}

// Health reports whether the stores answer
func (s *Service) Health(ctx context.Context) map[string]string {
	status := map[string]string{"graph": "ok", "vectors": "ok"}

	gctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()
	if err := s.graph.Ping(gctx); err != nil {
		status["graph"] = err.Error()
	}

	vctx, vcancel := bound(ctx, s.cfg.Timeouts.Vector)
	defer vcancel()
	if err := s.vectors.Ping(vctx); err != nil {
		status["vectors"] = err.Error()
	}
	return status
}

// EnsureCollection creates the claim vector collection if it is missing
func (s *Service) EnsureCollection(ctx context.Context) error {
	ctx, cancel := bound(ctx, s.cfg.Timeouts.Vector)
	defer cancel()

	exists, err := s.vectors.CollectionExists(ctx, s.cfg.Store.Collection)
	if err != nil {
		return model.External("vector store", err)
	}
	if exists {
		return nil
	}

	dim := s.cfg.Embedding.Dimension
	if s.embedder != nil && s.embedder.Dimensions() > 0 {
		dim = s.embedder.Dimensions()
	}
	if err := s.vectors.CreateCollection(ctx, s.cfg.Store.Collection, dim); err != nil {
		return model.External("vector store", err)
	}
	return nil
}

// getClaim returns the claim or a NotFound error
func (s *Service) getClaim(ctx context.Context, id string) (*model.Claim, error) {
	if id == "" {
		return nil, model.Invalid("claim id is required")
	}

	ctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()

	c, err := s.graph.GetClaim(ctx, id)
	if err != nil {
		return nil, model.External("graph store", err)
	}
	if c == nil {
		return nil, model.NotFound("claim", id)
	}
	return c, nil
}

// preflight fails a whole batch when the graph store cannot be reached
func (s *Service) preflight(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return model.Invalid("claim_ids must not be empty")
	}
	if len(ids) > maxBatchSize {
		return model.Invalid("batch of %d exceeds the limit of %d", len(ids), maxBatchSize)
	}

	ctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()
	if err := s.graph.Ping(ctx); err != nil {
		return model.External("graph store", err)
	}
	return nil
}

func validatePage(limit, offset int) error {
	if limit <= 0 || limit > maxPageSize {
		return model.Invalid("limit must be between 1 and %d", maxPageSize)
	}
	if offset < 0 {
		return model.Invalid("offset must not be negative")
	}
	return nil
}

func bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
