// Package retrieve searches the vector index for sources that contradict a claim.
package retrieve

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/antibody/internal/contradict"
	"github.com/ppiankov/antibody/internal/embed"
	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/store"
	"github.com/ppiankov/antibody/internal/validate"
)

// Graph is the part of the graph store retrieval reads and writes
type Graph interface {
	GetClaim(ctx context.Context, id string) (*model.Claim, error)
	IncrementContradictionCount(ctx context.Context, id string) error
}

// Vectors is the similarity surface
type Vectors interface {
	Search(ctx context.Context, collection string, query []float32, limit int, threshold float64, filter store.SearchFilter) ([]store.Hit, error)
}

// Config holds retrieval tunables
type Config struct {
	Collection          string
	DefaultLanguages    []string
	SimilarityThreshold float64 // contradiction candidates
	SimilarThreshold    float64 // similarity search
	CandidateLimit      int
	MaxResults          int
	Concurrency         int

	GraphTimeout     time.Duration
	VectorTimeout    time.Duration
	EmbeddingTimeout time.Duration
}

// DefaultConfig returns the defaults used by DefaultConfig in model
func DefaultConfig() Config {
	return ConfigFromModel(model.DefaultConfig())
}

// ConfigFromModel converts the file/env configuration
func ConfigFromModel(cfg model.Config) Config {
	return Config{
		Collection:          cfg.Store.Collection,
		DefaultLanguages:    cfg.Retrieval.DefaultLanguages,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		SimilarThreshold:    cfg.Retrieval.SimilarThreshold,
		CandidateLimit:      cfg.Retrieval.CandidateLimit,
		MaxResults:          cfg.Retrieval.MaxResults,
		Concurrency:         cfg.Retrieval.Concurrency,
		GraphTimeout:        cfg.Timeouts.Graph,
		VectorTimeout:       cfg.Timeouts.Vector,
		EmbeddingTimeout:    cfg.Timeouts.Embedding,
	}
}

// Retriever runs adversarial retrieval and similarity search
type Retriever struct {
	graph     Graph
	vectors   Vectors
	embedder  embed.Embedder
	assessor  contradict.Assessor
	authority *validate.AuthorityClassifier
	cfg       Config
	now       func() time.Time
}

// NewRetriever wires the collaborators. A nil assessor uses the heuristic;
// a nil authority classifier leaves source tiers unknown.
func NewRetriever(cfg Config, graph Graph, vectors Vectors, embedder embed.Embedder,
	assessor contradict.Assessor, authority *validate.AuthorityClassifier) *Retriever {
	if assessor == nil {
		assessor = contradict.NewHeuristic()
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = cfg.CandidateLimit
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	return &Retriever{
		graph:     graph,
		vectors:   vectors,
		embedder:  embedder,
		assessor:  assessor,
		authority: authority,
		cfg:       cfg,
		now:       time.Now,
	}
}

// FindContradicting searches for claims that contradict claimText and increments the
// original claim's contradiction counter once per returned source.
//
// The index cannot OR language filters, so languages are applied to the candidates
// after the vector search rather than inside it.
func (r *Retriever) FindContradicting(ctx context.Context, claimID, claimText string, languages []string, maxResults int) ([]model.ContradictingSource, error) {
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}
	langs := r.languages(languages)

	vec, err := r.embed(ctx, claimText, embed.ModeDocument)
	if err != nil {
		return nil, err
	}

	hits, err := r.search(ctx, vec, r.cfg.CandidateLimit, r.cfg.SimilarityThreshold, store.SearchFilter{ExcludeID: claimID})
	if err != nil {
		return nil, err
	}

	candidates := r.assess(ctx, claimText, hits)
	if err := candidates.err; err != nil {
		return nil, err
	}

	retrievedAt := r.now().UTC()
	sources := make([]model.ContradictingSource, 0, maxResults)
	for i, c := range candidates.claims {
		if len(sources) >= maxResults {
			break
		}
		if c == nil || !candidates.contradicts[i] || !langs[c.Language] {
			continue
		}
		sources = append(sources, model.ContradictingSource{
			ClaimID:     c.ID,
			URL:         c.SourceURL,
			Text:        c.Text,
			Language:    c.Language,
			Confidence:  hits[i].Score,
			RetrievedAt: retrievedAt,
		})
	}

	if r.authority != nil {
		r.authority.Annotate(sources)
	}

	// One increment per source, in order
	for range sources {
		if err := r.increment(ctx, claimID); err != nil {
			return nil, err
		}
	}

	logging.Debug("adversarial retrieval", "claim", claimID, "candidates", len(hits), "contradictions", len(sources))
	return sources, nil
}

type assessed struct {
	claims      []*model.Claim
	contradicts []bool
	err         error
}

// assess fetches and judges every candidate concurrently; results stay in hit order
func (r *Retriever) assess(ctx context.Context, claimText string, hits []store.Hit) assessed {
	out := assessed{
		claims:      make([]*model.Claim, len(hits)),
		contradicts: make([]bool, len(hits)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, hit := range hits {
		g.Go(func() error {
			c, err := r.getClaim(gctx, hit.ClaimID)
			if err != nil {
				return err
			}
			if c == nil {
				// Vector index may be ahead of the graph
				return nil
			}
			ok, err := r.contradicts(gctx, claimText, c.Text)
			if err != nil {
				return err
			}
			out.claims[i] = c
			out.contradicts[i] = ok
			return nil
		})
	}
	out.err = g.Wait()
	if out.err == nil && ctx.Err() != nil {
		out.err = model.External("contradiction assessment", ctx.Err())
	}
	return out
}

func (r *Retriever) contradicts(ctx context.Context, a, b string) (bool, error) {
	if ca, ok := r.assessor.(contradict.ContextAssessor); ok {
		hit, err := ca.ContradictsContext(ctx, a, b)
		if err != nil {
			return false, model.External("contradiction assessment", err)
		}
		return hit, nil
	}
	return r.assessor.Contradicts(a, b), nil
}

// SearchSimilar finds stored claims similar to query. Language, when set, is an exact
// filter applied by the index before scoring.
func (r *Retriever) SearchSimilar(ctx context.Context, query, language string, maxResults int) ([]model.SimilarClaim, error) {
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}

	vec, err := r.embed(ctx, query, embed.ModeQuery)
	if err != nil {
		return nil, err
	}

	hits, err := r.search(ctx, vec, maxResults, r.cfg.SimilarThreshold, store.SearchFilter{Language: language})
	if err != nil {
		return nil, err
	}

	results := make([]model.SimilarClaim, 0, len(hits))
	for _, hit := range hits {
		c, err := r.getClaim(ctx, hit.ClaimID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		results = append(results, model.SimilarClaim{
			Claim:    *c,
			Score:    hit.Score,
			Metadata: hit.Metadata,
		})
	}
	return results, nil
}

func (r *Retriever) languages(requested []string) map[string]bool {
	if len(requested) == 0 {
		requested = r.cfg.DefaultLanguages
	}
	set := make(map[string]bool, len(requested))
	for _, l := range requested {
		set[l] = true
	}
	return set
}

func (r *Retriever) embed(ctx context.Context, text string, mode embed.Mode) ([]float32, error) {
	ctx, cancel := bound(ctx, r.cfg.EmbeddingTimeout)
	defer cancel()

	vec, err := r.embedder.Embed(ctx, text, mode)
	if err != nil {
		return nil, model.External("embedding provider", err)
	}
	return vec, nil
}

func (r *Retriever) search(ctx context.Context, vec []float32, limit int, threshold float64, filter store.SearchFilter) ([]store.Hit, error) {
	ctx, cancel := bound(ctx, r.cfg.VectorTimeout)
	defer cancel()

	hits, err := r.vectors.Search(ctx, r.cfg.Collection, vec, limit, threshold, filter)
	if err != nil {
		return nil, model.External("vector store", err)
	}
	return hits, nil
}

func (r *Retriever) getClaim(ctx context.Context, id string) (*model.Claim, error) {
	ctx, cancel := bound(ctx, r.cfg.GraphTimeout)
	defer cancel()

	c, err := r.graph.GetClaim(ctx, id)
	if err != nil {
		return nil, model.External("graph store", err)
	}
	return c, nil
}

func (r *Retriever) increment(ctx context.Context, id string) error {
	ctx, cancel := bound(ctx, r.cfg.GraphTimeout)
	defer cancel()

	if err := r.graph.IncrementContradictionCount(ctx, id); err != nil {
		return model.External("graph store", err)
	}
	return nil
}

func bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
