package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ppiankov/antibody/internal/embed"
	"github.com/ppiankov/antibody/internal/logging"
	"github.com/ppiankov/antibody/internal/model"
)

// ClaimInput is a claim to add to the graph
type ClaimInput struct {
	Text        string `json:"text"`
	SourceURL   string `json:"source_url"`
	ArticleID   string `json:"article_id"`
	Language    string `json:"language"`
	IsImmutable bool   `json:"is_immutable"`
}

// EdgeInput is a SUPPORTS edge to add. A zero weight means the default.
type EdgeInput struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// ArticleInput is an article to ingest. When HTML is empty the URL is fetched.
type ArticleInput struct {
	URL      string `json:"url"`
	HTML     string `json:"html,omitempty"`
	Language string `json:"language,omitempty"`
}

// ArticleResult is an ingested article and the claims created from it
type ArticleResult struct {
	Article model.Article `json:"article"`
	Claims  []model.Claim `json:"claims"`
	// Skipped counts candidates the article already had a claim for
	Skipped int `json:"skipped"`
}

// IngestClaim creates a claim with decay 0 and a mutability half-life, embeds it in
// document mode and indexes the vector.
func (s *Service) IngestClaim(ctx context.Context, in ClaimInput) (*model.Claim, error) {
	c, err := s.newClaim(in)
	if err != nil {
		return nil, err
	}

	vecs, err := s.embedDocuments(ctx, []string{c.Text})
	if err != nil {
		return nil, err
	}
	if err := s.storeClaim(ctx, c, vecs[0]); err != nil {
		return nil, err
	}

	logging.Info("claim ingested", "id", c.ID, "immutable", c.IsImmutable)
	return &c, nil
}

// IngestEdge records that in.From supports in.To
func (s *Service) IngestEdge(ctx context.Context, in EdgeInput) (*model.SupportEdge, error) {
	if in.From == "" || in.To == "" {
		return nil, model.Invalid("from and to are required")
	}
	if in.Weight == 0 {
		in.Weight = model.DefaultEdgeWeight
	}
	if in.Weight < 0 {
		return nil, model.Invalid("weight must be positive, got %g", in.Weight)
	}

	ctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()
	if err := s.graph.CreateSupportEdge(ctx, in.From, in.To, in.Weight); err != nil {
		return nil, model.External("graph store", err)
	}
	return &model.SupportEdge{From: in.From, To: in.To, Weight: in.Weight}, nil
}

// IngestArticle extracts candidate claims from an article and ingests each of them.
// Re-ingesting a URL reuses its article record, and a candidate whose text already
// exists as a claim of that article is skipped rather than stored again.
func (s *Service) IngestArticle(ctx context.Context, in ArticleInput) (*ArticleResult, error) {
	if strings.TrimSpace(in.URL) == "" {
		return nil, model.Invalid("url is required")
	}

	body := in.HTML
	if body == "" {
		if s.fetcher == nil {
			return nil, model.Invalid("html is required when fetching is disabled")
		}
		fetched, err := s.fetcher.FetchWithRetry(ctx, in.URL)
		if err != nil {
			return nil, model.External("fetch article", err)
		}
		body = fetched.HTML
	}

	doc, err := s.extractor.Extract(body, in.URL)
	if err != nil {
		return nil, model.Invalid("parse article: %v", err)
	}
	language := in.Language
	if language == "" {
		language = doc.Language
	}

	actx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	article, err := s.graph.UpsertArticle(actx, model.Article{
		ID:        uuid.NewString(),
		URL:       in.URL,
		Title:     doc.Title,
		Language:  language,
		FetchedAt: s.now().UTC(),
	})
	cancel()
	if err != nil {
		return nil, model.External("graph store", err)
	}

	result := &ArticleResult{Article: article, Claims: []model.Claim{}}
	if len(doc.Candidates) == 0 {
		return result, nil
	}

	seen, err := s.articleClaimTexts(ctx, article.ID)
	if err != nil {
		return nil, err
	}

	claims := make([]model.Claim, 0, len(doc.Candidates))
	texts := make([]string, 0, len(doc.Candidates))
	for _, cand := range doc.Candidates {
		text := strings.TrimSpace(cand.Text)
		if seen[text] {
			result.Skipped++
			continue
		}
		seen[text] = true

		c, err := s.newClaim(ClaimInput{
			Text:        cand.Text,
			SourceURL:   in.URL,
			ArticleID:   article.ID,
			Language:    language,
			IsImmutable: cand.Immutable,
		})
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
		texts = append(texts, c.Text)
	}
	if len(claims) == 0 {
		logging.Info("article unchanged", "url", in.URL, "article", article.ID, "skipped", result.Skipped)
		return result, nil
	}

	vecs, err := s.embedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, c := range claims {
		if err := s.storeClaim(ctx, c, vecs[i]); err != nil {
			return nil, err
		}
	}
	result.Claims = claims

	logging.Info("article ingested", "url", in.URL, "article", article.ID, "claims", len(claims), "skipped", result.Skipped)
	return result, nil
}

// articleClaimTexts returns the set of claim texts already stored for an article
func (s *Service) articleClaimTexts(ctx context.Context, articleID string) (map[string]bool, error) {
	ctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	defer cancel()

	existing, err := s.graph.ClaimsByArticle(ctx, articleID)
	if err != nil {
		return nil, model.External("graph store", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[strings.TrimSpace(c.Text)] = true
	}
	return seen, nil
}

func (s *Service) newClaim(in ClaimInput) (model.Claim, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return model.Claim{}, model.Invalid("claim text is required")
	}

	halfLife := s.cfg.Decay.MutableHalfLifeDays
	if in.IsImmutable {
		halfLife = s.cfg.Decay.ImmutableHalfLifeDays
	}
	language := in.Language
	if language == "" {
		language = "en"
	}

	return model.Claim{
		ID:           uuid.NewString(),
		Text:         text,
		SourceURL:    in.SourceURL,
		ArticleID:    in.ArticleID,
		Language:     language,
		ExtractedAt:  s.now().UTC(),
		DecayScore:   0,
		HalfLifeDays: halfLife,
		IsImmutable:  in.IsImmutable,
	}, nil
}

func (s *Service) embedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := bound(ctx, s.cfg.Timeouts.Embedding)
	defer cancel()

	vecs, err := s.embedder.EmbedBatch(ctx, texts, embed.ModeDocument)
	if err != nil {
		return nil, model.External("embedding provider", err)
	}
	if len(vecs) != len(texts) {
		return nil, model.External("embedding provider", fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}
	return vecs, nil
}

// storeClaim writes the claim to the graph, then its vector to the index. A failed
// vector write removes the graph row again so a retry does not leave a duplicate.
func (s *Service) storeClaim(ctx context.Context, c model.Claim, vec []float32) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	gctx, cancel := bound(ctx, s.cfg.Timeouts.Graph)
	err := s.graph.CreateClaim(gctx, c)
	cancel()
	if err != nil {
		return model.External("graph store", err)
	}

	vctx, vcancel := bound(ctx, s.cfg.Timeouts.Vector)
	defer vcancel()
	metadata := map[string]any{
		"article_id":   c.ArticleID,
		"source_url":   c.SourceURL,
		"is_immutable": c.IsImmutable,
	}
	if err := s.vectors.Upsert(vctx, s.cfg.Store.Collection, c.ID, vec, c.Language, metadata); err != nil {
		s.rollbackClaim(ctx, c.ID)
		return model.External("vector store", err)
	}
	return nil
}

func (s *Service) rollbackClaim(ctx context.Context, id string) {
	// The caller's ctx may be the reason the upsert failed
	ctx, cancel := bound(context.WithoutCancel(ctx), s.cfg.Timeouts.Graph)
	defer cancel()

	if err := s.graph.DeleteClaim(ctx, id); err != nil {
		logging.Error("claim left without a vector", "claim", id, "err", err)
	}
}
