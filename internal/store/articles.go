package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

// UpsertArticle stores an article, keyed by URL. The stored ID wins on conflict.
func (s *GraphStore) UpsertArticle(ctx context.Context, a model.Article) (model.Article, error) {
	if a.FetchedAt.IsZero() {
		a.FetchedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (id, url, title, language, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET title = excluded.title, language = excluded.language, fetched_at = excluded.fetched_at
	`, a.ID, a.URL, a.Title, a.Language, a.FetchedAt.UnixMilli())
	if err != nil {
		return model.Article{}, fmt.Errorf("upsert article: %w", err)
	}

	stored, err := s.ArticleByURL(ctx, a.URL)
	if err != nil {
		return model.Article{}, err
	}
	return *stored, nil
}

// ArticleByURL returns the article for url, or nil when unknown
func (s *GraphStore) ArticleByURL(ctx context.Context, url string) (*model.Article, error) {
	var a model.Article
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT id, url, title, language, fetched_at FROM articles WHERE url = ?`, url).
		Scan(&a.ID, &a.URL, &a.Title, &a.Language, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	a.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return &a, nil
}

// ClaimsByArticle returns an article's claims ordered by extraction time
func (s *GraphStore) ClaimsByArticle(ctx context.Context, articleID string) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE article_id = ? ORDER BY extracted_at, id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("claims by article: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectClaims(rows)
}
