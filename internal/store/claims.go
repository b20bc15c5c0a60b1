package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

// GraphStore is the claim dependency graph backed by SQLite
type GraphStore struct {
	db  *DB
	now func() time.Time
}

// OpenGraph opens the graph database at path
func OpenGraph(path string) (*GraphStore, error) {
	db, err := Open(path, graphSchema)
	if err != nil {
		return nil, err
	}
	return &GraphStore{db: db, now: time.Now}, nil
}

// OpenGraphMemory opens an in-memory graph for tests
func OpenGraphMemory() (*GraphStore, error) {
	db, err := OpenMemory(graphSchema)
	if err != nil {
		return nil, err
	}
	return &GraphStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database
func (s *GraphStore) Close() error {
	return s.db.Close()
}

// Ping verifies the graph database answers
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const claimColumns = `id, text, source_url, article_id, language, extracted_at,
	decay_score, half_life_days, is_immutable, contradiction_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*model.Claim, error) {
	var c model.Claim
	var extractedAt int64
	var immutable int
	if err := row.Scan(&c.ID, &c.Text, &c.SourceURL, &c.ArticleID, &c.Language, &extractedAt,
		&c.DecayScore, &c.HalfLifeDays, &immutable, &c.ContradictionCount); err != nil {
		return nil, err
	}
	c.ExtractedAt = time.UnixMilli(extractedAt).UTC()
	c.IsImmutable = immutable != 0
	return &c, nil
}

// GetClaim returns the claim, or nil and no error when it does not exist.
func (s *GraphStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// GetClaims returns the claims that exist among ids, in no particular order
func (s *GraphStore) GetClaims(ctx context.Context, ids []string) ([]model.Claim, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectClaims(rows)
}

func collectClaims(rows *sql.Rows) ([]model.Claim, error) {
	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// CreateClaim inserts a claim. Zero-valued decay fields get mutability defaults.
func (s *GraphStore) CreateClaim(ctx context.Context, c model.Claim) error {
	if c.ID == "" || strings.TrimSpace(c.Text) == "" {
		return model.Invalid("claim id and text are required")
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = 365
		if c.IsImmutable {
			c.HalfLifeDays = 3650
		}
	}
	if c.Language == "" {
		c.Language = "en"
	}
	now := s.now()
	if c.ExtractedAt.IsZero() {
		c.ExtractedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO claims (id, text, source_url, article_id, language, extracted_at,
			decay_score, half_life_days, is_immutable, contradiction_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Text, c.SourceURL, c.ArticleID, c.Language, c.ExtractedAt.UnixMilli(),
		c.DecayScore, c.HalfLifeDays, boolInt(c.IsImmutable), c.ContradictionCount,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isConstraint(err) {
			return model.Invalid("claim %s: %v", c.ID, err)
		}
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

// CreateSupportEdge records "from supports to". Re-creating an edge replaces its weight.
func (s *GraphStore) CreateSupportEdge(ctx context.Context, from, to string, weight float64) error {
	if weight <= 0 {
		return model.Invalid("edge weight must be positive, got %v", weight)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_edges (from_id, to_id, weight, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_id, to_id) DO UPDATE SET weight = excluded.weight
	`, from, to, weight, s.now().UnixMilli())
	if err != nil {
		if isConstraint(err) {
			return model.NotFound("claim", from+" or "+to)
		}
		return fmt.Errorf("create support edge: %w", err)
	}
	return nil
}

// UpdateDecay stores a new decay score and half-life
func (s *GraphStore) UpdateDecay(ctx context.Context, id string, score float64, halfLifeDays int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims SET decay_score = ?, half_life_days = ?, updated_at = ? WHERE id = ?
	`, score, halfLifeDays, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update decay: %w", err)
	}
	return requireRow(res, id)
}

// IncrementContradictionCount adds one atomically in SQL
func (s *GraphStore) IncrementContradictionCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims SET contradiction_count = contradiction_count + 1, updated_at = ? WHERE id = ?
	`, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("increment contradiction count: %w", err)
	}
	return requireRow(res, id)
}

// DeleteClaim removes a claim. Its support edges go with it.
func (s *GraphStore) DeleteClaim(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return requireRow(res, id)
}

// OutgoingEdges returns edges from id (claims id supports)
func (s *GraphStore) OutgoingEdges(ctx context.Context, id string) ([]model.SupportEdge, error) {
	return s.edges(ctx, `SELECT from_id, to_id, weight FROM support_edges WHERE from_id = ?`, id)
}

// IncomingEdges returns edges into id (claims that support id)
func (s *GraphStore) IncomingEdges(ctx context.Context, id string) ([]model.SupportEdge, error) {
	return s.edges(ctx, `SELECT from_id, to_id, weight FROM support_edges WHERE to_id = ?`, id)
}

func (s *GraphStore) edges(ctx context.Context, query, id string) ([]model.SupportEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []model.SupportEdge
	for rows.Next() {
		var e model.SupportEdge
		if err := rows.Scan(&e.From, &e.To, &e.Weight); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListVulnerable ranks mutable claims by decay * incoming weight * (contradictions + 1),
// descending, ties broken by claim ID.
func (s *GraphStore) ListVulnerable(ctx context.Context, limit, offset int) ([]model.VulnerabilityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.text, c.source_url, c.article_id, c.language, c.extracted_at,
			c.decay_score, c.half_life_days, c.is_immutable, c.contradiction_count,
			COALESCE(w.total, 0) AS weight,
			c.decay_score * COALESCE(w.total, 0) * (c.contradiction_count + 1) AS score
		FROM claims c
		LEFT JOIN (
			SELECT to_id, SUM(weight) AS total FROM support_edges GROUP BY to_id
		) w ON w.to_id = c.id
		WHERE c.is_immutable = 0
		ORDER BY score DESC, c.id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list vulnerable: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.VulnerabilityRecord
	for rows.Next() {
		var r model.VulnerabilityRecord
		var extractedAt int64
		var immutable int
		c := &r.Claim
		if err := rows.Scan(&c.ID, &c.Text, &c.SourceURL, &c.ArticleID, &c.Language, &extractedAt,
			&c.DecayScore, &c.HalfLifeDays, &immutable, &c.ContradictionCount,
			&r.DependencyWeight, &r.Score); err != nil {
			return nil, fmt.Errorf("scan vulnerable: %w", err)
		}
		c.ExtractedAt = time.UnixMilli(extractedAt).UTC()
		c.IsImmutable = immutable != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountVulnerable counts mutable claims, the population ListVulnerable ranks
func (s *GraphStore) CountVulnerable(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims WHERE is_immutable = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vulnerable: %w", err)
	}
	return n, nil
}

// MutableClaimIDs lists the IDs a periodic decay refresh should recompute
func (s *GraphStore) MutableClaimIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM claims WHERE is_immutable = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("mutable claim ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountClaims returns the total number of claims
func (s *GraphStore) CountClaims(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.NotFound("claim", id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isConstraint reports a SQLite constraint violation (unique, check, foreign key)
func isConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
