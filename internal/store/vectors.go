package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ppiankov/antibody/internal/model"
)

// VectorStore keeps claim embeddings per collection and answers cosine
// similarity queries by scanning the collection.
type VectorStore struct {
	db  *DB
	now func() time.Time
}

// SearchFilter narrows a similarity search
type SearchFilter struct {
	Language  string // exact match; empty means any
	ExcludeID string // claim to leave out of the results
}

// Hit is one similarity search result
type Hit struct {
	ClaimID  string
	Score    float64
	Language string
	Metadata map[string]any
}

// CollectionInfo describes a vector collection
type CollectionInfo struct {
	Name        string
	Dimensions  int
	PointsCount int
}

// OpenVectors opens the vector database at path
func OpenVectors(path string) (*VectorStore, error) {
	db, err := Open(path, vectorSchema)
	if err != nil {
		return nil, err
	}
	return &VectorStore{db: db, now: time.Now}, nil
}

// OpenVectorsMemory opens an in-memory vector store for tests
func OpenVectorsMemory() (*VectorStore, error) {
	db, err := OpenMemory(vectorSchema)
	if err != nil {
		return nil, err
	}
	return &VectorStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database
func (v *VectorStore) Close() error {
	return v.db.Close()
}

// Ping verifies the vector database answers
func (v *VectorStore) Ping(ctx context.Context) error {
	return v.db.Ping(ctx)
}

// encodeEmbedding packs a vector as little-endian float32 (4 bytes each)
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// CreateCollection creates a collection if it does not exist. An existing
// collection with a different dimension is an error.
func (v *VectorStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return model.Invalid("collection dimension must be positive, got %d", dimensions)
	}

	info, err := v.Info(ctx, name)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	if info != nil {
		if info.Dimensions != dimensions {
			return model.Invalid("collection %s has dimension %d, not %d", name, info.Dimensions, dimensions)
		}
		return nil
	}

	_, err = v.db.ExecContext(ctx, `INSERT INTO vector_collections (name, dimensions, created_at) VALUES (?, ?, ?)`,
		name, dimensions, v.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// CollectionExists reports whether name has been created
func (v *VectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := v.Info(ctx, name)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Info returns collection metadata and point count
func (v *VectorStore) Info(ctx context.Context, name string) (*CollectionInfo, error) {
	info := CollectionInfo{Name: name}
	err := v.db.QueryRowContext(ctx, `
		SELECT c.dimensions, (SELECT COUNT(*) FROM claim_vectors WHERE collection = c.name)
		FROM vector_collections c WHERE c.name = ?
	`, name).Scan(&info.Dimensions, &info.PointsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound("collection", name)
	}
	if err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}
	return &info, nil
}

// Upsert stores or replaces a claim's vector
func (v *VectorStore) Upsert(ctx context.Context, collection, claimID string, vector []float32, language string, metadata map[string]any) error {
	info, err := v.Info(ctx, collection)
	if err != nil {
		return err
	}
	if len(vector) != info.Dimensions {
		return model.Invalid("vector has dimension %d, collection %s expects %d", len(vector), collection, info.Dimensions)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = v.db.ExecContext(ctx, `
		INSERT INTO claim_vectors (collection, claim_id, embedding, language, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, claim_id) DO UPDATE SET
			embedding = excluded.embedding, language = excluded.language,
			metadata = excluded.metadata, updated_at = excluded.updated_at
	`, collection, claimID, encodeEmbedding(vector), language, string(meta), v.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}
	return nil
}

// Delete removes a claim's vector
func (v *VectorStore) Delete(ctx context.Context, collection, claimID string) error {
	_, err := v.db.ExecContext(ctx, `DELETE FROM claim_vectors WHERE collection = ? AND claim_id = ?`, collection, claimID)
	if err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	return nil
}

// Search returns up to limit hits with cosine similarity >= threshold,
// highest first, ties broken by claim ID.
func (v *VectorStore) Search(ctx context.Context, collection string, query []float32, limit int, threshold float64, filter SearchFilter) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	info, err := v.Info(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(query) != info.Dimensions {
		return nil, model.Invalid("query has dimension %d, collection %s expects %d", len(query), collection, info.Dimensions)
	}

	sqlQuery := `SELECT claim_id, embedding, language, metadata FROM claim_vectors WHERE collection = ?`
	args := []any{collection}
	if filter.Language != "" {
		sqlQuery += ` AND language = ?`
		args = append(args, filter.Language)
	}
	if filter.ExcludeID != "" {
		sqlQuery += ` AND claim_id != ?`
		args = append(args, filter.ExcludeID)
	}

	rows, err := v.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	queryNorm := norm(query)
	var hits []Hit
	for rows.Next() {
		var h Hit
		var blob []byte
		var meta string
		if err := rows.Scan(&h.ClaimID, &blob, &h.Language, &meta); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		h.Score = cosine(query, queryNorm, decodeEmbedding(blob))
		if h.Score < threshold {
			continue
		}
		if err := json.Unmarshal([]byte(meta), &h.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", h.ClaimID, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ClaimID < hits[j].ClaimID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 for zero-length vectors or mismatched dimensions
func cosine(a []float32, aNorm float64, b []float32) float64 {
	if len(a) != len(b) || aNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	bNorm := norm(b)
	if bNorm == 0 {
		return 0
	}
	return dot / (aNorm * bNorm)
}
