package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// graphSchema holds claims, support edges and articles
var graphSchema = []migration{
	{
		Version:     1,
		Description: "claims and support edges",
		SQL: `
CREATE TABLE claims (
    id                  TEXT PRIMARY KEY,
    text                TEXT NOT NULL,
    source_url          TEXT NOT NULL DEFAULT '',
    article_id          TEXT NOT NULL DEFAULT '',
    language            TEXT NOT NULL DEFAULT 'en',
    extracted_at        INTEGER NOT NULL,
    decay_score         REAL NOT NULL DEFAULT 0 CHECK (decay_score >= 0 AND decay_score <= 1),
    half_life_days      INTEGER NOT NULL DEFAULT 365 CHECK (half_life_days > 0),
    is_immutable        INTEGER NOT NULL DEFAULT 0,
    contradiction_count INTEGER NOT NULL DEFAULT 0 CHECK (contradiction_count >= 0),
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL
);

CREATE INDEX idx_claims_article   ON claims(article_id);
CREATE INDEX idx_claims_immutable ON claims(is_immutable);

CREATE TABLE support_edges (
    from_id    TEXT NOT NULL,
    to_id      TEXT NOT NULL,
    weight     REAL NOT NULL DEFAULT 1.0 CHECK (weight > 0),
    created_at INTEGER NOT NULL,

    PRIMARY KEY (from_id, to_id),
    FOREIGN KEY (from_id) REFERENCES claims(id) ON DELETE CASCADE,
    FOREIGN KEY (to_id)   REFERENCES claims(id) ON DELETE CASCADE
);

CREATE INDEX idx_edges_to ON support_edges(to_id);
`,
	},
	{
		Version:     2,
		Description: "articles: source pages for extracted claims",
		SQL: `
CREATE TABLE articles (
    id         TEXT PRIMARY KEY,
    url        TEXT NOT NULL UNIQUE,
    title      TEXT NOT NULL DEFAULT '',
    language   TEXT NOT NULL DEFAULT 'en',
    fetched_at INTEGER NOT NULL
);
`,
	},
}

// vectorSchema holds claim embeddings and collection metadata
var vectorSchema = []migration{
	{
		Version:     101,
		Description: "vector collections and claim embeddings",
		SQL: `
CREATE TABLE vector_collections (
    name       TEXT PRIMARY KEY,
    dimensions INTEGER NOT NULL CHECK (dimensions > 0),
    created_at INTEGER NOT NULL
);

CREATE TABLE claim_vectors (
    collection TEXT NOT NULL,
    claim_id   TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    language   TEXT NOT NULL DEFAULT '',
    metadata   TEXT NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL,

    PRIMARY KEY (collection, claim_id),
    FOREIGN KEY (collection) REFERENCES vector_collections(name) ON DELETE CASCADE
);

CREATE INDEX idx_vectors_language ON claim_vectors(collection, language);
`,
	},
}

func (db *DB) migrate(schema []migration) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range schema {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
