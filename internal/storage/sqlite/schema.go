// ABOUTME: SQLite database schema for the segment vector index
// ABOUTME: Creates the vector table, its corpus index, and index metadata
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- One embedding per segment, id is {corpus}_{index}
CREATE TABLE IF NOT EXISTS segment_vectors (
    id TEXT PRIMARY KEY,
    corpus TEXT NOT NULL,
    seg_index INTEGER NOT NULL,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_segment_vectors_corpus ON segment_vectors(corpus);

-- Index-wide settings such as the embedding dimension
CREATE TABLE IF NOT EXISTS vector_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
