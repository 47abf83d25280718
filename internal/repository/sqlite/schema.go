package sqlite

import "strings"

// SQLite schema DDL constants. The layout mirrors the entity model: kinds,
// edges_kinds, nodes, edges, attachments. Foreign keys encode the cascade
// rules as a second line of defence behind the explicit transactional
// cascades in the repository methods.

const schemaKinds = `
CREATE TABLE IF NOT EXISTS kinds (
    name TEXT PRIMARY KEY,
    schema TEXT NOT NULL
)`

const schemaEdgesKinds = `
CREATE TABLE IF NOT EXISTS edges_kinds (
    from_kind TEXT NOT NULL REFERENCES kinds(name) ON DELETE CASCADE,
    to_kind   TEXT NOT NULL REFERENCES kinds(name) ON DELETE CASCADE,
    relation  TEXT NOT NULL,
    PRIMARY KEY (from_kind, to_kind, relation)
)`

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL REFERENCES kinds(name) ON DELETE RESTRICT,
    payload TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const schemaEdges = `
CREATE TABLE IF NOT EXISTS edges (
    from_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    to_id   TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    relation TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (from_id, to_id, relation)
)`

const schemaAttachments = `
CREATE TABLE IF NOT EXISTS attachments (
    id TEXT PRIMARY KEY,
    node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    mime_type TEXT NOT NULL,
    name TEXT NOT NULL,
    file_path TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
)`

// Index definitions
const indexNodesKind = `CREATE INDEX IF NOT EXISTS ix_nodes_kind ON nodes(kind)`
const indexEdgesFrom = `CREATE INDEX IF NOT EXISTS ix_edges_from_id ON edges(from_id)`
const indexEdgesTo = `CREATE INDEX IF NOT EXISTS ix_edges_to_id ON edges(to_id)`
const indexEdgesFromTo = `CREATE INDEX IF NOT EXISTS ix_edges_from_to ON edges(from_id, to_id)`
const indexAttachmentsNode = `CREATE INDEX IF NOT EXISTS ix_attachments_node_id ON attachments(node_id)`

// Pragmas are per-connection in SQLite. They go into the DSN so the driver
// applies them to every connection the database/sql pool opens, not just the
// one a plain Exec would land on.
var connectionPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// dsn builds the driver DSN for a database path with the connection pragmas
// attached.
func dsn(path string) string {
	params := make([]string, len(connectionPragmas))
	for i, pragma := range connectionPragmas {
		params[i] = "_pragma=" + pragma
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaKinds,
		schemaEdgesKinds,
		schemaNodes,
		schemaEdges,
		schemaAttachments,
		indexNodesKind,
		indexEdgesFrom,
		indexEdgesTo,
		indexEdgesFromTo,
		indexAttachmentsNode,
	}
}
