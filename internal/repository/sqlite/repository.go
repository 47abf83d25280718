// Package sqlite implements the repository interfaces on SQLite via
// database/sql. Every mutating operation runs inside a single transaction so
// dependent checks, cascades, and the write itself commit or fail together.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/search"
)

const timeLayout = time.RFC3339Nano

// Repository is the SQLite-backed implementation of repository.Repository.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath. The connection pragmas ride in the DSN
// so every pooled connection gets foreign-key enforcement and the busy
// timeout, not only the first one. New does not create the schema; that is
// the seeding tool's job (see EnsureSchema).
func New(ctx context.Context, dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// EnsureSchema applies the base DDL. Idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range allSchemaStatements() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// SchemaReady reports whether the base schema has been applied.
func (r *Repository) SchemaReady(ctx context.Context) (bool, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'kinds'`).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking schema: %w", err)
	}
	return true, nil
}

// UserTables lists all non-internal tables in the database. The seeding tool
// uses this to refuse seeding a non-empty database.
func (r *Repository) UserTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ---- kinds ----

// CreateKind stores a new kind declaration.
func (r *Repository) CreateKind(ctx context.Context, kind domain.Kind) error {
	schemaJSON, err := json.Marshal(kind.Schema)
	if err != nil {
		return fmt.Errorf("encoding kind schema: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO kinds (name, schema) VALUES (?, ?)`, kind.Name, string(schemaJSON))
	if isUniqueViolation(err) {
		return repository.NewConflict("kind", kind.Name, "already exists")
	}
	if err != nil {
		return fmt.Errorf("creating kind: %w", err)
	}
	return nil
}

// GetKind returns a kind by name.
func (r *Repository) GetKind(ctx context.Context, name string) (*domain.Kind, error) {
	var schemaJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT schema FROM kinds WHERE name = ?`, name).Scan(&schemaJSON)
	if err == sql.ErrNoRows {
		return nil, repository.NewNotFound("kind", name)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching kind: %w", err)
	}

	kind := domain.Kind{Name: name}
	if err := json.Unmarshal([]byte(schemaJSON), &kind.Schema); err != nil {
		return nil, fmt.Errorf("decoding kind schema: %w", err)
	}
	return &kind, nil
}

// ListKinds returns all kinds ordered by name.
func (r *Repository) ListKinds(ctx context.Context) ([]domain.Kind, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, schema FROM kinds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing kinds: %w", err)
	}
	defer rows.Close()

	kinds := []domain.Kind{}
	for rows.Next() {
		var kind domain.Kind
		var schemaJSON string
		if err := rows.Scan(&kind.Name, &schemaJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(schemaJSON), &kind.Schema); err != nil {
			return nil, fmt.Errorf("decoding kind schema: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, rows.Err()
}

// DeleteKind removes a kind and its edge-kind rules. The node-count check and
// the deletes share one transaction so a concurrent node insert cannot slip
// between check and delete.
func (r *Repository) DeleteKind(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kinds WHERE name = ?`, name).Scan(&exists); err != nil {
		return fmt.Errorf("checking kind: %w", err)
	}
	if exists == 0 {
		return repository.NewNotFound("kind", name)
	}

	var nodeCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE kind = ?`, name).Scan(&nodeCount); err != nil {
		return fmt.Errorf("counting nodes of kind: %w", err)
	}
	if nodeCount > 0 {
		return repository.NewConflict("kind", name,
			fmt.Sprintf("%d nodes of this kind still exist", nodeCount))
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges_kinds WHERE from_kind = ? OR to_kind = ?`, name, name); err != nil {
		return fmt.Errorf("deleting edge kinds of kind: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kinds WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting kind: %w", err)
	}

	return tx.Commit()
}

// ---- edge kinds ----

// CreateEdgeKind stores a new relation rule after verifying both kinds exist.
func (r *Repository) CreateEdgeKind(ctx context.Context, ek domain.EdgeKind) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, kindName := range []string{ek.FromKind, ek.ToKind} {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM kinds WHERE name = ?`, kindName).Scan(&exists); err != nil {
			return fmt.Errorf("checking kind: %w", err)
		}
		if exists == 0 {
			return repository.NewNotFound("kind", kindName)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO edges_kinds (from_kind, to_kind, relation) VALUES (?, ?, ?)`,
		ek.FromKind, ek.ToKind, ek.Relation)
	if isUniqueViolation(err) {
		return repository.NewConflict("edges-kind", edgeKindID(ek.FromKind, ek.ToKind, ek.Relation), "already exists")
	}
	if err != nil {
		return fmt.Errorf("creating edges-kind: %w", err)
	}

	return tx.Commit()
}

// GetEdgeKind returns the exact triple.
func (r *Repository) GetEdgeKind(ctx context.Context, fromKind, toKind, relation string) (*domain.EdgeKind, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges_kinds WHERE from_kind = ? AND to_kind = ? AND relation = ?`,
		fromKind, toKind, relation).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("fetching edges-kind: %w", err)
	}
	if exists == 0 {
		return nil, repository.NewNotFound("edges-kind", edgeKindID(fromKind, toKind, relation))
	}
	return &domain.EdgeKind{FromKind: fromKind, ToKind: toKind, Relation: relation}, nil
}

// ListEdgeKinds returns rules matching the filter.
func (r *Repository) ListEdgeKinds(ctx context.Context, filter repository.EdgeKindFilter) ([]domain.EdgeKind, error) {
	query := `SELECT from_kind, to_kind, relation FROM edges_kinds`
	var clauses []string
	var args []interface{}
	if filter.FromKind != "" {
		clauses = append(clauses, "from_kind = ?")
		args = append(args, filter.FromKind)
	}
	if filter.ToKind != "" {
		clauses = append(clauses, "to_kind = ?")
		args = append(args, filter.ToKind)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY from_kind, to_kind, relation"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing edges-kinds: %w", err)
	}
	defer rows.Close()

	kinds := []domain.EdgeKind{}
	for rows.Next() {
		var ek domain.EdgeKind
		if err := rows.Scan(&ek.FromKind, &ek.ToKind, &ek.Relation); err != nil {
			return nil, err
		}
		kinds = append(kinds, ek)
	}
	return kinds, rows.Err()
}

// DeleteEdgeKind removes a rule unless edges still instantiate it. The
// dependent check re-derives each edge's kind pair from its endpoint nodes
// rather than trusting stale labels.
func (r *Repository) DeleteEdgeKind(ctx context.Context, fromKind, toKind, relation string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges_kinds WHERE from_kind = ? AND to_kind = ? AND relation = ?`,
		fromKind, toKind, relation).Scan(&exists); err != nil {
		return fmt.Errorf("checking edges-kind: %w", err)
	}
	if exists == 0 {
		return repository.NewNotFound("edges-kind", edgeKindID(fromKind, toKind, relation))
	}

	var edgeCount int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM edges e
		JOIN nodes nf ON nf.id = e.from_id
		JOIN nodes nt ON nt.id = e.to_id
		WHERE e.relation = ? AND nf.kind = ? AND nt.kind = ?`,
		relation, fromKind, toKind).Scan(&edgeCount); err != nil {
		return fmt.Errorf("counting edges of edges-kind: %w", err)
	}
	if edgeCount > 0 {
		return repository.NewConflict("edges-kind", edgeKindID(fromKind, toKind, relation),
			fmt.Sprintf("%d edges still instantiate this relation", edgeCount))
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges_kinds WHERE from_kind = ? AND to_kind = ? AND relation = ?`,
		fromKind, toKind, relation); err != nil {
		return fmt.Errorf("deleting edges-kind: %w", err)
	}

	return tx.Commit()
}

// ---- nodes ----

// CreateNode inserts a node row. The kind foreign key is RESTRICT, so a kind
// deleted between the caller's validation and this insert surfaces here.
func (r *Repository) CreateNode(ctx context.Context, node domain.Node) error {
	payloadJSON, err := json.Marshal(node.Payload)
	if err != nil {
		return fmt.Errorf("encoding node payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO nodes (id, kind, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		node.ID, node.Kind, string(payloadJSON),
		node.CreatedAt.UTC().Format(timeLayout), node.UpdatedAt.UTC().Format(timeLayout))
	if isForeignKeyViolation(err) {
		return repository.NewNotFound("kind", node.Kind)
	}
	if isUniqueViolation(err) {
		return repository.NewConflict("node", node.ID, "already exists")
	}
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}
	return nil
}

// GetNode returns a node by id.
func (r *Repository) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, payload, created_at, updated_at FROM nodes WHERE id = ?`, id)
	node, err := scanNode(row.Scan)
	if err == sql.ErrNoRows {
		return nil, repository.NewNotFound("node", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching node: %w", err)
	}
	return node, nil
}

// UpdateNodePayload replaces the payload and updated_at of an existing node.
func (r *Repository) UpdateNodePayload(ctx context.Context, node domain.Node) error {
	payloadJSON, err := json.Marshal(node.Payload)
	if err != nil {
		return fmt.Errorf("encoding node payload: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET payload = ?, updated_at = ? WHERE id = ?`,
		string(payloadJSON), node.UpdatedAt.UTC().Format(timeLayout), node.ID)
	if err != nil {
		return fmt.Errorf("updating node: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating node: %w", err)
	}
	if affected == 0 {
		return repository.NewNotFound("node", node.ID)
	}
	return nil
}

// DeleteNode removes a node with an explicit two-phase cascade: collect
// dependents, delete dependents, delete the node, all in one transaction.
func (r *Repository) DeleteNode(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking node: %w", err)
	}
	if exists == 0 {
		return nil, repository.NewNotFound("node", id)
	}

	filePaths, err := collectFilePaths(ctx, tx,
		`SELECT file_path FROM attachments WHERE node_id = ?`, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return nil, fmt.Errorf("deleting edges of node: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM attachments WHERE node_id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting attachments of node: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting node: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return filePaths, nil
}

// SearchNodes streams candidate rows and applies the payload predicate in
// process, stopping once limit matches are collected.
func (r *Repository) SearchNodes(ctx context.Context, kinds []string, match search.Predicate, limit int) ([]domain.Node, error) {
	query := `SELECT id, kind, payload, created_at, updated_at FROM nodes`
	var args []interface{}
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			placeholders[i] = "?"
			args = append(args, kind)
		}
		query += ` WHERE kind IN (` + strings.Join(placeholders, ", ") + `)`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching nodes: %w", err)
	}
	defer rows.Close()

	results := []domain.Node{}
	for rows.Next() {
		node, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		if match != nil && !match(node.Payload) {
			continue
		}
		results = append(results, *node)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}

// ---- edges ----

// CreateEdge inserts an edge after checking endpoints and the relation rule
// within the same transaction as the insert.
func (r *Repository) CreateEdge(ctx context.Context, edge domain.Edge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	kinds := make([]string, 2)
	for i, nodeID := range []string{edge.FromID, edge.ToID} {
		err := tx.QueryRowContext(ctx,
			`SELECT kind FROM nodes WHERE id = ?`, nodeID).Scan(&kinds[i])
		if err == sql.ErrNoRows {
			return repository.NewNotFound("node", nodeID)
		}
		if err != nil {
			return fmt.Errorf("fetching node kind: %w", err)
		}
	}

	var allowed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM edges_kinds WHERE from_kind = ? AND to_kind = ? AND relation = ?`,
		kinds[0], kinds[1], edge.Relation).Scan(&allowed); err != nil {
		return fmt.Errorf("checking edges-kind: %w", err)
	}
	if allowed == 0 {
		return repository.ErrForbiddenRelation{
			FromKind: kinds[0], ToKind: kinds[1], Relation: edge.Relation,
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO edges (from_id, to_id, relation, created_at) VALUES (?, ?, ?, ?)`,
		edge.FromID, edge.ToID, edge.Relation, edge.CreatedAt.UTC().Format(timeLayout))
	if isUniqueViolation(err) {
		return repository.NewConflict("edge",
			edgeKindID(edge.FromID, edge.ToID, edge.Relation), "already exists")
	}
	if err != nil {
		return fmt.Errorf("creating edge: %w", err)
	}

	return tx.Commit()
}

// DeleteEdge removes a single edge row.
func (r *Repository) DeleteEdge(ctx context.Context, fromID, toID, relation string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM edges WHERE from_id = ? AND to_id = ? AND relation = ?`,
		fromID, toID, relation)
	if err != nil {
		return fmt.Errorf("deleting edge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting edge: %w", err)
	}
	if affected == 0 {
		return repository.NewNotFound("edge", edgeKindID(fromID, toID, relation))
	}
	return nil
}

// OutgoingEdges lists edges whose source is the node.
func (r *Repository) OutgoingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	return r.queryEdges(ctx,
		`SELECT from_id, to_id, relation, created_at FROM edges WHERE from_id = ?`, nodeID)
}

// IncomingEdges lists edges whose target is the node.
func (r *Repository) IncomingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	return r.queryEdges(ctx,
		`SELECT from_id, to_id, relation, created_at FROM edges WHERE to_id = ?`, nodeID)
}

// EdgesBetween lists edges from one node to another.
func (r *Repository) EdgesBetween(ctx context.Context, fromID, toID string) ([]domain.Edge, error) {
	return r.queryEdges(ctx,
		`SELECT from_id, to_id, relation, created_at FROM edges WHERE from_id = ? AND to_id = ?`,
		fromID, toID)
}

func (r *Repository) queryEdges(ctx context.Context, query string, args ...interface{}) ([]domain.Edge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	defer rows.Close()

	edges := []domain.Edge{}
	for rows.Next() {
		var edge domain.Edge
		var createdAt string
		if err := rows.Scan(&edge.FromID, &edge.ToID, &edge.Relation, &createdAt); err != nil {
			return nil, err
		}
		if edge.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing edge timestamp: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// ---- attachments ----

// CreateAttachment inserts an attachment metadata row.
func (r *Repository) CreateAttachment(ctx context.Context, att domain.Attachment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attachments (id, node_id, mime_type, name, file_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		att.ID, att.NodeID, att.MimeType, att.Name, att.FilePath,
		att.CreatedAt.UTC().Format(timeLayout))
	if isForeignKeyViolation(err) {
		return repository.NewNotFound("node", att.NodeID)
	}
	if isUniqueViolation(err) {
		return repository.NewConflict("attachment", att.ID, "already exists")
	}
	if err != nil {
		return fmt.Errorf("creating attachment: %w", err)
	}
	return nil
}

// GetAttachment returns an attachment by id.
func (r *Repository) GetAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	att, err := r.scanAttachment(r.db.QueryRowContext(ctx,
		`SELECT id, node_id, mime_type, name, file_path, created_at FROM attachments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, repository.NewNotFound("attachment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching attachment: %w", err)
	}
	return att, nil
}

// ListAttachments lists attachments of a node.
func (r *Repository) ListAttachments(ctx context.Context, nodeID string) ([]domain.Attachment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, node_id, mime_type, name, file_path, created_at
		 FROM attachments WHERE node_id = ?`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	atts := []domain.Attachment{}
	for rows.Next() {
		var att domain.Attachment
		var createdAt string
		if err := rows.Scan(&att.ID, &att.NodeID, &att.MimeType, &att.Name,
			&att.FilePath, &createdAt); err != nil {
			return nil, err
		}
		if att.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing attachment timestamp: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, rows.Err()
}

// DeleteAttachment removes the row and returns the removed attachment.
func (r *Repository) DeleteAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	att, err := r.scanAttachment(tx.QueryRowContext(ctx,
		`SELECT id, node_id, mime_type, name, file_path, created_at FROM attachments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, repository.NewNotFound("attachment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching attachment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting attachment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return att, nil
}

// ---- bulk schema ----

// DumpSchema returns every kind and edge-kind rule.
func (r *Repository) DumpSchema(ctx context.Context) (*domain.SchemaDump, error) {
	kinds, err := r.ListKinds(ctx)
	if err != nil {
		return nil, err
	}
	edgeKinds, err := r.ListEdgeKinds(ctx, repository.EdgeKindFilter{})
	if err != nil {
		return nil, err
	}
	return &domain.SchemaDump{Kinds: kinds, EdgeKinds: edgeKinds}, nil
}

// MergeSchema additively merges a schema dump: existing identities are left
// untouched, new ones are inserted, all in one transaction.
func (r *Repository) MergeSchema(ctx context.Context, dump domain.SchemaDump) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, kind := range dump.Kinds {
		schemaJSON, err := json.Marshal(kind.Schema)
		if err != nil {
			return fmt.Errorf("encoding kind schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO kinds (name, schema) VALUES (?, ?)`,
			kind.Name, string(schemaJSON)); err != nil {
			return fmt.Errorf("merging kind %s: %w", kind.Name, err)
		}
	}

	for _, ek := range dump.EdgeKinds {
		for _, kindName := range []string{ek.FromKind, ek.ToKind} {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM kinds WHERE name = ?`, kindName).Scan(&exists); err != nil {
				return fmt.Errorf("checking kind: %w", err)
			}
			if exists == 0 {
				return repository.NewNotFound("kind", kindName)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO edges_kinds (from_kind, to_kind, relation) VALUES (?, ?, ?)`,
			ek.FromKind, ek.ToKind, ek.Relation); err != nil {
			return fmt.Errorf("merging edges-kind: %w", err)
		}
	}

	return tx.Commit()
}

// Reset wipes all entity tables unconditionally, bypassing deletion-safety
// checks. Meant for test fixtures.
func (r *Repository) Reset(ctx context.Context) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	filePaths, err := collectFilePaths(ctx, tx, `SELECT file_path FROM attachments`)
	if err != nil {
		return nil, err
	}

	for _, table := range []string{"edges", "attachments", "nodes", "edges_kinds", "kinds"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return nil, fmt.Errorf("resetting table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return filePaths, nil
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanAttachment(row rowScanner) (*domain.Attachment, error) {
	var att domain.Attachment
	var createdAt string
	if err := row.Scan(&att.ID, &att.NodeID, &att.MimeType, &att.Name,
		&att.FilePath, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if att.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing attachment timestamp: %w", err)
	}
	return &att, nil
}

func scanNode(scan func(...interface{}) error) (*domain.Node, error) {
	var node domain.Node
	var payloadJSON, createdAt, updatedAt string
	if err := scan(&node.ID, &node.Kind, &payloadJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payloadJSON), &node.Payload); err != nil {
		return nil, fmt.Errorf("decoding node payload: %w", err)
	}
	var err error
	if node.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing node timestamp: %w", err)
	}
	if node.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing node timestamp: %w", err)
	}
	return &node, nil
}

type execer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func collectFilePaths(ctx context.Context, q execer, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collecting attachment paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func edgeKindID(parts ...string) string {
	return strings.Join(parts, "/")
}

// modernc.org/sqlite reports constraint failures in the error text; the
// driver does not export typed errors for them.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
