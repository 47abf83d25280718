// Package domain defines the core entities of the graph store: kinds,
// edge-kind rules, nodes, edges, and attachments.
package domain

import "time"

// Kind is a named JSON Schema contract that node payloads of that kind must
// satisfy. Kinds are immutable once declared; changing a schema requires
// deleting and re-declaring the kind.
type Kind struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
}

// EdgeKind declares that a directed relation is allowed between two kinds.
// Identity is the full (FromKind, ToKind, Relation) triple.
type EdgeKind struct {
	FromKind string `json:"from_kind"`
	ToKind   string `json:"to_kind"`
	Relation string `json:"relation"`
}

// Node is a typed, schema-validated data record.
type Node struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Edge is a directed, relation-labeled link between two nodes. Edges are
// immutable once created; identity is the (FromID, ToID, Relation) triple.
type Edge struct {
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Relation  string    `json:"relation"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is a binary file linked to a node. The file itself lives in
// blob storage under FilePath; the row only carries metadata.
type Attachment struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"node_id"`
	MimeType  string    `json:"mime_type"`
	Name      string    `json:"name"`
	FilePath  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SchemaDump is the full declared schema: every kind and every edge-kind
// rule. Used by the bulk dump and additive-merge endpoints.
type SchemaDump struct {
	Kinds     []Kind     `json:"kinds"`
	EdgeKinds []EdgeKind `json:"edges_kinds"`
}
