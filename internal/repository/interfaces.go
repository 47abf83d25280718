// Package repository defines the data access interfaces for the graph store's
// persistence layer. The interfaces abstract the relational backing store so
// services depend on contracts, not on a concrete database.
package repository

import (
	"context"

	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/search"
)

// EdgeKindFilter narrows edge-kind listings. Empty fields match everything.
type EdgeKindFilter struct {
	FromKind string
	ToKind   string
}

// KindRepository manages kind declarations.
type KindRepository interface {
	// CreateKind stores a new kind. Returns ErrConflict when the name is taken.
	CreateKind(ctx context.Context, kind domain.Kind) error

	// GetKind returns a kind by name, or ErrNotFound.
	GetKind(ctx context.Context, name string) (*domain.Kind, error)

	// ListKinds returns all declared kinds ordered by name.
	ListKinds(ctx context.Context) ([]domain.Kind, error)

	// DeleteKind removes a kind and every edge-kind rule referencing it.
	// Returns ErrConflict when nodes of the kind still exist. The dependent
	// check and the delete run in one transaction.
	DeleteKind(ctx context.Context, name string) error
}

// EdgeKindRepository manages the kind-to-kind relation whitelist.
type EdgeKindRepository interface {
	// CreateEdgeKind stores a new rule. Returns ErrNotFound when either kind
	// is undeclared and ErrConflict when the exact triple already exists.
	CreateEdgeKind(ctx context.Context, ek domain.EdgeKind) error

	// GetEdgeKind returns the exact triple, or ErrNotFound.
	GetEdgeKind(ctx context.Context, fromKind, toKind, relation string) (*domain.EdgeKind, error)

	// ListEdgeKinds returns rules matching the filter, ordered by
	// (from_kind, to_kind, relation). No match yields an empty list.
	ListEdgeKinds(ctx context.Context, filter EdgeKindFilter) ([]domain.EdgeKind, error)

	// DeleteEdgeKind removes a rule. Returns ErrConflict when edges whose
	// endpoint kinds plus relation instantiate the triple still exist; the
	// check joins on the endpoint nodes' current kinds inside the same
	// transaction as the delete.
	DeleteEdgeKind(ctx context.Context, fromKind, toKind, relation string) error
}

// NodeRepository manages node rows.
type NodeRepository interface {
	// CreateNode inserts a node. Returns ErrNotFound when the kind vanished
	// between validation and insert (foreign key restriction).
	CreateNode(ctx context.Context, node domain.Node) error

	// GetNode returns a node by id, or ErrNotFound.
	GetNode(ctx context.Context, id string) (*domain.Node, error)

	// UpdateNodePayload replaces a node's payload and bumps updated_at.
	UpdateNodePayload(ctx context.Context, node domain.Node) error

	// DeleteNode removes a node plus all touching edges and attachments in
	// one transaction. Returns the file paths of the removed attachments so
	// the caller can clean up blob storage, or ErrNotFound.
	DeleteNode(ctx context.Context, id string) (filePaths []string, err error)

	// SearchNodes scans candidate nodes (restricted to kinds when non-empty)
	// and returns up to limit nodes whose payload satisfies the predicate.
	SearchNodes(ctx context.Context, kinds []string, match search.Predicate, limit int) ([]domain.Node, error)
}

// EdgeRepository manages edge rows.
type EdgeRepository interface {
	// CreateEdge inserts an edge after checking, in the same transaction,
	// that both endpoints exist (ErrNotFound), that the (from-kind, to-kind,
	// relation) triple is declared (ErrForbiddenRelation), and that the edge
	// itself is new (ErrConflict).
	CreateEdge(ctx context.Context, edge domain.Edge) error

	// DeleteEdge removes an edge row, or returns ErrNotFound.
	DeleteEdge(ctx context.Context, fromID, toID, relation string) error

	// OutgoingEdges lists edges whose source is the node. Unknown node ids
	// yield an empty list, not an error.
	OutgoingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error)

	// IncomingEdges lists edges whose target is the node.
	IncomingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error)

	// EdgesBetween lists edges from one node to another.
	EdgesBetween(ctx context.Context, fromID, toID string) ([]domain.Edge, error)
}

// AttachmentRepository manages attachment metadata rows.
type AttachmentRepository interface {
	// CreateAttachment inserts an attachment row. Returns ErrNotFound when
	// the node is unknown and ErrConflict on a duplicate file path.
	CreateAttachment(ctx context.Context, att domain.Attachment) error

	// GetAttachment returns an attachment by id, or ErrNotFound.
	GetAttachment(ctx context.Context, id string) (*domain.Attachment, error)

	// ListAttachments lists attachments of a node.
	ListAttachments(ctx context.Context, nodeID string) ([]domain.Attachment, error)

	// DeleteAttachment removes the row and returns it, or ErrNotFound.
	DeleteAttachment(ctx context.Context, id string) (*domain.Attachment, error)
}

// SchemaRepository covers the bulk schema operations.
type SchemaRepository interface {
	// DumpSchema returns every kind and edge-kind rule.
	DumpSchema(ctx context.Context) (*domain.SchemaDump, error)

	// MergeSchema applies an additive merge: entries whose identity already
	// exists are left untouched (first write wins), new ones are inserted.
	// The whole merge is one transaction.
	MergeSchema(ctx context.Context, dump domain.SchemaDump) error

	// Reset unconditionally wipes all five entity tables, bypassing the
	// deletion-safety checks. Returns the file paths of all removed
	// attachments for blob cleanup.
	Reset(ctx context.Context) (filePaths []string, err error)
}

// Repository is the complete persistence contract of the graph store.
type Repository interface {
	KindRepository
	EdgeKindRepository
	NodeRepository
	EdgeRepository
	AttachmentRepository
	SchemaRepository
}
