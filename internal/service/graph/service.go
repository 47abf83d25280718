// Package graph implements the graph store business logic: schema-validated
// nodes, whitelisted edges, payload search, and attachments.
package graph

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rhyolite-backend/internal/blob"
	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/schema"
	"rhyolite-backend/internal/search"
	appErrors "rhyolite-backend/pkg/errors"
)

// Service contains the graph store business logic.
type Service struct {
	repo               repository.Repository
	blobs              blob.Store
	logger             *zap.Logger
	searchDefaultLimit int
}

// NewService creates a new graph service. searchDefaultLimit caps search
// results when the caller does not supply a limit.
func NewService(repo repository.Repository, blobs blob.Store, logger *zap.Logger, searchDefaultLimit int) *Service {
	return &Service{
		repo:               repo,
		blobs:              blobs,
		logger:             logger,
		searchDefaultLimit: searchDefaultLimit,
	}
}

// CreateNode validates the payload against the kind's schema and stores a
// new node with a generated id.
func (s *Service) CreateNode(ctx context.Context, kindName string, payload map[string]interface{}) (*domain.Node, error) {
	kind, err := s.repo.GetKind(ctx, kindName)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if err := schema.Validate(kind.Schema, payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	node := domain.Node{
		ID:        uuid.New().String(),
		Kind:      kindName,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateNode(ctx, node); err != nil {
		return nil, translateRepoError(err)
	}

	s.logger.Info("node created", zap.String("node_id", node.ID), zap.String("kind", kindName))
	return &node, nil
}

// GetNode returns a node by id.
func (s *Service) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return node, nil
}

// UpdateNode replaces a node's payload after re-validating it against the
// kind's schema. updated_at always moves forward.
func (s *Service) UpdateNode(ctx context.Context, id string, payload map[string]interface{}) (*domain.Node, error) {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	kind, err := s.repo.GetKind(ctx, node.Kind)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if err := schema.Validate(kind.Schema, payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !now.After(node.UpdatedAt) {
		now = node.UpdatedAt.Add(time.Nanosecond)
	}
	node.Payload = payload
	node.UpdatedAt = now

	if err := s.repo.UpdateNodePayload(ctx, *node); err != nil {
		return nil, translateRepoError(err)
	}
	return node, nil
}

// DeleteNode removes a node together with all touching edges and its
// attachments. Attachment file removal is best effort once the rows are gone.
func (s *Service) DeleteNode(ctx context.Context, id string) error {
	filePaths, err := s.repo.DeleteNode(ctx, id)
	if err != nil {
		return translateRepoError(err)
	}

	for _, p := range filePaths {
		if err := s.blobs.Delete(ctx, p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove attachment file of deleted node",
				zap.String("node_id", id), zap.String("path", p), zap.Error(err))
		}
	}

	s.logger.Info("node deleted", zap.String("node_id", id))
	return nil
}

// Search returns nodes matching the dot-notated payload query, optionally
// restricted to a set of kinds. A non-positive limit falls back to the
// configured default.
func (s *Service) Search(ctx context.Context, kinds []string, query map[string]interface{}, limit int) ([]domain.Node, error) {
	match := search.Translate(query)
	if limit <= 0 {
		limit = s.searchDefaultLimit
	}

	nodes, err := s.repo.SearchNodes(ctx, kinds, match, limit)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return nodes, nil
}

// CreateEdge links two nodes with a relation. The (from-kind, to-kind,
// relation) triple must be declared as an edge kind.
func (s *Service) CreateEdge(ctx context.Context, fromID, toID, relation string) (*domain.Edge, error) {
	edge := domain.Edge{
		FromID:    fromID,
		ToID:      toID,
		Relation:  relation,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateEdge(ctx, edge); err != nil {
		return nil, translateRepoError(err)
	}

	s.logger.Info("edge created",
		zap.String("from_id", fromID), zap.String("to_id", toID), zap.String("relation", relation))
	return &edge, nil
}

// DeleteEdge removes an edge.
func (s *Service) DeleteEdge(ctx context.Context, fromID, toID, relation string) error {
	if err := s.repo.DeleteEdge(ctx, fromID, toID, relation); err != nil {
		return translateRepoError(err)
	}
	return nil
}

// OutgoingEdges lists edges whose source is the node.
func (s *Service) OutgoingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	edges, err := s.repo.OutgoingEdges(ctx, nodeID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return edges, nil
}

// IncomingEdges lists edges whose target is the node.
func (s *Service) IncomingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	edges, err := s.repo.IncomingEdges(ctx, nodeID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return edges, nil
}

// EdgesBetween lists edges from one node to another.
func (s *Service) EdgesBetween(ctx context.Context, fromID, toID string) ([]domain.Edge, error) {
	edges, err := s.repo.EdgesBetween(ctx, fromID, toID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return edges, nil
}

// CreateAttachment stores the file content in blob storage and records the
// attachment metadata. If the metadata insert fails the stored blob is
// removed again.
func (s *Service) CreateAttachment(ctx context.Context, nodeID, name, mimeType string, content io.Reader) (*domain.Attachment, error) {
	if _, err := s.repo.GetNode(ctx, nodeID); err != nil {
		return nil, translateRepoError(err)
	}

	att := domain.Attachment{
		ID:        uuid.New().String(),
		NodeID:    nodeID,
		MimeType:  mimeType,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	att.FilePath = path.Join(nodeID, att.ID)

	if err := s.blobs.Put(ctx, att.FilePath, content); err != nil {
		return nil, appErrors.NewStorage("storing attachment content", err)
	}
	if err := s.repo.CreateAttachment(ctx, att); err != nil {
		if cleanupErr := s.blobs.Delete(ctx, att.FilePath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned attachment file",
				zap.String("path", att.FilePath), zap.Error(cleanupErr))
		}
		return nil, translateRepoError(err)
	}

	s.logger.Info("attachment created",
		zap.String("attachment_id", att.ID), zap.String("node_id", nodeID))
	return &att, nil
}

// GetAttachment returns the attachment metadata. Use OpenAttachment for the
// content.
func (s *Service) GetAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	att, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return att, nil
}

// OpenAttachment returns the attachment metadata plus a reader over its
// content. A metadata row whose file has gone missing reports not found.
func (s *Service) OpenAttachment(ctx context.Context, id string) (*domain.Attachment, io.ReadCloser, error) {
	att, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return nil, nil, translateRepoError(err)
	}

	content, err := s.blobs.Open(ctx, att.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, appErrors.NewNotFound("attachment content missing")
	}
	if err != nil {
		return nil, nil, appErrors.NewStorage("opening attachment content", err)
	}
	return att, content, nil
}

// ListAttachments lists the attachments of a node.
func (s *Service) ListAttachments(ctx context.Context, nodeID string) ([]domain.Attachment, error) {
	atts, err := s.repo.ListAttachments(ctx, nodeID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return atts, nil
}

// DeleteAttachment removes the file first and the metadata row second, so a
// failing file removal surfaces instead of leaving an orphaned file behind.
// A file already gone is not an error.
func (s *Service) DeleteAttachment(ctx context.Context, id string) error {
	att, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		return translateRepoError(err)
	}

	if err := s.blobs.Delete(ctx, att.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return appErrors.NewStorage("removing attachment content", err)
	}
	if _, err := s.repo.DeleteAttachment(ctx, id); err != nil {
		return translateRepoError(err)
	}

	s.logger.Info("attachment deleted", zap.String("attachment_id", id))
	return nil
}

// translateRepoError maps repository-layer errors onto the application error
// taxonomy.
func translateRepoError(err error) error {
	switch {
	case repository.IsNotFound(err):
		return appErrors.NewNotFound(err.Error())
	case repository.IsConflict(err):
		return appErrors.NewConflict(err.Error())
	case repository.IsForbiddenRelation(err):
		return appErrors.NewValidation(err.Error())
	default:
		return appErrors.NewStorage("storage operation failed", err)
	}
}
