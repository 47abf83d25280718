// Package registry implements the schema registry: kind declarations,
// edge-kind relation rules, and the bulk schema dump/merge/reset operations.
package registry

import (
	"context"

	"go.uber.org/zap"

	"rhyolite-backend/internal/blob"
	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/schema"
	appErrors "rhyolite-backend/pkg/errors"
)

// Service contains the schema registry business logic.
type Service struct {
	repo   repository.Repository
	blobs  blob.Store
	logger *zap.Logger
}

// NewService creates a new registry service.
func NewService(repo repository.Repository, blobs blob.Store, logger *zap.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, logger: logger}
}

// DeclareKind registers a new kind. The schema document must itself be a
// valid JSON Schema; kinds are immutable once declared.
func (s *Service) DeclareKind(ctx context.Context, name string, schemaDoc map[string]interface{}) (*domain.Kind, error) {
	if schemaDoc == nil {
		schemaDoc = map[string]interface{}{}
	}
	if err := schema.CheckSchema(schemaDoc); err != nil {
		return nil, err
	}

	kind := domain.Kind{Name: name, Schema: schemaDoc}
	if err := s.repo.CreateKind(ctx, kind); err != nil {
		return nil, translateRepoError(err)
	}

	s.logger.Info("kind declared", zap.String("kind", name))
	return &kind, nil
}

// GetKind returns a declared kind.
func (s *Service) GetKind(ctx context.Context, name string) (*domain.Kind, error) {
	kind, err := s.repo.GetKind(ctx, name)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return kind, nil
}

// ListKinds returns all declared kinds.
func (s *Service) ListKinds(ctx context.Context) ([]domain.Kind, error) {
	kinds, err := s.repo.ListKinds(ctx)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return kinds, nil
}

// DeleteKind removes a kind. Blocked while nodes of the kind exist; edge-kind
// rules referencing the kind are removed with it.
func (s *Service) DeleteKind(ctx context.Context, name string) error {
	if err := s.repo.DeleteKind(ctx, name); err != nil {
		return translateRepoError(err)
	}
	s.logger.Info("kind deleted", zap.String("kind", name))
	return nil
}

// DeclareEdgeKind registers a relation rule between two declared kinds.
func (s *Service) DeclareEdgeKind(ctx context.Context, ek domain.EdgeKind) (*domain.EdgeKind, error) {
	if err := s.repo.CreateEdgeKind(ctx, ek); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("edges-kind declared",
		zap.String("from_kind", ek.FromKind),
		zap.String("to_kind", ek.ToKind),
		zap.String("relation", ek.Relation))
	return &ek, nil
}

// GetEdgeKind returns the exact relation rule.
func (s *Service) GetEdgeKind(ctx context.Context, fromKind, toKind, relation string) (*domain.EdgeKind, error) {
	ek, err := s.repo.GetEdgeKind(ctx, fromKind, toKind, relation)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return ek, nil
}

// ListEdgeKinds returns relation rules matching the filter.
func (s *Service) ListEdgeKinds(ctx context.Context, filter repository.EdgeKindFilter) ([]domain.EdgeKind, error) {
	rules, err := s.repo.ListEdgeKinds(ctx, filter)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return rules, nil
}

// DeleteEdgeKind removes a relation rule. Blocked while edges whose endpoint
// kinds plus relation instantiate the rule still exist.
func (s *Service) DeleteEdgeKind(ctx context.Context, fromKind, toKind, relation string) error {
	if err := s.repo.DeleteEdgeKind(ctx, fromKind, toKind, relation); err != nil {
		return translateRepoError(err)
	}
	return nil
}

// DumpSchema returns every declared kind and relation rule.
func (s *Service) DumpSchema(ctx context.Context) (*domain.SchemaDump, error) {
	dump, err := s.repo.DumpSchema(ctx)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return dump, nil
}

// PushSchema additively merges a schema dump. Identities that already exist
// keep their original declaration (first write wins); the merge is atomic
// and idempotent.
func (s *Service) PushSchema(ctx context.Context, dump domain.SchemaDump) error {
	for i := range dump.Kinds {
		if dump.Kinds[i].Schema == nil {
			dump.Kinds[i].Schema = map[string]interface{}{}
		}
		if err := schema.CheckSchema(dump.Kinds[i].Schema); err != nil {
			return err
		}
	}

	if err := s.repo.MergeSchema(ctx, dump); err != nil {
		return translateRepoError(err)
	}
	s.logger.Info("schema merged",
		zap.Int("kinds", len(dump.Kinds)),
		zap.Int("edges_kinds", len(dump.EdgeKinds)))
	return nil
}

// Reset wipes the whole store: every kind, rule, node, edge, and attachment,
// including attachment files. Deletion-safety checks do not apply.
func (s *Service) Reset(ctx context.Context) error {
	filePaths, err := s.repo.Reset(ctx)
	if err != nil {
		return translateRepoError(err)
	}

	// Rows are gone; file removal is best effort.
	for _, path := range filePaths {
		if err := s.blobs.Delete(ctx, path); err != nil {
			s.logger.Warn("failed to remove attachment file during reset",
				zap.String("path", path), zap.Error(err))
		}
	}

	s.logger.Info("store reset", zap.Int("attachment_files", len(filePaths)))
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
