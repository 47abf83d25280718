package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rhyolite-backend/internal/blob"
	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/repository/mocks"
	appErrors "rhyolite-backend/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *mocks.MockRepository) {
	t.Helper()
	repo := mocks.NewMockRepository()
	blobs, err := blob.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	return NewService(repo, blobs, zap.NewNop()), repo
}

func TestDeclareKind(t *testing.T) {
	ctx := context.Background()

	t.Run("valid declaration", func(t *testing.T) {
		svc, _ := newTestService(t)

		kind, err := svc.DeclareKind(ctx, "person", map[string]interface{}{"type": "object"})
		require.NoError(t, err)
		assert.Equal(t, "person", kind.Name)
	})

	t.Run("nil schema becomes empty schema", func(t *testing.T) {
		svc, _ := newTestService(t)

		kind, err := svc.DeclareKind(ctx, "anything", nil)
		require.NoError(t, err)
		assert.NotNil(t, kind.Schema)
	})

	t.Run("broken schema rejected", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.DeclareKind(ctx, "broken", map[string]interface{}{"type": 42})
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.DeclareKind(ctx, "person", nil)
		require.NoError(t, err)

		_, err = svc.DeclareKind(ctx, "person", nil)
		assert.True(t, appErrors.IsConflict(err))
	})

	t.Run("storage failure surfaces as storage error", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.SetError("CreateKind", errors.New("disk on fire"))

		_, err := svc.DeclareKind(ctx, "person", nil)
		assert.True(t, appErrors.IsStorage(err))
	})
}

func TestDeleteKind(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.DeclareKind(ctx, "person", nil)
	require.NoError(t, err)

	t.Run("unknown kind", func(t *testing.T) {
		err := svc.DeleteKind(ctx, "ghost")
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("existing kind", func(t *testing.T) {
		require.NoError(t, svc.DeleteKind(ctx, "person"))

		_, err := svc.GetKind(ctx, "person")
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestEdgeKinds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, name := range []string{"person", "company"} {
		_, err := svc.DeclareKind(ctx, name, nil)
		require.NoError(t, err)
	}

	t.Run("declare against unknown kind", func(t *testing.T) {
		_, err := svc.DeclareEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "ghost", Relation: "haunts",
		})
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("declare list and filter", func(t *testing.T) {
		_, err := svc.DeclareEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "company", Relation: "works-at",
		})
		require.NoError(t, err)

		all, err := svc.ListEdgeKinds(ctx, repository.EdgeKindFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)

		none, err := svc.ListEdgeKinds(ctx, repository.EdgeKindFilter{FromKind: "company"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("duplicate triple conflicts", func(t *testing.T) {
		_, err := svc.DeclareEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "company", Relation: "works-at",
		})
		assert.True(t, appErrors.IsConflict(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.DeleteEdgeKind(ctx, "person", "company", "works-at"))

		err := svc.DeleteEdgeKind(ctx, "person", "company", "works-at")
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestPushSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("merge then dump", func(t *testing.T) {
		svc, _ := newTestService(t)

		dump := domain.SchemaDump{
			Kinds: []domain.Kind{
				{Name: "person", Schema: map[string]interface{}{"type": "object"}},
				{Name: "company", Schema: map[string]interface{}{}},
			},
			EdgeKinds: []domain.EdgeKind{
				{FromKind: "person", ToKind: "company", Relation: "works-at"},
			},
		}
		require.NoError(t, svc.PushSchema(ctx, dump))

		got, err := svc.DumpSchema(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Kinds, 2)
		assert.Len(t, got.EdgeKinds, 1)

		// Idempotent.
		require.NoError(t, svc.PushSchema(ctx, dump))
	})

	t.Run("broken schema rejected before merge", func(t *testing.T) {
		svc, _ := newTestService(t)

		err := svc.PushSchema(ctx, domain.SchemaDump{
			Kinds: []domain.Kind{{Name: "broken", Schema: map[string]interface{}{"type": 42}}},
		})
		assert.True(t, appErrors.IsValidation(err))

		got, err := svc.DumpSchema(ctx)
		require.NoError(t, err)
		assert.Empty(t, got.Kinds)
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.DeclareKind(ctx, "person", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))

	got, err := svc.DumpSchema(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Kinds)
}
