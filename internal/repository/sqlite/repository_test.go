package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/search"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	repo, err := New(ctx, filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func seedKinds(t *testing.T, repo *Repository, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, repo.CreateKind(context.Background(), domain.Kind{
			Name:   name,
			Schema: map[string]interface{}{},
		}))
	}
}

func newNode(id, kind string, payload map[string]interface{}) domain.Node {
	now := time.Now().UTC()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return domain.Node{ID: id, Kind: kind, Payload: payload, CreatedAt: now, UpdatedAt: now}
}

func TestSchemaReady(t *testing.T) {
	ctx := context.Background()

	repo, err := New(ctx, filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer repo.Close()

	ready, err := repo.SchemaReady(ctx)
	require.NoError(t, err)
	assert.False(t, ready, "fresh database should not report a ready schema")

	require.NoError(t, repo.EnsureSchema(ctx))

	ready, err = repo.SchemaReady(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	tables, err := repo.UserTables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"kinds", "edges_kinds", "nodes", "edges", "attachments"}, tables)
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	conn1, err := repo.db.Conn(ctx)
	require.NoError(t, err)
	defer conn1.Close()
	conn2, err := repo.db.Conn(ctx)
	require.NoError(t, err)
	defer conn2.Close()

	for i, conn := range []*sql.Conn{conn1, conn2} {
		var fk int
		require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
		assert.Equal(t, 1, fk, "connection %d must enforce foreign keys", i+1)

		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d must have the busy timeout", i+1)
	}

	// An orphan insert must hit the foreign key regardless of which pooled
	// connection runs it.
	for i, conn := range []*sql.Conn{conn1, conn2} {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO nodes (id, kind, payload, created_at, updated_at)
			 VALUES (?, 'ghost', '{}', '', '')`, fmt.Sprintf("orphan-%d", i))
		assert.True(t, isForeignKeyViolation(err),
			"connection %d accepted a node with an undeclared kind", i+1)
	}

	var orphans int
	require.NoError(t, repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE kind = 'ghost'`).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestKindLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name"},
	}

	t.Run("create and fetch", func(t *testing.T) {
		require.NoError(t, repo.CreateKind(ctx, domain.Kind{Name: "person", Schema: schema}))

		got, err := repo.GetKind(ctx, "person")
		require.NoError(t, err)
		assert.Equal(t, "person", got.Name)
		assert.Equal(t, "object", got.Schema["type"])
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		err := repo.CreateKind(ctx, domain.Kind{Name: "person", Schema: schema})
		assert.True(t, repository.IsConflict(err))
	})

	t.Run("unknown kind not found", func(t *testing.T) {
		_, err := repo.GetKind(ctx, "ghost")
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("list is ordered", func(t *testing.T) {
		seedKinds(t, repo, "animal")
		kinds, err := repo.ListKinds(ctx)
		require.NoError(t, err)
		require.Len(t, kinds, 2)
		assert.Equal(t, "animal", kinds[0].Name)
		assert.Equal(t, "person", kinds[1].Name)
	})

	t.Run("delete blocked by nodes", func(t *testing.T) {
		require.NoError(t, repo.CreateNode(ctx, newNode("n1", "animal", nil)))

		err := repo.DeleteKind(ctx, "animal")
		assert.True(t, repository.IsConflict(err))

		_, err = repo.GetKind(ctx, "animal")
		require.NoError(t, err, "blocked delete must leave the kind in place")
	})

	t.Run("delete cascades edge kinds", func(t *testing.T) {
		require.NoError(t, repo.CreateEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "person", Relation: "knows",
		}))

		require.NoError(t, repo.DeleteKind(ctx, "person"))

		rules, err := repo.ListEdgeKinds(ctx, repository.EdgeKindFilter{})
		require.NoError(t, err)
		assert.Empty(t, rules)
	})

	t.Run("delete unknown kind not found", func(t *testing.T) {
		err := repo.DeleteKind(ctx, "ghost")
		assert.True(t, repository.IsNotFound(err))
	})
}

func TestEdgeKindLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedKinds(t, repo, "person", "company")

	t.Run("create requires declared kinds", func(t *testing.T) {
		err := repo.CreateEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "ghost", Relation: "haunts",
		})
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("create and duplicate", func(t *testing.T) {
		ek := domain.EdgeKind{FromKind: "person", ToKind: "company", Relation: "works-at"}
		require.NoError(t, repo.CreateEdgeKind(ctx, ek))

		err := repo.CreateEdgeKind(ctx, ek)
		assert.True(t, repository.IsConflict(err))
	})

	t.Run("same pair different relation is distinct", func(t *testing.T) {
		require.NoError(t, repo.CreateEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "company", Relation: "owns",
		}))
	})

	t.Run("progressive filtering", func(t *testing.T) {
		require.NoError(t, repo.CreateEdgeKind(ctx, domain.EdgeKind{
			FromKind: "company", ToKind: "person", Relation: "employs",
		}))

		all, err := repo.ListEdgeKinds(ctx, repository.EdgeKindFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		fromPerson, err := repo.ListEdgeKinds(ctx, repository.EdgeKindFilter{FromKind: "person"})
		require.NoError(t, err)
		assert.Len(t, fromPerson, 2)

		pair, err := repo.ListEdgeKinds(ctx, repository.EdgeKindFilter{FromKind: "company", ToKind: "person"})
		require.NoError(t, err)
		require.Len(t, pair, 1)
		assert.Equal(t, "employs", pair[0].Relation)

		_, err = repo.GetEdgeKind(ctx, "company", "person", "employs")
		require.NoError(t, err)

		_, err = repo.GetEdgeKind(ctx, "company", "person", "fires")
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("delete blocked by live edges", func(t *testing.T) {
		require.NoError(t, repo.CreateNode(ctx, newNode("p1", "person", nil)))
		require.NoError(t, repo.CreateNode(ctx, newNode("c1", "company", nil)))
		require.NoError(t, repo.CreateEdge(ctx, domain.Edge{
			FromID: "p1", ToID: "c1", Relation: "works-at", CreatedAt: time.Now(),
		}))

		err := repo.DeleteEdgeKind(ctx, "person", "company", "works-at")
		assert.True(t, repository.IsConflict(err))

		require.NoError(t, repo.DeleteEdge(ctx, "p1", "c1", "works-at"))
		require.NoError(t, repo.DeleteEdgeKind(ctx, "person", "company", "works-at"))
	})
}

func TestNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedKinds(t, repo, "person")

	t.Run("create requires declared kind", func(t *testing.T) {
		err := repo.CreateNode(ctx, newNode("n1", "ghost", nil))
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("create and fetch round trip", func(t *testing.T) {
		node := newNode("n1", "person", map[string]interface{}{"name": "ada", "age": float64(36)})
		require.NoError(t, repo.CreateNode(ctx, node))

		got, err := repo.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "person", got.Kind)
		assert.Equal(t, "ada", got.Payload["name"])
		assert.Equal(t, float64(36), got.Payload["age"])
		assert.WithinDuration(t, node.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("update payload bumps updated_at", func(t *testing.T) {
		got, err := repo.GetNode(ctx, "n1")
		require.NoError(t, err)

		updated := *got
		updated.Payload = map[string]interface{}{"name": "ada lovelace"}
		updated.UpdatedAt = got.UpdatedAt.Add(time.Second)
		require.NoError(t, repo.UpdateNodePayload(ctx, updated))

		after, err := repo.GetNode(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "ada lovelace", after.Payload["name"])
		assert.NotContains(t, after.Payload, "age")
		assert.True(t, after.UpdatedAt.After(got.UpdatedAt))
		assert.Equal(t, got.CreatedAt, after.CreatedAt)
	})

	t.Run("update unknown node not found", func(t *testing.T) {
		err := repo.UpdateNodePayload(ctx, newNode("ghost", "person", nil))
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("delete cascades edges and attachments", func(t *testing.T) {
		require.NoError(t, repo.CreateNode(ctx, newNode("n2", "person", nil)))
		require.NoError(t, repo.CreateEdgeKind(ctx, domain.EdgeKind{
			FromKind: "person", ToKind: "person", Relation: "knows",
		}))
		require.NoError(t, repo.CreateEdge(ctx, domain.Edge{
			FromID: "n1", ToID: "n2", Relation: "knows", CreatedAt: time.Now(),
		}))
		require.NoError(t, repo.CreateAttachment(ctx, domain.Attachment{
			ID: "a1", NodeID: "n2", MimeType: "text/plain", Name: "notes.txt",
			FilePath: "n2/a1", CreatedAt: time.Now(),
		}))

		paths, err := repo.DeleteNode(ctx, "n2")
		require.NoError(t, err)
		assert.Equal(t, []string{"n2/a1"}, paths)

		_, err = repo.GetNode(ctx, "n2")
		assert.True(t, repository.IsNotFound(err))

		incoming, err := repo.IncomingEdges(ctx, "n2")
		require.NoError(t, err)
		assert.Empty(t, incoming)

		outgoing, err := repo.OutgoingEdges(ctx, "n1")
		require.NoError(t, err)
		assert.Empty(t, outgoing)
	})

	t.Run("delete unknown node not found", func(t *testing.T) {
		_, err := repo.DeleteNode(ctx, "ghost")
		assert.True(t, repository.IsNotFound(err))
	})
}

func TestEdgeLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedKinds(t, repo, "person", "company")
	require.NoError(t, repo.CreateEdgeKind(ctx, domain.EdgeKind{
		FromKind: "person", ToKind: "company", Relation: "works-at",
	}))
	require.NoError(t, repo.CreateNode(ctx, newNode("p1", "person", nil)))
	require.NoError(t, repo.CreateNode(ctx, newNode("p2", "person", nil)))
	require.NoError(t, repo.CreateNode(ctx, newNode("c1", "company", nil)))

	t.Run("unknown endpoint not found", func(t *testing.T) {
		err := repo.CreateEdge(ctx, domain.Edge{FromID: "ghost", ToID: "c1", Relation: "works-at"})
		assert.True(t, repository.IsNotFound(err))

		err = repo.CreateEdge(ctx, domain.Edge{FromID: "p1", ToID: "ghost", Relation: "works-at"})
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("undeclared relation forbidden", func(t *testing.T) {
		err := repo.CreateEdge(ctx, domain.Edge{FromID: "p1", ToID: "p2", Relation: "works-at"})
		assert.True(t, repository.IsForbiddenRelation(err))

		err = repo.CreateEdge(ctx, domain.Edge{FromID: "c1", ToID: "p1", Relation: "works-at"})
		assert.True(t, repository.IsForbiddenRelation(err), "rule direction matters")
	})

	t.Run("create and duplicate", func(t *testing.T) {
		edge := domain.Edge{FromID: "p1", ToID: "c1", Relation: "works-at", CreatedAt: time.Now()}
		require.NoError(t, repo.CreateEdge(ctx, edge))

		err := repo.CreateEdge(ctx, edge)
		assert.True(t, repository.IsConflict(err))
	})

	t.Run("adjacency queries", func(t *testing.T) {
		require.NoError(t, repo.CreateEdge(ctx, domain.Edge{
			FromID: "p2", ToID: "c1", Relation: "works-at", CreatedAt: time.Now(),
		}))

		out, err := repo.OutgoingEdges(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "c1", out[0].ToID)

		in, err := repo.IncomingEdges(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, in, 2)

		between, err := repo.EdgesBetween(ctx, "p1", "c1")
		require.NoError(t, err)
		require.Len(t, between, 1)
		assert.Equal(t, "works-at", between[0].Relation)

		none, err := repo.EdgesBetween(ctx, "c1", "p1")
		require.NoError(t, err)
		assert.Empty(t, none, "direction matters")

		ghost, err := repo.OutgoingEdges(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, ghost, "unknown node yields empty list, not an error")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteEdge(ctx, "p1", "c1", "works-at"))

		err := repo.DeleteEdge(ctx, "p1", "c1", "works-at")
		assert.True(t, repository.IsNotFound(err))
	})
}

func TestAttachmentLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedKinds(t, repo, "person")
	require.NoError(t, repo.CreateNode(ctx, newNode("p1", "person", nil)))

	t.Run("unknown node not found", func(t *testing.T) {
		err := repo.CreateAttachment(ctx, domain.Attachment{
			ID: "a1", NodeID: "ghost", MimeType: "text/plain", Name: "x",
			FilePath: "ghost/a1", CreatedAt: time.Now(),
		})
		assert.True(t, repository.IsNotFound(err))
	})

	t.Run("create fetch list delete", func(t *testing.T) {
		att := domain.Attachment{
			ID: "a1", NodeID: "p1", MimeType: "image/png", Name: "portrait.png",
			FilePath: "p1/a1", CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, repo.CreateAttachment(ctx, att))

		got, err := repo.GetAttachment(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "image/png", got.MimeType)
		assert.Equal(t, "p1/a1", got.FilePath)

		list, err := repo.ListAttachments(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		deleted, err := repo.DeleteAttachment(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "p1/a1", deleted.FilePath)

		_, err = repo.GetAttachment(ctx, "a1")
		assert.True(t, repository.IsNotFound(err))
	})
}

func TestSearchNodes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedKinds(t, repo, "person", "company")
	require.NoError(t, repo.CreateNode(ctx, newNode("p1", "person", map[string]interface{}{"name": "alpha-1"})))
	require.NoError(t, repo.CreateNode(ctx, newNode("p2", "person", map[string]interface{}{"name": "beta-2"})))
	require.NoError(t, repo.CreateNode(ctx, newNode("c1", "company", map[string]interface{}{"name": "alpha-corp"})))

	t.Run("kind filter", func(t *testing.T) {
		nodes, err := repo.SearchNodes(ctx, []string{"person"}, nil, 0)
		require.NoError(t, err)
		assert.Len(t, nodes, 2)
	})

	t.Run("predicate filter", func(t *testing.T) {
		match := search.Translate(map[string]interface{}{"name": "*alpha*"})

		nodes, err := repo.SearchNodes(ctx, nil, match, 0)
		require.NoError(t, err)
		assert.Len(t, nodes, 2)

		nodes, err = repo.SearchNodes(ctx, []string{"person"}, match, 0)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "p1", nodes[0].ID)
	})

	t.Run("limit caps results", func(t *testing.T) {
		nodes, err := repo.SearchNodes(ctx, nil, nil, 2)
		require.NoError(t, err)
		assert.Len(t, nodes, 2)
	})
}

func TestMergeSchema(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	dump := domain.SchemaDump{
		Kinds: []domain.Kind{
			{Name: "person", Schema: map[string]interface{}{"type": "object"}},
			{Name: "company", Schema: map[string]interface{}{}},
		},
		EdgeKinds: []domain.EdgeKind{
			{FromKind: "person", ToKind: "company", Relation: "works-at"},
		},
	}
	require.NoError(t, repo.MergeSchema(ctx, dump))

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.DumpSchema(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Kinds, 2)
		assert.Len(t, got.EdgeKinds, 1)
	})

	t.Run("merge is idempotent and first write wins", func(t *testing.T) {
		altered := domain.SchemaDump{
			Kinds: []domain.Kind{
				{Name: "person", Schema: map[string]interface{}{"type": "string"}},
			},
		}
		require.NoError(t, repo.MergeSchema(ctx, altered))

		kind, err := repo.GetKind(ctx, "person")
		require.NoError(t, err)
		assert.Equal(t, "object", kind.Schema["type"], "existing declaration must survive")
	})

	t.Run("edge kind referencing unknown kind fails whole merge", func(t *testing.T) {
		bad := domain.SchemaDump{
			Kinds: []domain.Kind{{Name: "animal", Schema: map[string]interface{}{}}},
			EdgeKinds: []domain.EdgeKind{
				{FromKind: "animal", ToKind: "ghost", Relation: "haunts"},
			},
		}
		err := repo.MergeSchema(ctx, bad)
		assert.True(t, repository.IsNotFound(err))

		_, err = repo.GetKind(ctx, "animal")
		assert.True(t, repository.IsNotFound(err), "failed merge must roll back entirely")
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedKinds(t, repo, "person")
	require.NoError(t, repo.CreateEdgeKind(ctx, domain.EdgeKind{
		FromKind: "person", ToKind: "person", Relation: "knows",
	}))
	require.NoError(t, repo.CreateNode(ctx, newNode("p1", "person", nil)))
	require.NoError(t, repo.CreateNode(ctx, newNode("p2", "person", nil)))
	require.NoError(t, repo.CreateEdge(ctx, domain.Edge{
		FromID: "p1", ToID: "p2", Relation: "knows", CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.CreateAttachment(ctx, domain.Attachment{
		ID: "a1", NodeID: "p1", MimeType: "text/plain", Name: "x",
		FilePath: "p1/a1", CreatedAt: time.Now(),
	}))

	paths, err := repo.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1/a1"}, paths)

	kinds, err := repo.ListKinds(ctx)
	require.NoError(t, err)
	assert.Empty(t, kinds)

	nodes, err := repo.SearchNodes(ctx, nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
