// Package mocks provides an in-memory implementation of the repository
// interfaces for testing services without a real database.
package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/search"
)

type edgeKey struct {
	fromID   string
	toID     string
	relation string
}

type edgeKindKey struct {
	fromKind string
	toKind   string
	relation string
}

// MockRepository is an in-memory repository.Repository. It mirrors the
// deletion-safety and whitelist semantics of the sqlite implementation so
// service tests exercise the same error paths.
type MockRepository struct {
	mu sync.RWMutex

	kinds       map[string]domain.Kind
	edgeKinds   map[edgeKindKey]struct{}
	nodes       map[string]domain.Node
	edges       map[edgeKey]domain.Edge
	attachments map[string]domain.Attachment

	// For testing error scenarios
	shouldFailOn map[string]error
}

var _ repository.Repository = (*MockRepository)(nil)

// NewMockRepository creates an empty mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		kinds:        make(map[string]domain.Kind),
		edgeKinds:    make(map[edgeKindKey]struct{}),
		nodes:        make(map[string]domain.Node),
		edges:        make(map[edgeKey]domain.Edge),
		attachments:  make(map[string]domain.Attachment),
		shouldFailOn: make(map[string]error),
	}
}

// SetError configures the mock to return an error for a specific method.
func (m *MockRepository) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (m *MockRepository) ClearErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFailOn = make(map[string]error)
}

func (m *MockRepository) checkError(method string) error {
	if err, exists := m.shouldFailOn[method]; exists {
		return err
	}
	return nil
}

// Kind operations

func (m *MockRepository) CreateKind(ctx context.Context, kind domain.Kind) error {
	if err := m.checkError("CreateKind"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.kinds[kind.Name]; exists {
		return repository.NewConflict("kind", kind.Name, "already exists")
	}
	m.kinds[kind.Name] = kind
	return nil
}

func (m *MockRepository) GetKind(ctx context.Context, name string) (*domain.Kind, error) {
	if err := m.checkError("GetKind"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	kind, exists := m.kinds[name]
	if !exists {
		return nil, repository.NewNotFound("kind", name)
	}
	return &kind, nil
}

func (m *MockRepository) ListKinds(ctx context.Context) ([]domain.Kind, error) {
	if err := m.checkError("ListKinds"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]domain.Kind, 0, len(m.kinds))
	for _, kind := range m.kinds {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Name < kinds[j].Name })
	return kinds, nil
}

func (m *MockRepository) DeleteKind(ctx context.Context, name string) error {
	if err := m.checkError("DeleteKind"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.kinds[name]; !exists {
		return repository.NewNotFound("kind", name)
	}
	for _, node := range m.nodes {
		if node.Kind == name {
			return repository.NewConflict("kind", name, "nodes of this kind still exist")
		}
	}
	for key := range m.edgeKinds {
		if key.fromKind == name || key.toKind == name {
			delete(m.edgeKinds, key)
		}
	}
	delete(m.kinds, name)
	return nil
}

// Edge-kind operations

func (m *MockRepository) CreateEdgeKind(ctx context.Context, ek domain.EdgeKind) error {
	if err := m.checkError("CreateEdgeKind"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kindName := range []string{ek.FromKind, ek.ToKind} {
		if _, exists := m.kinds[kindName]; !exists {
			return repository.NewNotFound("kind", kindName)
		}
	}
	key := edgeKindKey{ek.FromKind, ek.ToKind, ek.Relation}
	if _, exists := m.edgeKinds[key]; exists {
		return repository.NewConflict("edges-kind", joinID(ek.FromKind, ek.ToKind, ek.Relation), "already exists")
	}
	m.edgeKinds[key] = struct{}{}
	return nil
}

func (m *MockRepository) GetEdgeKind(ctx context.Context, fromKind, toKind, relation string) (*domain.EdgeKind, error) {
	if err := m.checkError("GetEdgeKind"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.edgeKinds[edgeKindKey{fromKind, toKind, relation}]; !exists {
		return nil, repository.NewNotFound("edges-kind", joinID(fromKind, toKind, relation))
	}
	return &domain.EdgeKind{FromKind: fromKind, ToKind: toKind, Relation: relation}, nil
}

func (m *MockRepository) ListEdgeKinds(ctx context.Context, filter repository.EdgeKindFilter) ([]domain.EdgeKind, error) {
	if err := m.checkError("ListEdgeKinds"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []domain.EdgeKind{}
	for key := range m.edgeKinds {
		if filter.FromKind != "" && key.fromKind != filter.FromKind {
			continue
		}
		if filter.ToKind != "" && key.toKind != filter.ToKind {
			continue
		}
		result = append(result, domain.EdgeKind{
			FromKind: key.fromKind, ToKind: key.toKind, Relation: key.relation,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.FromKind != b.FromKind {
			return a.FromKind < b.FromKind
		}
		if a.ToKind != b.ToKind {
			return a.ToKind < b.ToKind
		}
		return a.Relation < b.Relation
	})
	return result, nil
}

func (m *MockRepository) DeleteEdgeKind(ctx context.Context, fromKind, toKind, relation string) error {
	if err := m.checkError("DeleteEdgeKind"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := edgeKindKey{fromKind, toKind, relation}
	if _, exists := m.edgeKinds[key]; !exists {
		return repository.NewNotFound("edges-kind", joinID(fromKind, toKind, relation))
	}
	for edgeID := range m.edges {
		from, fromOK := m.nodes[edgeID.fromID]
		to, toOK := m.nodes[edgeID.toID]
		if fromOK && toOK && edgeID.relation == relation &&
			from.Kind == fromKind && to.Kind == toKind {
			return repository.NewConflict("edges-kind", joinID(fromKind, toKind, relation),
				"edges still instantiate this relation")
		}
	}
	delete(m.edgeKinds, key)
	return nil
}

// Node operations

func (m *MockRepository) CreateNode(ctx context.Context, node domain.Node) error {
	if err := m.checkError("CreateNode"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.kinds[node.Kind]; !exists {
		return repository.NewNotFound("kind", node.Kind)
	}
	if _, exists := m.nodes[node.ID]; exists {
		return repository.NewConflict("node", node.ID, "already exists")
	}
	m.nodes[node.ID] = node
	return nil
}

func (m *MockRepository) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	if err := m.checkError("GetNode"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	node, exists := m.nodes[id]
	if !exists {
		return nil, repository.NewNotFound("node", id)
	}
	return &node, nil
}

func (m *MockRepository) UpdateNodePayload(ctx context.Context, node domain.Node) error {
	if err := m.checkError("UpdateNodePayload"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.nodes[node.ID]
	if !exists {
		return repository.NewNotFound("node", node.ID)
	}
	existing.Payload = node.Payload
	existing.UpdatedAt = node.UpdatedAt
	m.nodes[node.ID] = existing
	return nil
}

func (m *MockRepository) DeleteNode(ctx context.Context, id string) ([]string, error) {
	if err := m.checkError("DeleteNode"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[id]; !exists {
		return nil, repository.NewNotFound("node", id)
	}
	var filePaths []string
	for attID, att := range m.attachments {
		if att.NodeID == id {
			filePaths = append(filePaths, att.FilePath)
			delete(m.attachments, attID)
		}
	}
	for key := range m.edges {
		if key.fromID == id || key.toID == id {
			delete(m.edges, key)
		}
	}
	delete(m.nodes, id)
	return filePaths, nil
}

func (m *MockRepository) SearchNodes(ctx context.Context, kinds []string, match search.Predicate, limit int) ([]domain.Node, error) {
	if err := m.checkError("SearchNodes"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	kindSet := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		kindSet[kind] = struct{}{}
	}

	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := []domain.Node{}
	for _, id := range ids {
		node := m.nodes[id]
		if len(kindSet) > 0 {
			if _, ok := kindSet[node.Kind]; !ok {
				continue
			}
		}
		if match != nil && !match(node.Payload) {
			continue
		}
		results = append(results, node)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Edge operations

func (m *MockRepository) CreateEdge(ctx context.Context, edge domain.Edge) error {
	if err := m.checkError("CreateEdge"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make([]string, 2)
	for i, nodeID := range []string{edge.FromID, edge.ToID} {
		node, exists := m.nodes[nodeID]
		if !exists {
			return repository.NewNotFound("node", nodeID)
		}
		kinds[i] = node.Kind
	}
	if _, ok := m.edgeKinds[edgeKindKey{kinds[0], kinds[1], edge.Relation}]; !ok {
		return repository.ErrForbiddenRelation{
			FromKind: kinds[0], ToKind: kinds[1], Relation: edge.Relation,
		}
	}
	key := edgeKey{edge.FromID, edge.ToID, edge.Relation}
	if _, exists := m.edges[key]; exists {
		return repository.NewConflict("edge", joinID(edge.FromID, edge.ToID, edge.Relation), "already exists")
	}
	m.edges[key] = edge
	return nil
}

func (m *MockRepository) DeleteEdge(ctx context.Context, fromID, toID, relation string) error {
	if err := m.checkError("DeleteEdge"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := edgeKey{fromID, toID, relation}
	if _, exists := m.edges[key]; !exists {
		return repository.NewNotFound("edge", joinID(fromID, toID, relation))
	}
	delete(m.edges, key)
	return nil
}

func (m *MockRepository) OutgoingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	if err := m.checkError("OutgoingEdges"); err != nil {
		return nil, err
	}
	return m.filterEdges(func(e domain.Edge) bool { return e.FromID == nodeID }), nil
}

func (m *MockRepository) IncomingEdges(ctx context.Context, nodeID string) ([]domain.Edge, error) {
	if err := m.checkError("IncomingEdges"); err != nil {
		return nil, err
	}
	return m.filterEdges(func(e domain.Edge) bool { return e.ToID == nodeID }), nil
}

func (m *MockRepository) EdgesBetween(ctx context.Context, fromID, toID string) ([]domain.Edge, error) {
	if err := m.checkError("EdgesBetween"); err != nil {
		return nil, err
	}
	return m.filterEdges(func(e domain.Edge) bool {
		return e.FromID == fromID && e.ToID == toID
	}), nil
}

func (m *MockRepository) filterEdges(keep func(domain.Edge) bool) []domain.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []domain.Edge{}
	for _, edge := range m.edges {
		if keep(edge) {
			result = append(result, edge)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		return joinID(a.FromID, a.ToID, a.Relation) < joinID(b.FromID, b.ToID, b.Relation)
	})
	return result
}

// Attachment operations

func (m *MockRepository) CreateAttachment(ctx context.Context, att domain.Attachment) error {
	if err := m.checkError("CreateAttachment"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[att.NodeID]; !exists {
		return repository.NewNotFound("node", att.NodeID)
	}
	if _, exists := m.attachments[att.ID]; exists {
		return repository.NewConflict("attachment", att.ID, "already exists")
	}
	m.attachments[att.ID] = att
	return nil
}

func (m *MockRepository) GetAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	if err := m.checkError("GetAttachment"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	att, exists := m.attachments[id]
	if !exists {
		return nil, repository.NewNotFound("attachment", id)
	}
	return &att, nil
}

func (m *MockRepository) ListAttachments(ctx context.Context, nodeID string) ([]domain.Attachment, error) {
	if err := m.checkError("ListAttachments"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []domain.Attachment{}
	for _, att := range m.attachments {
		if att.NodeID == nodeID {
			result = append(result, att)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockRepository) DeleteAttachment(ctx context.Context, id string) (*domain.Attachment, error) {
	if err := m.checkError("DeleteAttachment"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	att, exists := m.attachments[id]
	if !exists {
		return nil, repository.NewNotFound("attachment", id)
	}
	delete(m.attachments, id)
	return &att, nil
}

// Bulk schema operations

func (m *MockRepository) DumpSchema(ctx context.Context) (*domain.SchemaDump, error) {
	if err := m.checkError("DumpSchema"); err != nil {
		return nil, err
	}

	kinds, err := m.ListKinds(ctx)
	if err != nil {
		return nil, err
	}
	edgeKinds, err := m.ListEdgeKinds(ctx, repository.EdgeKindFilter{})
	if err != nil {
		return nil, err
	}
	return &domain.SchemaDump{Kinds: kinds, EdgeKinds: edgeKinds}, nil
}

func (m *MockRepository) MergeSchema(ctx context.Context, dump domain.SchemaDump) error {
	if err := m.checkError("MergeSchema"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ek := range dump.EdgeKinds {
		for _, kindName := range []string{ek.FromKind, ek.ToKind} {
			if _, declared := m.kinds[kindName]; declared {
				continue
			}
			found := false
			for _, kind := range dump.Kinds {
				if kind.Name == kindName {
					found = true
					break
				}
			}
			if !found {
				return repository.NewNotFound("kind", kindName)
			}
		}
	}

	for _, kind := range dump.Kinds {
		if _, exists := m.kinds[kind.Name]; !exists {
			m.kinds[kind.Name] = kind
		}
	}
	for _, ek := range dump.EdgeKinds {
		m.edgeKinds[edgeKindKey{ek.FromKind, ek.ToKind, ek.Relation}] = struct{}{}
	}
	return nil
}

func (m *MockRepository) Reset(ctx context.Context) ([]string, error) {
	if err := m.checkError("Reset"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var filePaths []string
	for _, att := range m.attachments {
		filePaths = append(filePaths, att.FilePath)
	}
	sort.Strings(filePaths)

	m.kinds = make(map[string]domain.Kind)
	m.edgeKinds = make(map[edgeKindKey]struct{})
	m.nodes = make(map[string]domain.Node)
	m.edges = make(map[edgeKey]domain.Edge)
	m.attachments = make(map[string]domain.Attachment)
	return filePaths, nil
}

func joinID(parts ...string) string {
	return strings.Join(parts, "/")
}
