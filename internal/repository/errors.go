package repository

import "fmt"

// ErrNotFound represents a resource not found error in the repository layer.
type ErrNotFound struct {
	Resource string // The type of resource (e.g., "node", "kind")
	ID       string // The identifier that was not found
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
}

// IsNotFound checks if an error is a repository not found error.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// ErrConflict represents a conflict error in the repository layer: duplicate
// declarations, duplicate edges, or deletes blocked by live dependents.
type ErrConflict struct {
	Resource string // The type of resource (e.g., "kind", "edge")
	ID       string // The identifier that caused the conflict
	Reason   string // The reason for the conflict
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("conflict with %s '%s': %s", e.Resource, e.ID, e.Reason)
}

// IsConflict checks if an error is a repository conflict error.
func IsConflict(err error) bool {
	_, ok := err.(ErrConflict)
	return ok
}

// ErrForbiddenRelation means a proposed edge's (from-kind, to-kind, relation)
// triple is not declared in the edges-kind table.
type ErrForbiddenRelation struct {
	FromKind string
	ToKind   string
	Relation string
}

func (e ErrForbiddenRelation) Error() string {
	return fmt.Sprintf("relation '%s' from kind '%s' to kind '%s' is not declared",
		e.Relation, e.FromKind, e.ToKind)
}

// IsForbiddenRelation checks if an error is a forbidden relation error.
func IsForbiddenRelation(err error) bool {
	_, ok := err.(ErrForbiddenRelation)
	return ok
}

// NewNotFound creates a new ErrNotFound.
func NewNotFound(resource, id string) ErrNotFound {
	return ErrNotFound{Resource: resource, ID: id}
}

// NewConflict creates a new ErrConflict.
func NewConflict(resource, id, reason string) ErrConflict {
	return ErrConflict{Resource: resource, ID: id, Reason: reason}
}
