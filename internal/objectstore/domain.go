// Package objectstore abstracts the billing-side object service. Objects are
// addressed by a store-assigned integer artifact id; fields are addressed by
// stable GUIDs supplied through the field map, never compiled in.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FieldRef identifies a field in the remote store.
type FieldRef = uuid.UUID

// FieldValue pairs a field ref with the value to write.
type FieldValue struct {
	Field FieldRef `json:"field"`
	Value any      `json:"value"`
}

// Operator is a query comparison operator.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
	OpIn  Operator = "in"
)

// Clause is one comparison in a query condition.
type Clause struct {
	Field FieldRef `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value"`
}

// Condition is a conjunction of clauses; empty matches every object.
type Condition []Clause

// Where starts a condition with a single clause.
func Where(field FieldRef, op Operator, value any) Condition {
	return Condition{{Field: field, Op: op, Value: value}}
}

// And appends a clause.
func (c Condition) And(field FieldRef, op Operator, value any) Condition {
	return append(c, Clause{Field: field, Op: op, Value: value})
}

// Row is one object returned by Query, with values keyed by field GUID.
type Row struct {
	ArtifactID int            `json:"artifactId"`
	Values     map[string]any `json:"values"`
}

// Value returns the row's value for a field ref, if present.
func (r Row) Value(field FieldRef) (any, bool) {
	v, ok := r.Values[field.String()]
	return v, ok
}

// MassUpdateBehavior selects how the store treats per-object validation
// failures inside one mass call.
type MassUpdateBehavior string

const (
	// MassUpdateContinueOnFailure applies the update to every object that
	// passes validation and reports the ones that did not.
	MassUpdateContinueOnFailure MassUpdateBehavior = "continue"
	// MassUpdateAllOrNothing rejects the whole batch on any failure.
	MassUpdateAllOrNothing MassUpdateBehavior = "all_or_nothing"
)

// MassUpdateResult reports the outcome of a mass update.
type MassUpdateResult struct {
	Success  bool     `json:"success"`
	Failures []string `json:"failures,omitempty"`
}

// ErrorKind classifies store failures so retry and verification logic can
// branch on the kind instead of string matching.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindRejected   ErrorKind = "rejected"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
)

// Error is the explicit result-style error for every store operation.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("objectstore: %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("objectstore: %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind, defaulting to transport for foreign errors.
func KindOf(err error) ErrorKind {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return KindTransport
}

// Store is the capability surface the coordinator and extractor depend on.
// Deletes and creates are only eventually visible to Query; callers confirm
// them with bounded polling rather than assuming read-after-write.
type Store interface {
	Create(ctx context.Context, objectType int, values []FieldValue) (int, error)
	Update(ctx context.Context, artifactID int, values []FieldValue) error
	Delete(ctx context.Context, artifactID int) error
	MassUpdate(ctx context.Context, artifactIDs []int, values []FieldValue, behavior MassUpdateBehavior) (MassUpdateResult, error)
	Query(ctx context.Context, objectType int, cond Condition) ([]Row, error)
}
