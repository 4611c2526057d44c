package objectstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store used in development mode and tests. It
// reproduces the store's observable behavior, including the eventual
// consistency window the coordinator must tolerate, via an optional
// visibility lag counter.
type Memory struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*memoryRow

	// Lag delays writes from becoming observable: created rows stay hidden
	// from Query, and deleted rows stay visible, for the given number of
	// Query calls. This mimics the remote store's read-after-write races.
	Lag       int
	lag       map[int]int
	deleteLag map[int]int
}

type memoryRow struct {
	objectType int
	values     map[string]any
	deleted    bool
}

func NewMemory() *Memory {
	return &Memory{
		nextID:    1000,
		rows:      map[int]*memoryRow{},
		lag:       map[int]int{},
		deleteLag: map[int]int{},
	}
}

func (m *Memory) Create(ctx context.Context, objectType int, values []FieldValue) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &Error{Kind: KindTransport, Detail: "create", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.rows[id] = &memoryRow{objectType: objectType, values: toValueMap(values)}
	if m.Lag > 0 {
		m.lag[id] = m.Lag
	}
	return id, nil
}

func (m *Memory) Update(ctx context.Context, artifactID int, values []FieldValue) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTransport, Detail: "update", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[artifactID]
	if !ok || row.deleted {
		return &Error{Kind: KindNotFound, Detail: fmt.Sprintf("artifact %d", artifactID)}
	}
	for k, v := range toValueMap(values) {
		row.values[k] = v
	}
	return nil
}

func (m *Memory) MassUpdate(ctx context.Context, artifactIDs []int, values []FieldValue, behavior MassUpdateBehavior) (MassUpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return MassUpdateResult{}, &Error{Kind: KindTransport, Detail: "mass update", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := MassUpdateResult{Success: true}
	for _, id := range artifactIDs {
		row, ok := m.rows[id]
		if !ok || row.deleted {
			if behavior == MassUpdateAllOrNothing {
				return MassUpdateResult{}, &Error{Kind: KindValidation, Detail: fmt.Sprintf("artifact %d not found", id)}
			}
			result.Failures = append(result.Failures, fmt.Sprintf("artifact %d not found", id))
			continue
		}
		for k, v := range toValueMap(values) {
			row.values[k] = v
		}
	}
	return result, nil
}

func (m *Memory) Query(ctx context.Context, objectType int, cond Condition) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "query", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Row
	for id, row := range m.rows {
		if row.objectType != objectType {
			continue
		}
		if row.deleted {
			remaining, lagged := m.deleteLag[id]
			if !lagged {
				continue
			}
			// Deleted but still visible for a few more reads.
			if remaining > 1 {
				m.deleteLag[id] = remaining - 1
			} else {
				delete(m.deleteLag, id)
			}
		} else if remaining, lagged := m.lag[id]; lagged {
			if remaining > 1 {
				m.lag[id] = remaining - 1
			} else {
				delete(m.lag, id)
			}
			continue
		}
		if !matches(row.values, cond) {
			continue
		}
		values := make(map[string]any, len(row.values))
		for k, v := range row.values {
			values[k] = v
		}
		out = append(out, Row{ArtifactID: id, Values: values})
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, artifactID int) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTransport, Detail: "delete", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[artifactID]
	if !ok || row.deleted {
		return &Error{Kind: KindNotFound, Detail: fmt.Sprintf("artifact %d", artifactID)}
	}
	row.deleted = true
	if m.Lag > 0 {
		m.deleteLag[artifactID] = m.Lag
	}
	return nil
}

func toValueMap(values []FieldValue) map[string]any {
	out := make(map[string]any, len(values))
	for _, fv := range values {
		out[fv.Field.String()] = fv.Value
	}
	return out
}

func matches(values map[string]any, cond Condition) bool {
	for _, clause := range cond {
		have, ok := values[clause.Field.String()]
		switch clause.Op {
		case OpEq:
			if !ok || fmt.Sprint(have) != fmt.Sprint(clause.Value) {
				return false
			}
		case OpNeq:
			if ok && fmt.Sprint(have) == fmt.Sprint(clause.Value) {
				return false
			}
		case OpIn:
			list, isList := clause.Value.([]any)
			if !isList {
				return false
			}
			found := false
			for _, candidate := range list {
				if ok && fmt.Sprint(have) == fmt.Sprint(candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}
