// Package domain defines the normalized snapshot rows the reconciler
// consumes. A Record is immutable once extracted; both stores project into
// the same shape so classification is a plain set operation.
package domain

import "time"

// EntityKind names the four reconciled entity types.
type EntityKind string

const (
	KindClient    EntityKind = "client"
	KindMatter    EntityKind = "matter"
	KindWorkspace EntityKind = "workspace"
	KindUser      EntityKind = "user"
)

// Record is one entity row from one store at one point in time.
//
// SourceKey is the natural key used to match records across stores: the
// client or matter number, the source artifact id for workspaces, the email
// for users. ArtifactID is the store-local id and never crosses stores.
type Record struct {
	ArtifactID int
	SourceKey  string

	Name      string
	Number    string
	CreatedBy string
	CreatedOn *time.Time
	CaseTeam  string
	Analyst   string
	Status    string
}

// Snapshot bundles one store's records for every entity kind.
type Snapshot struct {
	Clients    []Record
	Matters    []Record
	Workspaces []Record
	Users      []Record
}

// ByKind returns the records for one entity kind.
func (s Snapshot) ByKind(kind EntityKind) []Record {
	switch kind {
	case KindClient:
		return s.Clients
	case KindMatter:
		return s.Matters
	case KindWorkspace:
		return s.Workspaces
	case KindUser:
		return s.Users
	}
	return nil
}

// PageCount is the locally computed per-matter imaging aggregate for one
// billing period. It feeds the aggregator alongside the external report.
type PageCount struct {
	MatterArtifactID int
	DateKey          string
	Pages            int64
	Images           int64
}
