package domain

import "context"

// SnapshotSchemaVersion is bumped whenever the snapshot layout changes.
const SnapshotSchemaVersion = 1

// Snapshot is the serialisable representation of a model's committed state.
type Snapshot struct {
	SchemaVersion  int              `json:"schema_version"`
	Project        string           `json:"project"`
	Revision       uint64           `json:"revision"`
	Pipeline       PipelineState    `json:"pipeline"`
	Series         []Series         `json:"series"`
	Formations     []Formation      `json:"formations"`
	Faults         FaultRelations   `json:"faults"`
	Interfaces     []InterfacePoint `json:"interfaces"`
	Orientations   []Orientation    `json:"orientations"`
	NextInterface  int              `json:"next_interface_index"`
	NextOrient     int              `json:"next_orientation_index"`
	Grid           Grid             `json:"grid"`
	AdditionalData AdditionalData   `json:"additional_data"`
	Solution       *Solution        `json:"solution,omitempty"`
}

// SnapshotPersister durably stores committed snapshots. Implementations are
// called after every successful transaction.
type SnapshotPersister interface {
	LoadSnapshot(ctx context.Context) (Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
	Close() error
}
