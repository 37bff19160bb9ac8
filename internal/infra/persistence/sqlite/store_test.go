package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"geomodel/pkg/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "model.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok, err := store.LoadSnapshot(ctx); err != nil || ok {
		t.Fatalf("expected empty database, ok=%v err=%v", ok, err)
	}
	snap := domain.Snapshot{
		SchemaVersion: domain.SnapshotSchemaVersion,
		Project:       "demo",
		Revision:      2,
		Pipeline:      domain.StateDataLoaded,
		Interfaces:    []domain.InterfacePoint{{Index: 0, X: 1, Y: 2, Z: 3, Formation: "sand"}},
	}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap.Revision = 3
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.Path() != path {
		t.Fatalf("unexpected path %s", reopened.Path())
	}
	got, ok, err := reopened.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Revision != 3 || got.Project != "demo" || len(got.Interfaces) != 1 || got.Interfaces[0].Z != 3 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestSaveAfterCloseFails(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "model.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = store.DB().Close()
	if err := store.SaveSnapshot(context.Background(), domain.Snapshot{}); err == nil {
		t.Fatalf("expected error on closed database")
	}
}
