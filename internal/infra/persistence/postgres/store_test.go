package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"geomodel/internal/infra/persistence/postgres/testutil"
	"geomodel/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.Execs)
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	if _, ok, err := store.LoadSnapshot(ctx); err != nil || ok {
		t.Fatalf("expected empty table, ok=%v err=%v", ok, err)
	}
	snap := domain.Snapshot{SchemaVersion: domain.SnapshotSchemaVersion, Project: "demo", Revision: 1}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap.Revision = 2
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if rows := len(conn.Tables["state"]); rows != 9 {
		t.Fatalf("expected one row per bucket, got %d", rows)
	}
	got, ok, err := store.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Revision != 2 || got.Project != "demo" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestSaveSnapshotErrors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*testutil.StubConn)
		want  string
	}{
		{name: "begin", setup: func(c *testutil.StubConn) { c.FailBegin = true }, want: "begin tx"},
		{name: "exec", setup: func(c *testutil.StubConn) { c.FailExec = true }, want: "upsert meta"},
		{name: "commit", setup: func(c *testutil.StubConn) { c.FailCommit = true }, want: "commit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, conn := openStub(t)
			tc.setup(conn)
			err := store.SaveSnapshot(context.Background(), domain.Snapshot{})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadSnapshotRowsError(t *testing.T) {
	store, conn := openStub(t)
	if err := store.SaveSnapshot(context.Background(), domain.Snapshot{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	conn.RowsErr = errors.New("boom")
	if _, _, err := store.LoadSnapshot(context.Background()); err == nil || !strings.Contains(err.Error(), "iterate state") {
		t.Fatalf("expected iterate error, got %v", err)
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restorePing := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restorePing()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}
