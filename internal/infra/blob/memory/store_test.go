package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"geomodel/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"k": "v"}
	if _, err := s.Put(ctx, "a/1", strings.NewReader("one"), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["k"] = "mutated"
	info, rc, err := s.Get(ctx, "a/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "one" || info.Metadata["k"] != "v" {
		t.Fatalf("unexpected blob %q %+v", body, info)
	}
	if _, err := s.Put(ctx, "a/1", strings.NewReader("uno"), core.PutOptions{}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if head, _ := s.Head(ctx, "a/1"); head.Size != 3 || head.Metadata != nil {
		t.Fatalf("unexpected head %+v", head)
	}
	_, _ = s.Put(ctx, "b/2", strings.NewReader("two"), core.PutOptions{})
	list, _ := s.List(ctx, "a/")
	if len(list) != 1 || list[0].Key != "a/1" {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "a/1"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "a/1"); ok {
		t.Fatalf("expected second delete to report missing blob")
	}
	if _, _, err := s.Get(ctx, "a/1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
