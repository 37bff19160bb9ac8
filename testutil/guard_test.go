package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingT struct {
	testing.TB
	msg string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.msg = fmt.Sprintf(format, args...)
}

func TestInternalImportForbidden(t *testing.T) {
	cases := map[string]bool{
		"geomodel/internal/core": true,
		"geomodel/pkg/domain":    false,
		"other/internal/core":    false,
	}
	for in, want := range cases {
		if got := InternalImportForbidden(in); got != want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", in, got, want)
		}
	}
}

func TestPackageForbidden(t *testing.T) {
	forbidden := PackageForbidden("geomodel/internal/core")
	if !forbidden("geomodel/internal/core") || !forbidden("geomodel/internal/core/sub") {
		t.Fatalf("expected package and subpackages to match")
	}
	if forbidden("geomodel/internal/corex") {
		t.Fatalf("prefix without separator must not match")
	}
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package tmp\nimport \"geomodel/internal/core\"\nvar _ = core.X\n")
	writeGo(t, dir, "a_test.go", "package tmp\nimport \"geomodel/internal/solver\"\n")
	if err := os.Mkdir(filepath.Join(dir, "nested.go"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	AssertNoDirectImports(t, dir, PackageForbidden("geomodel/internal/solver"), "test files are skipped")

	rec := &recordingT{TB: t}
	AssertNoDirectImports(rec, dir, InternalImportForbidden, "internal")
	if !strings.Contains(rec.msg, "geomodel/internal/core (in a.go)") {
		t.Fatalf("expected violation, got %q", rec.msg)
	}
}

func TestAssertNoDirectImportsParseError(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "bad.go", "package\n")
	rec := &recordingT{TB: t}
	AssertNoDirectImports(rec, dir, InternalImportForbidden, "parse")
	if !strings.HasPrefix(rec.msg, "read dir") {
		t.Fatalf("expected parse failure to be reported, got %q", rec.msg)
	}
}

func TestAssertNoTransitiveDependencyUsesLoader(t *testing.T) {
	orig := loadDeps
	defer func() { loadDeps = orig }()
	loadDeps = func(string, string) ([]string, error) {
		return []string{"fmt", "geomodel/internal/core", "geomodel/pkg/domain"}, nil
	}

	AssertNoTransitiveDependency(t, ".", "./...", PackageForbidden("geomodel/internal/mesh"), "absent")

	rec := &recordingT{TB: t}
	AssertNoTransitiveDependency(rec, ".", "./...", InternalImportForbidden, "internal")
	if !strings.Contains(rec.msg, "geomodel/internal/core") || strings.Contains(rec.msg, "pkg/domain") {
		t.Fatalf("unexpected report %q", rec.msg)
	}
}
