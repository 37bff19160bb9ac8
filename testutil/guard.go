// Package testutil provides helpers that enforce the package layering of the
// module from tests.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// ModulePath is the import path prefix of this module.
const ModulePath = "geomodel"

// AssertNoTransitiveDependency loads the packages matching pattern from dir
// and fails if any package in their dependency closure satisfies forbidden.
func AssertNoTransitiveDependency(t testing.TB, dir, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	deps, err := loadDeps(dir, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "forbidden transitive dependency detected", reason, filter(deps, forbidden))
}

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import path satisfies forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "forbidden direct imports detected", reason, viols)
}

// InternalImportForbidden matches any import of this module's internal tree.
func InternalImportForbidden(path string) bool {
	return strings.HasPrefix(path, ModulePath+"/internal/")
}

// PackageForbidden returns a predicate matching pkg and its subpackages.
func PackageForbidden(pkg string) func(string) bool {
	return func(path string) bool {
		return path == pkg || strings.HasPrefix(path, pkg+"/")
	}
}

var loadDeps = func(dir, pattern string) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps, Dir: dir}
	roots, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	packages.Visit(roots, nil, func(p *packages.Package) {
		if _, ok := seen[p.PkgPath]; ok {
			return
		}
		seen[p.PkgPath] = struct{}{}
		out = append(out, p.PkgPath)
	})
	sort.Strings(out)
	return out, nil
}

func filter(paths []string, forbidden func(string) bool) []string {
	var viols []string
	for _, p := range paths {
		if forbidden(p) {
			viols = append(viols, p)
		}
	}
	return viols
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("%s (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
