package domain

import (
	"testing"

	"geomodel/testutil"
)

// The domain layer is shared by every backend and must stay free of
// implementation packages.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not import internal packages")
	testutil.AssertNoTransitiveDependency(t, ".", ".", testutil.InternalImportForbidden, "domain must not depend on internal packages")
}
