package source

import (
	"testing"

	"targetprep/testutil"
)

func TestSourceUsesBlobFacade(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InfraImportForbidden, testutil.DriverImportForbidden),
		"sources resolve keys through internal/blob")
}
