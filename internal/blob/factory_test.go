package blob

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	cases := []struct {
		name   string
		env    map[string]string
		driver Driver
		errSub string
	}{
		{name: "memory", env: map[string]string{"GEOMODEL_BLOB_DRIVER": "memory"}, driver: DriverMemory},
		{name: "fs", env: map[string]string{"GEOMODEL_BLOB_DRIVER": "fs", "GEOMODEL_BLOB_FS_ROOT": filepath.Join(t.TempDir(), "blobs")}, driver: DriverFilesystem},
		{name: "default is fs", env: map[string]string{"GEOMODEL_BLOB_DRIVER": "", "GEOMODEL_BLOB_FS_ROOT": filepath.Join(t.TempDir(), "blobs")}, driver: DriverFilesystem},
		{name: "s3 without bucket", env: map[string]string{"GEOMODEL_BLOB_DRIVER": "s3", "GEOMODEL_BLOB_S3_BUCKET": ""}, errSub: "GEOMODEL_BLOB_S3_BUCKET"},
		{name: "unknown", env: map[string]string{"GEOMODEL_BLOB_DRIVER": "tape"}, errSub: "unknown blob driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			store, err := Open(context.Background())
			if tc.errSub != "" {
				if err == nil || !strings.Contains(err.Error(), tc.errSub) {
					t.Fatalf("expected error containing %q, got %v", tc.errSub, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.driver {
				t.Fatalf("expected driver %s, got %s", tc.driver, store.Driver())
			}
		})
	}
}
