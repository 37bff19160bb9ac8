package blob

import (
	"context"
	"fmt"
	"os"

	"geomodel/internal/infra/blob/fs"
	"geomodel/internal/infra/blob/memory"
	"geomodel/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend configuration.
type S3Config = s3.Config

// Open selects a Store implementation using environment variables.
//
//	GEOMODEL_BLOB_DRIVER: fs|s3|memory (default fs)
//	GEOMODEL_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	GEOMODEL_BLOB_S3_*: see s3.OpenFromEnv
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("GEOMODEL_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("GEOMODEL_BLOB_FS_ROOT"))
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// NewS3 constructs an S3-backed Store from cfg.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3.New(ctx, cfg)
}
