package blob

import (
	"context"
	"fmt"
)

// Options selects and configures a blob driver. Zero value means a
// filesystem store rooted at the working directory.
type Options struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open returns the Store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
