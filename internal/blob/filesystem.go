package blob

import (
	"targetprep/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed Store rooted at the provided path.
// Keys are paths relative to root, so with root "." configured dataset paths
// behave like ordinary relative file paths.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
