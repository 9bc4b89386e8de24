package manager

import "errors"

// Error definitions for the manager package.
var (
	ErrModelNotFound              = errors.New("model not found in registry")
	ErrDownloadControlUnsupported = errors.New("fetcher does not support download control")
)
