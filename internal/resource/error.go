package resource

import "errors"

// Error definitions for the resource package.
var (
	ErrNoSources    = errors.New("no sources given")
	ErrUnknownAsset = errors.New("asset not found in asset table")
	ErrUnknownKind  = errors.New("unsupported source kind")
)

// errInterrupted marks a download stopped by Pause or Cancel. Fetch turns it
// into an empty result.
var errInterrupted = errors.New("download interrupted")
