package module

import "github.com/ekisa-team/stylus/internal/errcat"

// Error definitions for the module package.
var (
	// ErrModuleNotLoaded is returned by Forward when no model has been loaded.
	ErrModuleNotLoaded = errcat.New(errcat.ModuleNotLoaded)

	// ErrAcquisitionInterrupted is returned by Load when the fetcher yields no
	// usable path. Its message is "Download interrupted.".
	ErrAcquisitionInterrupted = errcat.New(errcat.DownloadInterrupted)
)
