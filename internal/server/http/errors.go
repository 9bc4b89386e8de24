package http

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/stylus/internal/errcat"
	"github.com/ekisa-team/stylus/internal/manager"
)

// toHTTPError maps domain errors onto HTTP status errors.
func toHTTPError(err error) huma.StatusError {
	if errors.Is(err, manager.ErrModelNotFound) {
		return huma.Error404NotFound("model not found", err)
	}
	if errors.Is(err, manager.ErrDownloadControlUnsupported) {
		return huma.Error501NotImplemented("download control not supported", err)
	}

	var e *errcat.Error
	if errors.As(err, &e) {
		switch e.Code {
		case errcat.ModuleNotLoaded:
			return huma.Error409Conflict(e.Error(), err)
		case errcat.DownloadInProgress, errcat.DownloadAlreadyPaused, errcat.DownloadAlreadyActive, errcat.DownloadNotActive:
			return huma.Error409Conflict(e.Error(), err)
		case errcat.DownloadInterrupted:
			return huma.Error503ServiceUnavailable(e.Error(), err)
		case errcat.InvalidUserInput, errcat.InvalidSource, errcat.MissingURI:
			return huma.Error422UnprocessableEntity(e.Error(), err)
		}
	}

	return huma.Error500InternalServerError("internal error", err)
}
