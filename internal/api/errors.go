package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/capture"
	"github.com/smazurov/camnode/internal/device"
	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/pkg/evaluator"
	"github.com/smazurov/camnode/pkg/genicam"
)

// toHTTPError maps domain errors onto huma status errors.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr huma.StatusError
	if errors.As(err, &statusErr) {
		return err
	}

	switch {
	case errors.Is(err, camera.ErrInvalidState),
		errors.Is(err, camera.ErrAcquisitionInProgress),
		errors.Is(err, stream.ErrClosed),
		errors.Is(err, stream.ErrAlreadyOwned):
		return huma.Error409Conflict(err.Error())

	case errors.Is(err, genicam.ErrFeatureNotFound),
		errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, device.ErrNoDevices):
		return huma.Error404NotFound(err.Error())

	case errors.Is(err, evaluator.ErrParse):
		return huma.Error400BadRequest(err.Error())

	case errors.Is(err, camera.ErrInvalidArgument),
		errors.Is(err, camera.ErrUnsupportedFormat),
		errors.Is(err, stream.ErrSizeMismatch),
		errors.Is(err, evaluator.ErrUndefinedVariable),
		errors.Is(err, evaluator.ErrDivisionByZero),
		errors.Is(err, evaluator.ErrNotRepresentable),
		errors.Is(err, genicam.ErrTypeMismatch),
		errors.Is(err, genicam.ErrOutOfRange),
		errors.Is(err, genicam.ErrAccessDenied),
		errors.Is(err, capture.ErrUnsupportedFormat):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	return huma.Error500InternalServerError(err.Error())
}

// errNoBuffer is returned when no filled buffer arrived in time.
func errNoBuffer() error {
	return huma.NewError(http.StatusRequestTimeout, "no filled buffer available within timeout")
}
