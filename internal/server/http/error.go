package http

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/model"
	"github.com/ekisa-team/scribepod/internal/persona"
	"github.com/ekisa-team/scribepod/internal/service"
)

// toHTTPError maps service errors onto huma status errors.
func toHTTPError(msg string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(msg+": timed out", err)
	case errors.Is(err, persona.ErrMalformedOutput):
		return huma.Error502BadGateway(msg+": model returned malformed output", err)
	case errors.Is(err, model.ErrModelNotFound):
		return huma.Error404NotFound("model not found", err)
	case errors.Is(err, model.ErrModelTypeWrong):
		return huma.Error400BadRequest("model cannot serve this request", err)
	case errors.Is(err, model.ErrModelNotLoaded),
		errors.Is(err, service.ErrPersonaNotConfigured),
		errors.Is(err, backend.ErrBackendNotFound):
		return huma.Error503ServiceUnavailable(msg+": service not ready", err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
