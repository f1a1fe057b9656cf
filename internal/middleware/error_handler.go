package middleware

import (
	"github.com/technicaldee/locallift/internal/pkg/apperr"
	"github.com/technicaldee/locallift/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Coded ledger errors map to their
// HTTP status; everything else is a 500 in the standard error format.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if code := apperr.CodeOf(err); code != "" {
		if code == apperr.CodeInvariantViolation {
			log.Error().Str("trace_id", GetTraceID(c)).Err(err).Msg("custody invariant violation")
		}
		return response.ErrorCoded(c, err.Error(), string(code), apperr.HTTPStatus(code), nil)
	}

	statusCode := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		statusCode = e.Code
		message = e.Message
	}
	return response.Error(c, message, statusCode, nil)
}
