package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	NoOp   bool   `json:"noOp,omitempty"`
}

// ErrorHandler renders every error returned by a route as JSON. Domain
// errors map to their HTTP status; anything unclassified is a 500 whose
// cause is logged but not echoed to the caller.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code, body := classify(err)

		log := observability.ContextLogger(logger, c.UserContext())
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request error", fields...)
		} else {
			log.Info("request rejected", fields...)
		}

		return c.Status(code).JSON(body)
	}
}

func classify(err error) (int, errorResponse) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, errorResponse{Error: fiberErr.Message}
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return fiber.StatusConflict, errorResponse{
			Error:  err.Error(),
			Reason: transitionErr.Reason,
			NoOp:   transitionErr.NoOp,
		}
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrConcurrentModification):
		return fiber.StatusConflict, errorResponse{Error: err.Error(), Reason: domain.FailureReason(err)}
	default:
		return fiber.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}
