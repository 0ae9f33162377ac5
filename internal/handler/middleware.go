package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/claim-workflow/internal/domain"
	"github.com/kursadbilgin/claim-workflow/internal/observability"
	"go.uber.org/zap"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

// RateLimiter throttles transition requests per actor.
type RateLimiter interface {
	Allow(ctx context.Context, actorID string) (bool, error)
}

// ActorMiddleware requires the actor headers and stores the actor and the
// request id on the request's user context. The stored role is normalized;
// an unknown role is rejected with 401.
func ActorMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actorID := strings.TrimSpace(c.Get(HeaderActorID))
		rawRole := strings.TrimSpace(c.Get(HeaderActorRole))
		if actorID == "" || rawRole == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "X-Actor-Id and X-Actor-Role headers are required")
		}

		role, err := domain.ParseRoleFromString(rawRole)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("unknown actor role %q", rawRole))
		}

		ctx := observability.WithActor(c.UserContext(), observability.Actor{ID: actorID, Role: role.String()})
		if correlationID := requestCorrelationID(c); correlationID != "" {
			ctx = observability.WithCorrelationID(ctx, correlationID)
		}
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// ThrottleMiddleware rejects with 429 once an actor exceeds its per-second
// budget. A limiter failure lets the request through and is logged.
func ThrottleMiddleware(limiter RateLimiter, metrics *observability.Metrics, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		actor, ok := observability.ActorFromContext(c.UserContext())
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "actor is required")
		}

		allowed, err := limiter.Allow(c.UserContext(), actor.ID)
		if err != nil {
			observability.ContextLogger(logger, c.UserContext()).Warn("rate limiter unavailable, allowing request", zap.Error(err))
			return c.Next()
		}
		if !allowed {
			metrics.IncRateLimited(actor.Role)
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}

func actorFromRequest(c *fiber.Ctx) (string, domain.Role) {
	actor, _ := observability.ActorFromContext(c.UserContext())
	return actor.ID, domain.Role(actor.Role)
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
