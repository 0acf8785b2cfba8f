package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/handoff-bridge/internal/authguard"
	"github.com/spec-kit/handoff-bridge/internal/dedup"
	"github.com/spec-kit/handoff-bridge/internal/observability"
	"github.com/spec-kit/handoff-bridge/internal/ratelimit"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

const identityKey = "caller_identity"

// RegisterMiddlewares attaches global middlewares such as error handling
// and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(observability.RequestLogger(logger, metrics))
}

// AuthMiddleware verifies request authenticity before any business logic
// runs and stores the caller identity for rate limiting.
func AuthMiddleware(guard *authguard.Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		creds := authguard.Credentials{
			Token:     bearerToken(c),
			Signature: c.Get("X-Signature"),
			Timestamp: c.Get("X-Signature-Timestamp"),
			Body:      c.Body(),
		}
		if err := guard.Verify(creds); err != nil {
			return err
		}
		identity := creds.Token
		if identity == "" {
			identity = c.IP()
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// RateLimitMiddleware bounds throughput per caller identity. Rejections
// carry the fixed retry interval.
func RateLimitMiddleware(limiter ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, _ := c.Locals(identityKey).(string)
		if identity == "" {
			identity = c.IP()
		}
		allowed, err := limiter.Allow(c.UserContext(), identity)
		if err != nil {
			// Limiter backend failure fails open.
			return c.Next()
		}
		if !allowed {
			retryAfter := int(limiter.RetryAfter().Seconds())
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return apperrors.NewRateLimitError(retryAfter)
		}
		return c.Next()
	}
}

// IdempotencyMiddleware replays stored responses for repeated
// Idempotency-Key submissions with an identical payload and rejects key
// reuse with a different payload. Absence of the header disables
// idempotency for the call.
func IdempotencyMiddleware(store dedup.IdempotencyStore, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}

		hash := sha256.Sum256(c.Body())
		payloadHash := hex.EncodeToString(hash[:])

		entry, outcome, err := store.Check(c.UserContext(), key, payloadHash)
		if err != nil {
			// A broken idempotency backend must not block ingest; the
			// request proceeds without replay protection.
			return c.Next()
		}
		switch outcome {
		case dedup.OutcomeHit:
			metrics.RecordIdempotentReplay()
			c.Set("Idempotent-Replay", "true")
			c.Status(entry.StatusCode)
			c.Response().Header.SetContentType(fiber.MIMEApplicationJSON)
			return c.Send(entry.Response)
		case dedup.OutcomeConflict:
			return apperrors.NewIdempotencyError(key)
		}

		if err := c.Next(); err != nil {
			return err
		}
		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			body := make([]byte, len(c.Response().Body()))
			copy(body, c.Response().Body())
			_ = store.Record(c.UserContext(), key, payloadHash, body, status)
		}
		return nil
	}
}

func bearerToken(c *fiber.Ctx) string {
	if token := c.Get("X-Bridge-Token"); token != "" {
		return token
	}
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				}
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}
