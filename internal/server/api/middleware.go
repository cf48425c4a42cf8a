package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/server/auth"
	"github.com/mpereira/finledger/internal/server/models"
)

// identityKey is the fiber.Ctx locals key under which RequireAuth stores the
// verified caller.
const identityKey = "identity"

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
)

// RequireAuth authenticates the request from the session cookie, falling back
// to an Authorization bearer header. Any failure is reported as 401 without
// saying which check failed.
func RequireAuth(secretKey []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(accessTokenCookie)
		if token == "" {
			header := c.Get(fiber.HeaderAuthorization)
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				token = after
			}
		}
		if token == "" {
			return writeError(c, common.ErrUnauthorized)
		}

		identity, err := auth.ParseToken(token, secretKey)
		if err != nil {
			return writeError(c, common.ErrUnauthorized)
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// RequireRoles gates a route to the given roles. It must run after
// RequireAuth.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := identityFromCtx(c)
		if err != nil {
			return writeError(c, err)
		}
		for _, role := range roles {
			if identity.Role == role {
				return c.Next()
			}
		}
		return writeError(c, common.ErrForbidden)
	}
}

func identityFromCtx(c *fiber.Ctx) (*auth.Identity, error) {
	identity, ok := c.Locals(identityKey).(*auth.Identity)
	if !ok || identity == nil {
		return nil, common.ErrUnauthorized
	}
	return identity, nil
}

// PrometheusMiddleware records a counter and latency histogram per request.
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()
		statusCode := c.Response().StatusCode()

		if err != nil {
			var e *fiber.Error
			if errors.As(err, &e) {
				statusCode = e.Code
			} else {
				statusCode = fiber.StatusInternalServerError
			}
		}

		method := c.Method()
		path := c.Route().Path
		statusStr := fmt.Sprintf("%d", statusCode)

		httpRequestTotal.WithLabelValues(method, path, statusStr).Inc()
		httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		return err
	}
}
