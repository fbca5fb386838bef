package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/hackreg/internal/auth"
	"github.com/yakoovad/hackreg/pkg/logger"
	"go.uber.org/zap"
)

const (
	claimsKey = "claims"
	bearer    = "Bearer "
)

func ZapLoggerMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := res.Header().Get(echo.HeaderXRequestID)

			reqLogger := l.With(
				zap.String("request_id", requestID),
			)

			ctx := logger.WithLogger(req.Context(), reqLogger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// resolve the status before logging it
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Int64("bytes_out", res.Size),
			}

			switch {
			case res.Status >= http.StatusInternalServerError:
				fields = append(fields, zap.Error(err))
				reqLogger.Error("request failed", fields...)
			case err != nil:
				fields = append(fields, zap.Error(err))
				reqLogger.Info("request rejected", fields...)
			default:
				reqLogger.Info("request completed", fields...)
			}

			return nil
		}
	}
}

// AuthMiddleware accepts requests carrying a bearer token of one of the allowed types.
func AuthMiddleware(signer *auth.Signer, allowed ...auth.TokenType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logger.FromContext(c.Request().Context())

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearer) {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := signer.Authorize(strings.TrimPrefix(header, bearer), allowed...)
			if err != nil {
				l.Warn("token rejected", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

func RateLimitMiddleware(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.FromContext(c.Request().Context()).Warn("rate limit exceeded", zap.String("client", identifier))
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	})
}
