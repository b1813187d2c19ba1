package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/newsignal/internal/globaltime"
)

const cronSecretHeader = "X-Cron-Secret"

// requireCronSecret accepts "Authorization: Bearer <secret>" or the
// X-Cron-Secret header.
func (s *Server) requireCronSecret() echo.MiddlewareFunc {
	expected := []byte(s.opts.CronSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := presentedSecret(c.Request())
			if len(expected) == 0 || presented == "" || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				return fail(c, http.StatusUnauthorized, "Unauthorized", nil)
			}
			return next(c)
		}
	}
}

func presentedSecret(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization)); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(cronSecretHeader))
}

// rateLimit keys on the client IP. A limiter backend error lets the request
// through.
func (s *Server) rateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.limiter == nil {
				return next(c)
			}

			decision, err := s.limiter.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				s.logger.Warn().Err(err).Str("remote_ip", c.RealIP()).Msg("rate limiter unavailable")
				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				retryAfter := int(decision.ResetAt.Sub(globaltime.Now()).Seconds()) + 1
				header.Set("Retry-After", strconv.Itoa(max(1, retryAfter)))
				return fail(c, http.StatusTooManyRequests, "Too many requests", nil)
			}
			return next(c)
		}
	}
}
