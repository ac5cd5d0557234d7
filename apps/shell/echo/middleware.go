package echoshell

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/session"
)

// admissionMiddleware runs the gate on every request of the protected area.
// screen is the console path the route belongs to; an empty screen means the request path itself.
func admissionMiddleware(sessions *session.Store, screen string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			path := screen
			if path == "" {
				path = ctx.Request().URL.Path
			}
			switch nav.Authorize(sessions.IsAuthenticated(), sessions, path) {
			case nav.RedirectToLogin:
				if ctx.Request().Method == http.MethodGet {
					return ctx.Redirect(http.StatusFound, nav.RouteLogin)
				}
				return errHttpUnauthenticated
			case nav.Forbidden:
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
