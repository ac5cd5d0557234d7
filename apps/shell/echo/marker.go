package echoshell

import (
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-console/core/theme"
)

const themeCookieName = "theme"

// Marker is the web shell's theme marker: every response carries the current mode
// in the `theme` cookie, which pages use to add or remove their `dark` class.
type Marker struct {
	dark atomic.Bool
}

var _ theme.Marker = (*Marker)(nil)

func NewMarker() *Marker { return new(Marker) }

func (m *Marker) SetDark(dark bool) { m.dark.Store(dark) }

func (m *Marker) IsDark() bool { return m.dark.Load() }

func (m *Marker) mode() theme.Mode {
	if m.IsDark() {
		return theme.Dark
	}
	return theme.Light
}

// themeCookieMiddleware writes the cookie right before the header is sent, so a handler
// that toggles the theme is reflected in its own response.
func themeCookieMiddleware(m *Marker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctx.Response().Before(func() {
				ctx.SetCookie(&http.Cookie{
					Name:     themeCookieName,
					Value:    string(m.mode()),
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
				})
			})
			return next(ctx)
		}
	}
}
