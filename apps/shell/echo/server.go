// Package echoshell is the local web front end: it serves the console screens as JSON pages
// behind the admission gate and shares one session with the process.
package echoshell

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/auth"
	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/theme"
	"github.com/trezcool/masomo-console/services/metrics"
)

type (
	Options struct {
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		Auth           *auth.Service
		Themes         *theme.Store
		Marker         *Marker
		Gatherer       prometheus.Gatherer // nil disables /metrics
		Logger         core.Logger
	}

	Server struct {
		opts     Options
		sessions *session.Store
		app      *echo.Echo
	}
)

func NewServer(opts Options) *Server {
	if opts.Marker == nil {
		opts.Marker = NewMarker()
	}
	s := &Server{
		opts:     opts,
		sessions: opts.Auth.Store(),
		app:      echo.New(),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(themeCookieMiddleware(s.opts.Marker))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.sessions)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	s.app.GET(nav.RouteLogin, s.loginPage)
	s.app.POST(nav.RouteLogin, s.login)
	s.app.GET(nav.RouteRegister, s.registerPage)
	s.app.POST(nav.RouteRegister, s.register)
	s.app.POST("/logout", s.logout)

	// theme works with or without a session
	s.app.POST("/api/theme/toggle", s.toggleTheme)
	s.app.PUT("/api/theme", s.setTheme)

	if s.opts.Gatherer != nil {
		s.app.GET("/metrics", echo.WrapHandler(metrics.Handler(s.opts.Gatherer)))
	}

	// screens
	gate := admissionMiddleware(s.sessions, "")
	for _, e := range nav.Entries() {
		s.app.GET(e.Path, s.page, gate)
		s.app.GET(e.Path+"/*", s.page, gate)
	}
	s.app.GET(nav.RouteProfile, s.page, gate)
	s.app.GET(nav.RouteSettings, s.page, gate)

	// actions, each gated by the screen it belongs to
	api := s.app.Group("/api")
	api.GET("/menu", s.menu, admissionMiddleware(s.sessions, nav.Home()))
	api.POST("/refresh", s.refresh, admissionMiddleware(s.sessions, nav.Home()))
	api.PUT("/profile", s.updateProfile, admissionMiddleware(s.sessions, nav.RouteProfile))
	api.POST("/password", s.changePassword, admissionMiddleware(s.sessions, nav.RouteSettings))
	registerUserAPI(api, s)
}

// Start blocks until the server stops; a graceful Stop is not an error.
func (s *Server) Start() error {
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
