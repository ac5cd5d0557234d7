package echoshell

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/theme"
	"github.com/trezcool/masomo-console/core/user"
)

type (
	pageData struct {
		Page  string      `json:"page"`
		User  *user.User  `json:"user"`
		Menu  []nav.Entry `json:"menu"`
		Theme theme.Mode  `json:"theme"`
	}

	loginRequest struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}

	themeRequest struct {
		Theme string `json:"theme" form:"theme"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}
)

func (s *Server) render(ctx echo.Context, page string) error {
	data := pageData{
		Page:  page,
		Menu:  []nav.Entry{},
		Theme: s.opts.Themes.Mode(),
	}
	if usr, ok := s.sessions.User(); ok {
		data.User = &usr
		data.Menu = nav.Menu(s.sessions)
	}
	return ctx.JSON(http.StatusOK, data)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, nav.Home())
}

func (s *Server) page(ctx echo.Context) error {
	return s.render(ctx, ctx.Request().URL.Path)
}

func (s *Server) loginPage(ctx echo.Context) error {
	if s.sessions.IsAuthenticated() {
		return ctx.Redirect(http.StatusFound, nav.Home())
	}
	return s.render(ctx, nav.RouteLogin)
}

func (s *Server) login(ctx echo.Context) error {
	var data loginRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if _, err := s.opts.Auth.Login(ctx.Request().Context(), data.Username, data.Password); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusSeeOther, nav.Home())
}

func (s *Server) registerPage(ctx echo.Context) error {
	if s.sessions.IsAuthenticated() {
		return ctx.Redirect(http.StatusFound, nav.Home())
	}
	return s.render(ctx, nav.RouteRegister)
}

func (s *Server) register(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	resp, err := s.opts.Auth.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (s *Server) logout(ctx echo.Context) error {
	s.opts.Auth.Logout(ctx.Request().Context())
	return ctx.Redirect(http.StatusSeeOther, nav.RouteLogin)
}

func (s *Server) menu(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, nav.Menu(s.sessions))
}

func (s *Server) refresh(ctx echo.Context) error {
	if err := s.opts.Auth.Refresh(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: "session refreshed"})
}

func (s *Server) updateProfile(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	usr, err := s.opts.Auth.UpdateProfile(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) changePassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	msg, err := s.opts.Auth.ChangePassword(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) toggleTheme(ctx echo.Context) error {
	s.opts.Themes.Toggle()
	return ctx.JSON(http.StatusOK, themeRequest{Theme: string(s.opts.Themes.Mode())})
}

func (s *Server) setTheme(ctx echo.Context) error {
	var data themeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding theme")
	}
	mode := theme.Mode(data.Theme)
	if !mode.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "theme", Error: "must be light or dark"})
	}
	s.opts.Themes.Set(mode)
	return ctx.JSON(http.StatusOK, themeRequest{Theme: string(s.opts.Themes.Mode())})
}
