package echoshell

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/nav"
	apisvc "github.com/trezcool/masomo-console/services/api"
)

type rejectRequest struct {
	Reason string `json:"reason" form:"reason"`
}

func registerUserAPI(g *echo.Group, s *Server) {
	h := userHandler{s: s}
	usersGate := admissionMiddleware(s.sessions, nav.RouteUsers)
	approvalsGate := admissionMiddleware(s.sessions, nav.RoutePendingApprovals)

	g.GET("/users", h.list, usersGate)
	g.GET("/users/pending", h.pending, approvalsGate)
	g.POST("/users/:id/approve", h.approve, approvalsGate)
	g.POST("/users/:id/reject", h.reject, approvalsGate)
	g.POST("/users/:id/toggle-active", h.toggleActive, approvalsGate)
}

type userHandler struct {
	s *Server
}

func userID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "a user id is required"})
	}
	return id, nil
}

func (h userHandler) list(ctx echo.Context) error {
	page, err := h.s.opts.Auth.ListUsers(ctx.Request().Context(), ctx.QueryParams())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (h userHandler) pending(ctx echo.Context) error {
	users, err := h.s.opts.Auth.PendingApprovals(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (h userHandler) approve(ctx echo.Context) error {
	id, err := userID(ctx)
	if err != nil {
		return err
	}
	resp, err := h.s.opts.Auth.Approve(ctx.Request().Context(), id)
	return h.respond(ctx, resp, err)
}

func (h userHandler) reject(ctx echo.Context) error {
	id, err := userID(ctx)
	if err != nil {
		return err
	}
	var data rejectRequest
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	resp, err := h.s.opts.Auth.Reject(ctx.Request().Context(), id, data.Reason)
	return h.respond(ctx, resp, err)
}

func (h userHandler) toggleActive(ctx echo.Context) error {
	id, err := userID(ctx)
	if err != nil {
		return err
	}
	resp, err := h.s.opts.Auth.ToggleActive(ctx.Request().Context(), id)
	return h.respond(ctx, resp, err)
}

func (h userHandler) respond(ctx echo.Context, resp apisvc.ApprovalResponse, err error) error {
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}
