package apisvc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/trezcool/masomo-console/core/user"
)

// Approval actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type (
	ApprovalResponse struct {
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}

	UserPage struct {
		Count       int         `json:"count"`
		Next        *string     `json:"next"`
		Previous    *string     `json:"previous"`
		TotalPages  int         `json:"total_pages"`
		CurrentPage int         `json:"current_page"`
		Results     []user.User `json:"results"`
	}

	approveRejectRequest struct {
		Action          string `json:"action"`
		RejectionReason string `json:"rejection_reason,omitempty"`
	}
)

// ListUsers accepts the API's filters (role, search, page...).
func (c *Client) ListUsers(ctx context.Context, query url.Values) (UserPage, error) {
	path := "/api/auth/users/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var page UserPage
	err := c.do(ctx, http.MethodGet, path, nil, &page)
	return page, err
}

func (c *Client) PendingStudents(ctx context.Context) ([]user.User, error) {
	var users []user.User
	err := c.do(ctx, http.MethodGet, "/api/auth/users/pending-students/", nil, &users)
	return users, err
}

func (c *Client) ApproveReject(ctx context.Context, id int, action, reason string) (ApprovalResponse, error) {
	var resp ApprovalResponse
	in := approveRejectRequest{Action: action, RejectionReason: reason}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/auth/users/%d/approve-reject/", id), in, &resp)
	return resp, err
}

func (c *Client) ToggleActive(ctx context.Context, id int) (ApprovalResponse, error) {
	var resp ApprovalResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/auth/users/%d/toggle-active/", id), nil, &resp)
	return resp, err
}
