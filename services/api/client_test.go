package apisvc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/user"
	"github.com/trezcool/masomo-console/tests"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

type statusRecorder struct{ codes []int }

func (r *statusRecorder) RecordHTTPStatus(code int) { r.codes = append(r.codes, code) }

type request struct {
	method string
	path   string
	query  string
	auth   string
	reqID  string
	body   map[string]interface{}
}

// newTestServer answers every request with status and body, recording what it received.
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]request) {
	var received []request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := request{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			reqID:  r.Header.Get(requestIDHeader),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			if err := json.Unmarshal(data, &req.body); err != nil {
				t.Errorf("request body is not json: %v", err)
			}
		}
		received = append(received, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestClient_Login(t *testing.T) {
	srv, received := newTestServer(t, http.StatusOK, `{
		"access": "acc", "refresh": "ref",
		"user": {"id": 4, "username": "jdoe", "name": "John", "role": "TEACHER", "is_active": true}
	}`)
	rec := new(statusRecorder)
	c := NewClient(Options{BaseURL: srv.URL + "/", Recorder: rec})

	resp, err := c.Login(context.Background(), user.Credentials{Username: "jdoe", Password: "pwd"})
	if assert.NoError(t, err) {
		assert.Equal(t, "acc", resp.Access)
		assert.Equal(t, "ref", resp.Refresh)
		assert.Equal(t, 4, resp.User.ID)
		assert.Equal(t, user.RoleTeacher, resp.User.Role)
	}
	if assert.Len(t, *received, 1) {
		req := (*received)[0]
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/api/auth/auth/login/", req.path)
		assert.Equal(t, "jdoe", req.body["username"])
		assert.Equal(t, "pwd", req.body["password"])
		assert.Empty(t, req.auth, "no token source")
		_, err := uuid.Parse(req.reqID)
		assert.NoError(t, err, "X-Request-ID is a uuid")
	}
	assert.Equal(t, []int{http.StatusOK}, rec.codes)
}

func TestClient_Endpoints(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   map[string]interface{}
	}{
		{
			name:       "logout",
			call:       func(c *Client) error { return c.Logout(context.Background(), "ref") },
			wantMethod: http.MethodPost,
			wantPath:   "/api/auth/auth/logout/",
			wantBody:   map[string]interface{}{"refresh": "ref"},
		},
		{
			name:       "register",
			wantMethod: http.MethodPost,
			wantPath:   "/api/auth/auth/register/student/",
			call: func(c *Client) error {
				_, err := c.Register(context.Background(), user.NewStudent{Username: "kid", Password: "p", PasswordConfirm: "p", Name: "Kid", Gender: "female"})
				return err
			},
		},
		{
			name:       "me",
			call:       func(c *Client) error { _, err := c.Me(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/api/auth/auth/me/",
		},
		{
			name: "update profile",
			call: func(c *Client) error {
				_, err := c.UpdateProfile(context.Background(), user.UpdateProfile{Name: "New"})
				return err
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/auth/auth/update_profile/",
			wantBody:   map[string]interface{}{"name": "New"},
		},
		{
			name: "change password",
			call: func(c *Client) error {
				_, err := c.ChangePassword(context.Background(), user.ChangePassword{OldPassword: "a", NewPassword: "b", NewPasswordConfirm: "b"})
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/auth/auth/change_password/",
			wantBody:   map[string]interface{}{"old_password": "a", "new_password": "b", "new_password_confirm": "b"},
		},
		{
			name: "list users",
			call: func(c *Client) error {
				_, err := c.ListUsers(context.Background(), url.Values{"role": {"TEACHER"}})
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/api/auth/users/",
			wantQuery:  "role=TEACHER",
		},
		{
			name:       "pending students",
			call:       func(c *Client) error { _, err := c.PendingStudents(context.Background()); return err },
			wantMethod: http.MethodGet,
			wantPath:   "/api/auth/users/pending-students/",
		},
		{
			name: "reject",
			call: func(c *Client) error {
				_, err := c.ApproveReject(context.Background(), 9, ActionReject, "duplicate")
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/auth/users/9/approve-reject/",
			wantBody:   map[string]interface{}{"action": "reject", "rejection_reason": "duplicate"},
		},
		{
			name: "approve",
			call: func(c *Client) error {
				_, err := c.ApproveReject(context.Background(), 9, ActionApprove, "")
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/auth/users/9/approve-reject/",
			wantBody:   map[string]interface{}{"action": "approve"},
		},
		{
			name:       "toggle active",
			call:       func(c *Client) error { _, err := c.ToggleActive(context.Background(), 3); return err },
			wantMethod: http.MethodPost,
			wantPath:   "/api/auth/users/3/toggle-active/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, received := newTestServer(t, http.StatusOK, "")
			c := NewClient(Options{BaseURL: srv.URL, Tokens: staticToken("tok")})

			assert.NoError(t, tt.call(c))
			if assert.Len(t, *received, 1) {
				req := (*received)[0]
				assert.Equal(t, tt.wantMethod, req.method)
				assert.Equal(t, tt.wantPath, req.path)
				assert.Equal(t, tt.wantQuery, req.query)
				assert.Equal(t, "Bearer tok", req.auth)
				if tt.wantBody != nil {
					assert.Equal(t, tt.wantBody, req.body)
				}
			}
		})
	}
}

func TestClient_RefreshToken(t *testing.T) {
	t.Run("rotated", func(t *testing.T) {
		srv, received := newTestServer(t, http.StatusOK, `{"access": "a2", "refresh": "r2"}`)
		pair, err := NewClient(Options{BaseURL: srv.URL}).RefreshToken(context.Background(), "r1")
		assert.NoError(t, err)
		assert.Equal(t, TokenPair{Access: "a2", Refresh: "r2"}, pair)
		assert.Equal(t, "/api/auth/token/refresh/", (*received)[0].path)
		assert.Equal(t, "r1", (*received)[0].body["refresh"])
	})

	t.Run("not rotated", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusOK, `{"access": "a2"}`)
		pair, err := NewClient(Options{BaseURL: srv.URL}).RefreshToken(context.Background(), "r1")
		assert.NoError(t, err)
		assert.Equal(t, TokenPair{Access: "a2", Refresh: "r1"}, pair)
	})

	t.Run("expired", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusUnauthorized, `{"detail": "Token is invalid or expired", "code": "token_not_valid"}`)
		_, err := NewClient(Options{BaseURL: srv.URL}).RefreshToken(context.Background(), "r1")
		assert.True(t, errors.Is(err, ErrUnauthorized))
	})
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantFields map[string][]string
		wantUnauth bool
		wantLogged int
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"detail": "Given token not valid for any token type"}`,
			wantMsg:    "Given token not valid for any token type",
			wantUnauth: true,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    `{"detail": "You do not have permission to perform this action."}`,
			wantMsg: "You do not have permission to perform this action.",
		},
		{
			name:       "field errors",
			status:     http.StatusBadRequest,
			body:       `{"username": ["A user with that username already exists."], "non_field_errors": ["Passwords do not match"]}`,
			wantMsg:    "Passwords do not match",
			wantFields: map[string][]string{"username": {"A user with that username already exists."}},
		},
		{
			name:       "html",
			status:     http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantMsg:    "<html>bad gateway</html>",
			wantLogged: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			logger := new(testutil.Logger)
			c := NewClient(Options{BaseURL: srv.URL, Logger: logger})

			_, err := c.Me(context.Background())
			var apiErr *APIError
			if assert.True(t, errors.As(err, &apiErr)) {
				assert.Equal(t, tt.status, apiErr.Status)
				assert.Equal(t, tt.wantMsg, apiErr.Message)
				assert.Equal(t, tt.wantFields, apiErr.Fields)
			}
			assert.Equal(t, tt.wantUnauth, errors.Is(err, ErrUnauthorized))
			assert.Equal(t, tt.wantLogged, logger.Count("ERROR"))
		})
	}
}

func TestDecodeError_TruncatesOnRunes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantRunes int
	}{
		{name: "short", body: "Service indisponible", wantRunes: 20},
		{name: "ascii", body: strings.Repeat("a", 300), wantRunes: maxErrorLen},
		{name: "multi byte boundary", body: "a" + strings.Repeat("é", 300), wantRunes: maxErrorLen},
		{name: "cjk", body: strings.Repeat("錯誤", 150), wantRunes: maxErrorLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := decodeError(http.StatusBadGateway, []byte(tt.body))
			assert.True(t, utf8.ValidString(apiErr.Message))
			assert.Equal(t, tt.wantRunes, utf8.RuneCountInString(apiErr.Message))
			assert.True(t, strings.HasPrefix(tt.body, apiErr.Message))
		})
	}
}

func TestAPIError_ValidationError(t *testing.T) {
	apiErr := &APIError{Status: http.StatusBadRequest, Fields: map[string][]string{
		"username": {"taken"},
		"email":    {"invalid", "blank"},
	}}
	err := apiErr.ValidationError()

	var verr *core.ValidationError
	if assert.True(t, errors.As(err, &verr)) {
		assert.Equal(t, []core.FieldError{
			{Field: "email", Error: "invalid blank"},
			{Field: "username", Error: "taken"},
		}, verr.Fields)
	}
	assert.Nil(t, (&APIError{Status: http.StatusBadRequest}).ValidationError())
	assert.Equal(t, "api: 400 Bad Request (email: invalid blank; username: taken)", apiErr.Error())
}

func TestClient_RateLimit(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{}`)
	c := NewClient(Options{BaseURL: srv.URL, RateLimit: 0.001, RateBurst: 1})

	_, err := c.Me(context.Background())
	assert.NoError(t, err, "burst allows the first request")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Me(ctx)
	assert.Error(t, err, "next request waits past the context")
}
