// Package auth drives the session store from the outcome of calls to the school API.
package auth

import (
	"context"
	"net/url"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/user"
	apisvc "github.com/trezcool/masomo-console/services/api"
)

// ErrSessionExpired is returned once the server refused to rotate the tokens; the session has been cleared.
var ErrSessionExpired = errors.New("session expired, please log in again")

// mockable
var now = time.Now

type (
	Backend interface {
		Login(ctx context.Context, creds user.Credentials) (apisvc.AuthResponse, error)
		Register(ctx context.Context, data user.NewStudent) (apisvc.RegisterResponse, error)
		Logout(ctx context.Context, refreshToken string) error
		Me(ctx context.Context) (user.User, error)
		UpdateProfile(ctx context.Context, data user.UpdateProfile) (user.User, error)
		ChangePassword(ctx context.Context, data user.ChangePassword) (apisvc.MessageResponse, error)
		RefreshToken(ctx context.Context, refreshToken string) (apisvc.TokenPair, error)
		ListUsers(ctx context.Context, query url.Values) (apisvc.UserPage, error)
		PendingStudents(ctx context.Context) ([]user.User, error)
		ApproveReject(ctx context.Context, id int, action, reason string) (apisvc.ApprovalResponse, error)
		ToggleActive(ctx context.Context, id int) (apisvc.ApprovalResponse, error)
	}

	Options struct {
		Store      *session.Store
		Backend    Backend
		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger
		// RefreshLeeway is how long before expiry the access token gets rotated; 0 only rotates on 401.
		RefreshLeeway time.Duration
	}

	Service struct {
		store      *session.Store
		backend    Backend
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
		leeway     time.Duration
	}
)

var _ Backend = (*apisvc.Client)(nil)

func NewService(opts Options) *Service {
	return &Service{
		store:      opts.Store,
		backend:    opts.Backend,
		validate:   opts.Validate,
		translator: opts.Translator,
		logger:     opts.Logger,
		leeway:     opts.RefreshLeeway,
	}
}

func (svc *Service) Store() *session.Store { return svc.store }

// invalid converts both local and remote validation failures to *core.ValidationError.
func (svc *Service) invalid(err error) error {
	var apiErr *apisvc.APIError
	if errors.As(err, &apiErr) {
		if verr := apiErr.ValidationError(); verr != nil {
			return verr
		}
		return err
	}
	return core.TranslateValidationErrors(err, svc.translator)
}

// Login authenticates against the API and commits the identity with its tokens.
// On any failure the session is left exactly as it was.
func (svc *Service) Login(ctx context.Context, uname, pwd string) (user.User, error) {
	creds := user.Credentials{Username: uname, Password: pwd}
	if err := creds.Validate(svc.validate); err != nil {
		return user.User{}, svc.invalid(err)
	}
	resp, err := svc.backend.Login(ctx, creds)
	if err != nil {
		return user.User{}, svc.invalid(err)
	}
	if resp.Access == "" || resp.Refresh == "" {
		return user.User{}, errors.New("login response is missing tokens")
	}
	svc.store.Commit(resp.User, resp.Access, resp.Refresh)
	return resp.User, nil
}

// Register creates a student account awaiting approval. The session is not touched.
func (svc *Service) Register(ctx context.Context, data user.NewStudent) (apisvc.RegisterResponse, error) {
	if err := data.Validate(svc.validate); err != nil {
		return apisvc.RegisterResponse{}, svc.invalid(err)
	}
	resp, err := svc.backend.Register(ctx, data)
	if err != nil {
		return apisvc.RegisterResponse{}, svc.invalid(err)
	}
	return resp, nil
}

// Logout tells the API to drop the refresh token, then always clears the session.
func (svc *Service) Logout(ctx context.Context) {
	sess := svc.store.Snapshot()
	if sess.RefreshToken != "" {
		if err := svc.backend.Logout(ctx, sess.RefreshToken); err != nil {
			svc.warn("logout request failed", err, sess)
		}
	}
	svc.store.Clear()
}

// Refresh rotates the token pair. A rejected refresh token ends the session.
func (svc *Service) Refresh(ctx context.Context) error {
	refresh := svc.store.RefreshToken()
	if !svc.store.IsAuthenticated() || refresh == "" {
		return core.ErrNotAuthenticated
	}
	pair, err := svc.backend.RefreshToken(ctx, refresh)
	if err != nil {
		if errors.Is(err, apisvc.ErrUnauthorized) {
			svc.store.Clear()
			return ErrSessionExpired
		}
		return errors.Wrap(err, "refreshing tokens")
	}
	svc.store.ReplaceTokens(pair.Access, pair.Refresh)
	return nil
}

// EnsureFresh refreshes only when the access token is about to expire.
func (svc *Service) EnsureFresh(ctx context.Context) (refreshed bool, err error) {
	if svc.leeway <= 0 || !svc.store.Snapshot().NeedsRefresh(now(), svc.leeway) {
		return false, nil
	}
	if err = svc.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// authorized runs call with a fresh access token, rotating it and retrying once on a 401.
func (svc *Service) authorized(ctx context.Context, call func() error) error {
	if !svc.store.IsAuthenticated() {
		return core.ErrNotAuthenticated
	}
	if _, err := svc.EnsureFresh(ctx); err != nil {
		return err
	}
	err := call()
	if !errors.Is(err, apisvc.ErrUnauthorized) {
		return err
	}
	if err = svc.Refresh(ctx); err != nil {
		return err
	}
	return call()
}

// ReloadProfile fetches the current identity and replaces the stored one.
func (svc *Service) ReloadProfile(ctx context.Context) (user.User, error) {
	var usr user.User
	err := svc.authorized(ctx, func() (err error) {
		usr, err = svc.backend.Me(ctx)
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	svc.store.ReplaceIdentity(usr)
	return usr, nil
}

func (svc *Service) UpdateProfile(ctx context.Context, data user.UpdateProfile) (user.User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return user.User{}, svc.invalid(err)
	}
	var usr user.User
	err := svc.authorized(ctx, func() (err error) {
		usr, err = svc.backend.UpdateProfile(ctx, data)
		return err
	})
	if err != nil {
		return user.User{}, svc.invalid(err)
	}
	svc.store.ReplaceIdentity(usr)
	return usr, nil
}

func (svc *Service) ChangePassword(ctx context.Context, data user.ChangePassword) (string, error) {
	if err := data.Validate(svc.validate); err != nil {
		return "", svc.invalid(err)
	}
	var resp apisvc.MessageResponse
	err := svc.authorized(ctx, func() (err error) {
		resp, err = svc.backend.ChangePassword(ctx, data)
		return err
	})
	if err != nil {
		return "", svc.invalid(err)
	}
	return resp.Message, nil
}

// require checks that the session may open path before any request is sent.
func (svc *Service) require(path string) error {
	if !svc.store.IsAuthenticated() {
		return core.ErrNotAuthenticated
	}
	if !nav.Reachable(svc.store, path) {
		return core.ErrForbidden
	}
	return nil
}

func (svc *Service) ListUsers(ctx context.Context, query url.Values) (apisvc.UserPage, error) {
	if err := svc.require(nav.RouteUsers); err != nil {
		return apisvc.UserPage{}, err
	}
	var page apisvc.UserPage
	err := svc.authorized(ctx, func() (err error) {
		page, err = svc.backend.ListUsers(ctx, query)
		return err
	})
	return page, err
}

func (svc *Service) PendingApprovals(ctx context.Context) ([]user.User, error) {
	if err := svc.require(nav.RoutePendingApprovals); err != nil {
		return nil, err
	}
	var users []user.User
	err := svc.authorized(ctx, func() (err error) {
		users, err = svc.backend.PendingStudents(ctx)
		return err
	})
	return users, err
}

func (svc *Service) Approve(ctx context.Context, id int) (apisvc.ApprovalResponse, error) {
	return svc.approveReject(ctx, id, apisvc.ActionApprove, "")
}

func (svc *Service) Reject(ctx context.Context, id int, reason string) (apisvc.ApprovalResponse, error) {
	return svc.approveReject(ctx, id, apisvc.ActionReject, core.CleanString(reason))
}

func (svc *Service) approveReject(ctx context.Context, id int, action, reason string) (apisvc.ApprovalResponse, error) {
	if err := svc.require(nav.RoutePendingApprovals); err != nil {
		return apisvc.ApprovalResponse{}, err
	}
	if id <= 0 {
		return apisvc.ApprovalResponse{}, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "a user id is required"})
	}
	var resp apisvc.ApprovalResponse
	err := svc.authorized(ctx, func() (err error) {
		resp, err = svc.backend.ApproveReject(ctx, id, action, reason)
		return err
	})
	return resp, err
}

func (svc *Service) ToggleActive(ctx context.Context, id int) (apisvc.ApprovalResponse, error) {
	if err := svc.require(nav.RoutePendingApprovals); err != nil {
		return apisvc.ApprovalResponse{}, err
	}
	var resp apisvc.ApprovalResponse
	err := svc.authorized(ctx, func() (err error) {
		resp, err = svc.backend.ToggleActive(ctx, id)
		return err
	})
	return resp, err
}

func (svc *Service) warn(msg string, err error, sess session.Session) {
	if svc.logger == nil {
		return
	}
	if sess.User != nil {
		svc.logger.Warn(msg, err, *sess.User)
		return
	}
	svc.logger.Warn(msg, err)
}
