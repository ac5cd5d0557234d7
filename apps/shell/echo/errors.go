package echoshell

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/auth"
	"github.com/trezcool/masomo-console/core/session"
	apisvc "github.com/trezcool/masomo-console/services/api"
)

var (
	errHttpForbidden       = echo.NewHTTPError(http.StatusForbidden, core.ErrForbidden.Error())
	errHttpUnauthenticated = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpSessionExpired  = echo.NewHTTPError(http.StatusUnauthorized, auth.ErrSessionExpired.Error())
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, sessions *session.Store) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch cause {
		case core.ErrForbidden:
			cause = errHttpForbidden
		case core.ErrNotAuthenticated:
			cause = errHttpUnauthenticated
		case auth.ErrSessionExpired:
			cause = errHttpSessionExpired
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *apisvc.APIError:
			code = origErr.Status
			message = origErr.Message
			if origErr.Message == "" {
				message = http.StatusText(origErr.Status)
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			if usr, ok := sessions.User(); ok {
				logger.Error(msg, errors.Wrap(err, msg), usr)
			} else {
				logger.Error(msg, errors.Wrap(err, msg))
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
