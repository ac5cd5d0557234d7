package session

import (
	"encoding/json"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/user"
)

// blobVersion is the only persisted shape this client reads.
const blobVersion = 0

var (
	errMalformedBlob    = errors.New("malformed session blob")
	errInconsistentBlob = errors.New("inconsistent session blob")
	errNoExpiry         = errors.New("token carries no expiry")
)

// Session is an immutable view of who is logged in and with which bearer tokens.
// The zero value is the empty, unauthenticated session.
type Session struct {
	User         *user.User
	AccessToken  string
	RefreshToken string
}

// IsAuthenticated is derived from the identity; it is never stored on its own.
func (s Session) IsAuthenticated() bool {
	return s.User != nil
}

func (s Session) role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// NeedsRefresh reports whether the access token expires within leeway of now.
// Tokens that cannot be inspected are considered fresh: the server has the final say.
func (s Session) NeedsRefresh(now time.Time, leeway time.Duration) bool {
	if !s.IsAuthenticated() {
		return false
	}
	exp, err := TokenExpiry(s.AccessToken)
	if err != nil {
		return false
	}
	return !now.Add(leeway).Before(exp)
}

// clone deep copies the identity so callers can never mutate the store's copy.
func (s Session) clone() Session {
	if s.User != nil {
		usr := *s.User
		s.User = &usr
	}
	return s
}

// TokenExpiry reads the `exp` claim of a JWT without verifying its signature.
// The client never holds the signing key; this is only used to schedule refreshes.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "parsing token")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, errNoExpiry
	}
	return time.Unix(int64(exp), 0), nil
}

type (
	persistedState struct {
		User            *user.User `json:"user"`
		AccessToken     *string    `json:"accessToken"`
		RefreshToken    *string    `json:"refreshToken"`
		IsAuthenticated bool       `json:"isAuthenticated"`
	}

	persistedBlob struct {
		State   *persistedState `json:"state"`
		Version *int            `json:"version"`
	}
)

// encode writes the tokens verbatim, empty strings included, whenever there is an identity.
// The empty session persists them as null.
func encode(s Session) ([]byte, error) {
	version := blobVersion
	st := &persistedState{User: s.User, IsAuthenticated: s.IsAuthenticated()}
	if s.IsAuthenticated() {
		access, refresh := s.AccessToken, s.RefreshToken
		st.AccessToken, st.RefreshToken = &access, &refresh
	}
	return json.Marshal(persistedBlob{State: st, Version: &version})
}

// decode never trusts the stored `isAuthenticated`: a blob is only valid when identity and both
// token fields are present together, or all absent. Present tokens may be empty.
func decode(data []byte) (Session, error) {
	var blob persistedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return Session{}, errors.Wrap(errMalformedBlob, err.Error())
	}
	if blob.State == nil || blob.Version == nil || *blob.Version != blobVersion {
		return Session{}, errMalformedBlob
	}

	st := blob.State
	switch {
	case st.User == nil && isBlank(st.AccessToken) && isBlank(st.RefreshToken):
		return Session{}, nil
	case st.User != nil && st.AccessToken != nil && st.RefreshToken != nil:
		return Session{User: st.User, AccessToken: *st.AccessToken, RefreshToken: *st.RefreshToken}, nil
	default:
		return Session{}, errInconsistentBlob
	}
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
