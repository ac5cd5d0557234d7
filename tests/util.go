package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/user"
)

var ErrStorageDown = errors.New("storage down")

// NewUser builds a user fixture with the given role.
func NewUser(id int, uname, role string) user.User {
	now := time.Now().UTC().Truncate(time.Second)
	return user.User{
		ID:             id,
		Username:       uname,
		Email:          uname + "@test.cd",
		Name:           "User " + uname,
		Gender:         "male",
		Role:           role,
		IsActive:       true,
		IsApproved:     true,
		ApprovalStatus: user.ApprovalApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MakeToken signs a JWT access token expiring at exp; the client never verifies the signature.
func MakeToken(t *testing.T, usr user.User, exp time.Time) string {
	claims := jwt.MapClaims{
		"token_type": "access",
		"user_id":    usr.ID,
		"exp":        exp.Unix(),
		"iat":        time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	return token
}

// Logger records every entry, for assertions.
type Logger struct {
	mu      sync.Mutex
	Entries []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, fmt.Sprintf("%s: %s", level, msg))
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if len(e) > len(level) && e[:len(level)] == level {
			n++
		}
	}
	return n
}

// FailingStorage errors on every call.
type FailingStorage struct{}

var _ core.Storage = FailingStorage{}

func (FailingStorage) Get(context.Context, string) ([]byte, error) { return nil, ErrStorageDown }
func (FailingStorage) Put(context.Context, string, []byte) error   { return ErrStorageDown }
func (FailingStorage) Delete(context.Context, string) error        { return ErrStorageDown }
