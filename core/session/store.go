package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/user"
)

// DefaultKey is the storage key the session blob lives under.
const DefaultKey = "auth-storage"

// Transition names, as reported to the Recorder.
const (
	TransitionCommit          = "commit"
	TransitionReplaceIdentity = "replace_identity"
	TransitionReplaceTokens   = "replace_tokens"
	TransitionClear           = "clear"
	TransitionRejected        = "rejected"
)

type (
	// Recorder receives every attempted transition (metrics).
	Recorder interface {
		RecordSessionTransition(transition string)
	}

	Options struct {
		Storage  core.Storage
		Logger   core.Logger
		Recorder Recorder
		Key      string        // defaults to DefaultKey
		Timeout  time.Duration // per storage call; defaults to 2s
	}

	// mutation returns the next session, or false to leave the current one untouched.
	mutation func(curr Session) (Session, bool)

	subscriber struct {
		id int
		fn func(Session)
	}

	// Store is the single source of truth for the logged in identity, its tokens and role capabilities.
	// Reads are safe from any goroutine; every write is persisted, then broadcast to subscribers.
	Store struct {
		opts Options

		mu   sync.RWMutex
		curr Session

		subsMu sync.Mutex
		subs   []subscriber
		nextID int
	}
)

// NewStore builds a Store, rehydrated from opts.Storage before it is returned.
// A missing, unreadable or malformed blob yields the empty session.
func NewStore(opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	s := &Store{opts: opts}
	s.curr = s.load()
	return s
}

func (s *Store) load() Session {
	if s.opts.Storage == nil {
		return Session{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	data, err := s.opts.Storage.Get(ctx, s.opts.Key)
	if err != nil {
		if errors.Cause(err) != core.ErrKeyNotFound {
			s.warn("could not read persisted session", errors.Wrap(err, "loading session"))
		}
		return Session{}
	}
	sess, err := decode(data)
	if err != nil {
		s.warn("discarding persisted session", errors.Wrap(err, "decoding session"))
		return Session{}
	}
	return sess
}

func (s *Store) save(sess Session) {
	if s.opts.Storage == nil {
		return
	}
	data, err := encode(sess)
	if err != nil {
		s.warn("could not encode session", errors.Wrap(err, "encoding session"))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	if err = s.opts.Storage.Put(ctx, s.opts.Key, data); err != nil {
		s.warn("could not persist session", errors.Wrap(err, "saving session"))
	}
}

func (s *Store) warn(msg string, args ...interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, args...)
	}
}

func (s *Store) record(transition string) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordSessionTransition(transition)
	}
}

// dispatch is the one write path: apply, persist, then notify.
// The swap happens under the write lock so no reader sees a half applied mutation.
// Mutations must not call back into the store; rejected is only logged once the lock is released.
func (s *Store) dispatch(transition, rejected string, mut mutation) {
	s.mu.Lock()
	next, ok := mut(s.curr)
	if !ok {
		s.mu.Unlock()
		s.warn(rejected)
		s.record(TransitionRejected)
		return
	}
	s.curr = next
	s.save(next)
	s.mu.Unlock()

	s.record(transition)
	s.notify(next)
}

func (s *Store) notify(sess Session) {
	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(sess.clone())
	}
}

// Commit installs a freshly authenticated identity together with its token pair.
func (s *Store) Commit(usr user.User, accessToken, refreshToken string) {
	s.dispatch(TransitionCommit, "", func(Session) (Session, bool) {
		return Session{User: &usr, AccessToken: accessToken, RefreshToken: refreshToken}, true
	})
}

// ReplaceIdentity updates the identity after a profile edit. Tokens are left alone.
// It is a logged no-op while unauthenticated: an identity without tokens is never stored.
func (s *Store) ReplaceIdentity(usr user.User) {
	const rejected = "ignoring identity replacement on an unauthenticated session"
	s.dispatch(TransitionReplaceIdentity, rejected, func(curr Session) (Session, bool) {
		if !curr.IsAuthenticated() {
			return curr, false
		}
		curr.User = &usr
		return curr, true
	})
}

// ReplaceTokens installs a rotated token pair. The identity is left alone.
// It is a logged no-op while unauthenticated.
func (s *Store) ReplaceTokens(accessToken, refreshToken string) {
	const rejected = "ignoring token replacement on an unauthenticated session"
	s.dispatch(TransitionReplaceTokens, rejected, func(curr Session) (Session, bool) {
		if !curr.IsAuthenticated() {
			return curr, false
		}
		curr.AccessToken = accessToken
		curr.RefreshToken = refreshToken
		return curr, true
	})
}

// Clear resets to the empty session. Always succeeds; calling it twice is the same as once.
func (s *Store) Clear() {
	s.dispatch(TransitionClear, "", func(Session) (Session, bool) {
		return Session{}, true
	})
}

// Subscribe registers fn to receive the new session after every committed write.
// Subscribers run synchronously on the writer's goroutine, after the write is visible.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curr.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curr.IsAuthenticated()
}

func (s *Store) User() (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.curr.User == nil {
		return user.User{}, false
	}
	return *s.curr.User, true
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curr.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curr.RefreshToken
}

// Capability predicates. All of them are false while unauthenticated.

func (s *Store) IsSuperAdmin() bool { return s.HasRole(user.RoleSuperAdmin) }
func (s *Store) IsAdmin() bool      { return s.HasRole(user.RoleAdmin) }
func (s *Store) IsTeacher() bool    { return s.HasRole(user.RoleTeacher) }
func (s *Store) IsStudent() bool    { return s.HasRole(user.RoleStudent) }

// HasRole is an exact match against the four known roles; any other string is never held.
func (s *Store) HasRole(role string) bool {
	if !user.IsKnownRole(role) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curr.role() == role
}
