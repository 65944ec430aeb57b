// Package client is the UI-facing core: a typed client for the ordering API
// and the checkout and approval flows built on it.
package client

import (
	"context"
	"errors"
	"sync"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
)

// Refresher exchanges the current token for a fresh one.
type Refresher interface {
	Refresh(ctx context.Context, token string) (string, common.Identity, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, token string) (string, common.Identity, error)

func (f RefresherFunc) Refresh(ctx context.Context, token string) (string, common.Identity, error) {
	return f(ctx, token)
}

var errSessionExpired = apperrors.Unauthenticated("Your session has expired. Please sign in again.")

// Session holds the caller's token and identity. It is passed explicitly to
// everything that needs to know who is calling.
type Session struct {
	mu        sync.RWMutex
	token     string
	identity  common.Identity
	signedIn  bool
	expired   bool
	expiredCh chan struct{}
	refresher Refresher
}

// NewSession returns a signed-out session. refresher may be nil, in which
// case Refresh always fails.
func NewSession(refresher Refresher) *Session {
	return &Session{
		expiredCh: make(chan struct{}),
		refresher: refresher,
	}
}

func (s *Session) SignIn(token string, identity common.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.identity = identity
	s.signedIn = true
	if s.expired {
		s.expired = false
		s.expiredCh = make(chan struct{})
	}
}

func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.identity = common.Identity{}
	s.signedIn = false
}

// Refresh swaps the token for a new one. A failed refresh expires the
// session.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	token, signedIn, refresher := s.token, s.signedIn, s.refresher
	s.mu.RUnlock()

	if !signedIn {
		return apperrors.Unauthenticated("Not signed in")
	}
	if refresher == nil {
		return errors.New("session: no refresher configured")
	}

	next, identity, err := refresher.Refresh(ctx, token)
	if err != nil {
		s.expire()
		return apperrors.Wrap(err, apperrors.CodeUnauthenticated, errSessionExpired.Message)
	}
	s.SignIn(next, identity)
	return nil
}

// Expired is closed when the server rejects the session's token. A new
// channel is issued on the next SignIn.
func (s *Session) Expired() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredCh
}

func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expired
}

// Identity returns the signed-in caller.
func (s *Session) Identity() (common.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.signedIn
}

func (s *Session) bearer() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.signedIn
}

func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired {
		return
	}
	s.expired = true
	close(s.expiredCh)
}
