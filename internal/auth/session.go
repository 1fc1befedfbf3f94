package auth

import (
	"context"
	"log/slog"
	"sync"
)

// InitialPuller seeds the local store on first sign-in.
type InitialPuller interface {
	InitialPullIfEmpty(ctx context.Context, uid string) (bool, error)
}

// SignInResult reports who signed in and whether remote data was pulled.
type SignInResult struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Pulled    bool   `json:"pulled"`
	PullError string `json:"pullError,omitempty"`
}

// Session holds the current identity. The zero identity means signed out,
// in which case mirror writes are skipped.
type Session struct {
	verifier *Verifier
	puller   InitialPuller

	mu    sync.RWMutex
	uid   string
	email string
}

func NewSession(verifier *Verifier, puller InitialPuller) *Session {
	return &Session{verifier: verifier, puller: puller}
}

func (s *Session) UID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid
}

func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// SignIn verifies token, switches the session to its identity and runs the
// initial pull. A pull failure is logged and reported in the result but
// does not fail the sign-in.
func (s *Session) SignIn(ctx context.Context, token string) (SignInResult, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		slog.WarnContext(ctx, "Sign-in rejected", "error", err)
		return SignInResult{}, err
	}
	return s.signIn(ctx, claims.UserID(), claims.Email), nil
}

// SignInAs switches to uid without a token. For trusted local tools only.
func (s *Session) SignInAs(ctx context.Context, uid string) SignInResult {
	return s.signIn(ctx, uid, "")
}

func (s *Session) signIn(ctx context.Context, uid, email string) SignInResult {
	s.mu.Lock()
	s.uid = uid
	s.email = email
	s.mu.Unlock()

	res := SignInResult{UID: uid, Email: email}
	slog.InfoContext(ctx, "Signed in", "uid", uid)

	if s.puller == nil {
		return res
	}
	pulled, err := s.puller.InitialPullIfEmpty(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "Initial pull failed, continuing with local data", "uid", uid, "error", err)
		res.PullError = err.Error()
		return res
	}
	res.Pulled = pulled
	return res
}

func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	uid := s.uid
	s.uid = ""
	s.email = ""
	s.mu.Unlock()
	if uid != "" {
		slog.InfoContext(ctx, "Signed out", "uid", uid)
	}
}
