package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eventauthoring/internal/domain"
)

// Credential errors.
var (
	ErrNoCredential      = errors.New("no credential stored")
	ErrCredentialExpired = errors.New("credential expired")
)

// Store holds the bearer token issued by the auth collaborator. Token
// refuses to hand out a JWT whose exp claim has passed, so callers fail
// fast instead of collecting a 401. The signature is not verified here;
// that is the server's job.
type Store struct {
	mu    sync.Mutex
	token string
	now   func() time.Time
}

// NewStore returns an empty credential store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetToken replaces the stored credential.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token implements domain.CredentialStore.
func (s *Store) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoCredential
	}
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(s.token, claims)
	if err != nil {
		// Opaque (non-JWT) tokens pass through; expiry is then enforced
		// server-side only.
		return s.token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return s.token, nil
	}
	if exp.Before(s.now()) {
		return "", ErrCredentialExpired
	}
	return s.token, nil
}

var _ domain.CredentialStore = (*Store)(nil)
