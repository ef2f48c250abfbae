package broker

import (
	"github.com/lattice-io/pubsub-broker/internal/auth"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

// AuthService implements auth.login/auth.logout. Login also mints a
// supplemental session token so a reconnecting peer can resume its identity
// without resending a bare username (see internal/auth).
type AuthService struct {
	logins *store.LoginStore
	issuer *auth.Issuer
}

// NewAuthService builds an AuthService backed by logins, signing session
// tokens with issuer.
func NewAuthService(logins *store.LoginStore, issuer *auth.Issuer) *AuthService {
	return &AuthService{logins: logins, issuer: issuer}
}

// Login records peerAddr as logged in under username and returns a session
// token the peer can present on reconnect via LoginWithToken.
func (s *AuthService) Login(peerAddr, username string) (token string, err error) {
	s.logins.Login(peerAddr, username)
	return s.issuer.Issue(peerAddr, username)
}

// LoginWithToken re-establishes a login-store entry from a previously
// issued session token, without requiring the peer to resend its username.
func (s *AuthService) LoginWithToken(peerAddr, token string) (username string, err error) {
	username, issuedFor, err := s.issuer.Verify(token)
	if err != nil {
		return "", err
	}
	if issuedFor != peerAddr {
		return "", auth.ErrInvalidToken
	}
	s.logins.Login(peerAddr, username)
	return username, nil
}

// Logout removes peerAddr's login-store entry.
func (s *AuthService) Logout(peerAddr string) {
	s.logins.Logout(peerAddr)
}
