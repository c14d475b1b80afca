package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner mints the bearer token handed to a logged-in operator.
type TokenSigner func(user string, ttl time.Duration) (string, error)

// AdminAuthService authenticates the single operator account configured
// for the deployment. No user database: one username, one bcrypt hash.
type AdminAuthService struct {
	user      string
	passHash  []byte
	signToken TokenSigner
	tokenTTL  time.Duration
}

func NewAdminAuthService(user, passHash string, signer TokenSigner) *AdminAuthService {
	return &AdminAuthService{
		user:      user,
		passHash:  []byte(passHash),
		signToken: signer,
		tokenTTL:  12 * time.Hour,
	}
}

// Login verifies the operator credentials and returns a signed token.
// With no hash configured the admin area stays locked.
func (s *AdminAuthService) Login(user, password string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" || strings.TrimSpace(password) == "" {
		return "", NewInvalidError("user/password required")
	}
	if len(s.passHash) == 0 {
		return "", NewUnauthorizedError("admin login not configured")
	}
	if user != s.user {
		return "", NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(s.passHash, []byte(password)); err != nil {
		return "", NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return "", NewInvalidError("token signer not configured")
	}
	return s.signToken(user, s.tokenTTL)
}

func (s *AdminAuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
