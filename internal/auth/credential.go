// ABOUTME: Shared admin credential backed by a bcrypt hash
// ABOUTME: Login issues admin tokens; verification rejects non-admin roles

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced when hashing a new admin password.
const MinPasswordLength = 8

// DefaultTokenTTL is used when the configured TTL is zero.
const DefaultTokenTTL = 12 * time.Hour

// dummyHash keeps rejection timing constant when no name is given.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Credential errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidHash        = errors.New("invalid password hash")
	ErrNotAdmin           = errors.New("token does not carry the admin role")
)

// HashPassword returns a bcrypt hash suitable for auth.admin_password_hash.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: need at least %d characters", ErrPasswordTooShort, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticator checks the shared admin password and issues admin tokens.
type Authenticator struct {
	hash     []byte
	verifier *JWTVerifier
	ttl      time.Duration
}

// NewAuthenticator validates passwordHash and returns an Authenticator.
func NewAuthenticator(passwordHash string, secret []byte, ttl time.Duration) (*Authenticator, error) {
	passwordHash = strings.TrimSpace(passwordHash)
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		hash:     []byte(passwordHash),
		verifier: NewJWTVerifier(secret),
		ttl:      ttl,
	}, nil
}

// Login checks password and returns a token for name.
func (a *Authenticator) Login(name, password string) (token string, expiresAt time.Time, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.verifier.Generate(name, RoleAdmin, a.ttl)
}

// VerifyAdmin validates an admin token and returns the admin name.
func (a *Authenticator) VerifyAdmin(token string) (string, error) {
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	if claims.Role != RoleAdmin {
		return "", ErrNotAdmin
	}
	return claims.Subject, nil
}
