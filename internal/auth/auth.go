// Package auth guards the staff dashboard: one configured account, a bcrypt
// password and a signed session cookie.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	CookieName = "session"
	roleStaff  = "staff"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type Claims struct {
	Username string `json:"usr"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthenticator accepts either a bcrypt hash or, outside production, a
// plain password that is hashed once at startup.
func NewAuthenticator(username, passwordHash, password, secret string, ttl time.Duration) (*Authenticator, error) {
	hash := []byte(passwordHash)
	if len(hash) == 0 {
		if password == "" {
			return nil, errors.New("auth: no password configured")
		}
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost); err != nil {
			return nil, fmt.Errorf("auth: hash password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("auth: STAFF_PASSWORD_HASH is not a bcrypt hash: %w", err)
	}
	if secret == "" {
		return nil, errors.New("auth: empty session secret")
	}
	return &Authenticator{
		username: username,
		hash:     hash,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Login checks the credentials and returns a signed session token.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// Always pay for bcrypt so a wrong username is not cheaper.
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Issue(username)
}

func (a *Authenticator) Issue(username string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		Role:     roleStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

func (a *Authenticator) Parse(token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Role != roleStaff || c.Username != a.username {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

// HashPassword produces a value for STAFF_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
