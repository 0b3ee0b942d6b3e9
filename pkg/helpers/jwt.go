package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL applies when the caller does not ask for a lifetime.
	DefaultTokenTTL = 15 * time.Minute
	// LoginTokenTTL is the lifetime of tokens minted by the login endpoint.
	LoginTokenTTL = 60 * time.Minute
	// MinSecretLength is the shortest accepted HS256 signing secret in bytes.
	MinSecretLength = 32
)

// Reasons carried by TokenError. Callers must not expose them.
const (
	ReasonCredentials = "credentials"
	ReasonExpired     = "expired"
)

var (
	// ErrTokenInvalid matches every token validation failure.
	ErrTokenInvalid = errors.New("invalid token")
	ErrWeakSecret   = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
)

// TokenError describes why a token was rejected.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
	}
	return "invalid token (" + e.Reason + ")"
}

func (e *TokenError) Unwrap() error { return e.Err }

func (e *TokenError) Is(target error) bool { return target == ErrTokenInvalid }

// TokenConfig is the immutable signing configuration, built once at startup.
type TokenConfig struct {
	Secret     []byte
	DefaultTTL time.Duration
	LoginTTL   time.Duration
}

// Claims is the signed payload: subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTManager issues and validates HS256 bearer tokens.
type JWTManager struct {
	secret     []byte
	defaultTTL time.Duration
	loginTTL   time.Duration
	now        func() time.Time
}

func NewJWTManager(cfg TokenConfig) (*JWTManager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	m := &JWTManager{
		secret:     append([]byte(nil), cfg.Secret...),
		defaultTTL: cfg.DefaultTTL,
		loginTTL:   cfg.LoginTTL,
		now:        time.Now,
	}
	if m.defaultTTL <= 0 {
		m.defaultTTL = DefaultTokenTTL
	}
	if m.loginTTL <= 0 {
		m.loginTTL = LoginTokenTTL
	}
	return m, nil
}

// WithClock replaces the time source; used by tests.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// LoginTTL returns the lifetime used for login tokens.
func (m *JWTManager) LoginTTL() time.Duration { return m.loginTTL }

// Issue signs a token for subject using the default lifetime.
func (m *JWTManager) Issue(subject string) (string, time.Time, error) {
	return m.IssueWithTTL(subject, m.defaultTTL)
}

// IssueWithTTL signs a token for subject that expires ttl from now.
func (m *JWTManager) IssueWithTTL(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	now := m.now().UTC()
	exp := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Validate verifies signature, algorithm and expiry and returns the claims.
// Every failure is a *TokenError matching ErrTokenInvalid.
func (m *JWTManager) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &TokenError{Reason: ReasonExpired, Err: err}
		}
		return nil, &TokenError{Reason: ReasonCredentials, Err: err}
	}
	if !tkn.Valid {
		return nil, &TokenError{Reason: ReasonCredentials}
	}
	if claims.Subject == "" {
		return nil, &TokenError{Reason: ReasonCredentials, Err: errors.New("missing subject")}
	}
	return claims, nil
}
