// Package adminauth issues and validates credentials for the single operator account that manages apps through the
// control-plane HTTP API. There is no multi-user admin model: one password hash lives in the admin_credentials
// table, and a successful login mints a JWT that authorizes subsequent admin requests.
package adminauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// subject is the fixed JWT subject for the single admin principal.
const subject = "admin"

// ErrNotConfigured indicates no admin password has been set yet.
var ErrNotConfigured = errors.New("adminauth: admin password not configured")

// ErrInvalidCredentials indicates a login attempt with a wrong password.
var ErrInvalidCredentials = errors.New("adminauth: invalid credentials")

// HashParams controls the cost parameters used when hashing the admin password.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Repository persists the admin password hash.
type Repository interface {
	GetPasswordHash(ctx context.Context) (string, error)
	SetPasswordHash(ctx context.Context, hash string) error
}

// Claims holds the JWT claims issued to an authenticated admin session.
type Claims struct {
	jwt.RegisteredClaims
}

// HashPassword hashes a plaintext password with argon2id using the given cost parameters.
func HashPassword(password string, p HashParams) (string, error) {
	hash, err := argon2id.CreateHash(password, &argon2id.Params{
		Memory:      p.Memory,
		Iterations:  p.Iterations,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	})
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return hash, nil
}

// Login verifies the supplied password against the stored hash and, on success, issues a signed JWT.
func Login(ctx context.Context, repo Repository, password, jwtSecret string, ttl time.Duration, issuer string) (string, error) {
	hash, err := repo.GetPasswordHash(ctx)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", ErrNotConfigured
	}

	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return "", fmt.Errorf("compare admin password: %w", err)
	}
	if !match {
		return "", ErrInvalidCredentials
	}

	return issueToken(jwtSecret, ttl, issuer)
}

// issueToken mints a signed JWT for the admin subject. Each token gets its own JTI so a login can be traced through
// logs independently of the stateless subject, even though no session store keys off of it.
func issueToken(secret string, ttl time.Duration, issuer string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret must not be empty")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates an admin JWT, enforcing HMAC signing and the expected subject and issuer.
func ValidateToken(tokenStr, secret, issuer string) (*Claims, error) {
	claims := &Claims{}

	var opts []jwt.ParserOption
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject != subject {
		return nil, fmt.Errorf("unexpected token subject %q", claims.Subject)
	}

	return claims, nil
}
