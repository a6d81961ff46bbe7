// Package grant verifies signed session grants and resolves them to the
// account identity a session acts as.
package grant

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/taskhub/internal/platform/config"
	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
	"github.com/louisbranch/taskhub/internal/task"
)

// sessionGrantEnv holds raw env values before post-parse validation.
type sessionGrantEnv struct {
	Grant     string `env:"TASKHUB_SESSION_GRANT"`
	Issuer    string `env:"TASKHUB_SESSION_GRANT_ISSUER"`
	Audience  string `env:"TASKHUB_SESSION_GRANT_AUDIENCE"`
	PublicKey string `env:"TASKHUB_SESSION_GRANT_PUBLIC_KEY"`
}

// Config defines how session grants are verified.
type Config struct {
	Grant    string
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Claims captures validated session grant claims.
type Claims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
	UserID    string
	Email     string
	Name      string
	AvatarURL string
}

// sessionGrantClaims is the internal claims type used for JWT parsing.
type sessionGrantClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// LoadConfigFromEnv reads session grant verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw sessionGrantEnv
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session grant env: %w", err)
	}
	token := strings.TrimSpace(raw.Grant)
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if token == "" {
		return Config{}, fmt.Errorf("TASKHUB_SESSION_GRANT is required")
	}
	if issuer == "" {
		return Config{}, fmt.Errorf("TASKHUB_SESSION_GRANT_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("TASKHUB_SESSION_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("TASKHUB_SESSION_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode session grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("session grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Grant:    token,
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify verifies a session grant token and validates its claims.
func Verify(grant string, cfg Config) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("session grant verifier is not configured")
	}

	var parsed sessionGrantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeSessionGrantMismatch,
			"session grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeSessionGrantMismatch,
			"session grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeSessionGrantExpired, "session grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant not active yet")
		}
	}

	if strings.TrimSpace(parsed.UserID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant user_id is required")
	}
	if strings.TrimSpace(parsed.Email) == "" {
		return Claims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant email is required")
	}

	claims := Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		UserID:    strings.TrimSpace(parsed.UserID),
		Email:     strings.TrimSpace(parsed.Email),
		Name:      strings.TrimSpace(parsed.Name),
		AvatarURL: strings.TrimSpace(parsed.AvatarURL),
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// User builds the account identity carried by the claims.
func (c Claims) User(now func() time.Time) task.User {
	if now == nil {
		now = time.Now
	}
	createdAt := c.IssuedAt
	if createdAt.IsZero() {
		createdAt = now().UTC()
	}
	return task.User{
		ID:        c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		AvatarURL: c.AvatarURL,
		CreatedAt: createdAt,
		LastSeen:  now().UTC(),
		Online:    true,
	}
}

// Provider verifies the configured grant on each call, so an expired grant
// surfaces as an error instead of a stale identity.
type Provider struct {
	Config Config
}

// Identity verifies the configured session grant and returns its account.
func (p Provider) Identity(ctx context.Context) (task.User, error) {
	if err := ctx.Err(); err != nil {
		return task.User{}, err
	}
	claims, err := Verify(p.Config.Grant, p.Config)
	if err != nil {
		return task.User{}, err
	}
	return claims.User(p.Config.Now), nil
}

// StaticProvider returns a fixed identity. Intended for tests and local
// development without a grant issuer.
type StaticProvider struct {
	User task.User
	Err  error
}

// Identity returns the fixed identity or error.
func (p StaticProvider) Identity(ctx context.Context) (task.User, error) {
	if err := ctx.Err(); err != nil {
		return task.User{}, err
	}
	if p.Err != nil {
		return task.User{}, p.Err
	}
	return p.User, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
