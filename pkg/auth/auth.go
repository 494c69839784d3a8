// Package auth verifies caller credentials and extracts their identity.
package auth

import (
	"strings"

	"nereus/pkg/api"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Verifier verifies a token and returns the identity it was issued for.
type Verifier interface {
	VerifyToken(token string) (subject string, err error)
}

// ExtractBearer returns the token of an Authorization header with format "Bearer <token>".
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", api.NewError(api.KindUnauthorized, "Authorization header missing")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", api.NewError(api.KindUnauthorized, "Invalid authorization format")
	}
	return parts[1], nil
}

// Subject returns the identity of the caller presenting the given Authorization header.
// Every failure is an api.Error of kind KindUnauthorized.
func Subject(v Verifier, header string) (string, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return "", err
	}
	sub, err := v.VerifyToken(token)
	if err != nil {
		return "", api.WrapError(err, api.KindUnauthorized, "Invalid or expired token")
	}
	return sub, nil
}

// Config is the configuration of the token verifier
type Config struct {
	SecretKey string `json:"secret_key" env:"JWT_SECRET_KEY"`
	Algorithm string `json:"algorithm" env:"JWT_ALGORITHM"`
}

// DefaultConfig returns the verifier configuration used when nothing is set
func DefaultConfig() Config {
	return Config{Algorithm: "HS256"}
}

// NewVerifier returns the verifier described by conf
func NewVerifier(conf Config) (Verifier, error) {
	v, err := NewJWTVerifier(conf.SecretKey, conf.Algorithm)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// JWTVerifier verifies HMAC signed JWTs and returns their subject claim.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier returns a verifier accepting tokens signed with secret using the given HMAC algorithm.
func NewJWTVerifier(secret, algorithm string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	m := jwt.GetSigningMethod(algorithm)
	if _, ok := m.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unsupported jwt algorithm %s", algorithm)
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{m.Alg()}), jwt.WithExpirationRequired()),
	}, nil
}

// VerifyToken implements Verifier
func (v *JWTVerifier) VerifyToken(token string) (string, error) {
	t, err := v.parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "invalid token")
	}
	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("subject not found or not a string")
	}
	return sub, nil
}
