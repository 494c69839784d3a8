package auth

import (
	"testing"
	"time"

	"nereus/pkg/api"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestExtractBearer(t *testing.T) {
	tok, err := ExtractBearer("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	for _, h := range []string{"", "abc", "Basic abc", "Bearer"} {
		_, err := ExtractBearer(h)
		assert.Equal(t, api.KindUnauthorized, api.KindOf(err), h)
	}
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(secret, "HS256")
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "42", "exp": exp})
		sub, err := Subject(v, "Bearer "+tok)
		require.NoError(t, err)
		assert.Equal(t, "42", sub)
	})

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"expired", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()})
		}},
		{"no expiration", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "42"})
		}},
		{"wrong secret", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "42", "exp": exp})
		}},
		{"wrong algorithm", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": "42", "exp": exp})
		}},
		{"no subject", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"exp": exp})
		}},
		{"not a subject string", func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": 42, "exp": exp})
		}},
		{"garbage", func(t *testing.T) string { return "not.a.token" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Subject(v, "Bearer "+tt.token(t))
			require.Error(t, err)
			assert.Equal(t, api.KindUnauthorized, api.KindOf(err))
		})
	}
}

func TestNewJWTVerifier(t *testing.T) {
	_, err := NewJWTVerifier("", "HS256")
	assert.Error(t, err)
	_, err = NewJWTVerifier(secret, "RS256")
	assert.Error(t, err)
	_, err = NewJWTVerifier(secret, "HS384")
	assert.NoError(t, err)
}

func TestNewVerifier(t *testing.T) {
	_, err := NewVerifier(DefaultConfig())
	assert.Error(t, err)

	conf := DefaultConfig()
	conf.SecretKey = secret
	v, err := NewVerifier(conf)
	require.NoError(t, err)
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "7", "exp": time.Now().Add(time.Minute).Unix()})
	sub, err := v.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "7", sub)
}
