// Package api implements the Admin HTTP API: agent/node/job/proof/audit
// listing, job submission, and a single pre-shared-passphrase login
// endpoint that issues short-lived HS256 session tokens.
//
// This is a deliberately smaller auth surface than the reference service's
// RSA/OIDC stack — there is exactly one operator role and no external
// identity provider to federate against here, so a single signing secret
// replaces the RSA keypair and JWKS endpoint (see DESIGN.md).
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by ValidateToken for an expired-but-otherwise
// well-formed token.
var ErrTokenExpired = errors.New("api: token expired")

// ErrTokenInvalid is returned for any other validation failure.
var ErrTokenInvalid = errors.New("api: token invalid")

const sessionTokenDuration = 1 * time.Hour

// sessionClaims is the JWT payload for an operator session token.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 operator session tokens against a
// single shared secret, configured from the environment at startup.
type TokenIssuer struct {
	secret         []byte
	issuer         string
	operatorSecret string
}

// NewTokenIssuer returns a TokenIssuer. signingSecret is the HMAC key used
// to sign tokens; operatorPassphrase is the single shared passphrase a
// caller must present to POST /api/auth/login.
func NewTokenIssuer(signingSecret, operatorPassphrase string) *TokenIssuer {
	return &TokenIssuer{
		secret:         []byte(signingSecret),
		issuer:         "krra-coordinator",
		operatorSecret: operatorPassphrase,
	}
}

// CheckPassphrase reports whether candidate matches the configured operator
// passphrase.
func (t *TokenIssuer) CheckPassphrase(candidate string) bool {
	return candidate != "" && candidate == t.operatorSecret
}

// IssueToken returns a freshly signed session token.
func (t *TokenIssuer) IssueToken() (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTokenDuration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("api: signing session token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies tokenString.
func (t *TokenIssuer) ValidateToken(tokenString string) error {
	_, err := jwt.ParseWithClaims(
		tokenString,
		&sessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("api: unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	return nil
}

// RequireAuth is chi middleware that rejects requests without a valid
// Bearer session token.
func RequireAuth(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || issuer.ValidateToken(tokenString) != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
