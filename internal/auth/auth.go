// Package auth verifies the bearer tokens that authorize REST table
// commands. Tokens are HS256 JWTs whose subject is the player id.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token is expired")
	ErrNoSubject    = errors.New("token has no subject")
)

// Claims is what a verified token says about its holder.
type Claims struct {
	PlayerID string
	Name     string
}

type playerClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured. Without one every token is
// rejected.
func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

func (v *Verifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMissingToken
	}
	if !v.Enabled() {
		return Claims{}, ErrInvalidToken
	}

	var parsed playerClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, ErrNoSubject
	}
	return Claims{PlayerID: parsed.Subject, Name: parsed.Name}, nil
}

// Issue signs a token for playerID valid for ttl. Used by tests and local
// tooling; production tokens come from whoever shares the secret.
func (v *Verifier) Issue(playerID, name string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := playerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return ErrInvalidToken
}

type ctxKey struct{}

// WithClaims stores c in ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

// Middleware rejects requests without a valid bearer token and puts the
// verified claims in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
