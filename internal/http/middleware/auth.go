package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"apicore/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of issued access tokens.
const DefaultTokenTTL = 24 * time.Hour

// Claims is the access token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{Secret: []byte(secret), TTL: ttl, now: time.Now}
}

// Issue signs a token for userID.
func (a *Authenticator) Issue(userID, role string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies a raw token and returns its claims.
func (a *Authenticator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.HTTPError{
			Status:  http.StatusUnauthorized,
			Code:    domain.CodeAuthTokenExpired,
			Message: "Access token has expired",
			Err:     err,
		}
	case err != nil:
		return nil, domain.TokenInvalid("", err)
	case claims.Subject == "":
		return nil, domain.TokenInvalid("", nil)
	}
	return claims, nil
}

// bearer extracts the token of an "Authorization: Bearer <token>" header.
func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth rejects anonymous requests. A token that was sent but failed
// verification is reported as such.
func RequireAuth() Stage {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (any, error) {
			if !req.Context.Authenticated() {
				if req.authErr != nil {
					return nil, req.authErr
				}
				return nil, domain.TokenInvalid("", nil)
			}
			return next(ctx, req)
		}
	}
}

// RequireRole rejects authenticated users whose role is not in roles.
func RequireRole(roles ...string) Stage {
	required := strings.Join(roles, ", ")
	return func(next Handler) Handler {
		return RequireAuth()(func(ctx context.Context, req *Request) (any, error) {
			if !slices.Contains(roles, req.Role) {
				return nil, domain.InsufficientPermissions(required)
			}
			return next(ctx, req)
		})
	}
}
