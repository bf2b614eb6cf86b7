package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Claims carries the caller's id in user_id, or in sub for issuers that
// only set registered claims.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// JWTAuth verifies the HS256 tokens issued by the external sign-in flow. The
// same token travels as a bearer header from API clients and as the
// user_token cookie from browsers.
type JWTAuth struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// SignToken issues a token for userID that expires after ttl. The server
// never hands these out; tests and local tooling use it to mint credentials.
func (j *JWTAuth) SignToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, reason := extractToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason, r)
			return
		}

		userID, err := j.ParseUserID(tokenStr)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserIDKey, userID)))
	})
}

// ParseUserID verifies tokenStr and returns the user it names.
func (j *JWTAuth) ParseUserID(tokenStr string) (uuid.UUID, error) {
	claims := &Claims{}
	if _, err := j.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}); err != nil {
		return uuid.Nil, err
	}

	userID, err := uuid.Parse(claims.subject())
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user id: %v", jwt.ErrTokenInvalidClaims, err)
	}
	return userID, nil
}

// extractToken prefers the Authorization header over the user_token cookie.
// The second result explains an empty token.
func extractToken(r *http.Request) (string, string) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return "", "Invalid authorization format"
		}
		return token, ""
	}
	if tok := cookieValue(r, UserCookie); tok != "" {
		return tok, ""
	}
	return "", "Missing authorization header"
}

func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}
