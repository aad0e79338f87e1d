// Package auth authenticates callers with HMAC-signed bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const callerIDKey contextKey = "authCallerID"

// CallerID retrieves the authenticated subject from ctx.
func CallerID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(callerIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// WithCallerID returns a copy of ctx carrying the caller id.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// Verifier validates bearer tokens.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier returns a Verifier for HS256/384/512 tokens. An empty audience
// disables the audience check.
func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(strings.TrimSpace(secret)),
		audience: strings.TrimSpace(audience),
	}
}

// Verify parses header (an Authorization header value) and returns the token
// subject.
func (v *Verifier) Verify(header string) (string, error) {
	tokenString, err := extractBearerToken(header)
	if err != nil {
		return "", err
	}
	if len(v.secret) == 0 {
		return "", errors.New("missing JWT secret")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return "", errors.New("invalid audience")
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

// Middleware validates bearer tokens on HTTP requests and injects the caller id.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := v.Verify(c.Request.Header.Get("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(WithCallerID(c.Request.Context(), subject))
		c.Set(string(callerIDKey), subject)
		c.Next()
	}
}

// UnaryServerInterceptor validates bearer tokens carried in gRPC metadata.
// Health checks pass through unauthenticated.
func (v *Verifier) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}
		subject, err := v.Verify(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(WithCallerID(ctx, subject), req)
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func containsAudience(claims jwt.ClaimStrings, expected string) bool {
	for _, aud := range claims {
		if aud == expected {
			return true
		}
	}
	return false
}
