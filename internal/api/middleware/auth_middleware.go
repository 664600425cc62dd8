package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/errors"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
)

type claimsContextKey struct{}

type AuthMiddleware struct {
	hmacKey   []byte
	publicKey *rsa.PublicKey
	methods   []string
}

// NewAuthMiddleware accepts HS256 tokens when hmacKey is set and RS256 tokens
// from the identity provider when publicKey is set. Every other algorithm is
// rejected.
func NewAuthMiddleware(hmacKey []byte, publicKey *rsa.PublicKey) *AuthMiddleware {

	// A nil method list would let the parser accept any algorithm.
	m := &AuthMiddleware{hmacKey: hmacKey, publicKey: publicKey, methods: []string{}}

	if len(hmacKey) > 0 {
		m.methods = append(m.methods, jwt.SigningMethodHS256.Alg())
	}
	if publicKey != nil {
		m.methods = append(m.methods, jwt.SigningMethodRS256.Alg())
	}

	return m
}

// ParseRSAPublicKey reads a PEM public key. Identity providers such as
// Keycloak publish the bare base64 DER body, which is accepted too. An empty
// input yields a nil key.
func ParseRSAPublicKey(key string) (*rsa.PublicKey, error) {

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	if !strings.HasPrefix(key, "-----BEGIN") {
		key = "-----BEGIN PUBLIC KEY-----\n" + key + "\n-----END PUBLIC KEY-----\n"
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}

	return publicKey, nil
}

func (m *AuthMiddleware) keyFor(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(m.hmacKey) > 0 {
			return m.hmacKey, nil
		}
	case *jwt.SigningMethodRSA:
		if m.publicKey != nil {
			return m.publicKey, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := LoggerFromContext(r.Context())

		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			logger.Warn("Missing authorization header")
			response.Error(w, errors.UnauthorizedError("Authorization header is required"))
			return
		}

		// Token is of format : "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")

		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			logger.Warn("Invalid authorization header format")
			response.Error(w, errors.UnauthorizedError("Invalid authorization format"))
			return
		}

		claims := &models.Claims{}

		token, err := jwt.ParseWithClaims(tokenParts[1], claims, m.keyFor, jwt.WithValidMethods(m.methods))

		if err != nil || !token.Valid {
			logger.Warn("JWT validation failed", slog.Any("error", err))
			response.Error(w, errors.UnauthorizedError("Invalid or expired token"))
			return
		}

		if claims.UserName() == "" {
			logger.Warn("Token carries no user name")
			response.Error(w, errors.UnauthorizedError("Token has no user identity"))
			return
		}

		ctx := WithClaims(r.Context(), claims)

		requestScopedLogger := logger.With(slog.String("userName", claims.UserName()))
		ctx = WithLogger(ctx, requestScopedLogger)

		requestScopedLogger.Debug("User authenticated")

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*models.Claims)
	return claims, ok
}

// RequireUser rejects callers whose token belongs to someone other than userName.
func RequireUser(ctx context.Context, userName string) error {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return errors.UnauthorizedError("Authentication required")
	}

	if claims.UserName() != userName {
		LoggerFromContext(ctx).Warn("Basket access denied", slog.String("requested", userName))
		return errors.ForbiddenError("You can only access your own basket")
	}

	return nil
}
