// Package middleware provides authentication, logging, tracing and metrics middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"scribe/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callerLocalsKey = "caller"

// IdentityClaims are the claims the identity service puts into bearer tokens.
// The subject carries the numeric user id.
type IdentityClaims struct {
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// Auth resolves callers from bearer tokens signed with a shared HMAC secret.
type Auth struct {
	secret []byte
}

// NewAuth creates the authentication middleware set for the given secret.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Optional resolves the caller when a valid token is present and falls back
// to an anonymous caller otherwise. Public routes use it so drafts stay
// visible to their authors.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := models.Anonymous
		if token, err := bearerToken(c); err == nil {
			if resolved, err := a.Resolve(token); err == nil {
				caller = resolved
			}
		}
		setCaller(c, caller)
		return c.Next()
	}
}

// Required rejects requests without a valid identity.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
		}

		caller, err := a.Resolve(token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		setCaller(c, caller)
		return c.Next()
	}
}

// AdminRequired must run after Required.
func (a *Auth) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CallerFrom(c).IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin role required"))
		}
		return c.Next()
	}
}

// Resolve validates a raw token and converts its claims into a caller.
func (a *Auth) Resolve(tokenString string) (models.Caller, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Anonymous, errors.New("invalid or expired token")
	}

	if claims.Subject == "" {
		return models.Anonymous, errors.New("token is missing a subject")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return models.Anonymous, errors.New("invalid user ID in token")
	}

	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	return models.Caller{
		UserID: uint(userID),
		Role:   role,
		Name:   claims.Name,
		Avatar: claims.Avatar,
	}, nil
}

// Sign issues a token for caller. The identity service owns token issuance in
// production; this exists for development tooling and tests.
func (a *Auth) Sign(caller models.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Role:   caller.Role,
		Name:   caller.Name,
		Avatar: caller.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(caller.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// CallerFrom returns the caller resolved for this request.
func CallerFrom(c *fiber.Ctx) models.Caller {
	if caller, ok := c.Locals(callerLocalsKey).(models.Caller); ok {
		return caller
	}
	return models.Anonymous
}

func setCaller(c *fiber.Ctx, caller models.Caller) {
	c.Locals(callerLocalsKey, caller)
	if caller.IsAuthenticated() {
		c.Locals("userID", caller.UserID)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, caller.UserID))
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("Invalid authorization header format")
	}
	return parts[1], nil
}
