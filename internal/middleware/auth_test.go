package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scribe/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func callerApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers = append(handlers, func(c *fiber.Ctx) error {
		caller := CallerFrom(c)
		return c.JSON(fiber.Map{"userID": caller.UserID, "role": caller.Role, "name": caller.Name})
	})
	app.Get("/test", handlers...)
	return app
}

func TestAuthRequired(t *testing.T) {
	auth := NewAuth(testSecret)
	app := callerApp(auth.Required())

	valid, err := auth.Sign(models.Caller{UserID: 123, Role: models.RoleUser, Name: "Ada"}, time.Hour)
	require.NoError(t, err)
	expired, err := auth.Sign(models.Caller{UserID: 123, Role: models.RoleUser}, -time.Hour)
	require.NoError(t, err)
	otherSecret, err := NewAuth("another-secret-another-secret-123456").Sign(models.Caller{UserID: 123}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{"Happy Path", "Bearer " + valid, http.StatusOK, 123},
		{"Missing Header", "", http.StatusUnauthorized, 0},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized, 0},
		{"Expired Token", "Bearer " + expired, http.StatusUnauthorized, 0},
		{"Wrong Secret", "Bearer " + otherSecret, http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, float64(tt.expectedUserID), body["userID"])
				assert.Equal(t, "Ada", body["name"])
			} else {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.Equal(t, models.CodeUnauthorized, body.Code)
			}
		})
	}
}

func TestAuthOptional(t *testing.T) {
	auth := NewAuth(testSecret)
	app := callerApp(auth.Optional())

	t.Run("anonymous without header", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(0), body["userID"])
	})

	t.Run("invalid token degrades to anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(0), body["userID"])
	})

	t.Run("valid token resolves caller", func(t *testing.T) {
		token, err := auth.Sign(models.Caller{UserID: 7, Role: models.RoleAdmin}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, float64(7), body["userID"])
		assert.Equal(t, models.RoleAdmin, body["role"])
	})
}

func TestAdminRequired(t *testing.T) {
	auth := NewAuth(testSecret)
	app := callerApp(auth.Required(), auth.AdminRequired())

	userToken, err := auth.Sign(models.Caller{UserID: 1, Role: models.RoleUser}, time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.Sign(models.Caller{UserID: 2, Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	for token, status := range map[string]int{userToken: http.StatusForbidden, adminToken: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode)
	}
}

func TestResolve(t *testing.T) {
	auth := NewAuth(testSecret)

	sign := func(claims jwt.Claims, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	t.Run("unknown role becomes user", func(t *testing.T) {
		token := sign(IdentityClaims{Role: "superuser", RegisteredClaims: jwt.RegisteredClaims{Subject: "5", ExpiresAt: exp}}, jwt.SigningMethodHS256)
		caller, err := auth.Resolve(token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, caller.Role)
		assert.Equal(t, uint(5), caller.UserID)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := sign(IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, jwt.SigningMethodHS256)
		_, err := auth.Resolve(token)
		assert.Error(t, err)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		token := sign(IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc", ExpiresAt: exp}}, jwt.SigningMethodHS256)
		_, err := auth.Resolve(token)
		assert.Error(t, err)
	})

	t.Run("zero subject", func(t *testing.T) {
		token := sign(IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "0", ExpiresAt: exp}}, jwt.SigningMethodHS256)
		_, err := auth.Resolve(token)
		assert.Error(t, err)
	})
}
