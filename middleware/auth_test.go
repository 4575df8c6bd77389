package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/effectmoe/contract-system/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testUser = &config.User{Username: "testuser", Email: "test@example.com"}

func TestGenerateToken(t *testing.T) {
	cfg := &config.AuthConfig{
		JWTSecret:        "test-secret-key",
		TokenExpireHours: 24,
	}

	token, expiresAt, err := GenerateToken(testUser, cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("Expected non-empty token")
	}

	// Verify expiration time is approximately 24 hours from now
	expectedExpiry := time.Now().Add(24 * time.Hour)
	if expiresAt.Before(expectedExpiry.Add(-time.Minute)) || expiresAt.After(expectedExpiry.Add(time.Minute)) {
		t.Errorf("Expiry time %v is not within expected range of %v", expiresAt, expectedExpiry)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.AuthConfig{
		JWTSecret:        "test-secret-key",
		TokenExpireHours: 24,
	}

	token, _, err := GenerateToken(testUser, cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	otherToken, _, _ := GenerateToken(testUser, &config.AuthConfig{JWTSecret: "other-secret", TokenExpireHours: 1})

	tests := []struct {
		name           string
		required       bool
		authHeader     string
		expectedStatus int
		expectedActor  string
	}{
		{"valid token", false, "Bearer " + token, http.StatusOK, "testuser"},
		{"missing header allowed", false, "", http.StatusOK, "anonymous"},
		{"missing header required", true, "", http.StatusUnauthorized, ""},
		{"invalid format", false, token, http.StatusUnauthorized, ""},
		{"invalid token", false, "Bearer invalid.token.here", http.StatusUnauthorized, ""},
		{"wrong secret", false, "Bearer " + otherToken, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			c.Required = tt.required

			var actor string
			router := gin.New()
			router.Use(AuthMiddleware(&c))
			router.GET("/test", func(c *gin.Context) {
				actor = Actor(c)
				c.JSON(http.StatusOK, gin.H{"message": "ok"})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if actor != tt.expectedActor {
				t.Errorf("Expected actor '%s', got '%s'", tt.expectedActor, actor)
			}
		})
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	cfg := &config.AuthConfig{
		JWTSecret:        "test-secret-key",
		TokenExpireHours: 24,
	}

	claims := Claims{
		Username: "testuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)), // Expired 1 hour ago
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(cfg.JWTSecret))

	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d for expired token, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestGetUsernameAndEmail(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUsername(c) != "" || GetEmail(c) != "" {
		t.Error("Expected empty strings for unset claims")
	}

	c.Set("username", "testuser")
	c.Set("email", "test@example.com")
	if GetUsername(c) != "testuser" {
		t.Errorf("Expected 'testuser', got '%s'", GetUsername(c))
	}
	if GetEmail(c) != "test@example.com" {
		t.Errorf("Expected 'test@example.com', got '%s'", GetEmail(c))
	}
}
