package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/pkg/logger"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{name: "generated when absent", incoming: ""},
		{name: "caller id reused", incoming: "req-contract-42", wantSame: true},
		{name: "oversized id replaced", incoming: strings.Repeat("x", 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(RequestID())
			var seen string
			router.GET("/api/contracts", func(c *gin.Context) {
				seen = GetRequestID(c)
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got != seen {
				t.Errorf("Header id '%s' differs from context id '%s'", got, seen)
			}
			if tt.wantSame {
				if got != tt.incoming {
					t.Errorf("Expected request ID '%s', got '%s'", tt.incoming, got)
				}
				return
			}
			if len(got) != 36 {
				t.Errorf("Expected a generated UUID, got '%s'", got)
			}
		})
	}
}

func TestRequestIDReachesLogContext(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var fromCtx any
	router.GET("/test", func(c *gin.Context) {
		fromCtx = c.Request.Context().Value(logger.RequestIDKey)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "abc")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if fromCtx != "abc" {
		t.Errorf("Expected request id in context, got %v", fromCtx)
	}
}

func TestGetRequestIDOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if id := GetRequestID(c); id != "" {
		t.Errorf("Expected empty string, got '%s'", id)
	}
}
