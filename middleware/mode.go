package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/pkg/logger"
)

// Mode tags every request with the storage mode resolved at startup, so
// log lines and responses can tell demo data from persisted data.
func Mode(mode config.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("mode", mode)
		c.Header("X-Data-Mode", string(mode))
		ctx := context.WithValue(c.Request.Context(), logger.ModeKey, string(mode))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
