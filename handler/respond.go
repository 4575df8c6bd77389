package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
)

const msgInvalidRequest = "リクエストの形式が正しくありません"

// respondError writes the {error, details?} envelope for err. Server-side
// failures are logged here so handlers don't have to.
func respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(c, err), errorBody(err))
}

func errorStatus(c *gin.Context, err error) int {
	e := apperr.From(err)
	status := e.Status()
	_ = c.Error(err)
	if status >= 500 {
		logger.Error(c.Request.Context(), "request failed",
			"kind", e.Kind,
			"service", e.Service,
			"error", err,
		)
	}
	return status
}

func errorBody(err error) gin.H {
	e := apperr.From(err)
	body := gin.H{"error": e.Message}
	if d := e.Details(); d != "" {
		body["details"] = d
	}
	return body
}

// bindJSON decodes and validates the request body into dst, answering 400
// on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, &apperr.Error{Kind: apperr.KindValidation, Message: msgInvalidRequest, Err: err})
		return false
	}
	return true
}
