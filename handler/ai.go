package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/middleware"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/service"
)

type AIHandler struct {
	analysis *service.AnalysisService
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(analysis *service.AnalysisService) *AIHandler {
	return &AIHandler{analysis: analysis}
}

// Analyze runs risk analysis on a stored contract.
func (h *AIHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.ContractID) == "" {
		respondError(c, apperr.Validation("契約書IDが必要です"))
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), req.ContractID, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Chat answers a legal question. When the AI service fails the 500 body
// still carries a fallback answer the client can show.
func (h *AIHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(c, apperr.Validation("メッセージを入力してください"))
		return
	}

	answer, err := h.analysis.Chat(c.Request.Context(), service.ChatRequest{
		ContractID:       req.ContractID,
		Message:          req.Message,
		History:          req.ConversationHistory,
		ContractSpecific: req.IsContractSpecific,
	})
	if err != nil {
		status := errorStatus(c, err)
		body := errorBody(err)
		if answer != nil {
			body["response"] = answer.Response
			body["references"] = answer.References
			body["confidence"] = answer.Confidence
		}
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(http.StatusOK, answer)
}
