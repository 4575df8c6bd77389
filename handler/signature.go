package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/middleware"
	"github.com/effectmoe/contract-system/service"
)

type SignatureHandler struct {
	signatures *service.SignatureService
}

// NewSignatureHandler creates a new signature handler.
func NewSignatureHandler(signatures *service.SignatureService) *SignatureHandler {
	return &SignatureHandler{signatures: signatures}
}

// Send emails a signing link to every party that still has to sign.
func (h *SignatureHandler) Send(c *gin.Context) {
	contract, err := h.signatures.SendForSignature(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": contract})
}

// Sign records one party's signature together with where it came from.
func (h *SignatureHandler) Sign(c *gin.Context) {
	var req SignRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.signatures.Sign(c.Request.Context(), c.Param("id"), service.SignInput{
		PartyID:   req.PartyID,
		Name:      req.Name,
		Email:     req.Email,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": contract})
}
