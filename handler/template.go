package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/middleware"
	"github.com/effectmoe/contract-system/service"
)

type TemplateHandler struct {
	templates *service.TemplateService
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(templates *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

func (h *TemplateHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.templates.List(c.Request.Context())})
}

func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Instantiate renders a template into a new draft contract.
func (h *TemplateHandler) Instantiate(c *gin.Context) {
	var req InstantiateRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.templates.Instantiate(c.Request.Context(), c.Param("id"), req.toService(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}
