package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/middleware"
	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/service"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type ContractHandler struct {
	contracts *service.ContractService
}

// NewContractHandler creates a new contract handler.
func NewContractHandler(contracts *service.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// List returns one page of contracts matching the query filters.
func (h *ContractHandler) List(c *gin.Context) {
	page := h.contracts.List(c.Request.Context(), parsePageQuery(c))
	c.JSON(http.StatusOK, page)
}

// parsePageQuery reads paging, filter and sort parameters. Malformed values
// fall back to defaults instead of failing the listing.
func parsePageQuery(c *gin.Context) service.PageQuery {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(c, "limit", defaultPageLimit)
	limit = min(max(limit, 1), maxPageLimit)

	sortBy := service.SortKey(c.Query("sortBy"))
	if !sortBy.Valid() {
		sortBy = service.SortCreatedAt
	}
	sortOrder := service.SortOrder(c.Query("sortOrder"))
	if sortOrder != service.SortAsc {
		sortOrder = service.SortDesc
	}

	return service.PageQuery{
		Page:  page,
		Limit: limit,
		Filter: service.FilterSpec{
			Query:     c.Query("q"),
			Status:    model.Status(c.Query("status")),
			Type:      model.ContractType(c.Query("type")),
			Category:  c.Query("category"),
			Priority:  model.Priority(c.Query("priority")),
			Tag:       c.Query("tag"),
			SortBy:    sortBy,
			SortOrder: sortOrder,
		},
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.contracts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *ContractHandler) Create(c *gin.Context) {
	var req CreateContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), req.toService(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

// Update serves both PUT and PATCH; either way only the fields present in
// the body change.
func (h *ContractHandler) Update(c *gin.Context) {
	var req UpdateContractRequest
	if !bindJSON(c, &req) {
		return
	}

	contract, err := h.contracts.Update(c.Request.Context(), c.Param("id"), req.toPatch(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": contract})
}

func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.contracts.Delete(c.Request.Context(), c.Param("id"), middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AuditLog returns the contract's audit trail. Reading it is itself audited.
func (h *ContractHandler) AuditLog(c *gin.Context) {
	entries, err := h.contracts.AuditLog(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
