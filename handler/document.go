package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/middleware"
	"github.com/effectmoe/contract-system/service"
)

// DocumentHandler serves attachments and generated PDFs.
type DocumentHandler struct {
	attachments *service.AttachmentService
	documents   *service.DocumentService
}

// NewDocumentHandler creates a new handler for attachments and generated documents.
func NewDocumentHandler(attachments *service.AttachmentService, documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{attachments: attachments, documents: documents}
}

func (h *DocumentHandler) UploadAttachment(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}
	defer up.Close()

	if up.ContentType == "" {
		up.ContentType = "application/octet-stream"
	}
	att, err := h.attachments.Add(c.Request.Context(), c.Param("id"), up.Upload, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

// DownloadAttachment redirects to a short-lived presigned URL.
func (h *DocumentHandler) DownloadAttachment(c *gin.Context) {
	url, err := h.attachments.URL(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *DocumentHandler) ContractPDF(c *gin.Context) {
	doc, err := h.documents.ContractPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, doc)
}

// Certificate renders the completion certificate of a fully signed contract.
func (h *DocumentHandler) Certificate(c *gin.Context) {
	doc, err := h.documents.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, doc)
}

func sendPDF(c *gin.Context, doc *service.Document) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, "application/pdf", doc.Data)
}
