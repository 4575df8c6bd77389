package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/middleware"
	"github.com/effectmoe/contract-system/service"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Config      *config.Config
	Limiter     *service.RateLimiter
	Contracts   *service.ContractService
	Analysis    *service.AnalysisService
	OCR         *service.OCRService
	Signatures  *service.SignatureService
	Templates   *service.TemplateService
	Attachments *service.AttachmentService
	Documents   *service.DocumentService
}

// NewRouter builds the gin engine. Every API route has its own rate-limit
// budget named after the route, e.g. "contracts.list".
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Mode(cfg.Mode))
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(noCacheMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"mode":      cfg.Mode,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limit := func(route string) gin.HandlerFunc {
		return middleware.RateLimit(d.Limiter, route, cfg.RateLimit.LimitFor(route), cfg.RateLimit.Window)
	}

	authHandler := NewAuthHandler(cfg)
	contracts := NewContractHandler(d.Contracts)
	ai := NewAIHandler(d.Analysis)
	ocr := NewOCRHandler(d.OCR)
	signatures := NewSignatureHandler(d.Signatures)
	templates := NewTemplateHandler(d.Templates)
	documents := NewDocumentHandler(d.Attachments, d.Documents)

	api := router.Group("/api")
	api.POST("/auth/login", limit("auth.login"), authHandler.Login)

	// The limiter runs before authentication so rejected tokens are counted too.
	auth := middleware.AuthMiddleware(&cfg.Auth)
	guarded := func(route string, h gin.HandlerFunc) gin.HandlersChain {
		return gin.HandlersChain{limit(route), auth, h}
	}

	api.GET("/auth/me", guarded("auth.me", authHandler.Me)...)

	api.GET("/contracts", guarded("contracts.list", contracts.List)...)
	api.POST("/contracts", guarded("contracts.create", contracts.Create)...)
	api.GET("/contracts/:id", guarded("contracts.get", contracts.Get)...)
	api.PUT("/contracts/:id", guarded("contracts.update", contracts.Update)...)
	api.PATCH("/contracts/:id", guarded("contracts.update", contracts.Update)...)
	api.DELETE("/contracts/:id", guarded("contracts.delete", contracts.Delete)...)
	api.GET("/contracts/:id/audit", guarded("contracts.audit", contracts.AuditLog)...)

	api.POST("/contracts/:id/send", guarded("signatures.send", signatures.Send)...)
	api.POST("/contracts/:id/sign", guarded("signatures.sign", signatures.Sign)...)

	api.POST("/contracts/:id/attachments", guarded("attachments.upload", documents.UploadAttachment)...)
	api.GET("/contracts/:id/attachments/:attachmentId", guarded("attachments.download", documents.DownloadAttachment)...)
	api.GET("/contracts/:id/pdf", guarded("documents.pdf", documents.ContractPDF)...)
	api.GET("/contracts/:id/certificate", guarded("documents.certificate", documents.Certificate)...)

	api.POST("/ai/analyze", guarded("ai.analyze", ai.Analyze)...)
	api.POST("/ai/chat", guarded("ai.chat", ai.Chat)...)
	api.POST("/ocr/upload", guarded("ocr.upload", ocr.Upload)...)

	api.GET("/templates", guarded("templates.list", templates.List)...)
	api.GET("/templates/:id", guarded("templates.get", templates.Get)...)
	api.POST("/templates/:id/instantiate", guarded("templates.instantiate", templates.Instantiate)...)

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Data-Mode, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// noCacheMiddleware keeps contract data out of shared caches.
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
