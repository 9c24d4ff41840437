package router

import (
	"context"
	"time"

	"invoiceflow/internal/config"
	"invoiceflow/internal/document"
	"invoiceflow/internal/handler"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/middleware"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/service"
	"invoiceflow/internal/worker"
	"invoiceflow/internal/workflow"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators built by cmd/server. Redis and
// Breaker may be nil: without Redis the audit fallback queue, transition
// counters and partner emails are disabled.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Engine   document.Engine
	Breaker  *infra.CircuitBreaker
	Storage  infra.ObjectStorage
	Identity identity.Provider
}

// Company builds the invoice issuer block from config.
func Company(cfg *config.Config) document.Company {
	return document.Company{
		Name:         cfg.CompanyName,
		Address:      cfg.CompanyAddress,
		Phone:        cfg.CompanyPhone,
		Email:        cfg.CompanyEmail,
		Registration: cfg.CompanyRegistration,
		Bank:         cfg.CompanyBank,
		CEO:          cfg.CompanyCEO,
	}
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// Background middleware goroutines stop when ctx is cancelled.
func New(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	origins := cfg.AllowedOrigins()
	window := time.Duration(cfg.RateLimitWindowMinutes) * time.Minute

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(origins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(ctx, cfg.RateLimitMax, window))

	// ── Repositories ─────────────────────────────────────────────────────────
	invoiceRepo := repository.NewInvoiceRepository(deps.DB)
	partnerRepo := repository.NewPartnerRepository(deps.DB)
	rateCardRepo := repository.NewRateCardRepository(deps.DB)
	approvalRepo := repository.NewApprovalRepository(deps.DB)
	auditRepo := repository.NewAuditRepository(deps.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	// Worker dispatcher: injected into services that enqueue async jobs
	var dispatcher service.JobDispatcher
	if deps.Redis != nil {
		dispatcher = worker.NewDispatcher(deps.Redis)
	}

	auditSvc := service.NewAuditService(auditRepo, invoiceRepo, dispatcher)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, partnerRepo, rateCardRepo, auditSvc, cfg.TaxRateDecimal())
	approvalSvc := service.NewApprovalService(invoiceRepo, approvalRepo, auditSvc,
		service.NewTransitionCounter(deps.Redis), dispatcher, cfg.SMTPEnabled())
	pdfSvc := service.NewPDFService(invoiceRepo, deps.Engine, deps.Storage, Company(cfg),
		time.Duration(cfg.SignedURLTTLHours)*time.Hour)
	reportSvc := service.NewReportService(deps.Engine, deps.Storage, time.Duration(cfg.SignedURLTTLHours)*time.Hour)

	// ── Handlers ─────────────────────────────────────────────────────────────
	invoicesH := handler.NewInvoicesHandler(invoiceSvc)
	approvalsH := handler.NewApprovalsHandler(approvalSvc)
	pdfH := handler.NewPDFHandler(pdfSvc)
	reportsH := handler.NewReportsHandler(reportSvc)
	auditH := handler.NewAuditHandler(auditSvc)
	filesH := handler.NewFilesHandler(deps.Storage)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(deps.DB, deps.Redis, deps.Breaker))
	r.GET("/readyz", handler.Ready(cfg.Env != "production" || middleware.CORSSafe(origins)))

	// Signed object links carry their own authorization
	r.GET("/files/*key", filesH.Serve)

	api := r.Group("/api/invoices", middleware.Authenticate(deps.Identity))
	{
		op := middleware.RequireOperation

		api.GET("", op(rbac.OpList), invoicesH.List)
		api.POST("", op(rbac.OpCreate), invoicesH.Create)
		api.GET("/:id", op(rbac.OpView), invoicesH.Get)
		api.PATCH("/:id", op(rbac.OpUpdate), invoicesH.Update)

		api.POST("/:id/items", op(rbac.OpItems), invoicesH.AddItems)
		api.DELETE("/:id/items/:itemId", op(rbac.OpItems), invoicesH.DeleteItem)

		api.POST("/:id/submit", op(rbac.OpSubmit), approvalsH.Transition(workflow.Submit))
		api.POST("/:id/approve", op(rbac.OpApprove), approvalsH.Transition(workflow.Approve))
		api.POST("/:id/reject", op(rbac.OpReject), approvalsH.Transition(workflow.Reject))
		api.POST("/:id/reopen", op(rbac.OpReopen), approvalsH.Transition(workflow.Reopen))

		api.GET("/:id/pdf", op(rbac.OpPDF), pdfH.Download)
		api.POST("/:id/pdf", op(rbac.OpPDF), pdfH.Save)
		api.GET("/:id/html", op(rbac.OpPDF), pdfH.Preview)

		api.GET("/:id/audit", op(rbac.OpAudit), auditH.List)
	}

	reports := r.Group("/api/reports", middleware.Authenticate(deps.Identity), middleware.RequireOperation(rbac.OpReport))
	{
		reports.POST("/pdf", reportsH.Download)
		reports.POST("/pdf/save", reportsH.Save)
		reports.POST("/preview", reportsH.Preview)
		reports.GET("/template/:type", reportsH.Template)
	}

	// Swagger UI: only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
