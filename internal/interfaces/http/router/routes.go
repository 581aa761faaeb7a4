package router

import (
	"time"

	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/fieldops/stockledger/internal/interfaces/http/handler"
	"github.com/fieldops/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served by the API
type Handlers struct {
	Catalog      *handler.CatalogHandler
	Ledger       *handler.LedgerHandler
	Query        *handler.QueryHandler
	StockRequest *handler.StockRequestHandler
	Outbox       *handler.OutboxHandler
	System       *handler.SystemHandler
}

// EngineConfig configures the middleware chain
type EngineConfig struct {
	Logger         *zap.Logger
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	MaxBodyBytes   int64
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
}

// NewEngine builds the gin engine with the middleware chain, /health and the /api/v1 routes
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.AccessLog(log),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.Actor(),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
	)
	if cfg.Idempotency != nil {
		engine.Use(middleware.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, log))
	}
	engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	engine.GET("/health", h.System.Health)

	r := NewRouter(engine)
	for _, g := range DomainGroups(h) {
		r.Register(g)
	}
	r.Setup()
	return engine
}

// DomainGroups returns the route groups of the API
func DomainGroups(h Handlers) []*DomainGroup {
	items := NewDomainGroup("items", "/items").
		POST("", h.Catalog.CreateItem).
		GET("", h.Catalog.ListItems).
		GET("/:id", h.Catalog.GetItem).
		PUT("/:id", h.Catalog.UpdateItem).
		DELETE("/:id", h.Catalog.DeleteItem)

	stores := NewDomainGroup("stores", "/stores").
		POST("", h.Catalog.CreateStore).
		GET("", h.Catalog.ListStores)

	contractors := NewDomainGroup("contractors", "/contractors").
		POST("", h.Catalog.CreateContractor).
		GET("", h.Catalog.ListContractors).
		POST("/:id/activate", h.Catalog.ActivateContractor).
		POST("/:id/deactivate", h.Catalog.DeactivateContractor)

	ledger := NewDomainGroup("ledger", "").
		POST("/grns", h.Ledger.CreateGRN).
		POST("/issues", h.Ledger.IssueToContractor).
		POST("/transfers", h.Ledger.TransferBetweenStores).
		POST("/returns", h.Ledger.ReturnFromContractor).
		POST("/supplier-returns", h.Ledger.ReturnToSupplier).
		POST("/wastages", h.Ledger.RecordWastage).
		POST("/usages", h.Ledger.RecordUsage)

	queries := NewDomainGroup("queries", "").
		GET("/owners/:kind/:id/stock", h.Query.GetStock).
		GET("/owners/:kind/:id/batches", h.Query.GetBatches).
		GET("/transactions", h.Query.ListTransactions).
		GET("/transactions/:id", h.Query.GetTransaction).
		GET("/reconciliations", h.Query.GetReconciliation).
		GET("/stock-audit", h.Query.AuditStock)

	requests := NewDomainGroup("stock-requests", "/stock-requests").
		POST("", h.StockRequest.Create).
		GET("", h.StockRequest.List).
		GET("/:id", h.StockRequest.Get).
		POST("/:id/actions", h.StockRequest.Act).
		POST("/:id/release", h.StockRequest.Release).
		POST("/:id/receive", h.StockRequest.Receive)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)
	system.Group("outbox", "/outbox").
		GET("/dead", h.Outbox.GetDeadLetterEntries).
		POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries).
		GET("/stats", h.Outbox.GetStats).
		GET("/:id", h.Outbox.GetEntry).
		POST("/:id/retry", h.Outbox.RetryDeadEntry)

	return []*DomainGroup{items, stores, contractors, ledger, queries, requests, system}
}
