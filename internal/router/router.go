package router

import (
	"time"

	"restopos/internal/authz"
	"restopos/internal/config"
	"restopos/internal/events"
	"restopos/internal/handler"
	"restopos/internal/middleware"
	"restopos/internal/repository"
	"restopos/internal/service"
	"restopos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, notifier *events.Notifier, policy authz.Policy) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	tx := repository.NewTransactor(db, cfg.LockTimeout)
	tableRepo := repository.NewTableRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	ingredientRepo := repository.NewIngredientRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	accountingRepo := repository.NewAccountingRepository(db)

	// Worker dispatcher, used by hooks that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	sessionSvc := service.NewSessionService(tx, tableRepo)
	inventorySvc := service.NewInventoryService(tx, ingredientRepo, catalogRepo)
	accountingSvc := service.NewAccountingService(tx, orderRepo, accountingRepo)

	// Post-commit side effects, run in this order after every transition.
	hooks := []service.Hook{
		service.NewAccountingHook(accountingSvc, dispatcher),
		service.NewKitchenHook(orderRepo, notifier),
		service.NewPrinterHook(orderRepo, notifier),
		service.NewReceiptHook(dispatcher),
	}

	orderSvc := service.NewOrderService(
		tx, orderRepo, tableRepo, catalogRepo,
		service.NewRecipeResolver(recipeRepo), inventorySvc, hooks,
		service.OrderOptions{UnknownItemPolicy: cfg.UnknownItemPolicy},
	)
	paymentSvc := service.NewPaymentService(tx, orderRepo, tableRepo, paymentRepo, sessionSvc, hooks)

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionsH := handler.NewSessionsHandler(sessionSvc)
	ordersH := handler.NewOrdersHandler(orderSvc)
	paymentsH := handler.NewPaymentsHandler(paymentSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)
	accountingH := handler.NewAccountingHandler(accountingSvc)
	kitchenH := handler.NewKitchenHandler(orderSvc, notifier)

	perm := func(op authz.Operation) gin.HandlerFunc {
		return middleware.RequirePermission(policy, op)
	}

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// QR flow (public; guests hold a session token, not a JWT)
	guest := r.Group("/v1/tenants/:tenant_id/sessions")
	{
		guest.POST("/start", middleware.SessionStartRateLimiter(), sessionsH.Start)
		guest.POST("/verify", sessionsH.Verify)
		guest.POST("/orders", middleware.SessionAuth(sessionSvc), ordersH.GuestCreate)
	}

	// Staff routes: JWT tenant must match the path tenant
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	t := r.Group("/v1/tenants/:tenant_id", jwtMW)
	{
		t.POST("/sessions/:id/close", perm(authz.TablesWrite), sessionsH.Close)

		t.POST("/orders", perm(authz.OrdersCreate), ordersH.Create)
		t.GET("/orders/:id", perm(authz.OrdersRead), ordersH.Get)
		t.PATCH("/orders/:id/status", perm(authz.OrdersUpdateStatus), ordersH.UpdateStatus)
		t.PATCH("/orders/:id/items/:item_id/status", perm(authz.OrdersUpdateStatus), ordersH.UpdateItemStatus)
		t.POST("/orders/:id/pay", perm(authz.PaymentsCreate), paymentsH.Pay)

		t.GET("/kitchen/queue", perm(authz.KitchenRead), kitchenH.Queue)
		t.GET("/kitchen/stream", perm(authz.KitchenRead), kitchenH.Stream)
		t.GET("/printers/:class/stream", perm(authz.KitchenRead), kitchenH.PrinterStream)

		inv := t.Group("/inventory")
		{
			inv.POST("/movements", perm(authz.InventoryWrite), inventoryH.RecordMovement)
			inv.GET("/movements", perm(authz.InventoryRead), inventoryH.ListMovements)
			inv.GET("/alerts", perm(authz.InventoryRead), inventoryH.Alerts)
		}

		t.GET("/accounting/entries", perm(authz.AccountingRead), accountingH.FindEntry)
	}

	// Swagger UI, outside production only
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
