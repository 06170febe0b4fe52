package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ninex/internal/handlers"
	"ninex/internal/middleware"
	"ninex/internal/models"
)

func SetupRoutes(
	r *gin.Engine,
	sessions *middleware.Sessions,
	limit gin.HandlerFunc, // per-IP лимитер для логина, сброса и прокси
	configSecret string,
	authHandler *handlers.AuthHandler,
	configHandler *handlers.ConfigHandler,
	proxyHandler *handlers.ProxyHandler,
	accountHandler *handlers.AccountHandler,
	reportHandler *handlers.ReportHandler,
	bulkHandler *handlers.BulkHandler,
	maintenanceHandler *handlers.MaintenanceHandler,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	cfg := r.Group("/api/config", middleware.RequireConfigSecret(configSecret))
	{
		cfg.GET("", configHandler.Get)
		cfg.POST("", configHandler.Validate)
	}
	r.POST("/api/login", limit, authHandler.Login)
	r.POST("/api/password-reset", limit, authHandler.PasswordReset)

	// ---- protected
	api := r.Group("/api", middleware.AuthMiddleware(sessions))

	api.Any("/proxy", limit, proxyHandler.Forward)
	api.GET("/me", accountHandler.Me)

	accounts := api.Group("/accounts")
	{
		accounts.GET("", accountHandler.List)
		accounts.GET("/count", accountHandler.Count)
		accounts.GET("/stats", accountHandler.Stats)
		accounts.GET("/report.pdf", reportHandler.AccountsPDF)
		accounts.POST("", accountHandler.Create)
		accounts.DELETE("/:id", accountHandler.Delete)
		accounts.POST("/:id/reset-hwid", accountHandler.ResetHWID)
		accounts.POST("/:id/credits", accountHandler.GiveCredits)
		accounts.POST("/:id/payment", middleware.RequireRoles(models.RoleGod), accountHandler.TogglePayment)
		accounts.PUT("/:id/purchased-days", middleware.RequireRoles(models.RoleGod), accountHandler.SetPurchasedDays)
	}

	// BULK (god/admin)
	bulk := api.Group("/bulk", middleware.RequireRoles(models.RoleGod, models.RoleAdmin))
	{
		bulk.POST("/reset-hwid", bulkHandler.ResetHWID)
		bulk.POST("/extend", bulkHandler.Extend)
		bulk.POST("/approve-payments", middleware.RequireRoles(models.RoleGod), bulkHandler.ApprovePayments)
	}

	api.GET("/maintenance", maintenanceHandler.Get)
	api.PUT("/maintenance", middleware.RequireRoles(models.RoleGod, models.RoleAdmin), maintenanceHandler.Put)

	return r
}
