package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ninex/internal/airtable"
	"ninex/internal/config"
	"ninex/internal/handlers"
	"ninex/internal/middleware"
	"ninex/internal/paging"
	"ninex/internal/pdf"
	"ninex/internal/ratelimit"
	"ninex/internal/repositories"
	"ninex/internal/routes"
	"ninex/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "ninex/docs"
)

const sweepInterval = time.Minute

func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Telegram.Timezone)
	if err != nil {
		log.Printf("[app] unknown timezone %q, using UTC: %v", cfg.Telegram.Timezone, err)
		loc = time.UTC
	}

	// === Store ===
	accountsClient := airtable.NewClient(cfg.Airtable.Token, cfg.Airtable.TableURL(), cfg.Airtable.Timeout)
	accountRepo := repositories.NewAccountRepository(accountsClient)

	var settingsRepo repositories.SettingsRepository
	if u := cfg.Airtable.SettingsURL(); u != "" {
		settingsRepo = repositories.NewSettingsRepository(airtable.NewClient(cfg.Airtable.Token, u, cfg.Airtable.Timeout))
	} else {
		log.Printf("[app] no settings table configured, maintenance state falls back to the first account record")
	}

	// === Services ===
	telegram := services.NewTelegramService(cfg.Telegram.BotToken)
	if !telegram.Enabled() {
		log.Printf("[app] TELEGRAM_BOT_TOKEN is empty, login and password reset will be unavailable")
	}
	pages := paging.NewStore(cfg.Security.SessionTimeout)

	accessService := services.NewAccessService(accountRepo)
	bulkService := services.NewBulkService(accountRepo, accessService)
	maintenanceService := services.NewMaintenanceService(settingsRepo, accountRepo, bulkService)
	accountService := services.NewAccountService(accountRepo, accessService, maintenanceService, pages, cfg.Billing.Packages)
	authService := services.NewAuthService(accountRepo, telegram, loc)

	// === Rate limit ===
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb, err := ratelimit.ConnectRedis(ctx, cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPass, cfg.RateLimit.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, cfg.RateLimit.Capacity, cfg.RateLimit.Refill, cfg.RateLimit.IdleTTL)
	default:
		mem := ratelimit.NewMemory(cfg.RateLimit.Capacity, cfg.RateLimit.Refill, cfg.RateLimit.IdleTTL)
		go mem.Run(ctx, sweepInterval)
		limiter = mem
	}

	go sweepSessions(ctx, pages)

	// === Handlers ===
	sessions := middleware.NewSessions(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
	proxyHandler, err := handlers.NewProxyHandler(cfg.Airtable.Token, cfg.Airtable.APIURL, cfg.Airtable.Timeout)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	authHandler := handlers.NewAuthHandler(authService, sessions)
	configHandler := handlers.NewConfigHandler(cfg.Airtable.Token, cfg.Airtable.TableURL(), cfg.Airtable.APIURL, cfg.Airtable.Timeout)
	accountHandler := handlers.NewAccountHandler(accountService)
	reportHandler := handlers.NewReportHandler(accountService, pdf.NewReportGenerator(cfg.Reports.FontPath))
	bulkHandler := handlers.NewBulkHandler(bulkService)
	maintenanceHandler := handlers.NewMaintenanceHandler(maintenanceService)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(
		router,
		sessions,
		ratelimit.Middleware(limiter),
		cfg.Security.ConfigSecret,
		authHandler,
		configHandler,
		proxyHandler,
		accountHandler,
		reportHandler,
		bulkHandler,
		maintenanceHandler,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Airtable-Url", "X-Config-Secret"},
		ExposedHeaders: []string{"Retry-After", "Content-Disposition"},
	}).Handler(router)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[app] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, pages *paging.Store) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := pages.Sweep(); n > 0 {
				log.Printf("[paging][sweep] evicted=%d live=%d", n, pages.Len())
			}
		}
	}
}
