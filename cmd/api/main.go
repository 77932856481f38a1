package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"builderhub/internal/calendar"
	"builderhub/internal/config"
	"builderhub/internal/database"
	"builderhub/internal/events"
	"builderhub/internal/flowstore"
	"builderhub/internal/identity"
	"builderhub/internal/middleware"
	"builderhub/internal/modules/booking"
	"builderhub/internal/modules/catalog"
	"builderhub/internal/modules/flow"
	"builderhub/internal/modules/payment"
	"builderhub/internal/pkg/logger"
	"builderhub/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("database migrate failed", zap.Error(err))
	}

	ctx := context.Background()

	sessionTypeRepo := repository.NewSessionTypeRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	bus := events.NewMemoryBus()
	hub := events.NewHub(bus, zl, cfg.CORSAllowedOrigins)
	jwtProvider := identity.NewJWTProvider(cfg.JWTSecret, cfg.JWTTTL)
	perms := identity.DefaultPermissions()

	cal, err := newCalendar(ctx, cfg)
	if err != nil {
		zl.Fatal("calendar init failed", zap.Error(err))
	}
	store, closeStore, err := newFlowStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("flow store init failed", zap.Error(err))
	}
	defer closeStore()

	catalogService := catalog.NewService(sessionTypeRepo)
	catalogHandler := catalog.NewHandler(catalogService)

	paymentService := payment.NewService(
		paymentRepo,
		bookingRepo,
		payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		payment.Config{AppBaseURL: cfg.AppBaseURL, Currency: cfg.StripeCurrency},
		zl,
	)
	paymentHandler := payment.NewHandler(paymentService, zl)

	bookingService := booking.NewService(bookingRepo, sessionTypeRepo, paymentService, zl)
	bookingHandler := booking.NewHandler(bookingService)

	orchestrator := flow.NewOrchestrator(catalogService, bookingService, paymentService, cal, zl)
	flowService := flow.NewService(store, orchestrator, bus, flow.Config{
		SignInPath: cfg.SignInPath,
		TTL:        cfg.FlowTTL,
	}, zl)
	flowHandler := flow.NewHandler(flowService, hub)

	r := gin.New()
	r.Use(middleware.RequestLogger(zl))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.MaxRequestsPerMin, zl))
	v1.Use(middleware.Identity(jwtProvider, zl))
	{
		catalogHandler.RegisterRoutes(v1)
		bookingHandler.RegisterRoutes(v1)
		paymentHandler.RegisterPublicRoutes(v1)
		flowHandler.RegisterRoutes(v1)

		builders := v1.Group("")
		builders.Use(middleware.RequirePermission(perms, identity.PermManageSessionTypes))
		catalogHandler.RegisterBuilderRoutes(builders)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequirePermission(perms, identity.PermReconcilePayments))
		paymentHandler.RegisterAdminRoutes(admin)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
	}
	zl.Info("server stopped")
}

func newCalendar(ctx context.Context, cfg *config.Config) (calendar.Calendar, error) {
	switch cfg.CalendarProvider {
	case "google":
		return calendar.NewGoogle(ctx, cfg.GoogleAccessToken, time.Duration(cfg.GoogleSlotInterval)*time.Minute)
	default:
		return calendar.NewCalendly(ctx, cfg.CalendlyBaseURL, cfg.CalendlyToken), nil
	}
}

func newFlowStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (flowstore.Store, func(), error) {
	if cfg.RedisAddr == "" {
		zl.Warn("REDIS_ADDR not set, flow snapshots kept in memory")
		return flowstore.NewMemoryStore(), func() {}, nil
	}
	client, err := flowstore.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisFlowDB)
	if err != nil {
		return nil, nil, err
	}
	zl.Info("flow snapshots in redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisFlowDB))
	return flowstore.NewRedisStore(client), func() { _ = client.Close() }, nil
}
