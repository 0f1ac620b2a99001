package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apcs-space/access-service/internal/config"
	"github.com/apcs-space/access-service/internal/handler"
	"github.com/apcs-space/access-service/internal/repository"
	"github.com/apcs-space/access-service/internal/service"
	"github.com/apcs-space/access-service/internal/utils"
	"github.com/apcs-space/access-service/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	signer := utils.NewSigner(cfg.Auth.TokenSecret)
	stateCodec := utils.NewStateCodec(cfg.Auth.TokenSecret, cfg.Auth.OAuthStateExpiry.Duration)
	cache := service.NewAccessCache(infra.Redis(), cfg.Access.CourseCacheTTL.Duration)
	mailer := service.NewSMTPMailer(cfg.SMTP)
	rateLimiter := service.NewRateLimiter(infra.Redis(), cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration)
	healthChecker := NewHealthChecker(infra)

	entitlements := service.NewEntitlementService(repos, cache, signer, cfg.Access, infra.Logger())
	accounts := service.NewAccountService(repos, cache, mailer, cfg.Auth, cfg.Security.BCryptCost, infra.Logger())
	oauth := service.NewOAuthService(cfg.Google, stateCodec, repos, cache, cfg.Auth.SessionExpiry.Duration, infra.Logger())

	accessMetrics, err := observability.NewAccessMetrics(infra.MeterProvider())
	if err != nil {
		infra.Logger().Warn("access metrics disabled", zap.Error(err))
	}

	accessHandler := handler.NewAccessHandler(entitlements, accessMetrics, infra.Logger())
	authHandler := handler.NewAuthHandler(accounts, entitlements, infra.Logger())
	oauthHandler := handler.NewOAuthHandler(oauth, cfg.Google.SuccessPath, infra.Logger())

	router := gin.Default()
	router.Use(otelgin.Middleware("access-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, accessHandler, authHandler, oauthHandler, rateLimiter, healthChecker, infra.MetricsHandler(), infra.Logger())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	accessHandler *handler.AccessHandler,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
	logger *zap.Logger,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	throttled := func(keyFunc func(*gin.Context) string) gin.HandlerFunc {
		return handler.RateLimitMiddleware(rateLimiter, keyFunc, logger)
	}

	api := router.Group("/api")
	{
		// Redemption and per-lesson checks; code guessing gets throttled.
		api.POST("/validate-code", throttled(handler.PathAndIPKey), accessHandler.ValidateCode)
		api.POST("/check-lesson", accessHandler.CheckLesson)
		api.POST("/verify-access", accessHandler.VerifyAccess)
		api.POST("/verify-token", accessHandler.VerifyToken)

		auth := api.Group("/auth")
		{
			auth.POST("/register", throttled(handler.IPBasedKey), authHandler.Register)
			auth.POST("/verify-email", throttled(handler.IPBasedKey), authHandler.VerifyEmail)
			auth.POST("/resend-verification", throttled(handler.IPBasedKey), authHandler.ResendVerification)
			auth.POST("/login", throttled(handler.IPBasedKey), authHandler.Login)
			auth.POST("/verify-session", authHandler.VerifySession)
			auth.POST("/redeem-code", throttled(handler.PathAndIPKey), authHandler.RedeemCode)
			auth.GET("/my-courses", handler.SessionMiddleware(), authHandler.MyCourses)

			google := auth.Group("/google")
			{
				google.GET("/login", oauthHandler.GoogleLogin)
				google.GET("/callback", oauthHandler.GoogleCallback)
			}
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
