package main

import (
	// standard library
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// third-party
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// internal
	"github.com/rmitchellscott/couchpilot/internal/auth"
	"github.com/rmitchellscott/couchpilot/internal/config"
	"github.com/rmitchellscott/couchpilot/internal/database"
	"github.com/rmitchellscott/couchpilot/internal/handlers"
	"github.com/rmitchellscott/couchpilot/internal/logging"
	"github.com/rmitchellscott/couchpilot/internal/middleware"
	"github.com/rmitchellscott/couchpilot/internal/version"
)

func main() {
	_ = godotenv.Load()
	logging.InfoWithComponent(logging.ComponentStartup, "Starting Couchpilot server", "version", version.String())

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if err := database.Initialize(); err != nil {
		logging.ErrorWithComponent(logging.ComponentStartup, "Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if mode := config.Get("GIN_MODE", ""); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	// Configure CORS for the browser-based owner UI
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		// Agent headers
		"Access-Token",
		"X-Request-ID",
	}
	router.Use(cors.New(corsConfig))

	// Public auth endpoints
	router.POST("/api/auth/register", auth.RegisterHandler)
	router.POST("/api/auth/login", auth.LoginHandler)
	router.POST("/api/auth/logout", auth.LogoutHandler)
	router.GET("/api/auth/check", auth.CheckAuthHandler)

	// Device activation is public: the registration token is the credential
	router.POST("/api/devices/activate", handlers.ActivateDeviceHandler)

	// Owner endpoints
	owner := router.Group("/api", auth.AuthMiddleware())
	owner.POST("/devices", handlers.CreateDeviceHandler)
	owner.GET("/devices", handlers.GetDevicesHandler)
	owner.DELETE("/devices/:id", handlers.DeleteDeviceHandler)
	owner.GET("/devices/:id/commands", handlers.ListCommandsHandler)
	owner.POST("/commands", handlers.EnqueueCommandHandler)

	// Agent endpoints, authenticated by the per-device API key
	rateLimiter := middleware.NewDeviceRateLimiter()
	agent := router.Group("/api/agent", rateLimiter.RateLimit(), auth.DeviceAuthMiddleware())
	agent.POST("/checkin", handlers.CheckInHandler)
	agent.GET("/poll", handlers.PollHandler)
	agent.POST("/commands/:id/failure", handlers.ReportFailureHandler)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := ":" + config.Get("PORT", "8000")
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logging.InfoWithComponent(logging.ComponentStartup, "Listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorWithComponent(logging.ComponentStartup, "Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logging.Info("Server stopped")
}
