// Package main is the entry point for the Beacon session control plane.
// It initializes the database, background reconciliation loops, and the
// HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beacon/core/repository"
	"beacon/core/service"
	"beacon/database"
	"beacon/handler"
	"beacon/utils/config"
	"beacon/utils/fsprobe"
	"beacon/utils/sshutil"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting Beacon session control plane...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	log.Println("Database initialized successfully")

	// Create repository instances
	instanceRepo := repository.NewInstanceRepository(database.GetDB())
	machineRepo := repository.NewMachineRepository(database.GetDB())
	activityLogRepo := repository.NewActivityLogRepository(database.GetDB())

	// Create service instances
	executor := sshutil.NewExecutor(machineRepo, cfg.Preflight.SSHTimeout)
	hub := service.NewEventHub()
	defer hub.Close()

	ledger := service.NewActivityLedger()
	probe := fsprobe.New(cfg.Reconciler.ProbeWindow)
	reconciler := service.NewReconciler(
		ledger, instanceRepo, activityLogRepo, hub, probe,
		cfg.Reconciler.SweepInterval, cfg.Reconciler.ActivityTimeout,
	)

	vault := service.NewCredentialVault(cfg.Vault.ServiceName, cfg.Vault.UnlockAttempts, cfg.Vault.UnlockDelay)
	tunnelMonitor := service.NewTunnelHealthMonitor(
		machineRepo, instanceRepo, executor, hub,
		cfg.Tunnel.ProbeInterval, cfg.Tunnel.ProbeTimeout,
	)
	preflight := service.NewPreflightInspector(
		machineRepo, executor, vault, tunnelMonitor,
		cfg.Preflight.RequiredTools, cfg.Preflight.RequiredHooks, cfg.Preflight.AgentBinary,
	)

	// Start background loops
	reconciler.Start()
	defer reconciler.Stop()
	tunnelMonitor.Start()
	defer tunnelMonitor.Stop()
	go startLogRetention(activityLogRepo, cfg.LogRetention.Days)

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
		log.Println("Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in DEBUG mode")
	}

	// Create Gin engine
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Server.Mode != "release" {
		engine.Use(gin.Logger())
	}

	// Add CORS middleware
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	beacon := engine.Group("/beacon")
	{
		// The health endpoint doubles as the tunnel probe target: remote
		// machines curl it through their reverse tunnels.
		beacon.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "healthy",
				"time":   time.Now(),
			})
		})

		// Instance management endpoints
		instanceHandler := handler.NewInstanceHandler(instanceRepo, ledger)
		activityHandler := handler.NewActivityHandler(activityLogRepo)

		instances := beacon.Group("/instances")
		{
			instances.GET("", instanceHandler.ListInstances)
			instances.POST("", instanceHandler.CreateInstance)
			instances.GET("/:id", instanceHandler.GetInstance)
			instances.DELETE("/:id", instanceHandler.DeleteInstance)
			instances.GET("/:id/activity", activityHandler.ListInstanceActivity)
		}

		// Machine management, preflight, and keychain endpoints
		machineHandler := handler.NewMachineHandler(machineRepo, vault, preflight, tunnelMonitor, executor)
		machines := beacon.Group("/machines")
		{
			machines.GET("", machineHandler.ListMachines)
			machines.POST("", machineHandler.CreateMachine)
			machines.GET("/:id", machineHandler.GetMachine)
			machines.DELETE("/:id", machineHandler.DeleteMachine)
			machines.GET("/:id/preflight", machineHandler.RunPreflight)
			machines.GET("/:id/preflight/quick", machineHandler.QuickCheck)
			machines.GET("/:id/keychain", machineHandler.GetKeychainStatus)
			machines.PUT("/:id/keychain", machineHandler.StoreKeychainPassword)
			machines.DELETE("/:id/keychain", machineHandler.DeleteKeychainPassword)
			machines.POST("/:id/keychain/unlock", machineHandler.UnlockKeychain)
		}

		// Tunnel health endpoints
		tunnelHandler := handler.NewTunnelHandler(tunnelMonitor)
		tunnels := beacon.Group("/tunnels")
		{
			tunnels.GET("", tunnelHandler.ListTunnels)
			tunnels.GET("/:machineId", tunnelHandler.GetTunnel)
			tunnels.POST("/:machineId/reconnect", tunnelHandler.ForceReconnect)
		}

		// Hook ingestion endpoints
		hookHandler := handler.NewHookHandler(instanceRepo, reconciler)
		hooks := beacon.Group("/hooks")
		{
			hooks.POST("/status", hookHandler.Status)
			hooks.POST("/notification", hookHandler.Notification)
			hooks.POST("/stop", hookHandler.Stop)
		}

		// Activity log and event stream
		beacon.GET("/activity", activityHandler.ListActivity)

		eventHandler := handler.NewEventHandler(hub)
		beacon.GET("/events", eventHandler.Stream)
	}

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Beacon server listening on %s", addr)
		log.Println("API available at: /beacon")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// startLogRetention prunes old activity log entries once a day.
func startLogRetention(logs *repository.ActivityLogRepository, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	log.Printf("Activity log retention started (%d days)", days)

	for {
		<-ticker.C
		deleted, err := logs.DeleteOlderThan(days)
		if err != nil {
			log.Printf("Failed to prune activity logs: %v", err)
			continue
		}
		if deleted > 0 {
			log.Printf("Pruned %d activity log entries older than %d days", deleted, days)
		}
	}
}
