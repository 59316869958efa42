// Package main is the entry point for the CloverDrive server.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/cloverdrive/internal/assist"
	"github.com/CageChen/cloverdrive/internal/config"
	"github.com/CageChen/cloverdrive/internal/handler"
	"github.com/CageChen/cloverdrive/internal/launcher"
	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/metrics"
	"github.com/CageChen/cloverdrive/internal/vault"
	"github.com/CageChen/cloverdrive/internal/watcher"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}

	if err := logging.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync() }()
	log := logging.L()

	if !cfg.Exists() {
		if err := cfg.WriteDefaults(); err != nil {
			log.Warn("cannot write default config", logging.Path(cfg.GetConfigFilePath()), logging.Err(err))
		}
	}

	roots, err := vault.ResolveRoots(cfg.DataDir, cfg.VaultDir, cfg.TrashDir)
	if err == nil {
		roots, err = roots.Ensure()
	}
	if err != nil {
		log.Fatal("vault storage unavailable", logging.Err(err))
	}

	log.Info("CloverDrive starting",
		logging.String("config", cfg.GetConfigFilePath()),
		logging.String("vault", roots.Vault),
		logging.String("trash", roots.Trash),
		logging.Int("port", cfg.Port),
	)

	v := vault.New(roots, vault.WithCollisionPolicy(cfg.CollisionPolicy()))

	// Create handlers
	vaultHandler := handler.NewVaultHandler(v, launcher.System{})
	wsHandler := handler.NewWSHandler(roots.Trash)
	assistService := assist.NewService(
		assist.NewClient(cfg.Assist.Endpoint, cfg.Assist.Timeout),
		assist.Policy{
			Backends: cfg.Assist.Models,
			Retries:  cfg.Assist.Retries,
		},
	)
	assistHandler := handler.NewAssistHandler(assistService, cfg.Assist.APIKey)

	// Setup file watcher if enabled
	if cfg.Watch {
		w, err := watcher.New(roots.Vault, roots.Trash)
		if err != nil {
			log.Warn("failed to create file watcher", logging.Err(err))
		} else {
			w.OnChange(wsHandler.OnVaultChange)
			if err := w.Start(); err != nil {
				log.Warn("failed to start file watcher", logging.Err(err))
			}
			defer func() { _ = w.Stop() }()
			log.Info("file watcher enabled")
		}
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := newRouter(vaultHandler, assistHandler, wsHandler)

	// Serve the GUI if one is configured
	if cfg.UIDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.UIDir))))
		log.Info("serving GUI", logging.Path(cfg.UIDir))
	}

	// Open browser if requested
	if cfg.Open {
		url := fmt.Sprintf("http://localhost:%d", cfg.Port)
		if err := (launcher.System{}).Open(url); err != nil {
			log.Warn("failed to open browser", logging.Err(err))
		}
	}

	// Start server on loopback only; the API can delete files
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	if err := r.Run(addr); err != nil {
		log.Fatal("server failed", logging.Err(err))
	}
}

// newRouter wires the API routes behind the shared middleware.
func newRouter(vaultHandler *handler.VaultHandler, assistHandler *handler.AssistHandler, wsHandler *handler.WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware())
	r.Use(metrics.Middleware())
	r.Use(corsMiddleware())

	// API routes
	api := r.Group("/api")
	api.Use(requireJSON())
	{
		vaultHandler.Register(api)
		api.POST("/assist", assistHandler.Generate)
		api.GET("/ws", wsHandler.HandleWS)
	}
	r.GET("/metrics", metrics.Handler())
	return r
}

// corsMiddleware only lets pages served from this machine talk to the API.
// Requests from any other origin are refused before reaching a handler.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !handler.LocalOrigin(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, "+logging.RequestIDHeader)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireJSON rejects state-changing requests that are not application/json,
// so a browser always sends a preflight for them.
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.ContentType() != "application/json" {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json"})
			return
		}
		c.Next()
	}
}
