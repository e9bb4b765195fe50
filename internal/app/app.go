// Package app provides shared application initialization logic used by both
// the server (CLI) and desktop (Wails) entry points.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/db"
	"github.com/brandlens/brandlens/internal/handlers"
	"github.com/brandlens/brandlens/internal/ingress"
	"github.com/brandlens/brandlens/internal/quota"
	"github.com/brandlens/brandlens/internal/scheduler"
	"github.com/brandlens/brandlens/internal/services"
	"github.com/brandlens/brandlens/internal/session"
)

// ServerConfig contains options for creating the application server.
type ServerConfig struct {
	// Port to listen on. If 0, uses config default.
	Port int

	// EngineBinary path override. If empty, the engine is expected to
	// already be running at the configured URL.
	EngineBinary string

	// Version string for display.
	Version string

	// Commit hash for display.
	Commit string

	// WebFS is the embedded filesystem containing web assets.
	WebFS fs.FS

	// BindAddress is the address to bind to. Defaults to "" (all interfaces).
	// Use "127.0.0.1" for desktop mode to only allow local connections.
	BindAddress string

	// DisableCSRF disables CSRF protection. Use for desktop mode where
	// the server only accepts local connections and CSRF isn't a concern.
	DisableCSRF bool
}

// Server wraps the HTTP server and associated resources.
type Server struct {
	HTTP      *http.Server
	Config    *config.Config
	Database  *db.DB
	Engine    *backend.Engine
	Client    *backend.Client
	Monitor   *services.Monitor
	Feed      *backend.Feed
	Scheduler *scheduler.Scheduler
}

// CreateServer initializes all application components and returns a Server.
// Call Server.Cleanup() when done to release resources.
func CreateServer(cfg ServerConfig) (*Server, error) {
	appCfg := config.Load()
	if cfg.Port > 0 {
		appCfg.Port = cfg.Port
	}

	log.Printf("brandlens starting...")
	log.Printf("  Database: %s", appCfg.DBPath)
	log.Printf("  Port: %d", appCfg.Port)
	log.Printf("  Engine: %s", appCfg.EngineURL)

	database, err := db.Open(appCfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Retention from the settings table unless overridden by env
	if val, err := database.GetSetting("retention_days"); err == nil && val != "" {
		if days, err := strconv.Atoi(val); err == nil && days >= 1 && days <= 365 {
			appCfg.RetentionDays = days
		}
	}
	log.Printf("  Retention: %d days", appCfg.RetentionDays)

	// Launch the bundled engine when we have a binary; otherwise attach
	// to one already running at the configured URL.
	engine := backend.NewEngine()
	if cfg.EngineBinary != "" {
		engine.SetBinaryPath(cfg.EngineBinary)
		addr := strings.TrimPrefix(appCfg.EngineURL, "http://")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := engine.Start(ctx, addr); err != nil {
			log.Printf("Warning: engine did not start: %v", err)
			log.Printf("  Scans will fail until the engine is reachable")
		}
		cancel()
	}

	client := backend.NewClient(appCfg.EngineURL)
	q := quota.New(client.CheckDailyUsage, appCfg.QuotaDebounce)
	monitor := services.NewMonitor(database, client, session.New(), q, appCfg.Region)

	// Feed events flow through the dispatcher into the monitor. The
	// once guard keeps a webview reload from installing a second
	// handler. Reconnects resync state missed while disconnected.
	dispatcher := ingress.New(monitor)
	var feed *backend.Feed
	dispatcher.EnsureInstalled(func(handler backend.Handler) {
		feed = backend.NewFeed(appCfg.EventsURL(), handler, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			monitor.Resync(ctx)
		})
	})
	feed.Start()

	sched := scheduler.New(database, monitor)
	sched.Start()

	versionStr := buildVersionString(cfg.Version, cfg.Commit)

	h, err := handlers.New(database, appCfg, client, monitor, cfg.WebFS, versionStr, cfg.DisableCSRF)
	if err != nil {
		feed.Stop()
		sched.Stop()
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	handlers.StartCSRFCleanup()

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, appCfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // No timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTP:      server,
		Config:    appCfg,
		Database:  database,
		Engine:    engine,
		Client:    client,
		Monitor:   monitor,
		Feed:      feed,
		Scheduler: sched,
	}, nil
}

// Cleanup releases all resources held by the server.
func (s *Server) Cleanup() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.Feed != nil {
		s.Feed.Stop()
	}
	if s.Engine != nil {
		s.Engine.Stop()
	}
	if s.Database != nil {
		s.Database.Close()
	}
}

// StartCleanupLoop starts a background goroutine that periodically cleans up old data.
// Returns a cancel function and a done channel.
func (s *Server) StartCleanupLoop() (cancel func(), done <-chan struct{}) {
	cleanupDone := make(chan struct{})
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())

	go func() {
		defer close(cleanupDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				log.Printf("Running cleanup (retention: %d days)", s.Config.RetentionDays)
				if err := s.Database.CleanupOldData(s.Config.RetentionDays); err != nil {
					log.Printf("Cleanup error: %v", err)
				}
			}
		}
	}()

	return cleanupCancel, cleanupDone
}

func buildVersionString(version, commit string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	shortCommit := commit
	if len(shortCommit) > 7 {
		shortCommit = shortCommit[:7]
	}
	if shortCommit == "" {
		shortCommit = "unknown"
	}
	return version + "-" + shortCommit
}
