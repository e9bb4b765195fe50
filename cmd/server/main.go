package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brandlens/brandlens/internal/app"
	"github.com/brandlens/brandlens/internal/webfs"
)

// Version info - injected at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	server, err := app.CreateServer(app.ServerConfig{
		Version: version,
		Commit:  commit,
		WebFS:   webfs.FS,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer server.Cleanup()

	cleanupCancel, cleanupDone := server.StartCleanupLoop()

	// Pick up a scan the engine may already be running
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Monitor.Resync(ctx)
	}()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		if err := server.HTTP.Shutdown(context.Background()); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		cleanupCancel()
		<-cleanupDone
	}()

	log.Printf("Server listening on http://localhost:%d", server.Config.Port)
	if err := server.HTTP.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
