package main

import (
	"context"
	"embed"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"github.com/brandlens/brandlens/internal/app"
	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/webfs"
)

// Version info - injected at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

//go:embed all:build/appicon.png
var iconFS embed.FS

func main() {
	// Set desktop-specific defaults before loading config
	setDesktopDefaults()

	// Find available port for internal server
	port, err := findAvailablePort()
	if err != nil {
		log.Fatalf("Failed to find available port: %v", err)
	}

	// Find bundled engine binary
	engineBinary := backend.FindBundledEngine()
	if engineBinary != "" {
		log.Printf("Using bundled engine: %s", engineBinary)
	}

	// Create the internal HTTP server
	server, err := app.CreateServer(app.ServerConfig{
		Port:         port,
		EngineBinary: engineBinary,
		Version:      version,
		Commit:       commit,
		WebFS:        webfs.FS,
		BindAddress:  "127.0.0.1", // Only local connections
		DisableCSRF:  true,        // CSRF not needed for desktop app
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Start cleanup loop
	cleanupCancel, cleanupDone := server.StartCleanupLoop()

	// Create reverse proxy to internal server
	targetURL, _ := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", port))
	proxy := httputil.NewSingleHostReverseProxy(targetURL)

	// Read app icon
	iconData, err := iconFS.ReadFile("build/appicon.png")
	if err != nil {
		log.Printf("Warning: Could not load app icon: %v", err)
	}

	// Create Wails application
	desktopApp := NewApp(server)

	err = wails.Run(&options.App{
		Title:     "BrandLens",
		Width:     1100,
		Height:    780,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Handler: proxy,
		},
		OnStartup: func(ctx context.Context) {
			desktopApp.startup(ctx)
			// Start HTTP server in background
			go func() {
				log.Printf("Internal server listening on http://127.0.0.1:%d", port)
				if err := server.HTTP.ListenAndServe(); err != http.ErrServerClosed {
					log.Printf("HTTP server error: %v", err)
				}
			}()
			// Pick up a scan the engine may already be running
			go server.Monitor.Resync(ctx)
		},
		OnShutdown: func(ctx context.Context) {
			log.Println("Shutting down...")
			server.HTTP.Shutdown(context.Background())
			cleanupCancel()
			<-cleanupDone
			server.Cleanup()
			log.Println("Shutdown complete")
		},
		Bind: []interface{}{
			desktopApp,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: false,
			},
			About: &mac.AboutInfo{
				Title:   "BrandLens",
				Message: fmt.Sprintf("AI Brand Visibility Monitor\n\nVersion: %s", displayVersion()),
				Icon:    iconData,
			},
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
		},
	})

	if err != nil {
		log.Fatalf("Wails error: %v", err)
	}
}

// findAvailablePort finds an available TCP port on localhost.
func findAvailablePort() (int, error) {
	// Try preferred port first
	preferredPort := 18080
	if isPortAvailable(preferredPort) {
		return preferredPort, nil
	}

	// Otherwise find any available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// isPortAvailable checks if a port is available on localhost.
func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// setDesktopDefaults sets environment variables for desktop-appropriate defaults
// if they're not already set.
func setDesktopDefaults() {
	// Set default DB path to user's app data directory
	if os.Getenv("BRANDLENS_DB_PATH") == "" {
		dataDir := getAppDataDir()
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Printf("Warning: Could not create data directory: %v", err)
		}
		os.Setenv("BRANDLENS_DB_PATH", filepath.Join(dataDir, "brandlens.db"))
	}
}

// getAppDataDir returns the platform-appropriate application data directory.
func getAppDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "BrandLens")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "BrandLens")
	default: // Linux and others
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "brandlens")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "brandlens")
	}
}

// displayVersion creates a display version string.
func displayVersion() string {
	if version == "dev" {
		return "Development"
	}
	return version
}
