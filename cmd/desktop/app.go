package main

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/brandlens/brandlens/internal/app"
)

// App struct holds the Wails application context and provides
// methods that can be called from the frontend.
type App struct {
	ctx    context.Context
	server *app.Server
}

// NewApp creates a new App instance.
func NewApp(server *app.Server) *App {
	return &App{server: server}
}

// startup is called when the app starts.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// OpenPlatformLogin opens the platform's login page in the system
// browser. Logging in happens in the real browser, not the webview,
// because the engine reads the browser's session.
func (a *App) OpenPlatformLogin(platformID string) error {
	loginURL := a.server.Client.PlatformURL(platformID)
	if loginURL == "" {
		return nil
	}
	return openBrowser(loginURL)
}

// OpenURL opens an external URL in the system browser.
func (a *App) OpenURL(url string) error {
	return openBrowser(url)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default: // Linux
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
