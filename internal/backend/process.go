package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Engine manages the external scanning-engine process. Desktop builds
// launch a bundled binary; server mode can attach to one already
// running and never calls Start.
type Engine struct {
	binaryPath string
	cmd        *exec.Cmd
}

// NewEngine creates an engine manager that resolves the binary from
// PATH unless overridden.
func NewEngine() *Engine {
	return &Engine{binaryPath: "brandlens-engine"}
}

// SetBinaryPath sets a custom path to the engine binary.
func (e *Engine) SetBinaryPath(path string) {
	e.binaryPath = path
}

// CheckInstalled verifies the engine binary is present and executable.
func (e *Engine) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, e.binaryPath, "--version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("engine not found or not executable: %w", err)
	}
	if !strings.Contains(string(output), "brandlens-engine") {
		return fmt.Errorf("unexpected output from engine --version: %s", output)
	}
	return nil
}

// Start launches the engine listening on addr and waits until its
// command API answers or the context expires.
func (e *Engine) Start(ctx context.Context, addr string) error {
	if e.cmd != nil {
		return fmt.Errorf("engine already started")
	}

	cmd := exec.Command(e.binaryPath, "--listen", addr)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	e.cmd = cmd

	client := NewClient("http://" + addr)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return fmt.Errorf("engine did not become ready: %w", ctx.Err())
		case <-ticker.C:
			if _, err := client.IsScanRunning(ctx); err == nil {
				return nil
			}
		}
	}
}

// Stop terminates a launched engine process.
func (e *Engine) Stop() {
	if e.cmd == nil || e.cmd.Process == nil {
		return
	}
	e.cmd.Process.Kill()
	e.cmd.Wait()
	e.cmd = nil
}

// FindBundledEngine looks for a bundled engine binary next to the
// executable, falling back to the system PATH.
func FindBundledEngine() string {
	if envPath := os.Getenv("BRANDLENS_ENGINE_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		// Inside .app bundle: Brandlens.app/Contents/MacOS/Brandlens
		// Resources at: Brandlens.app/Contents/Resources/
		candidates = []string{
			filepath.Join(execDir, "..", "Resources", "brandlens-engine"),
			filepath.Join(execDir, "brandlens-engine"),
		}
	case "windows":
		candidates = []string{
			filepath.Join(execDir, "brandlens-engine.exe"),
		}
	default: // Linux
		candidates = []string{
			filepath.Join(execDir, "brandlens-engine"),
			filepath.Join(execDir, "..", "lib", "brandlens", "brandlens-engine"),
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if path, err := exec.LookPath("brandlens-engine"); err == nil {
		return path
	}

	return "" // Attach mode: the engine may already be running.
}
