// Package backend is the boundary to the external scanning engine: a
// command client over HTTP, a websocket event feed, and the payload
// normalization that keeps the engine's naming quirks out of the core.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/brandlens/brandlens/internal/quota"
	"github.com/brandlens/brandlens/internal/session"
)

// Client invokes engine commands. Failures surface as plain error
// messages; the engine does not expose structured error kinds.
type Client struct {
	baseURL string
	http    *http.Client

	// Platform catalog cache, refreshed on demand.
	platMu    sync.Mutex
	platforms []Platform
}

// NewClient creates a command client for the engine at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Product is a monitored product the user has access to.
type Product struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Brand  string `json:"brand"`
	Domain string `json:"domain,omitempty"`
}

// Status is the signed-in user plus their products.
type Status struct {
	User          AuthUser  `json:"user"`
	Products      []Product `json:"products"`
	ActiveProduct *Product  `json:"activeProduct,omitempty"`
}

// Platform describes an AI platform the engine can scan.
type Platform struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebsiteURL string `json:"website_url,omitempty"`
}

// PromptBundle is the product-scoped prompt fetch: the prompt count
// for gating plus an optional embedded quota snapshot that saves a
// second round trip.
type PromptBundle struct {
	Product      Product
	PromptCount  int
	TotalPrompts int
	Platforms    []string
	Competitors  []string
	Quota        *quota.Update
}

// StartScanRequest configures a scan run.
type StartScanRequest struct {
	ProductID        string   `json:"product_id"`
	SamplesPerPrompt int      `json:"samples_per_prompt"`
	Platforms        []string `json:"platforms"`
	MaxTests         int      `json:"max_tests,omitempty"`
}

// DiscoveryResult is the outcome of a keyword-discovery run request.
type DiscoveryResult struct {
	Success           bool   `json:"success"`
	DiscoveryRunID    string `json:"discovery_run_id,omitempty"`
	QuestionsFound    int    `json:"questions_found,omitempty"`
	QuestionsInserted int    `json:"questions_inserted,omitempty"`
	Message           string `json:"message,omitempty"`
	Code              string `json:"code,omitempty"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("engine response read failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("engine error %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("engine response parse failed: %w", err)
	}
	return nil
}

// CheckDailyUsage pulls the authoritative daily quota snapshot.
func (c *Client) CheckDailyUsage(ctx context.Context) (quota.Update, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/api/usage/daily", &raw); err != nil {
		return quota.Update{}, err
	}
	return ParseUsage(raw)
}

type promptBundleWire struct {
	Product     Product           `json:"product"`
	Prompts     []json.RawMessage `json:"prompts"`
	Competitors []string          `json:"competitors"`
	TotalCamel  *int              `json:"totalPrompts"`
	TotalSnake  *int              `json:"total_prompts"`
	Platforms   []string          `json:"platforms"`
	Quota       json.RawMessage   `json:"quota"`
}

// FetchExtensionPrompts fetches the prompt set configured for a
// product, including the embedded quota snapshot when present.
func (c *Client) FetchExtensionPrompts(ctx context.Context, productID string) (PromptBundle, error) {
	var wire promptBundleWire
	path := "/api/products/" + url.PathEscape(productID) + "/prompts"
	if err := c.get(ctx, path, &wire); err != nil {
		return PromptBundle{}, err
	}

	bundle := PromptBundle{
		Product:     wire.Product,
		PromptCount: len(wire.Prompts),
		Platforms:   wire.Platforms,
		Competitors: wire.Competitors,
	}
	if total := firstInt(wire.TotalCamel, wire.TotalSnake); total != nil {
		bundle.TotalPrompts = *total
	} else {
		bundle.TotalPrompts = bundle.PromptCount
	}
	if len(wire.Quota) > 0 && string(wire.Quota) != "null" {
		if update, err := ParseUsage(wire.Quota); err == nil {
			bundle.Quota = &update
		}
	}
	return bundle, nil
}

// StartScan asks the engine to begin a scan. Progress arrives through
// the event feed, not the response.
func (c *Client) StartScan(ctx context.Context, req StartScanRequest) error {
	return c.post(ctx, "/api/scan/start", req, nil)
}

// CancelScan asks the engine to stop the current scan.
func (c *Client) CancelScan(ctx context.Context) error {
	return c.post(ctx, "/api/scan/cancel", nil, nil)
}

// GetScanProgress pulls a one-shot progress snapshot, used to
// resynchronize when a scan is discovered already running.
func (c *Client) GetScanProgress(ctx context.Context) (session.Progress, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/api/scan/progress", &raw); err != nil {
		return session.Progress{}, err
	}
	return ParseProgress(raw)
}

// IsScanRunning reports whether the engine has a scan in flight.
func (c *Client) IsScanRunning(ctx context.Context) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	if err := c.get(ctx, "/api/scan/running", &out); err != nil {
		return false, err
	}
	return out.Running, nil
}

// GetStatus returns the signed-in user and their products.
func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	var status Status
	err := c.get(ctx, "/api/status", &status)
	return status, err
}

// GetAIPlatforms returns the platform catalog, cached after the first
// successful fetch.
func (c *Client) GetAIPlatforms(ctx context.Context, forceRefresh bool) ([]Platform, error) {
	c.platMu.Lock()
	if !forceRefresh && c.platforms != nil {
		cached := make([]Platform, len(c.platforms))
		copy(cached, c.platforms)
		c.platMu.Unlock()
		return cached, nil
	}
	c.platMu.Unlock()

	var platforms []Platform
	if err := c.get(ctx, "/api/platforms", &platforms); err != nil {
		return nil, err
	}

	c.platMu.Lock()
	c.platforms = platforms
	c.platMu.Unlock()
	return platforms, nil
}

// PlatformURL returns the login URL for a platform, falling back to
// well-known addresses when the catalog has no entry.
func (c *Client) PlatformURL(platformID string) string {
	c.platMu.Lock()
	for _, p := range c.platforms {
		if p.ID == platformID && p.WebsiteURL != "" {
			c.platMu.Unlock()
			return p.WebsiteURL
		}
	}
	c.platMu.Unlock()

	switch platformID {
	case "chatgpt":
		return "https://chatgpt.com/"
	case "claude":
		return "https://claude.ai/new"
	case "gemini":
		return "https://gemini.google.com/app"
	case "perplexity":
		return "https://www.perplexity.ai/"
	case "google_aio", "google_ai_mode":
		return "https://www.google.com/"
	}
	return ""
}

// StartDiscovery kicks off keyword discovery for a product. Progress
// arrives as paa:progress events.
func (c *Client) StartDiscovery(ctx context.Context, productID, seedKeyword string) (DiscoveryResult, error) {
	req := map[string]string{
		"product_id":   productID,
		"seed_keyword": seedKeyword,
	}
	var result DiscoveryResult
	err := c.post(ctx, "/api/discovery/start", req, &result)
	return result, err
}
