package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/brandlens/brandlens/internal/quota"
	"github.com/brandlens/brandlens/internal/session"
	"github.com/brandlens/brandlens/internal/types"
)

// The engine's payloads are not consistently shaped: some producers use
// camelCase, some snake_case, errors arrive as objects or bare strings.
// Everything is normalized here, at the boundary, so the rest of the
// code sees one canonical record per payload kind.

// Event is a tagged event from the engine feed.
type Event struct {
	Kind    string
	Payload json.RawMessage
}

// Event kinds delivered by the engine.
const (
	EventScanStarted       = "scan:started"
	EventScanProgress      = "scan:progress"
	EventScanComplete      = "scan:complete"
	EventScanError         = "scan:error"
	EventScanCountdown     = "scan:countdown"
	EventPlatformAuth      = "platform-auth-changed"
	EventAuthSuccess       = "auth:success"
	EventDiscoveryProgress = "paa:progress"
)

// ScanStarted announces a scan the engine has begun running.
type ScanStarted struct {
	ProductID    string
	TotalPrompts int
	Platforms    []string
}

// AuthChange reports a platform login state change for a region.
type AuthChange struct {
	Region        string
	Platform      string
	Authenticated bool
}

// AuthUser identifies the signed-in account.
type AuthUser struct {
	ID    string
	Email string
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstBool(vals ...*bool) bool {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return false
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type platformWire struct {
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Submitted int    `json:"submitted"`
	Collected int    `json:"collected"`
	Failed    int    `json:"failed"`
}

type progressWire struct {
	Phase          string                     `json:"phase"`
	Platforms      map[string]json.RawMessage `json:"platforms"`
	CountdownCamel *int                       `json:"countdownSeconds"`
	CountdownSnake *int                       `json:"countdown_seconds"`
}

// ParseProgress decodes a scan:progress payload. Malformed platform
// entries become zero-valued counters rather than failing the whole
// snapshot. Null and absent countdown both mean "no countdown"; zero is
// a real value.
func ParseProgress(raw json.RawMessage) (session.Progress, error) {
	var wire progressWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return session.Progress{}, err
	}

	platforms := make(map[string]session.PlatformCounter, len(wire.Platforms))
	for id, entry := range wire.Platforms {
		var p platformWire
		// Bad entries degrade to zero counters.
		_ = json.Unmarshal(entry, &p)
		platforms[id] = session.PlatformCounter{
			Status:    p.Status,
			Total:     p.Total,
			Submitted: p.Submitted,
			Collected: p.Collected,
			Failed:    p.Failed,
		}
	}

	return session.Progress{
		Phase:            wire.Phase,
		Platforms:        platforms,
		CountdownSeconds: firstInt(wire.CountdownCamel, wire.CountdownSnake),
	}, nil
}

type startedWire struct {
	ProductIDCamel    string   `json:"productId"`
	ProductIDSnake    string   `json:"product_id"`
	TotalPromptsCamel *int     `json:"totalPrompts"`
	TotalPromptsSnake *int     `json:"total_prompts"`
	Platforms         []string `json:"platforms"`
}

// ParseStarted decodes a scan:started payload.
func ParseStarted(raw json.RawMessage) (ScanStarted, error) {
	var wire startedWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ScanStarted{}, err
	}
	started := ScanStarted{
		ProductID: firstString(wire.ProductIDCamel, wire.ProductIDSnake),
		Platforms: wire.Platforms,
	}
	if total := firstInt(wire.TotalPromptsCamel, wire.TotalPromptsSnake); total != nil {
		started.TotalPrompts = *total
	}
	return started, nil
}

type summaryWire struct {
	TotalSnake      *int     `json:"total_prompts"`
	TotalCamel      *int     `json:"totalPrompts"`
	SuccessfulSnake *int     `json:"successful_prompts"`
	SuccessfulCamel *int     `json:"successfulPrompts"`
	MentionSnake    *float64 `json:"mention_rate"`
	MentionCamel    *float64 `json:"mentionRate"`
	CitationSnake   *float64 `json:"citation_rate"`
	CitationCamel   *float64 `json:"citationRate"`
}

// ParseSummary decodes a scan:complete payload.
func ParseSummary(raw json.RawMessage) (types.ScanSummary, error) {
	var wire summaryWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.ScanSummary{}, err
	}
	var summary types.ScanSummary
	if v := firstInt(wire.TotalSnake, wire.TotalCamel); v != nil {
		summary.TotalPrompts = *v
	}
	if v := firstInt(wire.SuccessfulSnake, wire.SuccessfulCamel); v != nil {
		summary.SuccessfulPrompts = *v
	}
	if wire.MentionSnake != nil {
		summary.MentionRate = *wire.MentionSnake
	} else if wire.MentionCamel != nil {
		summary.MentionRate = *wire.MentionCamel
	}
	if wire.CitationSnake != nil {
		summary.CitationRate = *wire.CitationSnake
	} else if wire.CitationCamel != nil {
		summary.CitationRate = *wire.CitationCamel
	}
	return summary, nil
}

// ParseErrorMessage decodes a scan:error payload, which may be a bare
// string or an object with a message field.
func ParseErrorMessage(raw json.RawMessage) string {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstString(obj.Message, obj.Error)
	}
	return string(raw)
}

// ParseCountdown decodes a scan:countdown payload: an integer second
// count, possibly quoted.
func ParseCountdown(raw json.RawMessage) (int, bool) {
	var seconds int
	if err := json.Unmarshal(raw, &seconds); err == nil {
		return seconds, true
	}
	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(quoted)); err == nil {
			return n, true
		}
	}
	return 0, false
}

type usageWire struct {
	Current                 *int   `json:"current"`
	Limit                   *int   `json:"limit"`
	Remaining               *int   `json:"remaining"`
	EffectiveRemainingCamel *int   `json:"effectiveRemaining"`
	EffectiveRemainingSnake *int   `json:"effective_remaining"`
	PendingCamel            *int   `json:"pendingEvaluations"`
	PendingSnake            *int   `json:"pending_evaluations"`
	Plan                    string `json:"plan"`
	UnlimitedCamel          *bool  `json:"isUnlimited"`
	UnlimitedSnake          *bool  `json:"is_unlimited"`
	UnlimitedBare           *bool  `json:"unlimited"`
}

// ParseUsage decodes a daily-usage snapshot into a quota update.
func ParseUsage(raw json.RawMessage) (quota.Update, error) {
	var wire usageWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return quota.Update{}, err
	}
	update := quota.Update{
		Current:            wire.Current,
		Limit:              wire.Limit,
		Remaining:          wire.Remaining,
		EffectiveRemaining: firstInt(wire.EffectiveRemainingCamel, wire.EffectiveRemainingSnake),
		PendingEvaluations: firstInt(wire.PendingCamel, wire.PendingSnake),
		Plan:               wire.Plan,
	}
	if wire.UnlimitedCamel != nil || wire.UnlimitedSnake != nil || wire.UnlimitedBare != nil {
		v := firstBool(wire.UnlimitedCamel, wire.UnlimitedSnake, wire.UnlimitedBare)
		update.Unlimited = &v
	}
	return update, nil
}

type authChangeWire struct {
	Region             string `json:"region"`
	CountryCode        string `json:"country_code"`
	Platform           string `json:"platform"`
	AuthenticatedBare  *bool  `json:"authenticated"`
	AuthenticatedSnake *bool  `json:"is_authenticated"`
	AuthenticatedCamel *bool  `json:"isAuthenticated"`
}

// ParseAuthChange decodes a platform-auth-changed payload.
func ParseAuthChange(raw json.RawMessage) (AuthChange, error) {
	var wire authChangeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return AuthChange{}, err
	}
	return AuthChange{
		Region:        firstString(wire.Region, wire.CountryCode),
		Platform:      wire.Platform,
		Authenticated: firstBool(wire.AuthenticatedBare, wire.AuthenticatedSnake, wire.AuthenticatedCamel),
	}, nil
}

// ParseAuthUser decodes an auth:success payload.
func ParseAuthUser(raw json.RawMessage) (AuthUser, error) {
	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		return AuthUser{}, err
	}
	return AuthUser{ID: user.ID, Email: user.Email}, nil
}

type discoveryWire struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ParseDiscoveryProgress decodes a paa:progress payload.
func ParseDiscoveryProgress(raw json.RawMessage) (types.DiscoveryView, error) {
	var wire discoveryWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.DiscoveryView{}, err
	}
	return types.DiscoveryView{
		Running: true,
		Phase:   wire.Phase,
		Current: wire.Current,
		Total:   wire.Total,
		Message: wire.Message,
	}, nil
}

// IsCancellation classifies a scan:error message: the engine reports
// user cancellation as an error string rather than a structured kind,
// so a case-insensitive substring match is the only signal available.
// Anything that does not mention cancellation is treated as a real
// error.
func IsCancellation(message string) bool {
	return strings.Contains(strings.ToLower(message), "cancel")
}
