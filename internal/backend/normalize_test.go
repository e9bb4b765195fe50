package backend

import (
	"encoding/json"
	"testing"
)

func TestParseProgress(t *testing.T) {
	raw := json.RawMessage(`{
		"phase": "collecting",
		"platforms": {
			"chatgpt": {"status": "collecting", "total": 10, "submitted": 10, "collected": 4},
			"claude":  {"status": "waiting", "total": 10, "submitted": 8, "collected": 0}
		},
		"countdownSeconds": 12
	}`)

	p, err := ParseProgress(raw)
	if err != nil {
		t.Fatalf("ParseProgress failed: %v", err)
	}
	if p.Phase != "collecting" {
		t.Errorf("phase = %q, want collecting", p.Phase)
	}
	if len(p.Platforms) != 2 {
		t.Fatalf("platforms = %d, want 2", len(p.Platforms))
	}
	if c := p.Platforms["chatgpt"]; c.Collected != 4 || c.Status != "collecting" {
		t.Errorf("chatgpt counter = %+v", c)
	}
	if p.CountdownSeconds == nil || *p.CountdownSeconds != 12 {
		t.Errorf("countdown = %v, want 12", p.CountdownSeconds)
	}
}

func TestParseProgressCountdownVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"camel zero", `{"phase":"waiting","countdownSeconds":0}`, intPtr(0)},
		{"snake", `{"phase":"waiting","countdown_seconds":30}`, intPtr(30)},
		{"null is absent", `{"phase":"waiting","countdownSeconds":null}`, nil},
		{"omitted", `{"phase":"waiting"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProgress(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseProgress failed: %v", err)
			}
			switch {
			case tt.want == nil && p.CountdownSeconds != nil:
				t.Errorf("countdown = %d, want absent", *p.CountdownSeconds)
			case tt.want != nil && p.CountdownSeconds == nil:
				t.Errorf("countdown absent, want %d", *tt.want)
			case tt.want != nil && *p.CountdownSeconds != *tt.want:
				t.Errorf("countdown = %d, want %d", *p.CountdownSeconds, *tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func TestParseProgressMalformedPlatform(t *testing.T) {
	// A garbage platform entry degrades to zero counters instead of
	// failing the snapshot.
	raw := json.RawMessage(`{
		"phase": "submitting",
		"platforms": {
			"chatgpt": {"status": "submitting", "total": 5, "submitted": 2},
			"broken": "not an object"
		}
	}`)

	p, err := ParseProgress(raw)
	if err != nil {
		t.Fatalf("ParseProgress failed: %v", err)
	}
	if len(p.Platforms) != 2 {
		t.Fatalf("platforms = %d, want 2", len(p.Platforms))
	}
	if c := p.Platforms["broken"]; c.Total != 0 || c.Submitted != 0 {
		t.Errorf("malformed entry not zero-valued: %+v", c)
	}
}

func TestParseStartedFieldSpellings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"camel", `{"productId":"p1","totalPrompts":15,"platforms":["chatgpt"]}`},
		{"snake", `{"product_id":"p1","total_prompts":15,"platforms":["chatgpt"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started, err := ParseStarted(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseStarted failed: %v", err)
			}
			if started.ProductID != "p1" {
				t.Errorf("product = %q, want p1", started.ProductID)
			}
			if started.TotalPrompts != 15 {
				t.Errorf("total prompts = %d, want 15", started.TotalPrompts)
			}
		})
	}
}

func TestParseSummary(t *testing.T) {
	raw := json.RawMessage(`{"total_prompts":20,"successful_prompts":18,"mention_rate":45.5,"citation_rate":10}`)
	summary, err := ParseSummary(raw)
	if err != nil {
		t.Fatalf("ParseSummary failed: %v", err)
	}
	if summary.TotalPrompts != 20 || summary.SuccessfulPrompts != 18 {
		t.Errorf("counts = %d/%d, want 18/20", summary.SuccessfulPrompts, summary.TotalPrompts)
	}
	if summary.MentionRate != 45.5 {
		t.Errorf("mention rate = %v, want 45.5", summary.MentionRate)
	}
}

func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"Scan cancelled by user"`, "Scan cancelled by user"},
		{"message object", `{"message":"Network request failed"}`, "Network request failed"},
		{"error object", `{"error":"timeout"}`, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseErrorMessage(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("ParseErrorMessage(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCountdown(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{`45`, 45, true},
		{`0`, 0, true},
		{`"30"`, 30, true},
		{`{"bad":true}`, 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseCountdown(json.RawMessage(tt.raw))
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCountdown(%s) = %d,%v, want %d,%v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseUsageFieldSpellings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"camel", `{"current":3,"limit":10,"remaining":7,"effectiveRemaining":5,"pendingEvaluations":2,"isUnlimited":false,"plan":"pro"}`},
		{"snake", `{"current":3,"limit":10,"remaining":7,"effective_remaining":5,"pending_evaluations":2,"is_unlimited":false,"plan":"pro"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseUsage(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseUsage failed: %v", err)
			}
			if u.Limit == nil || *u.Limit != 10 {
				t.Errorf("limit = %v, want 10", u.Limit)
			}
			if u.EffectiveRemaining == nil || *u.EffectiveRemaining != 5 {
				t.Errorf("effective remaining = %v, want 5", u.EffectiveRemaining)
			}
			if u.PendingEvaluations == nil || *u.PendingEvaluations != 2 {
				t.Errorf("pending = %v, want 2", u.PendingEvaluations)
			}
			if u.Unlimited == nil || *u.Unlimited {
				t.Errorf("unlimited = %v, want false", u.Unlimited)
			}
		})
	}
}

func TestParseUsageOmittedOptionalFields(t *testing.T) {
	u, err := ParseUsage(json.RawMessage(`{"current":1}`))
	if err != nil {
		t.Fatalf("ParseUsage failed: %v", err)
	}
	if u.Limit != nil || u.Remaining != nil || u.EffectiveRemaining != nil || u.Unlimited != nil {
		t.Errorf("omitted fields not nil: %+v", u)
	}
}

func TestParseAuthChangeSpellings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bare", `{"region":"us","platform":"chatgpt","authenticated":true}`},
		{"snake", `{"country_code":"us","platform":"chatgpt","is_authenticated":true}`},
		{"camel", `{"region":"us","platform":"chatgpt","isAuthenticated":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, err := ParseAuthChange(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseAuthChange failed: %v", err)
			}
			if change.Region != "us" || change.Platform != "chatgpt" || !change.Authenticated {
				t.Errorf("change = %+v", change)
			}
		})
	}
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"Scan cancelled by user", true},
		{"scan CANCELLED", true},
		{"Cancel requested", true},
		{"Network request failed", false},
		{"", false},
		{"aborted by operator", false}, // unknown phrasing is an error
	}

	for _, tt := range tests {
		if got := IsCancellation(tt.message); got != tt.want {
			t.Errorf("IsCancellation(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}
