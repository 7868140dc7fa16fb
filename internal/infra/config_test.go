package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CROSSFADE_SECONDS", "")
	t.Setenv("PAYMENT_ENFORCED", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "8000")
	}
	if cfg.CrossfadeSeconds != 1.0 {
		t.Fatalf("CrossfadeSeconds = %v, want 1.0", cfg.CrossfadeSeconds)
	}
	if cfg.DownloadTimeout != 180*time.Second {
		t.Fatalf("DownloadTimeout = %s, want 3m0s", cfg.DownloadTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
	if cfg.ObjectStorageEnabled() {
		t.Fatal("object storage should be disabled without credentials")
	}
}

func TestLoadConfigRejectsCrossfadeLongerThanSegment(t *testing.T) {
	t.Setenv("FULL_SEGMENT_SECONDS", "5")
	t.Setenv("CROSSFADE_SECONDS", "5")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for crossfade >= segment length")
	}
}

func TestLoadConfigRequiresStripeKeyWhenEnforced(t *testing.T) {
	t.Setenv("PAYMENT_ENFORCED", "true")
	t.Setenv("STRIPE_SECRET_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when payment is enforced without a stripe key")
	}
}

func TestLoadConfigParsesLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("REPLICATE_SEGMENT_DURATIONS", "5, 10, x, -1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	wantOrigins := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSOrigins) != len(wantOrigins) {
		t.Fatalf("CORSOrigins = %#v, want %#v", cfg.CORSOrigins, wantOrigins)
	}
	for i, origin := range wantOrigins {
		if cfg.CORSOrigins[i] != origin {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], origin)
		}
	}
	if len(cfg.SegmentDurations) != 2 || cfg.SegmentDurations[0] != 5 || cfg.SegmentDurations[1] != 10 {
		t.Fatalf("SegmentDurations = %#v, want [5 10]", cfg.SegmentDurations)
	}
}

func TestLoadConfigPromptProvider(t *testing.T) {
	t.Setenv("PROMPT_PROVIDER", " OpenAI ")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PromptProvider != "openai" {
		t.Fatalf("PromptProvider = %q, want openai", cfg.PromptProvider)
	}

	t.Setenv("PROMPT_PROVIDER", "claude")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown prompt provider")
	}
}
