package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.MinRelevanceScore != 0.5 {
		t.Fatalf("MinRelevanceScore = %v, want 0.5", cfg.MinRelevanceScore)
	}
	if cfg.MaxCombinedCitations != 4 {
		t.Fatalf("MaxCombinedCitations = %d, want 4", cfg.MaxCombinedCitations)
	}
	if cfg.ConversationWindowSize != 8 {
		t.Fatalf("ConversationWindowSize = %d, want 8", cfg.ConversationWindowSize)
	}
	if cfg.ProfileTTL != 15*time.Minute {
		t.Fatalf("ProfileTTL = %v, want 15m", cfg.ProfileTTL)
	}
	if len(cfg.DomainTopics) == 0 {
		t.Fatalf("DomainTopics is empty")
	}
	if cfg.HedgeTemplate == "" {
		t.Fatalf("HedgeTemplate is empty")
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MIN_RELEVANCE_SCORE", "0.7")
	t.Setenv("FALLBACK_TIMEOUT", "750ms")
	t.Setenv("DOMAIN_TOPICS", "course, Exam ,library")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinRelevanceScore != 0.7 {
		t.Fatalf("MinRelevanceScore = %v, want 0.7", cfg.MinRelevanceScore)
	}
	if cfg.FallbackTimeout != 750*time.Millisecond {
		t.Fatalf("FallbackTimeout = %v, want 750ms", cfg.FallbackTimeout)
	}
	want := []string{"course", "exam", "library"}
	if len(cfg.DomainTopics) != len(want) {
		t.Fatalf("DomainTopics = %v, want %v", cfg.DomainTopics, want)
	}
	for i, topic := range want {
		if cfg.DomainTopics[i] != topic {
			t.Fatalf("DomainTopics[%d] = %q, want %q", i, cfg.DomainTopics[i], topic)
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"MIN_RELEVANCE_SCORE", "1.5"},
		{"MAX_COMBINED_CITATIONS", "0"},
		{"CONVERSATION_WINDOW_SIZE", "-1"},
		{"RETRIEVER_TIMEOUT", "soon"},
		{"EMBEDDER_MODE", "quantum"},
		{"COMPOSER_MODE", "parrot"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q succeeded, want error", tc.key, tc.value)
			}
		})
	}
}

func TestAnthropicModeRequiresKey(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("COMPOSER_MODE", "anthropic")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() with COMPOSER_MODE=anthropic and no key succeeded, want error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"DATABASE_URL",
		"MIN_RELEVANCE_SCORE",
		"MAX_COMBINED_CITATIONS",
		"FALLBACK_CONFIDENCE_THRESHOLD",
		"CONVERSATION_WINDOW_SIZE",
		"RETRIEVAL_TOP_K",
		"RESPONSE_MAX_LEN",
		"DOMAIN_TOPICS",
		"RETRIEVER_TIMEOUT",
		"FALLBACK_TIMEOUT",
		"PROFILE_TIMEOUT",
		"TURN_TIMEOUT",
		"EMBEDDER_MODE",
		"EMBEDDING_URL",
		"EMBEDDING_MODEL",
		"KNOWLEDGE_DIR",
		"KNOWLEDGE_WATCH",
		"SEARCH_API_KEY",
		"SEARCH_API_URL",
		"SEARCH_MAX_RESULTS",
		"CRM_BASE_URL",
		"CRM_API_KEY",
		"PROFILE_TTL",
		"COMPOSER_MODE",
		"ANTHROPIC_API_KEY",
		"ANTHROPIC_MODEL",
		"HEDGE_TEMPLATE",
		"REFUSAL_TEMPLATE",
		"APOLOGY_TEMPLATE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
