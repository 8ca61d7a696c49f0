package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the advisor service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string

	// Query resolution.
	MinRelevanceScore           float64
	MaxCombinedCitations        int
	FallbackConfidenceThreshold float64
	ConversationWindowSize      int
	RetrievalTopK               int
	ResponseMaxLen              int
	DomainTopics                []string

	// Per-provider timeouts for a single turn.
	RetrieverTimeout time.Duration
	FallbackTimeout  time.Duration
	ProfileTimeout   time.Duration
	TurnTimeout      time.Duration

	// Embeddings.
	EmbedderMode   string
	EmbeddingURL   string
	EmbeddingModel string

	// Knowledge ingestion.
	KnowledgeDir   string
	KnowledgeWatch bool

	// Freshness fallback (web search).
	SearchAPIKey     string
	SearchAPIURL     string
	SearchMaxResults int

	// Personalization (CRM).
	CRMBaseURL string
	CRMAPIKey  string
	ProfileTTL time.Duration

	// Answer composition.
	ComposerMode    string
	AnthropicAPIKey string
	AnthropicModel  string

	// User-visible templates.
	HedgeTemplate   string
	RefusalTemplate string
	ApologyTemplate string
}

const (
	defaultHedge   = "I don't have verified information on this yet. Please check the student portal or contact student services for the latest details."
	defaultRefusal = "I can only help with university topics, courses, and student services. How can I assist you with your studies?"
	defaultApology = "Sorry, something went wrong on my side. Please try again in a moment."
)

// Load reads environment variables and applies safe defaults. A .env file in
// the working directory is honoured when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "advisor"),
		AllowAnyOrigin:   false,
		DatabaseURL:      envTrimmed("DATABASE_URL"),

		MinRelevanceScore:           0.5,
		MaxCombinedCitations:        4,
		FallbackConfidenceThreshold: 0.5,
		ConversationWindowSize:      8,
		RetrievalTopK:               5,
		ResponseMaxLen:              1000,
		DomainTopics:                defaultDomainTopics(),

		RetrieverTimeout: 2 * time.Second,
		FallbackTimeout:  3 * time.Second,
		ProfileTimeout:   1500 * time.Millisecond,
		TurnTimeout:      20 * time.Second,

		EmbedderMode:   envOrDefault("EMBEDDER_MODE", "auto"),
		EmbeddingURL:   envTrimmed("EMBEDDING_URL"),
		EmbeddingModel: envOrDefault("EMBEDDING_MODEL", "nomic-embed-text"),

		KnowledgeDir:   envOrDefault("KNOWLEDGE_DIR", "knowledge"),
		KnowledgeWatch: true,

		SearchAPIKey:     envTrimmed("SEARCH_API_KEY"),
		SearchAPIURL:     envOrDefault("SEARCH_API_URL", "https://google.serper.dev/search"),
		SearchMaxResults: 5,

		CRMBaseURL: envTrimmed("CRM_BASE_URL"),
		CRMAPIKey:  envTrimmed("CRM_API_KEY"),
		ProfileTTL: 15 * time.Minute,

		ComposerMode:    envOrDefault("COMPOSER_MODE", "auto"),
		AnthropicAPIKey: envTrimmed("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),

		HedgeTemplate:   envOrDefault("HEDGE_TEMPLATE", defaultHedge),
		RefusalTemplate: envOrDefault("REFUSAL_TEMPLATE", defaultRefusal),
		ApologyTemplate: envOrDefault("APOLOGY_TEMPLATE", defaultApology),

		ShutdownTimeout: 15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MinRelevanceScore, err = floatFromEnv("MIN_RELEVANCE_SCORE", cfg.MinRelevanceScore)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxCombinedCitations, err = intFromEnv("MAX_COMBINED_CITATIONS", cfg.MaxCombinedCitations)
	if err != nil {
		return Config{}, err
	}
	cfg.FallbackConfidenceThreshold, err = floatFromEnv("FALLBACK_CONFIDENCE_THRESHOLD", cfg.FallbackConfidenceThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.ConversationWindowSize, err = intFromEnv("CONVERSATION_WINDOW_SIZE", cfg.ConversationWindowSize)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.ResponseMaxLen, err = intFromEnv("RESPONSE_MAX_LEN", cfg.ResponseMaxLen)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrieverTimeout, err = durationFromEnv("RETRIEVER_TIMEOUT", cfg.RetrieverTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FallbackTimeout, err = durationFromEnv("FALLBACK_TIMEOUT", cfg.FallbackTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProfileTimeout, err = durationFromEnv("PROFILE_TIMEOUT", cfg.ProfileTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProfileTTL, err = durationFromEnv("PROFILE_TTL", cfg.ProfileTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SearchMaxResults, err = intFromEnv("SEARCH_MAX_RESULTS", cfg.SearchMaxResults)
	if err != nil {
		return Config{}, err
	}
	cfg.KnowledgeWatch, err = boolFromEnv("KNOWLEDGE_WATCH", cfg.KnowledgeWatch)
	if err != nil {
		return Config{}, err
	}
	if topics := envTrimmed("DOMAIN_TOPICS"); topics != "" {
		cfg.DomainTopics = splitTopics(topics)
	}

	if cfg.MinRelevanceScore < 0 || cfg.MinRelevanceScore > 1 {
		return Config{}, fmt.Errorf("MIN_RELEVANCE_SCORE must be in [0,1]")
	}
	if cfg.FallbackConfidenceThreshold < 0 || cfg.FallbackConfidenceThreshold > 1 {
		return Config{}, fmt.Errorf("FALLBACK_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if cfg.MaxCombinedCitations <= 0 {
		return Config{}, fmt.Errorf("MAX_COMBINED_CITATIONS must be positive")
	}
	if cfg.ConversationWindowSize <= 0 {
		return Config{}, fmt.Errorf("CONVERSATION_WINDOW_SIZE must be positive")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if cfg.ResponseMaxLen <= 0 {
		return Config{}, fmt.Errorf("RESPONSE_MAX_LEN must be positive")
	}
	if cfg.ProfileTTL <= 0 {
		return Config{}, fmt.Errorf("PROFILE_TTL must be positive")
	}
	if len(cfg.DomainTopics) == 0 {
		return Config{}, fmt.Errorf("DOMAIN_TOPICS must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.EmbedderMode)) {
	case "auto", "http", "hash":
	default:
		return Config{}, fmt.Errorf("invalid EMBEDDER_MODE: %q (expected auto|http|hash)", cfg.EmbedderMode)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.ComposerMode)) {
	case "auto", "template", "anthropic":
	default:
		return Config{}, fmt.Errorf("invalid COMPOSER_MODE: %q (expected auto|template|anthropic)", cfg.ComposerMode)
	}
	if strings.EqualFold(cfg.ComposerMode, "anthropic") && cfg.AnthropicAPIKey == "" {
		return Config{}, fmt.Errorf("COMPOSER_MODE=anthropic but ANTHROPIC_API_KEY is not set")
	}

	return cfg, nil
}

func defaultDomainTopics() []string {
	return []string{
		"course", "module", "lecture", "tutorial", "seminar", "assignment",
		"exam", "assessment", "study", "research", "library", "academic",
		"degree", "credit", "grade", "enrollment", "enrolment", "registration",
		"timetable", "syllabus", "curriculum", "lecturer", "tutor", "advisor",
		"faculty", "department", "campus", "placement", "internship", "thesis",
		"dissertation", "coursework", "tuition", "scholarship", "graduation",
		"semester", "student", "university", "meeting", "appointment",
	}
}

func splitTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
