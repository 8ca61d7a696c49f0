package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/campuskit/advisor/internal/compose"
	"github.com/campuskit/advisor/internal/config"
	"github.com/campuskit/advisor/internal/conversation"
	"github.com/campuskit/advisor/internal/guardrail"
	"github.com/campuskit/advisor/internal/httpapi"
	"github.com/campuskit/advisor/internal/ingest"
	"github.com/campuskit/advisor/internal/observability"
	"github.com/campuskit/advisor/internal/orchestrator"
	"github.com/campuskit/advisor/internal/profile"
	"github.com/campuskit/advisor/internal/retrieval"
	"github.com/campuskit/advisor/internal/websearch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := conversation.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("conversation store init failed: %v", err)
	}
	defer store.Close()

	index, err := retrieval.NewIndex(buildEmbedder(cfg))
	if err != nil {
		log.Fatalf("knowledge index init failed: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	loader := ingest.NewLoader(cfg.KnowledgeDir, index)
	if n, err := loader.LoadDir(ctx); err != nil {
		log.Printf("knowledge load incomplete: %v", err)
	} else {
		log.Printf("knowledge loaded: %d chunks from %s", n, cfg.KnowledgeDir)
	}
	if cfg.KnowledgeWatch {
		watcher, err := ingest.NewWatcher(loader)
		if err != nil {
			log.Printf("knowledge watcher unavailable: %v", err)
		} else if err := watcher.Watch(runCtx); err != nil {
			log.Printf("knowledge watcher failed to start: %v", err)
			_ = watcher.Close()
		} else {
			defer watcher.Close()
		}
	}

	var searcher websearch.Searcher = websearch.Disabled{}
	if strings.TrimSpace(cfg.SearchAPIKey) != "" {
		searcher = websearch.NewClient(cfg.SearchAPIURL, cfg.SearchAPIKey, cfg.FallbackTimeout)
		log.Printf("freshness fallback: web search enabled")
	} else {
		log.Printf("freshness fallback: disabled (no SEARCH_API_KEY)")
	}

	var source profile.Source
	if strings.TrimSpace(cfg.CRMBaseURL) != "" {
		source = profile.NewCRMClient(cfg.CRMBaseURL, cfg.CRMAPIKey)
		log.Printf("personalization source: crm at %s", cfg.CRMBaseURL)
	} else {
		source = profile.NewDirectory()
		log.Printf("personalization source: in-memory directory")
	}
	cached, err := profile.NewCachedSource(source, cfg.ProfileTTL)
	if err != nil {
		log.Fatalf("profile cache init failed: %v", err)
	}
	defer cached.Close()

	gate := guardrail.New(guardrail.Config{
		Topics:         cfg.DomainTopics,
		MaxResponseLen: cfg.ResponseMaxLen,
	})

	orch := orchestrator.New(cfg, orchestrator.Deps{
		Store:     store,
		Retriever: index,
		Searcher:  searcher,
		Profiles:  cached,
		Composer:  buildComposer(cfg),
		Gate:      gate,
		Metrics:   metrics,
	})
	orch.Start(runCtx)

	api := httpapi.New(cfg, orch, store, index, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// buildEmbedder picks the query/passage embedder. "http" talks to an
// Ollama-compatible endpoint; "hash" is the deterministic local fallback;
// "auto" uses http when an endpoint is configured.
func buildEmbedder(cfg config.Config) retrieval.Embedder {
	mode := strings.ToLower(strings.TrimSpace(cfg.EmbedderMode))
	switch mode {
	case "http":
		log.Printf("embedder: http (%s, model %s)", cfg.EmbeddingURL, cfg.EmbeddingModel)
		return retrieval.NewHTTPEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	case "hash":
		log.Printf("embedder: hash")
		return retrieval.NewHashEmbedder()
	default: // auto
		if strings.TrimSpace(cfg.EmbeddingURL) != "" {
			log.Printf("embedder: http (%s, model %s)", cfg.EmbeddingURL, cfg.EmbeddingModel)
			return retrieval.NewHTTPEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
		}
		log.Printf("embedder: hash (no EMBEDDING_URL)")
		return retrieval.NewHashEmbedder()
	}
}

// buildComposer picks the reply composer. "anthropic" requires an API key;
// "auto" uses the model when a key is present and the deterministic template
// composer otherwise.
func buildComposer(cfg config.Config) compose.Composer {
	mode := strings.ToLower(strings.TrimSpace(cfg.ComposerMode))
	useModel := mode == "anthropic" || (mode == "auto" && strings.TrimSpace(cfg.AnthropicAPIKey) != "")
	if !useModel {
		log.Printf("composer: template")
		return compose.NewTemplateComposer()
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	log.Printf("composer: anthropic (%s)", cfg.AnthropicModel)
	return compose.NewAnthropicComposer(&client, cfg.AnthropicModel, 10*time.Second)
}
