// Command research-agent runs the research loop behind an HTTP server.
// main is the composition root: it loads configuration, builds the model
// client and tool dispatcher, and starts the server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quaneh2/research-agent/agent"
	"github.com/quaneh2/research-agent/llm"
	"github.com/quaneh2/research-agent/server"
	"github.com/quaneh2/research-agent/webtool"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		log.Fatalf("model client error: %v", err)
	}
	log.Printf("model client ready: %s", client.Name())

	dispatcher := agent.NewDispatcher()
	switch cfg.ToolImplementation {
	case ToolsAnthropic:
		webtool.RegisterNativeTools(dispatcher, cfg.AnthropicAPIKey, cfg.Model)
	default:
		webtool.RegisterCustomTools(dispatcher, cfg.BraveAPIKey)
	}
	log.Printf("%d tools registered (%s implementation)", dispatcher.Count(), cfg.ToolImplementation)

	sessionCfg := agent.Config{
		Model:         cfg.Model,
		MaxIterations: cfg.MaxIterations,
		MaxTokens:     cfg.MaxTokens,
		ParallelTools: cfg.ParallelTools,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: server.New(client, dispatcher, sessionCfg).Handler(),
	}
	runServerWithGracefulShutdown(srv)
}

// buildClient selects the model client. The anthropic provider uses the
// native SDK adapter; any other provider name goes through gollm with its
// key read from <PROVIDER>_API_KEY.
func buildClient(cfg *AppConfig) (llm.Client, error) {
	if cfg.ModelProvider == "anthropic" {
		return llm.NewAnthropicAdapter(cfg.AnthropicAPIKey, llm.WithTimeout(cfg.ModelTimeout)), nil
	}
	keyEnv := strings.ToUpper(cfg.ModelProvider) + "_API_KEY"
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", keyEnv)
	}
	return llm.NewGollmAdapter(cfg.ModelProvider, apiKey, cfg.Model)
}

// runServerWithGracefulShutdown serves until SIGINT/SIGTERM, then drains
// in-flight requests for up to ten seconds.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("server stopped")
}
