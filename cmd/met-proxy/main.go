// Command met-proxy serves a stable JSON interface over the museum
// collection API, shielding clients from upstream rate limits through a
// cache + scheduler + retry mediation pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarlsen/met-collection-proxy/pkg/cache"
	"github.com/mkarlsen/met-collection-proxy/pkg/client"
	"github.com/mkarlsen/met-collection-proxy/pkg/logging"
	"github.com/mkarlsen/met-collection-proxy/pkg/mediator"
	"github.com/mkarlsen/met-collection-proxy/pkg/scheduler"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cache.New(cfg.CacheTTL)
	store.StartJanitor(ctx, cfg.CacheJanitorInterval)

	sched, err := scheduler.New(cfg.SchedulerConfig(), logging.NewLogger("scheduler"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	defer sched.Close()

	upstream, err := client.New(cfg.ClientConfig(), cfg.RetryConfig(), logging.NewLogger("upstream"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	med := mediator.New(store, sched, upstream, logging.NewLogger("mediator"))
	server := NewServer(med, cfg, logging.NewLogger("http"))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("upstream", cfg.UpstreamBaseURL).
			Dur("cache_ttl", cfg.CacheTTL).
			Msg("Starting collection proxy")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}
}
