// Command fakeapi serves the in-memory development backend the dashboard client
// talks to: the REST API under /api/v1 and the /podcast real-time socket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/mediadesk/internal/logging"
	"github.com/and161185/mediadesk/internal/model"
	"github.com/and161185/mediadesk/internal/testbackend"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	addr := flag.String("addr", ":3000", "listen address")
	email := flag.String("admin-email", "admin@example.com", "admin login")
	password := flag.String("admin-password", os.Getenv("FAKEAPI_ADMIN_PASSWORD"), "admin password (required)")
	jwtKey := flag.String("jwt-key", os.Getenv("FAKEAPI_JWT_KEY"), "HS256 signing key (required)")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token TTL")
	seed := flag.Int("seed", 0, "demo items to create per content kind")
	level := flag.String("log-level", "info", "log level")
	format := flag.String("log-format", "json", "log format: json or console")
	flag.Parse()

	logger, err := logging.New(*level, *format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" || *password == "" {
		logger.Fatal("missing --jwt-key or --admin-password")
	}

	backend, err := testbackend.New(testbackend.Config{
		AdminEmail:    *email,
		AdminPassword: *password,
		SignKey:       []byte(*jwtKey),
		AccessTTL:     *accessTTL,
		Log:           logger,
	})
	if err != nil {
		logger.Fatal("backend", zap.Error(err))
	}
	seedDemo(backend, *seed)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func seedDemo(b *testbackend.Server, n int) {
	for _, k := range model.Kinds {
		items := make([]model.ContentItem, 0, n)
		for i := 1; i <= n; i++ {
			items = append(items, model.ContentItem{
				Title:       fmt.Sprintf("Demo %s %d", k, i),
				Description: fmt.Sprintf("<p>Sample <em>%s</em> number %d.</p>", k, i),
			})
		}
		b.SeedContent(k, items...)
	}
}
