package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courseassist/internal/assist"
	"courseassist/internal/blob"
	"courseassist/internal/config"
	"courseassist/internal/httpserver"
	"courseassist/internal/provider"
	"courseassist/internal/session"
	"courseassist/internal/transport"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout)

	store, closeStore, err := newStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}
	defer closeStore()

	gateway := session.NewGateway(store, cfg.SessionTTL, logger)

	prov, err := newProvider(cfg, httpClient, logger)
	if err != nil {
		log.Fatalf("failed to init provider: %v", err)
	}

	handler := assist.NewHandler(assist.Deps{
		Provider:     prov,
		Sessions:     gateway,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:        logger,
		AssistHandler: handler,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("provider", cfg.Provider),
			slog.String("store", cfg.Store.Type))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// newStore создаёт blob-хранилище по типу из конфигурации.
func newStore(cfg config.StoreConfig) (blob.Store, func(), error) {
	switch cfg.Type {
	case "file":
		store, err := blob.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "sqlite":
		store, err := blob.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return blob.NewMemoryStore(), func() {}, nil
	}
}

// newProvider выбирает единственный активный адаптер по конфигурации.
func newProvider(cfg config.Config, httpClient *http.Client, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return provider.NewGemini(cfg.Gemini, httpClient, logger), nil
	case config.ProviderOpenAI:
		return provider.NewOpenAI(cfg.OpenAI, httpClient, logger), nil
	case config.ProviderMistral:
		return provider.NewMistral(cfg.Mistral, httpClient, logger), nil
	case config.ProviderYandex:
		return provider.NewYandex(cfg.Yandex, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
