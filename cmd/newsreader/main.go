package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news_search/internal/config"
	"news_search/internal/connectivity"
	"news_search/internal/db"
	"news_search/internal/display"
	"news_search/internal/fetcher"
	"news_search/internal/loader"
	"news_search/internal/logger"
	"news_search/internal/metrics"
	"news_search/internal/models"
	"news_search/internal/server"
	"news_search/internal/settings"

	"github.com/jessevdk/go-flags"
)

type options struct {
	Config  string `long:"config" short:"c" env:"NEWS_SEARCH_CONFIG" default:"config.json" description:"Path to the JSON config file"`
	Subject string `long:"subject" short:"s" description:"Search subject, overrides the saved preference"`
	OrderBy string `long:"order-by" short:"o" choice:"newest" choice:"oldest" choice:"relevance" description:"Result order, overrides the saved preference"`
	Serve   bool   `long:"serve" description:"Run the HTTP service instead of printing the list once"`
	Addr    string `long:"addr" env:"LISTEN_ADDR" description:"HTTP listen address, defaults to listen_addr from the config"`
}

func main() {
	logger.Init()
	config.LoadEnv()

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}
	if !opts.Serve {
		// stdout carries the rendered list
		logger.Log.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.Log.Fatalf("newsreader: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Log.WithField("path", path).Warn("Config file not found, using defaults")
		cfg = config.Default()
		cfg.ApplyEnv()
	} else if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}

	var store settings.Store = settings.NewMemoryStore()
	var database *db.Database
	if cfg.DatabaseURL != "" {
		database, err = db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("DB connection error: %w", err)
		}
		defer database.Close()
		store = database
	}

	defaults := models.Preferences{Subject: cfg.DefaultSubject, OrderBy: cfg.DefaultOrderBy}
	prefs, err := settings.LoadOrDefault(ctx, store, defaults)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to load saved preferences, using defaults")
		prefs = defaults
	}
	if opts.Subject != "" {
		prefs.Subject = opts.Subject
	}
	if opts.OrderBy != "" {
		prefs.OrderBy = opts.OrderBy
	}
	if prefs, err = settings.Validate(prefs); err != nil {
		return err
	}

	checker, err := connectivity.ForEndpoint(cfg.Endpoint, cfg.ConnectTimeoutDuration())
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	m := metrics.New()
	l := loader.New(
		fetcher.New(fetcher.Options{
			ConnectTimeout: cfg.ConnectTimeoutDuration(),
			ReadTimeout:    cfg.ReadTimeoutDuration(),
		}),
		checker,
		loader.Endpoint{
			URL:      cfg.Endpoint,
			APIKey:   cfg.APIKey,
			FromDate: cfg.FromDate,
			PageSize: cfg.PageSize,
		},
		m,
	)

	if !opts.Serve {
		return printOnce(ctx, l, prefs, out)
	}

	if opts.Subject != "" || opts.OrderBy != "" {
		if err := store.Save(ctx, prefs); err != nil {
			logger.Log.WithError(err).Warn("Failed to save preferences")
		}
	}

	addr := cfg.ListenAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	return serve(ctx, l, store, defaults, m, database, prefs, addr, cfg.RefreshIntervalDuration())
}

func printOnce(ctx context.Context, l *loader.Loader, prefs models.Preferences, out io.Writer) error {
	res := l.Load(ctx, prefs)
	if len(res.Items) == 0 {
		_, err := fmt.Fprintln(out, res.State.Message())
		return err
	}
	return display.Render(out, display.FromNewsList(res.Items))
}

func serve(ctx context.Context, l *loader.Loader, store settings.Store, defaults models.Preferences,
	m *metrics.Metrics, database *db.Database, prefs models.Preferences, addr string, refresh time.Duration) error {
	srv := server.NewServer(l, store, defaults, m)
	if database != nil {
		srv.SetPinger(database)
	}

	l.Restart(prefs)
	defer l.Stop()

	if refresh > 0 {
		go loader.StartPolling(ctx, l, func(ctx context.Context) (models.Preferences, error) {
			return settings.LoadOrDefault(ctx, store, defaults)
		}, refresh)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting HTTP server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down...")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Log.Info("Application stopped")
	return nil
}
