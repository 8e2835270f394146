package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chathistory/internal/history"
	"chathistory/internal/historyapi"
	"chathistory/internal/httpserver"
	"chathistory/internal/sweeper"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the history HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("close backend", slog.String("error", err.Error()))
		}
	}()

	opts := []history.Option{
		history.WithLogger(logger),
		history.WithDefaultTTL(cfg.History.TTL),
	}
	if cfg.History.IndexLocking {
		opts = append(opts, history.WithIndexLocking())
	}
	store := history.NewStore(st.backend, opts...)

	recorder := history.NewRecorder(store, history.RecorderConfig{
		MaxInFlight: cfg.Recorder.Concurrency,
		Timeout:     cfg.Recorder.Timeout,
	}, logger)

	var sw *sweeper.Sweeper
	if st.sweeper != nil && cfg.History.SweepSchedule != "" {
		sw = sweeper.New(logger)
		sw.Add(cfg.History.Backend, st.sweeper)
		if err := sw.Start(cfg.History.SweepSchedule); err != nil {
			return err
		}
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger: logger,
		HistoryHandler: historyapi.NewHandler(historyapi.Deps{
			Store:    store,
			Recorder: recorder,
			Logger:   logger,
		}),
		APIKey: cfg.APIKey,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Warn("recorder did not drain", slog.String("error", err.Error()))
	}
	if sw != nil {
		sw.Stop()
	}

	logger.Info("server stopped")
	return nil
}
