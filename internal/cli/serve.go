package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/me/ossched/internal/metrics"
	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/internal/server"
	"github.com/me/ossched/internal/store"
	"github.com/me/ossched/pkg/model"
)

func newServeCmd() *cobra.Command {
	var (
		flagAddr        string
		flagPolicy      string
		flagMaxPriority int
		flagDB          string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live scheduler over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = flagAddr
			}
			if flags.Changed("policy") {
				cfg.Policy = model.Policy(flagPolicy)
			}
			if flags.Changed("max-priority") {
				cfg.MaxPriority = flagMaxPriority
			}
			if flags.Changed("db") {
				cfg.DBPath = flagDB
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m, err := metrics.New(reg)
			if err != nil {
				return err
			}

			sched, err := scheduler.New(cfg.Policy, cfg.Scheduler(),
				scheduler.WithLogger(logger), scheduler.WithMetrics(m))
			if err != nil {
				return err
			}

			serverOpts := []server.Option{server.WithGatherer(reg)}
			if cfg.DBPath != "" {
				st, err := store.NewSQLiteStore(cfg.DBPath, logger)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate %s: %w", cfg.DBPath, err)
				}
				serverOpts = append(serverOpts, server.WithStore(st))
				logger.Info("trace store ready", "path", cfg.DBPath)
			}

			srv := server.New(sched, logger, serverOpts...)
			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr, "policy", cfg.Policy, "max_priority", cfg.MaxPriority)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&flagPolicy, "policy", string(model.PolicyMLQ), "Scheduling policy (mlq, fifo)")
	cmd.Flags().IntVar(&flagMaxPriority, "max-priority", 0, "Number of priority levels")
	cmd.Flags().StringVar(&flagDB, "db", "", "Serve recorded runs from this SQLite database")

	return cmd
}
