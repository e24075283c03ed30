package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yadunandan004/datacore/job"
	"github.com/yadunandan004/datacore/lock"
	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
	"github.com/yadunandan004/datacore/store/datasource"
	"github.com/yadunandan004/datacore/store/redisdb"
)

func workerCommand(a *app) *cobra.Command {
	var (
		schedule    string
		lockTTL     time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled jobs, one node at a time across the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router, err := datasource.Open(ctx, a.dataSource)
			if err != nil {
				return fmt.Errorf("failed to open data source: %w", err)
			}
			defer router.Close()

			clients, err := redisdb.NewClients(a.redis)
			if err != nil {
				return err
			}
			defer redisdb.Close(clients)

			scheduler := job.NewScheduler(lock.NewLockerFromConfig(clients, a.lock))
			if _, err := scheduler.Schedule("pool-report", schedule, lockTTL, job.PoolReport(router)); err != nil {
				return err
			}

			var server *http.Server
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				server = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.LogError(ctx, fmt.Errorf("metrics server: %w", err))
					}
				}()
			}

			scheduler.Start()
			logger.LogInfo(ctx, "worker started, pool report %q", schedule)
			<-ctx.Done()

			logger.LogInfo(ctx, "worker stopping")
			<-scheduler.Stop().Done()
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "pool-report", "@every 1m", "cron spec of the pool usage report")
	cmd.Flags().DurationVar(&lockTTL, "lock-ttl", 30*time.Second, "how long one run holds the job lock")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9464", "address of the prometheus endpoint, empty to disable")
	return cmd
}
