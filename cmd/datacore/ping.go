package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yadunandan004/datacore/orm"
	"github.com/yadunandan004/datacore/store/datasource"
	"github.com/yadunandan004/datacore/store/redisdb"
)

func pingCommand(a *app) *cobra.Command {
	var (
		timeout   time.Duration
		skipRedis bool
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that every pool and redis instance answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var errs []error

			router, err := datasource.Open(ctx, a.dataSource)
			if err != nil {
				return fmt.Errorf("failed to open data source: %w", err)
			}
			defer router.Close()

			if err := router.Ping(ctx); err != nil {
				errs = append(errs, err)
			} else {
				fmt.Fprintf(out, "%s: write ok, %d read pool(s) ok\n", router.Driver(), router.ReadCount())
			}

			// one statement through the proxy so the path is exercised end to end
			proxy := orm.NewProxyFromConfig(router, a.dataSource, orm.WithDefaultTimeout(timeout))
			if _, err := proxy.ExecuteSQL(ctx, "select 1 as ok"); err != nil {
				errs = append(errs, fmt.Errorf("read pool query: %w", err))
			}

			if !skipRedis {
				clients, err := redisdb.NewClients(a.redis)
				if err != nil {
					errs = append(errs, err)
				} else {
					defer redisdb.Close(clients)
					if err := redisdb.Ping(ctx, clients, timeout); err != nil {
						errs = append(errs, err)
					} else {
						fmt.Fprintf(out, "redis: %d instance(s) ok\n", len(clients))
					}
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per check timeout")
	cmd.Flags().BoolVar(&skipRedis, "skip-redis", false, "only check the database pools")
	return cmd
}
