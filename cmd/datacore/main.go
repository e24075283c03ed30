package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
	"github.com/yadunandan004/datacore/request"
	"github.com/yadunandan004/datacore/store/datasource"
)

// app carries what the persistent pre-run resolved for the subcommands.
type app struct {
	configPath   string
	topologyPath string

	resolver        *config.ConfigResolver
	dataSource      *config.DataSourceConfig
	redis           *config.RedisConfig
	lock            *config.LockConfig
	snowflake       *config.SnowflakeConfig
	metricsShutdown func(context.Context) error
}

func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	config.InitHostingEnv()
	a.resolver = config.NewConfigResolver(a.configPath)
	logger.Configure(config.GetLoggerConfig(a.resolver))

	a.dataSource = config.GetDataSourceConfig(a.resolver)
	if a.topologyPath != "" {
		topology, err := datasource.LoadINI(a.topologyPath)
		if err != nil {
			return fmt.Errorf("failed to load topology: %w", err)
		}
		a.dataSource = topology
	}
	a.redis = config.GetRedisConfig(a.resolver)
	a.lock = config.GetLockConfig(a.resolver)
	a.snowflake = config.GetSnowflakeConfig(a.resolver)

	shutdown, err := metrics.InitMetrics(cmd.Context(), config.GetMetricsConfig(a.resolver))
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.metricsShutdown = shutdown
	return nil
}

func (a *app) postRun(cmd *cobra.Command, _ []string) {
	if a.metricsShutdown != nil {
		_ = a.metricsShutdown(context.WithoutCancel(cmd.Context()))
	}
	logger.Sync()
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "datacore",
		Short:             "Data access core: pools, ids, locks and jobs",
		SilenceUsage:      true,
		PersistentPreRunE: a.preRun,
		PersistentPostRun: a.postRun,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.GetDefaultConfigPath(), "path to the yaml config file")
	root.PersistentFlags().StringVar(&a.topologyPath, "topology", "", "ini file describing write and read pools")

	root.AddCommand(idCommand(a))
	root.AddCommand(pingCommand(a))
	root.AddCommand(workerCommand(a))
	return root
}

func main() {
	ctx := request.Scope(context.Background(), request.NewSystemState(request.WithAttr("command", "datacore")))
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.LogError(ctx, err)
		logger.Sync()
		os.Exit(1)
	}
}
