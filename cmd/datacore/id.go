package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/yadunandan004/datacore/idgen"
	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/store/redisdb"
)

func idCommand(a *app) *cobra.Command {
	var (
		count     int
		decompose bool
		offline   bool
	)
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print snowflake ids",
		Long: "Print snowflake ids. The worker id is assigned through the first " +
			"configured redis instance unless --offline is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := []idgen.Option{}
			if a.snowflake.Epoch > 0 {
				opts = append(opts, idgen.WithEpoch(a.snowflake.Epoch))
			}

			var gen *idgen.Snowflake
			if offline {
				var err error
				gen, err = idgen.NewSnowflake(rand.Int64N(idgen.MaxWorkerID+1), opts...)
				if err != nil {
					return err
				}
				idgen.Install(gen)
			} else {
				clients, err := redisdb.NewClients(a.redis)
				if err != nil {
					return err
				}
				defer redisdb.Close(clients)
				gen = idgen.InstallFromRedis(ctx, clients[0], a.snowflake.WorkerKey, opts...)
			}
			logger.LogDebug(ctx, "issuing %d ids as worker %d", count, gen.WorkerID())

			for i := 0; i < count; i++ {
				id, err := idgen.Default().NextInt64()
				if err != nil {
					return err
				}
				if !decompose {
					fmt.Fprintln(cmd.OutOrStdout(), id)
					continue
				}
				parts := gen.Decompose(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%d\ttime=%s worker=%d seq=%d\n",
					id, parts.Time.UTC().Format("2006-01-02T15:04:05.000Z"), parts.WorkerID, parts.Sequence)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of ids to print")
	cmd.Flags().BoolVar(&decompose, "decompose", false, "print the time, worker and sequence of each id")
	cmd.Flags().BoolVar(&offline, "offline", false, "pick a random worker id instead of asking redis")
	return cmd
}
