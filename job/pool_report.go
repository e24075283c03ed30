package job

import (
	"context"
	"fmt"

	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
	"github.com/yadunandan004/datacore/store/datasource"
)

// PoolReport publishes usage of every pool behind router as gauges and one
// log line.
func PoolReport(router *datasource.Router) Func {
	return func(ctx context.Context) error {
		if router == nil {
			return fmt.Errorf("pool report: no router")
		}
		write := datasource.Stats(router.Write())
		metrics.RecordPoolStats(ctx, datasource.ServerWrite, write.Used, write.Free)

		var readUsed, readFree int
		for _, db := range router.Reads() {
			st := datasource.Stats(db)
			readUsed += st.Used
			readFree += st.Free
		}
		if router.ReadCount() > 0 {
			metrics.RecordPoolStats(ctx, datasource.ServerRead, readUsed, readFree)
		}

		logger.LogInfo(ctx, "pool usage write=%d/%d read=%d/%d replicas=%d saturated=%t",
			write.Used, write.Used+write.Free, readUsed, readUsed+readFree, router.ReadCount(), write.Saturated())
		return nil
	}
}
