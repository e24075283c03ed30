package metrics

import (
	"context"
	"strconv"

	"github.com/yadunandan004/datacore/metrics/providers"
)

type StandardMetrics struct {
	statementDuration providers.Histogram
	statementCounter  providers.Counter
	statementErrors   providers.Counter
	poolUsed          providers.Gauge
	poolFree          providers.Gauge
	transactions      providers.Counter
	openTransactions  providers.UpDownCounter
	lockAttempts      providers.Counter
	idsIssued         providers.Counter
	jobRuns           providers.Counter
	jobDuration       providers.Histogram
}

func newStandardMetrics(registry *MetricRegistry) *StandardMetrics {
	return &StandardMetrics{
		statementDuration: registry.MustRegisterHistogram(
			"datacore_statement_duration_seconds",
			"Duration of SQL statements in seconds",
			"s",
		),
		statementCounter: registry.MustRegisterCounter(
			"datacore_statements",
			"Total number of SQL statements executed",
			"1",
		),
		statementErrors: registry.MustRegisterCounter(
			"datacore_statement_errors",
			"Total number of failed SQL statements",
			"1",
		),
		poolUsed: registry.MustRegisterGauge(
			"datacore_pool_used",
			"Connections in use at statement completion",
			"1",
		),
		poolFree: registry.MustRegisterGauge(
			"datacore_pool_free",
			"Idle connections at statement completion",
			"1",
		),
		transactions: registry.MustRegisterCounter(
			"datacore_transactions",
			"Completed transactions by outcome",
			"1",
		),
		openTransactions: registry.MustRegisterUpDownCounter(
			"datacore_transactions_open",
			"Transactions begun and not yet completed",
			"1",
		),
		lockAttempts: registry.MustRegisterCounter(
			"datacore_lock_attempts",
			"Distributed lock acquisitions by outcome",
			"1",
		),
		idsIssued: registry.MustRegisterCounter(
			"datacore_ids_issued",
			"Identifiers issued by strategy",
			"1",
		),
		jobRuns: registry.MustRegisterCounter(
			"datacore_job_runs",
			"Scheduled job executions by status",
			"1",
		),
		jobDuration: registry.MustRegisterHistogram(
			"datacore_job_duration_seconds",
			"Duration of scheduled job executions in seconds",
			"s",
		),
	}
}

func (sm *StandardMetrics) RecordStatement(ctx context.Context, method, server string, inTx bool, duration float64, err error) {
	labels := providers.Labels(
		"method", method,
		"server", server,
		"transaction", strconv.FormatBool(inTx),
	)
	sm.statementDuration.Record(ctx, duration, labels...)
	sm.statementCounter.Inc(ctx, labels...)
	if err != nil {
		sm.statementErrors.Inc(ctx, labels...)
	}
}

func (sm *StandardMetrics) RecordPoolStats(ctx context.Context, server string, used, free int) {
	labels := providers.Labels("server", server)
	sm.poolUsed.Set(ctx, float64(used), labels...)
	sm.poolFree.Set(ctx, float64(free), labels...)
}

func (sm *StandardMetrics) RecordTransaction(ctx context.Context, outcome string) {
	sm.transactions.Inc(ctx, providers.Labels("outcome", outcome)...)
}

func (sm *StandardMetrics) TransactionOpened(ctx context.Context) {
	sm.openTransactions.Inc(ctx)
}

func (sm *StandardMetrics) TransactionClosed(ctx context.Context) {
	sm.openTransactions.Dec(ctx)
}

func (sm *StandardMetrics) RecordLockAttempt(ctx context.Context, outcome string) {
	sm.lockAttempts.Inc(ctx, providers.Labels("outcome", outcome)...)
}

func (sm *StandardMetrics) RecordIDIssued(ctx context.Context, strategy string) {
	sm.idsIssued.Inc(ctx, providers.Labels("strategy", strategy)...)
}

func (sm *StandardMetrics) RecordJobRun(ctx context.Context, job, status string, duration float64) {
	labels := providers.Labels("job", job, "status", status)
	sm.jobRuns.Inc(ctx, labels...)
	sm.jobDuration.Record(ctx, duration, labels...)
}
