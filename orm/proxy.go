package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
	"github.com/yadunandan004/datacore/request"
	"github.com/yadunandan004/datacore/store/datasource"
)

const (
	DefaultStatementTimeout = 5 * time.Second
	DefaultPageLimit        = 5

	EventQueryResponse = "sql-query-response"
	EventQueryError    = "sql-query-error"
)

// Row is one result row keyed by camelCase column name.
type Row map[string]interface{}

func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Int64(key string) (int64, bool) {
	return toInt64(r[key])
}

type Result struct {
	RowsAffected int64
	LastInsertID int64
	// Rows holds RETURNING output on dialects that support it.
	Rows []Row
}

type Page struct {
	Items       []Row `json:"items"`
	Total       int64 `json:"total"`
	Offset      int   `json:"offset"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
}

// Route is where one statement runs.
type Route struct {
	DB            *sql.DB
	Tx            *TxHandle
	Server        string
	InTransaction bool
}

// Proxy routes statements to pools, enforces timeouts and reports every
// execution.
type Proxy struct {
	router    *datasource.Router
	dialect   Dialect
	telemetry logger.Telemetry
	timeout   time.Duration
	logSQL    bool
}

type ProxyOption func(*Proxy)

func WithTelemetry(t logger.Telemetry) ProxyOption {
	return func(p *Proxy) {
		if t != nil {
			p.telemetry = t
		}
	}
}

func WithDefaultTimeout(d time.Duration) ProxyOption {
	return func(p *Proxy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithSQLLogging(enabled bool) ProxyOption {
	return func(p *Proxy) {
		p.logSQL = enabled
	}
}

func NewProxy(router *datasource.Router, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		router:    router,
		telemetry: logger.NewTelemetry("sql"),
		timeout:   DefaultStatementTimeout,
		logSQL:    true,
	}
	if router != nil {
		p.dialect = DialectFor(router.Driver())
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewProxyFromConfig applies the timeout and logging switches of cfg.
func NewProxyFromConfig(router *datasource.Router, cfg *config.DataSourceConfig, opts ...ProxyOption) *Proxy {
	base := []ProxyOption{WithDefaultTimeout(cfg.StatementTimeout), WithSQLLogging(cfg.LogSQL)}
	return NewProxy(router, append(base, opts...)...)
}

func (p *Proxy) Dialect() Dialect {
	return p.dialect
}

func (p *Proxy) Router() *datasource.Router {
	return p.router
}

// Dispatch decides where stmt runs: the ambient transaction first, then
// the write pool for OnMaster and writes, and a read pool otherwise.
func (p *Proxy) Dispatch(ctx context.Context, stmt *Statement) (*Route, error) {
	if p == nil || p.router == nil || p.router.Write() == nil {
		return nil, ErrNoRouter
	}
	if h := stmt.tx; h != nil {
		if !h.Active() {
			return nil, ErrTxCompleted
		}
		return &Route{DB: h.db, Tx: h, Server: datasource.ServerWrite, InTransaction: true}, nil
	}
	// a completed ambient handle is ignored
	if h := CurrentTx(ctx); h.Active() {
		return &Route{DB: h.db, Tx: h, Server: datasource.ServerWrite, InTransaction: true}, nil
	}
	if !stmt.onMaster && stmt.IsRead() {
		return &Route{DB: p.router.Read(), Server: datasource.ServerRead}, nil
	}
	return &Route{DB: p.router.Write(), Server: datasource.ServerWrite}, nil
}

func (p *Proxy) Exec(ctx context.Context, stmt *Statement) (Result, error) {
	if stmt == nil {
		return Result{}, invalidf("nil statement")
	}
	if stmt.returnsRows(p.dialect) {
		rows, err := p.Query(ctx, stmt)
		return Result{RowsAffected: int64(len(rows)), Rows: rows}, err
	}
	var out Result
	err := p.run(ctx, stmt, func(ctx context.Context, route *Route, query string, args []interface{}) error {
		var (
			res sql.Result
			err error
		)
		if route.Tx != nil {
			res, err = route.Tx.exec(ctx, query, args)
		} else {
			res, err = route.DB.ExecContext(ctx, query, args...)
		}
		if err != nil {
			return err
		}
		out.RowsAffected, _ = res.RowsAffected()
		// lib/pq has no LastInsertId
		out.LastInsertID, _ = res.LastInsertId()
		return nil
	})
	return out, err
}

func (p *Proxy) Query(ctx context.Context, stmt *Statement) ([]Row, error) {
	if stmt == nil {
		return nil, invalidf("nil statement")
	}
	var out []Row
	err := p.run(ctx, stmt, func(ctx context.Context, route *Route, query string, args []interface{}) error {
		if route.Tx != nil {
			return route.Tx.query(ctx, query, args, func(rows *sql.Rows) error {
				var err error
				out, err = scanRows(rows)
				return err
			})
		}
		rows, err := route.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanRows(rows)
		return err
	})
	return out, err
}

// First returns the first row or ErrNotFound.
func (p *Proxy) First(ctx context.Context, stmt *Statement) (Row, error) {
	if stmt == nil {
		return nil, invalidf("nil statement")
	}
	q := stmt
	if stmt.verb == verbSelect {
		q = stmt.clone()
		q.verb = verbFirst
	}
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Count counts the rows matched by stmt's filters.
func (p *Proxy) Count(ctx context.Context, stmt *Statement) (int64, error) {
	if stmt == nil {
		return 0, invalidf("nil statement")
	}
	rows, err := p.Query(ctx, stmt.countClone())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	total, ok := rows[0].Int64("total")
	if !ok {
		return 0, fmt.Errorf("unexpected count value %T", rows[0]["total"])
	}
	return total, nil
}

// Page runs the window and the total concurrently. limit is taken as given;
// a zero limit yields no items but still reports the total. Callers without
// a preference pass DefaultPageLimit.
func (p *Proxy) Page(ctx context.Context, stmt *Statement, offset, limit int) (*Page, error) {
	if stmt == nil {
		return nil, invalidf("nil statement")
	}
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", ErrInvalidPagination, offset, limit)
	}
	switch stmt.verb {
	case verbSelect, verbFirst, verbRaw:
	default:
		return nil, invalidf("cannot page a %s statement", stmt.verb)
	}
	if err := stmt.Err(); err != nil {
		return nil, err
	}

	page := &Page{Offset: offset, Limit: limit}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := p.Query(gctx, stmt.pageClone(offset, limit))
		page.Items = items
		return err
	})
	g.Go(func() error {
		total, err := p.Count(gctx, stmt)
		page.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []Row{}
	}
	page.HasNextPage = int64(offset+limit) < page.Total
	return page, nil
}

// ExecuteSQL runs hand-written SQL and returns its rows.
func (p *Proxy) ExecuteSQL(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return p.Query(ctx, Raw(query, args...))
}

func (p *Proxy) ExecutePageSQL(ctx context.Context, query string, args []interface{}, offset, limit int) (*Page, error) {
	return p.Page(ctx, Raw(query, args...), offset, limit)
}

type runFunc func(ctx context.Context, route *Route, query string, args []interface{}) error

func (p *Proxy) run(ctx context.Context, stmt *Statement, do runFunc) error {
	if p == nil || p.router == nil {
		return ErrNoRouter
	}
	tmpl, args, err := stmt.template(p.dialect)
	if err != nil {
		return err
	}
	route, err := p.Dispatch(ctx, stmt)
	if err != nil {
		return err
	}
	query := p.dialect.Rebind(tmpl)
	sqlID := SQLID(tmpl)

	timeout := stmt.timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	before := datasource.Stats(route.DB)
	stmtCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stmtCtx, span := metrics.Tracer().Start(stmtCtx, "sql."+stmt.Method(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", p.dialect.String()),
			attribute.String("db.sql_id", sqlID),
			attribute.String("db.server", route.Server),
			attribute.Bool("db.transaction", route.InTransaction),
		))
	defer span.End()

	start := time.Now()
	err = do(stmtCtx, route, query, args)
	duration := time.Since(start)
	after := datasource.Stats(route.DB)

	if err != nil {
		err = &StatementError{
			SQLID:    sqlID,
			Server:   route.Server,
			Duration: duration,
			Err:      classify(ctx, stmtCtx, err, before, after),
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	metrics.RecordStatement(ctx, stmt.Method(), route.Server, route.InTransaction, duration, err)
	metrics.RecordPoolStats(ctx, route.Server, after.Used, after.Free)
	p.report(ctx, stmt.Method(), tmpl, args, sqlID, route, duration, after, err)
	return err
}

// classify maps the statement's own deadline to ErrStatementTimeout, or to
// ErrPoolExhausted when the caller was left waiting on a saturated pool.
// The driver error is kept alongside.
func classify(parent, stmtCtx context.Context, err error, before, after datasource.PoolStats) error {
	if errors.Is(err, ErrTxCompleted) || parent.Err() != nil {
		return err
	}
	if !errors.Is(stmtCtx.Err(), context.DeadlineExceeded) {
		return err
	}
	if after.WaitCount > before.WaitCount && (before.Saturated() || after.Saturated()) {
		return errors.Join(ErrPoolExhausted, err)
	}
	return errors.Join(ErrStatementTimeout, err)
}

func (p *Proxy) report(ctx context.Context, method, tmpl string, args []interface{}, sqlID string, route *Route, duration time.Duration, stats datasource.PoolStats, err error) {
	if !p.logSQL && err == nil {
		return
	}
	payload := map[string]interface{}{
		"reqId":       request.RequestID(ctx),
		"sql":         FormatSQL(tmpl, args),
		"sqlId":       sqlID,
		"duration":    duration.Milliseconds(),
		"method":      method,
		"poolUsed":    stats.Used,
		"poolFree":    stats.Free,
		"server":      route.Server,
		"transaction": route.InTransaction,
	}
	if err != nil {
		p.telemetry.Error(EventQueryError, payload, err)
		return
	}
	p.telemetry.Info(EventQueryResponse, payload)
}
