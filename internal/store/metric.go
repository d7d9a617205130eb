package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/ngrok/sqlmw"
	"github.com/prometheus/client_golang/prometheus"
)

// instrumentedDriverName is the database/sql driver wrapping pgx with metricInterceptor.
const instrumentedDriverName = "pgx-instrumented"

var (
	statementRegex = regexp.MustCompile(`^\s*(\w+)`)
	dbOpLatency    = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "db_op_duration_milliseconds",
		Help:      "Time spent on a database operation",
		Subsystem: "meeting_intelligence",
		Buckets:   []float64{5, 25, 100, 500, 2000},
	}, []string{"op", "statement"})
	dbOpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "db_op_total",
		Help:      "Number of database operations",
		Subsystem: "meeting_intelligence",
	}, []string{"op", "outcome"})

	registerDriver sync.Once
)

func init() {
	prometheus.MustRegister(dbOpLatency, dbOpTotal)
}

// instrumentedDriver registers the wrapped pgx driver once and returns its name.
func instrumentedDriver() string {
	registerDriver.Do(func() {
		sql.Register(instrumentedDriverName, sqlmw.Driver(stdlib.GetDefaultDriver(), new(metricInterceptor)))
	})
	return instrumentedDriverName
}

type metricInterceptor struct {
	sqlmw.NullInterceptor
}

func (mi *metricInterceptor) ConnBeginTx(ctx context.Context, conn driver.ConnBeginTx, opts driver.TxOptions) (context.Context, driver.Tx, error) {
	start := time.Now()
	tx, err := conn.BeginTx(ctx, opts)
	mi.measure("begin", "begin", start, err)
	return ctx, tx, err
}

func (mi *metricInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	result, err := conn.ExecContext(ctx, query, args)
	mi.measure("exec", statement(query), start, err)
	return result, err
}

func (mi *metricInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	start := time.Now()
	rows, err := conn.QueryContext(ctx, query, args)
	mi.measure("query", statement(query), start, err)
	return ctx, rows, err
}

func (mi *metricInterceptor) StmtExecContext(ctx context.Context, stmt driver.StmtExecContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	result, err := stmt.ExecContext(ctx, args)
	mi.measure("exec", statement(query), start, err)
	return result, err
}

func (mi *metricInterceptor) StmtQueryContext(ctx context.Context, stmt driver.StmtQueryContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	start := time.Now()
	rows, err := stmt.QueryContext(ctx, args)
	mi.measure("query", statement(query), start, err)
	return ctx, rows, err
}

func (mi *metricInterceptor) TxCommit(ctx context.Context, tx driver.Tx) error {
	start := time.Now()
	err := tx.Commit()
	mi.measure("commit", "commit", start, err)
	return err
}

func (mi *metricInterceptor) TxRollback(ctx context.Context, tx driver.Tx) error {
	start := time.Now()
	err := tx.Rollback()
	mi.measure("rollback", "rollback", start, err)
	return err
}

func (mi *metricInterceptor) measure(op, stmt string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	dbOpTotal.WithLabelValues(op, outcome).Inc()
	dbOpLatency.WithLabelValues(op, stmt).Observe(float64(time.Since(start).Milliseconds()))
}

// statement returns the lowercased leading keyword so the label set stays bounded.
func statement(query string) string {
	m := statementRegex.FindStringSubmatch(query)
	if len(m) < 2 {
		return "other"
	}
	switch kw := strings.ToLower(m[1]); kw {
	case "select", "insert", "update", "delete", "with", "begin", "commit", "rollback":
		return kw
	default:
		return "other"
	}
}
