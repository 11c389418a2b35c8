package cursor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"xorkevin.dev/ibu/typecast"
	"xorkevin.dev/klog"
)

type (
	// DebugWrapper is a [Wrapper] that times statements, appends them to the
	// connection query log, and logs them at debug level
	DebugWrapper struct {
		*Wrapper
		log *klog.LevelLogger
		now func() time.Time
	}
)

// NewDebug creates a [DebugWrapper]
func NewDebug(native Native, conn Conn, conv *typecast.Registry, log klog.Logger) *DebugWrapper {
	return &DebugWrapper{
		Wrapper: New(native, conn, conv),
		log:     klog.NewLevelLogger(log),
		now:     time.Now,
	}
}

func (c *DebugWrapper) record(ctx context.Context, start time.Time, sql string, logSQL string, params any) {
	duration := c.now().Sub(start).Seconds()
	if duration < 0 {
		duration = 0
	}
	if ql := c.conn.QueriesLog(); ql != nil {
		ql.Append(QueryLogEntry{
			SQL:  sql,
			Time: fmt.Sprintf("%.3f", duration),
		})
	}
	c.log.Debug(ctx, "Executed query",
		klog.AAny("duration", duration),
		klog.AString("sql", logSQL),
		klog.AAny("params", params),
	)
}

// Execute runs a statement and records it even if it fails
func (c *DebugWrapper) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	start := c.now()
	defer func() {
		sql := c.conn.Ops().LastExecutedQuery(c.native, query, args)
		c.record(ctx, start, sql, sql, args)
	}()
	return c.Wrapper.Execute(ctx, query, args...)
}

// ExecuteMany runs a statement for each parameter list and records it with
// its repetition count, or ? if params has no known length
func (c *DebugWrapper) ExecuteMany(ctx context.Context, query string, params Params) (Result, error) {
	start := c.now()
	defer func() {
		times := "?"
		var logParams any
		if n, ok := ParamsLen(params); ok {
			times = strconv.Itoa(n)
			logParams = params
		}
		c.record(ctx, start, fmt.Sprintf("%s times: %s", times, query), query, logParams)
	}()
	return c.Wrapper.ExecuteMany(ctx, query, params)
}
