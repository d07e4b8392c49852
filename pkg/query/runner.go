// Package query runs batches of SQL statements concurrently and prints their results.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-pkgz/syncs"
)

// Querier is the part of *sql.DB used by Runner.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Runner executes statements, each on its own pooled connection.
type Runner struct {
	DB          Querier
	Concurrency int
}

// Result is the outcome of a single statement.
type Result struct {
	SQL      string
	Columns  []string
	Rows     [][]any
	Err      error
	Duration time.Duration
}

// Run executes all stmts with up to Concurrency in parallel. Results keep the order of stmts,
// failed statements have Err set. The returned error combines all statement errors.
func (r *Runner) Run(ctx context.Context, stmts []string) ([]Result, error) {
	res := make([]Result, len(stmts))
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	wg := syncs.NewErrSizedGroup(concurrency, syncs.Context(ctx), syncs.Preemptive)
	for i, stmt := range stmts {
		res[i].SQL = stmt
		wg.Go(func() error {
			st := time.Now()
			res[i] = r.one(ctx, stmt)
			res[i].Duration = time.Since(st)
			if res[i].Err != nil {
				return fmt.Errorf("statement #%d: %w", i+1, res[i].Err)
			}
			log.Printf("[DEBUG] statement #%d done in %v, %d row(s)", i+1, res[i].Duration, len(res[i].Rows))
			return nil
		})
	}
	err := wg.Wait()
	return res, err
}

func (r *Runner) one(ctx context.Context, stmt string) Result {
	res := Result{SQL: stmt}
	rows, err := r.DB.QueryContext(ctx, stmt)
	if err != nil {
		res.Err = fmt.Errorf("can't run %q: %w", stmt, err)
		return res
	}
	defer rows.Close() // nolint

	if res.Columns, err = rows.Columns(); err != nil {
		res.Err = fmt.Errorf("can't get columns: %w", err)
		return res
	}
	for rows.Next() {
		vals := make([]any, len(res.Columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			res.Err = fmt.Errorf("can't scan row %d: %w", len(res.Rows)+1, err)
			return res
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		res.Err = fmt.Errorf("can't read rows: %w", err)
	}
	return res
}
