// Package series implements the range table, an integer sequence generator usable as a
// table-valued function: SELECT value FROM range(start, stop, step).
//
// Both bounds are inclusive. Without a stop bound the sequence runs up to math.MaxInt64,
// the cursor stops at the end of the int64 range instead of wrapping around.
package series

import (
	"fmt"
	"math"

	"github.com/umputun/sqlextras/pkg/value"
	"github.com/umputun/sqlextras/pkg/vtable"
)

// ModuleName is the name the range table is registered under.
const ModuleName = "range"

// Schema declares the visible value column and the hidden argument columns.
const Schema = "CREATE TABLE x(value, start HIDDEN, stop HIDDEN, step HIDDEN)"

// Column indexes.
const (
	ColValue = iota
	ColStart
	ColStop
	ColStep
)

const (
	boundedCost = 2.0
	boundedRows = 1000
)

// Descriptor makes the descriptor of the range table.
func Descriptor(api vtable.API) *vtable.Descriptor {
	return vtable.NewDescriptor[*Table, *Cursor](api, vtable.Kind[*Table]{
		Name:   ModuleName,
		Schema: Schema,
		New:    NewTable,
	})
}

// Table is a connected range table. It has no state of its own.
type Table struct{}

// NewTable makes a range table.
func NewTable() *Table { return &Table{} }

// BestIndex picks the plan for the offered constraints. Usable equality constraints on
// start, stop and step become Filter arguments in that order. Plans without both bounds
// are allowed but priced at vtable.MaxCost so the host prefers anything else.
func (t *Table) BestIndex(info *vtable.IndexInfo) error {
	var plan Plan
	idx := [3]int{-1, -1, -1} // start, stop, step
	for i, c := range info.Constraints {
		if !c.Usable || c.Op != vtable.OpEQ {
			continue
		}
		switch c.Column {
		case ColStart:
			idx[0], plan.Start = i, true
		case ColStop:
			idx[1], plan.Stop = i, true
		case ColStep:
			idx[2], plan.Step = i, true
		}
	}

	slot := 0
	for _, i := range idx {
		if i < 0 {
			continue
		}
		slot++
		info.Usage[i] = vtable.ConstraintUsage{ArgvIndex: slot, Omit: true}
	}

	if !plan.Bounded() {
		info.EstimatedCost, info.EstimatedRows = vtable.MaxCost, vtable.MaxRows
		info.IdxNum = plan.Encode()
		return nil
	}

	info.EstimatedCost, info.EstimatedRows = boundedCost, boundedRows
	if plan.Step {
		info.EstimatedCost--
	}
	if len(info.OrderBy) == 1 && info.OrderBy[0].Column == ColValue {
		plan.Desc = info.OrderBy[0].Desc
		info.OrderByConsumed = true
	}
	info.IdxNum = plan.Encode()
	return nil
}

// Open makes a cursor in the default state.
func (t *Table) Open() (*Cursor, error) { return &Cursor{}, nil }

// Disconnect does nothing, the table holds no resources.
func (t *Table) Disconnect() error { return nil }

// Cursor walks one range. For descending plans step is stored negated.
type Cursor struct {
	rowid int64
	value int64
	start int64
	stop  int64
	step  int64
	done  bool // int64 overflow reached
}

// Filter starts the scan for the plan encoded in idxNum with its arguments in slot order.
func (c *Cursor) Filter(idxNum int32, _ string, args []value.Value) error {
	plan := DecodePlan(idxNum)
	if len(args) < plan.Args() {
		return fmt.Errorf("range plan %s expects %d arguments, got %d", plan, plan.Args(), len(args))
	}

	c.start, c.stop, c.step = 0, math.MaxInt64, 1
	pos := 0
	arg := func() int64 {
		v := args[pos].Int64()
		pos++
		return v
	}
	if plan.Start {
		c.start = arg()
	}
	if plan.Stop {
		c.stop = arg()
	}
	if plan.Step {
		c.step = max(arg(), 1)
	}

	c.rowid, c.done, c.value = 1, false, c.start
	if plan.Desc {
		c.value = c.stop
		if c.stop > c.start {
			// align to the last value reachable from start; unsigned math avoids overflow of stop-start
			c.value -= int64((uint64(c.stop) - uint64(c.start)) % uint64(c.step))
		}
		c.step = -c.step
	}
	return nil
}

// Next advances to the next value, the cursor ends instead of overflowing int64.
func (c *Cursor) Next() error {
	switch {
	case c.step > 0 && c.value > math.MaxInt64-c.step:
		c.done = true
	case c.step < 0 && c.value < math.MinInt64-c.step:
		c.done = true
	default:
		c.value += c.step
	}
	c.rowid++
	return nil
}

// Eof reports whether the cursor moved past the range.
func (c *Cursor) Eof() bool {
	if c.done {
		return true
	}
	if c.step < 0 {
		return c.value < c.start
	}
	return c.value > c.stop
}

// Column returns the value or one of the effective arguments. Step is always reported positive.
func (c *Cursor) Column(i int) (value.Value, error) {
	switch i {
	case ColStart:
		return value.IntegerValue(c.start), nil
	case ColStop:
		return value.IntegerValue(c.stop), nil
	case ColStep:
		if c.step < 0 {
			return value.IntegerValue(-c.step), nil
		}
		return value.IntegerValue(c.step), nil
	}
	return value.IntegerValue(c.value), nil
}

// Rowid returns the 1-based position of the current row.
func (c *Cursor) Rowid() (int64, error) { return c.rowid, nil }

// Close does nothing.
func (c *Cursor) Close() error { return nil }
