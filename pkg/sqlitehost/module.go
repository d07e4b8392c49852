package sqlitehost

import (
	"database/sql/driver"
	"log"
	"math"

	"modernc.org/sqlite/vtab"

	"github.com/umputun/sqlextras/pkg/metrics"
	"github.com/umputun/sqlextras/pkg/value"
	"github.com/umputun/sqlextras/pkg/vtable"
)

// module binds a descriptor to the engine's module interface.
// Create is routed to Connect, the only tables created are the per-connection temp instances.
type module struct {
	desc *vtable.Descriptor
	plan func(idxNum int32) string // label for the filters metric
}

func (m *module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Connect(ctx, args)
}

func (m *module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	base, err := m.desc.Connect(ctx.Declare, args)
	if err != nil {
		return nil, m.failed("connect", err.Error(), err)
	}
	metrics.Connected(m.desc.Name)
	return &table{mod: m, base: base}, nil
}

type table struct {
	mod  *module
	base *vtable.TableBase
}

func (t *table) BestIndex(info *vtab.IndexInfo) error {
	cs := make([]vtable.Constraint, len(info.Constraints))
	for i, c := range info.Constraints {
		cs[i] = vtable.Constraint{Column: c.Column, Op: constraintOp(c.Op), Usable: c.Usable}
	}
	obs := make([]vtable.OrderBy, len(info.OrderBy))
	for i, o := range info.OrderBy {
		obs[i] = vtable.OrderBy{Column: o.Column, Desc: o.Desc}
	}
	ix := vtable.NewIndexInfo(cs, obs)
	ix.ColUsed = info.ColUsed

	if err := t.mod.desc.BestIndex(t.base, ix); err != nil {
		return t.mod.failed("best index", t.base.ErrMsg, err)
	}

	for i, u := range ix.Usage {
		info.Constraints[i].ArgIndex = u.ArgvIndex - 1 // engine side is 0-based, -1 ignores
		info.Constraints[i].Omit = u.Omit
	}
	info.IdxNum = int64(ix.IdxNum)
	info.IdxStr = ix.IdxStr
	info.OrderByConsumed = ix.OrderByConsumed
	info.EstimatedCost = ix.EstimatedCost
	info.EstimatedRows = ix.EstimatedRows
	return nil
}

func (t *table) Open() (vtab.Cursor, error) {
	cb, err := t.mod.desc.Open(t.base)
	if err != nil {
		return nil, t.mod.failed("open", err.Error(), err)
	}
	metrics.CursorOpened(t.mod.desc.Name)
	return &cursor{mod: t.mod, base: cb}, nil
}

func (t *table) Disconnect() error {
	if err := t.mod.desc.Disconnect(t.base); err != nil {
		return t.mod.failed("disconnect", err.Error(), err)
	}
	metrics.Disconnected(t.mod.desc.Name)
	return nil
}

// Destroy is called when the temp instance is dropped, it releases the same resources as Disconnect.
func (t *table) Destroy() error {
	return t.Disconnect()
}

type cursor struct {
	mod  *module
	base *vtable.CursorBase
}

func (c *cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	if idxNum < math.MinInt32 || idxNum > math.MaxInt32 {
		log.Printf("[WARN] %s: plan %d out of int32 range", c.mod.desc.Name, idxNum)
	}
	args := make([]value.Value, len(vals))
	for i, v := range vals {
		args[i] = value.FromNative(v)
	}
	plan := int32(idxNum) // nolint
	metrics.Filtered(c.mod.desc.Name, c.mod.plan(plan))
	if err := c.mod.desc.Filter(c.base, plan, idxStr, args); err != nil {
		return c.mod.failed("filter", c.base.Table().ErrMsg, err)
	}
	return nil
}

func (c *cursor) Next() error {
	metrics.Advanced(c.mod.desc.Name)
	return c.mod.desc.Next(c.base)
}

func (c *cursor) Eof() bool { return c.mod.desc.Eof(c.base) }

func (c *cursor) Column(col int) (vtab.Value, error) {
	res := &collector{}
	if err := c.mod.desc.Column(c.base, res, col); err != nil {
		return nil, err
	}
	return res.v, nil
}

func (c *cursor) Rowid() (int64, error) { return c.mod.desc.Rowid(c.base) }

func (c *cursor) Close() error {
	if err := c.mod.desc.Close(c.base); err != nil {
		return c.mod.failed("close", err.Error(), err)
	}
	metrics.CursorClosed(c.mod.desc.Name)
	return nil
}

// failed logs a callback error with the status the engine sees for it.
func (m *module) failed(op, msg string, err error) error {
	log.Printf("[WARN] vtab %s: %s failed with status %s, %s", m.desc.Name, op, vtable.StatusOf(err), msg)
	return err
}

// collector receives a column result. The engine copies what Column returns,
// so text and blob buffers are copied out and released right away.
type collector struct {
	v driver.Value
}

func (c *collector) ResultNull()            { c.v = nil }
func (c *collector) ResultInt64(v int64)    { c.v = v }
func (c *collector) ResultDouble(v float64) { c.v = v }

func (c *collector) ResultText(buf []byte, release func()) {
	c.v = string(buf)
	release()
}

func (c *collector) ResultBlob(buf []byte, release func()) {
	b := make([]byte, len(buf))
	copy(b, buf)
	c.v = b
	release()
}

var ops = map[vtab.ConstraintOp]vtable.ConstraintOp{
	vtab.OpEQ: vtable.OpEQ, vtab.OpGT: vtable.OpGT, vtab.OpLE: vtable.OpLE, vtab.OpLT: vtable.OpLT,
	vtab.OpGE: vtable.OpGE, vtab.OpMATCH: vtable.OpMATCH, vtab.OpNE: vtable.OpNE, vtab.OpIS: vtable.OpIS,
	vtab.OpISNOT: vtable.OpISNOT, vtab.OpISNULL: vtable.OpISNULL, vtab.OpISNOTNULL: vtable.OpISNOTNULL,
	vtab.OpLIKE: vtable.OpLIKE, vtab.OpGLOB: vtable.OpGLOB, vtab.OpREGEXP: vtable.OpREGEXP,
	vtab.OpFUNCTION: vtable.OpFUNCTION, vtab.OpLIMIT: vtable.OpLIMIT, vtab.OpOFFSET: vtable.OpOFFSET,
}

func constraintOp(op vtab.ConstraintOp) vtable.ConstraintOp {
	if res, ok := ops[op]; ok {
		return res
	}
	return vtable.OpUnknown
}
