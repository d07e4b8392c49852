package vtable

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/sqlextras/pkg/value"
)

// wordsTable lists a fixed set of words, one per row.
type wordsTable struct {
	words        []string
	disconnected *int
}

func (w *wordsTable) BestIndex(info *IndexInfo) error {
	info.EstimatedCost = float64(len(w.words))
	info.EstimatedRows = int64(len(w.words))
	return nil
}

func (w *wordsTable) Open() (*wordsCursor, error) { return &wordsCursor{words: w.words}, nil }

func (w *wordsTable) Disconnect() error {
	if w.disconnected != nil {
		*w.disconnected++
	}
	return nil
}

type wordsCursor struct {
	words []string
	pos   int
}

func (c *wordsCursor) Filter(int32, string, []value.Value) error { c.pos = 0; return nil }
func (c *wordsCursor) Next() error                               { c.pos++; return nil }
func (c *wordsCursor) Eof() bool                                 { return c.pos >= len(c.words) }
func (c *wordsCursor) Rowid() (int64, error)                     { return int64(c.pos + 1), nil }
func (c *wordsCursor) Close() error                              { return nil }

func (c *wordsCursor) Column(i int) (value.Value, error) {
	switch i {
	case 0:
		return value.TextValue(c.words[c.pos]), nil
	case 1:
		return value.IntegerValue(int64(len(c.words[c.pos]))), nil
	}
	return value.Value{}, fmt.Errorf("no column %d", i)
}

type collector struct {
	vals []any
}

func (c *collector) ResultNull()            { c.vals = append(c.vals, nil) }
func (c *collector) ResultInt64(v int64)    { c.vals = append(c.vals, v) }
func (c *collector) ResultDouble(v float64) { c.vals = append(c.vals, v) }
func (c *collector) ResultText(buf []byte, release func()) {
	c.vals = append(c.vals, string(buf))
	release()
}

func (c *collector) ResultBlob(buf []byte, release func()) {
	c.vals = append(c.vals, append([]byte(nil), buf...))
	release()
}

func newWordsDescriptor(reg *value.Registry, disconnected *int) *Descriptor {
	api := StaticAPI{Version: 3045000, Values: reg}
	return NewDescriptor[*wordsTable, *wordsCursor](api, Kind[*wordsTable]{
		Name:   "words",
		Schema: "CREATE TABLE x(word, size HIDDEN)",
		New: func() *wordsTable {
			return &wordsTable{words: []string{"alpha", "be", "gamma"}, disconnected: disconnected}
		},
	})
}

func TestDescriptor_FullScan(t *testing.T) {
	reg := value.NewRegistry()
	disconnected := 0
	d := newWordsDescriptor(reg, &disconnected)

	var declared string
	tb, err := d.Connect(func(s string) error { declared = s; return nil }, []string{"words"})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE x(word, size HIDDEN)", declared)
	tables, cursors := d.Live()
	assert.Equal(t, int64(1), tables)
	assert.Equal(t, int64(0), cursors)

	info := NewIndexInfo(nil, nil)
	require.NoError(t, d.BestIndex(tb, info))
	assert.InDelta(t, 3.0, info.EstimatedCost, 1e-9)

	cb, err := d.Open(tb)
	require.NoError(t, err)
	assert.Equal(t, tb, cb.Table())
	_, cursors = d.Live()
	assert.Equal(t, int64(1), cursors)

	require.NoError(t, d.Filter(cb, info.IdxNum, info.IdxStr, nil))
	res := &collector{}
	var rowids []int64
	for !d.Eof(cb) {
		require.NoError(t, d.Column(cb, res, 0))
		require.NoError(t, d.Column(cb, res, 1))
		id, err := d.Rowid(cb)
		require.NoError(t, err)
		rowids = append(rowids, id)
		require.NoError(t, d.Next(cb))
	}
	assert.Equal(t, []any{"alpha", int64(5), "be", int64(2), "gamma", int64(5)}, res.vals)
	assert.Equal(t, []int64{1, 2, 3}, rowids)
	assert.Equal(t, 0, reg.Len(), "all text buffers released")

	require.NoError(t, d.Close(cb))
	assert.ErrorIs(t, d.Close(cb), ErrClosed)
	require.NoError(t, d.Disconnect(tb))
	assert.ErrorIs(t, d.Disconnect(tb), ErrClosed)
	assert.Equal(t, 1, disconnected, "impl disconnected exactly once")

	tables, cursors = d.Live()
	assert.Equal(t, int64(0), tables)
	assert.Equal(t, int64(0), cursors)
}

func TestDescriptor_ConnectSchemaRejected(t *testing.T) {
	d := newWordsDescriptor(value.NewRegistry(), nil)
	tb, err := d.Connect(func(string) error { return errors.New("syntax error") }, nil)
	require.Error(t, err)
	assert.Nil(t, tb)
	assert.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "syntax error")
	assert.Equal(t, StatusError, StatusOf(err))
	tables, _ := d.Live()
	assert.Equal(t, int64(0), tables, "nothing allocated on rejection")
}

func TestDescriptor_ColumnError(t *testing.T) {
	d := newWordsDescriptor(value.NewRegistry(), nil)
	tb, err := d.Connect(func(string) error { return nil }, nil)
	require.NoError(t, err)
	cb, err := d.Open(tb)
	require.NoError(t, err)
	require.NoError(t, d.Filter(cb, 0, "", nil))
	err = d.Column(cb, &collector{}, 5)
	assert.EqualError(t, err, "no column 5")
	require.NoError(t, d.Close(cb))
	require.NoError(t, d.Disconnect(tb))
}

func TestDescriptor_IndependentInstances(t *testing.T) {
	d := newWordsDescriptor(value.NewRegistry(), nil)
	declare := func(string) error { return nil }
	t1, err := d.Connect(declare, nil)
	require.NoError(t, err)
	t2, err := d.Connect(declare, nil)
	require.NoError(t, err)
	assert.NotSame(t, t1, t2)

	c1, err := d.Open(t1)
	require.NoError(t, err)
	c2, err := d.Open(t1)
	require.NoError(t, err)
	require.NoError(t, d.Filter(c1, 0, "", nil))
	require.NoError(t, d.Filter(c2, 0, "", nil))
	require.NoError(t, d.Next(c1))
	require.NoError(t, d.Next(c1))

	id1, err := d.Rowid(c1)
	require.NoError(t, err)
	id2, err := d.Rowid(c2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id1)
	assert.Equal(t, int64(1), id2, "cursors don't share state")

	require.NoError(t, d.Close(c1))
	require.NoError(t, d.Close(c2))
	require.NoError(t, d.Disconnect(t1))
	require.NoError(t, d.Disconnect(t2))
	tables, cursors := d.Live()
	assert.Equal(t, int64(0), tables)
	assert.Equal(t, int64(0), cursors)
}

func TestDescriptor_Supports(t *testing.T) {
	d := newWordsDescriptor(value.NewRegistry(), nil)
	for _, s := range []Slot{SlotConnect, SlotDisconnect, SlotBestIndex, SlotOpen, SlotClose,
		SlotFilter, SlotNext, SlotEof, SlotColumn, SlotRowid} {
		assert.True(t, d.Supports(s), s)
	}
	for _, s := range []Slot{SlotCreate, SlotDestroy, SlotUpdate, SlotBegin, SlotSync, SlotCommit,
		SlotRollback, SlotFindFunction, SlotRename, SlotSavepoint, SlotRelease, SlotRollbackTo} {
		assert.False(t, d.Supports(s), s)
	}
	assert.False(t, d.Supports(Slot("blah")))
}

type badPlanTable struct{ wordsTable }

func (b *badPlanTable) BestIndex(info *IndexInfo) error {
	for i := range info.Usage {
		info.Usage[i].ArgvIndex = 1
	}
	return nil
}

func TestDescriptor_BestIndexValidates(t *testing.T) {
	d := NewDescriptor[*badPlanTable, *wordsCursor](StaticAPI{Values: value.NewRegistry()}, Kind[*badPlanTable]{
		Name: "bad", Schema: "CREATE TABLE x(a)", New: func() *badPlanTable { return &badPlanTable{} },
	})
	tb, err := d.Connect(func(string) error { return nil }, nil)
	require.NoError(t, err)
	info := NewIndexInfo([]Constraint{{Column: 0, Op: OpEQ, Usable: true}, {Column: 0, Op: OpGT, Usable: true}}, nil)
	err = d.BestIndex(tb, info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
	assert.NotEmpty(t, tb.ErrMsg)
	require.NoError(t, d.Disconnect(tb))
}

func TestIndexInfo_Validate(t *testing.T) {
	usable := Constraint{Column: 1, Op: OpEQ, Usable: true}
	unusable := Constraint{Column: 2, Op: OpEQ, Usable: false}

	tbl := []struct {
		name  string
		cs    []Constraint
		usage []ConstraintUsage
		err   string
	}{
		{"empty", nil, nil, ""},
		{"no slots", []Constraint{usable, unusable}, []ConstraintUsage{{}, {}}, ""},
		{"dense", []Constraint{usable, usable}, []ConstraintUsage{{ArgvIndex: 2}, {ArgvIndex: 1, Omit: true}}, ""},
		{"gap", []Constraint{usable, usable}, []ConstraintUsage{{ArgvIndex: 1}, {ArgvIndex: 3}}, "out of range"},
		{"gap in range", []Constraint{usable, usable, usable}, []ConstraintUsage{{ArgvIndex: 1}, {ArgvIndex: 3}, {}}, "not dense"},
		{"duplicate", []Constraint{usable, usable}, []ConstraintUsage{{ArgvIndex: 1}, {ArgvIndex: 1}}, "already used"},
		{"unusable", []Constraint{unusable}, []ConstraintUsage{{ArgvIndex: 1}}, "unusable"},
		{"negative", []Constraint{usable}, []ConstraintUsage{{ArgvIndex: -1}}, "out of range"},
		{"length mismatch", []Constraint{usable}, nil, "usage has 0 entries"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			info := &IndexInfo{Constraints: tt.cs, Usage: tt.usage}
			err := info.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestIndexInfo_Args(t *testing.T) {
	info := NewIndexInfo([]Constraint{{Usable: true}, {Usable: true}, {Usable: true}}, nil)
	assert.Len(t, info.Usage, 3)
	assert.Equal(t, 0, info.Args())
	info.Usage[0].ArgvIndex = 2
	info.Usage[2].ArgvIndex = 1
	assert.Equal(t, 2, info.Args())
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusNoMem, StatusOf(fmt.Errorf("alloc cursor: %w", ErrNoMem)))
	assert.Equal(t, StatusError, StatusOf(errors.New("boom")))
	assert.Equal(t, "nomem", StatusNoMem.String())
	assert.Equal(t, "ok", StatusOK.String())
}

func TestConstraintOp_String(t *testing.T) {
	assert.Equal(t, "=", OpEQ.String())
	assert.Equal(t, "IS NOT NULL", OpISNOTNULL.String())
	assert.Equal(t, "unknown", OpUnknown.String())
}

func TestInitAPI_Once(t *testing.T) {
	first := StaticAPI{Version: 1, Values: value.NewRegistry()}
	second := StaticAPI{Version: 2, Values: value.NewRegistry()}
	got := InitAPI(first)
	assert.Equal(t, 1, got.LibVersionNumber())
	got = InitAPI(second)
	assert.Equal(t, 1, got.LibVersionNumber(), "first initialization wins")
	assert.Same(t, first.Values, got.Registry())
}
