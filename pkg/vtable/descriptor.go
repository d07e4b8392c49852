// Package vtable implements a type-safe framework for read-only virtual tables.
//
// A table kind is written as a pair of Go types satisfying Table and Cursor. NewDescriptor
// turns them into a Descriptor, a table of plain functions working on opaque TableBase and
// CursorBase headers, which a host binding (see sqlitehost) plugs into the database engine.
// Slots for writes, transactions and renames are always nil, tables built here are read-only.
package vtable

import (
	"sync/atomic"

	"github.com/umputun/sqlextras/pkg/value"
)

// Table is the capability set of a table implementation.
type Table[C Cursor] interface {
	BestIndex(info *IndexInfo) error
	Open() (C, error)
	Disconnect() error
}

// Cursor is the capability set of a cursor implementation.
type Cursor interface {
	Filter(idxNum int32, idxStr string, args []value.Value) error
	Next() error
	Eof() bool
	Column(i int) (value.Value, error)
	Rowid() (int64, error)
	Close() error
}

// Kind statically describes a table kind: module name, declared schema and the
// constructor of a fresh table.
type Kind[T any] struct {
	Name   string
	Schema string
	New    func() T
}

// Declarer submits a CREATE TABLE statement to the host, supplied per connect call.
type Declarer func(schema string) error

// Slot names a callback of the Descriptor.
type Slot string

// Descriptor slots.
const (
	SlotCreate       Slot = "create"
	SlotConnect      Slot = "connect"
	SlotBestIndex    Slot = "best_index"
	SlotDisconnect   Slot = "disconnect"
	SlotDestroy      Slot = "destroy"
	SlotOpen         Slot = "open"
	SlotClose        Slot = "close"
	SlotFilter       Slot = "filter"
	SlotNext         Slot = "next"
	SlotEof          Slot = "eof"
	SlotColumn       Slot = "column"
	SlotRowid        Slot = "rowid"
	SlotUpdate       Slot = "update"
	SlotBegin        Slot = "begin"
	SlotSync         Slot = "sync"
	SlotCommit       Slot = "commit"
	SlotRollback     Slot = "rollback"
	SlotFindFunction Slot = "find_function"
	SlotRename       Slot = "rename"
	SlotSavepoint    Slot = "savepoint"
	SlotRelease      Slot = "release"
	SlotRollbackTo   Slot = "rollback_to"
)

// Descriptor is the callback table of one table kind. It is built once and never
// changes, the only mutable state is the live handle counters.
type Descriptor struct {
	Name   string
	Schema string

	Connect    func(declare Declarer, args []string) (*TableBase, error)
	Disconnect func(t *TableBase) error
	BestIndex  func(t *TableBase, info *IndexInfo) error
	Open       func(t *TableBase) (*CursorBase, error)
	Close      func(c *CursorBase) error
	Filter     func(c *CursorBase, idxNum int32, idxStr string, args []value.Value) error
	Next       func(c *CursorBase) error
	Eof        func(c *CursorBase) bool
	Column     func(c *CursorBase, ctx value.ResultContext, i int) error
	Rowid      func(c *CursorBase) (int64, error)

	// not supported, always nil
	Create       func(declare Declarer, args []string) (*TableBase, error)
	Destroy      func(t *TableBase) error
	Update       func(t *TableBase, args []value.Value) (int64, error)
	Begin        func(t *TableBase) error
	Sync         func(t *TableBase) error
	Commit       func(t *TableBase) error
	Rollback     func(t *TableBase) error
	FindFunction func(t *TableBase, nArg int, name string) bool
	Rename       func(t *TableBase, name string) error
	Savepoint    func(t *TableBase, n int) error
	Release      func(t *TableBase, n int) error
	RollbackTo   func(t *TableBase, n int) error

	tables  atomic.Int64
	cursors atomic.Int64
}

// NewDescriptor makes the descriptor for the table kind T with cursor C.
// Column results are pushed through the registry of api.
func NewDescriptor[T Table[C], C Cursor](api API, kind Kind[T]) *Descriptor {
	reg := api.Registry()
	d := &Descriptor{Name: kind.Name, Schema: kind.Schema}
	d.Connect = func(declare Declarer, args []string) (*TableBase, error) {
		return connect[T, C](d, kind, declare, args)
	}
	d.Disconnect = disconnect[T, C]
	d.BestIndex = bestIndex[T, C]
	d.Open = open[T, C]
	d.Close = closeCursor[C]
	d.Filter = filter[C]
	d.Next = next[C]
	d.Eof = eof[C]
	d.Column = func(c *CursorBase, ctx value.ResultContext, i int) error {
		return column[C](reg, c, ctx, i)
	}
	d.Rowid = rowid[C]
	return d
}

// Supports reports whether the slot has a callback.
func (d *Descriptor) Supports(s Slot) bool {
	switch s {
	case SlotConnect:
		return d.Connect != nil
	case SlotDisconnect:
		return d.Disconnect != nil
	case SlotBestIndex:
		return d.BestIndex != nil
	case SlotOpen:
		return d.Open != nil
	case SlotClose:
		return d.Close != nil
	case SlotFilter:
		return d.Filter != nil
	case SlotNext:
		return d.Next != nil
	case SlotEof:
		return d.Eof != nil
	case SlotColumn:
		return d.Column != nil
	case SlotRowid:
		return d.Rowid != nil
	case SlotCreate:
		return d.Create != nil
	case SlotDestroy:
		return d.Destroy != nil
	case SlotUpdate:
		return d.Update != nil
	case SlotBegin:
		return d.Begin != nil
	case SlotSync:
		return d.Sync != nil
	case SlotCommit:
		return d.Commit != nil
	case SlotRollback:
		return d.Rollback != nil
	case SlotFindFunction:
		return d.FindFunction != nil
	case SlotRename:
		return d.Rename != nil
	case SlotSavepoint:
		return d.Savepoint != nil
	case SlotRelease:
		return d.Release != nil
	case SlotRollbackTo:
		return d.RollbackTo != nil
	}
	return false
}

// Live returns the number of connected tables and open cursors of this kind.
func (d *Descriptor) Live() (tables, cursors int64) {
	return d.tables.Load(), d.cursors.Load()
}
