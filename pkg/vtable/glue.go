package vtable

import (
	"fmt"
	"log"

	"github.com/umputun/sqlextras/pkg/value"
)

func connect[T Table[C], C Cursor](d *Descriptor, kind Kind[T], declare Declarer, args []string) (*TableBase, error) {
	if err := declare(kind.Schema); err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrSchema, kind.Name, err)
	}
	h := &tableHandle[T]{impl: kind.New(), live: true}
	h.base.desc = d
	d.tables.Add(1)
	log.Printf("[DEBUG] vtab %s: connect, args=%v", kind.Name, args)
	return &h.base, nil
}

func disconnect[T Table[C], C Cursor](b *TableBase) error {
	h := tableOf[T](b)
	if !h.live {
		return ErrClosed
	}
	err := h.impl.Disconnect()
	var zero T
	h.impl, h.live = zero, false
	h.base.desc.tables.Add(-1)
	log.Printf("[DEBUG] vtab %s: disconnect", h.base.desc.Name)
	return err
}

func bestIndex[T Table[C], C Cursor](b *TableBase, info *IndexInfo) error {
	h := tableOf[T](b)
	if err := h.impl.BestIndex(info); err != nil {
		b.ErrMsg = err.Error()
		return err
	}
	if err := info.Validate(); err != nil {
		b.ErrMsg = err.Error()
		return fmt.Errorf("invalid plan from %s: %w", b.desc.Name, err)
	}
	log.Printf("[DEBUG] vtab %s: plan %d with %d arg(s), cost %v", b.desc.Name, info.IdxNum, info.Args(), info.EstimatedCost)
	return nil
}

func open[T Table[C], C Cursor](b *TableBase) (*CursorBase, error) {
	h := tableOf[T](b)
	if !h.live {
		return nil, ErrClosed
	}
	cur, err := h.impl.Open()
	if err != nil {
		b.ErrMsg = err.Error()
		return nil, err
	}
	ch := &cursorHandle[C]{impl: cur, live: true}
	ch.base.table = b
	b.desc.cursors.Add(1)
	return &ch.base, nil
}

func closeCursor[C Cursor](b *CursorBase) error {
	ch := cursorOf[C](b)
	if !ch.live {
		return ErrClosed
	}
	err := ch.impl.Close()
	var zero C
	ch.impl, ch.live = zero, false
	b.table.desc.cursors.Add(-1)
	return err
}

func filter[C Cursor](b *CursorBase, idxNum int32, idxStr string, args []value.Value) error {
	if err := cursorOf[C](b).impl.Filter(idxNum, idxStr, args); err != nil {
		b.table.ErrMsg = err.Error()
		return err
	}
	return nil
}

func next[C Cursor](b *CursorBase) error {
	return cursorOf[C](b).impl.Next()
}

func eof[C Cursor](b *CursorBase) bool {
	return cursorOf[C](b).impl.Eof()
}

func column[C Cursor](reg *value.Registry, b *CursorBase, ctx value.ResultContext, i int) error {
	v, err := cursorOf[C](b).impl.Column(i)
	if err != nil {
		return err
	}
	value.Push(reg, v, ctx)
	return nil
}

func rowid[C Cursor](b *CursorBase) (int64, error) {
	return cursorOf[C](b).impl.Rowid()
}
