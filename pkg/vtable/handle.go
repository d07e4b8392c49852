package vtable

import (
	"unsafe"
)

// TableBase is the fixed header the host holds for a connected table.
// It is always the first field of a tableHandle, the host never sees the payload.
type TableBase struct {
	ErrMsg string
	desc   *Descriptor
}

// CursorBase is the fixed header the host holds for an open cursor.
type CursorBase struct {
	table *TableBase
}

// Table returns the header of the table the cursor was opened on.
func (c *CursorBase) Table() *TableBase { return c.table }

type tableHandle[T any] struct {
	base TableBase // must be first
	impl T
	live bool
}

type cursorHandle[C any] struct {
	base CursorBase // must be first
	impl C
	live bool
}

// tableOf recovers the full handle from its header. b must come from connect of the same T.
func tableOf[T any](b *TableBase) *tableHandle[T] {
	return (*tableHandle[T])(unsafe.Pointer(b))
}

// cursorOf recovers the full cursor handle. b must come from open of the same C.
func cursorOf[C any](b *CursorBase) *cursorHandle[C] {
	return (*cursorHandle[C])(unsafe.Pointer(b))
}
