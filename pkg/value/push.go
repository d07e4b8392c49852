package value

// ResultContext receives a single column result on the host side.
// For text and blob results the host owns buf until it calls release, exactly once.
type ResultContext interface {
	ResultNull()
	ResultInt64(v int64)
	ResultDouble(v float64)
	ResultText(buf []byte, release func())
	ResultBlob(buf []byte, release func())
}

// Push hands v to the host. Text and blob contents are copied into a buffer
// tracked by reg until the host releases it.
func Push(reg *Registry, v Value, ctx ResultContext) {
	switch v.kind {
	case Null:
		ctx.ResultNull()
	case Integer:
		ctx.ResultInt64(v.i)
	case Float:
		ctx.ResultDouble(v.f)
	case Text:
		buf := []byte(v.s)
		tok := reg.Hand(buf)
		ctx.ResultText(buf, func() { reg.Release(tok) })
	case Blob:
		buf := make([]byte, len(v.b))
		copy(buf, v.b)
		tok := reg.Hand(buf)
		ctx.ResultBlob(buf, func() { reg.Release(tok) })
	}
}
