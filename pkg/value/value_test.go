package value

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Int64(t *testing.T) {
	tbl := []struct {
		name string
		v    Value
		exp  int64
	}{
		{"null", NullValue(), 0},
		{"integer", IntegerValue(42), 42},
		{"negative integer", IntegerValue(-7), -7},
		{"float truncated", FloatValue(3.9), 3},
		{"negative float truncated", FloatValue(-3.9), -3},
		{"float clamped high", FloatValue(1e300), math.MaxInt64},
		{"float clamped low", FloatValue(-1e300), math.MinInt64},
		{"nan", FloatValue(math.NaN()), 0},
		{"text number", TextValue("123"), 123},
		{"text with spaces", TextValue("  17"), 17},
		{"text prefix", TextValue("12abc"), 12},
		{"text float", TextValue("3.7"), 3},
		{"text exponent", TextValue("1e3"), 1000},
		{"text signed", TextValue("-15"), -15},
		{"text garbage", TextValue("abc"), 0},
		{"text empty", TextValue(""), 0},
		{"text overflow", TextValue("99999999999999999999"), math.MaxInt64},
		{"blob numeric", BlobValue([]byte("5")), 5},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exp, tt.v.Int64())
		})
	}
}

func TestValue_Float64(t *testing.T) {
	assert.InDelta(t, 2.5, TextValue("2.5xyz").Float64(), 1e-12)
	assert.InDelta(t, 10.0, IntegerValue(10).Float64(), 1e-12)
	assert.InDelta(t, 0.0, NullValue().Float64(), 1e-12)
	assert.InDelta(t, 0.5, TextValue(".5").Float64(), 1e-12)
	assert.InDelta(t, 0.0, TextValue(".").Float64(), 1e-12)
}

func TestFromNative(t *testing.T) {
	tbl := []struct {
		in   any
		kind Kind
		exp  any
	}{
		{nil, Null, nil},
		{int64(5), Integer, int64(5)},
		{7, Integer, int64(7)},
		{true, Integer, int64(1)},
		{false, Integer, int64(0)},
		{1.5, Float, 1.5},
		{"abc", Text, "abc"},
		{[]byte("xy"), Blob, []byte("xy")},
	}

	for _, tt := range tbl {
		v := FromNative(tt.in)
		assert.Equal(t, tt.kind, v.Kind(), "%v", tt.in)
		assert.Equal(t, tt.exp, v.Native(), "%v", tt.in)
	}
}

func TestValue_Text(t *testing.T) {
	assert.Equal(t, "", NullValue().Text())
	assert.Equal(t, "-3", IntegerValue(-3).Text())
	assert.Equal(t, "1.25", FloatValue(1.25).Text())
	assert.Equal(t, "blob", BlobValue([]byte("blob")).Text())
	assert.Equal(t, "NULL", NullValue().String())
	assert.Equal(t, "integer(3)", IntegerValue(3).String())
	assert.Equal(t, "text", Text.String())
}

type fakeResult struct {
	kind     Kind
	i        int64
	f        float64
	buf      []byte
	releases []func()
}

func (f *fakeResult) ResultNull()            { f.kind = Null }
func (f *fakeResult) ResultInt64(v int64)    { f.kind, f.i = Integer, v }
func (f *fakeResult) ResultDouble(v float64) { f.kind, f.f = Float, v }
func (f *fakeResult) ResultText(buf []byte, release func()) {
	f.kind, f.buf = Text, buf
	f.releases = append(f.releases, release)
}

func (f *fakeResult) ResultBlob(buf []byte, release func()) {
	f.kind, f.buf = Blob, buf
	f.releases = append(f.releases, release)
}

func TestPush_Scalars(t *testing.T) {
	reg := NewRegistry()
	res := &fakeResult{}

	Push(reg, IntegerValue(9), res)
	assert.Equal(t, Integer, res.kind)
	assert.Equal(t, int64(9), res.i)

	Push(reg, FloatValue(0.5), res)
	assert.Equal(t, Float, res.kind)
	assert.InDelta(t, 0.5, res.f, 1e-12)

	Push(reg, NullValue(), res)
	assert.Equal(t, Null, res.kind)
	assert.Equal(t, 0, reg.Len(), "scalars never enter the registry")
}

func TestPush_TextAndBlobLifetime(t *testing.T) {
	var observed []int
	reg := NewRegistry(WithObserver(func(n int) { observed = append(observed, n) }))
	res := &fakeResult{}

	Push(reg, TextValue("hello"), res)
	assert.Equal(t, Text, res.kind)
	assert.Equal(t, "hello", string(res.buf))
	assert.Equal(t, 1, reg.Len())

	src := []byte{1, 2, 3}
	Push(reg, BlobValue(src), res)
	assert.Equal(t, Blob, res.kind)
	assert.Equal(t, []byte{1, 2, 3}, res.buf)
	src[0] = 42
	assert.Equal(t, byte(1), res.buf[0], "blob buffer is a copy")
	assert.Equal(t, 2, reg.Len())

	require.Len(t, res.releases, 2)
	res.releases[0]()
	assert.Equal(t, 1, reg.Len())
	res.releases[1]()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []int{1, 2, 1, 0}, observed)
}

func TestRegistry_ReleaseOnce(t *testing.T) {
	reg := NewRegistry()
	tok := reg.Hand([]byte("abc"))
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Release(tok))
	assert.False(t, reg.Release(tok), "second release is a no-op")
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok := reg.Hand([]byte("x"))
				reg.Release(tok)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}
