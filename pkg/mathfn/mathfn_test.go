package mathfn

import (
	"database/sql"
	"database/sql/driver"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnary(t *testing.T) {
	sqrt := Unary(math.Sqrt)
	tbl := []struct {
		name string
		in   driver.Value
		exp  driver.Value
	}{
		{"int", int64(16), 4.0},
		{"float", 2.25, 1.5},
		{"text", "9", 3.0},
		{"null", nil, nil},
		{"nan is null", int64(-1), nil},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			res, err := sqrt(nil, []driver.Value{tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.exp, res)
		})
	}

	_, err := sqrt(nil, nil)
	assert.EqualError(t, err, "expected 1 argument, got 0")
}

func TestFuncs(t *testing.T) {
	assert.Len(t, Funcs, 23)
	assert.InDelta(t, 180.0, Funcs["to_degrees"](math.Pi), 1e-9)
	assert.InDelta(t, math.Pi/2, Funcs["to_radians"](90), 1e-9)
	assert.InDelta(t, 3.0, Funcs["cbrt"](27), 1e-9)
	assert.InDelta(t, 8.0, Funcs["exp2"](3), 1e-9)

	names := Names()
	assert.Equal(t, "acos", names[0])
	assert.Equal(t, "to_radians", names[len(names)-1])
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register(), "second call is a no-op")

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	tbl := []struct {
		q   string
		exp float64
	}{
		{"SELECT sqrt(16)", 4},
		{"SELECT to_degrees(0.5 * 3.141592653589793)", 90},
		{"SELECT ln_1p(0)", 0},
		{"SELECT exp_m1(0)", 0},
		{"SELECT log2(1024)", 10},
		{"SELECT cos(0) + sin(0)", 1},
		{"SELECT cbrt('-8')", -2},
	}
	for _, tt := range tbl {
		var res float64
		require.NoError(t, db.QueryRow(tt.q).Scan(&res), tt.q)
		assert.InDelta(t, tt.exp, res, 1e-9, tt.q)
	}

	var res sql.NullFloat64
	require.NoError(t, db.QueryRow("SELECT ln(NULL)").Scan(&res))
	assert.False(t, res.Valid)
	require.NoError(t, db.QueryRow("SELECT acos(2)").Scan(&res))
	assert.False(t, res.Valid, "domain error gives NULL")
}
