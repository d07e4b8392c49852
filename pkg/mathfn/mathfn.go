// Package mathfn registers unary math scalar functions with the embedded SQLite engine.
// Registered functions are visible on connections opened after Register.
package mathfn

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"modernc.org/sqlite"

	"github.com/umputun/sqlextras/pkg/value"
)

// Funcs maps SQL function names to their implementation.
var Funcs = map[string]func(float64) float64{
	"sin":        math.Sin,
	"asin":       math.Asin,
	"sinh":       math.Sinh,
	"asinh":      math.Asinh,
	"cos":        math.Cos,
	"acos":       math.Acos,
	"cosh":       math.Cosh,
	"acosh":      math.Acosh,
	"tan":        math.Tan,
	"atan":       math.Atan,
	"tanh":       math.Tanh,
	"atanh":      math.Atanh,
	"ln":         math.Log,
	"ln_1p":      math.Log1p,
	"log2":       math.Log2,
	"log10":      math.Log10,
	"exp":        math.Exp,
	"exp2":       math.Exp2,
	"exp_m1":     math.Expm1,
	"to_degrees": func(x float64) float64 { return x * 180 / math.Pi },
	"to_radians": func(x float64) float64 { return x * math.Pi / 180 },
	"sqrt":       math.Sqrt,
	"cbrt":       math.Cbrt,
}

var registration struct {
	once sync.Once
	err  error
}

// Register adds all Funcs to the engine. Only the first call registers,
// later calls return the same result.
func Register() error {
	registration.once.Do(func() {
		var errs *multierror.Error
		for _, name := range Names() {
			if err := sqlite.RegisterDeterministicScalarFunction(name, 1, Unary(Funcs[name])); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("can't register %s: %w", name, err))
			}
		}
		registration.err = errs.ErrorOrNil()
	})
	return registration.err
}

// Names returns sorted function names.
func Names() []string {
	res := make([]string, 0, len(Funcs))
	for name := range Funcs {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Unary adapts fn to the engine's scalar function signature.
// NULL gives NULL, other arguments are converted to float, a NaN result is NULL.
func Unary(fn func(float64) float64) func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v := value.FromNative(args[0])
		if v.IsNull() {
			return nil, nil
		}
		res := fn(v.Float64())
		if math.IsNaN(res) {
			return nil, nil
		}
		return res, nil
	}
}
