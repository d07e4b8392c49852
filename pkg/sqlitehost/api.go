package sqlitehost

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/umputun/sqlextras/pkg/metrics"
	"github.com/umputun/sqlextras/pkg/value"
	"github.com/umputun/sqlextras/pkg/vtable"
)

// API returns the process-wide host API backed by the embedded engine.
// The in-flight registry reports to the extras_value_inflight gauge.
func API() vtable.API {
	return vtable.InitAPI(&engineAPI{values: value.NewRegistry(value.WithObserver(metrics.SetInflight))})
}

type engineAPI struct {
	values  *value.Registry
	once    sync.Once
	version int
}

// LibVersionNumber asks the engine for its version once, in the X*1000000+Y*1000+Z form.
// Returns 0 if the version can't be determined.
func (e *engineAPI) LibVersionNumber() int {
	e.once.Do(func() {
		v, err := engineVersion()
		if err != nil {
			log.Printf("[WARN] can't get sqlite version, %v", err)
			return
		}
		e.version = v
	})
	return e.version
}

func (e *engineAPI) Registry() *value.Registry { return e.values }

// engineVersion opens its own engine connection, so it holds the engine lock
// to keep registered aliases for the connections of hosts.
func engineVersion() (int, error) {
	engine.Lock()
	defer engine.Unlock()

	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return 0, fmt.Errorf("can't open memory db: %w", err)
	}
	defer db.Close()

	var ver string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&ver); err != nil {
		return 0, fmt.Errorf("can't query version: %w", err)
	}
	return ParseVersion(ver)
}

// ParseVersion converts "3.45.1" to 3045001.
func ParseVersion(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unexpected version %q", s)
	}
	res := 0
	for i, mul := range []int{1000000, 1000, 1} {
		if i >= len(parts) {
			break
		}
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 || n > 999 {
			return 0, fmt.Errorf("unexpected version %q", s)
		}
		res += n * mul
	}
	return res, nil
}
