package vtable

import (
	"sync"

	"github.com/umputun/sqlextras/pkg/value"
)

// API is the host services table, one per process.
type API interface {
	LibVersionNumber() int
	Registry() *value.Registry
}

var apiOnce struct {
	sync.Once
	api API
}

// InitAPI records the process-wide host API. Only the first call wins,
// every call returns the recorded instance.
func InitAPI(api API) API {
	apiOnce.Do(func() { apiOnce.api = api })
	return apiOnce.api
}

// StaticAPI is an API with fixed values, used by hosts without a version query and in tests.
type StaticAPI struct {
	Version int
	Values  *value.Registry
}

// LibVersionNumber returns the configured version.
func (s StaticAPI) LibVersionNumber() int { return s.Version }

// Registry returns the configured in-flight registry.
func (s StaticAPI) Registry() *value.Registry { return s.Values }
