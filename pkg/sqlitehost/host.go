// Package sqlitehost plugs vtable descriptors into the embedded pure Go SQLite engine.
//
// Engine modules are registered process-wide, but the engine binds a module name to the first
// connection opened after its registration only. So each new pooled connection gets its own
// alias of every module it needs, registered right before the connection is opened, and a temp
// instance of every table is installed over the alias. After that the table-valued function
// syntax works on any connection of the pool:
//
//	SELECT value FROM range(1, 10, 2)
//
// Aliases are never unregistered, each physical connection costs one engine module entry.
package sqlitehost

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	_ "modernc.org/sqlite" // registers the driver and the vtab engine hook
	"modernc.org/sqlite/vtab"

	"github.com/umputun/sqlextras/pkg/vtable"
)

const driverName = "sqlite"

// MinVersion is the oldest engine version with table-valued function support.
const MinVersion = 3008012

// ErrVersion is returned by Register when the engine is too old.
var ErrVersion = errors.New("sqlite version too old")

// engine keeps modules registered across hosts. The lock also serializes opening of engine
// connections, aliases registered under it belong to the next connection opened.
var engine = struct {
	sync.Mutex
	modules map[string]*module
	seq     int
}{modules: map[string]*module{}}

// Host registers descriptors with the engine and opens databases exposing them.
type Host struct {
	api    vtable.API
	labels map[string]func(idxNum int32) string

	mu     sync.Mutex
	tables map[string]string // table name -> module name
}

// Option configures Host.
type Option func(h *Host)

// WithPlanLabel sets the func naming plans of module in the filters metric.
func WithPlanLabel(module string, fn func(idxNum int32) string) Option {
	return func(h *Host) { h.labels[module] = fn }
}

// New makes a host for the given API.
func New(api vtable.API, opts ...Option) *Host {
	res := &Host{api: api, labels: map[string]func(int32) string{}, tables: map[string]string{}}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Register binds desc to the engine under desc.Name and makes every database opened
// by this host expose it under each of tableNames, or under desc.Name if none given.
// Registering the same descriptor again is allowed, a different descriptor with a taken name is not.
// Databases opened before Register don't see the module.
func (h *Host) Register(desc *vtable.Descriptor, tableNames ...string) error {
	if v := h.api.LibVersionNumber(); v < MinVersion {
		return fmt.Errorf("can't register %s: %w, have %d, need %d", desc.Name, ErrVersion, v, MinVersion)
	}

	engine.Lock()
	prev, ok := engine.modules[desc.Name]
	switch {
	case ok && prev.desc != desc:
		engine.Unlock()
		return fmt.Errorf("can't register %s: module name taken by another descriptor", desc.Name)
	case !ok:
		label := h.labels[desc.Name]
		if label == nil {
			label = func(n int32) string { return strconv.Itoa(int(n)) }
		}
		engine.modules[desc.Name] = &module{desc: desc, plan: label}
		log.Printf("[DEBUG] registered module %s", desc.Name)
	}
	engine.Unlock()

	if len(tableNames) == 0 {
		tableNames = []string{desc.Name}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range tableNames {
		h.tables[name] = desc.Name
	}
	return nil
}

// Tables returns table name to module name pairs exposed by databases of this host.
func (h *Host) Tables() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	res := make(map[string]string, len(h.tables))
	for k, v := range h.tables {
		res[k] = v
	}
	return res
}

// DB is a database with the host's tables installed on every connection.
type DB struct {
	*sql.DB
	DSN string
}

// DefaultDSN makes a DSN of a private shared-cache memory database,
// so all pooled connections see the same data.
func DefaultDSN() string {
	return fmt.Sprintf("file:extras-%s?mode=memory&cache=shared", uuid.NewString())
}

// Open makes a database for dsn, empty dsn means DefaultDSN.
// Connections are made lazily, the first failing table install shows up on first use.
func (h *Host) Open(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = DefaultDSN()
	}
	drv, err := engineDriver()
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	tables := make([]tableDef, 0, len(h.tables))
	for name, mod := range h.tables {
		tables = append(tables, tableDef{name: name, module: mod})
	}
	h.mu.Unlock()
	sort.Slice(tables, func(i, j int) bool { return tables[i].name < tables[j].name })

	db := sql.OpenDB(&connector{dsn: dsn, drv: drv, tables: tables})
	log.Printf("[DEBUG] open %s with %d table(s)", dsn, len(tables))
	return &DB{DB: db, DSN: dsn}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	var errs *multierror.Error
	if err := d.DB.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't close %s: %w", d.DSN, err))
	}
	return errs.ErrorOrNil()
}

// tableDef is a table name and the module it is an instance of.
type tableDef struct {
	name   string
	module string
}

// connector opens engine connections and installs temp tables on each.
type connector struct {
	dsn    string
	drv    driver.Driver
	tables []tableDef
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, aliases, err := c.open()
	if err != nil {
		return nil, err
	}
	ex, ok := conn.(driver.ExecerContext)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("can't install tables, %T has no ExecContext", conn)
	}
	for _, t := range c.tables {
		stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS temp.%s USING %s", quoteIdent(t.name), quoteIdent(aliases[t.module]))
		if _, err := ex.ExecContext(ctx, stmt, nil); err != nil {
			var errs *multierror.Error
			errs = multierror.Append(errs, fmt.Errorf("can't exec %q: %w", stmt, err))
			if cerr := conn.Close(); cerr != nil {
				errs = multierror.Append(errs, cerr)
			}
			return nil, errs.ErrorOrNil()
		}
	}
	return conn, nil
}

// open registers a fresh alias of every module used by the tables and opens the connection,
// both under the engine lock so the engine binds the aliases to this connection.
// Returns module name to alias pairs.
func (c *connector) open() (driver.Conn, map[string]string, error) {
	engine.Lock()
	defer engine.Unlock()

	aliases := map[string]string{}
	for _, t := range c.tables {
		if _, ok := aliases[t.module]; ok {
			continue
		}
		mod, ok := engine.modules[t.module]
		if !ok {
			return nil, nil, fmt.Errorf("can't install %s: module %s isn't registered", t.name, t.module)
		}
		engine.seq++
		alias := fmt.Sprintf("%s_%d", t.module, engine.seq)
		if err := vtab.RegisterModule(nil, alias, mod); err != nil {
			return nil, nil, fmt.Errorf("can't register %s as %s: %w", t.module, alias, err)
		}
		aliases[t.module] = alias
	}

	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("can't open %s: %w", c.dsn, err)
	}
	log.Printf("[DEBUG] connection to %s, aliases %v", c.dsn, aliases)
	return conn, aliases, nil
}

func (c *connector) Driver() driver.Driver { return c.drv }

// engineDriver returns the registered driver instance, it carries the registered modules.
func engineDriver() (driver.Driver, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("can't get %s driver: %w", driverName, err)
	}
	drv := db.Driver()
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("can't close driver lookup db: %w", err)
	}
	return drv, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
