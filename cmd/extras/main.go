package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/umputun/sqlextras/pkg/config"
	"github.com/umputun/sqlextras/pkg/mathfn"
	"github.com/umputun/sqlextras/pkg/query"
	"github.com/umputun/sqlextras/pkg/series"
	"github.com/umputun/sqlextras/pkg/server"
	"github.com/umputun/sqlextras/pkg/sqlitehost"
	"github.com/umputun/sqlextras/pkg/vtable"
)

type options struct {
	Config  string `short:"c" long:"config" env:"EXTRAS_CONFIG" default:"extras.yml" description:"config file, yaml or toml"`
	DSN     string `long:"dsn" env:"EXTRAS_DSN" description:"database dsn, private memory database if empty"`
	NoColor bool   `long:"no-color" env:"EXTRAS_NO_COLOR" description:"disable colorized output"`
	Dbg     bool   `long:"dbg" env:"EXTRAS_DEBUG" description:"debug mode"`

	QueryCmd struct {
		Concurrent int `long:"concurrent" env:"EXTRAS_CONCURRENT" description:"statements to run in parallel, config value if not set"`

		PositionalArgs struct {
			SQL []string `positional-arg-name:"sql" required:"1" description:"statements to run"`
		} `positional-args:"yes"`
	} `command:"query" description:"run sql statements"`

	PlanCmd struct {
		Start bool   `long:"start" description:"start is constrained"`
		Stop  bool   `long:"stop" description:"stop is constrained"`
		Step  bool   `long:"step" description:"step is constrained"`
		Order string `long:"order" choice:"asc" choice:"desc" description:"order by value"`
	} `command:"plan" description:"show the range table plan for the given constraints"`

	ServeCmd struct {
		Listen string `long:"listen" env:"EXTRAS_LISTEN" description:"listen address, config value if empty"`
	} `command:"serve" description:"run http api"`
}

var revision = "latest"

var exitFunc = os.Exit

// builtins are descriptors of the modules shipped with extras, made once per process
// as engine modules are process-wide.
var builtins = sync.OnceValue(func() map[string]*vtable.Descriptor {
	api := sqlitehost.API()
	return map[string]*vtable.Descriptor{series.ModuleName: series.Descriptor(api)}
})

func main() {
	fmt.Printf("sqlextras %s\n", revision)

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		exitFunc(1) // can be redefined in tests
	}
	setupLog(opts.Dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, p, opts, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		exitFunc(1)
	}
}

func run(ctx context.Context, p *flags.Parser, opts options, out io.Writer) error {
	if p.Active != nil && p.Command.Find("plan") == p.Active {
		return runPlan(opts, out)
	}

	conf, err := config.Load(opts.Config, knownModules())
	if err != nil {
		return fmt.Errorf("can't load config: %w", err)
	}
	if opts.DSN != "" {
		conf.DSN = opts.DSN
	}

	db, err := openDB(conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[WARN] can't close database, %v", err)
		}
	}()

	// run sql statements
	if p.Active != nil && p.Command.Find("query") == p.Active {
		concurrency := conf.Concurrency
		if opts.QueryCmd.Concurrent > 0 {
			concurrency = opts.QueryCmd.Concurrent
		}
		log.Printf("[INFO] query command, %d statement(s), concurrency %d", len(opts.QueryCmd.PositionalArgs.SQL), concurrency)
		runner := query.Runner{DB: db, Concurrency: concurrency}
		res, runErr := runner.Run(ctx, opts.QueryCmd.PositionalArgs.SQL)
		if err := query.NewWriter(out, monochrome(opts)).WriteAll(res); err != nil {
			return err
		}
		if runErr != nil {
			return fmt.Errorf("query failed: %w", runErr)
		}
		return nil
	}

	// run http api
	if p.Active != nil && p.Command.Find("serve") == p.Active {
		srv := server.Server{
			Listen:     conf.Server.Listen,
			Timeout:    conf.Server.TimeoutDuration(),
			DB:         db,
			RangeTable: rangeTable(conf),
			Version:    revision,
		}
		if opts.ServeCmd.Listen != "" {
			srv.Listen = opts.ServeCmd.Listen
		}
		log.Printf("[INFO] serve command, listen=%s, range table %q", srv.Listen, srv.RangeTable)
		return srv.Run(ctx)
	}

	return fmt.Errorf("no command given")
}

// openDB registers configured tables and functions, then opens the database.
func openDB(conf *config.Config) (*sqlitehost.DB, error) {
	host := sqlitehost.New(sqlitehost.API(),
		sqlitehost.WithPlanLabel(series.ModuleName, func(n int32) string { return series.DecodePlan(n).String() }))

	for _, t := range conf.Tables {
		desc, ok := builtins()[t.Module]
		if !ok {
			return nil, fmt.Errorf("unknown module %q", t.Module)
		}
		if err := host.Register(desc, t.Names...); err != nil {
			return nil, fmt.Errorf("can't register tables %v: %w", t.Names, err)
		}
	}
	if conf.Functions {
		if err := mathfn.Register(); err != nil {
			return nil, fmt.Errorf("can't register functions: %w", err)
		}
	}

	db, err := host.Open(conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}
	return db, nil
}

// runPlan runs the range planner for the requested constraints, no database involved.
func runPlan(opts options, out io.Writer) error {
	cols := []struct {
		on   bool
		col  int
		name string
	}{
		{opts.PlanCmd.Start, series.ColStart, "start"},
		{opts.PlanCmd.Stop, series.ColStop, "stop"},
		{opts.PlanCmd.Step, series.ColStep, "step"},
	}

	var cs []vtable.Constraint
	var names []string
	for _, c := range cols {
		if c.on {
			cs = append(cs, vtable.Constraint{Column: c.col, Op: vtable.OpEQ, Usable: true})
			names = append(names, c.name)
		}
	}
	var obs []vtable.OrderBy
	if opts.PlanCmd.Order != "" {
		obs = []vtable.OrderBy{{Column: series.ColValue, Desc: opts.PlanCmd.Order == "desc"}}
	}

	info := vtable.NewIndexInfo(cs, obs)
	if err := series.NewTable().BestIndex(info); err != nil {
		return fmt.Errorf("can't plan: %w", err)
	}
	if err := info.Validate(); err != nil {
		return fmt.Errorf("bad plan: %w", err)
	}

	fmt.Fprintf(out, "plan:     %d (%s)\n", info.IdxNum, series.DecodePlan(info.IdxNum))
	fmt.Fprintf(out, "cost:     %v\n", info.EstimatedCost)
	fmt.Fprintf(out, "rows:     %d\n", info.EstimatedRows)
	fmt.Fprintf(out, "ordered:  %v\n", info.OrderByConsumed)
	fmt.Fprintf(out, "args:     %d\n", info.Args())
	for i, u := range info.Usage {
		if u.ArgvIndex > 0 {
			fmt.Fprintf(out, "slot %d:   %s, omit=%v\n", u.ArgvIndex, names[i], u.Omit)
		}
	}
	return nil
}

func knownModules() []string {
	res := make([]string, 0, len(builtins()))
	for name := range builtins() {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// rangeTable returns the first name the range module is exposed under.
func rangeTable(conf *config.Config) string {
	for _, t := range conf.Tables {
		if t.Module == series.ModuleName && len(t.Names) > 0 {
			return t.Names[0]
		}
	}
	return ""
}

func monochrome(opts options) bool {
	return opts.NoColor || !term.IsTerminal(int(os.Stdout.Fd())) // nolint
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
