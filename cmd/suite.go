package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"

	"rehearse/internal/config"
	"rehearse/internal/endpoint"
	"rehearse/internal/queue"
	"rehearse/internal/runner"
	"rehearse/internal/scenario"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
	pkgstrings "rehearse/pkg/strings"
)

var errNoScenarios = errors.New("no scenario paths given: pass files or directories, or list them under 'scenarios' in the config file")

// loadConfig reads and validates the configuration at path.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newFactory builds the shared registries for a run: timing defaults, global
// variables and namespaces from cfg, pre-declared queues and every configured
// endpoint bound by name.
func newFactory(cfg config.Config, clock clockwork.Clock) (*testcontext.Factory, error) {
	d := cfg.Defaults
	f := testcontext.NewFactory(
		testcontext.WithClock(clock),
		testcontext.WithDefaults(testcontext.Defaults{
			ReceiveTimeout:  d.ReceiveTimeout,
			PollingInterval: d.PollingInterval,
			WaitTimeout:     d.WaitTimeout,
			WaitInterval:    d.WaitInterval,
		}),
		testcontext.WithVariables(cfg.Variables),
		testcontext.WithNamespaces(cfg.Namespaces),
	)

	for _, qc := range cfg.Queues {
		interval := qc.PollingInterval
		if interval == 0 {
			interval = d.PollingInterval
		}
		f.Queues.Add(queue.New(qc.Name, queue.WithClock(clock), queue.WithPollingInterval(interval)))
		logging.Debug("Suite", "Declared queue %s (polling every %s)", qc.Name, interval)
	}

	registry, err := endpoint.NewRegistryFromConfig(cfg.Endpoints, clock)
	if err != nil {
		return nil, err
	}
	registry.BindTo(f.References)
	logging.Debug("Suite", "Bound endpoints: %v", registry.Names())

	return f, nil
}

// scenarioPaths returns args when given, otherwise the scenarios listed in
// the config file resolved against its directory.
func scenarioPaths(args []string, cfg config.Config, configPath string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(cfg.Scenarios) == 0 {
		return nil, errNoScenarios
	}
	if configPath == "" {
		configPath = config.DefaultConfigFile
	}
	base := filepath.Dir(configPath)
	paths := make([]string, 0, len(cfg.Scenarios))
	for _, p := range cfg.Scenarios {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// loadCases loads every case under paths.
func loadCases(paths []string, debug bool, logger runner.TestLogger) ([]runner.TestCase, error) {
	return scenario.NewLoader(debug, logger).Load(paths...)
}

// initLogging routes the structured log to w. Debug lowers the level so
// subsystem traces become visible.
func initLogging(debug bool, w io.Writer) {
	level := logging.LevelWarn
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, w)
}

// maxListedWarnings bounds the warnings printed after a text run.
const maxListedWarnings = 10

// warningLog collects warnings and errors logged while a suite runs, such
// as failures of detached async branches and forked timers.
type warningLog struct {
	mu      sync.Mutex
	entries []logging.LogEntry
}

// collectWarnings registers a log sink feeding a new warningLog. The
// returned function removes the sink.
func collectWarnings() (*warningLog, func()) {
	w := &warningLog{}
	remove := logging.AddSink(func(e logging.LogEntry) {
		if e.Level < logging.LevelWarn {
			return
		}
		w.mu.Lock()
		w.entries = append(w.entries, e)
		w.mu.Unlock()
	})
	return w, remove
}

// Len returns the number of collected entries.
func (w *warningLog) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Print lists up to limit collected entries.
func (w *warningLog) Print(out io.Writer, limit int) {
	w.mu.Lock()
	entries := append([]logging.LogEntry(nil), w.entries...)
	w.mu.Unlock()
	if len(entries) == 0 {
		return
	}

	fmt.Fprintf(out, "\n⚠️  %d warnings logged during the run:\n", len(entries))
	for i, e := range entries {
		if i == limit {
			fmt.Fprintf(out, "   … %d more (use --debug for the full log)\n", len(entries)-limit)
			break
		}
		fmt.Fprintf(out, "   • [%s] %s\n", e.Subsystem, pkgstrings.Summarize(e.Message, 120))
	}
}
