package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/probitas/probitas/internal/cliconfig"
	"github.com/probitas/probitas/pkg/aggregator"
	"github.com/probitas/probitas/pkg/definitions"
	"github.com/probitas/probitas/pkg/pool"
	"github.com/probitas/probitas/pkg/reporter"
	"github.com/probitas/probitas/pkg/runnerworker"
	"github.com/probitas/probitas/pkg/selector"
	"github.com/probitas/probitas/pkg/telemetry"
)

var (
	runSelectors    []string
	runWorkers      int
	runMaxFailures  int
	runTimeoutMS    int64
	runWorkerBinary string
	runLogLevel     string
	runNoColor      bool
	runConfigPath   string
	runOtelEndpoint string
	runReporter     string
)

var rootCmd = &cobra.Command{
	Use:   "probitas <scenario-file>...",
	Short: "Run integration test Scenarios across isolated worker subprocesses",
	Long: `probitas distributes the Scenarios defined in the given scenario files across
isolated probitas-worker subprocesses, applies an optional -s selector filter,
and reports a pass/fail/skip summary.

Finding which files to pass here (glob expansion, a build step, whatever a
project's test layout calls for) happens outside this binary; probitas only
consumes already-identified scenario file paths.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(context.Background(), args)
	},
}

func init() {
	rootCmd.Flags().StringArrayVarP(&runSelectors, "select", "s", nil, "selector term, AND-combined within one -s and OR-combined across repeats (e.g. tag:smoke,!tag:slow)")
	rootCmd.Flags().IntVar(&runWorkers, "workers", 0, "maximum concurrent worker subprocesses (0 = number of CPUs)")
	rootCmd.Flags().IntVar(&runMaxFailures, "max-failures", 0, "cancel the run after this many scenario failures (0 = unlimited)")
	rootCmd.Flags().Int64Var(&runTimeoutMS, "timeout", 0, "per-scenario timeout in milliseconds (0 = the config file's defaultTimeoutMs, 30000 when unset)")
	rootCmd.Flags().StringVar(&runWorkerBinary, "worker-bin", "probitas-worker", "path to the probitas-worker binary")
	rootCmd.Flags().StringVar(&runLogLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&runNoColor, "no-color", false, "disable colored console output")
	rootCmd.Flags().StringVar(&runConfigPath, "config", cliconfig.DefaultFileName, "path to the .probitas.jsonc config file")
	rootCmd.Flags().StringVar(&runOtelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for trace export (disabled when empty)")
	rootCmd.Flags().StringVar(&runReporter, "reporter", "console", "reporter format to render to stdout")
}

// scenarioRef pairs an already-loaded Scenario with the (filePath,
// scenarioIndex) identity a worker needs to reload and run it in
// isolation. This process loads the same registrations a
// probitas-worker binary built from the same scenario files would, but
// only to read Name/Tags for selection — it never runs a Step.
type scenarioRef struct {
	filePath string
	index    int
	scenario *definitions.Scenario
}

func runRun(ctx context.Context, files []string) error {
	if runReporter != "console" {
		return fmt.Errorf("unsupported reporter %q (only \"console\" is built in)", runReporter)
	}

	cfg, err := cliconfig.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	refs, err := discover(files)
	if err != nil {
		return err
	}

	terms, err := selector.ParseAll(runSelectors)
	if err != nil {
		return fmt.Errorf("parsing selector: %w", err)
	}
	selected := applySelector(refs, terms)

	logLevel := runLogLevel
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("parsing log level %q: %w", logLevel, err)
	}
	logger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           charmLevel(level),
	}))

	_, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    runOtelEndpoint,
		ServiceName: "probitas",
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer shutdownTelemetry(ctx)

	workers := runWorkers
	if workers == 0 {
		workers = cfg.MaxWorkers
	}
	maxFailures := runMaxFailures
	if maxFailures == 0 {
		maxFailures = cfg.MaxFailures
	}
	timeoutMS := runTimeoutMS
	if timeoutMS == 0 {
		timeoutMS = int64(cfg.DefaultTimeout)
	}

	poolOpts := []pool.Option{pool.WithLogger(logger)}
	if workers > 0 {
		poolOpts = append(poolOpts, pool.WithMaxSize(workers))
	}
	if maxFailures > 0 {
		poolOpts = append(poolOpts, pool.WithMaxFailures(maxFailures))
	}
	spawner := pool.ProcessSpawner{Command: runWorkerBinary, Logger: logger}
	p := pool.New(spawner.Spawn, poolOpts...)
	defer p.Close(ctx)

	rep := reporter.Safe(reporter.NewConsoleReporter(os.Stdout, runNoColor || cfg.NoColor), logger)
	agg := aggregator.New()

	metas := make([]definitions.ScenarioMetadata, len(selected))
	for i, ref := range selected {
		metas[i] = ref.scenario.Metadata()
	}
	if err := rep.OnRunStart(ctx, metas); err != nil {
		logger.Warn("reporter OnRunStart failed", "error", err)
	}

	var wg sync.WaitGroup
	for _, ref := range selected {
		wg.Add(1)
		go func(ref scenarioRef) {
			defer wg.Done()
			runOne(ctx, p, rep, agg, ref, timeoutMS, logLevel)
		}(ref)
	}
	wg.Wait()

	summary := agg.Summary()
	if err := rep.OnRunEnd(ctx, summary); err != nil {
		logger.Warn("reporter OnRunEnd failed", "error", err)
	}

	if len(refs) > 0 && len(selected) == 0 {
		exitCode = aggregator.ExitNoScenarios
		return nil
	}
	exitCode = aggregator.ExitCode(summary)
	return nil
}

// charmLevel maps the slog.Level this binary parses its --log-level and
// config flags into onto the equivalent charmbracelet/log level, so the
// two logging vocabularies used across this codebase (plain slog for the
// worker, charmlog-backed slog here) agree on severity ordering.
func charmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}

// discover loads every Scenario registered under each file path, via
// the same Registry a probitas-worker binary built from these files
// would use — this process is linked against the same scenario
// packages purely to read their identity, never to execute a Step.
func discover(files []string) ([]scenarioRef, error) {
	var refs []scenarioRef
	for _, path := range files {
		scenarios, err := runnerworker.DefaultRegistry.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		for i, s := range scenarios {
			refs = append(refs, scenarioRef{filePath: path, index: i, scenario: s})
		}
	}
	return refs, nil
}

// applySelector filters refs down to those whose Scenario matches
// terms, reusing selector.Apply's name/tag matching.
func applySelector(refs []scenarioRef, terms []selector.Term) []scenarioRef {
	scenarios := make([]*definitions.Scenario, len(refs))
	for i, ref := range refs {
		scenarios[i] = ref.scenario
	}

	matched := selector.Apply(scenarios, terms)
	matchedSet := make(map[*definitions.Scenario]struct{}, len(matched))
	for _, s := range matched {
		matchedSet[s] = struct{}{}
	}

	out := make([]scenarioRef, 0, len(matched))
	for _, ref := range refs {
		if _, ok := matchedSet[ref.scenario]; ok {
			out = append(out, ref)
		}
	}
	return out
}

func runOne(ctx context.Context, p *pool.Pool, rep reporter.Reporter, agg *aggregator.Aggregator, ref scenarioRef, timeoutMS int64, logLevel string) {
	meta := ref.scenario.Metadata()

	task := pool.Task{
		FilePath:      ref.filePath,
		ScenarioIndex: ref.index,
		TimeoutMS:     timeoutMS,
		LogLevel:      logLevel,
	}

	cb := pool.Callbacks{
		OnScenarioStart: func(m definitions.ScenarioMetadata) { rep.OnScenarioStart(ctx, m) },
		OnStepStart:     func(m definitions.ScenarioMetadata, s definitions.StepMetadata) { rep.OnStepStart(ctx, m, s) },
		OnStepEnd: func(m definitions.ScenarioMetadata, s definitions.StepMetadata, result definitions.StepResult) {
			rep.OnStepEnd(ctx, m, s, result)
			if result.Status == definitions.StatusFailed {
				rep.OnStepError(ctx, m, s, result.Error, result.DurationMS)
			}
		},
	}

	result, err := p.Execute(ctx, task, cb)
	if errors.Is(err, pool.ErrMaxFailuresReached) {
		// Discarded by the max_failures cancellation: never recorded.
		return
	}
	if err != nil {
		result = definitions.ScenarioResult{
			Metadata: meta,
			Status:   definitions.StatusFailed,
			Error:    definitions.NewErrorObject(err),
		}
	}

	agg.Record(result)
	rep.OnScenarioEnd(ctx, result.Metadata, result)
}
