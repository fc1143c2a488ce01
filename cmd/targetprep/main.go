// Command targetprep prepares target-disease reference tables: it reads the
// configured gene, tissue, disease and score files, merges them and writes CSV
// outputs to the configured blob store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"targetprep/internal/blob"
	"targetprep/internal/config"
	"targetprep/internal/journal"
	"targetprep/internal/logging"
	"targetprep/internal/observability"
	"targetprep/internal/pipeline"
	"targetprep/internal/source"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	exitFunc = os.Exit
	getenv   = os.Getenv
)

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type options struct {
	configPath  string
	routines    string
	all         bool
	list        bool
	history     int
	metricsFile string
	logLevel    string
	logFormat   string
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("targetprep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config (defaults to $TARGETPREP_CONFIG)")
	fs.StringVar(&opts.routines, "routines", "", "comma separated routines to run (default from config)")
	fs.BoolVar(&opts.all, "all", false, "run every routine")
	fs.BoolVar(&opts.list, "list", false, "list routines with their datasets and exit")
	fs.IntVar(&opts.history, "history", 0, "print the last n journal entries and exit")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus text metrics to this file after the run")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format (console, json)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		printErr(stderr, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " ")))
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath, getenv)
	if err != nil {
		printErr(stderr, err)
		return exitUsage
	}
	applyFlags(&cfg, opts)

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		printErr(stderr, err)
		return exitUsage
	}
	delims, err := cfg.DelimiterRunes()
	if err != nil {
		printErr(stderr, err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := blob.Open(ctx, cfg.BlobOptions())
	if err != nil {
		printErr(stderr, fmt.Errorf("open blob store: %w", err))
		return exitFailure
	}
	loader := source.NewLoader(store, &http.Client{Timeout: cfg.HTTPTimeout}, delims)

	if opts.list {
		printRoutines(ctx, stdout, cfg, loader)
		return exitOK
	}

	j, err := journal.Open(ctx, cfg.JournalOptions())
	if err != nil {
		printErr(stderr, fmt.Errorf("open journal: %w", err))
		return exitFailure
	}
	defer func() { _ = j.Close() }()

	if opts.history > 0 {
		if err := printHistory(ctx, stdout, j, opts.history); err != nil {
			printErr(stderr, err)
			return exitFailure
		}
		return exitOK
	}

	metrics := observability.NewPrometheusRecorder()
	runner := pipeline.NewRunner(store, loader, cfg.Datasets,
		pipeline.WithLogger(logger),
		pipeline.WithMetricsRecorder(metrics),
		pipeline.WithJournal(j),
		pipeline.WithTissueSource(cfg.TissueSource),
	)
	if _, err := runner.Plan(cfg.Routines); err != nil {
		printErr(stderr, err)
		return exitUsage
	}
	report, runErr := runner.Run(ctx, cfg.Routines)
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("metrics not written", "path", cfg.MetricsFile, "error", err)
		}
	}
	printReport(stdout, report)
	if runErr != nil {
		printErr(stderr, runErr)
		return exitFailure
	}
	return exitOK
}

// applyFlags layers explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config, opts options) {
	switch {
	case opts.all:
		cfg.Routines = pipeline.RoutineNames()
	case opts.routines != "":
		cfg.Routines = config.SplitList(opts.routines)
	}
	if opts.metricsFile != "" {
		cfg.MetricsFile = opts.metricsFile
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
}

type checker interface {
	Check(ctx context.Context, location string) error
}

func printRoutines(ctx context.Context, w io.Writer, cfg config.Config, c checker) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	selected := make(map[string]bool, len(cfg.Routines))
	for _, r := range cfg.Routines {
		selected[r] = true
	}
	for _, rt := range pipeline.Routines() {
		mark := ""
		if selected[rt.Name] {
			mark = " (selected)"
		}
		_, _ = fmt.Fprintf(tw, "%s%s\n", rt.Name, mark)
		for _, key := range rt.Inputs {
			loc := cfg.Datasets[key]
			state := "ok"
			switch {
			case loc == "":
				state = "not configured"
			case c.Check(ctx, loc) != nil:
				state = "missing"
			}
			_, _ = fmt.Fprintf(tw, "  in\t%s\t%s\t%s\n", key, loc, state)
		}
		for _, key := range rt.Outputs {
			_, _ = fmt.Fprintf(tw, "  out\t%s\t%s\t\n", key, cfg.Datasets[key])
		}
	}
	_ = tw.Flush()
}

func printHistory(ctx context.Context, w io.Writer, j journal.Store, n int) error {
	entries, err := j.Recent(ctx, n)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FINISHED\tRUN\tROUTINE\tSTATUS\tROWS\tDEGRADED\tERROR")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.FinishedAt.UTC().Format(time.RFC3339), e.RunID, e.Routine, e.Status, e.RowsWritten, e.Degraded, e.Error)
	}
	return tw.Flush()
}

func printReport(w io.Writer, report pipeline.Report) {
	if len(report.Routines) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "run %s\n", report.RunID)
	for _, r := range report.Routines {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d rows\t%s\n", r.Routine, r.Status, r.RowsWritten, strings.Join(r.Outputs, ","))
	}
	_ = tw.Flush()
}

func printErr(w io.Writer, err error) {
	_, _ = color.New(color.FgRed).Fprintf(w, "error: %v\n", err)
}
