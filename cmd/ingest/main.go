// Command ingest runs one nutrition import and exits.
//
// Exit codes: 0 when the run completed, 1 when it failed after starting,
// 2 when it was rejected before reading (bad flags or config, duplicate run
// id, another run in progress).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/nutriload/internal/admin"
	"github.com/JonMunkholm/nutriload/internal/config"
	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/JonMunkholm/nutriload/internal/logging"
	"github.com/JonMunkholm/nutriload/internal/store"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

const (
	exitCompleted = 0
	exitFailed    = 1
	exitRejected  = 2
)

type options struct {
	source    string
	layout    string
	runID     string
	chunkSize int
	migrate   bool
	jsonOut   bool
	dryRun    bool
	reset     bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv config.Lookup) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVarP(&opts.source, "source", "s", "", "CSV file to import (default INGEST_SOURCE_PATH)")
	fs.StringVar(&opts.layout, "layout", "", "YAML column layout file (default SOURCE_LAYOUT_FILE)")
	fs.StringVar(&opts.runID, "run-id", "", "run id; a UUID is generated when empty")
	fs.IntVar(&opts.chunkSize, "chunk-size", 0, "records per transaction (default INGEST_CHUNK_SIZE)")
	fs.BoolVar(&opts.migrate, "migrate", false, "create tables before the run")
	fs.BoolVar(&opts.jsonOut, "json", false, "print the run result as JSON")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "import into memory instead of the database")
	fs.BoolVar(&opts.reset, "reset", false, "truncate foods and runs before importing")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: ingest [flags]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitCompleted
		}
		return exitRejected
	}

	if opts.dryRun {
		getenv = withPlaceholderURL(getenv)
	}
	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitRejected
	}
	slog.SetDefault(logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format))
	applyFlags(cfg, opts)

	layout, err := sourceLayout(cfg.Source)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitRejected
	}

	backend := store.Memory()
	if !opts.dryRun {
		if backend, err = store.Open(ctx, cfg.Database); err != nil {
			fmt.Fprintln(stderr, err)
			return exitRejected
		}
	}
	defer backend.Close()

	if opts.reset {
		if err := admin.ResetAll(ctx, backend.Resetters...); err != nil {
			fmt.Fprintln(stderr, err)
			return exitRejected
		}
	}

	pipeline := core.NewPipeline(core.PipelineConfig{
		Source:    core.FileSource{Path: cfg.Ingest.SourcePath, Layout: layout},
		Sink:      core.StoreSink{Store: backend.Foods},
		Runs:      backend.Runs,
		ChunkSize: cfg.Ingest.ChunkSize,
	})
	service := core.NewService(pipeline, backend.Foods, core.ServiceConfig{
		Timeout:     cfg.Ingest.Timeout,
		MaxWaitTime: cfg.Ingest.MaxWaitTime,
	})

	res, err := service.RunNow(ctx, opts.runID)
	if err != nil {
		report(stderr, res, err, opts.jsonOut)
		return exitRejected
	}

	stored, _ := service.CountFoods(context.WithoutCancel(ctx))
	if opts.jsonOut {
		writeJSON(stdout, res, stored)
	} else {
		report(stdout, res, res.Err, false)
		fmt.Fprintf(stdout, "foods stored: %d (%s)\n", stored, backend.Driver)
	}

	if res.Status == core.StatusCompleted {
		return exitCompleted
	}
	return exitFailed
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.source != "" {
		cfg.Ingest.SourcePath = opts.source
	}
	if opts.layout != "" {
		cfg.Source.LayoutFile = opts.layout
		cfg.Source.Columns = nil
	}
	if opts.chunkSize > 0 {
		cfg.Ingest.ChunkSize = opts.chunkSize
	}
	if opts.migrate {
		cfg.Database.Migrate = true
	}
}

// withPlaceholderURL satisfies the required DATABASE_URL for dry runs.
func withPlaceholderURL(getenv config.Lookup) config.Lookup {
	return func(key string) string {
		v := getenv(key)
		if key == "DATABASE_URL" && v == "" && getenv("DB_URL") == "" {
			return "memory://dry-run"
		}
		return v
	}
}

func sourceLayout(cfg config.SourceConfig) (core.Layout, error) {
	if cols := cfg.ColumnIndices(); cols != nil {
		return core.LayoutFromIndices(cols)
	}
	if cfg.LayoutFile != "" {
		return core.LoadLayout(cfg.LayoutFile)
	}
	return core.DefaultLayout(), nil
}

func report(w io.Writer, res core.RunResult, err error, jsonOut bool) {
	if jsonOut {
		writeJSON(w, res, 0)
		return
	}

	status := color.New(color.FgGreen, color.Bold)
	if res.Status != core.StatusCompleted {
		status = color.New(color.FgRed, color.Bold)
	}
	status.Fprintf(w, "%s", res.Status)
	fmt.Fprintf(w, " run %s\n", res.RunID)

	if res.Status != core.StatusNotStarted {
		fmt.Fprintf(w, "  chunks committed:  %d\n", res.ChunksCommitted)
		fmt.Fprintf(w, "  records committed: %d of %d read\n", res.RecordsCommitted, res.RecordsRead)
		if res.RowsDegraded > 0 {
			color.New(color.FgYellow).Fprintf(w, "  rows degraded:     %d (%d tokens read as 0)\n", res.RowsDegraded, res.TokensDegraded)
		}
		fmt.Fprintf(w, "  duration:          %s\n", res.Duration().Round(1e6))
	}
	if err != nil {
		fmt.Fprintf(w, "  %s\n  cause: %s\n", core.FormatUserError(err), err)
	}
}

func writeJSON(w io.Writer, res core.RunResult, stored int64) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	out := struct {
		core.RunResult
		FoodsStored int64 `json:"foods_stored,omitempty"`
	}{res, stored}
	if err := enc.Encode(out); err != nil {
		slog.Error("encode result", "error", err)
	}
}
