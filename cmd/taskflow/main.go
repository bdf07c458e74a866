package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshharrison/taskflow/internal/claude"
	"github.com/joshharrison/taskflow/internal/config"
	"github.com/joshharrison/taskflow/internal/graph"
	"github.com/joshharrison/taskflow/internal/reporter"
	"github.com/joshharrison/taskflow/internal/schedule"
	"github.com/joshharrison/taskflow/internal/server"
	"github.com/joshharrison/taskflow/internal/ui"
	"github.com/joshharrison/taskflow/internal/validate"
	"github.com/joshharrison/taskflow/internal/workflow"
)

var (
	flagConfig      string
	flagVerbose     int
	flagJSON        bool
	flagNoColor     bool
	flagPath        string
	flagDeriveEdges bool
	flagStrict      bool
	flagOutput      string
	flagFormat      string
)

// errChecksFailed makes the process exit with status 2 instead of 1.
var errChecksFailed = errors.New("checks failed")

// env is the per-invocation state shared by all commands.
type env struct {
	cfg    *config.Config
	log    logr.Logger
	loader *workflow.Loader
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskflow",
		Short: "Validate and schedule task dependency graphs",
		Long: `Taskflow checks a workflow of dated tasks and typed dependency edges for
missing tasks, self-dependencies and cycles, then computes earliest start,
latest finish, slack and the critical path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: ~/.taskflow/config.yaml and ./.taskflow/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "", "gjson path of the workflow inside a larger JSON document (e.g. data.workflow)")
	rootCmd.PersistentFlags().BoolVar(&flagDeriveEdges, "derive-edges", false, "Build edges from declared dependencies when the document has none")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "Treat warnings as failures")

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(checkEdgeCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(criticalPathCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(inferDepsCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errChecksFailed) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.Red("error:"), err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger and workflow loader.
func setup() (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagStrict {
		cfg.Strict = true
	}
	if flagJSON {
		cfg.Output.Format = "json"
	}
	if flagNoColor {
		ui.DisableColor()
	}

	stdr.SetVerbosity(flagVerbose)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("taskflow")

	return &env{
		cfg: cfg,
		log: logger,
		loader: &workflow.Loader{
			Path:        flagPath,
			DateLayout:  cfg.DateLayout,
			DeriveEdges: flagDeriveEdges,
			DefaultType: cfg.DependencyType(),
			Log:         logger.WithName("loader"),
		},
	}, nil
}

func (e *env) jsonOutput() bool {
	return e.cfg.Output.Format == "json"
}

func (e *env) load(path string) (graph.Workflow, error) {
	wf, err := e.loader.LoadFile(path)
	if err != nil {
		return graph.Workflow{}, err
	}
	if len(wf.Tasks) == 0 {
		return graph.Workflow{}, fmt.Errorf("%s: no tasks found", path)
	}
	return wf, nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check workflows for missing tasks, cycles and inconsistencies",
		Long: `Validates each workflow file. Files are checked concurrently (see the
"parallel" config key). Exits with status 2 if any workflow is invalid, or
has warnings under --strict.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}

			reports := make([]*reporter.Report, len(args))
			g, _ := errgroup.WithContext(cmd.Context())
			g.SetLimit(e.cfg.Parallel)
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					wf, err := e.load(path)
					if err != nil {
						return err
					}
					reports[i] = reporter.Build(path, wf)
					e.log.V(1).Info("validated", "file", path, "valid", reports[i].Validation.Valid,
						"warnings", len(reports[i].Validation.Warnings))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if e.jsonOutput() {
				out := make([]interface{}, len(reports))
				for i, r := range reports {
					out[i] = struct {
						Source string          `json:"source"`
						Result validate.Result `json:"result"`
					}{r.Source, r.Validation}
				}
				if err := outputJSON(out); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					r.PrintValidation(os.Stdout)
				}
			}

			for _, r := range reports {
				if r.Failed(e.cfg.Strict) {
					return errChecksFailed
				}
			}
			return nil
		},
	}
}

func checkEdgeCmd() *cobra.Command {
	var (
		flagType string
		flagLag  int
	)

	cmd := &cobra.Command{
		Use:   "check-edge <file> <source> <target>",
		Short: "Check whether a dependency edge may be added to a workflow",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			wf, err := e.load(args[0])
			if err != nil {
				return err
			}

			typ := e.cfg.DependencyType()
			if flagType != "" {
				if typ, err = graph.ParseDependencyType(flagType); err != nil {
					return err
				}
			}
			edge := graph.Edge{Source: args[1], Target: args[2], Type: typ, Lag: flagLag}
			result := validate.ValidateProposedEdge(edge, wf.Tasks, wf.Edges)

			if e.jsonOutput() {
				if err := outputJSON(result); err != nil {
					return err
				}
			} else {
				fmt.Printf("%s %s\n", ui.ResultIcon(result.Valid, len(result.Warnings)), edge.Describe())
				if !result.Valid {
					for _, msg := range strings.Split(result.Error, "; ") {
						fmt.Printf("    %s %s\n", ui.Red("error:"), msg)
					}
				}
				for _, w := range result.Warnings {
					fmt.Printf("    %s %s\n", ui.Yellow("warning:"), w)
				}
			}

			if !result.Valid || (e.cfg.Strict && len(result.Warnings) > 0) {
				return errChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagType, "type", "", "Dependency type (default: default_dependency_type from config)")
	cmd.Flags().IntVar(&flagLag, "lag", 0, "Lag in days")

	return cmd
}

func scheduleCmd() *cobra.Command {
	var (
		flagHonourEdges bool
		flagExplain     bool
		flagRecord      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule <file>",
		Short: "Compute earliest start, latest finish and slack for every task",
		Long: `Computes per-task dates from each task's direct dependencies and
dependents, alongside a full critical path analysis of the whole graph.
By default every edge is treated as finish-to-start with no lag; use
--honour-edges to apply each edge's own type and lag.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			wf, err := e.load(args[0])
			if err != nil {
				return err
			}

			rpt := reporter.Build(args[0], wf)
			if rpt.Validation.Valid && flagHonourEdges {
				rpt.Direct = schedule.DirectAll(wf.Tasks, wf.Edges, true)
			}

			if e.jsonOutput() {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				rpt.PrintValidation(os.Stdout)
				fmt.Println()
				rpt.PrintSchedule(os.Stdout)
			}

			if flagRecord {
				if err := recordRun(e, rpt); err != nil {
					return err
				}
			}

			if !rpt.Validation.Valid {
				return errChecksFailed
			}

			if flagExplain {
				return explainSchedule(cmd.Context(), e, rpt)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagHonourEdges, "honour-edges", false, "Apply each edge's type and lag to the per-task figures")
	cmd.Flags().BoolVar(&flagExplain, "explain", false, "Ask Claude for a plain-language explanation of the schedule")
	cmd.Flags().BoolVar(&flagRecord, "record", false, "Record the run in .taskflow/history.json and report slip since the last run")
	cmd.Flags().StringVar(&flagStateDir, "state-dir", "", "History directory (default: ./.taskflow)")

	return cmd
}

func explainSchedule(ctx context.Context, e *env, rpt *reporter.Report) error {
	client, err := claude.NewClient("", e.cfg.Claude.Model, e.cfg.Claude.MaxTokens)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	wasDisabled := ui.ColorDisabled()
	ui.SetColorDisabled(true)
	rpt.PrintSchedule(&buf)
	ui.SetColorDisabled(wasDisabled)

	e.log.V(1).Info("requesting schedule explanation", "model", e.cfg.Claude.Model)
	text, err := client.ExplainSchedule(ctx, buf.String())
	if err != nil {
		return fmt.Errorf("explain schedule: %w", err)
	}
	fmt.Printf("\n💡 %s\n%s\n", ui.BoldWhite("Explanation:"), text)
	return nil
}

func criticalPathCmd() *cobra.Command {
	var flagFull bool

	cmd := &cobra.Command{
		Use:   "critical-path <file>",
		Short: "List tasks with zero or negative slack",
		Long: `Lists tasks whose slack, computed from their direct dependencies and
dependents, is zero or negative, ordered by start date. With --full the
path comes from a critical path analysis of the whole graph instead, which
requires the workflow to be acyclic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			wf, err := e.load(args[0])
			if err != nil {
				return err
			}

			var path []string
			if flagFull {
				rpt := reporter.Build(args[0], wf)
				if rpt.Full == nil {
					rpt.PrintValidation(os.Stderr)
					return errChecksFailed
				}
				path = rpt.Full.CriticalPath
			} else {
				path = schedule.FindCriticalPath(wf.Tasks, wf.Edges)
			}
			if path == nil {
				path = []string{}
			}

			if e.jsonOutput() {
				return outputJSON(map[string][]string{"criticalPath": path})
			}
			if len(path) == 0 {
				fmt.Printf("⚡ Critical path: %s\n", ui.Dim("none"))
				return nil
			}
			fmt.Printf("⚡ Critical path: %s (%d tasks)\n", ui.BoldYellow(strings.Join(path, " → ")), len(path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagFull, "full", false, "Use the whole-graph analysis")

	return cmd
}

func vizCmd() *cobra.Command {
	var flagPush string

	cmd := &cobra.Command{
		Use:   "viz <file>",
		Short: "Render the dependency graph (ascii, dot or json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			wf, err := e.load(args[0])
			if err != nil {
				return err
			}

			if flagPush != "" {
				g, err := server.PostWorkflow(cmd.Context(), strings.TrimRight(flagPush, "/"), wf)
				if err != nil {
					return err
				}
				fmt.Printf("📤 Sent %s tasks to %s (graph %s)\n", ui.Bold(len(g.Nodes)), flagPush, ui.Dim(g.Metadata.ID))
				return nil
			}

			format := flagFormat
			if format == "" {
				format = e.cfg.Output.Format
			}

			rpt := reporter.Build(args[0], wf)
			switch format {
			case "dot":
				rpt.WriteDOT(os.Stdout)
			case "json":
				return outputJSON(rpt.Graph())
			case "ascii", "text":
				rpt.WriteASCII(os.Stdout)
			default:
				return fmt.Errorf("unsupported format %q (use ascii, dot or json)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format: ascii, dot, json (default: output.format from config)")
	cmd.Flags().StringVar(&flagPush, "push", "", "Send the graph to a running taskflow server, e.g. http://127.0.0.1:8484")

	return cmd
}

func syncCmd() *cobra.Command {
	var flagFromDeps bool

	cmd := &cobra.Command{
		Use:   "sync <file>",
		Short: "Make task dependencies and edges agree",
		Long: `Rewrites each task's declared dependencies from the edge list. With
--from-deps the edge list is rebuilt from declared dependencies instead,
using default_dependency_type for every edge.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			wf, err := e.load(args[0])
			if err != nil {
				return err
			}

			if flagFromDeps {
				wf.Edges = graph.DeriveEdges(wf.Tasks, e.cfg.DependencyType())
			} else {
				wf.Tasks = graph.SyncDependencies(wf.Tasks, wf.Edges)
			}

			result := validate.ValidateWorkflowIntegrity(wf.Tasks, wf.Edges)
			e.log.V(1).Info("synced workflow", "tasks", len(wf.Tasks), "edges", len(wf.Edges), "valid", result.Valid)
			if err := result.Err(); err != nil {
				return fmt.Errorf("sync %s: %w", args[0], err)
			}

			if flagOutput == "" {
				data, err := workflow.Marshal(wf)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := workflow.Save(flagOutput, wf); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s Wrote %d tasks and %d edges to %s\n",
				ui.ResultIcon(result.Valid, len(result.Warnings)), len(wf.Tasks), len(wf.Edges), flagOutput)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagFromDeps, "from-deps", false, "Rebuild edges from declared dependencies")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write the result to a file (default: stdout)")

	return cmd
}

func serveCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation and scheduling HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			addr := flagAddr
			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			if server.IsPortOpen(addr) {
				return fmt.Errorf("address %s is already in use", addr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ui.PrintBanner(os.Stdout)
			fmt.Printf("🌐 Listening on %s\n", ui.Bold("http://"+addr))
			return server.New(*e.loader, e.log.WithName("server")).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default: server.addr from config)")

	return cmd
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
