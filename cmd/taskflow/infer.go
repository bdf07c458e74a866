package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshharrison/taskflow/internal/claude"
	"github.com/joshharrison/taskflow/internal/ui"
	"github.com/joshharrison/taskflow/internal/workflow"
)

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps <file>",
		Short: "Use Claude to infer dependency edges between tasks",
		Long: `Sends task titles and dates to Claude and infers typed dependency edges.
Every proposal is checked like a manually added edge: unknown tasks,
self-dependencies, duplicates and edges that would close a cycle are skipped.
By default runs in dry-run mode; use --apply with -o to write the workflow.`,
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

			var result *claude.InferDepsResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				if result, err = claude.ParseInferDeps(string(data)); err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
				fmt.Fprintf(os.Stderr, "📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
			} else {
				model := flagModel
				if model == "" {
					model = e.cfg.Claude.Model
				}
				client, err := claude.NewClient("", model, e.cfg.Claude.MaxTokens)
				if err != nil {
					return err
				}

				fmt.Fprintf(os.Stderr, "🔍 Sending %s tasks to Claude for dependency inference...\n", ui.Bold(len(wf.Tasks)))
				e.log.V(1).Info("inferring dependencies", "model", model, "tasks", len(wf.Tasks))
				if result, err = client.InferDeps(cmd.Context(), claude.Summaries(wf.Tasks)); err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
			}

			accepted, skipped := claude.Filter(result, wf)
			e.log.V(1).Info("filtered proposals", "proposed", len(result.Edges), "accepted", len(accepted), "skipped", len(skipped))

			if e.jsonOutput() && !flagApply {
				return outputJSON(struct {
					Accepted []claude.Accepted `json:"accepted"`
					Skipped  []claude.Skip     `json:"skipped"`
					Summary  string            `json:"summary"`
				}{accepted, skipped, result.Summary})
			}

			for _, s := range skipped {
				fmt.Printf("  %s %s -> %s: %s\n", ui.Yellow("⏭️  SKIP:"), s.Edge.Source, s.Edge.Target, s.Reason)
			}

			fmt.Printf("\n🔗 Inferred %s dependencies (%d from Claude, %d after validation):\n\n",
				ui.Bold(len(accepted)), len(result.Edges), len(accepted))
			for _, a := range accepted {
				fmt.Printf("  %s %s  %s\n", ui.Cyan("→"), ui.BoldMagenta(a.Edge.Describe()), ui.Dim(a.Reason))
				for _, w := range a.Warnings {
					fmt.Printf("      %s %s\n", ui.Yellow("warning:"), w)
				}
			}
			if result.Summary != "" {
				fmt.Printf("\n💡 %s %s\n", ui.BoldWhite("Summary:"), result.Summary)
			}

			if !flagApply {
				fmt.Printf("\n🎯 %s\n", ui.Yellow("Dry run. Use --apply -o <file> to write the updated workflow."))
				return nil
			}
			if flagOutput == "" {
				return fmt.Errorf("--apply requires -o <file>")
			}

			if err := workflow.Save(flagOutput, claude.Apply(wf, accepted)); err != nil {
				return err
			}
			fmt.Printf("\n🏁 Applied %s dependencies to %s.\n", ui.BoldGreen(len(accepted)), flagOutput)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Write the workflow with inferred edges added (default: dry-run)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (default: claude.model from config)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "File to write with --apply")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Load inferred edges from a JSON file instead of calling Claude")

	return cmd
}
