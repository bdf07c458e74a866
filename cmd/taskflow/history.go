package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshharrison/taskflow/internal/reporter"
	"github.com/joshharrison/taskflow/internal/state"
	"github.com/joshharrison/taskflow/internal/ui"
)

// flagStateDir overrides the history location; tests point it at a temp dir.
var flagStateDir string

// recordRun appends rpt to the history and reports slip against the
// previous run over the same file.
func recordRun(e *env, rpt *reporter.Report) error {
	h, err := state.Open(flagStateDir)
	if err != nil {
		return err
	}
	cur := rpt.HistoryEntry()
	prev, err := h.Record(cur)
	if err != nil {
		return err
	}
	e.log.V(1).Info("recorded run", "report", cur.ReportID, "history", h.Path())

	if e.jsonOutput() || prev == nil {
		return nil
	}
	switch slip := state.Slip(prev, cur); {
	case slip > 0:
		fmt.Printf("📉 Project finish slipped %s since %s\n", ui.BoldRed(fmt.Sprintf("%d days", slip)), prev.RecordedAt.Format("2006-01-02 15:04"))
	case slip < 0:
		fmt.Printf("📈 Project finish pulled in %s since %s\n", ui.BoldGreen(fmt.Sprintf("%d days", -slip)), prev.RecordedAt.Format("2006-01-02 15:04"))
	default:
		fmt.Printf("📌 Project finish unchanged since %s\n", prev.RecordedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func historyCmd() *cobra.Command {
	var flagClean bool

	cmd := &cobra.Command{
		Use:   "history [file]",
		Short: "Show recorded schedule runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}

			if flagClean {
				if err := state.Clean(flagStateDir); err != nil {
					return err
				}
				fmt.Println("🧹 History cleared.")
				return nil
			}

			h, err := state.Open(flagStateDir)
			if err != nil {
				return err
			}
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			entries := h.ForSource(source)

			if e.jsonOutput() {
				if entries == nil {
					entries = []*state.Entry{}
				}
				return outputJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println(ui.Dim("No recorded runs."))
				return nil
			}

			fmt.Printf("🕘 %s\n", ui.BoldCyan("Schedule History"))
			fmt.Println(ui.Cyan("══════════════════"))
			var prev *state.Entry
			for _, en := range entries {
				finish := ui.Dim("n/a")
				if en.ProjectFinish != nil {
					finish = en.ProjectFinish.Format("2006-01-02")
				}
				slip := ""
				if prev != nil && prev.Source == en.Source {
					if d := state.Slip(prev, en); d != 0 {
						slip = ui.Yellow(fmt.Sprintf(" (%+dd)", d))
					}
				}
				fmt.Printf("  %s %s  %-24s  finish %s%s  %s\n",
					statusIcon(en.Status), en.RecordedAt.Format("2006-01-02 15:04"), en.Source,
					finish, slip, ui.Dim(strings.Join(en.CriticalPath, " → ")))
				prev = en
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagClean, "clean", false, "Delete the recorded history")
	cmd.Flags().StringVar(&flagStateDir, "state-dir", "", "History directory (default: ./.taskflow)")

	return cmd
}

func statusIcon(s state.RunStatus) string {
	switch s {
	case state.StatusInvalid:
		return ui.ResultIcon(false, 0)
	case state.StatusWarnings:
		return ui.ResultIcon(true, 1)
	default:
		return ui.ResultIcon(true, 0)
	}
}
