package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/history"
	"github.com/sparkify/dwh/internal/report"
	"github.com/sparkify/dwh/internal/ui"
)

var (
	historyLimit  int
	historyRun    string
	historyReport string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs or show the steps of one run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		store := a.eng.History
		if store == nil {
			return errors.New("run history is disabled or unavailable; see history.path in the config")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer w.Flush()

		if historyRun != "" {
			run, err := store.GetRun(ctx, historyRun)
			if err != nil {
				return err
			}
			steps, err := store.Steps(ctx, run.ID)
			if err != nil {
				return err
			}
			if historyReport != "" {
				if err := report.Write(report.Build(a.eng.Config, *run, steps), historyReport); err != nil {
					return err
				}
				fmt.Printf("Report written to %s\n", historyReport)
				return nil
			}
			fmt.Fprintln(w, ui.Title(run.Command+" "+run.ID))
			fmt.Fprintf(w, "Status:\t%s\nStarted:\t%s\nDuration:\t%s\n", run.Status, formatTime(run.StartedAt), run.Duration().Round(time.Millisecond))
			if run.Error != "" {
				fmt.Fprintf(w, "Error:\t%s\n", run.Error)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "SEQ\tKIND\tTABLE\tSTATUS\tDURATION\tERROR")
			for _, s := range steps {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", s.Seq, s.Kind, s.Table, s.Status, s.Duration.Round(time.Millisecond), s.Error)
			}
			return nil
		}

		runs, err := store.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		return writeRuns(os.Stdout, runs)
	},
}

// writeRuns lays the runs out as plain text and colours failed statuses
// afterwards so escape codes never count toward column widths.
func writeRuns(out io.Writer, runs []history.Run) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMAND\tSTATUS\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Command, r.Status, formatTime(r.StartedAt), r.Duration().Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	lines := strings.SplitAfter(buf.String(), "\n")
	col := strings.Index(lines[0], "STATUS")
	for i, r := range runs {
		line := lines[i+1]
		if r.Status != history.StatusFailed || len(line) < col+len(r.Status) {
			continue
		}
		lines[i+1] = line[:col] + ui.Error(r.Status) + line[col+len(r.Status):]
	}
	_, err := io.WriteString(out, strings.Join(lines, ""))
	return err
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the steps of this run id")
	historyCmd.Flags().StringVar(&historyReport, "report", "", "with --run, write a report to this file (.json for JSON, text otherwise)")
	rootCmd.AddCommand(historyCmd)
}
