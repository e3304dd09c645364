package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/remiblancher/primlab/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Run journal management",
	Long: `Commands for verifying and reading run journals.

The journal is a tamper-evident record of every run: when it started, what
it loaded, how it ended and which key sealed its report. Each event is
chained to its predecessor with a SHA-256 hash.

Examples:
  # Verify journal integrity
  primlab journal verify primlab.jsonl

  # Show the last 10 events
  primlab journal tail primlab.jsonl -n 10`,
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify <journal>",
	Short: "Verify journal integrity",
	Long: `Verify the hash chain of a journal file.

The chain starts with hash_prev="sha256:genesis" for the first event. If
events were modified, deleted, inserted or reordered, this command reports
where the chain breaks.`,
	Args: cobra.ExactArgs(1),
	RunE: runJournalVerify,
}

var journalTailCmd = &cobra.Command{
	Use:   "tail <journal>",
	Short: "Show recent journal events",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTail,
}

var (
	journalTailNum  int
	journalShowJSON bool
)

func init() {
	journalTailCmd.Flags().IntVarP(&journalTailNum, "num", "n", 10, "Number of events to show")
	journalTailCmd.Flags().BoolVar(&journalShowJSON, "json", false, "Output as JSON")

	journalCmd.AddCommand(journalVerifyCmd)
	journalCmd.AddCommand(journalTailCmd)
}

func runJournalVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verifying journal: %s\n\n", args[0])

	count, err := journal.VerifyChain(args[0])
	if err != nil {
		fmt.Fprintf(out, "VERIFICATION FAILED\n")
		fmt.Fprintf(out, "  Valid events: %d\n", count)
		fmt.Fprintf(out, "  Error: %s\n", err)
		return fmt.Errorf("journal verification failed: %w", err)
	}

	fmt.Fprintf(out, "VERIFICATION PASSED\n")
	fmt.Fprintf(out, "  Total events: %d\n", count)
	fmt.Fprintf(out, "  Hash chain: VALID\n")
	return nil
}

func runJournalTail(cmd *cobra.Command, args []string) error {
	events, err := journal.Tail(args[0], journalTailNum)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "Journal is empty")
		return nil
	}

	if journalShowJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	for i := range events {
		printEvent(out, &events[i])
	}
	return nil
}

func printEvent(w io.Writer, e *journal.Event) {
	resultIcon := "✓"
	if e.Result == journal.ResultFailure {
		resultIcon = "✗"
	}

	fmt.Fprintf(w, "[%s] %s %s\n", e.Timestamp, resultIcon, e.EventType)
	fmt.Fprintf(w, "    Actor:  %s@%s\n", e.Actor.ID, e.Actor.Host)

	d := e.Details
	fmt.Fprintf(w, "    Run:    seed=%d", d.Seed)
	if d.RunID != "" {
		fmt.Fprintf(w, " id=%s", d.RunID)
	}
	if d.Status != "" {
		fmt.Fprintf(w, " status=%s", d.Status)
	}
	fmt.Fprintln(w)

	if d.Backends > 0 || d.Vectors > 0 || d.Cases > 0 || d.Findings > 0 {
		fmt.Fprint(w, "    Counts:")
		if d.Backends > 0 {
			fmt.Fprintf(w, " backends=%d", d.Backends)
		}
		if d.Vectors > 0 {
			fmt.Fprintf(w, " vectors=%d", d.Vectors)
		}
		if d.Cases > 0 {
			fmt.Fprintf(w, " cases=%d", d.Cases)
		}
		if d.Findings > 0 {
			fmt.Fprintf(w, " findings=%d", d.Findings)
		}
		fmt.Fprintln(w)
	}
	if d.KeyID != "" {
		fmt.Fprintf(w, "    Seal:   key=%s", d.KeyID)
		if d.ReportPath != "" {
			fmt.Fprintf(w, " path=%s", d.ReportPath)
		}
		fmt.Fprintln(w)
	}
	if d.Reason != "" {
		fmt.Fprintf(w, "    Reason: %s\n", d.Reason)
	}
	fmt.Fprintln(w)
}
