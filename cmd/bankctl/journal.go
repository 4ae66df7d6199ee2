package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	journal_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/out/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect a transaction journal file",
}

// journalVerifyCmd 離線稽核，不需要連線到 server
var journalVerifyCmd = &cobra.Command{
	Use:     "verify FILE",
	Short:   "Check sequence continuity and operating funds of a journal",
	Example: "  bankctl journal verify data/journal.log",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		audit, err := journal_adapter.Verify(f)
		if err != nil {
			return err
		}
		printAudit(os.Stdout, audit)
		return nil
	},
}

func printAudit(w io.Writer, a journal_adapter.Audit) {
	fmt.Fprintf(w, "%s %d\n", labelColor.Sprint("records:        "), a.Records)
	fmt.Fprintf(w, "%s %d\n", labelColor.Sprint("runs:           "), a.Runs)
	fmt.Fprintf(w, "%s %d\n", labelColor.Sprint("last seq:       "), a.LastSeq)
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("operating funds:"), formatAmount(positiveColor, a.OperatingFunds))
}

func init() {
	journalCmd.AddCommand(journalVerifyCmd)
	rootCmd.AddCommand(journalCmd)
}
