package commands

import (
	"io"

	"github.com/spf13/cobra"
)

func newSummaryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <profile> <path>",
		Short: "Show statement totals and the balance before its first transaction",
		Long: `Summary prints the statement's totals, including the initial amount an
account must start from for the imported transactions to reach the
statement's final balance. It fails when the statement does not reconcile.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSummary(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func (a *app) runSummary(out io.Writer, profile, path string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	l, err := readLedger(cfg, profile, path)
	if err != nil {
		return err
	}
	defer l.Close()

	s, err := l.Summary()
	if err != nil {
		return err
	}
	if err := renderSummary(out, s); err != nil {
		return err
	}
	return s.Validate()
}
