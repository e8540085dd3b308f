package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/transmailifier/transmailifier/internal/model"
	"github.com/transmailifier/transmailifier/internal/processor"
)

const skipLayout = "2006-01-02"

type processOptions struct {
	all       bool
	skip      string
	reprocess bool
	yes       bool
}

func newProcessCommand(a *app) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <profile> <path>",
		Short: "Mail new transactions of a statement as CSV and mark them processed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProcess(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "preview every transaction instead of a selected few")
	cmd.Flags().StringVar(&opts.skip, "skip", "", "mark unprocessed transactions before this date (YYYY-MM-DD) processed without mailing them")
	cmd.Flags().BoolVar(&opts.reprocess, "reprocess", false, "mail already processed transactions again")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "answer yes to every prompt")

	return cmd
}

func (a *app) runProcess(cmd *cobra.Command, profile, path string, opts processOptions) error {
	var skipBefore time.Time
	if opts.skip != "" {
		t, err := time.Parse(skipLayout, opts.skip)
		if err != nil {
			return fmt.Errorf("invalid --skip date %q, want YYYY-MM-DD", opts.skip)
		}
		skipBefore = t
	}

	out := cmd.OutOrStdout()
	log, ctx := a.logger(cmd)

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := a.resolveMailer(cfg); err != nil {
		return err
	}

	l, err := readLedger(cfg, profile, path)
	if err != nil {
		return err
	}
	defer l.Close()

	summary, err := l.Summary()
	if err != nil {
		return err
	}
	if err := renderSummary(out, summary); err != nil {
		return err
	}
	if err := summary.Validate(); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	proc := processor.New(store, a.newNotifier(cfg.Mailer), log)
	in := cmd.InOrStdin()
	prompt := newPrompter(in, out, opts.yes, a.interactive(in))

	limit := previewLimit
	if opts.all {
		limit = 0
	}

	if !skipBefore.IsZero() {
		skipped, err := proc.FindUnprocessedBefore(ctx, l, skipBefore)
		if err != nil {
			return err
		}
		if len(skipped) > 0 {
			fmt.Fprintf(out, "\nFound %d unprocessed transactions before %s\n", len(skipped), opts.skip)
			if err := preview(out, skipped, limit); err != nil {
				return err
			}
			ok, err := prompt.confirm(fmt.Sprintf("Mark these %d transactions as processed?", len(skipped)))
			if err != nil {
				return err
			}
			if ok {
				res, err := proc.MarkProcessed(ctx, skipped)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Marked %d transactions as processed.\n", res.Count())
			}
		}
	}

	unprocessed, err := proc.FilterUnprocessed(ctx, l, opts.reprocess)
	if err != nil {
		return err
	}
	if len(unprocessed) == 0 {
		fmt.Fprintln(out, "All the transactions have already been processed.")
		return nil
	}

	if uncategorized := filterUncategorized(unprocessed); len(uncategorized) > 0 {
		fmt.Fprintf(out, "\nFound %d uncategorized transactions\n", len(uncategorized))
		if err := renderTransactions(out, uncategorized, 0); err != nil {
			return err
		}
		ok, err := prompt.confirm(fmt.Sprintf("Proceed with %d uncategorized transactions?", len(uncategorized)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Processing aborted.")
			return nil
		}
	}

	fmt.Fprintf(out, "\nFound %d new transactions\n", len(unprocessed))
	if err := preview(out, unprocessed, limit); err != nil {
		return err
	}
	ok, err := prompt.confirm(fmt.Sprintf("Process these %d transactions?", len(unprocessed)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "Processing aborted.")
		return nil
	}

	res, err := proc.ProcessUnprocessed(ctx, l, opts.reprocess)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Successfully processed %d new transactions.\n", res.Count())
	return nil
}

func preview(out io.Writer, txns []model.Transaction, limit int) error {
	if limit > 0 && len(txns) > limit {
		fmt.Fprintf(out, "(displaying selected %d transactions)\n", limit)
	}
	return renderTransactions(out, txns, limit)
}

func filterUncategorized(txns []model.Transaction) []model.Transaction {
	var out []model.Transaction
	for _, t := range txns {
		if !t.HasCategory() {
			out = append(out, t)
		}
	}
	return out
}
