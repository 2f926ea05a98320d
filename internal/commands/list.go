package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/money"
)

const dateLayout = "02/01/2006"

func newListCommand() *cobra.Command {
	var repoDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), repoDir, limit)
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of transactions, 0 for all")

	return cmd
}

func runList(ctx context.Context, out io.Writer, repoDir string, limit int) error {
	ctx, p, err := openProject(ctx, repoDir)
	if err != nil {
		return err
	}
	defer p.Close()

	txs, err := p.ledger.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(out, "No transactions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAMOUNT\tCATEGORY\tACCOUNT\tLABEL")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.Date.Format(dateLayout), money.Format(tx.AmountMinor), tx.Category, tx.AccountID, tx.Label)
	}
	return tw.Flush()
}
