package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/importer"
	"github.com/releve-dev/releve/internal/ledger"
	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/money"
)

type addOptions struct {
	repoDir  string
	date     string
	label    string
	amount   string
	account  string
	currency string
	category string
	tags     []string
}

func newAddCommand() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	addRepoFlag(cmd, &opts.repoDir)
	cmd.Flags().StringVar(&opts.date, "date", "", "transaction date, DD/MM/YYYY or YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&opts.label, "label", "", "transaction label (required)")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "signed amount, negative for expenses (required)")
	cmd.Flags().StringVar(&opts.account, "account", "", "target account id, name or last four digits")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "currency (defaults to the account currency)")
	cmd.Flags().StringVar(&opts.category, "category", "", "category (defaults to rule-based categorization)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "tag, repeatable")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runAdd(ctx context.Context, out io.Writer, opts addOptions) error {
	date := time.Now()
	if opts.date != "" {
		d, ok := importer.ParseDate(opts.date)
		if !ok {
			return fmt.Errorf("invalid date %q", opts.date)
		}
		date = d
	}

	amount, err := money.ParseAmount(opts.amount)
	if err != nil {
		return err
	}

	ctx, p, err := openProject(ctx, opts.repoDir)
	if err != nil {
		return err
	}
	defer p.Close()

	tx, err := p.ledger.AddManual(ctx, ledger.ManualEntry{
		Date:        date,
		Label:       opts.label,
		AmountMinor: amount,
		AccountHint: opts.account,
		Currency:    opts.currency,
		Category:    model.Category(opts.category),
		Tags:        opts.tags,
	})
	if err != nil {
		return err
	}
	if err := p.commit(ctx, "add: "+tx.ID); err != nil {
		return err
	}

	fmt.Fprintf(out, "Added %s: %s %s %s (%s)\n", tx.ID, tx.Date.Format(dateLayout), money.Format(tx.AmountMinor), tx.Currency, tx.Category)
	return nil
}
