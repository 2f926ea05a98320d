package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/money"
)

func newRecurringCommand() *cobra.Command {
	var repoDir string
	var all bool

	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Show recurring charges detected in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecurring(cmd.Context(), cmd.OutOrStdout(), repoDir, all)
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().BoolVar(&all, "all", false, "include lapsed and ignored groups")

	cmd.AddCommand(
		newRecurringFlagCommand("ignore", "Hide a recurring group from the report", true),
		newRecurringFlagCommand("unignore", "Show an ignored recurring group again", false),
	)

	return cmd
}

func newRecurringFlagCommand(use, short string, ignore bool) *cobra.Command {
	var repoDir string

	cmd := &cobra.Command{
		Use:   use + " <group-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecurringFlag(cmd.Context(), cmd.OutOrStdout(), repoDir, args[0], ignore)
		},
	}

	addRepoFlag(cmd, &repoDir)

	return cmd
}

func runRecurring(ctx context.Context, out io.Writer, repoDir string, all bool) error {
	ctx, p, err := openProject(ctx, repoDir)
	if err != nil {
		return err
	}
	defer p.Close()

	groups, err := p.ledger.Recurring(ctx)
	if err != nil {
		return err
	}

	var shown []model.RecurringGroup
	for _, g := range groups {
		if all || (g.IsActive && !g.IsIgnored) {
			shown = append(shown, g)
		}
	}
	if len(shown) == 0 {
		fmt.Fprintln(out, "No recurring charges.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFREQUENCY\tAVERAGE\tNEXT\tSTATUS\tLABEL")
	for _, g := range shown {
		avg := money.Format(g.AverageAmountMinor)
		if !g.AmountConsistent {
			avg = "~" + avg
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Frequency, avg, g.NextExpectedDate.Format(dateLayout), status(g), g.NormalizedLabel)
	}
	return tw.Flush()
}

func status(g model.RecurringGroup) string {
	switch {
	case g.IsIgnored:
		return "ignored"
	case g.IsActive:
		return "active"
	default:
		return "lapsed"
	}
}

func runRecurringFlag(ctx context.Context, out io.Writer, repoDir, groupID string, ignore bool) error {
	ctx, p, err := openProject(ctx, repoDir)
	if err != nil {
		return err
	}
	defer p.Close()

	verb, done, update := "unignore", "Unignored", p.ledger.Unignore
	if ignore {
		verb, done, update = "ignore", "Ignored", p.ledger.Ignore
	}
	if err := update(ctx, groupID); err != nil {
		return err
	}
	if err := p.commit(ctx, "recurring: "+verb+" "+groupID); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s\n", done, groupID)
	return nil
}
