package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/importer"
	"github.com/releve-dev/releve/internal/importlog"
	"github.com/releve-dev/releve/internal/ledger"
)

func newImportCommand() *cobra.Command {
	var repoDir string
	var account string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import CSV or PDF bank statements",
		Long: "Import bank statements into the ledger. With no file arguments, every\n" +
			"supported file in import/ is imported and then moved to import/processed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), repoDir, args, account)
		},
	}

	addRepoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&account, "account", "", "target account id, name or last four digits")

	return cmd
}

func runImport(ctx context.Context, out io.Writer, repoDir string, paths []string, account string) error {
	ctx, p, err := openProject(ctx, repoDir)
	if err != nil {
		return err
	}
	defer p.Close()

	if account == "" {
		account = p.cfg.Import.Account
	}

	scanned := len(paths) == 0
	if scanned {
		infos, err := importer.Scan(p.root, importer.DefaultRegistry(p.cfg.Currency(), nil))
		if err != nil {
			return err
		}
		for _, fi := range infos {
			paths = append(paths, fi.Path)
		}
	}
	if len(paths) == 0 {
		fmt.Fprintln(out, "No statements to import.")
		return nil
	}

	files := make([]ledger.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading statement: %w", err)
		}
		files = append(files, ledger.File{Name: filepath.Base(path), Data: data})
	}

	res, err := p.ledger.Import(ctx, files, account)
	if err != nil {
		return err
	}

	now := time.Now()
	entries := make([]importlog.Entry, 0, len(res.Files))
	for _, fr := range res.Files {
		entries = append(entries, importlog.Entry{
			Timestamp:  now,
			RunID:      res.RunID,
			File:       fr.Name,
			Format:     fr.Format,
			Parsed:     fr.Parsed,
			Accepted:   fr.Accepted,
			Duplicates: fr.Duplicates,
		})
		fmt.Fprintf(out, "%s: %d parsed, %d new, %d duplicates\n", fr.Name, fr.Parsed, fr.Accepted, fr.Duplicates)
	}
	if err := importlog.Append(p.root, entries); err != nil {
		return fmt.Errorf("writing import log: %w", err)
	}

	if scanned {
		for _, f := range files {
			if err := importer.MarkProcessed(p.root, f.Name); err != nil {
				return err
			}
		}
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	msg := fmt.Sprintf("import: %d transactions from %s", len(res.Accepted), strings.Join(names, ", "))
	if err := p.commit(ctx, msg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d transactions into %s\n", len(res.Accepted), res.AccountID)
	return nil
}
