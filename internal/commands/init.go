package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/accounts"
	"github.com/releve-dev/releve/internal/categorize"
	"github.com/releve-dev/releve/internal/config"
	"github.com/releve-dev/releve/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var name string
	var currency string
	var storage string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new releve project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			if name == "" {
				name = filepath.Base(absDir)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, name, currency, storage, useGit)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (defaults to the directory name)")
	cmd.Flags().StringVar(&currency, "currency", "EUR", "default currency")
	cmd.Flags().StringVar(&storage, "storage", config.DriverFile, "storage driver (file or sqlite)")
	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit every change")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir, name, currency, storage string, useGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	dirs := []string{
		"accounts",
		"rules",
		"ledger",
		"recurring",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name, currency)
	cfg.Storage.Driver = storage
	cfg.Git.AutoCommit = useGit
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	svc := accounts.NewService(accounts.DefaultAccounts(cfg.Project.Currency))
	if err := svc.Save(dir); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}

	store, err := openStore(ctx, dir, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if c, ok := store.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}()
	if err := store.PutLedger(ctx, nil); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := store.PutCategoryRules(ctx, categorize.DefaultRules()); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	if err := store.PutIgnoredGroupIDs(ctx, nil); err != nil {
		return fmt.Errorf("writing ignored groups: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(".env\n"), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if useGit {
		if err := gitops.Init(ctx, dir); err != nil {
			return err
		}
		hash, _, err := gitops.Commit(ctx, dir, "init: "+name, gitAuthor(cfg))
		if err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
		fmt.Fprintf(out, "Initialized releve project at %s (%s)\n", dir, hash)
		return nil
	}

	fmt.Fprintf(out, "Initialized releve project at %s\n", dir)
	return nil
}
