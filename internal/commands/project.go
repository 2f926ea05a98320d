package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/accounts"
	"github.com/releve-dev/releve/internal/config"
	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/gitops"
	"github.com/releve-dev/releve/internal/ledger"
	"github.com/releve-dev/releve/internal/logger"
)

// project is an opened releve repository.
type project struct {
	root   string
	cfg    *config.Config
	store  ledger.Store
	ledger *ledger.Service
}

func addRepoFlag(cmd *cobra.Command, repoDir *string) {
	cmd.Flags().StringVar(repoDir, "repo", ".", "project directory")
}

// openProject loads configuration and accounts, opens the configured store
// and returns ctx carrying the project logger.
func openProject(ctx context.Context, repoDir string) (context.Context, *project, error) {
	root, err := filepath.Abs(repoDir)
	if err != nil {
		return ctx, nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.LoadProject(root)
	if err != nil {
		return ctx, nil, err
	}
	ctx = logger.WithContext(ctx, logger.New(cfg.LogLevel))

	accts, err := accounts.Load(root)
	if err != nil {
		return ctx, nil, err
	}

	store, err := openStore(ctx, root, cfg)
	if err != nil {
		return ctx, nil, err
	}

	doc := &document.Parser{
		Decoder:       &document.PDFDecoder{MergeGapRatio: cfg.Document.MergeGapRatio},
		LineTolerance: cfg.Document.LineTolerance,
		AmountCeiling: cfg.Document.AmountCeiling,
		Currency:      cfg.Currency(),
	}
	svc := ledger.NewService(store, accts, ledger.Options{
		Currency:   cfg.Currency(),
		Document:   doc,
		Recurrence: cfg.Recurrence,
	})

	return ctx, &project{
		root:   root,
		cfg:    cfg,
		store:  store,
		ledger: svc,
	}, nil
}

func openStore(ctx context.Context, root string, cfg *config.Config) (ledger.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		path := cfg.SQLitePath(root)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
		return ledger.OpenSQLite(ctx, path)
	case config.DriverFile, "":
		return ledger.NewFileStore(root), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// commit records the project state in git when auto-commit is enabled and
// the project is a repository.
func (p *project) commit(ctx context.Context, message string) error {
	if !p.cfg.Git.AutoCommit || !gitops.IsRepo(p.root) {
		return nil
	}
	hash, ok, err := gitops.Commit(ctx, p.root, message, gitAuthor(p.cfg))
	if err != nil {
		return fmt.Errorf("committing changes: %w", err)
	}
	if ok {
		log := logger.FromContext(ctx)
		log.Debug().Str("commit", hash).Msg(message)
	}
	return nil
}

func gitAuthor(cfg *config.Config) gitops.Author {
	return gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
}

// Close releases the store.
func (p *project) Close() error {
	if c, ok := p.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
