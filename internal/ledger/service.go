package ledger

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/releve-dev/releve/internal/categorize"
	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/importer"
	"github.com/releve-dev/releve/internal/logger"
	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/recurring"
)

// DefaultRulesTTL bounds how long category rules are reused before the
// store is consulted again.
const DefaultRulesTTL = 5 * time.Minute

const rulesCacheKey = "category_rules"

// ErrInvalidGroupID is returned by Ignore and Unignore for malformed IDs.
var ErrInvalidGroupID = errors.New("invalid recurring group id")

// AccountResolver selects target accounts and checks account references.
type AccountResolver interface {
	Resolve(hint string) (model.Account, error)
	Exists(id string) bool
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	Currency   string
	Document   *document.Parser
	Recurrence recurring.Config
	RulesTTL   time.Duration
	Now        func() time.Time
}

// Service sequences ingestion, deduplication and persistence.
type Service struct {
	store    Store
	accounts AccountResolver
	opts     Options
	rules    *cache.Cache
}

// NewService creates a ledger Service.
func NewService(store Store, accounts AccountResolver, opts Options) *Service {
	if opts.RulesTTL <= 0 {
		opts.RulesTTL = DefaultRulesTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Recurrence = opts.Recurrence.WithDefaults()
	return &Service{
		store:    store,
		accounts: accounts,
		opts:     opts,
		rules:    cache.New(opts.RulesTTL, 2*opts.RulesTTL),
	}
}

// File is a statement to import.
type File struct {
	Name string
	Data []byte
}

// FileResult counts the outcome for one file.
type FileResult struct {
	Name       string
	Format     string
	Parsed     int
	Accepted   int
	Duplicates int
}

// Result summarizes an import run.
type Result struct {
	RunID     string
	AccountID string
	Files     []FileResult
	Accepted  []model.Transaction
}

// Duplicates returns the number of skipped candidates across files.
func (r Result) Duplicates() int {
	n := 0
	for _, f := range r.Files {
		n += f.Duplicates
	}
	return n
}

// Import parses files in parallel, assigns them to the resolved account,
// drops candidates whose ID or fingerprint is already in the ledger and
// persists the rest. A file that cannot be decoded fails the whole run and
// nothing is written.
func (s *Service) Import(ctx context.Context, files []File, accountHint string) (Result, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	acct, err := s.accounts.Resolve(accountHint)
	if err != nil {
		return Result{}, fmt.Errorf("resolving account: %w", err)
	}

	ing, err := s.ingestor(ctx, acct.Currency)
	if err != nil {
		return Result{}, err
	}

	parsed := make([][]model.Transaction, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			txs, err := ing.IngestFile(gctx, f.Name, f.Data)
			if err != nil {
				return err
			}
			parsed[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Re-read on every import: the ledger may have changed since the last run.
	existing, err := s.store.GetLedger(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading ledger: %w", err)
	}
	seenIDs := make(map[string]struct{}, len(existing))
	seenFPs := make(map[string]struct{}, len(existing))
	for _, tx := range existing {
		seenIDs[tx.ID] = struct{}{}
		seenFPs[tx.DedupeHash] = struct{}{}
	}

	res := Result{RunID: runID, AccountID: acct.ID}
	for i, f := range files {
		fr := FileResult{Name: f.Name, Parsed: len(parsed[i])}
		if p := ing.Registry.ForFile(f.Name); p != nil {
			fr.Format = p.Format()
		}
		for _, tx := range parsed[i] {
			tx.AccountID = acct.ID
			if tx.Currency == "" {
				tx.Currency = acct.Currency
			}
			id.Refingerprint(&tx)

			_, dupID := seenIDs[tx.ID]
			_, dupFP := seenFPs[tx.DedupeHash]
			if dupID || dupFP {
				fr.Duplicates++
				continue
			}
			seenIDs[tx.ID] = struct{}{}
			seenFPs[tx.DedupeHash] = struct{}{}
			res.Accepted = append(res.Accepted, tx)
			fr.Accepted++
		}
		log.Debug().
			Str("file", f.Name).
			Int("parsed", fr.Parsed).
			Int("accepted", fr.Accepted).
			Int("duplicates", fr.Duplicates).
			Msg("file ingested")
		res.Files = append(res.Files, fr)
	}

	if len(res.Accepted) > 0 {
		merged := append(slices.Clip(existing), res.Accepted...)
		if err := joinErrors(Validate(merged, s.accounts)); err != nil {
			return Result{}, err
		}
		if err := s.store.PutLedger(ctx, merged); err != nil {
			return Result{}, fmt.Errorf("saving ledger: %w", err)
		}
	}

	log.Info().
		Str("account", acct.ID).
		Int("files", len(files)).
		Int("accepted", len(res.Accepted)).
		Int("duplicates", res.Duplicates()).
		Msg("import complete")
	return res, nil
}

// ManualEntry holds the fields of a hand-entered transaction.
type ManualEntry struct {
	Date        time.Time
	Label       string
	AmountMinor int64
	AccountHint string
	Currency    string
	Category    model.Category
	Tags        []string
}

// AddManual records a hand-entered transaction. Its ID carries the
// creation time so identical entries on the same day stay distinct.
func (s *Service) AddManual(ctx context.Context, e ManualEntry) (model.Transaction, error) {
	label := strings.TrimSpace(e.Label)
	if label == "" {
		return model.Transaction{}, errors.New("label is required")
	}
	if e.AmountMinor == 0 {
		return model.Transaction{}, errors.New("amount must not be zero")
	}

	acct, err := s.accounts.Resolve(e.AccountHint)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("resolving account: %w", err)
	}

	currency := e.Currency
	if currency == "" {
		currency = acct.Currency
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	tx := model.Transaction{
		AccountID:   acct.ID,
		Date:        e.Date,
		Label:       label,
		AmountMinor: e.AmountMinor,
		Category:    e.Category,
		Source:      model.SourceManual,
		Status:      model.StatusPosted,
		Currency:    currency,
		Tags:        tags,
		CreatedAt:   s.opts.Now().UTC().Truncate(time.Millisecond),
	}
	id.Stamp(&tx)

	if tx.Category == "" {
		rules, err := s.categoryRules(ctx)
		if err != nil {
			return model.Transaction{}, err
		}
		tx.Category = categorize.New(rules).Categorize(tx)
	}

	existing, err := s.store.GetLedger(ctx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("loading ledger: %w", err)
	}
	merged := append(slices.Clip(existing), tx)
	if err := joinErrors(Validate(merged, s.accounts)); err != nil {
		return model.Transaction{}, err
	}
	if err := s.store.PutLedger(ctx, merged); err != nil {
		return model.Transaction{}, fmt.Errorf("saving ledger: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("id", tx.ID).Str("account", acct.ID).Msg("manual transaction added")
	return tx, nil
}

// List returns ledger transactions newest first. A positive limit caps the
// result.
func (s *Service) List(ctx context.Context, limit int) ([]model.Transaction, error) {
	txs, err := s.store.GetLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// Recurring runs recurrence detection over the current ledger.
func (s *Service) Recurring(ctx context.Context) ([]model.RecurringGroup, error) {
	txs, err := s.store.GetLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	ignored, err := s.store.GetIgnoredGroupIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ignored groups: %w", err)
	}
	d := recurring.NewDetector(s.opts.Recurrence)
	d.Now = s.opts.Now
	return d.Detect(txs, ignored), nil
}

// Ignore flags a recurring group so it is reported as ignored.
func (s *Service) Ignore(ctx context.Context, groupID string) error {
	return s.updateIgnored(ctx, groupID, func(ids []string) []string {
		if slices.Contains(ids, groupID) {
			return ids
		}
		return append(ids, groupID)
	})
}

// Unignore clears the ignored flag of a recurring group.
func (s *Service) Unignore(ctx context.Context, groupID string) error {
	return s.updateIgnored(ctx, groupID, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(v string) bool { return v == groupID })
	})
}

func (s *Service) updateIgnored(ctx context.Context, groupID string, update func([]string) []string) error {
	if !strings.HasPrefix(groupID, "rec_") || len(groupID) <= len("rec_") {
		return fmt.Errorf("%w: %q", ErrInvalidGroupID, groupID)
	}
	ids, err := s.store.GetIgnoredGroupIDs(ctx)
	if err != nil {
		return fmt.Errorf("loading ignored groups: %w", err)
	}
	ids = update(ids)
	sort.Strings(ids)
	if err := s.store.PutIgnoredGroupIDs(ctx, ids); err != nil {
		return fmt.Errorf("saving ignored groups: %w", err)
	}
	return nil
}

// SetCategoryRules replaces the stored rules and drops the cached copy.
func (s *Service) SetCategoryRules(ctx context.Context, rules []model.CategoryRule) error {
	if err := s.store.PutCategoryRules(ctx, rules); err != nil {
		return fmt.Errorf("saving category rules: %w", err)
	}
	s.rules.Delete(rulesCacheKey)
	return nil
}

func (s *Service) ingestor(ctx context.Context, currency string) (*importer.Ingestor, error) {
	if currency == "" {
		currency = s.opts.Currency
	}
	rules, err := s.categoryRules(ctx)
	if err != nil {
		return nil, err
	}
	return importer.NewIngestor(categorize.New(rules), currency, s.opts.Document), nil
}

// categoryRules returns the stored rules, or the defaults when none are
// stored.
func (s *Service) categoryRules(ctx context.Context) ([]model.CategoryRule, error) {
	if v, ok := s.rules.Get(rulesCacheKey); ok {
		return v.([]model.CategoryRule), nil
	}
	rules, err := s.store.GetCategoryRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}
	if len(rules) == 0 {
		rules = categorize.DefaultRules()
	}
	s.rules.Set(rulesCacheKey, rules, cache.DefaultExpiration)
	return rules, nil
}
