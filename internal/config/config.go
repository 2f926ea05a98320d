package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/recurring"
)

// FileName is the project configuration file at the repository root.
const FileName = "releve.yaml"

// EnvPrefix prefixes environment overrides, e.g. RELEVE_STORAGE_DRIVER.
const EnvPrefix = "RELEVE"

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config represents the top-level releve.yaml configuration.
type Config struct {
	Project    ProjectConfig    `yaml:"project"`
	Storage    StorageConfig    `yaml:"storage"`
	Import     ImportConfig     `yaml:"import"`
	Document   DocumentConfig   `yaml:"document"`
	Recurrence recurring.Config `yaml:"recurrence"`
	Git        GitConfig        `yaml:"git"`
	LogLevel   string           `yaml:"log_level"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

// StorageConfig selects the persistence backend. Path is relative to the
// project root and only used by the sqlite driver.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

// ImportConfig holds defaults for `releve import`.
type ImportConfig struct {
	Account  string `yaml:"account,omitempty"`
	Currency string `yaml:"currency,omitempty"`
}

// DocumentConfig tunes PDF statement extraction.
type DocumentConfig struct {
	LineTolerance float64 `yaml:"line_tolerance"`
	MergeGapRatio float64 `yaml:"merge_gap_ratio"`
	// AmountCeiling is in minor units; larger amounts are treated as noise.
	AmountCeiling int64 `yaml:"amount_ceiling"`
}

// GitConfig controls git integration. When AutoCommit is set and the
// project is a git repository, every change to the ledger is committed.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a releve.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(name, currency string) *Config {
	if currency == "" {
		currency = "EUR"
	}
	return &Config{
		Project: ProjectConfig{
			Name:     name,
			Currency: currency,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
		},
		Document: DocumentConfig{
			LineTolerance: document.DefaultLineTolerance,
			MergeGapRatio: document.DefaultMergeGapRatio,
			AmountCeiling: document.DefaultAmountCeiling,
		},
		Recurrence: recurring.DefaultConfig(),
		Git: GitConfig{
			AuthorName:  "releve",
			AuthorEmail: "releve@localhost",
		},
		LogLevel: "info",
	}
}

// LoadProject reads <repoRoot>/releve.yaml, loads <repoRoot>/.env when
// present and applies RELEVE_* environment overrides.
func LoadProject(repoRoot string) (*Config, error) {
	cfg, err := Load(filepath.Join(repoRoot, FileName))
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(filepath.Join(repoRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Recurrence = cfg.Recurrence.WithDefaults()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg from RELEVE_* environment variables. Nested keys
// use underscores: RELEVE_STORAGE_DRIVER, RELEVE_RECURRENCE_AMOUNT_VARIANCE.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, dst := range map[string]*string{
		"project.name":     &cfg.Project.Name,
		"project.currency": &cfg.Project.Currency,
		"storage.driver":   &cfg.Storage.Driver,
		"storage.path":     &cfg.Storage.Path,
		"import.account":   &cfg.Import.Account,
		"import.currency":  &cfg.Import.Currency,
		"git.author_name":  &cfg.Git.AuthorName,
		"git.author_email": &cfg.Git.AuthorEmail,
		"log_level":        &cfg.LogLevel,
	} {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	for key, dst := range map[string]*float64{
		"document.line_tolerance":         &cfg.Document.LineTolerance,
		"document.merge_gap_ratio":        &cfg.Document.MergeGapRatio,
		"recurrence.similarity_threshold": &cfg.Recurrence.SimilarityThreshold,
		"recurrence.amount_variance":      &cfg.Recurrence.AmountVariance,
	} {
		if err := override(v, key, dst, cast.ToFloat64E); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*int{
		"recurrence.monthly_window_days":   &cfg.Recurrence.MonthlyWindowDays,
		"recurrence.quarterly_window_days": &cfg.Recurrence.QuarterlyWindowDays,
		"recurrence.annual_window_days":    &cfg.Recurrence.AnnualWindowDays,
	} {
		if err := override(v, key, dst, cast.ToIntE); err != nil {
			return err
		}
	}

	if err := override(v, "git.auto_commit", &cfg.Git.AutoCommit, cast.ToBoolE); err != nil {
		return err
	}
	return override(v, "document.amount_ceiling", &cfg.Document.AmountCeiling, cast.ToInt64E)
}

func override[T any](v *viper.Viper, key string, dst *T, conv func(any) (T, error)) error {
	s := v.GetString(key)
	if s == "" {
		return nil
	}
	val, err := conv(s)
	if err != nil {
		return fmt.Errorf("parsing %s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err)
	}
	*dst = val
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "", DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Recurrence.SimilarityThreshold < 0 || c.Recurrence.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %v outside [0, 1]", c.Recurrence.SimilarityThreshold)
	}
	if c.Recurrence.AmountVariance < 0 {
		return fmt.Errorf("negative amount variance %v", c.Recurrence.AmountVariance)
	}
	return nil
}

// defaultSQLitePath is used when storage.path is empty.
const defaultSQLitePath = "ledger/releve.db"

// SQLitePath returns the database path for the sqlite driver, resolved
// against repoRoot when relative.
func (c *Config) SQLitePath(repoRoot string) string {
	p := c.Storage.Path
	if p == "" {
		p = defaultSQLitePath
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// Currency returns the import currency, falling back to the project
// currency.
func (c *Config) Currency() string {
	if c.Import.Currency != "" {
		return c.Import.Currency
	}
	return c.Project.Currency
}
