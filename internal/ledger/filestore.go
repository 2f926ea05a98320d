package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/releve-dev/releve/internal/model"
)

const (
	ledgerPath  = "ledger/ledger.csv"
	rulesPath   = "rules/categorization-rules.yaml"
	ignoredPath = "recurring/ignored.yaml"
)

// FileStore persists under a project root: the ledger as CSV, category
// rules and ignored recurring groups as YAML. Writes go through a
// temporary file and a rename.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at repoRoot.
func NewFileStore(repoRoot string) *FileStore {
	return &FileStore{root: repoRoot}
}

type ignoredFile struct {
	Ignored []string `yaml:"ignored"`
}

type rulesFile struct {
	Rules []model.CategoryRule `yaml:"rules"`
}

func (s *FileStore) GetLedger(_ context.Context) ([]model.Transaction, error) {
	path := filepath.Join(s.root, ledgerPath)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txs, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txs, nil
}

func (s *FileStore) PutLedger(_ context.Context, txs []model.Transaction) error {
	var buf bytes.Buffer
	if err := WriteTransactions(&buf, txs); err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}
	return s.write(ledgerPath, buf.Bytes())
}

func (s *FileStore) GetIgnoredGroupIDs(_ context.Context) ([]string, error) {
	var f ignoredFile
	if err := s.readYAML(ignoredPath, &f); err != nil {
		return nil, err
	}
	return f.Ignored, nil
}

func (s *FileStore) PutIgnoredGroupIDs(_ context.Context, ids []string) error {
	return s.writeYAML(ignoredPath, ignoredFile{Ignored: ids})
}

func (s *FileStore) GetCategoryRules(_ context.Context) ([]model.CategoryRule, error) {
	var f rulesFile
	if err := s.readYAML(rulesPath, &f); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

func (s *FileStore) PutCategoryRules(_ context.Context, rules []model.CategoryRule) error {
	return s.writeYAML(rulesPath, rulesFile{Rules: rules})
}

func (s *FileStore) readYAML(rel string, v any) error {
	path := filepath.Join(s.root, rel)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) writeYAML(rel string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", rel, err)
	}
	return s.write(rel, data)
}

func (s *FileStore) write(rel string, data []byte) error {
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", rel, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", rel, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", rel, err)
	}
	return nil
}
