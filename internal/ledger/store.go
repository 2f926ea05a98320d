package ledger

import (
	"context"
	"slices"
	"sync"

	"github.com/releve-dev/releve/internal/model"
)

// Store is the persistence collaborator. Every method replaces or returns
// the whole value; there is no partial update.
type Store interface {
	GetLedger(ctx context.Context) ([]model.Transaction, error)
	PutLedger(ctx context.Context, txs []model.Transaction) error
	GetIgnoredGroupIDs(ctx context.Context) ([]string, error)
	PutIgnoredGroupIDs(ctx context.Context, ids []string) error
	GetCategoryRules(ctx context.Context) ([]model.CategoryRule, error)
	PutCategoryRules(ctx context.Context, rules []model.CategoryRule) error
}

// MemoryStore keeps everything in process memory. Values are copied on
// the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	ledger  []model.Transaction
	ignored []string
	rules   []model.CategoryRule
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) GetLedger(_ context.Context) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneTransactions(m.ledger), nil
}

func (m *MemoryStore) PutLedger(_ context.Context, txs []model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = cloneTransactions(txs)
	return nil
}

func (m *MemoryStore) GetIgnoredGroupIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.ignored), nil
}

func (m *MemoryStore) PutIgnoredGroupIDs(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored = slices.Clone(ids)
	return nil
}

func (m *MemoryStore) GetCategoryRules(_ context.Context) ([]model.CategoryRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRules(m.rules), nil
}

func (m *MemoryStore) PutCategoryRules(_ context.Context, rules []model.CategoryRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = cloneRules(rules)
	return nil
}

func cloneTransactions(txs []model.Transaction) []model.Transaction {
	if txs == nil {
		return nil
	}
	out := make([]model.Transaction, len(txs))
	for i, tx := range txs {
		tx.Tags = slices.Clone(tx.Tags)
		out[i] = tx
	}
	return out
}

func cloneRules(rules []model.CategoryRule) []model.CategoryRule {
	if rules == nil {
		return nil
	}
	out := make([]model.CategoryRule, len(rules))
	for i, r := range rules {
		r.Keywords = slices.Clone(r.Keywords)
		out[i] = r
	}
	return out
}
