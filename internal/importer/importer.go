package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/model"
)

// Parser converts raw statement bytes into transaction candidates.
type Parser interface {
	Parse(ctx context.Context, data []byte) ([]model.Transaction, error)
	Format() string
}

// DocumentParser adapts document.Parser to the registry.
type DocumentParser struct {
	Doc *document.Parser
}

// Format returns the parser name.
func (p *DocumentParser) Format() string { return "pdf" }

// Parse extracts transactions from a paginated document.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) ([]model.Transaction, error) {
	return p.Doc.Parse(ctx, data)
}

// Registry holds named parsers and the file extensions they claim.
type Registry struct {
	parsers    map[string]Parser
	extensions map[string]Parser
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name   string
	Path   string
	Size   int64
	Format string
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers:    make(map[string]Parser),
		extensions: make(map[string]Parser),
	}
}

// Register adds a parser and the extensions (without dot) it handles.
// Panics on a duplicate format or extension.
func (r *Registry) Register(p Parser, extensions ...string) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if _, ok := r.extensions[ext]; ok {
			panic("duplicate parser extension: " + ext)
		}
		r.extensions[ext] = p
	}
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ForFile returns the parser claiming name's extension, or nil.
func (r *Registry) ForFile(name string) Parser {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return r.extensions[ext]
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry returns a registry with the delimited and PDF parsers.
func DefaultRegistry(currency string, doc *document.Parser) *Registry {
	if doc == nil {
		doc = document.NewParser(currency)
	}
	r := NewRegistry()
	r.Register(&DelimitedParser{Currency: currency}, "csv", "tsv", "txt")
	r.Register(&DocumentParser{Doc: doc}, "pdf")
	return r
}

// importDir is the subdirectory for statements waiting to be imported.
const importDir = "import"

// processedDir is the subdirectory for imported statements.
const processedDir = "import/processed"

// Scan returns files in <repoRoot>/import/ that reg has a parser for,
// sorted by name.
func Scan(repoRoot string, reg *Registry) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := reg.ForFile(e.Name())
		if p == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Size:   info.Size(),
			Format: p.Format(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
