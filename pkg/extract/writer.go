package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blockberries/wiremsg/pkg/schema"
)

// Extractor extracts catalogs from Go packages.
type Extractor struct {
	loader   *PackageLoader
	warnings []string
}

// NewExtractor creates a new extractor that loads packages relative to dir.
func NewExtractor(dir string) *Extractor {
	return &Extractor{
		loader: NewPackageLoader(dir),
	}
}

// ExtractorConfig configures the extraction process.
type ExtractorConfig struct {
	Config     *Config  // Type collector configuration
	Patterns   []string // Go package patterns to load
	OutputPath string   // Output file path (empty for Stdout)
	Package    string   // Schema package name; defaults to the first Go package name
	Stdout     io.Writer
}

// Warnings returns the warnings from the last Extract call.
func (e *Extractor) Warnings() []string {
	return e.warnings
}

// Extract builds a resolved catalog from Go packages.
func (e *Extractor) Extract(cfg *ExtractorConfig) (*schema.Catalog, error) {
	e.warnings = nil

	pkgs, err := e.loader.Load(cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages matched patterns: %v", cfg.Patterns)
	}

	collectorCfg := cfg.Config
	if collectorCfg == nil {
		collectorCfg = DefaultConfig()
	}
	collector := NewTypeCollector(pkgs, collectorCfg)
	if err := collector.Collect(); err != nil {
		return nil, fmt.Errorf("failed to collect types: %w", err)
	}

	packageName := cfg.Package
	if packageName == "" {
		packageName = pkgs[0].Name
	}

	builder := NewSchemaBuilder(collector.Types(), collector.Enums())
	cat, err := builder.Build(packageName)
	e.warnings = builder.Warnings()
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// ExtractAndWrite extracts a catalog and writes it as a .proto file to
// cfg.OutputPath, or to cfg.Stdout (os.Stdout if nil) when no path is set.
func (e *Extractor) ExtractAndWrite(cfg *ExtractorConfig) error {
	cat, err := e.Extract(cfg)
	if err != nil {
		return err
	}

	out := cfg.Stdout
	if out == nil {
		out = os.Stdout
	}
	if cfg.OutputPath != "" {
		dir := filepath.Dir(cfg.OutputPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return schema.NewWriter().WriteCatalog(out, cat)
}

// ExtractToString extracts a catalog from packages under dir and returns
// its .proto rendering.
func ExtractToString(dir string, patterns []string, config *Config) (string, error) {
	extractor := NewExtractor(dir)
	cat, err := extractor.Extract(&ExtractorConfig{
		Config:   config,
		Patterns: patterns,
	})
	if err != nil {
		return "", err
	}
	return schema.Format(cat), nil
}
