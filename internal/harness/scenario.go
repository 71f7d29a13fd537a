package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/prepare"
)

// Scenario is one query checked against an inline catalog.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects where the catalog's tables live: "memory" (default)
	// or "sqlite", an in-memory SQLite database mounted as the root schema.
	Backend string `yaml:"backend,omitempty"`

	// Catalog declares the schemas and tables the query runs against.
	Catalog CatalogDecl `yaml:"catalog"`

	// SQL is the query text.
	SQL string `yaml:"sql"`

	// Expect describes the prepared query's columns and rows, or the error
	// preparation fails with.
	Expect Expect `yaml:"expect"`

	// Golden compares the EXPLAIN listing against testdata/golden/{name}.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// CatalogDecl is a schema: tables plus nested schemas.
type CatalogDecl struct {
	Tables  map[string]TableDecl   `yaml:"tables,omitempty"`
	Schemas map[string]CatalogDecl `yaml:"schemas,omitempty"`
}

// TableDecl declares one table. Row values are loosely typed and coerced to
// the declared column types; decimals may be quoted to keep every digit.
type TableDecl struct {
	Columns []catalog.ColumnDef `yaml:"columns"`
	Rows    [][]any             `yaml:"rows,omitempty"`
}

// Expect specifies the outcome of preparing and executing the query.
type Expect struct {
	// Columns are the expected column labels, in order.
	Columns []string `yaml:"columns,omitempty"`

	// Types are the expected column type names (e.g. "INTEGER"), in order.
	Types []string `yaml:"types,omitempty"`

	// Rows are the expected rows rendered as text; NULL is "NULL".
	Rows [][]string `yaml:"rows,omitempty"`

	// Ordered makes row comparison positional. Otherwise rows compare as
	// a multiset.
	Ordered bool `yaml:"ordered,omitempty"`

	// Error is the expected prepare error code, e.g. "RESOLUTION_FAILED".
	Error string `yaml:"error,omitempty"`
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

var errorCodes = map[string]bool{
	string(prepare.CodeParse):       true,
	string(prepare.CodeResolution):  true,
	string(prepare.CodeValidation):  true,
	string(prepare.CodeTranslation): true,
	string(prepare.CodePlanning):    true,
	string(prepare.CodeCompilation): true,
	string(prepare.CodeExecution):   true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir whose base name
// matches filter (a filepath.Match pattern; empty matches everything),
// sorted by path.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(filepath.Base(path), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.SQL) == "" {
		return fmt.Errorf("sql is required")
	}

	switch s.Backend {
	case "", BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if s.Backend == BackendSQLite && len(s.Catalog.Schemas) > 0 {
		return fmt.Errorf("the sqlite backend holds a single flat schema; nested schemas are not supported")
	}

	if err := validateCatalog("catalog", s.Catalog); err != nil {
		return err
	}

	e := s.Expect
	if e.Error != "" {
		if !errorCodes[e.Error] {
			return fmt.Errorf("expect.error: unknown error code %q", e.Error)
		}
		if len(e.Columns) > 0 || len(e.Rows) > 0 || len(e.Types) > 0 {
			return fmt.Errorf("expect: error excludes columns, types and rows")
		}
		if s.Golden {
			return fmt.Errorf("golden requires a query that prepares")
		}
	}
	if len(e.Types) > 0 && len(e.Columns) > 0 && len(e.Types) != len(e.Columns) {
		return fmt.Errorf("expect: %d types for %d columns", len(e.Types), len(e.Columns))
	}
	for i, row := range e.Rows {
		if len(e.Columns) > 0 && len(row) != len(e.Columns) {
			return fmt.Errorf("expect.rows[%d]: %d values for %d columns", i, len(row), len(e.Columns))
		}
	}
	return nil
}

func validateCatalog(path string, c CatalogDecl) error {
	for name, t := range c.Tables {
		if len(t.Columns) == 0 {
			return fmt.Errorf("%s.tables.%s: columns are required", path, name)
		}
		for i, col := range t.Columns {
			if col.Name == "" || col.Type == "" {
				return fmt.Errorf("%s.tables.%s.columns[%d]: name and type are required", path, name, i)
			}
		}
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return fmt.Errorf("%s.tables.%s.rows[%d]: %d values for %d columns", path, name, i, len(row), len(t.Columns))
			}
		}
	}
	for name, sub := range c.Schemas {
		if err := validateCatalog(path+".schemas."+name, sub); err != nil {
			return err
		}
	}
	return nil
}
