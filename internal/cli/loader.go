package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/catalog/cueload"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/store"
)

// DatabaseSchema is the sub-schema the SQLite tables are mounted under when
// a CUE catalog is given too.
const DatabaseSchema = "main"

// LoadError represents an error that occurred while assembling the catalog.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Session is an assembled root schema plus the resources backing it.
type Session struct {
	Root  catalog.Schema
	Store *store.Store // nil without --db
}

// Close releases the database, if any.
func (s *Session) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// OpenSession assembles the root schema from --catalog and --db.
//
// With only --catalog the CUE catalog is the root. With only --db the
// database's tables are the root. With both, the database is mounted as
// the sub-schema "main" of the CUE root.
func OpenSession(ctx context.Context, opts *RootOptions) (*Session, error) {
	if opts.Catalog == "" && opts.Database == "" {
		return nil, &LoadError{Code: ErrCodeNoCatalog, Message: "no catalog: pass --catalog <dir> or --db <path>"}
	}

	var root *catalog.MapSchema
	if opts.Catalog != "" {
		schema, err := loadCatalog(opts.Catalog)
		if err != nil {
			return nil, err
		}
		root = schema
	}
	if opts.Database == "" {
		return &Session{Root: root}, nil
	}

	st, dbSchema, err := openDatabase(ctx, opts.Database, root == nil)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return &Session{Root: dbSchema, Store: st}, nil
	}

	if root.SubSchema(DatabaseSchema) != nil {
		st.Close()
		return nil, &LoadError{
			Code:    ErrCodeCatalog,
			Message: fmt.Sprintf("catalog already declares schema %q; cannot mount the database there", DatabaseSchema),
		}
	}
	root.AddSubSchema(DatabaseSchema, dbSchema)
	return &Session{Root: root, Store: st}, nil
}

func loadCatalog(dir string) (*catalog.MapSchema, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	schema, err := cueload.LoadDir(dir, ir.NewTypeFactory())
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCatalog, Message: "loading catalog", Err: err}
	}
	slog.Debug("catalog loaded", "dir", dir, "tables", len(schema.TableNames()), "schemas", len(schema.SubSchemaNames()))
	return schema, nil
}

// openDatabase opens an existing database and introspects its tables.
func openDatabase(ctx context.Context, path string, asRoot bool) (*store.Store, catalog.Schema, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeDatabase, Message: "opening database", Err: err}
	}
	name := DatabaseSchema
	if asRoot {
		name = ""
	}
	schema, err := st.Schema(ctx, name)
	if err != nil {
		st.Close()
		return nil, nil, &LoadError{Code: ErrCodeDatabase, Message: "reading database schema", Err: err}
	}
	slog.Debug("database opened", "path", path, "tables", len(schema.TableNames()))
	return st, schema, nil
}

// loadFailure reports a LoadError and returns the command's exit error.
func loadFailure(f *OutputFormatter, err error) error {
	code, msg := ErrCodeGeneric, err.Error()
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
		msg = le.Message
		if le.Err != nil {
			msg = fmt.Sprintf("%s: %v", le.Message, le.Err)
		}
	}
	if outErr := f.Error(code, msg, nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "failed to open catalog", err)
}
