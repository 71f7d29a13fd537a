package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Schema string // dotted path of the CUE schema to copy; empty is the root
}

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Database string         `json:"database"`
	Tables   map[string]int `json:"tables"` // rows copied per table
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Copy CUE-declared tables into a SQLite database",
		Long: `Create a table in the SQLite database for every table of one CUE
schema and copy its rows. The database is created if it does not
exist. Column types are written as declared, so the tables read back
with the same row types.

Examples:
  quarry load --catalog ./catalog --db ./data.db
  quarry load --catalog ./catalog --db ./data.db --schema hr`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema to copy (dotted path, default root)")

	return cmd
}

func runLoad(opts *LoadOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	ctx := commandContext(cmd)

	if opts.Catalog == "" || opts.Database == "" {
		if err := formatter.Error(ErrCodeNoCatalog, "load needs both --catalog and --db", nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, "load needs both --catalog and --db")
	}

	root, err := loadCatalog(opts.Catalog)
	if err != nil {
		return loadFailure(formatter, err)
	}
	var src catalog.Schema = root
	if opts.Schema != "" {
		for _, name := range strings.Split(opts.Schema, ".") {
			src = src.SubSchema(name)
			if src == nil {
				return loadFailure(formatter, &LoadError{
					Code:    ErrCodeNotFound,
					Message: fmt.Sprintf("catalog has no schema %s", opts.Schema),
				})
			}
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return loadFailure(formatter, &LoadError{Code: ErrCodeDatabase, Message: "opening database", Err: err})
	}
	defer st.Close()

	result := LoadResult{Database: opts.Database, Tables: map[string]int{}}
	dc := catalog.NewDataContext(root)
	tf := ir.NewTypeFactory()
	for _, name := range src.TableNames() {
		n, err := copyTable(ctx, st, dc, tf, name, src.Table(name))
		if err != nil {
			if outErr := formatter.Error(ErrCodeLoadFailed, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "load failed", err)
		}
		result.Tables[name] = n
		formatter.VerboseLog("copied %s: %d row(s)", name, n)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d table(s) into %s\n", len(result.Tables), opts.Database)
	return nil
}

// copyTable creates name in st with t's row type and inserts t's rows.
func copyTable(ctx context.Context, st *store.Store, dc catalog.DataContext, tf *ir.TypeFactory, name string, t catalog.Table) (int, error) {
	rowType, err := t.RowType(tf)
	if err != nil {
		return 0, fmt.Errorf("table %s: %w", name, err)
	}
	if err := st.CreateTable(ctx, name, catalog.ColumnsOf(rowType)); err != nil {
		return 0, err
	}

	it, err := t.Access().Open(ctx, dc)
	if err != nil {
		return 0, fmt.Errorf("table %s: %w", name, err)
	}
	defer it.Close()
	var rows []ir.Row
	for it.Next() {
		rows = append(rows, it.Row().Clone())
	}
	if err := it.Err(); err != nil {
		return 0, fmt.Errorf("table %s: %w", name, err)
	}

	if err := st.Insert(ctx, name, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
