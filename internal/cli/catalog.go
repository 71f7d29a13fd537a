package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// TableInfo describes one resolvable table.
type TableInfo struct {
	Name    string              `json:"name"`
	Columns []catalog.ColumnDef `json:"columns"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the tables a query can reference",
		Long: `List every table reachable from the root schema by its qualified
name, with its row type.

Examples:
  quarry catalog --catalog ./catalog
  quarry catalog --catalog ./catalog --db ./data.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd)
		},
	}
	return cmd
}

func runCatalog(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	session, err := OpenSession(commandContext(cmd), opts)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer session.Close()

	tables, err := catalog.NewReader(session.Root, ir.NewTypeFactory()).Tables()
	if err != nil {
		if outErr := formatter.Error(ErrCodeCatalog, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to list tables", err)
	}

	infos := make([]TableInfo, len(tables))
	for i, t := range tables {
		infos[i] = TableInfo{Name: strings.Join(t.Names, "."), Columns: catalog.ColumnsOf(t.RowType)}
	}
	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No tables.")
		return nil
	}
	for _, t := range infos {
		fmt.Fprintln(w, t.Name)
		for _, c := range t.Columns {
			null := "NOT NULL"
			if c.Nullable {
				null = "NULL"
			}
			fmt.Fprintf(w, "  %-20s %-16s %s\n", c.Name, c.Type, null)
		}
	}
	return nil
}
