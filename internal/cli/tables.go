package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rowmap/internal/collate"
	"github.com/roach88/rowmap/internal/schema"
	"github.com/roach88/rowmap/internal/store"
)

// TablesResult is the payload of the tables command.
type TablesResult struct {
	Database string      `json:"database" yaml:"database"`
	Tables   []TableInfo `json:"tables" yaml:"tables"`
}

// TableInfo describes one introspected table.
type TableInfo struct {
	Name    string       `json:"name" yaml:"name"`
	Columns []ColumnInfo `json:"columns" yaml:"columns"`
	Indices []IndexInfo  `json:"indices,omitempty" yaml:"indices,omitempty"`
}

// ColumnInfo describes one introspected column.
type ColumnInfo struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	NotNull    bool   `json:"notNull,omitempty" yaml:"notNull,omitempty"`
	PrimaryKey bool   `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
}

// IndexInfo describes one explicitly created index.
type IndexInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// String renders a compact table listing.
func (r TablesResult) String() string {
	var b strings.Builder
	for _, t := range r.Tables {
		fmt.Fprintf(&b, "%s:\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  %s %s", c.Name, c.Type)
			if c.PrimaryKey {
				b.WriteString(" pk")
			}
			if c.NotNull {
				b.WriteString(" notnull")
			}
			b.WriteString("\n")
		}
		for _, ix := range t.Indices {
			fmt.Fprintf(&b, "  index %s (%s)", ix.Name, strings.Join(ix.Columns, ", "))
			if ix.Unique {
				b.WriteString(" unique")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewTablesCommand lists and introspects the tables of a database.
func NewTablesCommand(opts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "tables --db <file>",
		Short: "List tables, columns, and indices of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dbPath, collate.NewTable())
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			rows, err := s.Query(cmd.Context(),
				"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
			if err != nil {
				return WrapExitError(ExitFailure, "list tables", err)
			}
			var names []string
			for rows.Next() {
				var name string
				if err := rows.Scan(&name); err != nil {
					rows.Close()
					return WrapExitError(ExitFailure, "list tables", err)
				}
				names = append(names, name)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return WrapExitError(ExitFailure, "list tables", err)
			}
			rows.Close()

			result := TablesResult{Database: dbPath}
			for _, name := range names {
				t, err := schema.Introspect(cmd.Context(), s.DB(), name)
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("introspect %s", name), err)
				}
				if t == nil {
					continue
				}
				info := TableInfo{Name: t.Name}
				for _, c := range t.Columns {
					info.Columns = append(info.Columns, ColumnInfo{
						Name:       c.Name,
						Type:       c.Type.Affinity(),
						NotNull:    c.NotNull,
						PrimaryKey: c.PrimaryKey,
					})
				}
				for _, ix := range t.Indices {
					info.Indices = append(info.Indices, IndexInfo{
						Name:    ix.Name,
						Columns: ix.Columns,
						Unique:  ix.Unique,
					})
				}
				result.Tables = append(result.Tables, info)
			}

			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			return out.Emit(result)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (required)")
	cmd.MarkFlagRequired("db")
	return cmd
}
