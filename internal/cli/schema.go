package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// SchemaResult is the payload of the schema command.
type SchemaResult struct {
	Tables []TableSQL `json:"tables" yaml:"tables"`
}

// TableSQL carries the DDL for one manifest table.
type TableSQL struct {
	Name    string   `json:"name" yaml:"name"`
	Create  string   `json:"create" yaml:"create"`
	Indices []string `json:"indices,omitempty" yaml:"indices,omitempty"`
}

// String renders the DDL as executable SQL text.
func (r SchemaResult) String() string {
	var b strings.Builder
	for _, t := range r.Tables {
		b.WriteString(t.Create)
		b.WriteString(";\n")
		for _, ix := range t.Indices {
			b.WriteString(ix)
			b.WriteString(";\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewSchemaCommand prints the DDL a manifest would produce, without
// touching any database.
func NewSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <manifest.cue>",
		Short: "Print the SQL schema for a table manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := LoadManifest(args[0])
			if err != nil {
				return err
			}
			var result SchemaResult
			for i := range tables {
				t := &tables[i]
				ts := TableSQL{Name: t.Name, Create: t.CreateSQL()}
				for _, ix := range t.Indices {
					ts.Indices = append(ts.Indices, t.CreateIndexSQL(ix))
				}
				result.Tables = append(result.Tables, ts)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			return out.Emit(result)
		},
	}
}
