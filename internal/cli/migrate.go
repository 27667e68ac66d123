package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rowmap/internal/collate"
	"github.com/roach88/rowmap/internal/schema"
	"github.com/roach88/rowmap/internal/store"
)

// MigrateResult is the payload of the migrate command.
type MigrateResult struct {
	Database string   `json:"database" yaml:"database"`
	Migrated []string `json:"migrated" yaml:"migrated"`
}

// String summarizes the migration in one line per table.
func (r MigrateResult) String() string {
	return fmt.Sprintf("migrated %s: %s", r.Database, strings.Join(r.Migrated, ", "))
}

// NewMigrateCommand applies a manifest to a database, creating or
// reshaping each declared table.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate --db <file> <manifest.cue>",
		Short: "Migrate database tables to match a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := LoadManifest(args[0])
			if err != nil {
				return err
			}

			s, err := store.Open(dbPath, collate.NewTable())
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			result := MigrateResult{Database: dbPath}
			for i := range tables {
				t := &tables[i]
				out.Verbosef("migrating %s", t.Name)
				if err := schema.Migrate(cmd.Context(), s.DB(), t); err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("migrate %s", t.Name), err)
				}
				result.Migrated = append(result.Migrated, t.Name)
			}
			return out.Emit(result)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (required)")
	cmd.MarkFlagRequired("db")
	return cmd
}
