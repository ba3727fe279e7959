// Package cli implements the gqljoin command line: compile a GraphQL
// selection against a schema document and print the SQL.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"gqljoin/internal/logging"
	"gqljoin/internal/naming"
	"gqljoin/internal/planner"
	"gqljoin/internal/schemarefresh"
)

// Output formats.
const (
	FormatSQL  = "sql"
	FormatJSON = "json"
)

var validFormats = []string{FormatSQL, FormatJSON}

// RootOptions holds flags shared by every command.
type RootOptions struct {
	SchemaPath      string
	Format          string
	LogLevel        string
	PluralOverrides map[string]string
}

// NewRootCommand returns the gqljoin command. The root command compiles;
// subcommands inspect the schema and print the version.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}
	compileOpts := &compileOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "gqljoin [query]",
		Short: "Compile a GraphQL selection into one SQL SELECT",
		Long: `Compile a GraphQL selection into a single SQL SELECT with LEFT JOINs.

The query is taken from the argument, from --query-file, or from stdin
when stdin is not a terminal. Use "-" as the argument to force stdin.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return usageErrorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, compileOpts, args)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.SchemaPath, "schema", "s", "schema.yaml", "schema document (YAML or JSON)")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", FormatSQL, "output format (sql|json)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")
	cmd.PersistentFlags().StringToStringVar(&opts.PluralOverrides, "plural", nil, "plural overrides for default table names (singular=plural)")
	compileOpts.bindFlags(cmd)

	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newVersionCommand(version))
	return cmd
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "gqljoin %s\n", version)
			return err
		},
	}
}

func (o *RootOptions) logger(cmd *cobra.Command) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  o.LogLevel,
		Format: "text",
		Output: cmd.ErrOrStderr(),
	})
}

func (o *RootOptions) loadSnapshot(logger *logging.Logger) (*schemarefresh.Snapshot, error) {
	snapshot, err := schemarefresh.BuildSnapshot(schemarefresh.BuildSnapshotConfig{
		Path:   o.SchemaPath,
		Naming: naming.Config{PluralOverrides: o.PluralOverrides},
		Logger: logger.Logger,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Err: err}
	}
	return snapshot, nil
}

// limitsFromFlags treats negative values as unlimited.
func limitsFromFlags(maxDepth, maxJoins int) planner.Limits {
	return planner.Limits{MaxDepth: max(maxDepth, 0), MaxJoins: max(maxJoins, 0)}
}
