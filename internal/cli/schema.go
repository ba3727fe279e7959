package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gqljoin/internal/schema"
)

func newSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Validate the schema document and list its types",
		Long: `Load and validate the schema document, then list every mapped type
with its table and fields. Exits non-zero when the document is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := opts.loadSnapshot(opts.logger(cmd))
			if err != nil {
				return err
			}
			desc := schema.Describe(snapshot.Registry)
			if opts.Format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), desc)
			}
			return writeSchemaTable(cmd, desc)
		},
	}
}

func writeSchemaTable(cmd *cobra.Command, desc schema.Description) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "fingerprint\t%s\n\n", desc.Fingerprint)
	fmt.Fprintln(tw, "TYPE\tROOT FIELD\tTABLE\tFIELD\tMAPS TO")
	for _, t := range desc.Types {
		root := t.FieldName
		if root == "" {
			root = "-"
		}
		for i, f := range t.Fields {
			target := f.Column
			if f.Kind == "join" {
				target = "-> " + f.Target + " ON " + f.On
			}
			if i == 0 {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Name, root, t.Table, f.Name, target)
				continue
			}
			fmt.Fprintf(tw, "\t\t\t%s\t%s\n", f.Name, target)
		}
	}
	return tw.Flush()
}
