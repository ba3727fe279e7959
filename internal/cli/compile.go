package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gqljoin/internal/compiler"
	"gqljoin/internal/planner"
)

var errNoQuery = errors.New("no query given: pass it as an argument, with --query-file, or on stdin")

type compileOptions struct {
	*RootOptions
	Operation string
	QueryFile string
	MaxDepth  int
	MaxJoins  int
}

func (o *compileOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Operation, "operation", "o", "", "operation to compile when the document has several")
	cmd.Flags().StringVarP(&o.QueryFile, "query-file", "q", "", "read the query from this file")
	cmd.Flags().IntVar(&o.MaxDepth, "max-depth", 8, "maximum table nesting depth (0 = unlimited)")
	cmd.Flags().IntVar(&o.MaxJoins, "max-joins", 32, "maximum LEFT JOINs per statement (0 = unlimited)")
}

type compileOutput struct {
	*planner.CompiledQuery
	OperationHash     string `json:"operation_hash,omitempty"`
	SchemaFingerprint string `json:"schema_fingerprint"`
}

type errorOutput struct {
	Error compiler.ErrorInfo `json:"error"`
}

func runCompile(cmd *cobra.Command, opts *compileOptions, args []string) error {
	query, err := readQuery(cmd, opts, args)
	if err != nil {
		return err
	}

	logger := opts.logger(cmd)
	snapshot, err := opts.loadSnapshot(logger)
	if err != nil {
		return err
	}

	comp, err := compiler.New(compiler.Config{
		Source: compiler.StaticRegistry{Reg: snapshot.Registry},
		Limits: limitsFromFlags(opts.MaxDepth, opts.MaxJoins),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	result, err := comp.Compile(cmd.Context(), query, opts.Operation)
	if err != nil {
		return reportCompileError(cmd, opts.Format, err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == FormatJSON {
		return writeJSON(out, compileOutput{
			CompiledQuery:     result.Query,
			OperationHash:     result.OperationHash,
			SchemaFingerprint: result.Fingerprint,
		})
	}
	_, err = fmt.Fprintln(out, result.Query.SQL)
	return err
}

// readQuery prefers the argument, then --query-file, then a non-terminal stdin.
func readQuery(cmd *cobra.Command, opts *compileOptions, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		if opts.QueryFile != "" {
			return "", usageErrorf("a query argument and --query-file are mutually exclusive")
		}
		return args[0], nil
	}
	if opts.QueryFile != "" {
		data, err := os.ReadFile(opts.QueryFile)
		if err != nil {
			return "", &ExitError{Code: ExitCommandError, Err: fmt.Errorf("read query file: %w", err)}
		}
		return string(data), nil
	}

	in := cmd.InOrStdin()
	forced := len(args) == 1
	if f, ok := in.(*os.File); ok && !forced && term.IsTerminal(int(f.Fd())) {
		return "", &ExitError{Code: ExitCommandError, Err: errNoQuery}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", &ExitError{Code: ExitCommandError, Err: fmt.Errorf("read query from stdin: %w", err)}
	}
	return string(data), nil
}

func reportCompileError(cmd *cobra.Command, format string, err error) error {
	info := compiler.Classify(err)
	exitErr := &ExitError{Code: ExitFailure, Err: err, Reported: true}
	if info.Internal {
		exitErr.Code = ExitCommandError
	}

	if format == FormatJSON {
		if writeErr := writeJSON(cmd.OutOrStdout(), errorOutput{Error: info}); writeErr != nil {
			return writeErr
		}
		return exitErr
	}

	var b strings.Builder
	fmt.Fprintf(&b, "error [%s]: %s", info.Code, info.Message)
	if len(info.Path) > 0 {
		fmt.Fprintf(&b, " (at %s)", strings.Join(info.Path, "."))
	}
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), b.String())
	return exitErr
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
