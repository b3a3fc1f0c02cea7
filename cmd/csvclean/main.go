// Command csvclean cleans CSV files from the command line: values are
// trimmed, missing fields become empty and exact duplicate rows are dropped.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/export"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "csvclean",
		Short:         "Clean CSV files: trim values, fill missing fields, drop duplicate rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(stderr, logLevel, "text"))
		},
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newCleanCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newCleanCmd() *cobra.Command {
	var formatName string
	var output string

	cmd := &cobra.Command{
		Use:   "clean <file|->",
		Short: "Clean a CSV file and write the result",
		Long: `Clean a CSV file. The first row is the header row.

Every value is trimmed, fields missing from short rows become empty, and rows
that are exact duplicates of an earlier row are dropped. Row order is kept.
Use "-" to read from standard input.

Example: csvclean clean people.csv --format xlsx --output people_cleaned.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			return runClean(cmd, args[0], format, output)
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "csv", "Output format: csv, json or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: standard output)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "csvclean %s\n", version)
		},
	}
}

func runClean(cmd *cobra.Command, path string, format export.Format, output string) error {
	up, closeInput, err := openInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	defer closeInput()

	service := core.NewService(core.Options{MaxConcurrent: 1})
	res, err := service.CleanUpload(cmd.Context(), up)
	if err != nil {
		slog.Debug("clean failed", "file", up.FileName, "error", err)
		return fmt.Errorf("%s: %s", up.FileName, core.FormatUserError(err))
	}

	if err := writeOutput(cmd.OutOrStdout(), output, format, res.Table); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d rows in, %d rows out, %d duplicates removed\n",
		up.FileName, res.Table.InputRows, len(res.Table.Rows), res.Table.Duplicates())
	return nil
}

// openInput opens path, or stdin for "-", as an Upload. Stdin has no name to
// judge by, so it is declared as CSV.
func openInput(stdin io.Reader, path string) (core.Upload, func(), error) {
	if path == "-" {
		return core.Upload{FileName: "stdin", ContentType: "text/csv", Size: -1, Body: stdin}, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return core.Upload{}, nil, fmt.Errorf("open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return core.Upload{}, nil, fmt.Errorf("stat input: %w", err)
	}

	up := core.Upload{
		FileName: filepath.Base(path),
		Size:     info.Size(),
		Body:     f,
	}
	return up, func() { f.Close() }, nil
}

func writeOutput(stdout io.Writer, path string, format export.Format, table core.Table) error {
	if path == "" {
		return export.Write(stdout, format, table)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Write(f, format, table); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
