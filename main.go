package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-console/library"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Verbose    bool
	Format     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the "library" command. With no subcommand it starts
// the interactive shell.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Library management console",
		Long:  "Manage staff, catalogue, members and circulation for a small library backed by SQLite.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", library.DefaultConfigPath, "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newShellCommand(opts))
	cmd.AddCommand(newImportBooksCommand(opts))
	cmd.AddCommand(newImportEmployeesCommand(opts))
	cmd.AddCommand(newClassifyCommand(opts))
	cmd.AddCommand(newBorrowsCommand(opts))
	cmd.AddCommand(newCategoriesCommand(opts))

	return cmd
}

// loadConfig applies the command line on top of the file and environment.
func loadConfig(opts *RootOptions) (*library.Config, error) {
	cfg, err := library.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *library.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
}

func openManager(opts *RootOptions) (*library.LibraryManager, *library.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	mgr, err := library.NewLibraryManager(cfg.Database.Path,
		append(library.ConfigOptions(cfg), library.WithLogger(logger))...)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	logger.Debug("database opened", "path", cfg.Database.Path)
	return mgr, cfg, nil
}

func newShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "shell",
		Short:        "Start the interactive menu (default)",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}
}

func runShell(cmd *cobra.Command, opts *RootOptions) error {
	mgr, cfg, err := openManager(opts)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", cfg.Database.Path)
	}
	shell := NewShell(cmd.Context(), mgr, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := shell.Run(); err != nil {
		return fmt.Errorf("critical error: %w", err)
	}
	return nil
}

func newImportBooksCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "import-books [file]",
		Short:        "Bulk import books from a delimited file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := openManager(opts)
			if err != nil {
				return err
			}
			defer mgr.Close()

			path := cfg.Import.BooksCSV
			if len(args) == 1 {
				path = args[0]
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			res, err := mgr.Catalog.ImportBooksCSV(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(res, func(w io.Writer) { printImportResult(w, "books", res) })
		},
	}
}

func newImportEmployeesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "import-employees [file]",
		Short:        "Bulk import employees from a CSV file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := openManager(opts)
			if err != nil {
				return err
			}
			defer mgr.Close()

			path := cfg.Import.EmployeesCSV
			if len(args) == 1 {
				path = args[0]
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			res, err := mgr.Staff.ImportEmployeesCSV(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(res, func(w io.Writer) { printImportResult(w, "employees", res) })
		},
	}
}

func newClassifyCommand(opts *RootOptions) *cobra.Command {
	var in, out, delim string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Assign a category to every row of a books file",
		Long: `Copy a books file, filling the Category and Category ID columns from
keyword rules over title, author and publisher. Rows that already carry a
category keep it. No database is opened.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if in == "" {
				in = cfg.Import.ClassifierIn
			}
			if out == "" {
				out = cfg.Import.ClassifierOut
			}
			d, err := parseDelimiter(delim)
			if err != nil {
				return err
			}
			summary, err := library.ClassifyFile(in, out, d)
			if err != nil {
				return err
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return f.Success(summary, func(w io.Writer) { printClassifySummary(w, out, summary) })
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input file (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default from config)")
	cmd.Flags().StringVar(&delim, "delimiter", ";", "field delimiter")
	return cmd
}

func newBorrowsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "borrows",
		Short:        "List books currently issued",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openManager(opts)
			if err != nil {
				return err
			}
			defer mgr.Close()

			borrows, err := mgr.Circulation.ListActiveBorrows(cmd.Context())
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(borrows, func(w io.Writer) { printActiveBorrows(w, borrows) })
		},
	}
}

func newCategoriesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "categories",
		Short:        "List categories",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openManager(opts)
			if err != nil {
				return err
			}
			defer mgr.Close()

			cats, err := mgr.Catalog.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(cats, func(w io.Writer) { printCategories(w, cats) })
		},
	}
}
