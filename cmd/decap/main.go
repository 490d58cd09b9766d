// Command decap finds the fields a project's history decapsulates: private
// fields that later gained public accessors.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"decap/analyze"
	"decap/detect"
	"decap/history"
	"decap/internal/config"
	"decap/internal/gitio"
	"decap/internal/ingest"
	"decap/internal/logging"
	"decap/internal/report"
	"decap/internal/scope"
	"decap/internal/store"
	"decap/parse"
	"decap/transaction"
)

// Version is set at build time.
var Version = "dev"

// errNotPersisted is returned when analyzing an empty store.
var errNotPersisted = errors.New("history was not persisted")

var (
	cfgFile       string
	dbPath        string
	logLevel      string
	accessorNames bool

	ingestRepo string
	ingestRef  string

	analyzeHistory string
	analyzeFormat  string
	analyzeSave    bool

	runsFormat string
	runsDelete bool
)

// Loaded by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "decap",
	Short:             "decap - find fields decapsulated over a project's history",
	Long:              `decap replays a project's history as structural transactions and reports every field that was private when a public accessor for it appeared.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Append the first-parent Git history of a repository to the store",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Append a YAML or JSON history file to the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the stored history to a YAML or JSON file (.zst to compress)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report the decapsulated fields of the stored history",
	Args:  cobra.NoArgs,
	RunE:  runAnalyze,
}

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List saved analyses, or show or delete one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./decap.yaml)")
	flags.StringVar(&dbPath, "db", "", "History store path")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&accessorNames, "accessor-names", false, "Also match get/set/is accessors by name")

	ingestCmd.Flags().StringVar(&ingestRepo, "repo", ".", "Git repository path")
	ingestCmd.Flags().StringVar(&ingestRef, "ref", "HEAD", "Revision whose first-parent history is ingested")

	analyzeCmd.Flags().StringVar(&analyzeHistory, "history", "", "Analyze a history file instead of the store")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "Output format: text, json, yaml")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Save the result as a run in the store")

	runsCmd.Flags().StringVar(&runsFormat, "format", "text", "Output format for a single run: text, json, yaml")
	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "Delete the given run")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := config.New()
	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"db":             "db",
		"log.level":      "log-level",
		"accessor_names": "accessor-names",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	logger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return nil
}

func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	repo, err := gitio.Open(ingestRepo)
	if err != nil {
		return err
	}
	sc, err := scope.New(cfg.Include, cfg.Exclude)
	if err != nil {
		return fmt.Errorf("building scope: %w", err)
	}

	txs, err := ingest.New(repo, parse.NewParser(), sc, logger).Transactions(ingestRef)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", ingestRef, err)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	stored, err := s.History()
	if err != nil {
		return err
	}
	fresh, err := newSuffix(stored, txs)
	if err != nil {
		return err
	}
	if err := s.Append(fresh...); err != nil {
		return fmt.Errorf("storing history: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d new transactions (%d total)\n", len(fresh), len(stored)+len(fresh))
	return nil
}

// newSuffix returns the transactions of ingested that follow the stored
// history. The stored history must be a prefix of ingested.
func newSuffix(stored, ingested []*transaction.Transaction) ([]*transaction.Transaction, error) {
	if len(stored) > len(ingested) {
		return nil, fmt.Errorf("store holds %d transactions but the ref has only %d", len(stored), len(ingested))
	}
	for i, tx := range stored {
		if ingested[i].ID() != tx.ID() {
			return nil, fmt.Errorf("stored history diverges at transaction %d (%s, ref has %s)", i, tx.ID(), ingested[i].ID())
		}
	}
	return ingested[len(stored):], nil
}

func runImport(cmd *cobra.Command, args []string) error {
	txs, err := history.ReadFile(args[0])
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Append(txs...); err != nil {
		return fmt.Errorf("storing history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions\n", len(txs))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	txs, err := s.History()
	if err != nil {
		return err
	}
	if err := history.WriteFile(args[0], txs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(txs), args[0])
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(analyzeFormat)
	if err != nil {
		return err
	}

	var s *store.Store
	if analyzeHistory == "" || analyzeSave {
		if s, err = openStore(); err != nil {
			return err
		}
		defer s.Close()
	}

	var txs []*transaction.Transaction
	if analyzeHistory != "" {
		if txs, err = history.ReadFile(analyzeHistory); err != nil {
			return err
		}
	} else {
		if txs, err = s.History(); err != nil {
			return err
		}
		if len(txs) == 0 {
			return errNotPersisted
		}
	}

	detector := detect.NewDetector(
		detect.WithPublicModifiers(cfg.PublicModifiers...),
		detect.WithAccessorNames(cfg.AccessorNames),
	)
	result, err := analyze.Analyze(txs, analyze.WithLogger(logger), analyze.WithDetector(detector))
	if err != nil {
		return err
	}

	if err := report.Write(cmd.OutOrStdout(), report.Fields(result), format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if analyzeSave {
		id, err := s.SaveRun(result, len(txs))
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", id)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if runsDelete {
		if len(args) != 1 {
			return errors.New("--delete needs a run id")
		}
		if err := s.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	}

	if len(args) == 1 {
		format, err := report.ParseFormat(runsFormat)
		if err != nil {
			return err
		}
		entries, err := s.RunEntries(args[0])
		if err != nil {
			return err
		}
		return report.Write(cmd.OutOrStdout(), report.FieldsFromEntries(entries), format)
	}

	runs, err := s.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved runs.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tTRANSACTIONS\tFIELDS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.ID, r.CreatedAt.Format(time.RFC3339), r.Transactions, r.Fields)
	}
	return w.Flush()
}
