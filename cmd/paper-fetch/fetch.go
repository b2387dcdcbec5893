// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/biblio"
	"github.com/pdiddy/paper-fetch/internal/ledger"
	"github.com/pdiddy/paper-fetch/internal/report"
	"github.com/pdiddy/paper-fetch/internal/sources"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Download PDFs for DOIs, arXiv IDs or a bibliography file",
	Long: `Fetch reads records from --input files (RIS, CSL-JSON/YAML or a plain
identifier list) and from the arguments, then tries the enabled sources for
each record in priority order until one returns a valid PDF.

PDFs are written to the output directory as <year>-<journal>-<author>-<source>.pdf
with metadata YAML under metadata/. The run ends with download_summary.txt,
summary.json and report.html in the same directory. Records already acquired
by an earlier run are skipped unless --no-resume is given.`,
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringSliceP("input", "i", nil, "bibliography file (.ris, .json, .yaml or identifier list); repeatable")
	f.StringP("output", "o", "", "output directory (default papers)")
	f.IntP("concurrency", "j", 0, "records acquired at once (default 3)")
	f.Int("retries", 0, "retries per source after a transient failure (default 2)")
	f.Duration("attempt-timeout", 0, "time limit for one source attempt (default 60s)")
	f.String("proxy", "", "proxy URL for outbound requests (http, https or socks5)")
	f.String("email", "", "contact email for polite APIs (Unpaywall requires one)")
	f.String("ledger", "", "SQLite ledger path (default paper-fetch.db)")
	f.Bool("no-ledger", false, "do not record the run in the ledger")
	f.Bool("no-resume", false, "fetch records even if an earlier run acquired them")
	f.StringSlice("only", nil, "use only these sources (comma-separated names)")
	f.StringSlice("enable", nil, "enable these sources")
	f.StringSlice("disable", nil, "disable these sources")
	f.BoolP("quiet", "q", false, "hide the progress bar")

	viper.BindPFlag("output_dir", f.Lookup("output"))
	viper.BindPFlag("concurrency", f.Lookup("concurrency"))
	viper.BindPFlag("retry.max_retries", f.Lookup("retries"))
	viper.BindPFlag("attempt_timeout", f.Lookup("attempt-timeout"))
	viper.BindPFlag("proxy", f.Lookup("proxy"))
	viper.BindPFlag("email", f.Lookup("email"))
	viper.BindPFlag("ledger_path", f.Lookup("ledger"))

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	records, err := readRecords(cmd, args)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("provide identifiers as arguments or a bibliography file with --input")
	}

	v := viper.GetViper()
	cfg := loadConfig(v)
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); noLedger {
		cfg.LedgerPath = ""
	}
	if noResume, _ := cmd.Flags().GetBool("no-resume"); noResume {
		cfg.Resume = false
	}

	sel := sourceSelection{}
	for _, flag := range []struct {
		name string
		dst  *[]string
	}{{"only", &sel.Only}, {"enable", &sel.Enable}, {"disable", &sel.Disable}} {
		values, _ := cmd.Flags().GetStringSlice(flag.name)
		*flag.dst = splitNames(values)
	}
	cfg.Sources, err = loadSources(v, loadedSecrets, sel, logger)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	validator := acquire.NewValidator(cfg.MinPDFSize)
	validator.RequireTrailer = v.GetBool("require_eof")

	env := sources.Env{HTTP: cfg.HTTPConfig, Validator: validator, Logger: logger}
	descs, err := sources.Registry(env).Build(cfg.Sources)
	if err != nil {
		return err
	}
	for _, name := range riskyEnabled(cfg.Sources) {
		logger.Warn("risky source enabled; make sure its use is lawful where you are", "source", name)
	}

	writer, err := report.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Bookkeeping outlives an interrupt so the ledger and report stay complete.
	bg := context.WithoutCancel(ctx)

	var (
		store *ledger.Store
		runID string
		done  map[string]*types.Paper
	)
	if cfg.LedgerPath != "" {
		store, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err = store.BeginRun(bg, len(records))
		if err != nil {
			return err
		}
		if cfg.Resume {
			done, err = store.Acquired(bg)
			if err != nil {
				return err
			}
		}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	progress := newProgress(len(records), quiet)
	defer progress.Stop()

	runner := &acquire.Runner{
		Acquirer:    acquire.NewAcquirer(validator, logger),
		Concurrency: cfg.Concurrency,
		Skip: func(rec types.Record) (acquire.FinalResult, bool) {
			p := done[strings.ToLower(rec.ID)]
			if p == nil {
				return acquire.FinalResult{}, false
			}
			writer.Remember(p)
			return acquire.FinalResult{Source: p.Source, URL: p.SourceURL}, true
		},
		OnResult: func(i int, res acquire.FinalResult) {
			var paper *types.Paper
			if res.OK() {
				p, err := writer.Save(res)
				if err != nil {
					logger.Error("saving document failed", "record", res.Record.ID, "err", err)
				}
				paper = p
			}
			if store != nil {
				if err := store.Record(bg, runID, res, paper); err != nil {
					logger.Error("ledger write failed", "record", res.Record.ID, "err", err)
				}
			}
			progress.Done(res)
		},
	}

	results := runner.Run(ctx, records, descs, acquire.NewBudget(cfg))
	progress.Stop()

	rep, err := writer.Finish(runID, results)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.FinishRun(bg, runID, rep.Summary); err != nil {
			logger.Error("ledger write failed", "run", runID, "err", err)
		}
	}

	printReport(rep, cfg.OutputDir)

	if ctx.Err() != nil {
		return errors.New("interrupted; rerun the same command to resume")
	}
	if rep.Summary.HasFailures() {
		return fmt.Errorf("%d record(s) not acquired", rep.Summary.Failed+rep.Summary.Cancelled)
	}
	return nil
}

// readRecords loads --input files and arguments into one deduplicated list.
func readRecords(cmd *cobra.Command, args []string) ([]types.Record, error) {
	inputs, _ := cmd.Flags().GetStringSlice("input")

	var parts []biblio.Result
	for _, path := range inputs {
		res, err := biblio.LoadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info("read bibliography", "file", path,
			"records", len(res.Records), "missing_id", res.Missing, "duplicates", res.Duplicates)
		parts = append(parts, res)
	}
	if len(args) > 0 {
		parts = append(parts, biblio.FromArgs(args))
	}

	merged := biblio.Merge(parts...)
	if merged.Missing > 0 {
		logger.Warn("entries without a DOI or identifier were skipped", "count", merged.Missing)
	}
	return merged.Records, nil
}
