// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs from the ledger",
	Long: `History lists recent runs recorded in the ledger. With --run it prints every
source attempt of that run in order; with --stats it shows how often each
source succeeded or failed across all runs.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 10, "number of runs to list (0 for all)")
	historyCmd.Flags().String("run", "", "show the source attempts of this run")
	historyCmd.Flags().Bool("stats", false, "show per-source outcome counts")
	historyCmd.Flags().String("ledger", "", "SQLite ledger path (default paper-fetch.db)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("ledger")
	if path == "" {
		path = viper.GetString("ledger_path")
	}
	if path == "" {
		return fmt.Errorf("no ledger configured")
	}
	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		return showAttempts(cmd, store, runID)
	}
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		return showStats(cmd, store)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded yet")
		return nil
	}

	data := pterm.TableData{{"Run", "Started", "Duration", "Inputs", "Acquired", "Skipped", "Failed", "Cancelled"}}
	for _, r := range runs {
		duration := pterm.Yellow("unfinished")
		if r.Finished() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		data = append(data, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			fmt.Sprint(r.Inputs),
			fmt.Sprint(r.Succeeded),
			fmt.Sprint(r.Skipped),
			fmt.Sprint(r.Failed),
			fmt.Sprint(r.Cancelled),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func showAttempts(cmd *cobra.Command, store *ledger.Store, runID string) error {
	attempts, err := store.Attempts(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		return fmt.Errorf("no attempts recorded for run %s", runID)
	}

	data := pterm.TableData{{"Record", "Source", "Status", "Tries", "Elapsed", "Reason"}}
	for _, a := range attempts {
		status := string(a.Status)
		if a.Blocked {
			status += " (blocked)"
		}
		data = append(data, []string{
			a.RecordID, a.Source, status, fmt.Sprint(a.Attempts), a.Elapsed.String(), a.Reason,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func showStats(cmd *cobra.Command, store *ledger.Store) error {
	stats, err := store.SourceStats(cmd.Context())
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		pterm.Info.Println("No attempts recorded yet")
		return nil
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := []acquire.Status{acquire.StatusSuccess, acquire.StatusNotFound, acquire.StatusTransient, acquire.StatusPermanent}
	header := []string{"Source"}
	for _, s := range statuses {
		header = append(header, string(s))
	}
	data := pterm.TableData{header}
	for _, name := range names {
		row := []string{name}
		for _, s := range statuses {
			row = append(row, fmt.Sprint(stats[name][s]))
		}
		data = append(data, row)
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
