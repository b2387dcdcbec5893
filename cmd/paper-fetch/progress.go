// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/report"
)

// progress shows a progress bar advanced from batch workers.
type progress struct {
	mu  sync.Mutex
	bar *pterm.ProgressbarPrinter
}

func newProgress(total int, quiet bool) *progress {
	p := &progress{}
	if quiet || total == 0 || !term.IsTerminal(int(os.Stdout.Fd())) {
		return p
	}
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Fetching").
		WithRemoveWhenDone(true).
		Start()
	if err == nil {
		p.bar = bar
	}
	return p
}

// Done advances the bar for one finished record.
func (p *progress) Done(res acquire.FinalResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.UpdateTitle(res.Record.ID)
	p.bar.Increment()
}

// Stop removes the bar. Safe to call more than once.
func (p *progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.Stop()
	p.bar = nil
}

func printReport(rep report.Report, outDir string) {
	s := rep.Summary

	pterm.DefaultSection.Println("Results")
	data := pterm.TableData{{"#", "Record", "Status", "Source / reason"}}
	for _, e := range rep.Entries {
		detail := e.Source
		if e.Status == report.StatusFailed || e.Status == report.StatusCancelled {
			detail = lastReason(e.Outcomes)
		}
		data = append(data, []string{fmt.Sprint(e.Index), e.Record.ID, statusColor(e.Status), detail})
	}
	pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()

	if len(s.BySource) > 0 {
		pterm.DefaultSection.WithLevel(2).Println("Acquired by source")
		names := make([]string, 0, len(s.BySource))
		for name := range s.BySource {
			names = append(names, name)
		}
		sort.Strings(names)
		bySource := pterm.TableData{{"Source", "Count"}}
		for _, name := range names {
			bySource = append(bySource, []string{name, fmt.Sprint(s.BySource[name])})
		}
		pterm.DefaultTable.WithHasHeader().WithData(bySource).Render()
	}

	pterm.Println()
	msg := fmt.Sprintf("%d/%d acquired (%.1f%%): %d new, %d from earlier runs, %d failed, %d cancelled",
		s.Succeeded+s.Skipped, s.Total, s.SuccessRate(), s.Succeeded, s.Skipped, s.Failed, s.Cancelled)
	if s.HasFailures() {
		pterm.Warning.Println(msg)
	} else {
		pterm.Success.Println(msg)
	}
	pterm.Info.Printf("Report: %s\n", filepath.Join(outDir, report.ReportHTML))
}

func lastReason(outcomes []acquire.Outcome) string {
	if len(outcomes) == 0 {
		return "no source tried"
	}
	return outcomes[len(outcomes)-1].String()
}

func statusColor(status string) string {
	switch status {
	case report.StatusAcquired:
		return pterm.Green(status)
	case report.StatusSkipped:
		return pterm.Gray(status)
	case report.StatusFailed:
		return pterm.Red(status)
	default:
		return pterm.Yellow(status)
	}
}
