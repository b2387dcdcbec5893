// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetch/internal/acquire"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Validate the PDFs in an output directory",
	Long: `Check runs the content validator over every .pdf file in the directory
(default: the configured output directory) and lists files that are not
genuine PDFs, such as saved error pages or truncated downloads. With --clean
the invalid files are removed so the next fetch acquires them again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("clean", false, "delete invalid files")
	rootCmd.AddCommand(checkCmd)
}

// invalidFile is a file that failed validation.
type invalidFile struct {
	Path   string
	Reason string
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := viper.GetString("output_dir")
	if len(args) == 1 {
		dir = args[0]
	}
	clean, _ := cmd.Flags().GetBool("clean")

	v := acquire.NewValidator(viper.GetInt("min_pdf_size"))
	v.RequireTrailer = viper.GetBool("require_eof")

	total, invalid, err := checkDir(dir, v)
	if err != nil {
		return err
	}

	if len(invalid) == 0 {
		pterm.Success.Printf("%d PDF(s) in %s are valid\n", total, dir)
		return nil
	}

	data := pterm.TableData{{"File", "Problem"}}
	for _, f := range invalid {
		data = append(data, []string{filepath.Base(f.Path), f.Reason})
	}
	pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()

	if clean {
		removed := 0
		for _, f := range invalid {
			if err := os.Remove(f.Path); err != nil {
				logger.Error("could not remove invalid file", "file", f.Path, "err", err)
				continue
			}
			removed++
		}
		pterm.Info.Printf("Removed %d invalid file(s)\n", removed)
		return nil
	}
	return fmt.Errorf("%d of %d PDF(s) are invalid", len(invalid), total)
}

// checkDir validates every .pdf file directly under dir.
func checkDir(dir string, v acquire.Validator) (int, []invalidFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	total := 0
	var invalid []invalidFile
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		total++
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			invalid = append(invalid, invalidFile{Path: path, Reason: err.Error()})
			continue
		}
		if err := v.Check(data, ""); err != nil {
			invalid = append(invalid, invalidFile{Path: path, Reason: err.Error()})
		}
	}
	sort.Slice(invalid, func(i, j int) bool { return invalid[i].Path < invalid[j].Path })
	return total, invalid, nil
}
