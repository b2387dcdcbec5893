// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources in the order they are tried",
	Long: `Sources prints the effective source configuration after defaults, the
config file, environment variables and secrets are applied. Credentials are
masked. Use --yaml to print a sources: block for paper-fetch.yaml.`,
	RunE: runSources,
}

func init() {
	sourcesCmd.Flags().Bool("yaml", false, "print the configuration as YAML")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfgs, err := loadSources(viper.GetViper(), loadedSecrets, sourceSelection{}, logger)
	if err != nil {
		return err
	}

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		return dumpSources(cfgs)
	}

	sort.SliceStable(cfgs, func(i, j int) bool { return cfgs[i].Priority < cfgs[j].Priority })

	data := pterm.TableData{{"Priority", "Source", "Enabled", "Risky", "Rate limit", "Credentials"}}
	for _, c := range cfgs {
		enabled := pterm.Red("no")
		if c.Enabled {
			enabled = pterm.Green("yes")
		}
		risky := ""
		if c.Risky {
			risky = pterm.Yellow("risky")
		}
		rateLimit := "-"
		if c.RateLimit > 0 {
			rateLimit = fmt.Sprintf("%.2f/s", c.RateLimit)
		}
		data = append(data, []string{fmt.Sprint(c.Priority), c.Name, enabled, risky, rateLimit, credentials(c)})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func credentials(c types.SourceConfig) string {
	var parts []string
	if c.Email != "" {
		parts = append(parts, "email")
	}
	if c.APIKey != "" {
		parts = append(parts, "api key")
	}
	if n := len(c.Mirrors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d mirror(s)", n))
	}
	return strings.Join(parts, ", ")
}

// dumpSources writes the source list as a sources: mapping with secrets
// masked.
func dumpSources(cfgs []types.SourceConfig) error {
	out := make(map[string]types.SourceConfig, len(cfgs))
	for _, c := range cfgs {
		if c.APIKey != "" {
			c.APIKey = "********"
		}
		out[c.Name] = c
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(map[string]any{"sources": out})
}
