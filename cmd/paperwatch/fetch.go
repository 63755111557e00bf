package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/internal/source"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [term ...]",
	Short: "Query the sources and list matching papers",
	Long: `Fetch queries CrossRef (and Springer when enabled) for the trailing
window and prints the merged records to stdout. No model calls, no email,
no backup; use it to check a query before committing a model budget.

Positional arguments replace the configured search terms for this run.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("json", false, "output records as JSON")
	fetchCmd.Flags().Int("days", 0, "override search.days_to_check for this run")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Search.Query = args
	}
	if days, _ := cmd.Flags().GetInt("days"); days > 0 {
		cfg.Search.DaysToCheck = days
	}
	cfg.Search.MaxPapersForLLM = 0 // fetch never talks to the model
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Log, os.Stderr)
	adapters := buildAdapters(cfg, newHTTPClient(cfg), log)

	from, to := cfg.Search.Window(time.Now())
	q := source.Query{Terms: cfg.Search.Query, From: from, To: to}

	fetched, err := source.FetchAll(cmd.Context(), adapters, q, os.Stderr)
	if err != nil {
		return err
	}
	merged, duplicates := source.Merge(fetched.Records)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(merged)
	}

	if len(merged) == 0 {
		fmt.Println("No papers found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-60s  %-10s  %s\n", "Source", "Title", "Published", "DOI")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for _, r := range merged {
		title := r.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-60s  %-10s  %s\n",
			r.Source, title, r.Published.Format("2006-01-02"), r.DOI)
	}

	fmt.Fprintf(os.Stdout, "\n%d papers (%d duplicates merged)\n", len(merged), duplicates)
	return nil
}
