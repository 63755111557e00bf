package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperwatch/internal/backup"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List logged runs, or show one run in full",
	Long: `Runs lists the watch cycles recorded in the run log, newest first.
Pass a run ID to print that run's full result set, including the papers
and their ratings as they were emailed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().String("backup-dir", "", "run log directory (default: backup.dir from config)")
	runsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("backup-dir")
	if dir == "" {
		setDefaults()
		dir = viper.GetString("backup.dir")
	}

	store, err := backup.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if len(args) == 1 {
		snap, err := store.LoadRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatRunDetail(snap, jsonOutput)
	}

	summaries, err := store.Runs(cmd.Context())
	if err != nil {
		return err
	}
	return formatRunList(summaries, jsonOutput)
}

func formatRunList(summaries []backup.RunSummary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No runs logged.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-19s  %-12s  %s\n", "Run", "Date", "Variant", "Papers")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
	for _, s := range summaries {
		fmt.Fprintf(os.Stdout, "%-36s  %-19s  %-12s  %d\n",
			s.RunID, s.Timestamp.Format("2006-01-02 15:04:05"), s.Variant, s.PaperCount)
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(summaries))
	return nil
}

func formatRunDetail(snap backup.Snapshot, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(os.Stdout, "Run:     %s\n", snap.RunID)
	fmt.Fprintf(os.Stdout, "Date:    %s\n", snap.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(os.Stdout, "Query:   %s\n", strings.Join(snap.Query, ", "))
	fmt.Fprintf(os.Stdout, "Window:  %s to %s\n",
		snap.From.Format("2006-01-02"), snap.To.Format("2006-01-02"))
	fmt.Fprintf(os.Stdout, "Variant: %s\n", snap.Variant)
	for _, w := range snap.Warnings {
		fmt.Fprintf(os.Stdout, "Warning: %s\n", w)
	}
	fmt.Fprintln(os.Stdout)

	for i, p := range snap.Papers {
		rating := " -"
		if p.Rated {
			rating = fmt.Sprintf("%2d", p.Score)
		}
		title := p.Title
		if len(title) > 70 {
			title = title[:67] + "..."
		}
		fmt.Fprintf(os.Stdout, "%3d. [%s] %s\n", i+1, rating, title)
		if p.DOI != "" {
			fmt.Fprintf(os.Stdout, "          doi:%s\n", p.DOI)
		}
	}

	fmt.Fprintf(os.Stdout, "\n%d papers\n", len(snap.Papers))
	return nil
}
