// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperwatch/internal/backup"
	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/internal/mail"
	"github.com/pdiddy/paperwatch/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [term ...]",
	Short: "Fetch, rate, and email the paper digest",
	Long: `Run executes one full watch cycle: query CrossRef (and Springer when
enabled) for papers published in the trailing window, merge duplicates,
summarize and rate each paper with the configured model, and email the
ranked report. The run is written to backup.dir before the email is sent,
so a delivery failure never loses results.

Positional arguments replace the configured search terms for this run.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "build and back up the report without sending email")
	runCmd.Flags().Int("days", 0, "override search.days_to_check for this run")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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
	if err := cfg.Validate(); err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if !dryRun {
		if err := cfg.ValidateDelivery(); err != nil {
			return err
		}
	}

	log := logging.New(cfg.Log, os.Stderr)
	client := newHTTPClient(cfg)

	deps := pipeline.Deps{
		Adapters: buildAdapters(cfg, client, log),
		Backend:  buildBackend(cfg),
		Log:      log,
	}
	if !dryRun {
		deps.Sender = mail.NewSender(cfg.Email)
	}

	store, err := backup.NewStore(cfg.Backup.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: run log unavailable: %v\n", err)
	} else {
		defer store.Close()
		deps.Store = store
	}

	result, err := pipeline.Run(cmd.Context(), cfg, deps, os.Stdout)
	if err != nil {
		var dErr *mail.DeliveryError
		if errors.As(err, &dErr) && result != nil && result.BackupPath != "" {
			return fmt.Errorf("%v (results preserved in %s)", err, result.BackupPath)
		}
		return err
	}
	return nil
}
