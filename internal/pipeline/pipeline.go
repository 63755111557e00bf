// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one complete watch cycle: fetch from all sources,
// merge duplicates, assess relevance, rank, render the report, back it up,
// and deliver it. The cycle is a straight line; each stage hands a record
// slice to the next.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/paperwatch/internal/backup"
	"github.com/pdiddy/paperwatch/internal/enrich"
	"github.com/pdiddy/paperwatch/internal/report"
	"github.com/pdiddy/paperwatch/internal/source"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// Sender delivers a rendered report.
type Sender interface {
	Send(subject, htmlBody string) error
}

// Deps carries the pipeline's collaborators. Adapters and Backend are
// required for a normal run; a nil Sender skips delivery and a nil Store
// skips the SQLite run log. Now and NewRunID default to the wall clock and
// random UUIDs.
type Deps struct {
	Adapters []source.Adapter
	Backend  enrich.AIBackend
	Sender   Sender
	Store    *backup.Store
	Now      func() time.Time
	NewRunID func() string
	Log      zerolog.Logger
}

// Result summarizes a completed run.
type Result struct {
	RunID      string
	Report     *report.Report
	Summary    enrich.BatchSummary
	Warnings   []string
	BackupPath string
	Delivered  bool
}

// Run executes the watch cycle under cfg. Progress lines go to w. The
// returned error is fatal: every source failed with nothing gathered, the
// report could not be rendered, or delivery failed after the backup was
// written. Source failures with partial results and backup write failures
// degrade the run instead of ending it; they surface as warnings in the
// result and the report.
func Run(ctx context.Context, cfg types.Config, d Deps, w io.Writer) (*Result, error) {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	newRunID := d.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	runID := newRunID()
	generatedAt := now()
	from, to := cfg.Search.Window(generatedAt)
	log := d.Log.With().Str("run_id", runID).Logger()

	q := source.Query{Terms: cfg.Search.Query, From: from, To: to}
	log.Info().
		Strs("query", q.Terms).
		Str("from", from.Format("2006-01-02")).
		Str("to", to.Format("2006-01-02")).
		Msg("starting run")
	fmt.Fprintf(w, "searching for %q from %s to %s\n",
		q.Terms, from.Format("2006-01-02"), to.Format("2006-01-02"))

	fetched, err := source.FetchAll(ctx, d.Adapters, q, w)
	if err != nil {
		return nil, err
	}
	warnings := fetched.Warnings

	merged, duplicates := source.Merge(fetched.Records)
	fmt.Fprintf(w, "found %d papers (%d duplicates merged)\n", len(merged), duplicates)

	if len(merged) == 0 {
		log.Info().Msg("no papers in window, nothing to send")
		fmt.Fprintln(w, "no papers found, skipping report")
		return &Result{RunID: runID, Warnings: warnings}, nil
	}

	variant := report.SelectVariant(len(merged), cfg.Search.MaxPapersForLLM)

	var summary enrich.BatchSummary
	switch variant {
	case report.VariantEnriched:
		enricher := &enrich.Enricher{
			Backend:     d.Backend,
			MaxAttempts: cfg.API.MaxAttempts,
			Concurrency: cfg.API.Concurrency,
			Log:         log,
		}
		summary = enricher.EnrichAll(ctx, merged, cfg.Search.Query, cfg.Search.ResearcherInterests, w)
		fmt.Fprintf(w, "\nenriched: %d, skipped: %d, failed: %d\n",
			summary.Enriched, summary.Skipped, summary.Failed)
		if summary.HasFailures() {
			warnings = append(warnings,
				fmt.Sprintf("%d of %d papers could not be assessed", summary.Failed, summary.Total()))
		}
	case report.VariantRateLimited:
		log.Warn().Int("count", len(merged)).Int("max", cfg.Search.MaxPapersForLLM).
			Msg("paper count exceeds enrichment cap")
		fmt.Fprintf(w, "skipping enrichment: %d papers exceed the cap of %d\n",
			len(merged), cfg.Search.MaxPapersForLLM)
	case report.VariantOptOut:
		fmt.Fprintln(w, "enrichment disabled, reporting titles only")
	}

	report.Rank(merged)

	rep := &report.Report{
		RunID:       runID,
		Query:       cfg.Search.Query,
		Interests:   cfg.Search.ResearcherInterests,
		From:        from,
		To:          to,
		GeneratedAt: generatedAt,
		Variant:     variant,
		Records:     merged,
		Warnings:    warnings,
		MaxForLLM:   cfg.Search.MaxPapersForLLM,
	}

	html, err := rep.HTML()
	if err != nil {
		return nil, err
	}
	subject := rep.Subject(cfg.Email.SubjectPrefix)

	// The backup is written before any delivery attempt so a dead SMTP
	// server cannot lose the run.
	snap := backup.Snapshot{
		RunID:     runID,
		Timestamp: generatedAt,
		Query:     cfg.Search.Query,
		Interests: cfg.Search.ResearcherInterests,
		From:      from,
		To:        to,
		Variant:   variant.String(),
		Warnings:  warnings,
		Papers:    merged,
	}
	result := &Result{RunID: runID, Report: rep, Summary: summary, Warnings: warnings}

	if path, err := backup.WriteYAML(cfg.Backup.Dir, snap); err != nil {
		log.Warn().Err(err).Msg("snapshot write failed")
		fmt.Fprintf(w, "warning: snapshot write failed: %v\n", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("snapshot write failed: %v", err))
	} else {
		result.BackupPath = path
		fmt.Fprintf(w, "backup written to %s\n", path)
	}

	if d.Store != nil {
		if err := d.Store.SaveRun(ctx, snap); err != nil {
			log.Warn().Err(err).Msg("run log write failed")
			fmt.Fprintf(w, "warning: run log write failed: %v\n", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("run log write failed: %v", err))
		}
	}

	if d.Sender == nil {
		fmt.Fprintln(w, "delivery skipped")
		return result, nil
	}

	if err := d.Sender.Send(subject, html); err != nil {
		return result, err
	}
	result.Delivered = true
	log.Info().Str("subject", subject).Int("papers", len(merged)).Msg("report delivered")
	fmt.Fprintf(w, "report sent to %s\n", cfg.Email.RecipientEmail)

	return result, nil
}
