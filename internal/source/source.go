// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source queries academic publication APIs for papers published in a
// trailing date window and merges the results into a single deduplicated set.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Adapter fetches recent papers from a single provider. Each provider
// (CrossRef, Springer) implements this interface so the pipeline can treat
// them uniformly.
type Adapter interface {
	Name() types.SourceName
	Fetch(ctx context.Context, q Query) ([]types.PaperRecord, error)
}

// Query holds the search terms and the publication window. All terms must
// match (AND semantics); how that is expressed on the wire is up to each
// adapter.
type Query struct {
	Terms []string
	From  time.Time
	To    time.Time
}

// Contains reports whether a publication date falls inside the window.
// Providers only carry calendar-date precision, so the comparison ignores
// the time of day. Adapters use this to re-check records client-side in
// case a provider ignores its date filter.
func (q Query) Contains(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(dateOnly(q.From)) && !d.After(dateOnly(q.To))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecoverableError marks a source failure the run can survive: the failing
// source contributes whatever it gathered before the error and the remaining
// sources still run.
type RecoverableError struct {
	Source types.SourceName
	Err    error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *RecoverableError) Unwrap() error { return e.Err }

// FetchOutput holds the combined records and per-source failure messages.
type FetchOutput struct {
	Records  []types.PaperRecord
	Warnings []string
}

// FetchAll queries every adapter concurrently and concatenates their results
// in adapter order, so the merge step sees a deterministic sequence no matter
// how the responses interleave. A failing adapter contributes its partial
// results and a warning; the run only fails when every adapter errors and
// nothing at all was fetched.
func FetchAll(ctx context.Context, adapters []Adapter, q Query, w io.Writer) (FetchOutput, error) {
	if len(adapters) == 0 {
		return FetchOutput{}, fmt.Errorf("no sources configured")
	}

	records := make([][]types.PaperRecord, len(adapters))
	errs := make([]error, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			records[i], errs[i] = a.Fetch(ctx, q)
		}(i, a)
	}
	wg.Wait()

	var out FetchOutput
	failed := 0
	for i, a := range adapters {
		if errs[i] != nil {
			failed++
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", a.Name(), errs[i]))
			fmt.Fprintf(w, "warning: source %s failed: %v\n", a.Name(), errs[i])
		}
		out.Records = append(out.Records, records[i]...)
	}

	if failed == len(adapters) && len(out.Records) == 0 {
		return out, fmt.Errorf("all sources failed: %s", strings.Join(out.Warnings, "; "))
	}
	return out, nil
}

// Merge deduplicates records by normalized title. The first occurrence wins;
// later duplicates only fill in fields the first occurrence is missing. The
// second return value is the number of duplicates removed.
func Merge(records []types.PaperRecord) ([]types.PaperRecord, int) {
	seen := make(map[string]int) // normalized title → index in merged
	var merged []types.PaperRecord
	removed := 0

	for _, r := range records {
		key := normalizeTitle(r.Title)
		if key != "" {
			if idx, ok := seen[key]; ok {
				mergeInto(&merged[idx], r)
				removed++
				continue
			}
			seen[key] = len(merged)
		}
		merged = append(merged, r)
	}
	return merged, removed
}

// mergeInto fills empty fields of dst from src. Populated fields of the
// first-seen record are never overwritten.
func mergeInto(dst *types.PaperRecord, src types.PaperRecord) {
	if dst.DOI == "" && src.DOI != "" {
		dst.DOI = src.DOI
	}
	if dst.URL == "" && src.URL != "" {
		dst.URL = src.URL
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if dst.Published.IsZero() && !src.Published.IsZero() {
		dst.Published = src.Published
	}
}

// normalizeTitle lowercases the title and collapses runs of whitespace to a
// single space. Punctuation is kept, so "CRISPR: a review" and "CRISPR a
// review" stay distinct.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
