// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich summarizes and scores papers through a chat-completion API,
// one request per paper, with bounded concurrency.
package enrich

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// AIBackend abstracts the model API so tests can supply a mock. Each call
// assesses a single paper.
type AIBackend interface {
	Assess(ctx context.Context, req AssessRequest) (Assessment, error)
}

// AssessRequest carries one paper plus the run's search context, which the
// backend folds into the prompt.
type AssessRequest struct {
	Title     string
	Abstract  string
	Query     []string
	Interests string
}

// Assessment is the model's verdict on one paper: a short bullet summary and
// an integer relevance score from 0 to 10. A fractional relevance value fails
// to decode into the int field, which counts as a parse failure and is
// retried like any other malformed response.
type Assessment struct {
	Bullets []string `json:"summary"`
	Score   int      `json:"relevance"`
}

// BatchSummary holds counts from one enrichment pass.
type BatchSummary struct {
	Enriched int
	Skipped  int
	Failed   int
}

// Total returns the number of records processed.
func (s BatchSummary) Total() int {
	return s.Enriched + s.Skipped + s.Failed
}

// HasFailures reports whether any assessment ran out of attempts.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Enricher runs assessments over a record batch.
type Enricher struct {
	Backend     AIBackend
	MaxAttempts int
	Concurrency int
	Log         zerolog.Logger
}

// EnrichAll assesses every record that has an abstract, keeping at most
// Concurrency requests in flight. Each worker writes into its own slot of the
// slice, so record order is untouched. No record is ever dropped: abstract-less
// records are skipped, and a record whose assessment keeps failing stays
// unrated with the reason recorded on it.
func (e *Enricher) EnrichAll(ctx context.Context, records []types.PaperRecord, query []string, interests string, w io.Writer) BatchSummary {
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var (
		summary BatchSummary
		mu      sync.Mutex // guards summary and w
		wg      sync.WaitGroup
		sem     = make(chan struct{}, concurrency)
	)

	for i := range records {
		rec := &records[i]
		if !rec.HasAbstract() {
			rec.FailureReason = "no abstract available"
			mu.Lock()
			summary.Skipped++
			fmt.Fprintf(w, "skipped %s (no abstract)\n", rec.Title)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(rec *types.PaperRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			assessment, err := e.assessWithRetry(ctx, AssessRequest{
				Title:     rec.Title,
				Abstract:  rec.Abstract,
				Query:     query,
				Interests: interests,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rec.FailureReason = err.Error()
				summary.Failed++
				fmt.Fprintf(w, "failed  %s: %v\n", rec.Title, err)
				e.Log.Warn().Str("title", rec.Title).Err(err).Msg("assessment failed")
				return
			}
			rec.Bullets = assessment.Bullets
			rec.Score = assessment.Score
			rec.Rated = true
			summary.Enriched++
			fmt.Fprintf(w, "enriched %s (score %d)\n", rec.Title, assessment.Score)
		}(rec)
	}

	wg.Wait()
	return summary
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// assessWithRetry calls the backend up to MaxAttempts times with exponential
// backoff. A response that fails validation counts as a failed attempt and is
// retried like a transport error.
func (e *Enricher) assessWithRetry(ctx context.Context, req AssessRequest) (Assessment, error) {
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(math.Pow(2, float64(attempt-2))) * backoffBase
			select {
			case <-ctx.Done():
				return Assessment{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		assessment, err := e.Backend.Assess(ctx, req)
		if err == nil {
			problems := validateAssessment(assessment)
			if len(problems) == 0 {
				return assessment, nil
			}
			err = fmt.Errorf("invalid assessment: %s", strings.Join(problems, "; "))
		}
		lastErr = err
	}
	return Assessment{}, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// validateAssessment checks the model's output against the contract: 3 to 5
// non-empty bullets and a score within [0, 10]. An out-of-range score is
// rejected rather than clamped so the retry can ask the model again.
func validateAssessment(a Assessment) []string {
	var problems []string

	if n := len(a.Bullets); n < 3 || n > 5 {
		problems = append(problems, fmt.Sprintf("got %d summary bullets, want 3 to 5", n))
	}
	for i, b := range a.Bullets {
		if strings.TrimSpace(b) == "" {
			problems = append(problems, fmt.Sprintf("bullet %d is empty", i))
		}
	}
	if a.Score < 0 || a.Score > 10 {
		problems = append(problems, fmt.Sprintf("relevance %d out of range [0,10]", a.Score))
	}

	return problems
}
