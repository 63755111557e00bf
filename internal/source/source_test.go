package source

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// --- mock adapter ---

type mockAdapter struct {
	name    types.SourceName
	records []types.PaperRecord
	err     error
}

func (m *mockAdapter) Name() types.SourceName { return m.name }

func (m *mockAdapter) Fetch(_ context.Context, _ Query) ([]types.PaperRecord, error) {
	return m.records, m.err
}

func testWindow() Query {
	return Query{
		Terms: []string{"crispr"},
		From:  time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC),
	}
}

// --- Query window ---

func TestQueryContains(t *testing.T) {
	q := testWindow()
	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"inside", time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC), true},
		{"first day", time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC), true},
		{"last day", time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), true},
		{"last day with time of day", time.Date(2025, 8, 25, 23, 30, 0, 0, time.UTC), true},
		{"day before", time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC), false},
		{"day after", time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := q.Contains(tt.date); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

// --- Merge ---

func TestMergeByNormalizedTitle(t *testing.T) {
	records := []types.PaperRecord{
		{Title: "CRISPR Screening in  Plants", Source: types.SourceCrossRef},
		{Title: "crispr screening in plants", Source: types.SourceSpringer},
		{Title: "Another Paper", Source: types.SourceSpringer},
	}

	merged, removed := Merge(records)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[0].Source != types.SourceCrossRef {
		t.Errorf("first-seen record should win, got source %q", merged[0].Source)
	}
}

func TestMergeKeepsPunctuationDistinct(t *testing.T) {
	records := []types.PaperRecord{
		{Title: "CRISPR: A Review"},
		{Title: "CRISPR A Review"},
	}

	merged, removed := Merge(records)
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if len(merged) != 2 {
		t.Errorf("titles differing only in punctuation should stay distinct, got %d", len(merged))
	}
}

func TestMergeFillsEmptyFields(t *testing.T) {
	first := types.PaperRecord{
		Title:  "Paper A",
		DOI:    "10.1000/a",
		Source: types.SourceCrossRef,
	}
	second := types.PaperRecord{
		Title:     "paper a",
		DOI:       "10.9999/other",
		Abstract:  "An abstract.",
		Authors:   []string{"Kim, J."},
		URL:       "https://doi.org/10.9999/other",
		Published: time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
		Source:    types.SourceSpringer,
	}

	merged, _ := Merge([]types.PaperRecord{first, second})
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, want 1", len(merged))
	}

	got := merged[0]
	if got.DOI != "10.1000/a" {
		t.Errorf("populated DOI should not be overwritten, got %q", got.DOI)
	}
	if got.Abstract != "An abstract." {
		t.Errorf("empty abstract should be filled from the duplicate")
	}
	if len(got.Authors) != 1 {
		t.Errorf("empty authors should be filled from the duplicate")
	}
	if got.Published.IsZero() {
		t.Errorf("empty date should be filled from the duplicate")
	}
	if got.Source != types.SourceCrossRef {
		t.Errorf("source should stay first-seen, got %q", got.Source)
	}
}

func TestMergeNoDuplicates(t *testing.T) {
	records := []types.PaperRecord{
		{Title: "Paper A"},
		{Title: "Paper B"},
	}

	merged, removed := Merge(records)
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if len(merged) != 2 {
		t.Errorf("len(merged) = %d, want 2", len(merged))
	}
}

func TestMergeIdempotent(t *testing.T) {
	records := []types.PaperRecord{
		{Title: "Paper A", DOI: "10.1000/a", Source: types.SourceCrossRef},
		{Title: "paper  a", Abstract: "filled in", Source: types.SourceSpringer},
		{Title: "Paper B", Source: types.SourceSpringer},
	}

	once, _ := Merge(records)
	twice, removed := Merge(once)
	if removed != 0 {
		t.Errorf("second merge removed %d records, want 0", removed)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second merge changed the set:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"CRISPR Screening in Plants", "crispr screening in plants"},
		{"  CRISPR   Screening \t in\nPlants ", "crispr screening in plants"},
		{"CRISPR: A Review!", "crispr: a review!"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeTitle(tt.input); got != tt.want {
				t.Errorf("normalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// --- FetchAll ---

func TestFetchAllKeepsAdapterOrder(t *testing.T) {
	a := &mockAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
		{Title: "From CrossRef", Source: types.SourceCrossRef},
	}}
	b := &mockAdapter{name: types.SourceSpringer, records: []types.PaperRecord{
		{Title: "From Springer", Source: types.SourceSpringer},
	}}

	var buf bytes.Buffer
	out, err := FetchAll(context.Background(), []Adapter{a, b}, testWindow(), &buf)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(out.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(out.Records))
	}
	if out.Records[0].Source != types.SourceCrossRef || out.Records[1].Source != types.SourceSpringer {
		t.Errorf("records should follow adapter order, got %q then %q",
			out.Records[0].Source, out.Records[1].Source)
	}
}

func TestFetchAllContinuesAfterSourceFailure(t *testing.T) {
	failing := &mockAdapter{name: types.SourceSpringer, err: fmt.Errorf("network down")}
	working := &mockAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
		{Title: "Paper A"}, {Title: "Paper B"},
	}}

	var buf bytes.Buffer
	out, err := FetchAll(context.Background(), []Adapter{working, failing}, testWindow(), &buf)
	if err != nil {
		t.Fatalf("FetchAll should survive a single source failure: %v", err)
	}
	if len(out.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(out.Records))
	}
	if len(out.Warnings) != 1 {
		t.Errorf("len(Warnings) = %d, want 1", len(out.Warnings))
	}
	if !strings.Contains(buf.String(), "warning: source springer failed") {
		t.Errorf("output should warn about the failed source, got %q", buf.String())
	}
}

func TestFetchAllKeepsPartialResultsFromFailedSource(t *testing.T) {
	partial := &mockAdapter{
		name:    types.SourceCrossRef,
		records: []types.PaperRecord{{Title: "Page One Paper"}},
		err:     fmt.Errorf("page 2 timed out"),
	}

	var buf bytes.Buffer
	out, err := FetchAll(context.Background(), []Adapter{partial}, testWindow(), &buf)
	if err != nil {
		t.Fatalf("partial results should keep the run alive: %v", err)
	}
	if len(out.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(out.Records))
	}
	if len(out.Warnings) != 1 {
		t.Errorf("len(Warnings) = %d, want 1", len(out.Warnings))
	}
}

func TestFetchAllAllSourcesFailed(t *testing.T) {
	a := &mockAdapter{name: types.SourceCrossRef, err: fmt.Errorf("boom")}
	b := &mockAdapter{name: types.SourceSpringer, err: fmt.Errorf("bang")}

	var buf bytes.Buffer
	_, err := FetchAll(context.Background(), []Adapter{a, b}, testWindow(), &buf)
	if err == nil || !strings.Contains(err.Error(), "all sources failed") {
		t.Errorf("expected all-sources-failed error, got: %v", err)
	}
}

func TestFetchAllNoAdapters(t *testing.T) {
	var buf bytes.Buffer
	_, err := FetchAll(context.Background(), nil, testWindow(), &buf)
	if err == nil || !strings.Contains(err.Error(), "no sources") {
		t.Errorf("expected no-sources error, got: %v", err)
	}
}

// --- RecoverableError ---

func TestRecoverableErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("HTTP 503")
	err := &RecoverableError{Source: types.SourceCrossRef, Err: inner}

	if !strings.Contains(err.Error(), "crossref") {
		t.Errorf("Error() = %q, should name the source", err.Error())
	}
	if err.Unwrap() != inner {
		t.Errorf("Unwrap should return the inner error")
	}
}
