package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/paperwatch/internal/backup"
	"github.com/pdiddy/paperwatch/internal/enrich"
	"github.com/pdiddy/paperwatch/internal/mail"
	"github.com/pdiddy/paperwatch/internal/report"
	"github.com/pdiddy/paperwatch/internal/source"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// --- test doubles ---

var testNow = time.Date(2025, 8, 25, 7, 0, 0, 0, time.UTC)

type stubAdapter struct {
	name    types.SourceName
	records []types.PaperRecord
	err     error
}

func (a *stubAdapter) Name() types.SourceName { return a.name }

func (a *stubAdapter) Fetch(ctx context.Context, q source.Query) ([]types.PaperRecord, error) {
	return a.records, a.err
}

// stubBackend scores papers from a title lookup. EnrichAll calls Assess
// concurrently, so the counter is guarded.
type stubBackend struct {
	mu     sync.Mutex
	calls  int
	scores map[string]int
	err    error
}

func (b *stubBackend) Assess(ctx context.Context, req enrich.AssessRequest) (enrich.Assessment, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.err != nil {
		return enrich.Assessment{}, b.err
	}
	return enrich.Assessment{
		Bullets: []string{"first", "second", "third"},
		Score:   b.scores[req.Title],
	}, nil
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type stubSender struct {
	calls   int
	subject string
	body    string
	err     error
}

func (s *stubSender) Send(subject, htmlBody string) error {
	s.calls++
	s.subject = subject
	s.body = htmlBody
	return s.err
}

func testConfig(t *testing.T) types.Config {
	t.Helper()
	return types.Config{
		Search: types.SearchConfig{
			Query:           []string{"crispr"},
			DaysToCheck:     7,
			MaxPapersForLLM: 10,
		},
		API: types.APIConfig{
			Mailto:      "lab@example.org",
			MaxAttempts: 1,
		},
		Email: types.EmailConfig{
			RecipientEmail: "reader@example.org",
			SubjectPrefix:  "PaperWatch",
		},
		Backup: types.BackupConfig{Dir: t.TempDir()},
	}
}

func paper(title string, daysAgo int, src types.SourceName) types.PaperRecord {
	return types.PaperRecord{
		Title:     title,
		Abstract:  "We studied " + title + ".",
		Published: testNow.AddDate(0, 0, -daysAgo),
		Source:    src,
	}
}

func testDeps(adapters []source.Adapter, backend enrich.AIBackend, sender Sender) Deps {
	return Deps{
		Adapters: adapters,
		Backend:  backend,
		Sender:   sender,
		Now:      func() time.Time { return testNow },
		NewRunID: func() string { return "run-test" },
	}
}

// --- tests ---

func TestRunEnrichedEndToEnd(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("Base Editing at Scale", 2, types.SourceCrossRef),
			paper("Prime Editing Review", 3, types.SourceCrossRef),
		}},
		&stubAdapter{name: types.SourceSpringer, records: []types.PaperRecord{
			paper("base  editing at scale", 2, types.SourceSpringer),
		}},
	}
	backend := &stubBackend{scores: map[string]int{
		"Base Editing at Scale": 4,
		"Prime Editing Review":  9,
	}}
	sender := &stubSender{}

	var buf bytes.Buffer
	result, err := Run(context.Background(), testConfig(t), testDeps(adapters, backend, sender), &buf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RunID != "run-test" {
		t.Errorf("RunID = %q", result.RunID)
	}
	if !result.Delivered || sender.calls != 1 {
		t.Errorf("delivered = %v, sends = %d", result.Delivered, sender.calls)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2 (duplicate merged before enrichment)", backend.callCount())
	}
	if want := "PaperWatch: crispr (2025-08-25)"; sender.subject != want {
		t.Errorf("subject = %q, want %q", sender.subject, want)
	}

	recs := result.Report.Records
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Title != "Prime Editing Review" || recs[1].Title != "Base Editing at Scale" {
		t.Errorf("ranked order = [%s, %s]", recs[0].Title, recs[1].Title)
	}
	if result.Summary.Enriched != 2 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if !strings.Contains(sender.body, "Prime Editing Review") {
		t.Error("body missing paper title")
	}
	if !strings.Contains(buf.String(), "found 2 papers (1 duplicates merged)") {
		t.Errorf("progress output missing merge line:\n%s", buf.String())
	}

	snap, err := backup.ReadYAML(result.BackupPath)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if snap.RunID != "run-test" || len(snap.Papers) != 2 {
		t.Errorf("snapshot = %s with %d papers", snap.RunID, len(snap.Papers))
	}
	if snap.Variant != "enriched" {
		t.Errorf("snapshot variant = %q", snap.Variant)
	}
}

func TestRunWritesRunLog(t *testing.T) {
	store, err := backup.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("One Result", 1, types.SourceCrossRef),
		}},
	}
	deps := testDeps(adapters, &stubBackend{scores: map[string]int{"One Result": 5}}, &stubSender{})
	deps.Store = store

	if _, err := Run(context.Background(), testConfig(t), deps, io.Discard); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := store.Runs(context.Background())
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-test" || runs[0].PaperCount != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunRateLimited(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("A", 1, types.SourceCrossRef),
			paper("B", 2, types.SourceCrossRef),
			paper("C", 3, types.SourceCrossRef),
		}},
	}
	backend := &stubBackend{}
	sender := &stubSender{}
	cfg := testConfig(t)
	cfg.Search.MaxPapersForLLM = 2

	result, err := Run(context.Background(), cfg, testDeps(adapters, backend, sender), io.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if backend.callCount() != 0 {
		t.Errorf("backend called %d times during rate-limited run", backend.callCount())
	}
	if result.Report.Variant != report.VariantRateLimited {
		t.Errorf("variant = %v", result.Report.Variant)
	}
	if want := "PaperWatch: LLM Skipped - 3 papers found (crispr) (2025-08-25)"; sender.subject != want {
		t.Errorf("subject = %q, want %q", sender.subject, want)
	}
}

func TestRunOptOut(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("A", 1, types.SourceCrossRef),
		}},
	}
	backend := &stubBackend{}
	sender := &stubSender{}
	cfg := testConfig(t)
	cfg.Search.MaxPapersForLLM = 0

	result, err := Run(context.Background(), cfg, testDeps(adapters, backend, sender), io.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if backend.callCount() != 0 {
		t.Errorf("backend called %d times with enrichment disabled", backend.callCount())
	}
	if result.Report.Variant != report.VariantOptOut {
		t.Errorf("variant = %v", result.Report.Variant)
	}
	if !strings.Contains(sender.body, "Titles Only") {
		t.Error("body missing titles-only heading")
	}
}

func TestRunNoPapersSkipsDelivery(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef},
		&stubAdapter{name: types.SourceSpringer},
	}
	sender := &stubSender{}

	result, err := Run(context.Background(), testConfig(t), testDeps(adapters, &stubBackend{}, sender), io.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sender.calls != 0 {
		t.Errorf("sender called %d times for empty run", sender.calls)
	}
	if result.Report != nil || result.BackupPath != "" {
		t.Errorf("empty run produced report %v, backup %q", result.Report, result.BackupPath)
	}
}

func TestRunAllSourcesFailed(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, err: errors.New("down")},
		&stubAdapter{name: types.SourceSpringer, err: errors.New("also down")},
	}

	_, err := Run(context.Background(), testConfig(t), testDeps(adapters, &stubBackend{}, &stubSender{}), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "all sources failed") {
		t.Errorf("err = %v, want all sources failed", err)
	}
}

func TestRunPartialSourceFailure(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("Survivor", 1, types.SourceCrossRef),
		}},
		&stubAdapter{name: types.SourceSpringer, err: errors.New("quota exceeded")},
	}
	sender := &stubSender{}

	result, err := Run(context.Background(), testConfig(t),
		testDeps(adapters, &stubBackend{scores: map[string]int{"Survivor": 5}}, sender), io.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Delivered {
		t.Error("partial failure should still deliver")
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "springer") {
		t.Errorf("warnings = %v", result.Warnings)
	}
	if !strings.Contains(sender.body, "Degraded run") {
		t.Error("body missing degraded-run notice")
	}
}

func TestRunEnrichmentFailureDegrades(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("Stubborn Paper", 1, types.SourceCrossRef),
		}},
	}
	sender := &stubSender{}

	result, err := Run(context.Background(), testConfig(t),
		testDeps(adapters, &stubBackend{err: errors.New("model offline")}, sender), io.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !result.Delivered {
		t.Error("enrichment failure should not block delivery")
	}
	if result.Summary.Failed != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	rec := result.Report.Records[0]
	if rec.Rated || rec.FailureReason == "" {
		t.Errorf("record = %+v, want unrated with failure reason", rec)
	}
	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "could not be assessed") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want assessment warning", result.Warnings)
	}
}

func TestRunDeliveryFailureAfterBackup(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("Saved Anyway", 1, types.SourceCrossRef),
		}},
	}
	sender := &stubSender{err: &mail.DeliveryError{Err: errors.New("smtp down")}}

	result, err := Run(context.Background(), testConfig(t),
		testDeps(adapters, &stubBackend{scores: map[string]int{"Saved Anyway": 5}}, sender), io.Discard)

	var dErr *mail.DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("err = %v, want DeliveryError", err)
	}
	if result == nil || result.Delivered {
		t.Fatalf("result = %+v", result)
	}
	if result.BackupPath == "" {
		t.Error("backup should be written before the delivery attempt")
	}
	if _, err := backup.ReadYAML(result.BackupPath); err != nil {
		t.Errorf("snapshot unreadable after failed delivery: %v", err)
	}
}

func TestRunDryRunSkipsDelivery(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{name: types.SourceCrossRef, records: []types.PaperRecord{
			paper("Kept Local", 1, types.SourceCrossRef),
		}},
	}
	deps := testDeps(adapters, &stubBackend{scores: map[string]int{"Kept Local": 5}}, nil)

	result, err := Run(context.Background(), testConfig(t), deps, io.Discard)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Delivered {
		t.Error("nil sender should not deliver")
	}
	if result.BackupPath == "" {
		t.Error("dry run should still write the backup")
	}
}
