// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperwatch pipeline.
package types

import "time"

// SourceName identifies the metadata provider a record came from.
type SourceName string

const (
	SourceCrossRef SourceName = "crossref"
	SourceSpringer SourceName = "springer"
)

// PaperRecord is the canonical unit flowing through the pipeline. Source
// adapters create records, the enrichment stage attaches bullets and a
// score, and nothing mutates a record after ranking.
type PaperRecord struct {
	// Title is the paper title as returned by the source. Its normalized
	// form (lowercased, whitespace-collapsed) is the dedupe key.
	Title string `json:"title" yaml:"title"`

	// DOI is the stable identifier when the source provides one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the outbound link: https://doi.org/<DOI> when a DOI exists,
	// otherwise the provider's landing page.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Abstract is the paper abstract. Empty means enrichment is skipped
	// for this record; the record itself is kept.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Published is the publication date. It must fall inside the trailing
	// search window; it is used for filtering only, not for ranking.
	Published time.Time `json:"published" yaml:"published"`

	// Source records provenance ("crossref" or "springer").
	Source SourceName `json:"source" yaml:"source"`

	// Bullets holds the 3-5 summary points attached by enrichment.
	// Empty until enrichment runs, and stays empty if it fails or is
	// skipped.
	Bullets []string `json:"bullets,omitempty" yaml:"bullets,omitempty"`

	// Score is the integer relevance score in [0,10]. Meaningful only when
	// Rated is true.
	Score int `json:"score" yaml:"score"`

	// Rated reports whether enrichment produced a valid score. A record
	// that exhausted its retries stays unrated rather than being dropped.
	Rated bool `json:"rated" yaml:"rated"`

	// FailureReason describes why enrichment failed, for the backup and
	// the log. Empty on success or when enrichment never ran.
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
}

// HasAbstract reports whether the record carries text to summarize.
func (p PaperRecord) HasAbstract() bool {
	return p.Abstract != ""
}
