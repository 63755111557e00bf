// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders the result set into the HTML email body and the
// matching subject line.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Variant selects which report body is rendered.
type Variant int

const (
	// VariantEnriched is the full report with summaries and scores.
	VariantEnriched Variant = iota
	// VariantRateLimited is the titles-only report sent when the batch
	// exceeds the enrichment cap.
	VariantRateLimited
	// VariantOptOut is the titles-only report sent when enrichment is
	// disabled by configuration.
	VariantOptOut
)

func (v Variant) String() string {
	switch v {
	case VariantRateLimited:
		return "rate-limited"
	case VariantOptOut:
		return "opt-out"
	default:
		return "enriched"
	}
}

// SelectVariant decides the report variant from the merged record count and
// the configured enrichment cap. A cap of zero means enrichment is opted out;
// a batch strictly larger than a positive cap is rate-limited.
func SelectVariant(count, maxForLLM int) Variant {
	switch {
	case maxForLLM == 0:
		return VariantOptOut
	case count > maxForLLM:
		return VariantRateLimited
	default:
		return VariantEnriched
	}
}

// Report carries everything the templates need for one run.
type Report struct {
	RunID       string
	Query       []string
	Interests   string
	From        time.Time
	To          time.Time
	GeneratedAt time.Time
	Variant     Variant
	Records     []types.PaperRecord
	Warnings    []string
	MaxForLLM   int
}

// QueryLine joins the query terms for display.
func (r *Report) QueryLine() string {
	return strings.Join(r.Query, ", ")
}

// Subject builds the email subject for the report's variant.
func (r *Report) Subject(prefix string) string {
	date := r.To.Format("2006-01-02")
	if r.Variant == VariantRateLimited {
		return fmt.Sprintf("%s: LLM Skipped - %d papers found (%s) (%s)",
			prefix, len(r.Records), r.QueryLine(), date)
	}
	return fmt.Sprintf("%s: %s (%s)", prefix, r.QueryLine(), date)
}

// HTML renders the report body for the selected variant.
func (r *Report) HTML() (string, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, r.view()); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

// Score band colors, plus gray for unrated records.
const (
	colorLow     = "#e74c3c"
	colorMid     = "#f39c12"
	colorHigh    = "#27ae60"
	colorUnrated = "#95a5a6"
)

// scoreColor maps a record to its rating badge color: red below 4, orange
// below 7, green otherwise.
func scoreColor(rec types.PaperRecord) string {
	switch {
	case !rec.Rated:
		return colorUnrated
	case rec.Score < 4:
		return colorLow
	case rec.Score < 7:
		return colorMid
	default:
		return colorHigh
	}
}

// reportView is the template payload derived from a Report.
type reportView struct {
	Heading     string
	Query       string
	DateFrom    string
	DateTo      string
	GeneratedAt string
	RunID       string
	Count       int
	MaxForLLM   int
	RateLimited bool
	TitlesOnly  bool
	Warnings    []string
	Interests   string
	Papers      []paperView
}

type paperView struct {
	Title         string
	URL           string
	Rated         bool
	Score         int
	Color         string
	Bullets       []string
	FailureReason string
}

func (r *Report) view() reportView {
	v := reportView{
		Heading:     "PaperWatch Results",
		Query:       r.QueryLine(),
		DateFrom:    r.From.Format("2006-01-02"),
		DateTo:      r.To.Format("2006-01-02"),
		GeneratedAt: r.GeneratedAt.Format("2006-01-02 15:04:05"),
		RunID:       r.RunID,
		Count:       len(r.Records),
		MaxForLLM:   r.MaxForLLM,
		RateLimited: r.Variant == VariantRateLimited,
		TitlesOnly:  r.Variant != VariantEnriched,
		Warnings:    r.Warnings,
		Interests:   r.Interests,
	}
	if v.RateLimited {
		v.Heading = "PaperWatch Results - LLM Processing Skipped"
	}

	for _, rec := range r.Records {
		v.Papers = append(v.Papers, paperView{
			Title:         rec.Title,
			URL:           rec.URL,
			Rated:         rec.Rated,
			Score:         rec.Score,
			Color:         scoreColor(rec),
			Bullets:       rec.Bullets,
			FailureReason: rec.FailureReason,
		})
	}
	return v
}

var reportTmpl = template.Must(template.New("report").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; margin: 20px; }
  h1 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
  h2 { color: #34495e; margin-top: 30px; }
  .paper { margin-bottom: 30px; padding: 15px; border: 1px solid #ecf0f1; border-radius: 5px; }
  .title { font-size: 18px; font-weight: bold; color: #2c3e50; margin-bottom: 10px; }
  .title a { color: #2c3e50; text-decoration: none; border-bottom: 1px dotted #3498db; }
  .interest { background-color: #95a5a6; color: white; padding: 3px 8px; border-radius: 3px; font-size: 12px; margin-bottom: 10px; display: inline-block; }
  .bullet-points { margin-left: 20px; }
  .bullet-points li { margin-bottom: 5px; line-height: 1.4; }
  .summary { margin-top: 15px; }
  .failure { margin-top: 15px; color: #e74c3c; }
  .warning { background-color: #f39c12; color: white; padding: 15px; border-radius: 5px; margin: 20px 0; }
  .query-info { background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
  .paper-list { margin: 20px 0; }
  .paper-title { margin: 10px 0; padding: 8px; background-color: #ecf0f1; border-radius: 3px; }
  .paper-title a { color: #2c3e50; text-decoration: none; }
  .footer { margin-top: 30px; padding-top: 15px; border-top: 1px solid #ecf0f1; font-size: 12px; color: #7f8c8d; }
</style>
</head>
<body>
<h1>{{.Heading}}</h1>
{{if .RateLimited}}
<div class="warning">
  <strong>LLM Processing Skipped</strong><br>
  Found {{.Count}} papers, which exceeds the configured limit of {{.MaxForLLM}} papers for LLM processing.<br>
  To enable LLM processing, either reduce the search scope or increase the 'max_papers_for_llm' value in your configuration.
</div>
{{end}}
{{if .Warnings}}
<div class="warning">
  <strong>Degraded run</strong><br>
  {{range .Warnings}}{{.}}<br>{{end}}
</div>
{{end}}
<div class="query-info">
  <strong>Search Query:</strong> {{.Query}}<br>
  <strong>Date Range:</strong> {{.DateFrom}} to {{.DateTo}}<br>
  <strong>Papers Found:</strong> {{.Count}}{{if .RateLimited}}<br>
  <strong>LLM Processing Limit:</strong> {{.MaxForLLM}}{{end}}
</div>
{{if .TitlesOnly}}
<h2>Found Papers (Titles Only)</h2>
<div class="paper-list">
{{range .Papers}}  <div class="paper-title">{{if .URL}}<a href="{{.URL}}" target="_blank">{{.Title}}</a>{{else}}{{.Title}}{{end}}</div>
{{end}}</div>
{{else}}
{{range .Papers}}<div class="paper">
  <div class="title">{{if .URL}}<a href="{{.URL}}" target="_blank">{{.Title}}</a>{{else}}{{.Title}}{{end}}</div>
  {{if .Rated}}<div class="interest" style="background-color: {{.Color}};">Interest Rating: {{.Score}}/10</div>{{else}}<div class="interest">Interest Rating: N/A</div>{{end}}
  {{if .Bullets}}<div class="summary"><strong>Key Points:</strong></div>
  <ul class="bullet-points">
  {{range .Bullets}}  <li>{{.}}</li>
  {{end}}</ul>
  {{else if .FailureReason}}<div class="failure">{{.FailureReason}}</div>
  {{else}}<div class="summary">Summary not available</div>
  {{end}}
</div>
{{end}}
{{end}}
<div class="footer">
  Generated by PaperWatch on {{.GeneratedAt}} (run {{.RunID}}){{if .Interests}}<br>
  <strong>Researcher interests used for rating:</strong> {{.Interests}}{{end}}{{if .RateLimited}}<br>
  LLM processing was skipped to prevent excessive API usage.{{end}}
</div>
</body>
</html>
`))
