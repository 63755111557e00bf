// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

const (
	crossrefPageSize   = 100
	crossrefMaxRecords = 1000
)

// CrossRefAdapter queries the CrossRef REST API. Mailto is sent with every
// request; CrossRef routes identified callers to its polite pool.
type CrossRefAdapter struct {
	Client *httputil.Client
	Mailto string
	Log    zerolog.Logger
}

// Name returns the provider identifier.
func (a *CrossRefAdapter) Name() types.SourceName { return types.SourceCrossRef }

// Fetch pages through the works endpoint with a publication-date filter and
// returns every record in the window. On a mid-pagination failure it returns
// the pages gathered so far together with a RecoverableError.
func (a *CrossRefAdapter) Fetch(ctx context.Context, q Query) ([]types.PaperRecord, error) {
	var records []types.PaperRecord

	for offset := 0; offset < crossrefMaxRecords; offset += crossrefPageSize {
		page, total, err := a.fetchPage(ctx, q, offset)
		if err != nil {
			return records, &RecoverableError{Source: types.SourceCrossRef, Err: err}
		}

		for _, item := range page {
			rec, ok := a.toRecord(item, q)
			if !ok {
				continue
			}
			records = append(records, rec)
		}

		a.Log.Debug().Int("offset", offset).Int("items", len(page)).Int("total", total).
			Msg("crossref page fetched")

		if len(page) < crossrefPageSize || offset+crossrefPageSize >= total {
			break
		}
	}

	a.Log.Info().Int("records", len(records)).Msg("crossref fetch complete")
	return records, nil
}

func (a *CrossRefAdapter) fetchPage(ctx context.Context, q Query, offset int) ([]crossrefItem, int, error) {
	params := url.Values{}
	params.Set("query", strings.Join(q.Terms, " "))
	params.Set("filter", fmt.Sprintf("from-pub-date:%s,until-pub-date:%s",
		q.From.Format("2006-01-02"), q.To.Format("2006-01-02")))
	params.Set("rows", strconv.Itoa(crossrefPageSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("select", "title,author,published,DOI,URL,abstract")
	if a.Mailto != "" {
		params.Set("mailto", a.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossrefAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.Client.Do(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("crossref request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("crossref returned HTTP %d", resp.StatusCode)
	}

	var body crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("parsing crossref response: %w", err)
	}
	return body.Message.Items, body.Message.TotalResults, nil
}

// toRecord converts one works item to a PaperRecord. Items without a title or
// a parseable publication date are dropped, and the date is re-checked against
// the window because the API filter is not always exact.
func (a *CrossRefAdapter) toRecord(item crossrefItem, q Query) (types.PaperRecord, bool) {
	if len(item.Title) == 0 || strings.TrimSpace(item.Title[0]) == "" {
		return types.PaperRecord{}, false
	}

	published, ok := crossrefDateOf(item.Published)
	if !ok || !q.Contains(published) {
		return types.PaperRecord{}, false
	}

	pageURL := item.URL
	if item.DOI != "" {
		pageURL = "https://doi.org/" + item.DOI
	}

	var authors []string
	for _, au := range item.Author {
		name := strings.TrimSpace(au.Given + " " + au.Family)
		if name != "" {
			authors = append(authors, name)
		}
	}

	return types.PaperRecord{
		Title:     strings.TrimSpace(item.Title[0]),
		DOI:       item.DOI,
		URL:       pageURL,
		Abstract:  stripJATS(item.Abstract),
		Authors:   authors,
		Published: published,
		Source:    types.SourceCrossRef,
	}, true
}

// crossrefDateOf builds a time from a date-parts array ([year, month, day]).
// Missing month or day default to 1.
func crossrefDateOf(d crossrefDate) (time.Time, bool) {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return time.Time{}, false
	}
	parts := d.DateParts[0]
	year, month, day := parts[0], 1, 1
	if len(parts) > 1 {
		month = parts[1]
	}
	if len(parts) > 2 {
		day = parts[2]
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

var jatsTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripJATS removes the JATS XML markup CrossRef embeds in abstracts and
// collapses the remaining whitespace.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	plain := jatsTagPattern.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(html.UnescapeString(plain)), " ")
}

// CrossRef works response JSON structures.
type crossrefResponse struct {
	Message crossrefMessage `json:"message"`
}

type crossrefMessage struct {
	TotalResults int            `json:"total-results"`
	Items        []crossrefItem `json:"items"`
}

type crossrefItem struct {
	Title     []string         `json:"title"`
	DOI       string           `json:"DOI"`
	URL       string           `json:"URL"`
	Abstract  string           `json:"abstract"`
	Published crossrefDate     `json:"published"`
	Author    []crossrefAuthor `json:"author"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}
