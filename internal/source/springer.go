// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paperwatch/internal/httputil"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// springerAPIBase is the Springer Nature metadata endpoint. Declared as a var
// so tests can substitute an httptest server.
var springerAPIBase = "https://api.springernature.com/meta/v2/json"

const (
	springerPageSize   = 100
	springerMaxRecords = 1000
)

// SpringerAdapter queries the Springer Nature Meta API. With an empty APIKey
// the adapter is disabled and Fetch returns no records and no error.
type SpringerAdapter struct {
	Client *httputil.Client
	APIKey string
	Log    zerolog.Logger
}

// Name returns the provider identifier.
func (a *SpringerAdapter) Name() types.SourceName { return types.SourceSpringer }

// Fetch pages through the Meta API with a date-constrained query. On a
// mid-pagination failure it returns the pages gathered so far together with a
// RecoverableError.
func (a *SpringerAdapter) Fetch(ctx context.Context, q Query) ([]types.PaperRecord, error) {
	if a.APIKey == "" {
		a.Log.Debug().Msg("springer disabled, no api key")
		return nil, nil
	}

	var records []types.PaperRecord

	for start := 1; start <= springerMaxRecords; start += springerPageSize {
		page, err := a.fetchPage(ctx, q, start)
		if err != nil {
			return records, &RecoverableError{Source: types.SourceSpringer, Err: err}
		}

		for _, item := range page {
			rec, ok := a.toRecord(item, q)
			if !ok {
				continue
			}
			records = append(records, rec)
		}

		a.Log.Debug().Int("start", start).Int("items", len(page)).Msg("springer page fetched")

		if len(page) < springerPageSize {
			break
		}
	}

	a.Log.Info().Int("records", len(records)).Msg("springer fetch complete")
	return records, nil
}

func (a *SpringerAdapter) fetchPage(ctx context.Context, q Query, start int) ([]springerRecord, error) {
	params := url.Values{}
	params.Set("q", springerQuery(q))
	params.Set("p", strconv.Itoa(springerPageSize))
	params.Set("s", strconv.Itoa(start))
	params.Set("api_key", a.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, springerAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("springer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("springer returned HTTP %d", resp.StatusCode)
	}

	var body springerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing springer response: %w", err)
	}
	return body.Records, nil
}

// springerQuery builds the q parameter: every term quoted and ANDed, plus
// datefrom/dateto constraints for the window.
func springerQuery(q Query) string {
	quoted := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		quoted = append(quoted, strconv.Quote(t))
	}
	return fmt.Sprintf("%s datefrom:%s dateto:%s",
		strings.Join(quoted, " AND "),
		q.From.Format("2006-01-02"), q.To.Format("2006-01-02"))
}

// toRecord converts one Meta API record to a PaperRecord. Records without a
// title or a parseable publication date are dropped, and the date is
// re-checked against the window.
func (a *SpringerAdapter) toRecord(item springerRecord, q Query) (types.PaperRecord, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return types.PaperRecord{}, false
	}

	published, err := time.Parse("2006-01-02", item.PublicationDate)
	if err != nil || !q.Contains(published) {
		return types.PaperRecord{}, false
	}

	pageURL := ""
	if item.DOI != "" {
		pageURL = "https://doi.org/" + item.DOI
	} else if len(item.URL) > 0 {
		pageURL = item.URL[0].Value
	}

	var authors []string
	for _, c := range item.Creators {
		if c.Creator != "" {
			authors = append(authors, c.Creator)
		}
	}

	return types.PaperRecord{
		Title:     title,
		DOI:       item.DOI,
		URL:       pageURL,
		Abstract:  strings.TrimSpace(item.Abstract),
		Authors:   authors,
		Published: published,
		Source:    types.SourceSpringer,
	}, true
}

// Springer Meta API response JSON structures.
type springerResponse struct {
	Records []springerRecord `json:"records"`
}

type springerRecord struct {
	Title           string            `json:"title"`
	DOI             string            `json:"doi"`
	Abstract        string            `json:"abstract"`
	PublicationDate string            `json:"publicationDate"`
	URL             []springerURL     `json:"url"`
	Creators        []springerCreator `json:"creators"`
}

type springerURL struct {
	Format string `json:"format"`
	Value  string `json:"value"`
}

type springerCreator struct {
	Creator string `json:"creator"`
}
