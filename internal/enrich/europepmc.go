// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/pubsync/pkg/types"
)

// europePMCSearchBase is the Europe PMC REST search endpoint. Declared as
// a var so tests can substitute an httptest server.
var europePMCSearchBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// titleQueryWords is how many leading title words go into a title query.
const titleQueryWords = 5

// europePMCClient performs single-result searches.
type europePMCClient struct {
	client    *http.Client
	userAgent string
	email     string
}

// BuildQuery returns the Europe PMC query for a candidate: an exact DOI
// match when the candidate has one, otherwise the first title words plus
// the first author's surname.
func BuildQuery(c types.CandidateRecord) string {
	if c.DOI != "" {
		return fmt.Sprintf(`DOI:"%s"`, c.DOI)
	}
	words := strings.Fields(strings.ReplaceAll(c.Title, `"`, ""))
	if len(words) > titleQueryWords {
		words = words[:titleQueryWords]
	}
	q := fmt.Sprintf(`TITLE:"%s"`, strings.Join(words, " "))
	if len(c.Authors) > 0 {
		parts := strings.Fields(strings.ReplaceAll(c.Authors[0], `"`, ""))
		if len(parts) > 0 {
			q += fmt.Sprintf(` AND AUTHOR:"%s"`, parts[len(parts)-1])
		}
	}
	return q
}

// search returns the top result for query, or nil when there are none.
func (c *europePMCClient) search(ctx context.Context, query string) (*europePMCResult, error) {
	params := url.Values{
		"query":      {query},
		"resultType": {"core"},
		"pageSize":   {"1"},
		"format":     {"json"},
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	reqURL := europePMCSearchBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Europe PMC request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Europe PMC returned HTTP %d", resp.StatusCode)
	}

	var epr europePMCResponse
	if err := json.NewDecoder(resp.Body).Decode(&epr); err != nil {
		return nil, fmt.Errorf("parsing Europe PMC response: %w", err)
	}
	if len(epr.ResultList.Result) == 0 {
		return nil, nil
	}
	return &epr.ResultList.Result[0], nil
}

// Europe PMC API JSON structures.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	JournalTitle string `json:"journalTitle"`
	PubYear      string `json:"pubYear"`
	PageInfo     string `json:"pageInfo"`
	AbstractText string `json:"abstractText"`

	JournalInfo struct {
		Volume  string `json:"volume"`
		Issue   string `json:"issue"`
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`

	KeywordList struct {
		Keyword []string `json:"keyword"`
	} `json:"keywordList"`

	FullTextURLList struct {
		FullTextURL []europePMCFullText `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

type europePMCFullText struct {
	Availability  string `json:"availability"`
	DocumentStyle string `json:"documentStyle"`
	Site          string `json:"site"`
	URL           string `json:"url"`
}

func (r *europePMCResult) journal() string {
	if r.JournalTitle != "" {
		return r.JournalTitle
	}
	return r.JournalInfo.Journal.Title
}

// fullTextURL prefers a PDF link and otherwise returns the first listed.
func (r *europePMCResult) fullTextURL() string {
	links := r.FullTextURLList.FullTextURL
	for _, l := range links {
		if strings.EqualFold(l.DocumentStyle, "pdf") && l.URL != "" {
			return l.URL
		}
	}
	if len(links) > 0 {
		return links[0].URL
	}
	return ""
}
