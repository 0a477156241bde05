// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/pubsync/pkg/types"
)

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// Query is an FTS5 match expression over title, abstract, authors,
	// journal, and keywords.
	Query string

	// Author matches any author containing the string, case-insensitively.
	Author string

	// YearFrom and YearTo bound the publication year, inclusive. Zero is
	// unbounded.
	YearFrom int
	YearTo   int

	Source types.Source
	Tag    string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// QueryResult is a catalog row. Rank is the FTS rank (lower is better)
// and zero for filter-only queries.
type QueryResult struct {
	Publication types.Publication `json:"publication" yaml:"publication"`
	Rank        float64           `json:"rank,omitempty" yaml:"rank,omitempty"`
}

// Query searches the catalog. Full-text results are ranked by relevance;
// filter-only results are ordered by year, newest first, then title.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = strings.TrimSpace(opts.Query) != ""
	)

	const columns = `p.id, p.title, p.authors, p.year, p.journal, p.doi, p.pmid, p.abstract,
		p.keywords, p.tags, p.citations, p.source, p.featured, p.profile_url, p.pdf_url`
	if useFTS {
		qb.WriteString(`SELECT ` + columns + `, publications_fts.rank
			FROM publications_fts
			JOIN publications p ON p.rowid = publications_fts.rowid
			WHERE publications_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(`SELECT ` + columns + `, 0 AS rank
			FROM publications p
			WHERE 1=1`)
	}

	if opts.Author != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(p.authors) WHERE value LIKE ?)`)
		args = append(args, "%"+opts.Author+"%")
	}
	if opts.YearFrom > 0 {
		qb.WriteString(` AND p.year >= ?`)
		args = append(args, opts.YearFrom)
	}
	if opts.YearTo > 0 {
		qb.WriteString(` AND p.year <= ?`)
		args = append(args, opts.YearTo)
	}
	if opts.Source != "" {
		qb.WriteString(` AND p.source = ?`)
		args = append(args, string(opts.Source))
	}
	if opts.Tag != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(p.tags) WHERE value = ?)`)
		args = append(args, opts.Tag)
	}

	if useFTS {
		qb.WriteString(` ORDER BY publications_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.year DESC, p.title`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr                           QueryResult
			authors, keywords, tags      sql.NullString
			journal, doi, pmid, abstract sql.NullString
			source, profileURL, pdfURL   sql.NullString
			featured                     sql.NullBool
		)
		p := &qr.Publication
		if err := rows.Scan(
			&p.ID, &p.Title, &authors, &p.Year, &journal, &doi, &pmid, &abstract,
			&keywords, &tags, &p.Citations, &source, &featured, &profileURL, &pdfURL,
			&qr.Rank,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		p.Journal = journal.String
		p.DOI = doi.String
		p.PMID = pmid.String
		p.Abstract = abstract.String
		p.Source = types.Source(source.String)
		p.ProfileURL = profileURL.String
		p.PDFURL = pdfURL.String
		if featured.Valid {
			p.Featured = &featured.Bool
		}
		p.Authors = decodeList(authors)
		if kw := decodeList(keywords); len(kw) > 0 {
			p.Keywords = kw
		}
		if tg := decodeList(tags); len(tg) > 0 {
			p.Tags = tg
		}

		results = append(results, qr)
	}
	return results, rows.Err()
}

func decodeList(v sql.NullString) []string {
	out := []string{}
	if v.Valid {
		json.Unmarshal([]byte(v.String), &out)
	}
	return out
}
