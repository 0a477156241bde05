// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog keeps a local SQLite copy of the publications dataset
// with a full-text index, so the lab can search and filter its output
// without loading the JSON document. The catalog is derived data: every
// Index call replaces its contents.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pubsync/pkg/types"
)

const dbFile = "publications.db"

// Store manages the catalog database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates the catalog at cfg.Dir/publications.db and
// creates the schema if it does not exist.
func Open(cfg types.CatalogConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS publications (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			authors TEXT,
			year INTEGER,
			journal TEXT,
			doi TEXT,
			pmid TEXT,
			abstract TEXT,
			keywords TEXT,
			tags TEXT,
			citations INTEGER,
			source TEXT,
			featured INTEGER,
			profile_url TEXT,
			pdf_url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_year ON publications(year)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_source ON publications(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='publications_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE publications_fts USING fts5(
			title, abstract, authors, journal, keywords,
			content=publications, content_rowid=rowid)`,
		`CREATE TRIGGER publications_ai AFTER INSERT ON publications BEGIN
			INSERT INTO publications_fts(rowid, title, abstract, authors, journal, keywords)
			VALUES (new.rowid, new.title, new.abstract, new.authors, new.journal, new.keywords);
		END`,
		`CREATE TRIGGER publications_ad AFTER DELETE ON publications BEGIN
			INSERT INTO publications_fts(publications_fts, rowid, title, abstract, authors, journal, keywords)
			VALUES ('delete', old.rowid, old.title, old.abstract, old.authors, old.journal, old.keywords);
		END`,
		`CREATE TRIGGER publications_au AFTER UPDATE ON publications BEGIN
			INSERT INTO publications_fts(publications_fts, rowid, title, abstract, authors, journal, keywords)
			VALUES ('delete', old.rowid, old.title, old.abstract, old.authors, old.journal, old.keywords);
			INSERT INTO publications_fts(rowid, title, abstract, authors, journal, keywords)
			VALUES (new.rowid, new.title, new.abstract, new.authors, new.journal, new.keywords);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// IndexSummary holds counts from an Index run.
type IndexSummary struct {
	Indexed int
	Skipped int // records without an id, or repeating one
}

// Index replaces the catalog contents with ds in one transaction.
func (s *Store) Index(ctx context.Context, ds *types.Dataset, w io.Writer) (IndexSummary, error) {
	var summary IndexSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM publications`); err != nil {
		return summary, fmt.Errorf("clearing catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO publications (id, title, authors, year, journal, doi, pmid, abstract,
			keywords, tags, citations, source, featured, profile_url, pdf_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]bool, len(ds.Publications))
	for _, p := range ds.Publications {
		if p.ID == "" || seen[p.ID] {
			fmt.Fprintf(w, "skipped %q\n", p.Title)
			summary.Skipped++
			continue
		}
		seen[p.ID] = true

		var featured sql.NullBool
		if p.Featured != nil {
			featured = sql.NullBool{Bool: *p.Featured, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			p.ID, p.Title, jsonList(p.Authors), p.Year, p.Journal, p.DOI, p.PMID, p.Abstract,
			jsonList(p.Keywords), jsonList(p.Tags), p.Citations, string(p.Source), featured,
			p.ProfileURL, p.PDFURL,
		)
		if err != nil {
			return summary, fmt.Errorf("inserting %s: %w", p.ID, err)
		}
		summary.Indexed++
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing catalog: %w", err)
	}
	fmt.Fprintf(w, "indexed: %d, skipped: %d\n", summary.Indexed, summary.Skipped)
	return summary, nil
}

func jsonList(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}
