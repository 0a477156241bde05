// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile merges freshly scraped publications into the
// persisted dataset. Manually curated records are carried over untouched;
// automated records are matched to fresh ones by stable identifiers and
// updated in place, keeping their ids and curation fields.
package reconcile

import (
	"errors"
	"sort"
	"time"

	"github.com/pdiddy/pubsync/pkg/types"
)

// ErrEmptyMerge is returned when merging non-empty inputs produced no
// publications. The result must not be persisted.
var ErrEmptyMerge = errors.New("merge produced no publications")

// Skip records a fresh publication left out of the merge.
type Skip struct {
	Title  string
	Reason string
}

const (
	SkipManualMatch = "matches a manual record"
	SkipDuplicateID = "id already used in this run"
)

// Result is the outcome of a merge.
type Result struct {
	Publications []types.Publication

	Added     int // fresh records with no existing match
	Updated   int // existing automated records refreshed
	Preserved int // manual records carried over
	Dropped   int // existing automated records no fresh record matched
	Skipped   int
	Skips     []Skip
}

// Merge combines fresh publications with the existing dataset. An empty
// fresh list returns existing unchanged apart from ordering. The result
// is sorted by year, newest first; ties keep their input order.
func Merge(fresh, existing []types.Publication, now time.Time) (Result, error) {
	if len(fresh) == 0 {
		out := make([]types.Publication, len(existing))
		copy(out, existing)
		sortByYear(out)
		res := Result{Publications: out}
		for _, p := range existing {
			if p.Source.IsManual() {
				res.Preserved++
			}
		}
		return res, nil
	}

	var res Result
	merged := make([]types.Publication, 0, len(fresh)+len(existing))
	position := make(map[string]int)
	for _, p := range existing {
		if !p.Source.IsManual() {
			continue
		}
		merged = append(merged, p)
		if _, seen := position[p.ID]; !seen {
			position[p.ID] = len(merged) - 1
		}
		res.Preserved++
	}

	idx := NewIndex(existing)
	stamp := types.Timestamp(now)

	// Resolve every fresh record first so ids of matched existing records
	// are reserved before new records are given generated ids.
	type resolution struct {
		fresh   types.Publication
		updated types.Publication
		manual  bool
		ok      bool
	}
	resolved := make([]resolution, len(fresh))
	reserved := make(map[string]bool)
	for i, p := range fresh {
		r := resolution{fresh: p}
		if m, ok := ResolveIdentity(p, idx); ok {
			r.ok = true
			r.manual = m.Existing.Source.IsManual()
			if !r.manual {
				r.updated = update(m.Existing, p, stamp)
				reserved[r.updated.ID] = true
			}
		}
		resolved[i] = r
	}

	matched := make(map[string]bool)
	updatedAt := make(map[string]int)
	for _, r := range resolved {
		p := r.fresh
		if r.ok && r.manual {
			res.skip(p, SkipManualMatch)
			continue
		}

		if r.ok {
			updated := r.updated
			if i, seen := updatedAt[updated.ID]; seen {
				merged[i] = updated
				continue
			}
			if _, taken := position[updated.ID]; taken {
				res.skip(p, SkipDuplicateID)
				continue
			}
			merged = append(merged, updated)
			position[updated.ID] = len(merged) - 1
			updatedAt[updated.ID] = len(merged) - 1
			matched[updated.ID] = true
			res.Updated++
			continue
		}

		if p.ID == "" {
			p.ID = PublicationID(p.Year, p.Title)
		}
		if _, seen := position[p.ID]; seen || reserved[p.ID] {
			res.skip(p, SkipDuplicateID)
			continue
		}
		merged = append(merged, p)
		position[p.ID] = len(merged) - 1
		res.Added++
	}

	for _, p := range existing {
		if !p.Source.IsManual() && !matched[p.ID] {
			res.Dropped++
		}
	}

	if len(merged) == 0 && len(existing) > 0 {
		return res, ErrEmptyMerge
	}
	sortByYear(merged)
	res.Publications = merged
	return res, nil
}

// update applies a fresh record to the existing one it matched. The id
// and curation fields come from the existing record.
func update(existing, fresh types.Publication, stamp string) types.Publication {
	out := fresh
	out.ID = existing.ID
	if out.ID == "" {
		out.ID = PublicationID(out.Year, out.Title)
	}
	if len(existing.Tags) > 0 {
		out.Tags = existing.Tags
	}
	if existing.Featured != nil {
		out.Featured = existing.Featured
	}
	out.LastUpdated = stamp
	return out
}

func (r *Result) skip(p types.Publication, reason string) {
	r.Skipped++
	r.Skips = append(r.Skips, Skip{Title: p.Title, Reason: reason})
}

func sortByYear(pubs []types.Publication) {
	sort.SliceStable(pubs, func(i, j int) bool {
		return pubs[i].Year > pubs[j].Year
	})
}
