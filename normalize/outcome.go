package normalize

import "github.com/poiesic/catalogit/core"

// DropReason explains why a row did not produce a record.
type DropReason string

const (
	// ReasonShortTitle: the trimmed title was too short to be useful.
	ReasonShortTitle DropReason = "short_title"
	// ReasonInvalid: the resolved record failed domain validation.
	ReasonInvalid DropReason = "invalid_record"
	// ReasonRowError: resolution itself failed for the row.
	ReasonRowError DropReason = "row_error"
	// ReasonMalformed: the source line could not be split into columns, or
	// carried more fields than the header.
	ReasonMalformed DropReason = "malformed_line"
	// ReasonDuplicateID: a later row in the same file carried the same id.
	ReasonDuplicateID DropReason = "duplicate_id"
)

// Outcome is the result of normalizing one row: either an accepted record or
// a drop with its reason.
type Outcome struct {
	Row    int
	Record *core.CatalogRecord
	Reason DropReason
	Err    error
}

// Accepted wraps a normalized record.
func Accepted(row int, record *core.CatalogRecord) Outcome {
	return Outcome{Row: row, Record: record}
}

// Dropped describes a row that produced no record.
func Dropped(row int, reason DropReason, err error) Outcome {
	return Outcome{Row: row, Reason: reason, Err: err}
}

// IsAccepted reports whether the outcome carries a record.
func (o Outcome) IsAccepted() bool {
	return o.Record != nil
}

// Result aggregates the outcomes of a normalization pass.
type Result struct {
	Records   []*core.CatalogRecord
	Processed int
	Accepted  int
	Dropped   int
	Reasons   map[DropReason]int
}

func newResult(capacity int) *Result {
	return &Result{
		Records: make([]*core.CatalogRecord, 0, capacity),
		Reasons: make(map[DropReason]int),
	}
}

// Add folds one outcome into the counts.
func (r *Result) Add(o Outcome) {
	r.Processed++
	if o.IsAccepted() {
		r.Accepted++
		r.Records = append(r.Records, o.Record)
		return
	}
	r.Dropped++
	r.Reasons[o.Reason]++
}

// dedupe keeps the last accepted record for each id, at that record's
// position, and counts the earlier ones as duplicate_id drops.
func (r *Result) dedupe() {
	last := make(map[string]int, len(r.Records))
	for i, rec := range r.Records {
		last[rec.ID] = i
	}
	if len(last) == len(r.Records) {
		return
	}

	kept := r.Records[:0]
	for i, rec := range r.Records {
		if last[rec.ID] == i {
			kept = append(kept, rec)
		}
	}
	dups := len(r.Records) - len(kept)
	clear(r.Records[len(kept):])
	r.Records = kept
	r.Accepted -= dups
	r.Dropped += dups
	r.Reasons[ReasonDuplicateID] += dups
}

// AddDropped counts n rows dropped before normalization, e.g. malformed lines.
func (r *Result) AddDropped(reason DropReason, n int) {
	if n <= 0 {
		return
	}
	r.Processed += n
	r.Dropped += n
	r.Reasons[reason] += n
}
