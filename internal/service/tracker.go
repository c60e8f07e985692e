package service

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"virtnet/internal/domain"
)

type record struct {
	refs  *orderedmap.OrderedMap[domain.ElementRef, struct{}]
	prior domain.Severity
}

// Tracker holds the expansion records of outstanding seeds. The order of
// the records is the expansion order: the newest record is the top of the
// stack and the only one that may be collapsed without recursion.
type Tracker struct {
	records *orderedmap.OrderedMap[string, *record]
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{records: orderedmap.New[string, *record]()}
}

// Push records the expansion of seed. A seed already outstanding is moved
// to the top with its refs replaced.
func (t *Tracker) Push(seed string, refs []domain.ElementRef, prior domain.Severity) {
	rec := &record{refs: orderedmap.New[domain.ElementRef, struct{}](), prior: prior}
	for _, r := range refs {
		rec.refs.Set(r, struct{}{})
	}
	t.records.Delete(seed)
	t.records.Set(seed, rec)
}

// Top returns the most recently expanded outstanding seed
func (t *Tracker) Top() (string, bool) {
	pair := t.records.Newest()
	if pair == nil {
		return "", false
	}
	return pair.Key, true
}

// IsOutstanding reports whether seed has a live expansion
func (t *Tracker) IsOutstanding(seed string) bool {
	_, ok := t.records.Get(seed)
	return ok
}

// Refs returns the element references recorded under seed, in order
func (t *Tracker) Refs(seed string) []domain.ElementRef {
	rec, ok := t.records.Get(seed)
	if !ok {
		return nil
	}
	out := make([]domain.ElementRef, 0, rec.refs.Len())
	for pair := rec.refs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Contains reports whether ref was recorded under seed
func (t *Tracker) Contains(seed string, ref domain.ElementRef) bool {
	rec, ok := t.records.Get(seed)
	if !ok {
		return false
	}
	_, ok = rec.refs.Get(ref)
	return ok
}

// Record returns the serializable record of seed
func (t *Tracker) Record(seed string) (domain.ExpansionRecord, bool) {
	rec, ok := t.records.Get(seed)
	if !ok {
		return domain.ExpansionRecord{}, false
	}
	return domain.ExpansionRecord{Seed: seed, Elements: t.Refs(seed), PriorValue: rec.prior}, true
}

// Remove clears the record of seed and pops it from the order
func (t *Tracker) Remove(seed string) (domain.ExpansionRecord, bool) {
	r, ok := t.Record(seed)
	if ok {
		t.records.Delete(seed)
	}
	return r, ok
}

// Seeds returns the outstanding seeds, oldest first
func (t *Tracker) Seeds() []string {
	out := make([]string, 0, t.records.Len())
	for pair := t.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Records returns every outstanding record in expansion order
func (t *Tracker) Records() []domain.ExpansionRecord {
	out := make([]domain.ExpansionRecord, 0, t.records.Len())
	for _, seed := range t.Seeds() {
		r, _ := t.Record(seed)
		out = append(out, r)
	}
	return out
}

// Restore replaces the tracker contents with records, oldest first
func (t *Tracker) Restore(records []domain.ExpansionRecord) {
	t.Clear()
	for _, r := range records {
		t.Push(r.Seed, r.Elements, r.PriorValue)
	}
}

// Len returns the number of outstanding seeds
func (t *Tracker) Len() int {
	return t.records.Len()
}

// Clear drops every record
func (t *Tracker) Clear() {
	t.records = orderedmap.New[string, *record]()
}
