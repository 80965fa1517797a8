package enricher

import "strings"

// Enriched is a record with the outcome of its identifier lookup.
type Enriched[R any] struct {
	Record  R
	Outcome Outcome
	// Matched is false when the record had no identifier, the identifier
	// was not in the table, or its lookup missed.
	Matched bool
}

// Values renders the enrichment columns for kind. Unmatched records
// render empty cells.
func (e Enriched[R]) Values(kind Kind) []string {
	if e.Matched && e.Outcome.Payload != nil && e.Outcome.Payload.Kind() == kind {
		return e.Outcome.Payload.Values()
	}
	return make([]string, len(columns[kind]))
}

// Join attaches lookup outcomes to records. It is a left join: the result
// has exactly one entry per record, in input order, whether or not the
// record's identifier was found.
func Join[R any](records []R, key KeyFunc[R], table *LookupTable) []Enriched[R] {
	return JoinFirst(records, table, key)
}

// JoinFirst is Join with fallbacks: each record takes the outcome of the
// first key function whose identifier was found. When none was, the record
// carries the outcome of its first identifier in the table.
func JoinFirst[R any](records []R, table *LookupTable, keys ...KeyFunc[R]) []Enriched[R] {
	out := make([]Enriched[R], len(records))
	for i, r := range records {
		out[i].Record = r

		first := true
		for _, key := range keys {
			id, ok := key(r)
			if !ok || strings.TrimSpace(id.Value) == "" {
				continue
			}
			res, hit := table.Get(id.Key())
			if !hit {
				continue
			}
			if first || res.Found() {
				out[i].Outcome = res
				first = false
			}
			if res.Found() {
				out[i].Matched = true
				break
			}
		}
	}
	return out
}
