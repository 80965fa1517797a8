package enricher

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// LookupTable maps identifiers to their lookup outcome. Keys are unique,
// iteration follows insertion order and entries are never removed.
type LookupTable struct {
	order   []Key
	entries map[Key]Outcome
	found   int
}

// NewLookupTable returns an empty table.
func NewLookupTable() *LookupTable {
	return &LookupTable{entries: make(map[Key]Outcome)}
}

// Put records the outcome for id. A second Put for the same identity
// replaces the earlier outcome.
func (t *LookupTable) Put(id Identifier, out Outcome) {
	k := id.Key()
	prev, exists := t.entries[k]
	if !exists {
		t.order = append(t.order, k)
	} else if prev.Found() {
		t.found--
	}
	if out.Found() {
		t.found++
	}
	t.entries[k] = out
}

// Get returns the outcome recorded for k.
func (t *LookupTable) Get(k Key) (Outcome, bool) {
	if t == nil {
		return Outcome{}, false
	}
	out, ok := t.entries[k]
	return out, ok
}

// Len returns the number of identifiers in the table.
func (t *LookupTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// FoundCount returns how many entries carry a payload.
func (t *LookupTable) FoundCount() int {
	if t == nil {
		return 0
	}
	return t.found
}

// Keys returns the identities in insertion order.
func (t *LookupTable) Keys() []Key {
	if t == nil {
		return nil
	}
	return append([]Key(nil), t.order...)
}

// Equal reports whether both tables hold the same mapping of keys to
// found payloads, regardless of insertion order. Miss reasons are ignored.
func (t *LookupTable) Equal(o *LookupTable) bool {
	if t.Len() != o.Len() {
		return false
	}
	for _, k := range t.order {
		a := t.entries[k]
		b, ok := o.Get(k)
		if !ok || a.Found() != b.Found() {
			return false
		}
		if a.Found() && !reflect.DeepEqual(a.Payload, b.Payload) {
			return false
		}
	}
	return true
}

type snapshotEntry struct {
	Kind    Kind            `json:"kind"`
	Value   string          `json:"value"`
	Found   bool            `json:"found"`
	Reason  string          `json:"reason,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type snapshot struct {
	Entries []snapshotEntry `json:"entries"`
}

// WriteSnapshot encodes the table as JSON. Misses are kept so a snapshot
// mirrors the table it came from; only found entries are reused by
// Pipeline.Prior.
func (t *LookupTable) WriteSnapshot(w io.Writer) error {
	snap := snapshot{Entries: make([]snapshotEntry, 0, t.Len())}
	for _, k := range t.order {
		out := t.entries[k]
		e := snapshotEntry{Kind: k.Kind, Value: k.Value, Found: out.Found()}
		if out.Found() {
			raw, err := json.Marshal(out.Payload)
			if err != nil {
				return fmt.Errorf("encode %s: %w", k, err)
			}
			e.Payload = raw
		} else if out.Reason != nil {
			e.Reason = out.Reason.Error()
		}
		snap.Entries = append(snap.Entries, e)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(snap)
}

// ReadSnapshot decodes a table written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*LookupTable, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	t := NewLookupTable()
	for _, e := range snap.Entries {
		id := Identifier{Kind: e.Kind, Value: e.Value}
		if !e.Found {
			t.Put(id, NotFound(snapshotReason(e.Reason)))
			continue
		}
		p, err := DecodePayload(e.Kind, e.Payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot entry %s: %w", id, err)
		}
		t.Put(id, Found(p))
	}
	return t, nil
}

func snapshotReason(s string) error {
	if s == "" {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s", ErrNotFound, s)
}
