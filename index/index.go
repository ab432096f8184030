// Package index implements the append-only, multi-head log of secret-version
// operations (C8): per-node head chains in the block store, merged into a
// deterministic in-memory projection of searchable entries.
//
// The persisted Index block has no parent pointers: a monotone rewrite of
// the whole Index block was chosen over threading a `parent` field through
// it. Ordering across a node's own contributions comes entirely from
// blockstore.Store's own CAS-chained head list, and the persisted checkpoint
// is rebuilt wholesale on every write rather than incrementally patched.
package index

import (
	"sort"
)

// Operation tags what a head contributed: a new version, or a tombstone.
type Operation uint8

const (
	Add Operation = iota
	Delete
)

func (o Operation) String() string {
	if o == Delete {
		return "delete"
	}
	return "add"
}

// HeadOp is one client node's single contribution to the log: a reference to
// a sealed SecretVersion block, chained behind that node's prior head via
// blockstore.Store.SetHead's CAS.
type HeadOp struct {
	NodeID    string    `json:"node_id"`
	Operation Operation `json:"operation"`
	BlockID   string    `json:"block_id"`
	Timestamp int64     `json:"timestamp"`
}

// VersionRef names one sealed version of a secret and when it was written.
type VersionRef struct {
	BlockID   string `json:"block_id"`
	Timestamp int64  `json:"timestamp"`
}

// SecretEntry is the derived, searchable projection of a secret's latest
// version plus its identity.
type SecretEntry struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Tags      []string `json:"tags"`
	Urls      []string `json:"urls"`
	Deleted   bool     `json:"deleted"`
}

// Entry is one secret's materialized projection: its entry plus every
// version reference known for it.
type Entry struct {
	Entry        SecretEntry  `json:"entry"`
	VersionRefs  []VersionRef `json:"version_refs"`
	CurrentBlock string       `json:"current_block_id"`
}

// VersionSource is what the merge needs from a sealed block: just enough of
// its SecretVersion payload to build a SecretEntry. Blocks the caller's
// current identity cannot open return ok=false; such entries are silently
// dropped from the projection, though the raw head that referenced them is
// not lost: it simply contributes nothing until a future identity can open
// it.
type VersionSource interface {
	Open(blockID string) (secretID string, ts int64, entry SecretEntry, ok bool)
}

// Index is the in-memory projection, rebuilt from a node's and its peers'
// head chains.
type Index struct {
	entries map[string]*Entry
	heads   map[string]HeadOp // latest known head per node, for the checkpoint
	tags    map[string]bool
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		entries: make(map[string]*Entry),
		heads:   make(map[string]HeadOp),
		tags:    make(map[string]bool),
	}
}

// Entries returns every secret's projection, unordered.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, *e)
	}
	return out
}

// Get returns the projection for one secret id.
func (ix *Index) Get(secretID string) (Entry, bool) {
	e, ok := ix.entries[secretID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Tags returns every tag seen across all (including deleted) entries.
func (ix *Index) Tags() []string {
	out := make([]string, 0, len(ix.tags))
	for t := range ix.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Heads returns the latest known head per node, for checkpointing.
func (ix *Index) Heads() []HeadOp {
	out := make([]HeadOp, 0, len(ix.heads))
	for _, h := range ix.heads {
		out = append(out, h)
	}
	return out
}

// Rebuild folds every op in ops (typically the union of every node's full
// head chain) into a fresh projection.
// Folding order does not affect the result: current_block_id is resolved by
// (max timestamp, lexicographic block id) per entry regardless of fold
// order, but ops are still processed in a fixed deterministic
// (timestamp, node_id) order so two nodes merging the same op set always
// walk it the same way.
func Rebuild(ops []HeadOp, src VersionSource) *Index {
	ix := New()

	sorted := make([]HeadOp, len(ops))
	copy(sorted, ops)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].NodeID < sorted[j].NodeID
	})

	type candidate struct {
		secretID string
		entry    SecretEntry
		ref      VersionRef
	}
	bySecret := make(map[string][]candidate)

	for _, op := range sorted {
		if cur, ok := ix.heads[op.NodeID]; !ok || op.Timestamp > cur.Timestamp ||
			(op.Timestamp == cur.Timestamp && op.BlockID > cur.BlockID) {
			ix.heads[op.NodeID] = op
		}

		secretID, ts, entry, ok := src.Open(op.BlockID)
		if !ok {
			continue // unreadable by this identity; dropped from the projection
		}
		bySecret[secretID] = append(bySecret[secretID], candidate{
			secretID: secretID,
			entry:    entry,
			ref:      VersionRef{BlockID: op.BlockID, Timestamp: ts},
		})
	}

	for secretID, cands := range bySecret {
		e := &Entry{Entry: SecretEntry{ID: secretID}}
		seen := make(map[string]bool, len(cands))
		for _, c := range cands {
			if seen[c.ref.BlockID] {
				continue
			}
			seen[c.ref.BlockID] = true
			e.VersionRefs = append(e.VersionRefs, c.ref)
		}
		sort.Slice(e.VersionRefs, func(i, j int) bool {
			if e.VersionRefs[i].Timestamp != e.VersionRefs[j].Timestamp {
				return e.VersionRefs[i].Timestamp < e.VersionRefs[j].Timestamp
			}
			return e.VersionRefs[i].BlockID < e.VersionRefs[j].BlockID
		})

		var current candidate
		for _, c := range cands {
			if current.ref.BlockID == "" ||
				c.ref.Timestamp > current.ref.Timestamp ||
				(c.ref.Timestamp == current.ref.Timestamp && c.ref.BlockID > current.ref.BlockID) {
				current = c
			}
		}
		e.Entry = current.entry
		e.Entry.ID = secretID
		e.CurrentBlock = current.ref.BlockID
		ix.entries[secretID] = e

		for _, t := range e.Entry.Tags {
			ix.tags[t] = true
		}
	}

	return ix
}
