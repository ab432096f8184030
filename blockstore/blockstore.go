// Package blockstore defines the interface the engine consumes for
// content-addressed block storage and a small set of named refs, plus an
// in-memory adapter used by tests and by mem:// stores. Production
// transports (filesystem, sled, Dropbox, HTTP) are external collaborators
// and are not implemented here.
package blockstore

import (
	"context"
)

// Ref names a well-known pointer kept by the store, independent of any
// particular node.
type Ref string

const (
	RefRing  Ref = "ring"
	RefIndex Ref = "index"
)

// Store is the interface the engine consumes. put is idempotent: repeated
// puts of identical bytes yield the same id. The engine never assumes
// durability of any call other than SetHead before a matching SetHead
// returns.
type Store interface {
	// Put stores block bytes and returns their content address.
	Put(ctx context.Context, blockBytes []byte) (string, error)

	// Get fetches block bytes by content address. Returns a NotFound-kind
	// error if absent.
	Get(ctx context.Context, blockID string) ([]byte, error)

	// ListHeads returns the known head history for a client node, oldest
	// first.
	ListHeads(ctx context.Context, nodeID string) ([]string, error)

	// SetHead appends blockID as node nodeID's new head, failing with a
	// Conflict-kind error if expectedPrev does not match the node's
	// current last head (empty expectedPrev means "no head yet").
	SetHead(ctx context.Context, nodeID, blockID, expectedPrev string) error

	// Named resolves a well-known ref (ring, index) to a block id, or
	// returns ("", nil) if it has never been set.
	Named(ctx context.Context, ref Ref) (string, error)

	// SetNamed updates a well-known ref to point at blockID.
	SetNamed(ctx context.Context, ref Ref, blockID string) error

	// Nodes lists every node id that has ever called SetHead. A real
	// external adapter needs some way to discover nodes for multi-client
	// merge and this is the obvious shape, so the in-memory adapter
	// provides it too.
	Nodes(ctx context.Context) ([]string, error)
}
