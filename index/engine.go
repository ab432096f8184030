package index

import (
	"context"
	"time"

	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/errs"
)

const casRetries = 4

// Engine owns one client node's contribution to the log and the merged
// in-memory projection folded from every node's contributions.
type Engine struct {
	store  blockstore.Store
	nodeID string
	proj   *Index
}

// NewEngine returns an Engine for the given node, with an empty projection.
func NewEngine(store blockstore.Store, nodeID string) *Engine {
	return &Engine{store: store, nodeID: nodeID, proj: New()}
}

// Projection returns the current in-memory projection.
func (e *Engine) Projection() *Index {
	return e.proj
}

// Append records one operation for this node, chaining it behind this
// node's last head via SetHead's CAS, retrying on Conflict up to
// casRetries times with a small backoff.
func (e *Engine) Append(ctx context.Context, op Operation, blockID string, timestamp int64) (string, error) {
	const opName = "index.Engine.Append"
	encoded, err := EncodeOp(HeadOp{NodeID: e.nodeID, Operation: op, BlockID: blockID, Timestamp: timestamp})
	if err != nil {
		return "", errs.E(opName, errs.JSON, err)
	}
	opBlockID, err := e.store.Put(ctx, encoded)
	if err != nil {
		return "", errs.E(opName, errs.IO, err)
	}

	backoff := 5 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= casRetries; attempt++ {
		heads, err := e.store.ListHeads(ctx, e.nodeID)
		if err != nil {
			return "", errs.E(opName, errs.IO, err)
		}
		var expectedPrev string
		if len(heads) > 0 {
			expectedPrev = heads[len(heads)-1]
		}
		err = e.store.SetHead(ctx, e.nodeID, opBlockID, expectedPrev)
		if err == nil {
			return opBlockID, nil
		}
		if errs.KindOf(err) != errs.Conflict {
			return "", errs.E(opName, err)
		}
		lastErr = err
		time.Sleep(backoff)
		backoff *= 2
	}
	return "", errs.E(opName, errs.Conflict, lastErr)
}

// Rebuild folds every reachable node's full head chain into a fresh
// projection via src, replacing the Engine's current projection.
func (e *Engine) Rebuild(ctx context.Context, src VersionSource) error {
	const opName = "index.Engine.Rebuild"
	nodes, err := e.store.Nodes(ctx)
	if err != nil {
		return errs.E(opName, errs.IO, err)
	}

	var ops []HeadOp
	for _, node := range nodes {
		ids, err := e.store.ListHeads(ctx, node)
		if err != nil {
			return errs.E(opName, errs.IO, err)
		}
		for _, id := range ids {
			raw, err := e.store.Get(ctx, id)
			if err != nil {
				return errs.E(opName, errs.IO, err)
			}
			op, err := DecodeOp(raw)
			if err != nil {
				return errs.E(opName, err)
			}
			ops = append(ops, op)
		}
	}

	e.proj = Rebuild(ops, src)
	return nil
}

// Checkpoint persists the current projection as an Index block and points
// the "index" named ref at it.
func (e *Engine) Checkpoint(ctx context.Context) (string, error) {
	const opName = "index.Engine.Checkpoint"
	p := &Persisted{Heads: e.proj.Heads(), Entries: e.proj.Entries()}
	encoded, err := Encode(p)
	if err != nil {
		return "", errs.E(opName, errs.JSON, err)
	}
	id, err := e.store.Put(ctx, encoded)
	if err != nil {
		return "", errs.E(opName, errs.IO, err)
	}
	if err := e.store.SetNamed(ctx, blockstore.RefIndex, id); err != nil {
		return "", errs.E(opName, errs.IO, err)
	}
	return id, nil
}
