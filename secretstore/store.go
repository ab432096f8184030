package secretstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/occlock/vault/block"
	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/index"
	"github.com/occlock/vault/ring"
	"github.com/occlock/vault/suite"
)

// Store is the versioned secret store facade (C7): add/list/get/get_version
// over an index engine and block store, sealing and opening with the
// caller's unlocked ring identity.
type Store struct {
	store    blockstore.Store
	registry *suite.Registry
	ringMgr  *ring.Manager
	engine   *index.Engine
}

// New returns a Store for one client node. nodeID is the store config's
// client_id, the stable node identity the index engine chains heads under.
func New(store blockstore.Store, registry *suite.Registry, ringMgr *ring.Manager, nodeID string) *Store {
	return &Store{
		store:    store,
		registry: registry,
		ringMgr:  ringMgr,
		engine:   index.NewEngine(store, nodeID),
	}
}

func (s *Store) opener(ctx context.Context) *opener {
	return &opener{ctx: ctx, store: s.store, registry: s.registry, ringMgr: s.ringMgr}
}

// Add seals secret_version as a block to the current public ring, appends
// its head, and refreshes the in-memory projection. The index checkpoint
// is deliberately left unwritten here; call UpdateIndex to force one.
func (s *Store) Add(ctx context.Context, sv SecretVersion) (string, error) {
	const op = "secretstore.Store.Add"
	if sv.Timestamp == 0 {
		sv.Timestamp = time.Now().UnixMilli()
	}
	if _, ok := s.ringMgr.UnlockedIdentity(); !ok {
		return "", errs.E(op, errs.Locked)
	}

	plaintext, err := json.Marshal(sv)
	if err != nil {
		return "", errs.E(op, errs.JSON, err)
	}

	pubRing, err := s.ringMgr.PublicRing(ctx)
	if err != nil {
		return "", errs.E(op, err)
	}
	recipients := make([]block.PublicIdentity, len(pubRing.Identities))
	for i, id := range pubRing.Identities {
		recipients[i] = block.PublicIdentity{ID: id.ID, PublicKeys: id.PublicKeys}
	}

	blk, err := block.Seal(s.registry, recipients, plaintext, nil)
	if err != nil {
		return "", errs.E(op, err)
	}
	encoded, err := block.Encode(blk)
	if err != nil {
		return "", errs.E(op, err)
	}
	blockID, err := s.store.Put(ctx, encoded)
	if err != nil {
		return "", errs.E(op, errs.IO, err)
	}

	headOp := index.Add
	if sv.Deleted {
		headOp = index.Delete
	}
	if _, err := s.engine.Append(ctx, headOp, blockID, sv.Timestamp); err != nil {
		return "", errs.E(op, err)
	}
	if err := s.engine.Rebuild(ctx, s.opener(ctx)); err != nil {
		return "", errs.E(op, err)
	}
	return blockID, nil
}

// Get resolves secretID's current version and its full history.
func (s *Store) Get(ctx context.Context, secretID string) (Secret, error) {
	const op = "secretstore.Store.Get"
	entry, ok := s.engine.Projection().Get(secretID)
	if !ok || entry.CurrentBlock == "" {
		return Secret{}, errs.E(op, errs.NotFound)
	}
	sv, err := s.opener(ctx).decode(entry.CurrentBlock)
	if err != nil {
		return Secret{}, errs.E(op, err)
	}
	return Secret{
		ID:                secretID,
		Type:              sv.Type,
		Current:           *sv,
		CurrentBlockID:    entry.CurrentBlock,
		Versions:          entry.VersionRefs,
		PasswordStrengths: map[string]int{},
	}, nil
}

// GetVersion opens one specific historical version, failing NotFound if
// blockID is not referenced by any entry the current identity can read.
func (s *Store) GetVersion(ctx context.Context, blockID string) (SecretVersion, error) {
	const op = "secretstore.Store.GetVersion"
	found := false
	for _, e := range s.engine.Projection().Entries() {
		for _, v := range e.VersionRefs {
			if v.BlockID == blockID {
				found = true
			}
		}
	}
	if !found {
		return SecretVersion{}, errs.E(op, errs.NotFound)
	}
	sv, err := s.opener(ctx).decode(blockID)
	if err != nil {
		return SecretVersion{}, errs.E(op, err)
	}
	return *sv, nil
}

// List queries the projection with filter, fuzzy-scoring name matches and
// sorting by score then name then id.
func (s *Store) List(filter Filter) ListResult {
	allTags := s.engine.Projection().Tags()
	var out []ListEntry
	for _, e := range s.engine.Projection().Entries() {
		if !filter.Deleted && e.Entry.Deleted {
			continue
		}
		if filter.Tag != "" && !containsFold(e.Entry.Tags, filter.Tag) {
			continue
		}
		if filter.Type != "" && e.Entry.Type != filter.Type {
			continue
		}
		if filter.URL != "" && !containsFold(e.Entry.Urls, filter.URL) {
			continue
		}
		score, highlights := 0, []int(nil)
		if filter.Name != nil {
			var ok bool
			score, highlights, ok = fuzzyMatch(e.Entry.Name, *filter.Name)
			if !ok {
				continue
			}
		}
		out = append(out, ListEntry{Entry: e.Entry, NameScore: score, Highlights: highlights})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameScore != out[j].NameScore {
			return out[i].NameScore > out[j].NameScore
		}
		ni, nj := strings.ToLower(out[i].Entry.Name), strings.ToLower(out[j].Entry.Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})
	return ListResult{AllTags: allTags, Entries: out}
}

// UpdateIndex forces a full merge of every reachable node's heads and
// rewrites the index checkpoint.
func (s *Store) UpdateIndex(ctx context.Context) error {
	const op = "secretstore.Store.UpdateIndex"
	if err := s.engine.Rebuild(ctx, s.opener(ctx)); err != nil {
		return errs.E(op, err)
	}
	if _, err := s.engine.Checkpoint(ctx); err != nil {
		return errs.E(op, err)
	}
	return nil
}

func containsFold(items []string, want string) bool {
	for _, it := range items {
		if strings.EqualFold(it, want) {
			return true
		}
	}
	return false
}
