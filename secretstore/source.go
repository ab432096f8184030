package secretstore

import (
	"context"
	"encoding/json"

	"github.com/occlock/vault/block"
	"github.com/occlock/vault/blockstore"
	"github.com/occlock/vault/errs"
	"github.com/occlock/vault/index"
	"github.com/occlock/vault/ring"
	"github.com/occlock/vault/suite"
)

// opener fetches and decrypts a sealed SecretVersion block for the
// currently unlocked identity.
type opener struct {
	ctx      context.Context
	store    blockstore.Store
	registry *suite.Registry
	ringMgr  *ring.Manager
}

// decode fetches blockID, opens it for the unlocked identity, and parses
// its SecretVersion payload. Returns a Locked-kind error if no identity is
// unlocked, and a Forbidden-kind error if the identity is not a recipient of
// this block.
func (o *opener) decode(blockID string) (*SecretVersion, error) {
	const op = "secretstore.opener.decode"
	raw, err := o.store.Get(o.ctx, blockID)
	if err != nil {
		return nil, errs.E(op, err)
	}
	b, err := block.Decode(raw)
	if err != nil {
		return nil, errs.E(op, err)
	}

	identityID, ok := o.ringMgr.UnlockedIdentity()
	if !ok {
		return nil, errs.E(op, errs.Locked)
	}
	header, _, ok := b.HeaderFor(identityID)
	if !ok {
		return nil, errs.E(op, errs.Forbidden)
	}
	priv, ok := o.ringMgr.PrivateKey(header.Suite)
	if !ok {
		return nil, errs.E(op, errs.Forbidden)
	}

	plaintext, err := block.Open(o.registry, b, identityID, priv)
	if err != nil {
		return nil, errs.E(op, err)
	}
	var sv SecretVersion
	if err := json.Unmarshal(plaintext, &sv); err != nil {
		return nil, errs.E(op, errs.JSON, err)
	}
	return &sv, nil
}

// Open implements index.VersionSource: blocks this identity cannot open (or
// that fail to parse) are silently dropped from the projection rather than
// treated as a merge failure.
func (o *opener) Open(blockID string) (string, int64, index.SecretEntry, bool) {
	sv, err := o.decode(blockID)
	if err != nil {
		return "", 0, index.SecretEntry{}, false
	}
	entry := index.SecretEntry{
		Timestamp: sv.Timestamp,
		Name:      sv.Name,
		Type:      sv.Type,
		Tags:      sv.Tags,
		Urls:      sv.Urls,
		Deleted:   sv.Deleted,
	}
	return sv.SecretID, sv.Timestamp, entry, true
}
