// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ErrorHandler is notified of a per-contact RPC failure during a batch
// operation (Store's publish fan-out, Bootstrap's refresh fan-out). It
// never aborts the batch; it exists purely for observability, mirroring
// the reference implementation's error-handling hook.
type ErrorHandler func(ctx context.Context, peer *Contact, err error)

// DHT is the façade the upward nickname/messaging collaborator uses:
// Store, FindValue, Bootstrap, and the node's own advertised contact.
type DHT struct {
	node   *Node
	router *Router
	cfg    Config
	log    *zap.Logger

	onError ErrorHandler
}

// NewDHT returns a DHT for self, with the given config and logger.
// onError may be nil, in which case per-contact failures are only
// logged.
func NewDHT(self *Contact, cfg Config, log *zap.Logger, onError ErrorHandler) *DHT {
	if log == nil {
		log = zap.NewNop()
	}
	node := NewNode(self, cfg, log)
	return &DHT{
		node:    node,
		router:  NewRouter(self, node.Buckets, cfg, log),
		cfg:     cfg,
		log:     log,
		onError: onError,
	}
}

// SelfContact returns the node's own advertised contact.
func (d *DHT) SelfContact() *Contact {
	return d.node.Self
}

// Node exposes the underlying Node, for a transport server to dispatch
// incoming RPCs against.
func (d *DHT) Node() *Node {
	return d.node
}

func (d *DHT) findNodeQuery(ctx context.Context, queryer *Contact, key ID) ([]*Contact, *Contact, []byte, error) {
	peers, err := queryer.Protocol.FindNode(ctx, d.node.Self, key)
	return peers, nil, nil, err
}

func (d *DHT) findValueQuery(ctx context.Context, queryer *Contact, key ID) ([]*Contact, *Contact, []byte, error) {
	result, err := queryer.Protocol.FindValue(ctx, d.node.Self, key)
	if err != nil {
		return nil, nil, nil, err
	}
	if result.Found {
		return []*Contact{queryer}, queryer, result.Value, nil
	}
	return result.Contacts, nil, nil, nil
}

// Store writes key/value locally, then publishes it: if the bucket
// owning key was touched within BucketRefreshInterval, STORE is sent
// directly to its known contacts; otherwise a FIND_NODE lookup on key
// seeds the contact list first. Per-contact failures are reported to
// onError and never abort the batch.
func (d *DHT) Store(ctx context.Context, key ID, value []byte, expiration time.Time) {
	defer mon.Task()(&ctx)(nil)

	d.node.Store.Set(key, value, expiration)

	bucket := d.node.Buckets.GetKBucket(key)
	var targets []*Contact
	if time.Since(bucket.Timestamp) <= d.cfg.BucketRefreshInterval {
		targets = CloneContacts(bucket.Contacts)
	} else {
		result := d.router.Lookup(ctx, key, d.findNodeQuery, false)
		targets = result.Contacts
	}

	exp := unixOrZero(expiration)
	for _, c := range targets {
		err := c.Protocol.Store(ctx, d.node.Self, key, value, exp)
		recordRPCOutcome(err)
		if err != nil {
			d.reportError(ctx, c, err)
		}
	}
}

// FindValue returns the value for key if known locally, else runs a
// FIND_VALUE lookup. On a lookup hit, the value is cached at the
// closest candidate contact other than the one that returned it (the
// Kademlia read-path caching rule).
func (d *DHT) FindValue(ctx context.Context, key ID) (found bool, value []byte) {
	defer mon.Task()(&ctx)(nil)

	if v, ok := d.node.Store.Get(key); ok {
		return true, v
	}

	result := d.router.Lookup(ctx, key, d.findValueQuery, false)
	if !result.Found {
		return false, nil
	}

	if cacheAt := closestExcluding(result.Contacts, key); cacheAt != nil {
		err := cacheAt.Protocol.Store(ctx, d.node.Self, key, result.Value, 0)
		recordRPCOutcome(err)
		if err != nil {
			d.reportError(ctx, cacheAt, err)
		}
	}
	return true, result.Value
}

// Bootstrap joins the network through knownPeer: adds it to the
// routing table, asks it to FIND_NODE(self), inserting every returned
// contact, then refreshes every bucket other than the one owning
// knownPeer by issuing FIND_NODE against its current members with a
// random id in the bucket's range — expanding coverage beyond
// knownPeer's immediate neighborhood.
func (d *DHT) Bootstrap(ctx context.Context, knownPeer *Contact) (err error) {
	defer mon.Task()(&ctx)(&err)

	d.node.Buckets.AddContact(knownPeer)

	peers, err := knownPeer.Protocol.FindNode(ctx, d.node.Self, d.node.Self.ID)
	if err != nil {
		return err
	}
	for _, p := range peers {
		d.node.Buckets.AddContact(p)
	}

	ownBucket := d.node.Buckets.GetKBucket(knownPeer.ID)
	for _, bucket := range d.node.Buckets.Buckets() {
		if bucket == ownBucket {
			continue
		}
		d.refreshBucket(ctx, bucket)
	}
	return nil
}

// RefreshStaleBuckets re-runs the bootstrap-style refresh against every
// bucket not touched within BucketRefreshInterval. Operators call this
// periodically (the source used an effectively-infinite refresh
// interval and relied on organic traffic instead; production
// deployments should drive this from a timer).
func (d *DHT) RefreshStaleBuckets(ctx context.Context) {
	defer mon.Task()(&ctx)(nil)

	for _, bucket := range d.node.Buckets.Buckets() {
		if time.Since(bucket.Timestamp) > d.cfg.BucketRefreshInterval {
			d.refreshBucket(ctx, bucket)
		}
	}
}

func (d *DHT) refreshBucket(ctx context.Context, bucket *KBucket) {
	target, err := RandomIDInRange(bucket.Low, bucket.High)
	if err != nil {
		d.log.Warn("could not pick refresh target", zap.Error(err))
		return
	}
	for _, c := range CloneContacts(bucket.Contacts) {
		peers, err := c.Protocol.FindNode(ctx, d.node.Self, target)
		recordRPCOutcome(err)
		if err != nil {
			d.reportError(ctx, c, err)
			continue
		}
		for _, p := range peers {
			d.node.Buckets.AddContact(p)
		}
	}
}

func (d *DHT) reportError(ctx context.Context, peer *Contact, err error) {
	d.log.Warn("peer rpc failed", zap.Stringer("peer", peer.ID), zap.Error(err))
	if d.onError != nil {
		d.onError(ctx, peer, err)
	}
}

// closestExcluding returns argmin(c.id XOR key) over contacts, or nil
// if contacts is empty.
func closestExcluding(contacts []*Contact, key ID) *Contact {
	var best *Contact
	for _, c := range contacts {
		if best == nil || c.ID.Xor(key).Less(best.ID.Xor(key)) {
			best = c
		}
	}
	return best
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
