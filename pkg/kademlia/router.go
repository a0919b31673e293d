// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kadmux/dht/internal/sync2"
)

// QueryFunc performs one RPC against queryer on behalf of a lookup for
// key: FIND_NODE returns peers with foundBy/value nil; FIND_VALUE
// returns either peers (foundBy/value nil) or a single-element peers
// list with foundBy/value set. A non-nil error means the RPC itself
// failed (timeout, mismatch, peer or protocol error); the lookup
// degrades by treating queryer as a dead end and continues.
type QueryFunc func(ctx context.Context, queryer *Contact, key ID) (peers []*Contact, foundBy *Contact, value []byte, err error)

// LookupResult is the outcome of Router.Lookup. On a miss, Contacts
// holds the K closest known contacts. On a hit, Contacts holds the
// candidate set accumulated before termination, excluding FoundBy —
// callers doing read-path caching (DHT.FindValue) pick the closest of
// these to store the value at.
type LookupResult struct {
	Found    bool
	Value    []byte
	FoundBy  *Contact
	Contacts []*Contact
}

// Router drives FIND_NODE and FIND_VALUE lookups: iterative, bounded
// concurrency A, converging on the K contacts closest to a key.
type Router struct {
	self    *Contact
	buckets *BucketList
	cfg     Config
	log     *zap.Logger
}

// NewRouter returns a Router for self, reading seed contacts from
// buckets and bounding fan-out per cfg.A.
func NewRouter(self *Contact, buckets *BucketList, cfg Config, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{self: self, buckets: buckets, cfg: cfg, log: log}
}

// Lookup runs the iterative lookup state machine for key using query as
// the per-contact RPC. giveAll suppresses the K-closest truncation of
// the returned contact list on a miss.
func (r *Router) Lookup(ctx context.Context, key ID, query QueryFunc, giveAll bool) LookupResult {
	defer mon.Task()(&ctx)(nil)

	var mu sync.Mutex
	var closer, farther, ret []*Contact
	contacted := map[ID]struct{}{}

	found := false
	var foundBy *Contact
	var value []byte
	var foundCandidates []*Contact

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	selfDist := r.self.ID.Xor(key)

	seedBucket := r.buckets.GetKBucket(key)
	seed := CloneContacts(seedBucket.Contacts)
	if len(seed) > r.cfg.A {
		seed = seed[:r.cfg.A]
	}
	for _, c := range seed {
		contacted[c.ID] = struct{}{}
		if c.ID.Xor(key).Less(selfDist) {
			closer = append(closer, c)
		} else {
			farther = append(farther, c)
		}
	}

	round := seed
	for len(round) > 0 {
		limiter := sync2.NewLimiter(r.cfg.A)
		for _, queryer := range round {
			queryer := queryer
			limiter.Go(ctx, func() {
				peers, fb, v, err := query(ctx, queryer, key)
				recordRPCOutcome(err)
				if err != nil {
					r.log.Debug("lookup rpc failed",
						zap.Stringer("queryer", queryer.ID), zap.Error(err))
					return
				}

				mu.Lock()
				defer mu.Unlock()
				if found {
					return // a value already won this lookup; discard late results
				}
				if fb != nil {
					found, foundBy, value = true, fb, v
					foundCandidates = candidateSet(closer, farther, fb.ID)
					cancel()
					return
				}
				for _, p := range peers {
					mergeContact(&closer, &farther, contacted, p, queryer.ID, r.self.ID, key)
				}
			})
		}
		limiter.Wait()

		mu.Lock()
		if found {
			mu.Unlock()
			break
		}
		for _, c := range closer {
			if !ContainsID(ret, c.ID) {
				ret = append(ret, c)
			}
		}
		mu.Unlock()

		if !giveAll && len(ret) >= r.cfg.K {
			break
		}

		round = pickUncontacted(contacted, closer, farther, r.cfg.A)
		if len(round) == 0 {
			break
		}
	}

	if found {
		return LookupResult{Found: true, FoundBy: foundBy, Value: value, Contacts: foundCandidates}
	}

	sortContactsByXOR(ret, key)
	if !giveAll && len(ret) > r.cfg.K {
		ret = ret[:r.cfg.K]
	}
	return LookupResult{Contacts: ret}
}

// mergeContact folds one peer returned by a query into closer/farther,
// skipping self, the queryer, duplicates, and already-contacted ids.
// The classification boundary is the queryer's own distance to key,
// per peer returned by that specific query — not a lookup-wide moving
// minimum, which would thrash as closer contacts are discovered.
func mergeContact(closer, farther *[]*Contact, contacted map[ID]struct{}, p *Contact, queryerID, selfID, key ID) {
	if p.ID == selfID || p.ID == queryerID {
		return
	}
	if _, ok := contacted[p.ID]; ok {
		return
	}
	if ContainsID(*closer, p.ID) || ContainsID(*farther, p.ID) {
		return
	}
	if p.ID.Xor(key).Less(queryerID.Xor(key)) {
		*closer = append(*closer, p)
	} else {
		*farther = append(*farther, p)
	}
}

// candidateSet dedups closer and farther into one list, excluding
// excludeID.
func candidateSet(closer, farther []*Contact, excludeID ID) []*Contact {
	var out []*Contact
	seen := map[ID]struct{}{excludeID: {}}
	for _, list := range [][]*Contact{closer, farther} {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// pickUncontacted selects up to a uncontacted contacts, preferring
// closer over farther, and marks them contacted. Only the driving
// lookup goroutine calls this, never an RPC callback.
func pickUncontacted(contacted map[ID]struct{}, closer, farther []*Contact, a int) []*Contact {
	var picked []*Contact
	for _, c := range closer {
		if len(picked) >= a {
			return picked
		}
		if _, ok := contacted[c.ID]; !ok {
			contacted[c.ID] = struct{}{}
			picked = append(picked, c)
		}
	}
	for _, c := range farther {
		if len(picked) >= a {
			return picked
		}
		if _, ok := contacted[c.ID]; !ok {
			contacted[c.ID] = struct{}{}
			picked = append(picked, c)
		}
	}
	return picked
}
