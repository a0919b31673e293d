// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import "sync"

// AddResult reports what BucketList.AddContact did with a contact.
type AddResult int

const (
	// Added means the contact was new and fit in its owning bucket.
	Added AddResult = iota
	// Refreshed means a contact with the same id already existed and
	// was moved to the tail.
	Refreshed
	// Rejected means the owning bucket was full and not splittable;
	// the contact was dropped in favor of the existing (older) ones.
	Rejected
)

// BucketList is an ordered sequence of KBuckets partitioning the ID
// space [0, 2^160) without gaps or overlap. It owns its buckets
// exclusively; all mutation and close-contact queries serialize on a
// single mutex, held only for CPU work, never across I/O.
type BucketList struct {
	mu      sync.Mutex
	self    ID
	k       int
	bVal    int
	buckets []*KBucket // sorted ascending by Low
}

// NewBucketList returns a BucketList for a node identified by self,
// covering the full ID space in one bucket.
func NewBucketList(self ID, k, bVal int) *BucketList {
	var low, high ID
	for i := range high {
		high[i] = 0xff
	}
	return &BucketList{
		self:    self,
		k:       k,
		bVal:    bVal,
		buckets: []*KBucket{NewKBucket(low, high, k)},
	}
}

// AddContact inserts or refreshes contact, splitting buckets as needed
// per the splitting policy: a bucket that is full may split only if it
// owns the local id or its depth is not a multiple of B_VAL, keeping the
// own-bucket branch always splittable while bounding routing-table
// size elsewhere.
func (l *BucketList) AddContact(contact *Contact) AddResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		i := l.indexFor(contact.ID)
		b := l.buckets[i]

		if b.Contains(contact.ID) {
			b.Replace(contact)
			return Refreshed
		}
		if len(b.Contacts) < l.k {
			_ = b.Add(contact) // capacity just checked under the same lock
			return Added
		}

		if b.HasInRange(l.self) || b.Depth()%l.bVal != 0 {
			left, right := b.Split()
			l.buckets[i] = left
			l.buckets = append(l.buckets, nil)
			copy(l.buckets[i+2:], l.buckets[i+1:])
			l.buckets[i+1] = right
			continue
		}
		return Rejected
	}
}

// indexFor returns the index of the bucket covering id. Callers must
// hold the mutex.
func (l *BucketList) indexFor(id ID) int {
	for i, b := range l.buckets {
		if b.HasInRange(id) {
			return i
		}
	}
	// unreachable if the invariant (full coverage, no gaps) holds.
	return len(l.buckets) - 1
}

// GetKBucket returns the bucket covering id.
func (l *BucketList) GetKBucket(id ID) *KBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buckets[l.indexFor(id)]
}

// GetClosestContacts returns up to K contacts from the whole list whose
// distance to key is smallest, excluding any contact whose id is in
// excluding. Ties break on ascending id.
func (l *BucketList) GetClosestContacts(key ID, excluding ...ID) []*Contact {
	l.mu.Lock()
	var all []*Contact
	for _, b := range l.buckets {
		all = append(all, b.Contacts...)
	}
	l.mu.Unlock()

	excluded := make(map[ID]struct{}, len(excluding))
	for _, id := range excluding {
		excluded[id] = struct{}{}
	}

	filtered := all[:0:0]
	for _, c := range all {
		if _, skip := excluded[c.ID]; !skip {
			filtered = append(filtered, c)
		}
	}

	sortContactsByXOR(filtered, key)
	if len(filtered) > l.k {
		filtered = filtered[:l.k]
	}
	return filtered
}

// Buckets returns a snapshot slice of the current buckets, in ascending
// range order. Exposed for bootstrap's per-bucket refresh (spec
// bootstrap step 3) and for tests.
func (l *BucketList) Buckets() []*KBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*KBucket, len(l.buckets))
	copy(out, l.buckets)
	return out
}

// sortContactsByXOR sorts contacts ascending by XOR distance to key,
// breaking ties on ascending id.
func sortContactsByXOR(contacts []*Contact, key ID) {
	for i := 1; i < len(contacts); i++ {
		for j := i; j > 0; j-- {
			a, b := contacts[j-1], contacts[j]
			da, db := a.ID.Xor(key), b.ID.Xor(key)
			if db.Less(da) || (da == db && b.ID.Less(a.ID)) {
				contacts[j-1], contacts[j] = contacts[j], contacts[j-1]
				continue
			}
			break
		}
	}
}
