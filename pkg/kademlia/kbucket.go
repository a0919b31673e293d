// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import "time"

// KBucket holds up to K contacts whose ids fall in the inclusive range
// [Low, High]. Contacts are kept oldest-first, newest-last: insertion
// order reflects freshness. A KBucket does not synchronize its own
// access; callers (BucketList) serialize mutation.
type KBucket struct {
	Low, High ID
	Contacts  []*Contact
	Timestamp time.Time

	k int
}

// NewKBucket returns an empty bucket covering [low, high], holding at
// most k contacts.
func NewKBucket(low, high ID, k int) *KBucket {
	return &KBucket{Low: low, High: high, k: k, Timestamp: time.Now()}
}

// Contains reports whether a contact with id is already in the bucket.
func (b *KBucket) Contains(id ID) bool {
	return ContainsID(b.Contacts, id)
}

// Add appends contact to the tail. It fails with BucketFull if the
// bucket is already at capacity. Touches the bucket's timestamp.
func (b *KBucket) Add(contact *Contact) error {
	if len(b.Contacts) >= b.k {
		return BucketFull.New("bucket [%s, %s] is full", b.Low, b.High)
	}
	b.Contacts = append(b.Contacts, contact)
	b.Touch()
	return nil
}

// Replace substitutes the contact sharing Replace's id, moving it to
// the tail as a freshness refresh. It is a no-op if no contact with
// that id exists.
func (b *KBucket) Replace(contact *Contact) {
	for i, c := range b.Contacts {
		if c.ID == contact.ID {
			b.Contacts = append(b.Contacts[:i], b.Contacts[i+1:]...)
			b.Contacts = append(b.Contacts, contact)
			b.Touch()
			return
		}
	}
}

// HasInRange reports whether id falls within [Low, High].
func (b *KBucket) HasInRange(id ID) bool {
	return !id.Less(b.Low) && !b.High.Less(id)
}

// Depth returns the length of the longest common binary prefix shared
// by every contained id, 0 if the bucket is empty or the ids share no
// prefix. Used by the splitting policy.
func (b *KBucket) Depth() int {
	if len(b.Contacts) == 0 {
		return 0
	}
	prefix := 8 * IDLength
	first := b.Contacts[0].ID
	for _, c := range b.Contacts[1:] {
		if l := first.CommonPrefixLen(c.ID); l < prefix {
			prefix = l
		}
	}
	return prefix
}

// Split partitions the bucket at mid = (Low+High)/2 into
// left = [Low, mid] and right = [mid+1, High], preserving insertion
// order inside each half. It requires Low < High. The receiver is
// consumed: callers must discard it after Split returns.
func (b *KBucket) Split() (left, right *KBucket) {
	mid := MidpointID(b.Low, b.High)
	left = NewKBucket(b.Low, mid, b.k)
	right = NewKBucket(mid.Increment(), b.High, b.k)

	for _, c := range b.Contacts {
		if left.HasInRange(c.ID) {
			left.Contacts = append(left.Contacts, c)
		} else {
			right.Contacts = append(right.Contacts, c)
		}
	}
	return left, right
}

// Touch sets Timestamp to now.
func (b *KBucket) Touch() {
	b.Timestamp = time.Now()
}
