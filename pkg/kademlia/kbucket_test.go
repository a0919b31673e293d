// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRangeBucket(k int) *KBucket {
	var low, high ID
	for i := range high {
		high[i] = 0xff
	}
	return NewKBucket(low, high, k)
}

func TestKBucketAddAndContains(t *testing.T) {
	b := fullRangeBucket(2)
	c1 := NewContact(idFromInt(1), "", 0, nil)
	c2 := NewContact(idFromInt(2), "", 0, nil)

	require.NoError(t, b.Add(c1))
	require.NoError(t, b.Add(c2))
	assert.True(t, b.Contains(idFromInt(1)))
	assert.True(t, b.Contains(idFromInt(2)))
	assert.False(t, b.Contains(idFromInt(3)))
}

func TestKBucketAddFullFails(t *testing.T) {
	b := fullRangeBucket(1)
	require.NoError(t, b.Add(NewContact(idFromInt(1), "", 0, nil)))

	err := b.Add(NewContact(idFromInt(2), "", 0, nil))
	require.Error(t, err)
	assert.True(t, BucketFull.Has(err))
}

func TestKBucketReplaceMovesToTail(t *testing.T) {
	b := fullRangeBucket(3)
	c1 := NewContact(idFromInt(1), "old-host", 0, nil)
	c2 := NewContact(idFromInt(2), "", 0, nil)
	require.NoError(t, b.Add(c1))
	require.NoError(t, b.Add(c2))

	refreshed := NewContact(idFromInt(1), "new-host", 0, nil)
	b.Replace(refreshed)

	require.Len(t, b.Contacts, 2)
	assert.Equal(t, idFromInt(2), b.Contacts[0].ID)
	assert.Equal(t, "new-host", b.Contacts[1].Host)
}

func TestKBucketHasInRange(t *testing.T) {
	b := NewKBucket(idFromInt(10), idFromInt(20), 20)
	assert.True(t, b.HasInRange(idFromInt(10)))
	assert.True(t, b.HasInRange(idFromInt(20)))
	assert.True(t, b.HasInRange(idFromInt(15)))
	assert.False(t, b.HasInRange(idFromInt(9)))
	assert.False(t, b.HasInRange(idFromInt(21)))
}

func TestKBucketDepth(t *testing.T) {
	b := fullRangeBucket(20)
	assert.Equal(t, 0, b.Depth())

	require.NoError(t, b.Add(NewContact(idFromInt(0), "", 0, nil)))
	assert.Equal(t, 160, b.Depth())

	// one bit differs in the last byte
	other := ID{}
	other[IDLength-1] = 0x01
	require.NoError(t, b.Add(NewContact(other, "", 0, nil)))
	assert.Equal(t, 159, b.Depth())
}

func TestKBucketSplit(t *testing.T) {
	b := NewKBucket(idFromInt(0), idFromInt(9), 20)
	require.NoError(t, b.Add(NewContact(idFromInt(2), "", 0, nil)))
	require.NoError(t, b.Add(NewContact(idFromInt(7), "", 0, nil)))

	left, right := b.Split()
	assert.Equal(t, idFromInt(0), left.Low)
	assert.Equal(t, idFromInt(4), left.High)
	assert.Equal(t, idFromInt(5), right.Low)
	assert.Equal(t, idFromInt(9), right.High)

	require.Len(t, left.Contacts, 1)
	assert.Equal(t, idFromInt(2), left.Contacts[0].ID)
	require.Len(t, right.Contacts, 1)
	assert.Equal(t, idFromInt(7), right.Contacts[0].ID)
}

func TestKBucketTouch(t *testing.T) {
	b := fullRangeBucket(20)
	first := b.Timestamp
	b.Touch()
	assert.False(t, b.Timestamp.Before(first))
}
