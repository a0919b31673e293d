// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idFromInt(n int64) ID {
	return IDFromBig(big.NewInt(n))
}

func TestXor(t *testing.T) {
	cases := []struct {
		a, b, expected int64
	}{
		{0b1010, 0b0100, 0b1110},
		{0b0010, 0b0100, 0b0110},
		{0, 0, 0},
		{0b1111, 0b1111, 0},
	}
	for _, v := range cases {
		got := idFromInt(v.a).Xor(idFromInt(v.b))
		assert.Equal(t, idFromInt(v.expected), got)
	}
}

func TestLess(t *testing.T) {
	assert.True(t, idFromInt(1).Less(idFromInt(2)))
	assert.False(t, idFromInt(2).Less(idFromInt(1)))
	assert.False(t, idFromInt(2).Less(idFromInt(2)))
}

func TestSortByXOR(t *testing.T) {
	n1 := idFromInt(127)
	n2 := idFromInt(143)
	n3 := idFromInt(255)
	n4 := idFromInt(191)
	n5 := idFromInt(133)

	unsorted := []ID{n1, n5, n2, n4, n3}
	sortByXOR(unsorted, n1)
	sorted := []ID{n1, n3, n4, n2, n5}
	assert.Equal(t, sorted, unsorted)
}

func TestCommonPrefixLen(t *testing.T) {
	all1 := ID{}
	for i := range all1 {
		all1[i] = 0xff
	}
	assert.Equal(t, 160, all1.CommonPrefixLen(all1))
	assert.Equal(t, 0, all1.CommonPrefixLen(ZeroID))

	a := ID{}
	b := ID{}
	b[0] = 0b0000_0001 // differ in the last bit of the first byte
	assert.Equal(t, 7, a.CommonPrefixLen(b))
}

func TestIDStringRoundTrip(t *testing.T) {
	id, err := RandomID()
	require.NoError(t, err)

	s := id.String()
	parsed, err := IDFromString(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIDFromStringRejectsOutOfRange(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 8*IDLength)
	_, err := IDFromString(huge.String())
	require.Error(t, err)
	assert.True(t, Fatal.Has(err))
}

func TestIncrement(t *testing.T) {
	assert.Equal(t, idFromInt(2), idFromInt(1).Increment())

	var max ID
	for i := range max {
		max[i] = 0xff
	}
	assert.Equal(t, max, max.Increment())
}

func TestMidpointID(t *testing.T) {
	mid := MidpointID(idFromInt(0), idFromInt(9))
	assert.Equal(t, idFromInt(4), mid)
}

func TestRandomIDInRange(t *testing.T) {
	low, high := idFromInt(10), idFromInt(20)
	for i := 0; i < 50; i++ {
		id, err := RandomIDInRange(low, high)
		require.NoError(t, err)
		assert.False(t, id.Less(low))
		assert.False(t, high.Less(id))
	}
}
