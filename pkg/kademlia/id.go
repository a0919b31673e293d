// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"crypto/rand"
	"math/big"
)

// IDLength is the width of an identifier in bytes: 160 bits.
const IDLength = 20

// ID is an unsigned 160-bit identifier, stored big-endian. Distance
// between two IDs is their bitwise XOR, compared as an unsigned integer;
// smaller is closer.
type ID [IDLength]byte

// ZeroID is the identifier with every bit unset.
var ZeroID = ID{}

// RandomID returns a cryptographically random 160-bit identifier, used
// for node IDs and per-RPC correlation nonces alike.
func RandomID() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ZeroID, ProtocolError.Wrap(err)
	}
	return id, nil
}

// Xor returns the bitwise XOR distance between id and other.
func (id ID) Xor(other ID) ID {
	var out ID
	for i := range out {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// Less reports whether id, read as a big-endian unsigned integer, is
// strictly less than other.
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Equal reports whether id and other hold the same bits.
func (id ID) Equal(other ID) bool {
	return id == other
}

// IsZero reports whether id is the all-zero identifier.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// CloserThan reports whether id is closer to key than other is, i.e.
// id^key < other^key.
func (id ID) CloserThan(other, key ID) bool {
	return id.Xor(key).Less(other.Xor(key))
}

// CommonPrefixLen returns the number of leading bits id and other share,
// out of 8*IDLength. Two equal IDs share all bits.
func (id ID) CommonPrefixLen(other ID) int {
	for i := range id {
		if id[i] != other[i] {
			diff := id[i] ^ other[i]
			return i*8 + leadingZeros8(diff)
		}
	}
	return 8 * IDLength
}

func leadingZeros8(b byte) int {
	n := 0
	for mask := byte(0x80); mask != 0; mask >>= 1 {
		if b&mask != 0 {
			break
		}
		n++
	}
	return n
}

// Big returns id as a big-endian unsigned big.Int, for arithmetic the
// fixed-width byte form doesn't make convenient (midpoint, random-in-range).
func (id ID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// IDFromBig converts a non-negative big.Int smaller than 2^160 back into
// an ID, left-padding with zero bytes.
func IDFromBig(v *big.Int) ID {
	var id ID
	b := v.Bytes()
	copy(id[IDLength-len(b):], b)
	return id
}

// IDFromString parses a decimal string (as used on the wire, see
// pkg/kademlia/wire) into an ID.
func IDFromString(s string) (ID, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return ZeroID, ProtocolError.New("invalid id %q", s)
	}
	if v.Sign() < 0 || v.BitLen() > 8*IDLength {
		return ZeroID, Fatal.New("id %q out of range", s)
	}
	return IDFromBig(v), nil
}

// String renders id as a decimal string, matching the wire format.
func (id ID) String() string {
	return id.Big().String()
}

// Increment returns id+1, saturating at the maximum 160-bit value.
func (id ID) Increment() ID {
	v := new(big.Int).Add(id.Big(), big.NewInt(1))
	max := new(big.Int).Lsh(big.NewInt(1), 8*IDLength)
	if v.Cmp(max) >= 0 {
		v.Sub(max, big.NewInt(1))
	}
	return IDFromBig(v)
}

// MidpointID returns the midpoint of the inclusive range [low, high],
// floor((low+high)/2), used by KBucket.Split.
func MidpointID(low, high ID) ID {
	sum := new(big.Int).Add(low.Big(), high.Big())
	sum.Rsh(sum, 1)
	return IDFromBig(sum)
}

// RandomIDInRange returns a random ID uniformly selected from the
// inclusive range [low, high], used by bucket-refresh (spec §4.5 step 3).
func RandomIDInRange(low, high ID) (ID, error) {
	span := new(big.Int).Sub(high.Big(), low.Big())
	span.Add(span, big.NewInt(1))
	if span.Sign() <= 0 {
		return low, nil
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return ZeroID, ProtocolError.Wrap(err)
	}
	n.Add(n, low.Big())
	return IDFromBig(n), nil
}

// sortByXOR sorts ids ascending by their XOR distance to key, preferring
// ascending id order to break ties (BucketList.get_closest_contacts).
func sortByXOR(ids []ID, key ID) {
	// insertion sort: lookup lists are bounded by K (tens of entries),
	// so the simplicity outweighs any asymptotic concern.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			da, db := a.Xor(key), b.Xor(key)
			if !db.Less(da) {
				break
			}
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
