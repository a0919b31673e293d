// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import "github.com/zeebo/errs"

// Error classes for the RPC taxonomy described by the protocol: every
// outbound RPC either returns a result or exactly one of these, never
// both meaningfully.
var (
	// Timeout is returned when no response arrived before the
	// configured per-RPC deadline.
	Timeout = errs.Class("kademlia timeout")

	// IdMismatched is returned when a response's correlation nonce does
	// not match the one the request was sent with.
	IdMismatched = errs.Class("kademlia id mismatched")

	// PeerError is returned when the remote handler itself reported a
	// failure (an "error" envelope).
	PeerError = errs.Class("kademlia peer error")

	// ProtocolError is returned for framing, encoding, or I/O failures
	// that are not attributable to the remote peer's handler logic.
	ProtocolError = errs.Class("kademlia protocol error")

	// Fatal wraps conditions the caller treats as unrecoverable: an id
	// outside the 160-bit range (IDFromString), or failure to bind the
	// server's listening socket at start-up (transport.Listen). A
	// malformed datagram is reported as a ProtocolError instead, and the
	// size of an outgoing datagram is not checked.
	Fatal = errs.Class("kademlia fatal")

	// BucketFull is returned by KBucket.Add when the bucket is already
	// at capacity; callers decide whether to split or reject.
	BucketFull = errs.Class("kademlia bucket full")
)
