// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import "context"

// ProtocolClient is the outbound handle a Contact carries: it performs
// one RPC against the remote peer the contact addresses and classifies
// the outcome per the Timeout/IdMismatched/PeerError/ProtocolError
// taxonomy in errors.go. Implementations live in pkg/kademlia/transport
// (UDP) and in tests (in-process loopback).
type ProtocolClient interface {
	Ping(ctx context.Context, self *Contact) (*Contact, error)
	Store(ctx context.Context, self *Contact, key ID, value []byte, expiration int64) error
	FindNode(ctx context.Context, self *Contact, key ID) ([]*Contact, error)
	FindValue(ctx context.Context, self *Contact, key ID) (FindValueResult, error)
}

// FindValueResult is the outcome of a find_value RPC or handler call:
// either a value was found, or the closest known contacts are returned
// for the caller to continue the lookup.
type FindValueResult struct {
	Found    bool
	Value    []byte
	Contacts []*Contact
}
