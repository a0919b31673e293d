// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"sync"
	"time"
)

// Contact is an addressable handle for a remote node: its identifier, its
// network address, and an outbound handle used to reach it. Contacts are
// shared by reference between the routing table and in-flight RPC tasks;
// no contact outlives the Node that created it. Equality is by ID alone.
type Contact struct {
	ID       ID
	Host     string
	Port     uint16
	Protocol ProtocolClient

	mu       sync.Mutex
	lastSeen time.Time
}

// NewContact builds a Contact touched to the current time.
func NewContact(id ID, host string, port uint16, protocol ProtocolClient) *Contact {
	c := &Contact{ID: id, Host: host, Port: port, Protocol: protocol}
	c.Touch()
	return c
}

// Touch sets LastSeen to now.
func (c *Contact) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// LastSeen returns the last time Touch was called.
func (c *Contact) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Equal reports whether two contacts share the same ID. A nil contact
// equals nothing.
func (c *Contact) Equal(other *Contact) bool {
	if c == nil || other == nil {
		return false
	}
	return c.ID == other.ID
}

// ContainsID reports whether any contact in the slice has the given id.
func ContainsID(contacts []*Contact, id ID) bool {
	for _, c := range contacts {
		if c.ID == id {
			return true
		}
	}
	return false
}

// CloneContacts returns a shallow copy of the slice (not the contacts
// themselves), safe to hand to callers that must not observe later
// mutation of the owning slice.
func CloneContacts(contacts []*Contact) []*Contact {
	out := make([]*Contact, len(contacts))
	copy(out, contacts)
	return out
}
