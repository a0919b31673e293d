// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"time"

	"go.uber.org/zap"
)

// Node is the local peer: it answers the four RPC handlers and owns the
// routing table and storage every handler mutates or reads.
type Node struct {
	Self    *Contact
	Buckets *BucketList
	Store   *Storage

	log *zap.Logger
}

// NewNode returns a Node identified by self, backed by a fresh
// BucketList and Storage.
func NewNode(self *Contact, cfg Config, log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		Self:    self,
		Buckets: NewBucketList(self.ID, cfg.K, cfg.BVal),
		Store:   NewStorage(),
		log:     log,
	}
}

// touch inserts or refreshes sender in the bucket list. Every handler
// does this before acting, and every handler rejects a sender claiming
// our own id.
func (n *Node) touch(sender *Contact) error {
	if sender.ID == n.Self.ID {
		return ProtocolError.New("sender id %s equals self id", sender.ID)
	}
	result := n.Buckets.AddContact(sender)
	n.log.Debug("touched sender",
		zap.Stringer("sender", sender.ID),
		zap.Int("result", int(result)))
	return nil
}

// Ping answers a ping RPC with the local contact.
func (n *Node) Ping(sender *Contact) (*Contact, error) {
	if err := n.touch(sender); err != nil {
		return nil, err
	}
	return n.Self, nil
}

// StoreValue answers a store RPC: write-through to local Storage, no
// de-duplication beyond key replacement.
func (n *Node) StoreValue(sender *Contact, key ID, value []byte, expiration int64) error {
	if err := n.touch(sender); err != nil {
		return err
	}
	var exp time.Time
	if expiration != 0 {
		exp = time.Unix(expiration, 0)
	}
	n.Store.Set(key, value, exp)
	n.log.Debug("stored value", zap.Stringer("key", key), zap.Stringer("from", sender.ID))
	return nil
}

// FindNode answers a find_node RPC with the closest K contacts for key,
// excluding sender.
func (n *Node) FindNode(sender *Contact, key ID) ([]*Contact, error) {
	if err := n.touch(sender); err != nil {
		return nil, err
	}
	return n.Buckets.GetClosestContacts(key, sender.ID), nil
}

// FindValue answers a find_value RPC: the stored value if present, else
// the closest K contacts for key, excluding sender.
func (n *Node) FindValue(sender *Contact, key ID) (FindValueResult, error) {
	if err := n.touch(sender); err != nil {
		return FindValueResult{}, err
	}
	if value, ok := n.Store.Get(key); ok {
		return FindValueResult{Found: true, Value: value}, nil
	}
	return FindValueResult{Contacts: n.Buckets.GetClosestContacts(key, sender.ID)}, nil
}
