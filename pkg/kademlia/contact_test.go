// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package kademlia

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactEqual(t *testing.T) {
	a := NewContact(idFromInt(1), "127.0.0.1", 9000, nil)
	b := NewContact(idFromInt(1), "10.0.0.1", 9001, nil)
	c := NewContact(idFromInt(2), "127.0.0.1", 9000, nil)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestContactTouchUpdatesLastSeen(t *testing.T) {
	c := NewContact(idFromInt(1), "127.0.0.1", 9000, nil)
	first := c.LastSeen()
	c.Touch()
	assert.False(t, c.LastSeen().Before(first))
}

func TestContainsID(t *testing.T) {
	contacts := []*Contact{
		NewContact(idFromInt(1), "", 0, nil),
		NewContact(idFromInt(2), "", 0, nil),
	}
	assert.True(t, ContainsID(contacts, idFromInt(1)))
	assert.False(t, ContainsID(contacts, idFromInt(3)))
}

func TestCloneContacts(t *testing.T) {
	contacts := []*Contact{NewContact(idFromInt(1), "", 0, nil)}
	clone := CloneContacts(contacts)
	clone[0] = NewContact(idFromInt(2), "", 0, nil)
	assert.Equal(t, idFromInt(1), contacts[0].ID)
}
