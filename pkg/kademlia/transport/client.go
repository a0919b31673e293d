// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

// Package transport implements the UDP client and server algorithms of
// the kademlia wire protocol: one JSON envelope per datagram, a fresh
// ephemeral endpoint per outbound RPC, one long-lived endpoint per
// server.
package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/kadmux/dht/pkg/kademlia"
	"github.com/kadmux/dht/pkg/kademlia/wire"
)

const protocolName = "udp"

// maxDatagramSize bounds a single UDP read; responses must fit in one
// datagram (spec: cap FIND_NODE/FIND_VALUE contact lists to K).
const maxDatagramSize = 65507

// Client is a ProtocolClient that speaks the wire protocol over UDP to
// one fixed destination.
type Client struct {
	host    string
	port    uint16
	timeout time.Duration
	log     *zap.Logger
}

// NewClient returns a Client addressing host:port, waiting up to
// timeout for each RPC's response.
func NewClient(host string, port uint16, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{host: host, port: port, timeout: timeout, log: log}
}

// Ping performs a ping RPC.
func (c *Client) Ping(ctx context.Context, self *kademlia.Contact) (*kademlia.Contact, error) {
	resp, err := c.roundTrip(ctx, wire.Ping, c.baseRequest(self))
	if err != nil {
		return nil, err
	}
	if len(resp.Contacts) != 1 {
		return nil, kademlia.ProtocolError.New("ping response carried %d contacts, want 1", len(resp.Contacts))
	}
	return contactFrom(resp.Contacts[0], c.timeout, c.log)
}

// Store performs a store RPC.
func (c *Client) Store(ctx context.Context, self *kademlia.Contact, key kademlia.ID, value []byte, expiration int64) error {
	req := c.baseRequest(self)
	req.Key = key.String()
	req.Value = value
	req.ExpTime = expiration
	_, err := c.roundTrip(ctx, wire.Store, req)
	return err
}

// FindNode performs a find_node RPC.
func (c *Client) FindNode(ctx context.Context, self *kademlia.Contact, key kademlia.ID) ([]*kademlia.Contact, error) {
	req := c.baseRequest(self)
	req.Key = key.String()
	resp, err := c.roundTrip(ctx, wire.FindNode, req)
	if err != nil {
		return nil, err
	}
	return contactsFrom(resp.Contacts, c.timeout, c.log)
}

// FindValue performs a find_value RPC.
func (c *Client) FindValue(ctx context.Context, self *kademlia.Contact, key kademlia.ID) (kademlia.FindValueResult, error) {
	req := c.baseRequest(self)
	req.Key = key.String()
	resp, err := c.roundTrip(ctx, wire.FindValue, req)
	if err != nil {
		return kademlia.FindValueResult{}, err
	}
	if resp.Value != nil {
		return kademlia.FindValueResult{Found: true, Value: resp.Value}, nil
	}
	contacts, err := contactsFrom(resp.Contacts, c.timeout, c.log)
	if err != nil {
		return kademlia.FindValueResult{}, err
	}
	return kademlia.FindValueResult{Contacts: contacts}, nil
}

func (c *Client) baseRequest(self *kademlia.Contact) wire.Request {
	return wire.Request{
		ProtocolName: protocolName,
		Sender:       self.ID.String(),
		SenderHost:   self.Host,
		SenderPort:   self.Port,
	}
}

// roundTrip implements the client algorithm: fresh random_id, ephemeral
// endpoint, one datagram out, one datagram in before timeout,
// classified per the Timeout/IdMismatched/PeerError/ProtocolError
// taxonomy.
func (c *Client) roundTrip(ctx context.Context, reqType string, req wire.Request) (wire.Response, error) {
	nonce, err := kademlia.RandomID()
	if err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}
	req.RandomID = nonce.String()

	payload, err := wire.Encode(reqType, req)
	if err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}

	dest := &net.UDPAddr{IP: net.ParseIP(c.host), Port: int(c.port)}
	if _, err := conn.WriteToUDP(payload, dest); err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}

	buf := make([]byte, maxDatagramSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return wire.Response{}, kademlia.Timeout.Wrap(err)
		}
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}

	env, err := wire.Decode(buf[:n])
	if err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}
	resp, err := wire.DecodeResponse(env)
	if err != nil {
		return wire.Response{}, kademlia.ProtocolError.Wrap(err)
	}
	if resp.RandomID != req.RandomID {
		return wire.Response{}, kademlia.IdMismatched.New("got %q, want %q", resp.RandomID, req.RandomID)
	}
	if env.Type == wire.Error {
		return wire.Response{}, kademlia.PeerError.New("%s", resp.ErrorMessage)
	}
	return resp, nil
}

func contactFrom(wc wire.Contact, timeout time.Duration, log *zap.Logger) (*kademlia.Contact, error) {
	id, err := kademlia.IDFromString(wc.Contact)
	if err != nil {
		return nil, kademlia.ProtocolError.Wrap(err)
	}
	return kademlia.NewContact(id, wc.Host, wc.Port, NewClient(wc.Host, wc.Port, timeout, log)), nil
}

func contactsFrom(wcs []wire.Contact, timeout time.Duration, log *zap.Logger) ([]*kademlia.Contact, error) {
	out := make([]*kademlia.Contact, 0, len(wcs))
	for _, wc := range wcs {
		c, err := contactFrom(wc, timeout, log)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
