// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/kadmux/dht/pkg/kademlia"
	"github.com/kadmux/dht/pkg/kademlia/wire"
)

// Server is the long-lived datagram endpoint for one Node: it decodes
// each inbound envelope, dispatches to the matching Node handler, and
// replies echoing the request's random_id. It tolerates any malformed
// or unknown-type datagram with a best-effort error reply instead of
// crashing.
type Server struct {
	node    *kademlia.Node
	conn    *net.UDPConn
	timeout time.Duration
	log     *zap.Logger
}

// Listen binds a UDP socket at host:port (port 0 lets the OS assign
// one) and returns a Server ready to Serve. If port was 0, node.Self's
// advertised port is updated to the assigned one before Listen returns
// — the caller must not hand out node.Self's contact to anyone before
// this call completes.
func Listen(node *kademlia.Node, host string, port int, timeout time.Duration, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(host), Port: port})
	if err != nil {
		return nil, kademlia.Fatal.Wrap(err)
	}
	if port == 0 {
		if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			node.Self.Port = uint16(udpAddr.Port)
		}
	}
	return &Server{node: node, conn: conn, timeout: timeout, log: log}, nil
}

// Close releases the server's socket, unblocking Serve.
func (s *Server) Close() error {
	return s.conn.Close()
}

// Serve reads datagrams until ctx is cancelled or Close is called,
// dispatching each to its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return kademlia.ProtocolError.Wrap(err)
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		go s.handle(datagram, addr)
	}
}

func (s *Server) handle(datagram []byte, addr *net.UDPAddr) {
	env, err := wire.Decode(datagram)
	if err != nil {
		s.log.Warn("dropping malformed datagram", zap.Stringer("from", addr), zap.Error(err))
		s.replyError(addr, "0", "malformed envelope")
		return
	}

	req, err := wire.DecodeRequest(env)
	if err != nil {
		s.log.Warn("dropping malformed request", zap.Stringer("from", addr), zap.Error(err))
		s.replyError(addr, "0", "malformed request")
		return
	}

	sender, err := s.senderContact(req)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}

	switch env.Type {
	case wire.Ping:
		s.handlePing(addr, req, sender)
	case wire.Store:
		s.handleStore(addr, req, sender)
	case wire.FindNode:
		s.handleFindNode(addr, req, sender)
	case wire.FindValue:
		s.handleFindValue(addr, req, sender)
	default:
		s.log.Warn("unknown request type", zap.String("type", env.Type), zap.Stringer("from", addr))
		s.replyError(addr, req.RandomID, "unknown request type "+env.Type)
	}
}

func (s *Server) senderContact(req wire.Request) (*kademlia.Contact, error) {
	id, err := kademlia.IDFromString(req.Sender)
	if err != nil {
		return nil, kademlia.ProtocolError.Wrap(err)
	}
	client := NewClient(req.SenderHost, req.SenderPort, s.timeout, s.log)
	return kademlia.NewContact(id, req.SenderHost, req.SenderPort, client), nil
}

func (s *Server) handlePing(addr *net.UDPAddr, req wire.Request, sender *kademlia.Contact) {
	self, err := s.node.Ping(sender)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	s.reply(addr, wire.PingResponse, wire.Response{
		RandomID: req.RandomID,
		Contacts: []wire.Contact{contactToWire(self)},
	})
}

func (s *Server) handleStore(addr *net.UDPAddr, req wire.Request, sender *kademlia.Contact) {
	key, err := kademlia.IDFromString(req.Key)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	if err := s.node.StoreValue(sender, key, req.Value, req.ExpTime); err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	s.reply(addr, wire.StoreResponse, wire.Response{RandomID: req.RandomID})
}

func (s *Server) handleFindNode(addr *net.UDPAddr, req wire.Request, sender *kademlia.Contact) {
	key, err := kademlia.IDFromString(req.Key)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	contacts, err := s.node.FindNode(sender, key)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	s.reply(addr, wire.FindNodeResponse, wire.Response{
		RandomID: req.RandomID,
		Contacts: contactsToWire(contacts),
	})
}

func (s *Server) handleFindValue(addr *net.UDPAddr, req wire.Request, sender *kademlia.Contact) {
	key, err := kademlia.IDFromString(req.Key)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	result, err := s.node.FindValue(sender, key)
	if err != nil {
		s.replyError(addr, req.RandomID, err.Error())
		return
	}
	if result.Found {
		s.reply(addr, wire.FindValueResponse, wire.Response{RandomID: req.RandomID, Value: result.Value})
		return
	}
	s.reply(addr, wire.FindValueResponse, wire.Response{
		RandomID: req.RandomID,
		Contacts: contactsToWire(result.Contacts),
	})
}

func (s *Server) reply(addr *net.UDPAddr, typ string, data wire.Response) {
	payload, err := wire.Encode(typ, data)
	if err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
		return
	}
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		s.log.Warn("failed to send response", zap.Stringer("to", addr), zap.Error(err))
	}
}

func (s *Server) replyError(addr *net.UDPAddr, randomID, message string) {
	s.reply(addr, wire.Error, wire.Response{RandomID: randomID, ErrorMessage: message})
}

func contactToWire(c *kademlia.Contact) wire.Contact {
	return wire.Contact{
		Contact:      c.ID.String(),
		ProtocolName: protocolName,
		Host:         c.Host,
		Port:         c.Port,
	}
}

func contactsToWire(contacts []*kademlia.Contact) []wire.Contact {
	out := make([]wire.Contact, len(contacts))
	for i, c := range contacts {
		out[i] = contactToWire(c)
	}
	return out
}
