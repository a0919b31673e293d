// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

// Package wire defines the JSON envelope exchanged over the kademlia
// UDP transport: one envelope per datagram, `{"type":...,"data":...}`,
// decoupled from pkg/kademlia so the wire shapes can be marshaled
// without importing the routing types.
package wire

import (
	"encoding/json"

	"github.com/zeebo/errs"
)

// Message types, matching the `type` discriminator of every envelope.
const (
	Ping              = "ping"
	Store             = "store"
	FindNode          = "find_node"
	FindValue         = "find_value"
	PingResponse      = "ping_response"
	StoreResponse     = "store_response"
	FindNodeResponse  = "find_node_response"
	FindValueResponse = "find_value_response"
	Error             = "error"
)

// WireError is the class for malformed envelopes: unknown type is not
// one of these (the server must reply with an Error envelope, not
// crash), but a datagram that isn't valid JSON at all is a WireError.
var WireError = errs.Class("kademlia wire error")

// Envelope is the outer shape of every datagram.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Contact is a peer reference as it appears in a response's contact
// list: {contact, protocol_name, host, port}.
type Contact struct {
	Contact      string `json:"contact"`
	ProtocolName string `json:"protocol_name"`
	Host         string `json:"host"`
	Port         uint16 `json:"port"`
}

// Request is the `data` payload of ping/store/find_node/find_value
// envelopes. Key, Value, and ExpTime apply only to the types that use
// them.
type Request struct {
	ProtocolName string `json:"protocol_name"`
	RandomID     string `json:"random_id"`
	Sender       string `json:"sender"`
	SenderHost   string `json:"sender_host"`
	SenderPort   uint16 `json:"sender_port"`
	Key          string `json:"key,omitempty"`
	Value        []byte `json:"value,omitempty"`
	ExpTime      int64  `json:"exp_time,omitempty"`
}

// Response is the `data` payload of every *_response and error
// envelope.
type Response struct {
	RandomID     string    `json:"random_id"`
	Contacts     []Contact `json:"contacts,omitempty"`
	Value        []byte    `json:"value,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Encode marshals typ and data into a single datagram payload.
func Encode(typ string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, WireError.Wrap(err)
	}
	payload, err := json.Marshal(Envelope{Type: typ, Data: raw})
	if err != nil {
		return nil, WireError.Wrap(err)
	}
	return payload, nil
}

// Decode parses a datagram's outer envelope. Callers unmarshal Data
// into a Request or Response according to Type.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, WireError.Wrap(err)
	}
	return env, nil
}

// DecodeRequest unmarshals env.Data as a Request.
func DecodeRequest(env Envelope) (Request, error) {
	var req Request
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return Request{}, WireError.Wrap(err)
	}
	return req, nil
}

// DecodeResponse unmarshals env.Data as a Response.
func DecodeResponse(env Envelope) (Response, error) {
	var resp Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return Response{}, WireError.Wrap(err)
	}
	return resp, nil
}

// ResponseTypeFor returns the *_response type matching a request type.
func ResponseTypeFor(requestType string) string {
	switch requestType {
	case Ping:
		return PingResponse
	case Store:
		return StoreResponse
	case FindNode:
		return FindNodeResponse
	case FindValue:
		return FindValueResponse
	default:
		return Error
	}
}
